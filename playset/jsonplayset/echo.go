package jsonplayset

import (
	"strconv"

	"github.com/horizonrelay/horizon/event"
	"github.com/horizonrelay/horizon/playset"
)

// Echo is a minimal reference playset: its state is a plain
// map[string]interface{} tracking which usernames are currently
// connected. It accepts no commands and exists to give a freshly started
// server something registerable; real game logic lives in an externally
// supplied playset implementation.
type Echo struct {
	Defaults
}

// NewEcho returns a ready-to-register Echo playset.
func NewEcho() *Echo { return &Echo{} }

func (Echo) Name() string { return "echo" }

func (e Echo) Advance(state interface{}, connects, commands []event.Event, inputs []playset.Input, disconnects []event.Event) (interface{}, error) {
	m, ok := state.(map[string]interface{})
	if !ok || m == nil {
		m = make(map[string]interface{})
	}
	online, _ := m["online"].(map[string]interface{})
	if online == nil {
		online = make(map[string]interface{})
	}
	for _, c := range connects {
		online[strconv.Itoa(c.Controller)] = c.Username
	}
	for _, d := range disconnects {
		delete(online, strconv.Itoa(d.Controller))
	}
	m["online"] = online
	return m, nil
}

func (Echo) CommandRateLimit(verb string) (float64, bool) { return NoCommands(verb) }
func (Echo) MaxArgLength(verb string) int                 { return 0 }
func (Echo) MaxInputLength() int                          { return 256 }
