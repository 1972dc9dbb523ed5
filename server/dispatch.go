package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/horizonrelay/horizon/broadcast"
	"github.com/horizonrelay/horizon/chat"
	"github.com/horizonrelay/horizon/clock"
	"github.com/horizonrelay/horizon/controller"
	"github.com/horizonrelay/horizon/event"
	"github.com/horizonrelay/horizon/validator"
	"github.com/horizonrelay/horizon/wire"
)

type kindEnvelope struct {
	K string `json:"k"`
}

// handleInbound parses raw as a single JSON object or a JSON array
// dispatched element-by-element, aborting on the first error.
func (a *CoreActor) handleInbound(controllerID int, raw []byte) {
	elements, err := splitElements(raw)
	if err != nil {
		a.closeWithError(controllerID, "malformed message")
		return
	}
	for _, el := range elements {
		if err := a.dispatchOne(controllerID, el); err != nil {
			if errors.Is(err, errHandled) {
				return
			}
			a.closeWithError(controllerID, err.Error())
			return
		}
	}
}

var errHandled = errors.New("server: already handled")

func splitElements(raw []byte) ([]json.RawMessage, error) {
	trimmed := skipSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var elements []json.RawMessage
		if err := json.Unmarshal(raw, &elements); err != nil {
			return nil, err
		}
		return elements, nil
	}
	return []json.RawMessage{raw}, nil
}

func skipSpace(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}
	return b[i:]
}

func (a *CoreActor) dispatchOne(controllerID int, raw json.RawMessage) error {
	var kind kindEnvelope
	if err := json.Unmarshal(raw, &kind); err != nil {
		return fmt.Errorf("malformed message")
	}

	switch kind.K {
	case "prelogin":
		return a.handlePrelogin(controllerID)
	case "l":
		return a.handleLogin(controllerID, raw)
	case "f":
		return a.handleFrame(controllerID, raw)
	case "o":
		return a.handleCommand(controllerID, raw)
	case "g":
		return a.handleChat(controllerID, raw)
	case "selfServeCreateUser":
		return a.handleSelfServeCreateUser(controllerID, raw)
	case "changeMyPassword":
		return a.handleChangePassword(controllerID, raw)
	case "getMyConfig":
		return a.handleGetConfig(controllerID, raw)
	case "setMyConfig":
		return a.handleSetConfig(controllerID, raw)
	case "cleanShutdown", "dirtyShutdown":
		return a.handleAdminShutdown(controllerID, kind.K, raw)
	default:
		return fmt.Errorf("unknown message kind %q", kind.K)
	}
}

func (a *CoreActor) controllerOrErr(controllerID int) (*controller.Controller, error) {
	c, ok := a.registry.Get(controllerID)
	if !ok {
		return nil, fmt.Errorf("unknown controller")
	}
	return c, nil
}

func (a *CoreActor) closeWithError(controllerID int, reason string) {
	c, ok := a.registry.Get(controllerID)
	if !ok {
		return
	}
	_ = c.Send(wire.ErrorOut{K: "E", E: reason})
	c.CloseWithError(reason)
}

func (a *CoreActor) handlePrelogin(controllerID int) error {
	c, err := a.controllerOrErr(controllerID)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(a.instances))
	for n := range a.instances {
		names = append(names, n)
	}
	sort.Strings(names)
	var suggested string
	if len(names) > 0 {
		suggested = names[0]
	}
	return c.Send(wire.PreloginList{K: "U", N: suggested, L: names})
}

func (a *CoreActor) handleLogin(controllerID int, raw json.RawMessage) error {
	var msg wire.Login
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("malformed login")
	}
	c, err := a.controllerOrErr(controllerID)
	if err != nil {
		return err
	}
	if _, err := a.users.Authenticate(msg.U, msg.P); err != nil {
		return fmt.Errorf("bad username or password")
	}
	inst, ok := a.instances[msg.N]
	if !ok {
		return fmt.Errorf("instance %q does not exist", msg.N)
	}

	if _, conflict := a.registry.LoginConflict(msg.U); conflict {
		return fmt.Errorf("already logged in")
	}

	now := time.Now()

	if _, waiting := a.registry.OutboxFor(msg.U); waiting {
		c.EnterInbox(msg.N, msg.U)
		a.registry.MarkInbox(c, msg.U)
		zero := clock.ZeroInstant(inst.PastHorizonFrame, inst.PastHorizonPerfTime, inst.FrameRate())
		return c.Send(wire.WaitOrWelcome{K: "W", T: clock.TimingPong(now, zero)})
	}

	if inst.Suspended {
		inst.Unsuspend(now)
	}
	presentFrame := inst.PresentFrame()
	c.PromoteToLive(msg.N, msg.U, presentFrame)
	c.ArmTimeout(a.cfg.ControllerTimeout, a.onTimeout)
	a.registry.MarkLive(c, msg.U)
	inst.Subscribers[c.ID] = c
	inst.AdmitEvent(event.Connect(presentFrame, c.ID, msg.U, ""))
	a.chatHub.Join(c)
	a.buckets[c.ID] = chat.NewTokenBucket(a.cfg.ChatTokenCapacity, a.cfg.ChatTokenRefillPeriod, func() {
		_ = c.Send(wire.ChatTokenGrant{K: "G"})
	})

	zero := clock.ZeroInstant(inst.PastHorizonFrame, inst.PastHorizonPerfTime, inst.FrameRate())
	if err := c.Send(wire.WaitOrWelcome{K: "W", T: clock.TimingPong(now, zero)}); err != nil {
		return errHandled
	}

	serialized, err := inst.Playset.Serialize(inst.PastHorizonState)
	if err != nil {
		return fmt.Errorf("serialize state: %w", err)
	}
	statusOut := make(map[int]wire.ControllerStatusEntry, len(inst.ControllerStatus))
	for id, cs := range inst.ControllerStatus {
		statusOut[id] = wire.ControllerStatusEntry{Username: cs.Username, LastInputString: cs.LastInputString}
	}
	pending := make([]interface{}, 0)
	for _, bucket := range inst.Events {
		for _, ev := range bucket {
			pending = append(pending, ev)
		}
	}
	snap := wire.Snapshot{
		K: "S",
		P: inst.Playset.Name(),
		C: c.ID,
		X: statusOut,
		G: serialized,
		F: inst.PastHorizonFrame,
		E: pending,
		R: a.cfg.FrameRate,
		L: a.cfg.MaxChatMessageBytes,
		M: a.buckets[c.ID].Balance(),
	}
	if err := c.Send(snap); err != nil {
		return errHandled
	}
	return nil
}

func (a *CoreActor) liveController(controllerID int) (*controller.Controller, error) {
	c, err := a.controllerOrErr(controllerID)
	if err != nil {
		return nil, err
	}
	if !c.IsLive() {
		return nil, fmt.Errorf("controller not LIVE")
	}
	return c, nil
}

func (a *CoreActor) handleFrame(controllerID int, raw json.RawMessage) error {
	var msg wire.FrameInput
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("malformed frame message")
	}
	c, err := a.liveController(controllerID)
	if err != nil {
		return err
	}
	inst, ok := a.instances[c.Instance]
	if !ok {
		return fmt.Errorf("instance gone")
	}

	ev, echoOnly, err := validator.ValidateFrame(inst, c, msg.F, msg.I)
	if errors.Is(err, validator.ErrDropSilently) {
		return nil
	}
	if err != nil {
		return err
	}
	c.RefreshTimeout()
	inst.AdmitEvent(ev)

	now := time.Now()
	if echoOnly {
		zero := clock.ZeroInstant(inst.PastHorizonFrame, inst.PastHorizonPerfTime, inst.FrameRate())
		pong := clock.TimingPong(now, zero)
		_ = c.Send(wire.RelayedFrame{K: "f", Frame: ev.Frame, C: ev.Controller, I: ev.Input, T: &pong})
		return nil
	}
	broadcast.Event(inst, ev, controllerID, now)
	return nil
}

func (a *CoreActor) handleCommand(controllerID int, raw json.RawMessage) error {
	var msg wire.CommandIn
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("malformed command message")
	}
	c, err := a.liveController(controllerID)
	if err != nil {
		return err
	}
	inst, ok := a.instances[c.Instance]
	if !ok {
		return fmt.Errorf("instance gone")
	}

	ev, err := validator.ValidateCommand(inst, c, msg.F, msg.S, msg.O, msg.A)
	if errors.Is(err, validator.ErrDropSilently) {
		return nil
	}
	if err != nil {
		return err
	}
	c.RefreshTimeout()
	inst.AdmitEvent(ev)
	broadcast.Event(inst, ev, controllerID, time.Now())
	return nil
}

func (a *CoreActor) handleChat(controllerID int, raw json.RawMessage) error {
	var msg wire.ChatIn
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("malformed chat message")
	}
	c, err := a.liveController(controllerID)
	if err != nil {
		return err
	}
	bucket, ok := a.buckets[controllerID]
	if !ok || !bucket.Spend() {
		return fmt.Errorf("chat too fast")
	}
	if err := a.chatHub.Publish(controllerID, c.Username, msg.M); err != nil {
		return err
	}
	return nil
}

func (a *CoreActor) handleSelfServeCreateUser(controllerID int, raw json.RawMessage) error {
	var msg wire.SelfServeCreateUser
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("malformed request")
	}
	c, err := a.controllerOrErr(controllerID)
	if err != nil {
		return err
	}
	if err := a.users.Create(msg.U, msg.P, msg.D, false, c.RemoteAddr); err != nil {
		return err
	}
	_ = c.Send(wire.Done{K: "D", D: "account created"})
	c.CloseWithError("")
	return errHandled
}

func (a *CoreActor) handleChangePassword(controllerID int, raw json.RawMessage) error {
	var msg wire.ChangeMyPassword
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("malformed request")
	}
	c, err := a.controllerOrErr(controllerID)
	if err != nil {
		return err
	}
	if err := a.users.ChangePassword(msg.U, msg.P, msg.N); err != nil {
		return err
	}
	_ = c.Send(wire.Done{K: "D", D: "password changed"})
	c.CloseWithError("")
	return errHandled
}

func (a *CoreActor) handleGetConfig(controllerID int, raw json.RawMessage) error {
	var msg wire.GetMyConfig
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("malformed request")
	}
	c, err := a.controllerOrErr(controllerID)
	if err != nil {
		return err
	}
	cfg, err := a.users.GetConfig(msg.U, msg.P)
	if err != nil {
		return err
	}
	_ = c.Send(wire.Done{K: "D", D: cfg})
	c.CloseWithError("")
	return errHandled
}

func (a *CoreActor) handleSetConfig(controllerID int, raw json.RawMessage) error {
	var msg wire.SetMyConfig
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("malformed request")
	}
	c, err := a.controllerOrErr(controllerID)
	if err != nil {
		return err
	}
	if err := a.users.SetConfig(msg.U, msg.P, msg.D); err != nil {
		return err
	}
	_ = c.Send(wire.Done{K: "D", D: "config updated"})
	c.CloseWithError("")
	return errHandled
}

func (a *CoreActor) handleAdminShutdown(controllerID int, kind string, raw json.RawMessage) error {
	var msg wire.AdminShutdown
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("malformed request")
	}
	c, err := a.controllerOrErr(controllerID)
	if err != nil {
		return err
	}
	admin, err := a.users.IsAdmin(msg.U, msg.P)
	if err != nil {
		return err
	}
	if !admin {
		return fmt.Errorf("not authorised")
	}
	if err := a.Shutdown(kind == "cleanShutdown"); err != nil {
		return err
	}
	_ = c.Send(wire.Done{K: "D", D: msg.R})
	c.CloseWithError("")
	return errHandled
}
