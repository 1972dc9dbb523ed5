// Package instance holds the per-instance world state and the
// horizon-advancer actor that ticks it forward, generalizing the
// teacher's per-room GameActor into a playset-agnostic engine.
package instance

import (
	"sort"
	"time"

	"github.com/horizonrelay/horizon/event"
	"github.com/horizonrelay/horizon/playset"
)

// ControllerStatus is the per-controller record folded into the past
// horizon state.
type ControllerStatus struct {
	Username        string
	LastInputString string
}

// Subscriber is the minimal broadcast target an instance needs: something
// that can be sent a JSON-serialisable server message and identified by
// controller ID. The controller package supplies the concrete type; this
// interface keeps instance from importing controller and creating a cycle.
type Subscriber interface {
	ControllerID() int
	Send(v interface{}) error
	CloseWithError(reason string)
}

// State is the Instance record.
type State struct {
	Name string

	PastHorizonFrame    uint64
	PastHorizonPerfTime time.Time
	PastHorizonState    interface{}

	ControllerStatus map[int]*ControllerStatus

	// Events maps frame number to the unordered bucket of events admitted
	// for that frame. Invariant (a): every key is >= PastHorizonFrame.
	Events map[uint64][]event.Event

	Subscribers map[int]Subscriber

	Suspended bool

	Playset playset.Playset

	cfg HorizonConfig
}

// HorizonConfig is the subset of config.Config the advancer needs, copied
// in rather than importing config directly so instance has no dependency
// on the server's top-level wiring package.
type HorizonConfig struct {
	FrameRate              int
	PastHorizonFrames      int
	FutureHorizonFrames    int
	HashSyncInterval       uint64
	FrameBroadcastInterval uint64
}

// New constructs a fresh instance at past_horizon_frame = 1, the "first
// creation from a snapshot" rule, synthesising a Disconnect at frame 1
// for every controller present in the stored status.
func New(name string, ps playset.Playset, state interface{}, status map[int]*ControllerStatus, now time.Time, cfg HorizonConfig) *State {
	if status == nil {
		status = make(map[int]*ControllerStatus)
	}
	s := &State{
		Name:                name,
		PastHorizonFrame:    1,
		PastHorizonPerfTime: now.Add(-time.Duration(cfg.PastHorizonFrames) * frameDuration(cfg.FrameRate)),
		PastHorizonState:    state,
		ControllerStatus:    status,
		Events:              make(map[uint64][]event.Event),
		Subscribers:         make(map[int]Subscriber),
		Suspended:           true,
		Playset:             ps,
		cfg:                 cfg,
	}
	for controllerID := range status {
		s.Events[1] = append(s.Events[1], event.Disconnect(1, controllerID))
	}
	return s
}

func frameDuration(frameRate int) time.Duration {
	return time.Second / time.Duration(frameRate)
}

// FrameRate returns the configured frames-per-second for this instance.
func (s *State) FrameRate() int {
	return s.cfg.FrameRate
}

// PresentFrame is past_horizon_frame + PAST_HORIZON_FRAMES.
func (s *State) PresentFrame() uint64 {
	return s.PastHorizonFrame + uint64(s.cfg.PastHorizonFrames)
}

// FutureHorizon is present_frame + FUTURE_HORIZON_FRAMES.
func (s *State) FutureHorizon() uint64 {
	return s.PresentFrame() + uint64(s.cfg.FutureHorizonFrames)
}

// AdmitEvent appends e to its frame's bucket. The validator is responsible
// for rejecting events that violate invariant (a); AdmitEvent trusts its
// caller.
func (s *State) AdmitEvent(e event.Event) {
	s.Events[e.Frame] = append(s.Events[e.Frame], e)
}

// sortedControllerIDs returns the keys of ControllerStatus in ascending
// order, the iteration order the advancer needs for determinism.
func (s *State) sortedControllerIDs() []int {
	ids := make([]int, 0, len(s.ControllerStatus))
	for id := range s.ControllerStatus {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Inputs builds the playset's inputs argument in controller-ID order.
func (s *State) Inputs() []playset.Input {
	ids := s.sortedControllerIDs()
	inputs := make([]playset.Input, 0, len(ids))
	for _, id := range ids {
		inputs = append(inputs, playset.Input{Controller: id, Input: s.ControllerStatus[id].LastInputString})
	}
	return inputs
}
