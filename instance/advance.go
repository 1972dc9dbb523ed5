package instance

import (
	"fmt"
	"time"

	"github.com/horizonrelay/horizon/event"
	"github.com/horizonrelay/horizon/wire"
)

// FatalError marks the "internal invariant violation" halt condition: a
// frame-input event referenced a controller absent from controller_status.
// This indicates a sort-order or lifecycle bug and the instance must stop
// ticking.
type FatalError struct {
	Instance string
	Detail   string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("instance %s: fatal invariant violation: %s", e.Instance, e.Detail)
}

// LifecycleHooks lets the advancer reach into the controller roster
// without instance importing controller, avoiding an import cycle. A
// disconnect crossing the horizon may promote a waiting INBOX controller
// to LIVE and must always clear any OUTBOX bookkeeping for the username.
type LifecycleHooks interface {
	PromoteInbox(instanceName, username string, presentFrame uint64) (controllerID int, sub Subscriber, ok bool)
	ClearOutbox(instanceName, username string)
}

// Tick runs the catch-up loop: while now is at or past the next frame
// deadline, advance one frame. It returns the number of frames advanced.
// A non-nil error is either a *FatalError or a wrapped error from the
// playset's Advance; either way the caller must stop scheduling further
// ticks for this instance.
func (s *State) Tick(now time.Time, hooks LifecycleHooks) (advanced int, err error) {
	for !now.Before(s.nextDeadline()) {
		if err := s.advanceOneFrame(hooks); err != nil {
			return advanced, err
		}
		advanced++
	}
	return advanced, nil
}

func (s *State) nextDeadline() time.Time {
	return s.PastHorizonPerfTime.Add(time.Duration(s.cfg.PastHorizonFrames+1) * frameDuration(s.cfg.FrameRate))
}

// advanceOneFrame runs one full frame-advancement step: drain the event
// bucket, apply connects/commands/frame-inputs/disconnects in canonical
// order, then move the clock forward.
func (s *State) advanceOneFrame(hooks LifecycleHooks) error {
	frame := s.PastHorizonFrame

	// 1. Extract the event bucket for past_horizon_frame.
	bucket := s.Events[frame]
	delete(s.Events, frame)

	// 2. Sort the bucket by the canonical order.
	event.SortBucket(bucket)

	// 3. Partition into connects, commands, frame-inputs, disconnects.
	connects, commands, frames, disconnects := event.Partition(bucket)

	// 4. For each connect, record {username, ""} before invocation.
	for _, c := range connects {
		s.ControllerStatus[c.Controller] = &ControllerStatus{Username: c.Username}
	}

	// 5/6. Frame-input events must reference a known controller; update
	// last_input_string.
	for _, f := range frames {
		cs, ok := s.ControllerStatus[f.Controller]
		if !ok {
			return &FatalError{
				Instance: s.Name,
				Detail:   fmt.Sprintf("frame event at frame %d from unknown controller %d", frame, f.Controller),
			}
		}
		cs.LastInputString = f.Input
	}

	// 7. Build the playset inputs argument in ascending controller order.
	inputs := s.Inputs()

	// 8. Call playset.advance; it may only mutate state.
	newState, err := s.Playset.Advance(s.PastHorizonState, connects, commands, inputs, disconnects)
	if err != nil {
		return fmt.Errorf("instance %s: playset advance at frame %d: %w", s.Name, frame, err)
	}
	s.PastHorizonState = newState

	// 9. For each disconnect, remove the roster entry; promote a waiting
	// INBOX controller for the same username, and clear any OUTBOX record.
	presentFrame := s.PresentFrame()
	for _, d := range disconnects {
		cs, ok := s.ControllerStatus[d.Controller]
		if !ok {
			continue
		}
		username := cs.Username
		delete(s.ControllerStatus, d.Controller)

		if hooks != nil {
			if controllerID, sub, promoted := hooks.PromoteInbox(s.Name, username, presentFrame); promoted {
				s.ControllerStatus[controllerID] = &ControllerStatus{Username: username}
				s.Subscribers[controllerID] = sub
				s.AdmitEvent(event.Connect(presentFrame, controllerID, username, ""))
			}
			hooks.ClearOutbox(s.Name, username)
		}
	}

	// 10. Advance the frame counter and clock.
	s.PastHorizonFrame++
	s.PastHorizonPerfTime = s.PastHorizonPerfTime.Add(frameDuration(s.cfg.FrameRate))

	// 11. Hash-sync or frame-broadcast notice, on schedule.
	s.maybeNotify()

	return nil
}

func (s *State) maybeNotify() {
	frame := s.PastHorizonFrame
	var msg wire.FrameAdvance

	switch {
	case s.cfg.HashSyncInterval > 0 && frame%s.cfg.HashSyncInterval == 0:
		h, err := s.Playset.Hash(s.PastHorizonState)
		if err != nil {
			// A hash failure is a playset defect, not a core fault; fall
			// back to a plain frame-advance notice.
			msg = wire.FrameAdvance{K: "F", F: frame}
			break
		}
		msg = wire.FrameAdvance{K: "F", F: frame, Hash: &h}
	case s.cfg.FrameBroadcastInterval > 0 && frame%s.cfg.FrameBroadcastInterval == 0:
		msg = wire.FrameAdvance{K: "F", F: frame}
	default:
		return
	}

	for _, sub := range s.Subscribers {
		if err := sub.Send(msg); err != nil {
			sub.CloseWithError("send failed")
		}
	}
}

// SettleSuspension applies the post-tick suspend rule: if there are no
// pending events and no subscribers, suspend; otherwise the caller should
// schedule the next tick at NextDeadline.
func (s *State) SettleSuspension() {
	if len(s.Events) == 0 && len(s.Subscribers) == 0 {
		s.Suspended = true
	}
}

// NextDeadline is the perf-time at which the next tick should fire,
// clamped by the caller to >= now (no pacing-ahead).
func (s *State) NextDeadline() time.Time {
	return s.nextDeadline()
}

// Unsuspend applies the unsuspend semantics: on transition from suspended
// to running, pull past_horizon_perf_time forward so a long idle period
// doesn't trigger burst catch-up.
func (s *State) Unsuspend(now time.Time) {
	floor := now.Add(-time.Duration(s.cfg.PastHorizonFrames) * frameDuration(s.cfg.FrameRate))
	if s.PastHorizonPerfTime.Before(floor) {
		s.PastHorizonPerfTime = floor
	}
	s.Suspended = false
}
