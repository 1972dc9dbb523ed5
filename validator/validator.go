// Package validator implements the inbound admission cascade: each client
// frame/command message is checked in order, with failure at any step
// either closing the connection with an error or, for lagged messages,
// silently dropping.
package validator

import (
	"errors"
	"fmt"

	"github.com/horizonrelay/horizon/controller"
	"github.com/horizonrelay/horizon/event"
	"github.com/horizonrelay/horizon/instance"
)

// ErrDropSilently signals that the message is too lagged to admit but
// must not produce an error or close the connection.
var ErrDropSilently = errors.New("validator: silently dropped")

// ValidateFrame runs the admission cascade for an inbound Frame ("f")
// message and returns the admitted event plus whether it should
// additionally be echoed only to the sender (same as last_frame_input).
func ValidateFrame(inst *instance.State, c *controller.Controller, frame uint64, input string) (ev event.Event, echoOnly bool, err error) {
	if !c.IsLive() {
		return event.Event{}, false, fmt.Errorf("controller not LIVE")
	}
	if frame < c.MinFrameNumber {
		return event.Event{}, false, fmt.Errorf("frame %d below min_frame_number %d", frame, c.MinFrameNumber)
	}
	if frame > inst.FutureHorizon() {
		return event.Event{}, false, fmt.Errorf("frame %d exceeds future horizon %d", frame, inst.FutureHorizon())
	}
	if frame < inst.PastHorizonFrame {
		return event.Event{}, false, ErrDropSilently
	}

	maxLen := inst.Playset.MaxInputLength()
	if maxLen > 0 && len(input) > maxLen {
		return event.Event{}, false, fmt.Errorf("input length %d exceeds cap %d", len(input), maxLen)
	}

	echoOnly = input == c.LastFrameInput

	// Step 9: admission side effects.
	c.MinFrameNumber = frame + 1
	c.ResetRateCounters()
	c.LastCommandSerial = 0
	c.LastFrameInput = input

	return event.Frame(frame, c.ID, input), echoOnly, nil
}

// ValidateCommand runs the admission cascade for an inbound Command ("o")
// message.
func ValidateCommand(inst *instance.State, c *controller.Controller, frame uint64, serial int64, verb, arg string) (ev event.Event, err error) {
	if !c.IsLive() {
		return event.Event{}, fmt.Errorf("controller not LIVE")
	}
	if frame < c.MinFrameNumber {
		return event.Event{}, fmt.Errorf("frame %d below min_frame_number %d", frame, c.MinFrameNumber)
	}
	if frame > inst.FutureHorizon() {
		return event.Event{}, fmt.Errorf("frame %d exceeds future horizon %d", frame, inst.FutureHorizon())
	}
	if frame < inst.PastHorizonFrame {
		return event.Event{}, ErrDropSilently
	}

	// Step 8: a later frame within the same window opens a fresh window
	// before the rest of step 7's checks apply.
	if frame > c.MinFrameNumber {
		c.MinFrameNumber = frame
		c.LastCommandSerial = 0
		c.ResetRateCounters()
	}

	rateCap, ok := inst.Playset.CommandRateLimit(verb)
	if !ok {
		return event.Event{}, fmt.Errorf("verb %q not accepted", verb)
	}
	if serial <= 0 || serial <= c.LastCommandSerial {
		return event.Event{}, fmt.Errorf("serial %d not greater than last %d", serial, c.LastCommandSerial)
	}
	maxArg := inst.Playset.MaxArgLength(verb)
	if maxArg > 0 && len(arg) > maxArg {
		return event.Event{}, fmt.Errorf("arg length %d exceeds cap %d", len(arg), maxArg)
	}
	c.SetRateCap(verb, rateCap)
	if !c.AllowVerb(verb) {
		return event.Event{}, fmt.Errorf("rate cap exceeded for verb %q", verb)
	}

	c.LastCommandSerial = serial

	return event.Command(frame, c.ID, serial, verb, arg), nil
}
