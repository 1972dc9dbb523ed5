// Package broadcast fans out admitted events to an instance's
// subscribers, generalized from a fixed connection set to the relay's
// event/wire model.
package broadcast

import (
	"time"

	"github.com/horizonrelay/horizon/clock"
	"github.com/horizonrelay/horizon/event"
	"github.com/horizonrelay/horizon/instance"
	"github.com/horizonrelay/horizon/wire"
)

// Event fans ev out to every LIVE subscriber of inst. If the sender is
// among the subscribers and ev is a Frame event, the sender's own copy is
// augmented with a fresh timing pong (re-serialised only for that one
// recipient); everyone else gets the plain relay. Send failure on a
// subscriber triggers its error-close but never aborts the fan-out to the
// rest.
func Event(inst *instance.State, ev event.Event, senderID int, now time.Time) {
	plain := toWire(ev, nil)

	for id, sub := range inst.Subscribers {
		msg := plain
		if ev.Kind == event.KindFrame && id == senderID {
			zero := clock.ZeroInstant(inst.PastHorizonFrame, inst.PastHorizonPerfTime, inst.FrameRate())
			pong := clock.TimingPong(now, zero)
			msg = toWire(ev, &pong)
		}
		if err := sub.Send(msg); err != nil {
			sub.CloseWithError("send failed: " + err.Error())
		}
	}
}

func toWire(ev event.Event, pong *int64) interface{} {
	switch ev.Kind {
	case event.KindConnect:
		return wire.RelayedConnect{K: "c", Frame: ev.Frame, C: ev.Controller, Username: ev.Username, Profile: ev.Profile}
	case event.KindCommand:
		return wire.RelayedCommand{K: "o", Frame: ev.Frame, C: ev.Controller, S: ev.Serial, O: ev.Verb, A: ev.Arg}
	case event.KindFrame:
		return wire.RelayedFrame{K: "f", Frame: ev.Frame, C: ev.Controller, I: ev.Input, T: pong}
	case event.KindDisconnect:
		return wire.RelayedDisconnect{K: "d", Frame: ev.Frame, C: ev.Controller}
	default:
		return nil
	}
}
