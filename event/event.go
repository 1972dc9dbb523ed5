// Package event defines the admitted-event tagged union and the canonical
// total order used when the horizon advancer sorts a frame's bucket.
package event

import "sort"

// Kind tags an Event's variant. The numeric ordering here doubles as the
// primary sort key: Connect < Command < Frame < Disconnect.
type Kind int

const (
	KindConnect Kind = iota
	KindCommand
	KindFrame
	KindDisconnect
)

// Event is a single admitted client action stamped to a frame. Exactly the
// fields relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind       Kind
	Frame      uint64
	Controller int

	// Connect
	Username string
	Profile  string

	// Command
	Serial int64
	Verb   string
	Arg    string

	// Frame
	Input string
}

// Connect constructs a Connect event.
func Connect(frame uint64, controller int, username, profile string) Event {
	return Event{Kind: KindConnect, Frame: frame, Controller: controller, Username: username, Profile: profile}
}

// Command constructs a Command event.
func Command(frame uint64, controller int, serial int64, verb, arg string) Event {
	return Event{Kind: KindCommand, Frame: frame, Controller: controller, Serial: serial, Verb: verb, Arg: arg}
}

// Frame constructs a Frame (per-frame input) event.
func Frame(frame uint64, controller int, input string) Event {
	return Event{Kind: KindFrame, Frame: frame, Controller: controller, Input: input}
}

// Disconnect constructs a Disconnect event.
func Disconnect(frame uint64, controller int) Event {
	return Event{Kind: KindDisconnect, Frame: frame, Controller: controller}
}

// Less implements the canonical total order for events within the same
// frame: kind, then controller ID, then (for Command only) serial.
func Less(a, b Event) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Controller != b.Controller {
		return a.Controller < b.Controller
	}
	if a.Kind == KindCommand && a.Serial != b.Serial {
		return a.Serial < b.Serial
	}
	return false
}

// SortBucket sorts a frame's event bucket into canonical order in place.
func SortBucket(bucket []Event) {
	sort.SliceStable(bucket, func(i, j int) bool {
		return Less(bucket[i], bucket[j])
	})
}

// Partition splits an already-sorted bucket into its four canonical
// sub-sequences, preserving relative order within each.
func Partition(bucket []Event) (connects, commands, frames, disconnects []Event) {
	for _, e := range bucket {
		switch e.Kind {
		case KindConnect:
			connects = append(connects, e)
		case KindCommand:
			commands = append(commands, e)
		case KindFrame:
			frames = append(frames, e)
		case KindDisconnect:
			disconnects = append(disconnects, e)
		}
	}
	return
}

// Duplicate reports whether two events of the same kind/controller/frame
// collide on serial (Command): no two events of the same kind from the
// same controller in the same frame may share a serial.
func Duplicate(a, b Event) bool {
	if a.Kind != b.Kind || a.Controller != b.Controller || a.Frame != b.Frame {
		return false
	}
	if a.Kind == KindCommand {
		return a.Serial == b.Serial
	}
	return true
}
