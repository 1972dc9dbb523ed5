// Package clock maps monotonic time to frame numbers for an instance and
// produces the timing-pong values clients use to estimate server time.
package clock

import "time"

// FrameDuration is how long a single frame spans, given the server frame
// rate F (frames per second).
func FrameDuration(frameRate int) time.Duration {
	return time.Second / time.Duration(frameRate)
}

// ZeroInstant returns the fictional zero instant of an instance: the moment
// at which frame 0 would have occurred, derived from the past horizon
// frame/time pair.
func ZeroInstant(pastHorizonFrame uint64, pastHorizonPerfTime time.Time, frameRate int) time.Time {
	offset := time.Duration(pastHorizonFrame) * FrameDuration(frameRate)
	return pastHorizonPerfTime.Add(-offset)
}

// TimingPong is floor(now - zero) in milliseconds.
func TimingPong(now, zero time.Time) int64 {
	return now.Sub(zero).Milliseconds()
}

// PresentFrame is pastHorizonFrame + pastHorizonFrames.
func PresentFrame(pastHorizonFrame uint64, pastHorizonFrames int) uint64 {
	return pastHorizonFrame + uint64(pastHorizonFrames)
}

// FutureHorizon is the strictest future frame a client may stamp: present +
// futureHorizonFrames.
func FutureHorizon(presentFrame uint64, futureHorizonFrames int) uint64 {
	return presentFrame + uint64(futureHorizonFrames)
}

// NextDeadline is the perf-time at which the advancer should next fire for
// the frame currently at pastHorizonFrame: past_horizon_perf_time +
// (PAST_HORIZON_FRAMES + 1) * frame-duration.
func NextDeadline(pastHorizonPerfTime time.Time, pastHorizonFrames, frameRate int) time.Time {
	return pastHorizonPerfTime.Add(time.Duration(pastHorizonFrames+1) * FrameDuration(frameRate))
}

// UnsuspendPerfTime computes the past_horizon_perf_time to adopt when an
// instance transitions from suspended to running: never let a long idle
// period trigger burst catch-up.
func UnsuspendPerfTime(current, now time.Time, pastHorizonFrames, frameRate int) time.Time {
	floor := now.Add(-time.Duration(pastHorizonFrames) * FrameDuration(frameRate))
	if current.After(floor) {
		return current
	}
	return floor
}
