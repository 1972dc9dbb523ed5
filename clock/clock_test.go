package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameDuration(t *testing.T) {
	assert.Equal(t, 1000*time.Millisecond/30, FrameDuration(30))
	assert.Equal(t, 20*time.Millisecond, FrameDuration(50))
}

func TestZeroInstantAndTimingPong(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)
	zero := ZeroInstant(100, base, 30)
	// frame 100 happened 100*frameDuration after the zero instant.
	assert.Equal(t, base, zero.Add(100*FrameDuration(30)))

	now := zero.Add(1500 * time.Millisecond)
	assert.Equal(t, int64(1500), TimingPong(now, zero))
}

func TestPresentFrameAndFutureHorizon(t *testing.T) {
	present := PresentFrame(10, 15)
	assert.Equal(t, uint64(25), present)
	assert.Equal(t, uint64(70), FutureHorizon(present, 45))
}

func TestNextDeadline(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deadline := NextDeadline(base, 15, 30)
	assert.Equal(t, base.Add(16*FrameDuration(30)), deadline)
}

func TestUnsuspendPerfTime_RecentKeepsCurrent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)
	current := now.Add(-1 * time.Second)
	got := UnsuspendPerfTime(current, now, 15, 30)
	assert.Equal(t, current, got)
}

func TestUnsuspendPerfTime_StaleClampsToFloor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)
	current := now.Add(-1 * time.Hour)
	floor := now.Add(-time.Duration(15) * FrameDuration(30))
	got := UnsuspendPerfTime(current, now, 15, 30)
	assert.Equal(t, floor, got)
}
