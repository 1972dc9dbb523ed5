package validator

import (
	"net"
	"testing"
	"time"

	"github.com/horizonrelay/horizon/controller"
	"github.com/horizonrelay/horizon/event"
	"github.com/horizonrelay/horizon/instance"
	"github.com/horizonrelay/horizon/playset/jsonplayset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "fake" }
func (fakeAddr) String() string  { return "127.0.0.1:1" }

type fakeTransport struct{ sent []interface{} }

func (f *fakeTransport) Send(v interface{}) error { f.sent = append(f.sent, v); return nil }
func (f *fakeTransport) Close() error              { return nil }
func (f *fakeTransport) RemoteAddr() net.Addr      { return fakeAddr{} }

func newTestInstance(t *testing.T) *instance.State {
	t.Helper()
	cfg := instance.HorizonConfig{FrameRate: 30, PastHorizonFrames: 15, FutureHorizonFrames: 45}
	return instance.New("room-a", jsonplayset.NewEcho(), nil, nil, time.Now(), cfg)
}

func liveController(t *testing.T, inst *instance.State) *controller.Controller {
	t.Helper()
	c := controller.New(1, &fakeTransport{})
	c.PromoteToLive(inst.Name, "alice", inst.PresentFrame())
	return c
}

func TestValidateFrame_AcceptsWithinWindow(t *testing.T) {
	inst := newTestInstance(t)
	c := liveController(t, inst)

	ev, echoOnly, err := ValidateFrame(inst, c, inst.PresentFrame(), "left")
	require.NoError(t, err)
	assert.False(t, echoOnly)
	assert.Equal(t, event.KindFrame, ev.Kind)
	assert.Equal(t, "left", ev.Input)
	assert.Equal(t, inst.PresentFrame()+1, c.MinFrameNumber)
}

func TestValidateFrame_RejectsNotLive(t *testing.T) {
	inst := newTestInstance(t)
	c := controller.New(1, &fakeTransport{})
	_, _, err := ValidateFrame(inst, c, inst.PresentFrame(), "left")
	assert.Error(t, err)
}

func TestValidateFrame_RejectsBelowMinFrameNumber(t *testing.T) {
	inst := newTestInstance(t)
	c := liveController(t, inst)
	c.MinFrameNumber = inst.PresentFrame() + 5
	_, _, err := ValidateFrame(inst, c, inst.PresentFrame(), "left")
	assert.Error(t, err)
}

func TestValidateFrame_RejectsBeyondFutureHorizon(t *testing.T) {
	inst := newTestInstance(t)
	c := liveController(t, inst)
	_, _, err := ValidateFrame(inst, c, inst.FutureHorizon()+1, "left")
	assert.Error(t, err)
}

func TestValidateFrame_DropsSilentlyBelowPastHorizon(t *testing.T) {
	inst := newTestInstance(t)
	c := liveController(t, inst)
	c.MinFrameNumber = 0
	_, _, err := ValidateFrame(inst, c, 0, "left")
	assert.ErrorIs(t, err, ErrDropSilently)
}

func TestValidateFrame_EchoOnlyWhenInputUnchanged(t *testing.T) {
	inst := newTestInstance(t)
	c := liveController(t, inst)
	c.LastFrameInput = "left"
	_, echoOnly, err := ValidateFrame(inst, c, inst.PresentFrame(), "left")
	require.NoError(t, err)
	assert.True(t, echoOnly)
}

func TestValidateFrame_RejectsOverlongInput(t *testing.T) {
	inst := newTestInstance(t)
	c := liveController(t, inst)
	long := make([]byte, 1000)
	_, _, err := ValidateFrame(inst, c, inst.PresentFrame(), string(long))
	assert.Error(t, err)
}

func TestValidateCommand_RejectsUnacceptedVerb(t *testing.T) {
	inst := newTestInstance(t)
	c := liveController(t, inst)
	_, err := ValidateCommand(inst, c, inst.PresentFrame(), 1, "anything", "")
	assert.Error(t, err, "echo playset accepts no commands")
}

// moveAcceptingPlayset is Echo with "move" declared as a command verb, so
// the serial check is reached instead of the verb check rejecting first.
type moveAcceptingPlayset struct {
	jsonplayset.Echo
}

func (moveAcceptingPlayset) CommandRateLimit(verb string) (float64, bool) {
	if verb == "move" {
		return 10, true
	}
	return 0, false
}

func TestValidateCommand_RejectsNonIncreasingSerial(t *testing.T) {
	cfg := instance.HorizonConfig{FrameRate: 30, PastHorizonFrames: 15, FutureHorizonFrames: 45}
	inst := instance.New("room-a", moveAcceptingPlayset{}, nil, nil, time.Now(), cfg)
	c := liveController(t, inst)
	c.LastCommandSerial = 5
	_, err := ValidateCommand(inst, c, inst.PresentFrame(), 5, "move", "")
	assert.ErrorContains(t, err, "serial")
}

func TestValidateCommand_NewFrameResetsWindow(t *testing.T) {
	inst := newTestInstance(t)
	c := liveController(t, inst)
	c.MinFrameNumber = inst.PresentFrame()
	c.LastCommandSerial = 100
	// Advancing to a later frame within the window must reset LastCommandSerial
	// before the serial check runs, even though the verb itself is still
	// rejected by this playset.
	_, err := ValidateCommand(inst, c, inst.PresentFrame()+1, 1, "anything", "")
	assert.Error(t, err)
	assert.Equal(t, inst.PresentFrame()+1, c.MinFrameNumber)
	assert.Equal(t, int64(0), c.LastCommandSerial)
}
