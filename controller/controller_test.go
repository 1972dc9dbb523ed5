package controller

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAddr and fakeTransport are a minimal in-memory stand-in for a real
// websocket connection.
type fakeAddr struct{ s string }

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return a.s }

type fakeTransport struct {
	mu     sync.Mutex
	sent   []interface{}
	closed bool
	sendErr error
}

func (f *fakeTransport) Send(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) RemoteAddr() net.Addr { return fakeAddr{"127.0.0.1:1"} }

func TestNew_StartsInNewState(t *testing.T) {
	c := New(1, &fakeTransport{})
	assert.Equal(t, StateNew, c.State)
	assert.Equal(t, 1, c.ControllerID())
	assert.Equal(t, "127.0.0.1:1", c.RemoteAddr)
}

func TestPromoteToLive(t *testing.T) {
	c := New(1, &fakeTransport{})
	c.PromoteToLive("room-a", "alice", 42)
	assert.Equal(t, StateLive, c.State)
	assert.True(t, c.IsLive())
	assert.Equal(t, "room-a", c.Instance)
	assert.Equal(t, "alice", c.Username)
	assert.Equal(t, uint64(42), c.MinFrameNumber)
}

func TestEnterInbox_DisarmsTimeout(t *testing.T) {
	c := New(1, &fakeTransport{})
	fired := false
	c.ArmTimeout(5*time.Millisecond, func(c *Controller) { fired = true })
	c.EnterInbox("room-a", "alice")
	assert.Equal(t, StateInbox, c.State)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, fired, "EnterInbox must stop the inactivity timer")
}

func TestEnterOutboxAndMarkDead(t *testing.T) {
	c := New(1, &fakeTransport{})
	c.PromoteToLive("room-a", "alice", 0)
	c.EnterOutbox()
	assert.Equal(t, StateOutbox, c.State)
	assert.False(t, c.IsLive())
	c.MarkDead()
	assert.Equal(t, StateDead, c.State)
}

func TestCloseWithError_ClosesTransportAndMarksDead(t *testing.T) {
	ft := &fakeTransport{}
	c := New(1, ft)
	c.CloseWithError("boom")
	assert.Equal(t, StateDead, c.State)
	assert.True(t, ft.closed)
}

func TestSend_NoTransportErrors(t *testing.T) {
	c := New(1, nil)
	err := c.Send("hi")
	require.Error(t, err)
}

func TestAllowVerb_UndeclaredVerbDenied(t *testing.T) {
	c := New(1, &fakeTransport{})
	assert.False(t, c.AllowVerb("move"))
}

func TestAllowVerb_RespectsBurstCap(t *testing.T) {
	c := New(1, &fakeTransport{})
	c.SetRateCap("move", 2)
	assert.True(t, c.AllowVerb("move"))
	assert.True(t, c.AllowVerb("move"))
	assert.False(t, c.AllowVerb("move"), "burst of 2 tokens/sec should be exhausted after 2 immediate calls")
}

func TestResetRateCounters_ClearsState(t *testing.T) {
	c := New(1, &fakeTransport{})
	c.SetRateCap("move", 1)
	assert.True(t, c.AllowVerb("move"))
	assert.False(t, c.AllowVerb("move"))
	c.ResetRateCounters()
	assert.True(t, c.AllowVerb("move"), "reset should rebuild the limiter fresh")
}

func TestArmTimeout_FiresOnExpiry(t *testing.T) {
	c := New(1, &fakeTransport{})
	done := make(chan struct{})
	c.ArmTimeout(5*time.Millisecond, func(c *Controller) { close(done) })
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout did not fire")
	}
}

func TestRefreshTimeout_DelaysExpiryPastOriginalDeadline(t *testing.T) {
	c := New(1, &fakeTransport{})
	fireCount := 0
	c.ArmTimeout(30*time.Millisecond, func(c *Controller) { fireCount++ })

	// Keep refreshing, simulating a steady stream of admitted frames,
	// each well before the original 30ms deadline would have elapsed.
	for i := 0; i < 4; i++ {
		time.Sleep(15 * time.Millisecond)
		c.RefreshTimeout()
	}
	assert.Equal(t, 0, fireCount, "an actively refreshed controller must not time out")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, fireCount, "the timeout must still fire once refreshing stops")
}

func TestRefreshTimeout_NoopWhenNotArmed(t *testing.T) {
	c := New(1, &fakeTransport{})
	assert.NotPanics(t, func() { c.RefreshTimeout() })
}

func TestStopTimeout_PreventsFiring(t *testing.T) {
	c := New(1, &fakeTransport{})
	fired := false
	c.ArmTimeout(5*time.Millisecond, func(c *Controller) { fired = true })
	c.StopTimeout()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, fired)
}

func TestLifecycleString(t *testing.T) {
	cases := map[Lifecycle]string{
		StateNew:     "NEW",
		StateInbox:   "INBOX",
		StateLive:    "LIVE",
		StateOutbox:  "OUTBOX",
		StateDead:    "DEAD",
		Lifecycle(99): "UNKNOWN",
	}
	for state, want := range cases {
		t.Run(fmt.Sprintf("Lifecycle(%d)", state), func(t *testing.T) {
			assert.Equal(t, want, state.String())
		})
	}
}
