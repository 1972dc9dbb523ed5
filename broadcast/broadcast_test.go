package broadcast

import (
	"errors"
	"testing"
	"time"

	"github.com/horizonrelay/horizon/event"
	"github.com/horizonrelay/horizon/instance"
	"github.com/horizonrelay/horizon/playset/jsonplayset"
	"github.com/horizonrelay/horizon/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	id       int
	sent     []interface{}
	sendErr  error
	closedAs string
}

func (f *fakeSubscriber) ControllerID() int { return f.id }

func (f *fakeSubscriber) Send(v interface{}) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeSubscriber) CloseWithError(reason string) { f.closedAs = reason }

func newTestInstance(t *testing.T) *instance.State {
	t.Helper()
	cfg := instance.HorizonConfig{FrameRate: 30, PastHorizonFrames: 15, FutureHorizonFrames: 45}
	return instance.New("room-a", jsonplayset.NewEcho(), nil, nil, time.Now(), cfg)
}

func TestEvent_FansOutToAllSubscribers(t *testing.T) {
	inst := newTestInstance(t)
	s1 := &fakeSubscriber{id: 1}
	s2 := &fakeSubscriber{id: 2}
	inst.Subscribers[1] = s1
	inst.Subscribers[2] = s2

	Event(inst, event.Connect(1, 1, "alice", ""), 1, time.Now())

	require.Len(t, s1.sent, 1)
	require.Len(t, s2.sent, 1)
	assert.IsType(t, wire.RelayedConnect{}, s1.sent[0])
}

func TestEvent_SenderGetsTimingPongOnFrameEvents(t *testing.T) {
	inst := newTestInstance(t)
	s1 := &fakeSubscriber{id: 1}
	s2 := &fakeSubscriber{id: 2}
	inst.Subscribers[1] = s1
	inst.Subscribers[2] = s2

	Event(inst, event.Frame(1, 1, "left"), 1, time.Now())

	senderMsg := s1.sent[0].(wire.RelayedFrame)
	otherMsg := s2.sent[0].(wire.RelayedFrame)
	require.NotNil(t, senderMsg.T, "the sender's own Frame relay carries a timing pong")
	assert.Nil(t, otherMsg.T, "non-sender subscribers get the plain relay with no pong")
}

func TestEvent_SendFailureClosesOnlyThatSubscriber(t *testing.T) {
	inst := newTestInstance(t)
	s1 := &fakeSubscriber{id: 1, sendErr: errors.New("broken pipe")}
	s2 := &fakeSubscriber{id: 2}
	inst.Subscribers[1] = s1
	inst.Subscribers[2] = s2

	Event(inst, event.Connect(1, 1, "alice", ""), 1, time.Now())

	assert.NotEmpty(t, s1.closedAs)
	assert.Empty(t, s2.closedAs)
	assert.Len(t, s2.sent, 1, "one subscriber's failure must not abort the rest of the fan-out")
}
