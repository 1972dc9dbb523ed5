// Package controller implements the per-connection lifecycle: state
// machine, rate limits, last-acked frame/command, and the inactivity
// timeout, as a login-session abstraction independent of any one
// playset.
package controller

import (
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Lifecycle is the controller connection state machine.
type Lifecycle int

const (
	StateNew Lifecycle = iota
	StateInbox
	StateLive
	StateOutbox
	StateDead
)

func (l Lifecycle) String() string {
	switch l {
	case StateNew:
		return "NEW"
	case StateInbox:
		return "INBOX"
	case StateLive:
		return "LIVE"
	case StateOutbox:
		return "OUTBOX"
	case StateDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// Transport is the minimal interface a controller needs over its socket,
// so tests can supply a fake in place of a real websocket.
type Transport interface {
	Send(v interface{}) error
	Close() error
	RemoteAddr() net.Addr
}

// Controller is one login session: one connection, one player seat.
type Controller struct {
	mu sync.Mutex

	ID         int
	Transport  Transport
	RemoteAddr string
	State      Lifecycle

	Instance string
	Username string

	MinFrameNumber    uint64
	LastCommandSerial int64
	LastFrameInput    string
	ChatTokens        int

	rateCounters map[string]*rate.Limiter
	rateCaps     map[string]float64

	timeoutTimer    *time.Timer
	timeoutDuration time.Duration
	onTimeout       func(c *Controller)
}

// New constructs a NEW-state controller for a freshly accepted socket.
func New(id int, t Transport) *Controller {
	addr := "unknown"
	if t != nil {
		if a := t.RemoteAddr(); a != nil {
			addr = a.String()
		}
	}
	return &Controller{
		ID:           id,
		Transport:    t,
		RemoteAddr:   addr,
		State:        StateNew,
		rateCounters: make(map[string]*rate.Limiter),
		rateCaps:     make(map[string]float64),
	}
}

// ControllerID implements instance.Subscriber.
func (c *Controller) ControllerID() int { return c.ID }

// Send serializes v and writes it to the transport. Implements
// instance.Subscriber.
func (c *Controller) Send(v interface{}) error {
	if c.Transport == nil {
		return fmt.Errorf("controller %d: no transport", c.ID)
	}
	return c.Transport.Send(v)
}

// CloseWithError closes the transport and marks the controller DEAD. The
// reason is not sent to the client; callers that owe the client an "E"
// message send it before calling this. Implements instance.Subscriber.
func (c *Controller) CloseWithError(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.State = StateDead
	c.stopTimeoutLocked()
	if c.Transport != nil {
		_ = c.Transport.Close()
	}
}

// PromoteToLive transitions NEW or INBOX to LIVE on successful login.
func (c *Controller) PromoteToLive(instance, username string, minFrame uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.State = StateLive
	c.Instance = instance
	c.Username = username
	c.MinFrameNumber = minFrame
	c.LastCommandSerial = 0
	c.ResetRateCountersLocked()
}

// EnterInbox transitions to INBOX: login succeeded but a prior OUTBOX
// session for the same username hasn't crossed the horizon yet. INBOX
// controllers have their inactivity timeout disarmed.
func (c *Controller) EnterInbox(instance, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.State = StateInbox
	c.Instance = instance
	c.Username = username
	c.stopTimeoutLocked()
}

// EnterOutbox transitions to OUTBOX on socket close/error/timeout/kick.
func (c *Controller) EnterOutbox() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.State = StateOutbox
	c.stopTimeoutLocked()
}

// MarkDead finalizes the controller once its Disconnect event has crossed
// the past horizon.
func (c *Controller) MarkDead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.State = StateDead
}

// IsLive reports whether the controller is currently LIVE.
func (c *Controller) IsLive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.State == StateLive
}

// SetRateCap declares the per-verb command rate cap, from the playset's
// command-limit map.
func (c *Controller) SetRateCap(verb string, perSecond float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rateCaps[verb] = perSecond
}

// AllowVerb consumes one token from verb's rate counter, creating it
// lazily from the declared cap. Returns false if the cap is exceeded.
func (c *Controller) AllowVerb(verb string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cap, declared := c.rateCaps[verb]
	if !declared {
		return false
	}
	lim, ok := c.rateCounters[verb]
	if !ok {
		burst := int(cap)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(cap), burst)
		c.rateCounters[verb] = lim
	}
	return lim.Allow()
}

// ResetRateCountersLocked clears the per-verb rate counters — the "new
// frame's window has opened" reset. LastCommandSerial is not touched here;
// callers zero it themselves. Caller must hold mu.
func (c *Controller) ResetRateCountersLocked() {
	c.rateCounters = make(map[string]*rate.Limiter)
}

// ResetRateCounters is the exported, locking form.
func (c *Controller) ResetRateCounters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ResetRateCountersLocked()
}

// ArmTimeout (re)starts the inactivity timeout, calling onExpire if it
// fires before the next reset or stop.
func (c *Controller) ArmTimeout(d time.Duration, onExpire func(c *Controller)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeoutDuration = d
	c.onTimeout = onExpire
	c.armTimeoutLocked()
}

// RefreshTimeout re-arms the inactivity timeout using the duration and
// callback last passed to ArmTimeout. Every admitted frame or command
// must call this so an actively playing session never times out.
func (c *Controller) RefreshTimeout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeoutTimer == nil {
		return
	}
	c.armTimeoutLocked()
}

func (c *Controller) armTimeoutLocked() {
	c.stopTimeoutLocked()
	c.timeoutTimer = time.AfterFunc(c.timeoutDuration, func() {
		if c.onTimeout != nil {
			c.onTimeout(c)
		}
	})
}

func (c *Controller) stopTimeoutLocked() {
	if c.timeoutTimer != nil {
		c.timeoutTimer.Stop()
		c.timeoutTimer = nil
	}
}

// StopTimeout cancels the inactivity timeout explicitly (lifecycle
// transition to DEAD or OUTBOX).
func (c *Controller) StopTimeout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimeoutLocked()
}
