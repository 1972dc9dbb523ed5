// Package chat implements the peripheral global chat fan-out (one-way
// enqueue into every instance's loop) and the per-controller chat-token
// bucket. Throttling is purely per-controller (chat_tokens); there is no
// server-global chat rate, so one user's messages can never close
// another user's connection.
package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/horizonrelay/horizon/wire"
)

// Recipient is the minimal broadcast target chat needs.
type Recipient interface {
	ControllerID() int
	Send(v interface{}) error
	CloseWithError(reason string)
}

// TokenBucket tracks one controller's chat token balance (chat_tokens)
// and its replenishment timer, refilling one token per spent token.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   int
	capacity int
	refill   time.Duration
	onGrant  func()
}

// NewTokenBucket starts a controller with a full bucket.
func NewTokenBucket(capacity int, refill time.Duration, onGrant func()) *TokenBucket {
	return &TokenBucket{tokens: capacity, capacity: capacity, refill: refill, onGrant: onGrant}
}

// Spend consumes one token if available, arming a timer to replenish it,
// and reports whether the spend succeeded.
func (b *TokenBucket) Spend() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	time.AfterFunc(b.refill, b.grant)
	return true
}

func (b *TokenBucket) grant() {
	b.mu.Lock()
	if b.tokens < b.capacity {
		b.tokens++
	}
	onGrant := b.onGrant
	b.mu.Unlock()
	if onGrant != nil {
		onGrant()
	}
}

// Balance returns the current token count, for the initial snapshot's "m"
// field.
func (b *TokenBucket) Balance() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Hub fans a chat message out to every LIVE controller across every
// instance, independent of which instance the sender belongs to.
type Hub struct {
	mu        sync.RWMutex
	maxBytes  int
	listeners map[int]Recipient
}

// NewHub returns a chat hub with messages capped at maxBytes. Rate
// limiting is each sender's own TokenBucket, spent by the caller before
// Publish is invoked; the hub itself never throttles.
func NewHub(maxBytes int) *Hub {
	return &Hub{
		maxBytes:  maxBytes,
		listeners: make(map[int]Recipient),
	}
}

// Join registers a LIVE controller to receive global chat relays.
func (h *Hub) Join(r Recipient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[r.ControllerID()] = r
}

// Leave removes a controller from chat fan-out (disconnect/suspend).
func (h *Hub) Leave(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, id)
}

// Publish validates and fans out a chat message from sender. The caller is
// expected to have already spent a token from the sender's TokenBucket.
func (h *Hub) Publish(senderID int, username, message string) error {
	if len(message) > h.maxBytes {
		return fmt.Errorf("chat: message exceeds %d bytes", h.maxBytes)
	}

	h.mu.RLock()
	targets := make([]Recipient, 0, len(h.listeners))
	for _, r := range h.listeners {
		targets = append(targets, r)
	}
	h.mu.RUnlock()

	out := wire.ChatOut{K: "g", C: senderID, U: username, M: message}
	for _, r := range targets {
		if err := r.Send(out); err != nil {
			r.CloseWithError("chat send failed: " + err.Error())
		}
	}
	return nil
}
