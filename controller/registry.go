package controller

import "sync"

// Registry indexes controllers by ID and by username, enforcing the rule
// that at most one LIVE controller per username may exist per server, and
// tracking the OUTBOX/INBOX holdover relationship across reconnects.
type Registry struct {
	mu sync.Mutex

	byID       map[int]*Controller
	nextID     int
	liveByUser map[string]*Controller // username -> LIVE controller
	outbox     map[string]*Controller // username -> OUTBOX controller awaiting horizon crossing
	inbox      map[string]*Controller // username -> INBOX controller waiting on outbox
}

// NewRegistry returns an empty registry, with IDs allocated starting at
// firstID (snapshots persist nextControllerID so restarts don't reuse ids).
func NewRegistry(firstID int) *Registry {
	return &Registry{
		byID:       make(map[int]*Controller),
		nextID:     firstID,
		liveByUser: make(map[string]*Controller),
		outbox:     make(map[string]*Controller),
		inbox:      make(map[string]*Controller),
	}
}

// Accept registers a newly connected socket and returns its fresh
// NEW-state Controller.
func (r *Registry) Accept(t Transport) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	c := New(id, t)
	r.byID[id] = c
	return c
}

// NextControllerID reports the next ID to be allocated, for snapshotting.
func (r *Registry) NextControllerID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextID
}

// Get returns the controller with the given ID, if live-tracked.
func (r *Registry) Get(id int) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	return c, ok
}

// LoginConflict reports the existing LIVE controller for username, if any
// — the "already logged in" case.
func (r *Registry) LoginConflict(username string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.liveByUser[username]
	return c, ok
}

// OutboxFor reports whether username has a pending OUTBOX controller —
// the condition that routes a new login to INBOX instead of LIVE.
func (r *Registry) OutboxFor(username string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.outbox[username]
	return c, ok
}

// MarkLive records c as the LIVE controller for username.
func (r *Registry) MarkLive(c *Controller, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liveByUser[username] = c
	delete(r.inbox, username)
}

// MarkInbox records c as the INBOX controller waiting for username's prior
// OUTBOX session to clear.
func (r *Registry) MarkInbox(c *Controller, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbox[username] = c
}

// MarkOutbox moves the current LIVE controller for username to OUTBOX
// bookkeeping; its username stays indexed so new logins still see the
// conflict.
func (r *Registry) MarkOutbox(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.liveByUser[username]; ok {
		r.outbox[username] = c
		delete(r.liveByUser, username)
	}
}

// PromoteInbox finds an INBOX controller waiting for username and records
// it as the username's LIVE controller, returning it. The server's
// instance.LifecycleHooks implementation calls this when a disconnect
// crosses the past horizon.
func (r *Registry) PromoteInbox(username string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.inbox[username]
	if !ok {
		return nil, false
	}
	delete(r.inbox, username)
	r.liveByUser[username] = c
	return c, true
}

// ClearOutbox deletes username's OUTBOX record once its Disconnect has
// crossed the past horizon.
func (r *Registry) ClearOutbox(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.outbox[username]; ok {
		c.MarkDead()
		delete(r.byID, c.ID)
	}
	delete(r.outbox, username)
}

// Remove deletes a controller from the ID index entirely (DEAD, never
// reconnecting under this ID again).
func (r *Registry) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}
