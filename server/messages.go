package server

import "github.com/horizonrelay/horizon/controller"

// NewConnectionRequest registers a freshly accepted socket with the core
// actor. Sent via engine.Ask so the connection handler can learn its
// controller before starting its read loop.
type NewConnectionRequest struct {
	Transport controller.Transport
}

// NewConnectionResponse is the Ask reply to NewConnectionRequest.
type NewConnectionResponse struct {
	Controller *controller.Controller
}

// InboundRaw carries one raw client message from a connection handler to
// the core actor.
type InboundRaw struct {
	ControllerID int
	Raw          []byte
}

// ConnectionClosed notifies the core actor that a socket closed, errored,
// or hit its inactivity timeout.
type ConnectionClosed struct {
	ControllerID int
	Reason       string
}

// coreTick drives the horizon-advancer catch-up loop across every
// instance via a periodic self-send.
type coreTick struct{}
