package server

import (
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"github.com/horizonrelay/horizon/bollywood"
	"golang.org/x/net/websocket"
)

// maxInboundFrame bounds a single read, enforcing the transport limit: an
// inbound message over 20000 bytes is rejected.
const maxInboundFrame = 20000

// ConnectionHandlerActor owns one accepted socket's read loop and forwards
// parsed inbound frames to the single CoreActor.
type ConnectionHandlerActor struct {
	conn       *websocket.Conn
	engine     *bollywood.Engine
	corePID    *bollywood.PID
	selfPID    *bollywood.PID
	controller int
	stopRead   chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

// ConnectionHandlerArgs holds constructor arguments.
type ConnectionHandlerArgs struct {
	Conn    *websocket.Conn
	Engine  *bollywood.Engine
	CorePID *bollywood.PID
	Done    chan struct{}
}

// NewConnectionHandlerProducer creates a producer for ConnectionHandlerActor.
func NewConnectionHandlerProducer(args ConnectionHandlerArgs) bollywood.Producer {
	return func() bollywood.Actor {
		return &ConnectionHandlerActor{
			conn:     args.Conn,
			engine:   args.Engine,
			corePID:  args.CorePID,
			stopRead: make(chan struct{}),
			done:     args.Done,
		}
	}
}

// Receive handles the connection handler's lifecycle.
func (a *ConnectionHandlerActor) Receive(ctx bollywood.Context) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("PANIC recovered in ConnectionHandlerActor %s Receive: %v\nStack trace:\n%s\n", a.addr(), r, string(debug.Stack()))
			a.cleanup()
		}
	}()

	if a.selfPID == nil {
		a.selfPID = ctx.Self()
	}

	switch ctx.Message().(type) {
	case bollywood.Started:
		reply, err := a.engine.Ask(a.corePID, NewConnectionRequest{Transport: newWSTransport(a.conn)}, 2*time.Second)
		if err != nil {
			fmt.Printf("ConnectionHandlerActor %s: registering with core failed: %v\n", a.addr(), err)
			a.cleanup()
			return
		}
		resp, ok := reply.(NewConnectionResponse)
		if !ok || resp.Controller == nil {
			a.cleanup()
			return
		}
		a.controller = resp.Controller.ID
		go a.readLoop()

	case bollywood.Stopping:
		a.cleanup()

	case bollywood.Stopped:
		a.closeOnce.Do(func() { close(a.done) })
	}
}

func (a *ConnectionHandlerActor) addr() string {
	if a.conn == nil {
		return "unknown"
	}
	return a.conn.RemoteAddr().String()
}

// readLoop blocks on socket reads and forwards each frame to the core
// actor.
func (a *ConnectionHandlerActor) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("PANIC recovered in ConnectionHandlerActor %s read loop: %v\n", a.addr(), r)
		}
		a.engine.Send(a.corePID, ConnectionClosed{ControllerID: a.controller, Reason: "read loop exited"}, a.selfPID)
		a.engine.Stop(a.selfPID)
	}()

	buf := make([]byte, maxInboundFrame+1)
	for {
		select {
		case <-a.stopRead:
			return
		default:
		}

		n, err := a.conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				fmt.Printf("ConnectionHandlerActor %s: read error: %v\n", a.addr(), err)
			}
			return
		}
		if n > maxInboundFrame {
			fmt.Printf("ConnectionHandlerActor %s: message exceeds %d bytes, closing.\n", a.addr(), maxInboundFrame)
			return
		}

		raw := make([]byte, n)
		copy(raw, buf[:n])
		a.engine.Send(a.corePID, InboundRaw{ControllerID: a.controller, Raw: raw}, a.selfPID)
	}
}

func (a *ConnectionHandlerActor) cleanup() {
	select {
	case <-a.stopRead:
	default:
		close(a.stopRead)
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
}
