package server

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/horizonrelay/horizon/bollywood"
	"golang.org/x/net/websocket"
)

// Listener wires the WebSocket subscribe endpoint and a health check onto
// an http.ServeMux.
type Listener struct {
	engine  *bollywood.Engine
	corePID *bollywood.PID
}

// NewListener returns a Listener bound to engine/corePID.
func NewListener(engine *bollywood.Engine, corePID *bollywood.PID) *Listener {
	return &Listener{engine: engine, corePID: corePID}
}

// Handler returns the fully wired mux for http.ListenAndServe.
func (l *Listener) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealthCheck)
	mux.Handle("/subscribe", websocket.Handler(l.handleSubscribe()))
	return mux
}

func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleSubscribe spawns a ConnectionHandlerActor for each accepted socket
// and blocks until it signals completion.
func (l *Listener) handleSubscribe() func(ws *websocket.Conn) {
	return func(ws *websocket.Conn) {
		addr := ws.RemoteAddr().String()
		done := make(chan struct{})

		defer func() {
			if r := recover(); r != nil {
				fmt.Printf("PANIC recovered in handleSubscribe for %s: %v\nStack trace:\n%s\n", addr, r, string(debug.Stack()))
				_ = ws.Close()
			}
		}()

		props := bollywood.NewProps(NewConnectionHandlerProducer(ConnectionHandlerArgs{
			Conn:    ws,
			Engine:  l.engine,
			CorePID: l.corePID,
			Done:    done,
		}))
		pid := l.engine.Spawn(props)
		if pid == nil {
			fmt.Printf("handleSubscribe: failed to spawn connection handler for %s\n", addr)
			_ = ws.Close()
			return
		}
		<-done
	}
}
