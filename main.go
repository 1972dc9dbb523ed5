// File: main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/horizonrelay/horizon/bollywood"
	"github.com/horizonrelay/horizon/config"
	"github.com/horizonrelay/horizon/instance"
	"github.com/horizonrelay/horizon/playset"
	"github.com/horizonrelay/horizon/playset/jsonplayset"
	"github.com/horizonrelay/horizon/server"
	"github.com/horizonrelay/horizon/users"
)

func main() {
	// 0. Load configuration.
	cfg := config.FromEnv(config.DefaultConfig())
	fmt.Printf("Configuration loaded. Frame rate: %d, past horizon: %d, future horizon: %d\n",
		cfg.FrameRate, cfg.PastHorizonFrames, cfg.FutureHorizonFrames)

	// 1. Register playsets at process startup, replacing the ambient
	// registerPlayset global with an explicit registry.
	registry := playset.NewRegistry()
	registry.Register(jsonplayset.NewEcho())

	// 2. Load the persisted snapshot, if one exists; otherwise start with
	// an empty instance/user set.
	var instances map[string]*instance.State
	var userStore *users.Store
	nextControllerID := 1
	if loaded, store, nextID, err := server.LoadSnapshot(context.Background(), cfg.SnapshotPath, registry, cfg); err == nil {
		instances = loaded
		userStore = store
		nextControllerID = nextID
		fmt.Printf("Snapshot loaded from %s: %d instances, %d users.\n", cfg.SnapshotPath, len(instances), len(userStore.All()))
	} else {
		fmt.Printf("No snapshot loaded (%v); starting fresh.\n", err)
		userStore = users.NewStore()
	}

	// 3. Initialize the actor engine.
	engine := bollywood.NewEngine()
	fmt.Println("Bollywood engine created.")

	// 4. Spawn the CoreActor owning instances, controllers, users, and chat.
	coreProps := bollywood.NewProps(server.NewCoreActorProducer(engine, cfg, registry, userStore, instances, nextControllerID))
	corePID := engine.Spawn(coreProps)
	if corePID == nil {
		panic("failed to spawn CoreActor")
	}
	time.Sleep(50 * time.Millisecond)

	// 5. Wire up the HTTP/WebSocket listener.
	listener := server.NewListener(engine, corePID)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: listener.Handler(),
	}

	go func() {
		fmt.Printf("Server listening on %s\n", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Println("Server stopped:", err)
		}
	}()

	// 6. Wait for SIGINT/SIGTERM, then shut down cleanly.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutdown signal received.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	fmt.Println("Shutting down engine...")
	engine.Shutdown(5 * time.Second)
	fmt.Println("Engine shutdown complete.")
}
