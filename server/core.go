// Package server wires the relay's components together behind an HTTP +
// WebSocket listener: a single cooperative-loop CoreActor owning all
// server state, fronted by one ConnectionHandlerActor per socket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/horizonrelay/horizon/bollywood"

	"github.com/horizonrelay/horizon/chat"
	"github.com/horizonrelay/horizon/config"
	"github.com/horizonrelay/horizon/controller"
	"github.com/horizonrelay/horizon/event"
	"github.com/horizonrelay/horizon/instance"
	"github.com/horizonrelay/horizon/playset"
	"github.com/horizonrelay/horizon/snapshot"
	"github.com/horizonrelay/horizon/users"
	"github.com/horizonrelay/horizon/wire"
)

// CoreActor owns every piece of mutable server state — instances,
// controllers, users, chat — and processes every message to completion
// without preemption.
type CoreActor struct {
	cfg       config.Config
	hcfg      instance.HorizonConfig
	engine    *bollywood.Engine
	selfPID   *bollywood.PID
	registry  *controller.Registry
	instances map[string]*instance.State
	playsets  *playset.Registry
	users     *users.Store
	chatHub   *chat.Hub
	buckets   map[int]*chat.TokenBucket

	ticker       *time.Ticker
	stopTickerCh chan struct{}
}

// NewCoreActorProducer creates a producer for CoreActor, the way the
// teacher's NewRoomManagerProducer captures engine+cfg for its actor.
func NewCoreActorProducer(engine *bollywood.Engine, cfg config.Config, playsets *playset.Registry, userStore *users.Store, instances map[string]*instance.State, nextControllerID int) bollywood.Producer {
	hcfg := instance.HorizonConfig{
		FrameRate:              cfg.FrameRate,
		PastHorizonFrames:      cfg.PastHorizonFrames,
		FutureHorizonFrames:    cfg.FutureHorizonFrames,
		HashSyncInterval:       cfg.HashSyncInterval,
		FrameBroadcastInterval: cfg.FrameBroadcastInterval,
	}
	return func() bollywood.Actor {
		if instances == nil {
			instances = make(map[string]*instance.State)
		}
		return &CoreActor{
			cfg:          cfg,
			hcfg:         hcfg,
			engine:       engine,
			registry:     controller.NewRegistry(nextControllerID),
			instances:    instances,
			playsets:     playsets,
			users:        userStore,
			chatHub:      chat.NewHub(cfg.MaxChatMessageBytes),
			buckets:      make(map[int]*chat.TokenBucket),
			stopTickerCh: make(chan struct{}),
		}
	}
}

// Receive is the CoreActor's single entry point; every case below runs to
// completion before the next message is dequeued.
func (a *CoreActor) Receive(ctx bollywood.Context) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("PANIC recovered in CoreActor %s Receive: %v\nStack trace:\n%s\n", a.pidStr(), r, string(debug.Stack()))
			if ctx.RequestID() != "" {
				ctx.Reply(fmt.Errorf("core actor panicked: %v", r))
			}
		}
	}()

	if a.selfPID == nil {
		a.selfPID = ctx.Self()
	}

	switch msg := ctx.Message().(type) {
	case bollywood.Started:
		fmt.Printf("CoreActor %s: started with %d instances.\n", a.pidStr(), len(a.instances))
		a.ticker = time.NewTicker(a.cfg.FrameDuration)
		go a.runTickerLoop()

	case coreTick:
		a.advanceAll()

	case NewConnectionRequest:
		c := a.registry.Accept(msg.Transport)
		ctx.Reply(NewConnectionResponse{Controller: c})

	case InboundRaw:
		a.handleInbound(msg.ControllerID, msg.Raw)

	case ConnectionClosed:
		a.handleClosed(msg.ControllerID)

	case bollywood.Stopping:
		fmt.Printf("CoreActor %s: stopping.\n", a.pidStr())
		if a.ticker != nil {
			a.ticker.Stop()
			select {
			case <-a.stopTickerCh:
			default:
				close(a.stopTickerCh)
			}
		}

	case bollywood.Stopped:
		fmt.Printf("CoreActor %s: stopped.\n", a.pidStr())

	default:
		fmt.Printf("CoreActor %s: unknown message type %T\n", a.pidStr(), msg)
	}
}

func (a *CoreActor) pidStr() string {
	if a.selfPID == nil {
		return "unknown"
	}
	return a.selfPID.String()
}

// runTickerLoop posts coreTick to the actor's own mailbox at the frame
// rate.
func (a *CoreActor) runTickerLoop() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("PANIC recovered in CoreActor %s ticker loop: %v\nStack trace:\n%s\n", a.pidStr(), r, string(debug.Stack()))
		}
	}()
	for {
		select {
		case <-a.stopTickerCh:
			return
		case _, ok := <-a.ticker.C:
			if !ok {
				return
			}
			a.engine.Send(a.selfPID, coreTick{}, nil)
		}
	}
}

// advanceAll runs the catch-up tick for every unsuspended instance.
func (a *CoreActor) advanceAll() {
	now := time.Now()
	for name, inst := range a.instances {
		if inst.Suspended {
			continue
		}
		advanced, err := inst.Tick(now, coreHooks{a})
		if err != nil {
			fmt.Printf("CoreActor %s: instance %q halted: %v\n", a.pidStr(), name, err)
			inst.Suspended = true
			continue
		}
		if advanced > 0 {
			inst.SettleSuspension()
		}
	}
}

// coreHooks implements instance.LifecycleHooks over the core actor's
// controller registry, letting advanceOneFrame promote an INBOX
// controller and clear OUTBOX bookkeeping without instance importing
// controller.
type coreHooks struct{ core *CoreActor }

func (h coreHooks) PromoteInbox(instanceName, username string, presentFrame uint64) (int, instance.Subscriber, bool) {
	c, ok := h.core.registry.PromoteInbox(username)
	if !ok {
		return 0, nil, false
	}
	c.PromoteToLive(instanceName, username, presentFrame)
	c.ArmTimeout(h.core.cfg.ControllerTimeout, h.core.onTimeout)
	_ = c.Send(wire.WaitOrWelcome{K: "W", T: 0})
	return c.ID, c, true
}

func (h coreHooks) ClearOutbox(instanceName, username string) {
	h.core.registry.ClearOutbox(username)
}

// onTimeout is invoked by a controller's inactivity timer; it looks the
// same as a socket error from the controller's perspective.
func (a *CoreActor) onTimeout(c *controller.Controller) {
	a.engine.Send(a.selfPID, ConnectionClosed{ControllerID: c.ID, Reason: "timeout"}, nil)
}

// handleClosed transitions a controller to OUTBOX and stamps a Disconnect
// event at the instance's present frame.
func (a *CoreActor) handleClosed(controllerID int) {
	c, ok := a.registry.Get(controllerID)
	if !ok {
		return
	}
	// A controller closed through CloseWithError is already DEAD here; as
	// long as the registry still holds it as its username's LIVE
	// controller it takes the same OUTBOX path as a plain socket close.
	if live, ok := a.registry.LoginConflict(c.Username); !ok || live != c {
		c.StopTimeout()
		a.registry.Remove(controllerID)
		return
	}
	inst, ok := a.instances[c.Instance]
	if !ok {
		return
	}
	presentFrame := inst.PresentFrame()
	inst.AdmitEvent(event.Disconnect(presentFrame, controllerID))
	delete(inst.Subscribers, controllerID)
	a.chatHub.Leave(controllerID)
	delete(a.buckets, controllerID)
	c.EnterOutbox()
	a.registry.MarkOutbox(c.Username)
	if inst.Suspended {
		inst.Unsuspend(time.Now())
	}
}

// snapshotFile builds the persistable File for the current server state.
func (a *CoreActor) snapshotFile() snapshot.File {
	f := snapshot.File{
		Config:           a.cfg,
		NextControllerID: a.registry.NextControllerID(),
		Instances:        make(map[string]snapshot.InstanceRecord, len(a.instances)),
	}
	for _, rec := range a.users.All() {
		f.Users = append(f.Users, snapshot.UserRecord{
			Username:        rec.Username,
			PasswordHash:    rec.PasswordHash,
			Config:          rec.Config,
			Admin:           rec.Admin,
			SelfServeOrigin: rec.SelfServeOrigin,
		})
	}
	for name, inst := range a.instances {
		serialized, err := inst.Playset.Serialize(inst.PastHorizonState)
		if err != nil {
			fmt.Printf("CoreActor %s: snapshot: instance %q serialize failed: %v\n", a.pidStr(), name, err)
			continue
		}
		raw, _ := json.Marshal(serialized)
		status := make(map[int]instance.ControllerStatus, len(inst.ControllerStatus))
		for id, cs := range inst.ControllerStatus {
			status[id] = *cs
		}
		f.Instances[name] = snapshot.InstanceRecord{
			PlaysetName:      inst.Playset.Name(),
			State:            raw,
			ControllerStatus: status,
		}
	}
	return f
}

// Shutdown persists the current state. clean distinguishes
// cleanShutdown (canonical path + backup) from dirtyShutdown (backup
// only).
func (a *CoreActor) Shutdown(clean bool) error {
	return snapshot.Save(a.cfg.SnapshotPath, a.snapshotFile(), clean, time.Now())
}

// LoadSnapshot rehydrates instances from path at process startup.
func LoadSnapshot(ctx context.Context, path string, playsets *playset.Registry, cfg config.Config) (map[string]*instance.State, *users.Store, int, error) {
	f, err := snapshot.Load(path)
	if err != nil {
		return nil, nil, 0, err
	}
	hcfg := instance.HorizonConfig{
		FrameRate:              cfg.FrameRate,
		PastHorizonFrames:      cfg.PastHorizonFrames,
		FutureHorizonFrames:    cfg.FutureHorizonFrames,
		HashSyncInterval:       cfg.HashSyncInterval,
		FrameBroadcastInterval: cfg.FrameBroadcastInterval,
	}
	instances, err := snapshot.Rehydrate(ctx, f, playsets, time.Now(), hcfg)
	if err != nil {
		return nil, nil, 0, err
	}
	store := users.NewStore()
	records := make([]users.Record, 0, len(f.Users))
	for _, u := range f.Users {
		records = append(records, users.Record{
			Username:        u.Username,
			PasswordHash:    u.PasswordHash,
			Config:          u.Config,
			Admin:           u.Admin,
			SelfServeOrigin: u.SelfServeOrigin,
		})
	}
	store.Restore(records)
	return instances, store, f.NextControllerID, nil
}
