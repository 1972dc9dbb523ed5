// Package snapshot serializes and rehydrates whole-server state to a
// well-known JSON path. The entire server — not one row at a time — is
// the unit of persistence, and rehydration of multiple instances is
// fanned out concurrently with golang.org/x/sync/errgroup.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/horizonrelay/horizon/config"
	"github.com/horizonrelay/horizon/instance"
	"github.com/horizonrelay/horizon/playset"
)

// InstanceRecord is the persisted form of one instance: playset name, its
// serialized state, and the controller status map as of the past horizon.
type InstanceRecord struct {
	PlaysetName      string                             `json:"playsetName"`
	State            json.RawMessage                    `json:"state"`
	ControllerStatus map[int]instance.ControllerStatus `json:"controllerStatus"`
}

// UserRecord is the persisted form of one account, mirroring users.Record
// without importing the users package (avoided to keep snapshot's
// dependency surface one-directional: users depends on nothing, snapshot
// depends on users' exported shape only where needed by callers).
type UserRecord struct {
	Username        string `json:"username"`
	PasswordHash    string `json:"passwordHash"`
	Config          string `json:"config"`
	Admin           bool   `json:"admin"`
	SelfServeOrigin string `json:"selfServeOrigin,omitempty"`
}

// File is the top-level persisted document.
type File struct {
	Config           config.Config             `json:"config"`
	Users            []UserRecord              `json:"users"`
	NextControllerID int                       `json:"nextControllerID"`
	Instances        map[string]InstanceRecord `json:"instances"`
}

// Save serialises f synchronously. cleanShutdown writes both a timestamped
// forensic backup and the canonical path; dirtyShutdown writes only the
// timestamped backup.
func Save(path string, f File, clean bool, now time.Time) error {
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}

	backupPath := fmt.Sprintf("%s.%s.bak", path, now.UTC().Format("20060102T150405Z"))
	if err := os.WriteFile(backupPath, b, 0o644); err != nil {
		return fmt.Errorf("snapshot: write backup: %w", err)
	}

	if !clean {
		return nil
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("snapshot: write canonical: %w", err)
	}
	return nil
}

// Load reads and parses the snapshot file at path.
func Load(path string) (File, error) {
	var f File
	b, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("snapshot: read: %w", err)
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	return f, nil
}

// Rehydrate rebuilds every instance named in f concurrently, resolving
// each InstanceRecord's playset by name and constructing a fresh
// instance.State with past_horizon_frame reset to 1 and a frame-1
// Disconnect synthesised per stored controller. deserializeState handles
// the "state may be a string or an inline object" rule.
func Rehydrate(ctx context.Context, f File, registry *playset.Registry, now time.Time, cfg instance.HorizonConfig) (map[string]*instance.State, error) {
	results := make(map[string]*instance.State, len(f.Instances))
	g, _ := errgroup.WithContext(ctx)

	type pair struct {
		name string
		st   *instance.State
	}
	out := make(chan pair, len(f.Instances))

	for name, rec := range f.Instances {
		name, rec := name, rec
		g.Go(func() error {
			ps, err := registry.Lookup(rec.PlaysetName)
			if err != nil {
				return fmt.Errorf("snapshot: instance %q: %w", name, err)
			}
			state, err := deserializeState(ps, rec.State)
			if err != nil {
				return fmt.Errorf("snapshot: instance %q: deserialize state: %w", name, err)
			}
			status := make(map[int]*instance.ControllerStatus, len(rec.ControllerStatus))
			for id, cs := range rec.ControllerStatus {
				cs := cs
				status[id] = &cs
			}
			st := instance.New(name, ps, state, status, now, cfg)
			out <- pair{name: name, st: st}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(out)
	for p := range out {
		results[p.name] = p.st
	}
	return results, nil
}

// deserializeState handles the case where state may already be a decoded
// JSON object (hand-authored seed) or an opaque string passed to the
// playset's own Deserialize.
func deserializeState(ps playset.Playset, raw json.RawMessage) (interface{}, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return ps.Deserialize(asString)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}
