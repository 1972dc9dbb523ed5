package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/horizonrelay/horizon/config"
	"github.com/horizonrelay/horizon/instance"
	"github.com/horizonrelay/horizon/playset"
	"github.com/horizonrelay/horizon/playset/jsonplayset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *playset.Registry {
	r := playset.NewRegistry()
	r.Register(jsonplayset.NewEcho())
	return r
}

func testHorizonConfig() instance.HorizonConfig {
	return instance.HorizonConfig{FrameRate: 30, PastHorizonFrames: 15, FutureHorizonFrames: 45}
}

func TestSave_DirtyShutdownWritesOnlyBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err := Save(path, File{NextControllerID: 1}, false, now)
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.Error(t, err, "dirty shutdown must not write the canonical path")

	matches, _ := filepath.Glob(path + ".*.bak")
	assert.Len(t, matches, 1)
}

func TestSave_CleanShutdownWritesBackupAndCanonical(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err := Save(path, File{NextControllerID: 7}, true, now)
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var f File
	require.NoError(t, json.Unmarshal(b, &f))
	assert.Equal(t, 7, f.NextControllerID)

	matches, _ := filepath.Glob(path + ".*.bak")
	assert.Len(t, matches, 1)
}

func TestLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	original := File{
		Config:           config.DefaultConfig(),
		NextControllerID: 3,
		Users:            []UserRecord{{Username: "alice", PasswordHash: "h"}},
	}
	require.NoError(t, Save(path, original, true, now))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.NextControllerID)
	assert.Equal(t, "alice", loaded.Users[0].Username)
}

func TestRehydrate_ResetsToFrameOneWithSynthesizedDisconnects(t *testing.T) {
	rec := InstanceRecord{
		PlaysetName: "echo",
		State:       json.RawMessage(`{"online":{}}`),
		ControllerStatus: map[int]instance.ControllerStatus{
			5: {Username: "alice"},
		},
	}
	f := File{Instances: map[string]InstanceRecord{"room-a": rec}}

	instances, err := Rehydrate(context.Background(), f, testRegistry(), time.Now(), testHorizonConfig())
	require.NoError(t, err)

	inst, ok := instances["room-a"]
	require.True(t, ok)
	assert.Equal(t, uint64(1), inst.PastHorizonFrame)
	bucket := inst.Events[1]
	require.Len(t, bucket, 1)
	assert.Equal(t, 5, bucket[0].Controller)
}

func TestRehydrate_UnknownPlaysetErrors(t *testing.T) {
	f := File{Instances: map[string]InstanceRecord{
		"room-a": {PlaysetName: "does-not-exist", State: json.RawMessage(`{}`)},
	}}
	_, err := Rehydrate(context.Background(), f, testRegistry(), time.Now(), testHorizonConfig())
	assert.Error(t, err)
}

func TestRehydrate_StateAsOpaqueString(t *testing.T) {
	raw, err := json.Marshal(`{"online":{}}`)
	require.NoError(t, err)
	f := File{Instances: map[string]InstanceRecord{
		"room-a": {PlaysetName: "echo", State: raw},
	}}
	instances, err := Rehydrate(context.Background(), f, testRegistry(), time.Now(), testHorizonConfig())
	require.NoError(t, err)
	assert.Contains(t, instances, "room-a")
}
