package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30, cfg.FrameRate)
	assert.Equal(t, 15, cfg.PastHorizonFrames)
	assert.Equal(t, 45, cfg.FutureHorizonFrames)
	assert.Equal(t, time.Second/30, cfg.FrameDuration)
}

func TestFromEnv_OverridesWhenSet(t *testing.T) {
	os.Setenv("HORIZON_ADDR", ":9999")
	os.Setenv("HORIZON_SNAPSHOT_PATH", "/tmp/custom.json")
	os.Setenv("HORIZON_MAX_INSTANCES", "12")
	defer os.Unsetenv("HORIZON_ADDR")
	defer os.Unsetenv("HORIZON_SNAPSHOT_PATH")
	defer os.Unsetenv("HORIZON_MAX_INSTANCES")

	cfg := FromEnv(DefaultConfig())
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, "/tmp/custom.json", cfg.SnapshotPath)
	assert.Equal(t, 12, cfg.MaxInstances)
}

func TestFromEnv_IgnoresInvalidMaxInstances(t *testing.T) {
	os.Setenv("HORIZON_MAX_INSTANCES", "not-a-number")
	defer os.Unsetenv("HORIZON_MAX_INSTANCES")

	base := DefaultConfig()
	cfg := FromEnv(base)
	assert.Equal(t, base.MaxInstances, cfg.MaxInstances)
}

func TestFromEnv_LeavesDefaultsWhenUnset(t *testing.T) {
	os.Unsetenv("HORIZON_ADDR")
	os.Unsetenv("HORIZON_SNAPSHOT_PATH")
	os.Unsetenv("HORIZON_MAX_INSTANCES")

	cfg := FromEnv(DefaultConfig())
	assert.Equal(t, DefaultConfig().Addr, cfg.Addr)
}
