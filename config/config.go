// Package config holds the server-wide tunables: one struct, one
// DefaultConfig constructor, environment overrides applied once in main.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configurable server parameters.
type Config struct {
	// Timing (global constants)
	FrameRate           int           `json:"frameRate"`           // F
	PastHorizonFrames   int           `json:"pastHorizonFrames"`   // F/2
	FutureHorizonFrames int           `json:"futureHorizonFrames"` // 3F/2
	FrameDuration       time.Duration `json:"-"`                   // 1000/F ms, derived

	// Timeouts and intervals
	ControllerTimeout     time.Duration `json:"controllerTimeout"`     // 5s inactivity
	HashSyncInterval      uint64        `json:"hashSyncInterval"`      // in frames, default 5F
	FrameBroadcastInterval uint64       `json:"frameBroadcastInterval"` // in frames, default F/4

	// Transport limits
	MaxInboundMessageBytes int `json:"maxInboundMessageBytes"` // 20000

	// Rate limits (rate_counters, chat_tokens)
	DefaultCommandRatePerSec float64 `json:"defaultCommandRatePerSec"`
	ChatTokenCapacity        int     `json:"chatTokenCapacity"`
	ChatTokenRefillPeriod    time.Duration `json:"chatTokenRefillPeriod"`
	MaxChatMessageBytes      int     `json:"maxChatMessageBytes"`

	// Instance/room bounds
	MaxInstances int `json:"maxInstances"`

	// Persistence
	SnapshotPath string `json:"snapshotPath"`

	// Listener
	Addr string `json:"addr"`
}

// DefaultConfig returns a Config struct with the relay's baseline values.
func DefaultConfig() Config {
	const frameRate = 30
	cfg := Config{
		FrameRate:              frameRate,
		PastHorizonFrames:      frameRate / 2,
		FutureHorizonFrames:    frameRate * 3 / 2,
		ControllerTimeout:      5 * time.Second,
		HashSyncInterval:       5 * frameRate,
		FrameBroadcastInterval: frameRate / 4,
		MaxInboundMessageBytes: 20000,

		DefaultCommandRatePerSec: 10,
		ChatTokenCapacity:        5,
		ChatTokenRefillPeriod:    2 * time.Second,
		MaxChatMessageBytes:      500,

		MaxInstances: 256,

		SnapshotPath: "horizon_snapshot.json",
		Addr:         ":8080",
	}
	cfg.FrameDuration = time.Second / time.Duration(cfg.FrameRate)
	return cfg
}

// FromEnv overlays HORIZON_* environment variables onto cfg, the way the
// teacher's main.go reads PORT from the environment.
func FromEnv(cfg Config) Config {
	if v := os.Getenv("HORIZON_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("HORIZON_SNAPSHOT_PATH"); v != "" {
		cfg.SnapshotPath = v
	}
	if v := os.Getenv("HORIZON_MAX_INSTANCES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxInstances = n
		}
	}
	return cfg
}
