// Package config holds the engine's top-level configuration, bound to
// command-line flags: a pflag.FlagSet populated by Bind, then validated
// once by Preflight before the engine starts.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/indexflow/indexflow/internal/indexer"
)

// TrackingBackend selects which tracking.Store implementation EngineConfig
// wires up.
type TrackingBackend string

const (
	TrackingPostgres TrackingBackend = "postgres"
	TrackingMySQL    TrackingBackend = "mysql"
)

// EngineConfig is the flag-bound configuration for one engine process:
// where rows are tracked, how aggressively sources are polled, and how
// many rows/transforms run concurrently.
type EngineConfig struct {
	TrackingBackend TrackingBackend
	TrackingDSN     string

	PollInterval       time.Duration
	SourceConcurrency  int
	EvalConcurrency    int
	FingerprintMode    string // "fast" or "strict", see indexer.FingerprintMode
	MetricsBindAddr    string
	WaitForTrackingDB  bool
}

// Bind registers EngineConfig's flags on flags.
func (c *EngineConfig) Bind(flags *pflag.FlagSet) {
	flags.StringVar((*string)(&c.TrackingBackend), "trackingBackend", string(TrackingPostgres),
		"tracking store backend: postgres or mysql")
	flags.StringVar(&c.TrackingDSN, "trackingDSN", "",
		"data source name for the tracking store")
	flags.DurationVar(&c.PollInterval, "pollInterval", 3*time.Second,
		"how often each source is polled absent an external wakeup")
	flags.IntVar(&c.SourceConcurrency, "sourceConcurrency", 4,
		"maximum rows indexed concurrently per source poll batch")
	flags.IntVar(&c.EvalConcurrency, "evalConcurrency", 0,
		"maximum independent transform nodes evaluated concurrently per row (0 = unbounded)")
	flags.StringVar(&c.FingerprintMode, "fingerprintMode", "fast",
		"row fingerprint mode: fast (ordinal-based) or strict (content-hash-based)")
	flags.StringVar(&c.MetricsBindAddr, "metricsBindAddr", ":9090",
		"the network address the Prometheus /metrics endpoint binds to")
	flags.BoolVar(&c.WaitForTrackingDB, "waitForTrackingDB", true,
		"retry the initial tracking store connection instead of failing immediately")
}

// Preflight validates the bound configuration once before the engine
// starts.
func (c *EngineConfig) Preflight() error {
	switch c.TrackingBackend {
	case TrackingPostgres, TrackingMySQL:
	default:
		return errors.Errorf("trackingBackend must be %q or %q, got %q", TrackingPostgres, TrackingMySQL, c.TrackingBackend)
	}
	if c.TrackingDSN == "" {
		return errors.New("trackingDSN unset")
	}
	if c.PollInterval <= 0 {
		return errors.New("pollInterval must be positive")
	}
	if c.SourceConcurrency < 0 || c.EvalConcurrency < 0 {
		return errors.New("concurrency values must be non-negative")
	}
	if _, err := c.ParseFingerprintMode(); err != nil {
		return err
	}
	if c.MetricsBindAddr == "" {
		return errors.New("metricsBindAddr unset")
	}
	return nil
}

// ParseFingerprintMode translates the flag's string form into
// indexer.FingerprintMode.
func (c *EngineConfig) ParseFingerprintMode() (indexer.FingerprintMode, error) {
	switch c.FingerprintMode {
	case "fast", "":
		return indexer.FastFingerprint, nil
	case "strict":
		return indexer.StrictFingerprint, nil
	default:
		return 0, errors.Errorf("fingerprintMode must be %q or %q, got %q", "fast", "strict", c.FingerprintMode)
	}
}
