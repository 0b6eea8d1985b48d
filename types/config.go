package types

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Config is the Bootstrap configuration (spec §4.1), generalizing the
// teacher's BaseConfiguration/ClusterConfiguration pattern
// (pkg/mcast/protocol.go's NewUnity parameters) into one struct.
type Config struct {
	// FixedUpdateIntervalMs, if non-zero, puts the Time Machine in
	// fixed-step mode. Zero means variable-step mode.
	FixedUpdateIntervalMs float64

	// AcceptNewPrograms gates the reserved SetProgram message kind.
	// Default false.
	AcceptNewPrograms bool

	// RoomName, if empty, is derived by calling DeriveRoomName (spec §4.1:
	// "derive one from the ambient embedding context").
	RoomName string

	// DeriveRoomName supplies RoomName when it's empty. Defaults to
	// returning "tangle" when nil; real embedders (a browser URL, a CLI
	// flag) override it.
	DeriveRoomName func() string

	// Now returns wall-clock milliseconds. Defaults to time.Now-based
	// timing when nil; tests override it to control pacing deterministically.
	Now func() float64

	// OnStateChange is invoked exactly once per lifecycle transition.
	OnStateChange func(TangleState)

	// Logger defaults to definition.NewDefaultLogger() when nil.
	Logger Logger

	// Auth defaults to NoAuth{} when nil.
	Auth ArgAuthenticator

	// Metrics, if non-nil, is the registry the coordinator registers its
	// Prometheus collectors into. Nil disables metrics entirely, so an
	// embedder that doesn't run a Prometheus exporter pays nothing.
	Metrics *prometheus.Registry
}

// Validate reports a config error before Bootstrap does any I/O.
func (c Config) Validate() error {
	if c.FixedUpdateIntervalMs < 0 {
		return fmt.Errorf("tangle: negative fixed update interval %v", c.FixedUpdateIntervalMs)
	}
	return nil
}

// WithDefaults fills in Logger/Auth/DeriveRoomName/Now with their defaults
// when unset. newLogger and nowFn are injected by the core package to avoid
// types depending on definition/time.
func (c Config) WithDefaults(newLogger func() Logger, nowFn func() float64) Config {
	if c.Logger == nil {
		c.Logger = newLogger()
	}
	if c.Auth == nil {
		c.Auth = NoAuth{}
	}
	if c.DeriveRoomName == nil {
		c.DeriveRoomName = func() string { return "tangle" }
	}
	if c.Now == nil {
		c.Now = nowFn
	}
	return c
}
