// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package engine

import "github.com/henols/firestarter-app/pkg/rurp"

// Config holds the engine configuration.
type Config struct {
	// ProgressFunc is called after each acknowledged chunk (optional)
	ProgressFunc ProgressFunc

	// Logger receives engine diagnostics (optional)
	Logger Logger

	// ChunkSize is the transfer chunk size. It is a protocol constant;
	// overriding it is for tests only.
	ChunkSize int

	// VppToleranceMillivolts is the allowed deviation between the measured
	// and expected programming voltage in the pre-write check.
	VppToleranceMillivolts int
}

func defaultConfig() Config {
	return Config{
		ChunkSize:              rurp.ChunkSize,
		VppToleranceMillivolts: 1000,
	}
}

// Option is a functional option for configuring the Engine.
type Option func(*Config)

// WithProgressFunc sets a callback to observe transfer progress.
func WithProgressFunc(fn ProgressFunc) Option {
	return func(c *Config) {
		c.ProgressFunc = fn
	}
}

// WithLogger sets a logger for engine diagnostics.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithChunkSize overrides the transfer chunk size. Intended for tests.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= rurp.ChunkSize {
			c.ChunkSize = size
		}
	}
}

// WithVppTolerance sets the allowed programming-voltage deviation in
// millivolts for the pre-write check.
func WithVppTolerance(mv int) Option {
	return func(c *Config) {
		if mv >= 0 {
			c.VppToleranceMillivolts = mv
		}
	}
}
