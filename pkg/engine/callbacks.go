// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package engine

import "time"

// Phase identifies the step of an operation a progress report belongs to.
type Phase string

// Operation phases
const (
	PhaseBlankCheck Phase = "blank-check"
	PhaseErase      Phase = "erase"
	PhaseWrite      Phase = "write"
	PhaseVerify     Phase = "verify"
	PhaseRead       Phase = "read"
	PhaseComplete   Phase = "complete"
)

// Progress is a snapshot of an operation's byte counters, passed to the
// progress callback after each acknowledged chunk. It only observes
// counters; callbacks must not call back into the engine.
type Progress struct {
	Phase     Phase
	Device    string
	Address   uint32 // logical address of the last completed chunk
	BytesDone int
	Total     int
	Elapsed   time.Duration
}

// ProgressFunc receives progress snapshots. Implementations should return
// quickly; the transfer blocks while the callback runs.
type ProgressFunc func(Progress)

// Logger is the optional logging hook for engine internals, keeping the
// engine free of any particular logging framework.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
