// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package rurp

import (
	"errors"
	"fmt"
)

// errTimeout marks an exchange attempt that produced no complete reply frame
// within the response timeout. Internal; surfaces wrapped in LinkError once
// the retry budget is exhausted.
var errTimeout = errors.New("response timeout")

// LinkUnavailableError indicates the readiness handshake failed: no
// programmer answered, or its firmware is too old to talk to. Fatal for the
// whole invocation, never retried at this layer.
type LinkUnavailableError struct {
	Port   string
	Reason string
	Err    error
}

func (e *LinkUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("programmer unavailable on %s: %s: %v", e.Port, e.Reason, e.Err)
	}
	return fmt.Sprintf("programmer unavailable on %s: %s", e.Port, e.Reason)
}

func (e *LinkUnavailableError) Unwrap() error {
	return e.Err
}

// LinkError indicates the per-frame retry budget was exhausted mid-transfer.
// Fatal for the current operation.
type LinkError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link failure during %s after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// RemoteError indicates the programmer rejected a command outright
// (invalid command or unsupported operation for the configured device).
type RemoteError struct {
	MsgType uint8
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("programmer error (0x%02X): %s", e.MsgType, e.Message)
	}
	return fmt.Sprintf("programmer error (0x%02X)", e.MsgType)
}

// IsTimeout reports whether err is an exchange timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, errTimeout)
}
