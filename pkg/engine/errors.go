// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package engine

import "fmt"

// RangeError indicates an operation window extends past the device's memory.
// Raised before any byte is sent.
type RangeError struct {
	Device     string
	Address    uint32
	Length     uint32
	MemorySize uint32
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: address 0x%X + length 0x%X exceeds memory size 0x%X",
		e.Device, e.Address, e.Length, e.MemorySize)
}

// DeviceMismatchError indicates the pre-operation identity check failed:
// the socketed device's chip id or measured programming voltage does not
// match the catalog descriptor. Nothing destructive has happened yet.
type DeviceMismatchError struct {
	Device   string
	Field    string // "chip id" or "vpp"
	Expected string
	Actual   string
}

func (e *DeviceMismatchError) Error() string {
	return fmt.Sprintf("%s: %s mismatch: expected %s, got %s",
		e.Device, e.Field, e.Expected, e.Actual)
}

// NotErasableError indicates a write found the device non-blank and the
// descriptor does not support erase.
type NotErasableError struct {
	Device string
}

func (e *NotErasableError) Error() string {
	return fmt.Sprintf("%s is not blank and cannot be erased", e.Device)
}

// NotSupportedError indicates the descriptor does not support the requested
// operation.
type NotSupportedError struct {
	Device string
	Op     string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Device, e.Op)
}

// VerificationError indicates the post-write read-back differed from the
// written image.
type VerificationError struct {
	Device   string
	Offset   uint32
	Expected byte
	Actual   byte
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: verification failed at 0x%04X: expected 0x%02X, got 0x%02X",
		e.Device, e.Offset, e.Expected, e.Actual)
}
