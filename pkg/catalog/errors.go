// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package catalog

import "fmt"

// NotFoundError indicates no device in the catalog matches the requested
// name (case-insensitive, across all manufacturers).
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("device %q not found in catalog", e.Name)
}

// PinMapNotFoundError indicates no pin map exists for the requested
// (pin count, pin map id) pair.
type PinMapNotFoundError struct {
	PinCount int
	ID       int
}

func (e *PinMapNotFoundError) Error() string {
	return fmt.Sprintf("no pin map %d for %d-pin socket", e.ID, e.PinCount)
}
