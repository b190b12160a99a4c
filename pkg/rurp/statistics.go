// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package rurp

import (
	"fmt"
	"time"
)

// Statistics tracks frame counters and error rates for one link session.
// Observational only: nothing in the transfer path depends on these values.
type Statistics struct {
	StartTime time.Time

	FramesSent     uint64
	FramesReceived uint64
	BytesSent      uint64
	BytesReceived  uint64
	Retries        uint64
	CRCErrors      uint64
	Timeouts       uint64
	Nacks          uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// Elapsed returns the session duration so far
func (s *Statistics) Elapsed() time.Duration {
	return time.Since(s.StartTime)
}

// Summary returns a one-line human-readable summary
func (s *Statistics) Summary() string {
	return fmt.Sprintf("sent=%d recv=%d retries=%d crc-errors=%d timeouts=%d nacks=%d in %s",
		s.FramesSent, s.FramesReceived, s.Retries, s.CRCErrors, s.Timeouts, s.Nacks,
		s.Elapsed().Round(time.Millisecond))
}
