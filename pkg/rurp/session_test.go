// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package rurp

import (
	"errors"
	"testing"
	"time"
)

// ============================================================
// Fake Port
// ============================================================

// fakePort scripts one reply per written frame. A nil entry means the
// programmer stays silent for that exchange; after the script runs out
// every exchange is silence.
type fakePort struct {
	script  [][]byte
	writes  int
	pending []byte
	timeout time.Duration
	closed  bool
}

func (f *fakePort) Write(p []byte) (int, error) {
	if f.writes < len(f.script) {
		f.pending = append(f.pending, f.script[f.writes]...)
	}
	f.writes++
	return len(p), nil
}

func (f *fakePort) Read(p []byte) (int, error) {
	if len(f.pending) == 0 {
		// Emulate a serial read timeout: block briefly, return no data.
		d := f.timeout
		if d <= 0 || d > 5*time.Millisecond {
			d = 5 * time.Millisecond
		}
		time.Sleep(d)
		return 0, nil
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakePort) SetReadTimeout(t time.Duration) error {
	f.timeout = t
	return nil
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

// frame encodes a reply packet to wire bytes, panicking on failure.
func frame(t *testing.T, p *Packet) []byte {
	t.Helper()
	b, err := EncodePacketFromValues(p.Type(), p.PayloadMap())
	if err != nil {
		t.Fatalf("Encode reply: %v", err)
	}
	return b
}

// newTestSession wraps the port with timeouts short enough for tests.
func newTestSession(port Port) *Session {
	s := NewSession(port, "fake")
	s.ResponseTimeout = 30 * time.Millisecond
	s.HandshakeTimeout = 30 * time.Millisecond
	return s
}

// ============================================================
// Handshake Tests
// ============================================================

func TestHandshake_Success(t *testing.T) {
	port := &fakePort{script: [][]byte{
		frame(t, NewVersionResult("2.1.4", "rev2")),
	}}
	s := newTestSession(port)

	if err := s.Handshake(); err != nil {
		t.Fatalf("Handshake failed: %v", err)
	}
	if !s.Ready() {
		t.Error("Session should be ready after handshake")
	}
	if s.FirmwareVersion() != "2.1.4" {
		t.Errorf("Firmware version: got %q, want 2.1.4", s.FirmwareVersion())
	}
	if s.HardwareRevision() != "rev2" {
		t.Errorf("Hardware revision: got %q, want rev2", s.HardwareRevision())
	}
}

func TestHandshake_OutdatedFirmware(t *testing.T) {
	port := &fakePort{script: [][]byte{
		frame(t, NewVersionResult("1.3.9", "rev1")),
	}}
	s := newTestSession(port)

	err := s.Handshake()
	var unavailable *LinkUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Expected LinkUnavailableError, got: %v", err)
	}
	if s.Ready() {
		t.Error("Session must not be ready with outdated firmware")
	}
}

func TestHandshake_SilentPort(t *testing.T) {
	port := &fakePort{}
	s := newTestSession(port)

	err := s.Handshake()
	var unavailable *LinkUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Expected LinkUnavailableError, got: %v", err)
	}
	if unavailable.Port != "fake" {
		t.Errorf("Error should carry the port name, got %q", unavailable.Port)
	}
}

func TestHandshake_WrongReplyType(t *testing.T) {
	port := &fakePort{script: [][]byte{
		frame(t, NewAck("hello")),
	}}
	s := newTestSession(port)

	var unavailable *LinkUnavailableError
	if err := s.Handshake(); !errors.As(err, &unavailable) {
		t.Fatalf("Expected LinkUnavailableError, got: %v", err)
	}
}

// ============================================================
// Exchange Retry Tests
// ============================================================

func TestExchange_FirstAttempt(t *testing.T) {
	port := &fakePort{script: [][]byte{
		frame(t, NewAck("")),
	}}
	s := newTestSession(port)

	reply, err := s.Exchange(NewEndTransfer())
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if reply.Type() != MsgAck {
		t.Errorf("Reply type: got 0x%02X, want MsgAck", reply.Type())
	}
	if port.writes != 1 {
		t.Errorf("Writes: got %d, want 1", port.writes)
	}
	if s.Statistics().Retries != 0 {
		t.Errorf("Retries: got %d, want 0", s.Statistics().Retries)
	}
}

func TestExchange_BudgetExhausted(t *testing.T) {
	// Silence on every attempt: exactly MaxAttempts transmissions, then LinkError.
	port := &fakePort{}
	s := newTestSession(port)

	_, err := s.Exchange(NewIdleCommand())
	var linkErr *LinkError
	if !errors.As(err, &linkErr) {
		t.Fatalf("Expected LinkError, got: %v", err)
	}
	if linkErr.Attempts != MaxAttempts {
		t.Errorf("Attempts: got %d, want %d", linkErr.Attempts, MaxAttempts)
	}
	if port.writes != MaxAttempts {
		t.Errorf("Writes: got %d, want %d", port.writes, MaxAttempts)
	}
	if !IsTimeout(linkErr.Err) {
		t.Errorf("Underlying error should be a timeout, got: %v", linkErr.Err)
	}
}

func TestExchange_RecoversWithinBudget(t *testing.T) {
	// MaxAttempts-1 silent exchanges, then a reply on the last allowed attempt.
	script := make([][]byte, MaxAttempts)
	script[MaxAttempts-1] = frame(t, NewAck("late"))
	port := &fakePort{script: script}
	s := newTestSession(port)

	reply, err := s.Exchange(NewEndTransfer())
	if err != nil {
		t.Fatalf("Exchange should recover on the last attempt: %v", err)
	}
	if reply.Type() != MsgAck {
		t.Errorf("Reply type: got 0x%02X, want MsgAck", reply.Type())
	}
	if s.Statistics().Retries != uint64(MaxAttempts-1) {
		t.Errorf("Retries: got %d, want %d", s.Statistics().Retries, MaxAttempts-1)
	}
	if s.Statistics().Timeouts != uint64(MaxAttempts-1) {
		t.Errorf("Timeouts: got %d, want %d", s.Statistics().Timeouts, MaxAttempts-1)
	}
}

func TestExchange_NackConsumesAttempt(t *testing.T) {
	port := &fakePort{script: [][]byte{
		frame(t, NewNack("checksum")),
		frame(t, NewAck("")),
	}}
	s := newTestSession(port)

	reply, err := s.Exchange(NewEndTransfer())
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if reply.Type() != MsgAck {
		t.Errorf("Reply type: got 0x%02X, want MsgAck", reply.Type())
	}
	if port.writes != 2 {
		t.Errorf("Writes: got %d, want 2 (retransmit after NACK)", port.writes)
	}
	if s.Statistics().Nacks != 1 {
		t.Errorf("Nacks: got %d, want 1", s.Statistics().Nacks)
	}
}

func TestExchange_TraceObservesFrames(t *testing.T) {
	// A silent first attempt, then an ack: the trace hook must see every
	// transmission (the retransmit included) and the decoded reply.
	port := &fakePort{script: [][]byte{
		nil,
		frame(t, NewAck("")),
	}}
	s := newTestSession(port)

	type traced struct {
		direction string
		msgType   uint8
	}
	var seen []traced
	s.Trace = func(direction string, p *Packet) {
		seen = append(seen, traced{direction, p.Type()})
	}

	if _, err := s.Exchange(NewEndTransfer()); err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}

	want := []traced{
		{"tx", MsgEndTransfer},
		{"tx", MsgEndTransfer},
		{"rx", MsgAck},
	}
	if len(seen) != len(want) {
		t.Fatalf("Traced frames: got %d, want %d (%v)", len(seen), len(want), seen)
	}
	for i, w := range want {
		if seen[i] != w {
			t.Errorf("Trace[%d]: got %v, want %v", i, seen[i], w)
		}
	}
}

func TestExchange_CorruptedReplyRetries(t *testing.T) {
	good := frame(t, NewAck(""))
	corrupted := make([]byte, len(good))
	copy(corrupted, good)
	corrupted[len(corrupted)-2] ^= 0x01 // break the CRC

	port := &fakePort{script: [][]byte{corrupted, good}}
	s := newTestSession(port)

	reply, err := s.Exchange(NewEndTransfer())
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if reply.Type() != MsgAck {
		t.Errorf("Reply type: got 0x%02X, want MsgAck", reply.Type())
	}
	if s.Statistics().CRCErrors != 1 {
		t.Errorf("CRCErrors: got %d, want 1", s.Statistics().CRCErrors)
	}
}

func TestExchange_InvalidReplyRetries(t *testing.T) {
	// Structurally invalid: DATA without chunk bytes. Decodes fine, fails
	// validation, retransmits.
	invalid := frame(t, NewPacketWithPayload(MsgData, map[int]interface{}{
		KeyChunkAddress: uint64(0),
	}))
	good := frame(t, NewDataReply(0, []byte{0xFF}))

	port := &fakePort{script: [][]byte{invalid, good}}
	s := newTestSession(port)

	reply, err := s.Exchange(NewChunkRequest(0, 1))
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if reply.Type() != MsgData {
		t.Errorf("Reply type: got 0x%02X, want MsgData", reply.Type())
	}
	if port.writes != 2 {
		t.Errorf("Writes: got %d, want 2", port.writes)
	}
}

func TestExchange_RemoteErrorNoRetry(t *testing.T) {
	port := &fakePort{script: [][]byte{
		frame(t, NewPacketWithPayload(MsgErrorUnsupported, map[int]interface{}{
			KeyAckMessage: "erase not supported",
		})),
	}}
	s := newTestSession(port)

	_, err := s.Exchange(NewIdleCommand())
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Expected RemoteError, got: %v", err)
	}
	if remote.MsgType != MsgErrorUnsupported {
		t.Errorf("MsgType: got 0x%02X, want MsgErrorUnsupported", remote.MsgType)
	}
	if port.writes != 1 {
		t.Errorf("Writes: got %d, want 1 (protocol errors are not retried)", port.writes)
	}
}

func TestExpectAck_RejectsOtherReplies(t *testing.T) {
	port := &fakePort{script: [][]byte{
		frame(t, NewResult(42)),
	}}
	s := newTestSession(port)

	if _, err := s.ExpectAck(NewEndTransfer()); err == nil {
		t.Error("Expected error for non-ACK reply")
	}
}

func TestSession_Close(t *testing.T) {
	port := &fakePort{}
	s := newTestSession(port)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !port.closed {
		t.Error("Close must release the port")
	}
}
