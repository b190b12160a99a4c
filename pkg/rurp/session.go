// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package rurp

import (
	"fmt"
	"io"
	"time"
)

// Port is the byte transport the session drives. go.bug.st/serial.Port
// satisfies it directly; WebSocket bridges and test fakes adapt to it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Session owns exclusive access to one programmer link. All exchanges are
// strict lock-step: one frame out, one reply in, with a bounded retry budget
// on transient faults. Not safe for concurrent use.
type Session struct {
	// ResponseTimeout bounds the wait for a reply to one sent frame.
	ResponseTimeout time.Duration
	// HandshakeTimeout bounds the readiness check.
	HandshakeTimeout time.Duration
	// MaxAttempts is the send-attempt budget per exchange.
	MaxAttempts int
	// Trace, when set, receives every frame the session sends ("tx") or
	// decodes ("rx"), retransmissions included. Diagnostic only.
	Trace func(direction string, p *Packet)

	port     Port
	portName string
	decoder  *Decoder
	stats    *Statistics

	firmwareVersion  string
	hardwareRevision string
	ready            bool
}

// NewSession creates a session over an open port. The caller keeps ownership
// of nothing: Close releases the port.
func NewSession(port Port, portName string) *Session {
	return &Session{
		ResponseTimeout:  DefaultResponseTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		MaxAttempts:      MaxAttempts,
		port:             port,
		portName:         portName,
		decoder:          NewDecoder(),
		stats:            NewStatistics(),
	}
}

// PortName returns the name the port was opened under.
func (s *Session) PortName() string {
	return s.portName
}

// Statistics returns the session's frame counters.
func (s *Session) Statistics() *Statistics {
	return s.stats
}

// FirmwareVersion returns the firmware version reported by the handshake.
func (s *Session) FirmwareVersion() string {
	return s.firmwareVersion
}

// HardwareRevision returns the hardware revision reported by the handshake.
func (s *Session) HardwareRevision() string {
	return s.hardwareRevision
}

// Ready reports whether the handshake has completed.
func (s *Session) Ready() bool {
	return s.ready
}

// Close releases the underlying port.
func (s *Session) Close() error {
	return s.port.Close()
}

// Handshake performs the readiness check: a firmware version query answered
// within HandshakeTimeout. Firmware older than MinFirmwareVersion is
// rejected. Failure here is fatal for the invocation and is not retried.
func (s *Session) Handshake() error {
	frame, err := EncodePacketFromValues(MsgFWVersion, nil)
	if err != nil {
		return &LinkUnavailableError{Port: s.portName, Reason: "encode readiness query", Err: err}
	}
	if err := s.writeFrame(frame); err != nil {
		return &LinkUnavailableError{Port: s.portName, Reason: "write readiness query", Err: err}
	}

	reply, err := s.readPacket(s.HandshakeTimeout)
	if err != nil {
		return &LinkUnavailableError{Port: s.portName, Reason: "no identification reply", Err: err}
	}
	if reply.Type() != MsgResult {
		return &LinkUnavailableError{
			Port:   s.portName,
			Reason: fmt.Sprintf("unexpected reply 0x%02X to readiness query", reply.Type()),
		}
	}

	version, ok := GetMapString(reply.PayloadMap(), KeyFWVersionString)
	if !ok {
		return &LinkUnavailableError{Port: s.portName, Reason: "identification reply missing firmware version"}
	}
	if !VersionAtLeast(version, MinFirmwareVersion) {
		return &LinkUnavailableError{
			Port:   s.portName,
			Reason: fmt.Sprintf("firmware %s is outdated, %s or newer required", version, MinFirmwareVersion),
		}
	}

	s.firmwareVersion = version
	s.hardwareRevision, _ = GetMapString(reply.PayloadMap(), KeyHWRevision)
	s.ready = true
	return nil
}

// Exchange sends one packet and waits for the reply, retransmitting on
// timeout, NACK, checksum failure or a structurally invalid reply until
// the attempt budget runs out.
// Retry counting is ordinary control flow; only budget exhaustion surfaces,
// as LinkError. A protocol error reply (0xE0 range) is returned as
// RemoteError without consuming retries.
func (s *Session) Exchange(p *Packet) (*Packet, error) {
	frame, err := EncodePacketFromValues(p.Type(), p.PayloadMap())
	if err != nil {
		return nil, fmt.Errorf("encode frame 0x%02X: %w", p.Type(), err)
	}

	opName := FormatMessageType(p.Type())
	var lastErr error
	for attempt := 0; attempt < s.MaxAttempts; attempt++ {
		if attempt > 0 {
			s.stats.Retries++
		}
		if err := s.writeFrame(frame); err != nil {
			return nil, fmt.Errorf("write frame 0x%02X: %w", p.Type(), err)
		}
		s.trace("tx", p)

		reply, err := s.readPacket(s.ResponseTimeout)
		if err != nil {
			// Timeouts and decode failures (checksum mismatch included) are
			// transient: retransmit and consume one attempt.
			lastErr = err
			continue
		}
		s.trace("rx", reply)

		if verr := ValidateReply(reply); verr != nil {
			lastErr = verr
			continue
		}
		if reply.Type() == MsgNack {
			s.stats.Nacks++
			msg, _ := GetMapString(reply.PayloadMap(), KeyAckMessage)
			lastErr = fmt.Errorf("NACK: %s", msg)
			continue
		}
		if reply.IsError() {
			msg, _ := GetMapString(reply.PayloadMap(), KeyAckMessage)
			return nil, &RemoteError{MsgType: reply.Type(), Message: msg}
		}
		return reply, nil
	}

	return nil, &LinkError{Op: opName, Attempts: s.MaxAttempts, Err: lastErr}
}

// ExpectAck performs an Exchange and requires a MsgAck reply. The ack's
// status message, if any, is returned.
func (s *Session) ExpectAck(p *Packet) (string, error) {
	reply, err := s.Exchange(p)
	if err != nil {
		return "", err
	}
	if reply.Type() != MsgAck {
		return "", fmt.Errorf("expected ACK, got %s", FormatMessageType(reply.Type()))
	}
	msg, _ := GetMapString(reply.PayloadMap(), KeyAckMessage)
	return msg, nil
}

func (s *Session) trace(direction string, p *Packet) {
	if s.Trace != nil {
		s.Trace(direction, p)
	}
}

// writeFrame writes one encoded frame to the port.
func (s *Session) writeFrame(frame []byte) error {
	n, err := s.port.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(frame))
	}
	s.stats.FramesSent++
	s.stats.BytesSent += uint64(len(frame))
	return nil
}

// readPacket reads bytes until a complete frame decodes or the deadline
// passes. A decode error (checksum mismatch, framing fault) is returned
// immediately so the caller can charge it against the retry budget.
func (s *Session) readPacket(timeout time.Duration) (*Packet, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, MaxPacketSize)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.stats.Timeouts++
			s.decoder.Reset()
			return nil, errTimeout
		}
		if err := s.port.SetReadTimeout(remaining); err != nil {
			return nil, fmt.Errorf("set read timeout: %w", err)
		}

		n, err := s.port.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read from %s: %w", s.portName, err)
		}
		s.stats.BytesReceived += uint64(n)

		for i := 0; i < n; i++ {
			packet, derr := s.decoder.DecodeByte(buf[i])
			if derr != nil {
				s.stats.CRCErrors++
				return nil, derr
			}
			if packet != nil {
				s.stats.FramesReceived++
				return packet, nil
			}
		}
	}
}
