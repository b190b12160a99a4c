// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package rurp

import "fmt"

// ValidationError reports a structurally invalid reply: a frame that decoded
// cleanly but does not carry what its message type requires.
type ValidationError struct {
	MsgType uint8
	Reason  string
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s reply: %s", FormatMessageType(v.MsgType), v.Reason)
}

// ValidateReply checks a decoded reply against its message type's contract.
// The session treats a failure as a transient fault and retransmits.
func ValidateReply(p *Packet) error {
	if err := p.ParseError(); err != nil {
		return &ValidationError{MsgType: p.Type(), Reason: err.Error()}
	}

	switch p.Type() {
	case MsgAck, MsgNack:
		return nil

	case MsgData:
		m := p.PayloadMap()
		if _, ok := GetMapUint(m, KeyChunkAddress); !ok {
			return &ValidationError{MsgType: MsgData, Reason: "missing chunk address"}
		}
		data, ok := GetMapBytes(m, KeyChunkData)
		if !ok {
			return &ValidationError{MsgType: MsgData, Reason: "missing chunk data"}
		}
		if len(data) > ChunkSize {
			return &ValidationError{
				MsgType: MsgData,
				Reason:  fmt.Sprintf("chunk of %d bytes exceeds %d", len(data), ChunkSize),
			}
		}
		return nil

	case MsgResult:
		if len(p.PayloadMap()) == 0 {
			return &ValidationError{MsgType: MsgResult, Reason: "empty result"}
		}
		return nil

	case MsgErrorInvalidCmd, MsgErrorUnsupported:
		return nil
	}

	return &ValidationError{MsgType: p.Type(), Reason: "not a reply type"}
}
