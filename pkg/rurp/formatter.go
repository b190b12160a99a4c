// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package rurp

import (
	"fmt"
	"strings"
)

// FormatPacket formats a packet into a human-readable string for verbose
// logging and protocol diagnostics.
func FormatPacket(p *Packet) string {
	timestamp := p.Timestamp().Format("15:04:05.000")
	msgType := FormatMessageType(p.Type())

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s (0x%02X) len=%d", timestamp, msgType, p.Type(), p.Length())

	m := p.PayloadMap()
	switch p.Type() {
	case MsgChunkData, MsgData:
		addr, _ := GetMapUint(m, KeyChunkAddress)
		data, _ := GetMapBytes(m, KeyChunkData)
		fmt.Fprintf(&b, " addr=0x%04X bytes=%d", addr, len(data))
	case MsgChunkRequest:
		addr, _ := GetMapUint(m, KeyChunkAddress)
		length, _ := GetMapUint(m, KeyChunkLength)
		fmt.Fprintf(&b, " addr=0x%04X len=%d", addr, length)
	case MsgRead, MsgWrite, MsgErase, MsgBlankCheck, MsgChipID, MsgVerify:
		if size, ok := GetMapUint(m, KeyMemorySize); ok {
			fmt.Fprintf(&b, " mem=0x%X", size)
		}
		if flags, ok := GetMapUint(m, KeyFlags); ok && flags != 0 {
			fmt.Fprintf(&b, " flags=%s", FormatFlags(uint8(flags)))
		}
		if addr, ok := GetMapUint(m, KeyAddress); ok {
			fmt.Fprintf(&b, " addr=0x%04X", addr)
		}
	case MsgAck, MsgNack:
		if msg, ok := GetMapString(m, KeyAckMessage); ok {
			fmt.Fprintf(&b, " %q", msg)
		}
	case MsgResult:
		if v, ok := GetMapUint(m, KeyResultValue); ok {
			fmt.Fprintf(&b, " value=0x%X", v)
		} else if t, ok := GetMapString(m, KeyResultText); ok {
			fmt.Fprintf(&b, " %q", t)
		}
	}

	return b.String()
}

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(msgType uint8) string {
	switch msgType {
	// Operation Commands (0x01-0x0F)
	case MsgRead:
		return "READ"
	case MsgWrite:
		return "WRITE"
	case MsgErase:
		return "ERASE"
	case MsgBlankCheck:
		return "BLANK_CHECK"
	case MsgChipID:
		return "CHIP_ID"
	case MsgVerify:
		return "VERIFY"
	case MsgReadVpp:
		return "READ_VPP"
	case MsgReadVpe:
		return "READ_VPE"
	case MsgFWVersion:
		return "FW_VERSION"
	case MsgConfig:
		return "CONFIG"
	case MsgHWVersion:
		return "HW_VERSION"

	// Transfer (0x20-0x2F)
	case MsgChunkRequest:
		return "CHUNK_REQUEST"
	case MsgChunkData:
		return "CHUNK_DATA"
	case MsgEndTransfer:
		return "END_TRANSFER"
	case MsgIdle:
		return "IDLE"

	// Replies (0x30-0x3F)
	case MsgAck:
		return "ACK"
	case MsgNack:
		return "NACK"
	case MsgData:
		return "DATA"
	case MsgResult:
		return "RESULT"

	// Errors (0xE0-0xEF)
	case MsgErrorInvalidCmd:
		return "ERROR_INVALID_CMD"
	case MsgErrorUnsupported:
		return "ERROR_UNSUPPORTED"

	default:
		return "UNKNOWN"
	}
}

// FormatFlags renders the control flag byte as a comma-separated name list
func FormatFlags(flags uint8) string {
	if flags == 0 {
		return "none"
	}
	names := []struct {
		bit  uint8
		name string
	}{
		{FlagForce, "Force"},
		{FlagCanErase, "CanErase"},
		{FlagSkipErase, "SkipErase"},
		{FlagSkipBlankCheck, "SkipBlankCheck"},
		{FlagVpeAsVpp, "VPEasVPP"},
		{FlagOutputEnable, "OutputEnable"},
		{FlagChipEnable, "ChipEnable"},
		{FlagVerbose, "Verbose"},
	}
	parts := []string{}
	for _, n := range names {
		if flags&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}
