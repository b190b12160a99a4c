// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

// Package rurp implements the framed serial protocol spoken between the
// Firestarter host and the RURP programmer firmware.
//
// Every frame carries a CBOR-encoded [msg_type, payload_map] body delimited
// by START/END bytes, byte-stuffed and protected by CRC-16-CCITT. Operation
// commands configure the programmer for one device; chunk messages move the
// device image in fixed-size, individually acknowledged pieces.
package rurp

import "time"

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Packet size limits
const (
	MaxPacketSize  = 128 // 14 overhead + 114 payload
	MaxPayloadSize = 114
)

// ChunkSize is the payload size of one data frame. It is a protocol
// constant: chunked transfers always move this many bytes per acknowledged
// frame regardless of the device's memory size.
const ChunkSize = 64

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Link timing and retry budget
const (
	DefaultBaudRate         = 250000
	DefaultResponseTimeout  = 10 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second

	// MaxAttempts bounds the send attempts per frame exchange. A timeout,
	// NACK or checksum failure consumes one attempt; exhausting the budget
	// aborts the operation with LinkError.
	MaxAttempts = 3
)

// MinFirmwareVersion is the oldest programmer firmware the host will talk to.
const MinFirmwareVersion = "2.0.0"

// Message types - Operation Commands (Host → Programmer) 0x01-0x0F
// The values match the firmware's command dispatch table.
const (
	MsgRead       = 0x01
	MsgWrite      = 0x02
	MsgErase      = 0x03
	MsgBlankCheck = 0x04
	MsgChipID     = 0x05
	MsgVerify     = 0x06
	MsgReadVpp    = 0x0B
	MsgReadVpe    = 0x0C
	MsgFWVersion  = 0x0D
	MsgConfig     = 0x0E
	MsgHWVersion  = 0x0F
)

// Message types - Transfer (Host → Programmer) 0x20-0x2F
const (
	MsgChunkRequest = 0x20
	MsgChunkData    = 0x21
	MsgEndTransfer  = 0x22
	MsgIdle         = 0x2F
)

// Message types - Replies (Programmer → Host) 0x30-0x3F
const (
	MsgAck    = 0x30
	MsgNack   = 0x31
	MsgData   = 0x32
	MsgResult = 0x33
)

// Message types - Errors (Bidirectional) 0xE0-0xEF
const (
	MsgErrorInvalidCmd  = 0xE0
	MsgErrorUnsupported = 0xE1
)

// Operation command payload keys
const (
	KeyProtocolID = 0
	KeyMemorySize = 1
	KeyFlags      = 2
	KeyVpp        = 3
	KeyPulseDelay = 4
	KeyChipID     = 5
	KeyAddress    = 6
	KeyBusPins    = 7
	KeyRWPin      = 8
	KeyVppPin     = 9
)

// Chunk and result payload keys
const (
	KeyChunkAddress = 0
	KeyChunkData    = 1
	KeyChunkLength  = 1

	KeyResultValue = 0
	KeyResultText  = 0
	KeyAckMessage  = 0

	KeyFWVersionString = 0
	KeyHWRevision      = 1
)

// Config command payload keys (hardware revision override and shield
// resistor calibration, firmware-side persistent settings)
const (
	KeyConfigRevision = 0
	KeyConfigR16      = 1
	KeyConfigR14R15   = 2
)

// Control flags passed through to the firmware in KeyFlags. Values match the
// firmware's flag register.
const (
	FlagForce          = 0x01
	FlagCanErase       = 0x02
	FlagSkipErase      = 0x04
	FlagSkipBlankCheck = 0x08
	FlagVpeAsVpp       = 0x10
	FlagOutputEnable   = 0x20
	FlagChipEnable     = 0x40
	FlagVerbose        = 0x80
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength
	statePayload
	stateCRC1
	stateCRC2
)
