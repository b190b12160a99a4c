// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package rurp

// Command builder functions create Packet structs ready for encoding.
// These are convenience wrappers around NewPacketWithPayload that ensure
// correct payload key usage.

// DeviceParams carries the resolved device parameters included in every
// operation command so the firmware can configure its electrical sequencing.
type DeviceParams struct {
	ProtocolID uint8
	MemorySize uint32
	Flags      uint8
	Vpp        uint8  // programming voltage, volts
	PulseDelay uint16 // microseconds
	ChipID     uint16 // 0 when the device has no readable id
	Address    uint32 // operation start address (logical)

	// Physical routing, resolved from the pin map. BusPins lists the shield
	// line for each address bit, least significant first. RWPin and VppPin
	// are -1 when the socket has no dedicated line for that role.
	BusPins []int
	RWPin   int
	VppPin  int
}

// NewOperationCommand creates an operation command packet (MsgRead, MsgWrite,
// MsgErase, MsgBlankCheck, MsgChipID or MsgVerify) carrying the full device
// parameter set. The programmer stays configured for this device until the
// next operation command or MsgIdle.
func NewOperationCommand(msgType uint8, params DeviceParams) *Packet {
	payload := map[int]interface{}{
		KeyProtocolID: uint64(params.ProtocolID),
		KeyMemorySize: uint64(params.MemorySize),
		KeyFlags:      uint64(params.Flags),
		KeyVpp:        uint64(params.Vpp),
		KeyPulseDelay: uint64(params.PulseDelay),
	}
	if params.ChipID != 0 {
		payload[KeyChipID] = uint64(params.ChipID)
	}
	if params.Address != 0 {
		payload[KeyAddress] = uint64(params.Address)
	}
	if len(params.BusPins) > 0 {
		pins := make([]interface{}, len(params.BusPins))
		for i, p := range params.BusPins {
			pins[i] = uint64(p)
		}
		payload[KeyBusPins] = pins
	}
	if params.RWPin >= 0 {
		payload[KeyRWPin] = uint64(params.RWPin)
	}
	if params.VppPin >= 0 {
		payload[KeyVppPin] = uint64(params.VppPin)
	}
	return NewPacketWithPayload(msgType, payload)
}

// NewProbeCommand creates a parameterless command packet (MsgReadVpp,
// MsgReadVpe, MsgFWVersion, MsgHWVersion).
func NewProbeCommand(msgType uint8) *Packet {
	return NewPacketWithPayload(msgType, nil)
}

// NewConfigCommand creates a MsgConfig packet updating the programmer's
// persistent settings. Arguments below zero leave the corresponding setting
// untouched; rev 0xFF disables the hardware revision override.
func NewConfigCommand(rev, r16, r14r15 int) *Packet {
	payload := map[int]interface{}{}
	if rev >= 0 {
		payload[KeyConfigRevision] = uint64(rev)
	}
	if r16 > 0 {
		payload[KeyConfigR16] = uint64(r16)
	}
	if r14r15 > 0 {
		payload[KeyConfigR14R15] = uint64(r14r15)
	}
	return NewPacketWithPayload(MsgConfig, payload)
}

// NewChunkRequest creates a MsgChunkRequest packet asking the programmer for
// length bytes starting at the logical address.
func NewChunkRequest(address uint32, length uint16) *Packet {
	payload := map[int]interface{}{
		KeyChunkAddress: uint64(address),
		KeyChunkLength:  uint64(length),
	}
	return NewPacketWithPayload(MsgChunkRequest, payload)
}

// NewChunkData creates a MsgChunkData packet pushing one chunk of the image
// to the programmer. The frame CRC covers the data.
func NewChunkData(address uint32, data []byte) *Packet {
	payload := map[int]interface{}{
		KeyChunkAddress: uint64(address),
		KeyChunkData:    data,
	}
	return NewPacketWithPayload(MsgChunkData, payload)
}

// NewEndTransfer creates a MsgEndTransfer packet closing a chunked transfer.
func NewEndTransfer() *Packet {
	return NewPacketWithPayload(MsgEndTransfer, nil)
}

// NewIdleCommand creates a MsgIdle packet returning the programmer to its
// idle state, releasing the socket voltages.
func NewIdleCommand() *Packet {
	return NewPacketWithPayload(MsgIdle, nil)
}

// Reply builders, used by the firmware side of the protocol and by tests
// emulating a programmer.

// NewAck creates a MsgAck reply, optionally carrying a status message.
func NewAck(message string) *Packet {
	if message == "" {
		return NewPacketWithPayload(MsgAck, nil)
	}
	return NewPacketWithPayload(MsgAck, map[int]interface{}{KeyAckMessage: message})
}

// NewNack creates a MsgNack reply requesting retransmission.
func NewNack(message string) *Packet {
	if message == "" {
		return NewPacketWithPayload(MsgNack, nil)
	}
	return NewPacketWithPayload(MsgNack, map[int]interface{}{KeyAckMessage: message})
}

// NewDataReply creates a MsgData reply carrying one chunk of device contents.
func NewDataReply(address uint32, data []byte) *Packet {
	payload := map[int]interface{}{
		KeyChunkAddress: uint64(address),
		KeyChunkData:    data,
	}
	return NewPacketWithPayload(MsgData, payload)
}

// NewResult creates a MsgResult reply carrying a scalar value.
func NewResult(value uint64) *Packet {
	return NewPacketWithPayload(MsgResult, map[int]interface{}{KeyResultValue: value})
}

// NewTextResult creates a MsgResult reply carrying a text value.
func NewTextResult(text string) *Packet {
	return NewPacketWithPayload(MsgResult, map[int]interface{}{KeyResultText: text})
}

// NewVersionResult creates the MsgResult reply to MsgFWVersion, carrying the
// firmware version and hardware revision strings.
func NewVersionResult(fwVersion, hwRevision string) *Packet {
	return NewPacketWithPayload(MsgResult, map[int]interface{}{
		KeyFWVersionString: fwVersion,
		KeyHWRevision:      hwRevision,
	})
}
