// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

// Package catalog resolves memory-device descriptors and socket pin maps
// from the bundled device database plus optional user overrides.
//
// The database is data the programmer firmware was built against: capability
// flags are preserved verbatim even where vendor data is internally
// inconsistent, and override files exist precisely to patch such entries.
package catalog

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// CapabilityFlags is the device capability bitmask carried verbatim from the
// database. The known bits below match the firmware's interpretation; other
// bits are preserved but not interpreted host-side.
type CapabilityFlags uint32

const (
	// CapRequiresVPP marks devices needing the high programming voltage
	CapRequiresVPP CapabilityFlags = 0x00000008
	// CapElectricalErase marks devices erasable by command, not UV light
	CapElectricalErase CapabilityFlags = 0x00000010
	// CapReadableChipID marks devices with a readable identification word
	CapReadableChipID CapabilityFlags = 0x00000020
	// CapWritable marks EEPROM/Flash/SRAM-style in-system writability
	CapWritable CapabilityFlags = 0x00000080
	// CapBootBlock marks devices with boot block locking features
	CapBootBlock CapabilityFlags = 0x00000200
	// CapSDPBeforeWrite marks software data protection preceding writes
	CapSDPBeforeWrite CapabilityFlags = 0x00004000
	// CapSDPAfterWrite marks software data protection following writes
	CapSDPAfterWrite CapabilityFlags = 0x00008000
)

// Has reports whether all bits in mask are set
func (f CapabilityFlags) Has(mask CapabilityFlags) bool {
	return f&mask == mask
}

// ChipType classifies the firmware algorithm family of a device
type ChipType int

// Chip type values, matching the firmware's type dispatch
const (
	TypeEPROM  ChipType = 1
	TypeFlash2 ChipType = 2
	TypeFlash3 ChipType = 3
	TypeSRAM   ChipType = 4
)

func (t ChipType) String() string {
	switch t {
	case TypeEPROM:
		return "EPROM"
	case TypeFlash2:
		return "Flash type 2"
	case TypeFlash3:
		return "Flash type 3"
	case TypeSRAM:
		return "SRAM"
	}
	return fmt.Sprintf("Unknown %d", int(t))
}

// DeviceDescriptor describes one memory-device variant: identity, geometry
// and the electrical parameters handed to the programmer firmware.
type DeviceDescriptor struct {
	Name         string
	Manufacturer string

	PinCount   int
	MemorySize uint32
	ChipType   ChipType
	ProtocolID uint8
	Vpp        uint8  // programming voltage, volts (0 = none required)
	PulseDelay uint16 // programming pulse delay, microseconds
	Flags      CapabilityFlags

	ChipID    uint16 // expected identification word
	HasChipID bool

	PinMapID int
	CanErase bool
	Verified bool
}

// AddressBits returns the number of address lines the device needs.
func (d *DeviceDescriptor) AddressBits() int {
	if d.MemorySize <= 1 {
		return 1
	}
	return bits.Len32(d.MemorySize - 1)
}

// deviceRecord is the JSON shape of one database entry. All fields except
// the name are pointers so override entries can patch individual fields.
type deviceRecord struct {
	Name       string         `json:"name"`
	PinCount   *int           `json:"pin-count,omitempty"`
	MemorySize *string        `json:"memory-size,omitempty"`
	Type       *string        `json:"type,omitempty"`
	CanErase   *bool          `json:"can-erase,omitempty"`
	HasChipID  *bool          `json:"has-chip-id,omitempty"`
	ChipID     *string        `json:"chip-id,omitempty"`
	PinMap     *int           `json:"pin-map,omitempty"`
	ProtocolID *string        `json:"protocol-id,omitempty"`
	PulseDelay *string        `json:"pulse-delay,omitempty"`
	Flags      *string        `json:"flags,omitempty"`
	Verified   *bool          `json:"verified,omitempty"`
	Voltages   *voltageRecord `json:"voltages,omitempty"`
}

type voltageRecord struct {
	Vpp *float64 `json:"vpp"`
}

// patch overlays the fields present in o onto r.
func (r *deviceRecord) patch(o *deviceRecord) {
	if o.PinCount != nil {
		r.PinCount = o.PinCount
	}
	if o.MemorySize != nil {
		r.MemorySize = o.MemorySize
	}
	if o.Type != nil {
		r.Type = o.Type
	}
	if o.CanErase != nil {
		r.CanErase = o.CanErase
	}
	if o.HasChipID != nil {
		r.HasChipID = o.HasChipID
	}
	if o.ChipID != nil {
		r.ChipID = o.ChipID
	}
	if o.PinMap != nil {
		r.PinMap = o.PinMap
	}
	if o.ProtocolID != nil {
		r.ProtocolID = o.ProtocolID
	}
	if o.PulseDelay != nil {
		r.PulseDelay = o.PulseDelay
	}
	if o.Flags != nil {
		r.Flags = o.Flags
	}
	if o.Verified != nil {
		r.Verified = o.Verified
	}
	if o.Voltages != nil {
		r.Voltages = o.Voltages
	}
}

// toDescriptor validates a record and builds the immutable descriptor.
// Malformed entries fail here, at catalog construction, not at first use.
func (r *deviceRecord) toDescriptor(manufacturer string) (*DeviceDescriptor, error) {
	if r.Name == "" {
		return nil, fmt.Errorf("device entry for %s has no name", manufacturer)
	}
	fail := func(field string, err error) error {
		return fmt.Errorf("device %s/%s: invalid %s: %w", manufacturer, r.Name, field, err)
	}

	if r.PinCount == nil || r.MemorySize == nil || r.ProtocolID == nil {
		return nil, fmt.Errorf("device %s/%s: missing pin-count, memory-size or protocol-id", manufacturer, r.Name)
	}

	memSize, err := parseHex(*r.MemorySize)
	if err != nil {
		return nil, fail("memory-size", err)
	}
	if memSize == 0 {
		return nil, fmt.Errorf("device %s/%s: memory-size must be > 0", manufacturer, r.Name)
	}
	protocolID, err := parseHex(*r.ProtocolID)
	if err != nil {
		return nil, fail("protocol-id", err)
	}

	d := &DeviceDescriptor{
		Name:         r.Name,
		Manufacturer: manufacturer,
		PinCount:     *r.PinCount,
		MemorySize:   uint32(memSize),
		ProtocolID:   uint8(protocolID),
	}

	if r.PulseDelay != nil {
		pd, err := parseHex(*r.PulseDelay)
		if err != nil {
			return nil, fail("pulse-delay", err)
		}
		d.PulseDelay = uint16(pd)
	}
	if r.Flags != nil {
		fl, err := parseHex(*r.Flags)
		if err != nil {
			return nil, fail("flags", err)
		}
		d.Flags = CapabilityFlags(fl)
	}
	if r.ChipID != nil {
		id, err := parseHex(*r.ChipID)
		if err != nil {
			return nil, fail("chip-id", err)
		}
		d.ChipID = uint16(id)
	}
	if r.HasChipID != nil {
		d.HasChipID = *r.HasChipID
	} else {
		d.HasChipID = d.ChipID != 0
	}
	if r.Voltages != nil && r.Voltages.Vpp != nil {
		d.Vpp = uint8(*r.Voltages.Vpp)
	}
	if r.CanErase != nil {
		d.CanErase = *r.CanErase
	}
	if r.Verified != nil {
		d.Verified = *r.Verified
	}
	if r.PinMap != nil {
		d.PinMapID = *r.PinMap
	}

	d.ChipType = classify(r.Type, d.ProtocolID, d.Flags)
	return d, nil
}

// classify derives the firmware algorithm family from the database type
// string, the protocol id and the capability flags.
func classify(typ *string, protocolID uint8, flags CapabilityFlags) ChipType {
	if typ == nil || *typ != "memory" {
		return TypeSRAM
	}
	switch {
	case protocolID == 0x06:
		return TypeFlash3
	case protocolID == 0x05:
		return TypeFlash2
	case flags.Has(CapRequiresVPP):
		return TypeEPROM
	}
	return TypeSRAM
}

// parseHex parses a hex numeric string, with or without the 0x prefix.
func parseHex(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	return strconv.ParseUint(s, 16, 32)
}
