// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package catalog

import "fmt"

// PinMap maps a device's logical address-bus bit order to physical socket
// pin numbers. AddressPins holds the physical DIP pin carrying each address
// bit, least significant first.
type PinMap struct {
	PinCount int
	ID       int

	AddressPins []int
	RWPin       int // read/write control pin, 0 when absent
	VppPin      int // dedicated programming-voltage pin, 0 when absent

	// Holder marks socket-adapter entries that describe a carrier, not a
	// directly wired device; they yield no bus configuration.
	Holder bool
}

// pinMapRecord is the JSON shape of one pin-map entry.
type pinMapRecord struct {
	AddressBusPins []int `json:"address-bus-pins"`
	RWPin          *int  `json:"rw-pin,omitempty"`
	VppPin         *int  `json:"vpp-pin,omitempty"`
	Holder         *bool `json:"holder,omitempty"`
}

func (r *pinMapRecord) toPinMap(pinCount, id int) *PinMap {
	m := &PinMap{
		PinCount:    pinCount,
		ID:          id,
		AddressPins: append([]int(nil), r.AddressBusPins...),
	}
	if r.RWPin != nil {
		m.RWPin = *r.RWPin
	}
	if r.VppPin != nil {
		m.VppPin = *r.VppPin
	}
	if r.Holder != nil {
		m.Holder = *r.Holder
	}
	return m
}

// TranslateAddress spreads the logical address over the physical pins: bit i
// of addr lands on AddressPins[i]. The returned map is physical pin → bit
// value. Chunk offset arithmetic never goes through here; translation
// applies only when emitting address signals.
func (m *PinMap) TranslateAddress(addr uint32) map[int]uint8 {
	out := make(map[int]uint8, len(m.AddressPins))
	for i, pin := range m.AddressPins {
		out[pin] = uint8((addr >> uint(i)) & 1)
	}
	return out
}

// LogicalAddress is the inverse of TranslateAddress: it recovers the logical
// address from a physical pin assignment.
func (m *PinMap) LogicalAddress(pins map[int]uint8) uint32 {
	var addr uint32
	for i, pin := range m.AddressPins {
		if pins[pin] != 0 {
			addr |= 1 << uint(i)
		}
	}
	return addr
}

// BusConfig carries the programmer shield line numbers derived from a pin
// map: what actually goes over the wire in an operation command.
type BusConfig struct {
	Lines   []int // shield line per address bit, LSB first
	RWLine  int   // -1 when the socket has no read/write line
	VppLine int   // -1 when the socket has no dedicated VPP line
}

// shieldLines translates physical DIP pin numbers to the programmer shield's
// register line numbers. Only socket pins routed to the shield appear; the
// tables match the board layout for each supported package.
var shieldLines = map[int]map[int]int{
	24: {
		1: 7, 2: 6, 3: 5, 4: 4, 5: 3, 6: 2, 7: 1, 8: 0,
		18: romCELine, 19: 10, 21: 11, 22: 9, 23: 8,
	},
	28: {
		1: 15, 2: 12, 3: 7, 4: 6, 5: 5, 6: 4, 7: 3, 8: 2, 9: 1, 10: 0,
		21: 10, 23: 11, 24: 9, 25: 8, 26: 13, 27: 14,
	},
	32: {
		1: 21, 2: 16, 3: 15, 4: 12, 5: 7, 6: 6, 7: 5, 8: 4, 9: 3, 10: 2,
		11: 1, 12: 0, 23: 10, 25: 11, 26: 9, 27: 8, 28: 13, 29: 14,
		30: 20, 31: 22,
	},
}

// romCELine is the shield line driving the chip-enable pin on 24-pin sockets
const romCELine = 100

// BusConfig derives the shield line routing for the pin map. Holder entries
// and sockets without a line table yield a nil config: the firmware then
// falls back to its default routing for the package.
func (m *PinMap) BusConfig() (*BusConfig, error) {
	if m.Holder {
		return nil, nil
	}
	table, ok := shieldLines[m.PinCount]
	if !ok {
		return nil, nil
	}

	cfg := &BusConfig{RWLine: -1, VppLine: -1}
	for _, pin := range m.AddressPins {
		line, ok := table[pin]
		if !ok {
			return nil, fmt.Errorf("pin map %d/%d: address pin %d not routed to shield", m.PinCount, m.ID, pin)
		}
		cfg.Lines = append(cfg.Lines, line)
	}
	if m.RWPin != 0 {
		line, ok := table[m.RWPin]
		if !ok {
			return nil, fmt.Errorf("pin map %d/%d: rw pin %d not routed to shield", m.PinCount, m.ID, m.RWPin)
		}
		cfg.RWLine = line
	}
	if m.VppPin != 0 {
		line, ok := table[m.VppPin]
		if !ok {
			return nil, fmt.Errorf("pin map %d/%d: vpp pin %d not routed to shield", m.PinCount, m.ID, m.VppPin)
		}
		cfg.VppLine = line
	}
	return cfg, nil
}
