// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package catalog

import (
	"errors"
	"testing"
)

// ============================================================
// Resolution Tests
// ============================================================

func TestResolvePinMap_Known(t *testing.T) {
	cat := loadBase(t)

	m, err := cat.ResolvePinMap(28, 1)
	if err != nil {
		t.Fatalf("ResolvePinMap failed: %v", err)
	}
	if len(m.AddressPins) != 15 {
		t.Errorf("AddressPins: got %d pins, want 15", len(m.AddressPins))
	}
	if m.VppPin != 1 {
		t.Errorf("VppPin: got %d, want 1", m.VppPin)
	}
	if m.RWPin != 0 {
		t.Errorf("RWPin: got %d, want absent (0)", m.RWPin)
	}
}

func TestResolvePinMap_NotFound(t *testing.T) {
	cat := loadBase(t)

	tests := []struct {
		name     string
		pinCount int
		id       int
	}{
		{"unknown pin count", 40, 0},
		{"unknown id", 28, 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cat.ResolvePinMap(tt.pinCount, tt.id)
			var notFound *PinMapNotFoundError
			if !errors.As(err, &notFound) {
				t.Fatalf("Expected PinMapNotFoundError, got: %v", err)
			}
			if notFound.PinCount != tt.pinCount || notFound.ID != tt.id {
				t.Errorf("Error fields: got %d/%d, want %d/%d",
					notFound.PinCount, notFound.ID, tt.pinCount, tt.id)
			}
		})
	}
}

// ============================================================
// Address Translation Tests
// ============================================================

func TestTranslateAddress_BitPlacement(t *testing.T) {
	cat := loadBase(t)
	m, err := cat.ResolvePinMap(28, 2)
	if err != nil {
		t.Fatalf("ResolvePinMap failed: %v", err)
	}

	// Address 0b101: bit 0 on pin 10, bit 2 on pin 8, all others low.
	pins := m.TranslateAddress(0b101)
	if pins[10] != 1 {
		t.Errorf("Pin 10 (A0): got %d, want 1", pins[10])
	}
	if pins[9] != 0 {
		t.Errorf("Pin 9 (A1): got %d, want 0", pins[9])
	}
	if pins[8] != 1 {
		t.Errorf("Pin 8 (A2): got %d, want 1", pins[8])
	}
	if len(pins) != len(m.AddressPins) {
		t.Errorf("Translation covers %d pins, want %d", len(pins), len(m.AddressPins))
	}
}

func TestTranslateAddress_Bijection(t *testing.T) {
	cat := loadBase(t)
	m, err := cat.ResolvePinMap(28, 2)
	if err != nil {
		t.Fatalf("ResolvePinMap failed: %v", err)
	}

	addresses := []uint32{0, 1, 0x5555, 0xAAAA, 0xABCD, 0xFFFF}
	for _, addr := range addresses {
		pins := m.TranslateAddress(addr)
		back := m.LogicalAddress(pins)
		if back != addr {
			t.Errorf("Round trip 0x%04X → pins → 0x%04X", addr, back)
		}
	}

	// Distinct addresses must produce distinct pin assignments.
	seen := make(map[string]uint32)
	for _, addr := range addresses {
		pins := m.TranslateAddress(addr)
		key := ""
		for _, pin := range m.AddressPins {
			key += string(rune('0' + pins[pin]))
		}
		if prev, dup := seen[key]; dup {
			t.Errorf("Addresses 0x%04X and 0x%04X map to the same pins", prev, addr)
		}
		seen[key] = addr
	}
}

// ============================================================
// Shield Line Routing Tests
// ============================================================

func TestBusConfig_ShieldLines(t *testing.T) {
	cat := loadBase(t)
	m, err := cat.ResolvePinMap(28, 0)
	if err != nil {
		t.Fatalf("ResolvePinMap failed: %v", err)
	}

	cfg, err := m.BusConfig()
	if err != nil {
		t.Fatalf("BusConfig failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected a bus config for a wired 28-pin map")
	}

	// Pins 10..2 of the 28-pin socket route to shield lines 0..12 in
	// address bit order.
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if len(cfg.Lines) != len(want) {
		t.Fatalf("Lines: got %d, want %d", len(cfg.Lines), len(want))
	}
	for i := range want {
		if cfg.Lines[i] != want[i] {
			t.Errorf("Line[%d]: got %d, want %d", i, cfg.Lines[i], want[i])
		}
	}
	if cfg.VppLine != 15 {
		t.Errorf("VppLine: got %d, want 15 (socket pin 1)", cfg.VppLine)
	}
	if cfg.RWLine != -1 {
		t.Errorf("RWLine: got %d, want -1 (absent)", cfg.RWLine)
	}
}

func TestBusConfig_24PinRWLine(t *testing.T) {
	cat := loadBase(t)
	m, err := cat.ResolvePinMap(24, 1)
	if err != nil {
		t.Fatalf("ResolvePinMap failed: %v", err)
	}
	cfg, err := m.BusConfig()
	if err != nil {
		t.Fatalf("BusConfig failed: %v", err)
	}
	if cfg.RWLine != 11 {
		t.Errorf("RWLine: got %d, want 11 (socket pin 21)", cfg.RWLine)
	}
}

func TestBusConfig_HolderYieldsNone(t *testing.T) {
	cat := loadBase(t)
	m, err := cat.ResolvePinMap(28, 16)
	if err != nil {
		t.Fatalf("ResolvePinMap failed: %v", err)
	}
	if !m.Holder {
		t.Fatal("Map 28/16 should be a holder entry")
	}
	cfg, err := m.BusConfig()
	if err != nil {
		t.Fatalf("BusConfig failed: %v", err)
	}
	if cfg != nil {
		t.Error("Holder entries must yield no bus config")
	}
}

func TestBusConfig_UnroutedPinFails(t *testing.T) {
	m := &PinMap{
		PinCount:    28,
		ID:          99,
		AddressPins: []int{10, 9, 14}, // pin 14 is not routed to the shield
	}
	if _, err := m.BusConfig(); err == nil {
		t.Error("Expected error for an address pin with no shield line")
	}
}
