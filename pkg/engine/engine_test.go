// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/henols/firestarter-app/pkg/catalog"
	"github.com/henols/firestarter-app/pkg/rurp"
)

// ============================================================
// Mock Programmer
// ============================================================

// mockProgrammer emulates the firmware side of the link over an in-memory
// device image. It answers every command the engine can send.
type mockProgrammer struct {
	memory []byte
	chipID uint16
	vppMV  int
	vpeMV  int

	configured uint8 // active operation command

	chunkRequests int
	chunkWrites   int
	eraseCount    int
	idleCount     int
}

func newMockProgrammer(size int) *mockProgrammer {
	m := &mockProgrammer{
		memory: make([]byte, size),
		vppMV:  12000,
		vpeMV:  5000,
	}
	for i := range m.memory {
		m.memory[i] = 0xFF
	}
	return m
}

func (m *mockProgrammer) Exchange(p *rurp.Packet) (*rurp.Packet, error) {
	payload := p.PayloadMap()

	switch p.Type() {
	case rurp.MsgRead, rurp.MsgWrite, rurp.MsgBlankCheck, rurp.MsgVerify:
		m.configured = p.Type()
		return rurp.NewAck(""), nil

	case rurp.MsgErase:
		m.eraseCount++
		for i := range m.memory {
			m.memory[i] = 0xFF
		}
		return rurp.NewAck("erased"), nil

	case rurp.MsgChipID:
		return rurp.NewResult(uint64(m.chipID)), nil

	case rurp.MsgReadVpp:
		return rurp.NewResult(uint64(m.vppMV)), nil

	case rurp.MsgReadVpe:
		return rurp.NewResult(uint64(m.vpeMV)), nil

	case rurp.MsgFWVersion:
		return rurp.NewVersionResult("2.1.0", "rev2"), nil

	case rurp.MsgHWVersion:
		return rurp.NewTextResult("rev2"), nil

	case rurp.MsgConfig:
		return rurp.NewAck("config stored"), nil

	case rurp.MsgChunkRequest:
		m.chunkRequests++
		addr, _ := rurp.GetMapUint(payload, rurp.KeyChunkAddress)
		length, _ := rurp.GetMapUint(payload, rurp.KeyChunkLength)
		if int(addr)+int(length) > len(m.memory) {
			return nil, fmt.Errorf("chunk request beyond device end: 0x%X+%d", addr, length)
		}
		return rurp.NewDataReply(uint32(addr), m.memory[addr:addr+length]), nil

	case rurp.MsgChunkData:
		m.chunkWrites++
		if m.configured != rurp.MsgWrite {
			return nil, fmt.Errorf("chunk data while configured for 0x%02X", m.configured)
		}
		addr, _ := rurp.GetMapUint(payload, rurp.KeyChunkAddress)
		data, _ := rurp.GetMapBytes(payload, rurp.KeyChunkData)
		if int(addr)+len(data) > len(m.memory) {
			return nil, fmt.Errorf("chunk write beyond device end: 0x%X+%d", addr, len(data))
		}
		copy(m.memory[addr:], data)
		return rurp.NewAck(""), nil

	case rurp.MsgEndTransfer:
		m.configured = 0
		return rurp.NewAck(""), nil

	case rurp.MsgIdle:
		m.idleCount++
		m.configured = 0
		return rurp.NewAck(""), nil
	}

	return nil, fmt.Errorf("unexpected command 0x%02X", p.Type())
}

// ============================================================
// Fixtures
// ============================================================

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(catalog.Options{})
	if err != nil {
		t.Fatalf("Load catalog: %v", err)
	}
	return cat
}

// newTestEngine builds an engine over a mock sized and keyed for the
// W27C512: 64 KiB, electrically erasable, chip id 0xDA08, VPP 12 V.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *mockProgrammer) {
	t.Helper()
	mock := newMockProgrammer(0x10000)
	mock.chipID = 0xDA08
	eng := New(mock, testCatalog(t), opts...)
	return eng, mock
}

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*31 + 7)
	}
	return data
}

// ============================================================
// Read Tests
// ============================================================

func TestRead_FullDevice(t *testing.T) {
	eng, mock := newTestEngine(t)
	copy(mock.memory, pattern(len(mock.memory)))

	data, err := eng.Read(context.Background(), ReadRequest{Device: "W27C512"})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(data) != 0x10000 {
		t.Fatalf("Read %d bytes, want 0x10000", len(data))
	}
	for i := range data {
		if data[i] != mock.memory[i] {
			t.Fatalf("Byte 0x%04X: got 0x%02X, want 0x%02X", i, data[i], mock.memory[i])
		}
	}
	// 64 KiB at 64-byte chunks is exactly 1024 chunk requests.
	if mock.chunkRequests != 1024 {
		t.Errorf("Chunk requests: got %d, want 1024", mock.chunkRequests)
	}
}

func TestRead_WindowWithUnevenTail(t *testing.T) {
	eng, mock := newTestEngine(t)
	copy(mock.memory, pattern(len(mock.memory)))

	data, err := eng.Read(context.Background(), ReadRequest{
		Device:  "W27C512",
		Address: 0x1234,
		Size:    100,
	})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(data) != 100 {
		t.Fatalf("Read %d bytes, want 100", len(data))
	}
	for i := range data {
		if data[i] != mock.memory[0x1234+i] {
			t.Fatalf("Byte %d: got 0x%02X, want 0x%02X", i, data[i], mock.memory[0x1234+i])
		}
	}
	// 100 bytes is one full chunk plus a 36-byte tail.
	if mock.chunkRequests != 2 {
		t.Errorf("Chunk requests: got %d, want 2", mock.chunkRequests)
	}
}

func TestRead_RangeError(t *testing.T) {
	eng, _ := newTestEngine(t)

	tests := []struct {
		name    string
		address uint32
		size    uint32
	}{
		{"address beyond end", 0x10000, 0},
		{"window crosses end", 0xFFC0, 0x80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Read(context.Background(), ReadRequest{
				Device:  "W27C512",
				Address: tt.address,
				Size:    tt.size,
			})
			var rangeErr *RangeError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("Expected RangeError, got: %v", err)
			}
		})
	}
}

func TestRead_UnknownDevice(t *testing.T) {
	eng, mock := newTestEngine(t)

	_, err := eng.Read(context.Background(), ReadRequest{Device: "NO-SUCH-CHIP"})
	var notFound *catalog.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError, got: %v", err)
	}
	if mock.chunkRequests != 0 || mock.configured != 0 {
		t.Error("Validation failures must precede any hardware interaction")
	}
}

// ============================================================
// Write Tests
// ============================================================

func TestWrite_ReadBackIdentity(t *testing.T) {
	eng, mock := newTestEngine(t)
	image := pattern(0x10000)

	err := eng.Write(context.Background(), WriteRequest{Device: "W27C512", Data: image})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	for i := range image {
		if mock.memory[i] != image[i] {
			t.Fatalf("Byte 0x%04X: device 0x%02X, image 0x%02X", i, mock.memory[i], image[i])
		}
	}
	// 64 KiB at 64-byte chunks is exactly 1024 data frames.
	if mock.chunkWrites != 1024 {
		t.Errorf("Chunk writes: got %d, want 1024", mock.chunkWrites)
	}
	// Device starts blank: no erase needed.
	if mock.eraseCount != 0 {
		t.Errorf("Erase count: got %d, want 0 for a blank device", mock.eraseCount)
	}
}

func TestWrite_ErasesDirtyDevice(t *testing.T) {
	eng, mock := newTestEngine(t)
	mock.memory[0x42] = 0x00 // one dirty byte forces an erase

	image := pattern(256)
	err := eng.Write(context.Background(), WriteRequest{Device: "W27C512", Data: image})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if mock.eraseCount != 1 {
		t.Errorf("Erase count: got %d, want 1", mock.eraseCount)
	}
	for i := range image {
		if mock.memory[i] != image[i] {
			t.Fatalf("Byte %d: device 0x%02X, image 0x%02X", i, mock.memory[i], image[i])
		}
	}
}

func TestWrite_DirtyNotErasableRejected(t *testing.T) {
	// M27C256B is a UV-erasable EPROM: the programmer cannot erase it.
	mock := newMockProgrammer(0x8000)
	mock.chipID = 0x208D
	mock.memory[0] = 0x00
	eng := New(mock, testCatalog(t))

	err := eng.Write(context.Background(), WriteRequest{
		Device: "M27C256B",
		Data:   pattern(64),
	})
	var notErasable *NotErasableError
	if !errors.As(err, &notErasable) {
		t.Fatalf("Expected NotErasableError, got: %v", err)
	}
	if mock.chunkWrites != 0 {
		t.Error("No data may be written to a dirty, unerasable device")
	}
}

func TestWrite_PartialAtOffset(t *testing.T) {
	eng, mock := newTestEngine(t)
	image := pattern(100)

	err := eng.Write(context.Background(), WriteRequest{
		Device:  "W27C512",
		Data:    image,
		Address: 0x8000,
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	for i := range image {
		if mock.memory[0x8000+i] != image[i] {
			t.Fatalf("Byte 0x%04X: device 0x%02X, image 0x%02X", 0x8000+i, mock.memory[0x8000+i], image[i])
		}
	}
	// Surrounding bytes stay untouched.
	if mock.memory[0x7FFF] != 0xFF || mock.memory[0x8000+100] != 0xFF {
		t.Error("Write touched bytes outside the requested window")
	}
}

func TestWrite_ChipIDMismatch(t *testing.T) {
	eng, mock := newTestEngine(t)
	mock.chipID = 0xBFB5 // an SST chip answers in the W27C512's socket

	err := eng.Write(context.Background(), WriteRequest{Device: "W27C512", Data: pattern(64)})
	var mismatch *DeviceMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected DeviceMismatchError, got: %v", err)
	}
	if mismatch.Field != "chip id" {
		t.Errorf("Field: got %q, want \"chip id\"", mismatch.Field)
	}
	if mock.chunkWrites != 0 {
		t.Error("Mismatched device must not be written")
	}
}

func TestWrite_VppOutOfTolerance(t *testing.T) {
	eng, mock := newTestEngine(t)
	mock.vppMV = 21000 // rail configured for a 21 V part, device wants 12 V

	err := eng.Write(context.Background(), WriteRequest{Device: "W27C512", Data: pattern(64)})
	var mismatch *DeviceMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected DeviceMismatchError, got: %v", err)
	}
	if mismatch.Field != "vpp" {
		t.Errorf("Field: got %q, want \"vpp\"", mismatch.Field)
	}
}

func TestWrite_ForceSkipsChecks(t *testing.T) {
	eng, mock := newTestEngine(t)
	mock.chipID = 0x0000
	mock.vppMV = 25000

	err := eng.Write(context.Background(), WriteRequest{
		Device: "W27C512",
		Data:   pattern(64),
		Force:  true,
	})
	if err != nil {
		t.Fatalf("Forced write failed: %v", err)
	}
}

func TestWrite_VerificationError(t *testing.T) {
	// Skip the erase path, then flip one byte after the write so the
	// read-back comparison fails at a known offset.
	mock := newMockProgrammer(0x10000)
	mock.chipID = 0xDA08
	cat := testCatalog(t)

	corrupt := &corruptingLink{mock: mock, flipAt: 0x40}
	eng := New(corrupt, cat)

	err := eng.Write(context.Background(), WriteRequest{Device: "W27C512", Data: pattern(128)})
	var verr *VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected VerificationError, got: %v", err)
	}
	if verr.Offset != 0x40 {
		t.Errorf("Offset: got 0x%04X, want 0x40", verr.Offset)
	}
}

// corruptingLink flips one device byte after the write phase completes, to
// exercise the read-back comparison.
type corruptingLink struct {
	mock   *mockProgrammer
	flipAt int
	done   bool
}

func (c *corruptingLink) Exchange(p *rurp.Packet) (*rurp.Packet, error) {
	if p.Type() == rurp.MsgEndTransfer && c.mock.configured == rurp.MsgWrite && !c.done {
		c.done = true
		reply, err := c.mock.Exchange(p)
		c.mock.memory[c.flipAt] ^= 0xFF
		return reply, err
	}
	return c.mock.Exchange(p)
}

// ============================================================
// Blank Check, Erase, Chip ID
// ============================================================

func TestBlankCheck(t *testing.T) {
	eng, mock := newTestEngine(t)

	blank, err := eng.BlankCheck(context.Background(), "W27C512")
	if err != nil {
		t.Fatalf("BlankCheck failed: %v", err)
	}
	if !blank {
		t.Error("All-0xFF device should be blank")
	}

	mock.memory[0xFFFF] = 0xFE // a single byte anywhere flips the verdict
	blank, err = eng.BlankCheck(context.Background(), "W27C512")
	if err != nil {
		t.Fatalf("BlankCheck failed: %v", err)
	}
	if blank {
		t.Error("Device with one dirty byte must not be blank")
	}
}

func TestErase(t *testing.T) {
	eng, mock := newTestEngine(t)
	mock.memory[0] = 0x00

	if err := eng.Erase(context.Background(), "W27C512"); err != nil {
		t.Fatalf("Erase failed: %v", err)
	}
	if mock.eraseCount != 1 {
		t.Errorf("Erase count: got %d, want 1", mock.eraseCount)
	}
	if mock.memory[0] != 0xFF {
		t.Error("Device not blank after erase")
	}
}

func TestErase_NotSupported(t *testing.T) {
	mock := newMockProgrammer(0x8000)
	eng := New(mock, testCatalog(t))

	err := eng.Erase(context.Background(), "M27C256B")
	var notSupported *NotSupportedError
	if !errors.As(err, &notSupported) {
		t.Fatalf("Expected NotSupportedError, got: %v", err)
	}
	if mock.eraseCount != 0 {
		t.Error("Unsupported erase must not reach the programmer")
	}
}

func TestChipID(t *testing.T) {
	eng, _ := newTestEngine(t)

	id, err := eng.ChipID(context.Background(), "W27C512")
	if err != nil {
		t.Fatalf("ChipID failed: %v", err)
	}
	if id != 0xDA08 {
		t.Errorf("ChipID: got 0x%04X, want 0xDA08", id)
	}
}

func TestChipID_NotSupported(t *testing.T) {
	mock := newMockProgrammer(0x2000)
	eng := New(mock, testCatalog(t))

	_, err := eng.ChipID(context.Background(), "TMS2764")
	var notSupported *NotSupportedError
	if !errors.As(err, &notSupported) {
		t.Fatalf("Expected NotSupportedError, got: %v", err)
	}
}

// ============================================================
// Probes
// ============================================================

func TestVoltageAndVersionProbes(t *testing.T) {
	eng, mock := newTestEngine(t)
	mock.vppMV = 12750
	mock.vpeMV = 4980

	if mv, err := eng.ReadVpp(context.Background()); err != nil || mv != 12750 {
		t.Errorf("ReadVpp: got %d, %v", mv, err)
	}
	if mv, err := eng.ReadVpe(context.Background()); err != nil || mv != 4980 {
		t.Errorf("ReadVpe: got %d, %v", mv, err)
	}
	fw, hw, err := eng.FirmwareVersion(context.Background())
	if err != nil || fw != "2.1.0" || hw != "rev2" {
		t.Errorf("FirmwareVersion: got %q/%q, %v", fw, hw, err)
	}
	rev, err := eng.HardwareRevision(context.Background())
	if err != nil || rev != "rev2" {
		t.Errorf("HardwareRevision: got %q, %v", rev, err)
	}
	msg, err := eng.SetConfig(context.Background(), 2, 250000, 1360000)
	if err != nil || msg != "config stored" {
		t.Errorf("SetConfig: got %q, %v", msg, err)
	}
}

// ============================================================
// Cancellation and Progress
// ============================================================

func TestRead_CancelledReturnsToIdle(t *testing.T) {
	eng, mock := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Read(ctx, ReadRequest{Device: "W27C512"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got: %v", err)
	}
	if mock.idleCount == 0 {
		t.Error("Cancellation must attempt to return the programmer to idle")
	}
}

func TestProgressReporting(t *testing.T) {
	var phases []Phase
	var lastDone int
	eng, mock := newTestEngine(t, WithProgressFunc(func(p Progress) {
		if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
			phases = append(phases, p.Phase)
		}
		if p.Phase == PhaseRead {
			if p.BytesDone < lastDone {
				t.Errorf("BytesDone went backwards: %d after %d", p.BytesDone, lastDone)
			}
			lastDone = p.BytesDone
		}
	}))
	copy(mock.memory, pattern(len(mock.memory)))

	if _, err := eng.Read(context.Background(), ReadRequest{Device: "W27C512", Size: 0x100}); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(phases) != 2 || phases[0] != PhaseRead || phases[1] != PhaseComplete {
		t.Errorf("Phases: got %v, want [read complete]", phases)
	}
	if lastDone != 0x100 {
		t.Errorf("Final BytesDone: got %d, want 0x100", lastDone)
	}
}

func TestWithChunkSize(t *testing.T) {
	eng, mock := newTestEngine(t, WithChunkSize(16))
	copy(mock.memory, pattern(len(mock.memory)))

	if _, err := eng.Read(context.Background(), ReadRequest{Device: "W27C512", Size: 160}); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if mock.chunkRequests != 10 {
		t.Errorf("Chunk requests: got %d, want 10 at 16-byte chunks", mock.chunkRequests)
	}
}

func TestCatalogAccessor(t *testing.T) {
	// Callers resolve descriptors through the engine's catalog instead of
	// loading a second copy of the database.
	eng, _ := newTestEngine(t)

	desc, err := eng.Catalog().Resolve("W27C512")
	if err != nil {
		t.Fatalf("Resolve through engine catalog: %v", err)
	}
	if desc.Name != "W27C512" {
		t.Errorf("Name: got %q, want W27C512", desc.Name)
	}
}
