// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/henols/firestarter-app/pkg/rurp"
)

// ReadRequest parameterizes a device read. Size 0 means "to the end of the
// device"; Address and Size are logical byte offsets.
type ReadRequest struct {
	Device  string
	Address uint32
	Size    uint32
}

// WriteRequest parameterizes a device write.
type WriteRequest struct {
	Device  string
	Data    []byte
	Address uint32

	// Force skips the pre-write chip id and VPP sanity checks.
	Force bool
	// IgnoreBlankCheck skips the blank check and the conditional erase.
	IgnoreBlankCheck bool
	// VpeAsVpp routes the VPE rail to the VPP pin, for devices programmed
	// through an adapter that swaps the rails.
	VpeAsVpp bool
	// SkipVerify omits the post-write read-back comparison.
	SkipVerify bool
}

// VerifyRequest parameterizes a standalone verification pass.
type VerifyRequest struct {
	Device  string
	Data    []byte
	Address uint32
}

// Read reads req.Size bytes starting at req.Address and returns exactly
// that many bytes.
func (e *Engine) Read(ctx context.Context, req ReadRequest) ([]byte, error) {
	op, err := e.newOperation(req.Device, req.Address, req.Size, 0)
	if err != nil {
		return nil, err
	}

	e.logInfo("reading device", "device", op.desc.Name,
		"address", fmt.Sprintf("0x%04X", op.address), "size", op.length)

	if err := e.begin(op, rurp.MsgRead); err != nil {
		return nil, err
	}
	data, err := e.readRange(ctx, op, PhaseRead)
	if err != nil {
		return nil, err
	}
	if err := e.end(op); err != nil {
		return nil, err
	}

	e.reportProgress(op, PhaseComplete, op.address+op.length)
	return data, nil
}

// readRange drives the chunk request loop for the operation's window.
// The operation command must already be acknowledged.
func (e *Engine) readRange(ctx context.Context, op *operation, phase Phase) ([]byte, error) {
	data := make([]byte, 0, op.length)
	address := op.address
	remaining := op.length

	for remaining > 0 {
		if err := e.checkCancelled(ctx, op); err != nil {
			return nil, err
		}
		length := e.config.ChunkSize
		if uint32(length) > remaining {
			length = int(remaining)
		}
		chunk, err := e.requestChunk(address, length)
		if err != nil {
			e.returnToIdle()
			return nil, fmt.Errorf("read chunk at 0x%04X: %w", address, err)
		}
		data = append(data, chunk...)
		address += uint32(length)
		remaining -= uint32(length)
		op.bytesDone += length
		e.reportProgress(op, phase, address)
	}
	return data, nil
}

// Write programs req.Data into the device starting at req.Address.
//
// Unless forced, the chip id and the programmer's VPP rail are checked
// against the catalog first. Unless blank checking is ignored, a dirty
// device is erased (when it can be) or rejected. The written range is read
// back and compared unless verification is skipped.
func (e *Engine) Write(ctx context.Context, req WriteRequest) error {
	if len(req.Data) == 0 {
		return fmt.Errorf("write %s: no data", req.Device)
	}

	var flags uint8
	if req.Force {
		flags |= rurp.FlagForce
	}
	if req.IgnoreBlankCheck {
		flags |= rurp.FlagSkipBlankCheck | rurp.FlagSkipErase
	}
	if req.VpeAsVpp {
		flags |= rurp.FlagVpeAsVpp
	}

	op, err := e.newOperation(req.Device, req.Address, uint32(len(req.Data)), flags)
	if err != nil {
		return err
	}

	e.logInfo("writing device", "device", op.desc.Name,
		"address", fmt.Sprintf("0x%04X", op.address), "size", op.length)

	if !req.Force {
		if err := e.preflightChecks(op); err != nil {
			return err
		}
	}

	if !req.IgnoreBlankCheck {
		blank, err := e.blankCheck(ctx, op)
		if err != nil {
			return err
		}
		if !blank {
			if !op.desc.CanErase {
				return &NotErasableError{Device: op.desc.Name}
			}
			if err := e.erase(op); err != nil {
				return err
			}
		}
	}

	if err := e.writeRange(ctx, op, req.Data); err != nil {
		return err
	}

	if !req.SkipVerify {
		if err := e.verifyRange(ctx, op, req.Data); err != nil {
			return err
		}
	}

	e.reportProgress(op, PhaseComplete, op.address+op.length)
	return nil
}

// preflightChecks compares the inserted device against the catalog before
// any voltage is applied: chip id when the device has one, then the
// programmer's VPP rail against the descriptor's programming voltage.
func (e *Engine) preflightChecks(op *operation) error {
	if op.desc.HasChipID {
		id, err := e.readChipID(op)
		if err != nil {
			return err
		}
		if id != op.desc.ChipID {
			actual := fmt.Sprintf("0x%04X", id)
			if match := e.lookupChipID(id); match != "" {
				actual = fmt.Sprintf("0x%04X (%s)", id, match)
			}
			return &DeviceMismatchError{
				Device:   op.desc.Name,
				Field:    "chip id",
				Expected: fmt.Sprintf("0x%04X", op.desc.ChipID),
				Actual:   actual,
			}
		}
	}

	if op.desc.Vpp > 0 {
		measured, err := e.readVoltage(rurp.MsgReadVpp)
		if err != nil {
			return err
		}
		want := int(op.desc.Vpp) * 1000
		diff := measured - want
		if diff < 0 {
			diff = -diff
		}
		if diff > e.config.VppToleranceMillivolts {
			return &DeviceMismatchError{
				Device:   op.desc.Name,
				Field:    "vpp",
				Expected: fmt.Sprintf("%d mV", want),
				Actual:   fmt.Sprintf("%d mV", measured),
			}
		}
	}
	return nil
}

// lookupChipID returns the name of the first catalog device carrying the
// given chip id, or "".
func (e *Engine) lookupChipID(id uint16) string {
	for desc := range e.catalog.SearchByChipID(id) {
		return desc.Name
	}
	return ""
}

// blankCheck streams the operation window back and compares it against the
// erased pattern. Stops at the first dirty byte.
func (e *Engine) blankCheck(ctx context.Context, op *operation) (bool, error) {
	if err := e.begin(op, rurp.MsgBlankCheck); err != nil {
		return false, err
	}

	address := op.address
	remaining := op.length
	blank := true

scan:
	for remaining > 0 {
		if err := e.checkCancelled(ctx, op); err != nil {
			return false, err
		}
		length := e.config.ChunkSize
		if uint32(length) > remaining {
			length = int(remaining)
		}
		chunk, err := e.requestChunk(address, length)
		if err != nil {
			e.returnToIdle()
			return false, fmt.Errorf("blank check at 0x%04X: %w", address, err)
		}
		for i, b := range chunk {
			if b != ErasedByte {
				e.logDebug("device not blank", "device", op.desc.Name,
					"address", fmt.Sprintf("0x%04X", address+uint32(i)))
				blank = false
				break scan
			}
		}
		address += uint32(length)
		remaining -= uint32(length)
		e.reportProgress(op, PhaseBlankCheck, address)
	}

	if err := e.end(op); err != nil {
		return false, err
	}
	return blank, nil
}

// erase issues the erase command and waits for completion.
func (e *Engine) erase(op *operation) error {
	e.logInfo("erasing device", "device", op.desc.Name)
	if err := e.begin(op, rurp.MsgErase); err != nil {
		return err
	}
	e.reportProgress(op, PhaseErase, op.address)
	return nil
}

// writeRange pushes the image to the device in lock-step chunks.
func (e *Engine) writeRange(ctx context.Context, op *operation, data []byte) error {
	if err := e.begin(op, rurp.MsgWrite); err != nil {
		return err
	}

	address := op.address
	op.bytesDone = 0

	for len(data) > 0 {
		if err := e.checkCancelled(ctx, op); err != nil {
			return err
		}
		length := e.config.ChunkSize
		if length > len(data) {
			length = len(data)
		}
		if _, err := e.expectAck(rurp.NewChunkData(address, data[:length])); err != nil {
			e.returnToIdle()
			return fmt.Errorf("write chunk at 0x%04X: %w", address, err)
		}
		data = data[length:]
		address += uint32(length)
		op.bytesDone += length
		e.reportProgress(op, PhaseWrite, address)
	}

	return e.end(op)
}

// verifyRange reads the operation window back and compares it byte for byte.
func (e *Engine) verifyRange(ctx context.Context, op *operation, data []byte) error {
	if err := e.begin(op, rurp.MsgVerify); err != nil {
		return err
	}
	op.bytesDone = 0
	readBack, err := e.readRange(ctx, op, PhaseVerify)
	if err != nil {
		return err
	}
	if err := e.end(op); err != nil {
		return err
	}
	for i := range data {
		if readBack[i] != data[i] {
			return &VerificationError{
				Device:   op.desc.Name,
				Offset:   op.address + uint32(i),
				Expected: data[i],
				Actual:   readBack[i],
			}
		}
	}
	return nil
}

// Verify compares the device contents against req.Data without writing.
func (e *Engine) Verify(ctx context.Context, req VerifyRequest) error {
	if len(req.Data) == 0 {
		return fmt.Errorf("verify %s: no data", req.Device)
	}
	op, err := e.newOperation(req.Device, req.Address, uint32(len(req.Data)), 0)
	if err != nil {
		return err
	}
	e.logInfo("verifying device", "device", op.desc.Name,
		"address", fmt.Sprintf("0x%04X", op.address), "size", op.length)
	if err := e.verifyRange(ctx, op, req.Data); err != nil {
		return err
	}
	e.reportProgress(op, PhaseComplete, op.address+op.length)
	return nil
}

// Erase erases the whole device.
func (e *Engine) Erase(ctx context.Context, device string) error {
	op, err := e.newOperation(device, 0, 0, 0)
	if err != nil {
		return err
	}
	if !op.desc.CanErase {
		return &NotSupportedError{Device: op.desc.Name, Op: "erase"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.erase(op); err != nil {
		return err
	}
	e.reportProgress(op, PhaseComplete, op.length)
	return nil
}

// BlankCheck reports whether every byte of the device reads as erased.
func (e *Engine) BlankCheck(ctx context.Context, device string) (bool, error) {
	op, err := e.newOperation(device, 0, 0, 0)
	if err != nil {
		return false, err
	}
	blank, err := e.blankCheck(ctx, op)
	if err != nil {
		return false, err
	}
	e.reportProgress(op, PhaseComplete, op.length)
	return blank, nil
}

// ChipID reads the device's identification word.
func (e *Engine) ChipID(ctx context.Context, device string) (uint16, error) {
	op, err := e.newOperation(device, 0, 0, 0)
	if err != nil {
		return 0, err
	}
	if !op.desc.HasChipID {
		return 0, &NotSupportedError{Device: op.desc.Name, Op: "chip id"}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return e.readChipID(op)
}

// readChipID issues the chip id command and parses the scalar result.
func (e *Engine) readChipID(op *operation) (uint16, error) {
	reply, err := e.link.Exchange(rurp.NewOperationCommand(rurp.MsgChipID, op.params()))
	if err != nil {
		return 0, err
	}
	if reply.Type() != rurp.MsgResult {
		return 0, fmt.Errorf("chip id %s: expected RESULT, got %s",
			op.desc.Name, rurp.FormatMessageType(reply.Type()))
	}
	id, ok := rurp.GetMapUint(reply.PayloadMap(), rurp.KeyResultValue)
	if !ok {
		return 0, fmt.Errorf("chip id %s: RESULT carries no value", op.desc.Name)
	}
	return uint16(id), nil
}

// ReadVpp measures the programmer's VPP rail in millivolts.
func (e *Engine) ReadVpp(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return e.readVoltage(rurp.MsgReadVpp)
}

// ReadVpe measures the programmer's VPE rail in millivolts.
func (e *Engine) ReadVpe(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return e.readVoltage(rurp.MsgReadVpe)
}

// MonitorVoltage streams rail measurements to fn at the given interval
// until the context is cancelled. vpe selects the VPE rail over VPP.
func (e *Engine) MonitorVoltage(ctx context.Context, vpe bool, interval time.Duration, fn func(millivolts int)) error {
	msgType := uint8(rurp.MsgReadVpp)
	if vpe {
		msgType = rurp.MsgReadVpe
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		mv, err := e.readVoltage(msgType)
		if err != nil {
			return err
		}
		fn(mv)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) readVoltage(msgType uint8) (int, error) {
	reply, err := e.link.Exchange(rurp.NewProbeCommand(msgType))
	if err != nil {
		return 0, err
	}
	if reply.Type() != rurp.MsgResult {
		return 0, fmt.Errorf("%s: expected RESULT, got %s",
			rurp.FormatMessageType(msgType), rurp.FormatMessageType(reply.Type()))
	}
	mv, ok := rurp.GetMapUint(reply.PayloadMap(), rurp.KeyResultValue)
	if !ok {
		return 0, fmt.Errorf("%s: RESULT carries no value", rurp.FormatMessageType(msgType))
	}
	return int(mv), nil
}

// FirmwareVersion returns the programmer's firmware version and hardware
// revision strings.
func (e *Engine) FirmwareVersion(ctx context.Context) (fw, hw string, err error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	reply, err := e.link.Exchange(rurp.NewProbeCommand(rurp.MsgFWVersion))
	if err != nil {
		return "", "", err
	}
	if reply.Type() != rurp.MsgResult {
		return "", "", fmt.Errorf("firmware version: expected RESULT, got %s",
			rurp.FormatMessageType(reply.Type()))
	}
	m := reply.PayloadMap()
	fw, _ = rurp.GetMapString(m, rurp.KeyFWVersionString)
	hw, _ = rurp.GetMapString(m, rurp.KeyHWRevision)
	if fw == "" {
		return "", "", fmt.Errorf("firmware version: RESULT carries no version string")
	}
	return fw, hw, nil
}

// HardwareRevision returns the programmer's hardware revision string.
func (e *Engine) HardwareRevision(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	reply, err := e.link.Exchange(rurp.NewProbeCommand(rurp.MsgHWVersion))
	if err != nil {
		return "", err
	}
	if reply.Type() != rurp.MsgResult {
		return "", fmt.Errorf("hardware revision: expected RESULT, got %s",
			rurp.FormatMessageType(reply.Type()))
	}
	rev, ok := rurp.GetMapString(reply.PayloadMap(), rurp.KeyResultText)
	if !ok {
		return "", fmt.Errorf("hardware revision: RESULT carries no text")
	}
	return rev, nil
}

// SetConfig updates the programmer's persistent settings. Arguments below
// zero leave the corresponding setting untouched. Returns the programmer's
// confirmation message.
func (e *Engine) SetConfig(ctx context.Context, rev, r16, r14r15 int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg, err := e.expectAck(rurp.NewConfigCommand(rev, r16, r14r15))
	if err != nil {
		return "", fmt.Errorf("config update: %w", err)
	}
	return msg, nil
}
