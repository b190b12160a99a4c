// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

// Package engine orchestrates programming operations against one programmer
// link: it resolves the device descriptor and pin map, issues the framed
// commands and drives the chunked transfer state machines.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/henols/firestarter-app/pkg/catalog"
	"github.com/henols/firestarter-app/pkg/rurp"
)

// ErasedByte is the value every byte of a blank device reads as.
const ErasedByte = 0xFF

// Link is the frame exchange primitive the engine drives. rurp.Session
// implements it; tests substitute an in-memory programmer.
type Link interface {
	Exchange(p *rurp.Packet) (*rurp.Packet, error)
}

// Engine runs programming operations over one link using one catalog.
// Operations are strictly sequential; the engine owns the link for the
// duration of each call.
type Engine struct {
	link    Link
	catalog *catalog.Catalog
	config  Config
}

// New creates an Engine over an established link session.
func New(link Link, cat *catalog.Catalog, opts ...Option) *Engine {
	if link == nil {
		panic("link cannot be nil")
	}
	if cat == nil {
		panic("catalog cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Engine{
		link:    link,
		catalog: cat,
		config:  cfg,
	}
}

// Catalog returns the device catalog the engine resolves against.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// operation is the transient state for one invocation: resolved descriptor,
// pin routing, chosen parameters and the running byte counters. Owned
// exclusively by the engine for the operation's duration.
type operation struct {
	desc    *catalog.DeviceDescriptor
	bus     *catalog.BusConfig
	flags   uint8
	address uint32
	length  uint32
	started time.Time

	bytesDone int
}

// newOperation resolves the descriptor and pin routing for a device and
// validates the operation window before any hardware interaction.
func (e *Engine) newOperation(device string, address, length uint32, flags uint8) (*operation, error) {
	desc, err := e.catalog.Resolve(device)
	if err != nil {
		return nil, err
	}
	pinMap, err := e.catalog.ResolvePinMap(desc.PinCount, desc.PinMapID)
	if err != nil {
		return nil, err
	}
	bus, err := pinMap.BusConfig()
	if err != nil {
		return nil, err
	}

	if length == 0 {
		if address >= desc.MemorySize {
			return nil, &RangeError{Device: desc.Name, Address: address, MemorySize: desc.MemorySize}
		}
		length = desc.MemorySize - address
	}
	if uint64(address)+uint64(length) > uint64(desc.MemorySize) {
		return nil, &RangeError{
			Device:     desc.Name,
			Address:    address,
			Length:     length,
			MemorySize: desc.MemorySize,
		}
	}

	if desc.CanErase {
		flags |= rurp.FlagCanErase
	}

	return &operation{
		desc:    desc,
		bus:     bus,
		flags:   flags,
		address: address,
		length:  length,
		started: time.Now(),
	}, nil
}

// params builds the device parameter set sent with every operation command.
func (op *operation) params() rurp.DeviceParams {
	p := rurp.DeviceParams{
		ProtocolID: op.desc.ProtocolID,
		MemorySize: op.desc.MemorySize,
		Flags:      op.flags,
		Vpp:        op.desc.Vpp,
		PulseDelay: op.desc.PulseDelay,
		ChipID:     op.desc.ChipID,
		Address:    op.address,
		RWPin:      -1,
		VppPin:     -1,
	}
	if op.bus != nil {
		p.BusPins = op.bus.Lines
		p.RWPin = op.bus.RWLine
		p.VppPin = op.bus.VppLine
	}
	return p
}

// begin sends the operation command configuring the programmer for this
// device and waits for the acknowledgment.
func (e *Engine) begin(op *operation, msgType uint8) error {
	_, err := e.expectAck(rurp.NewOperationCommand(msgType, op.params()))
	if err != nil {
		return fmt.Errorf("%s %s: %w", rurp.FormatMessageType(msgType), op.desc.Name, err)
	}
	return nil
}

// end closes a chunked transfer.
func (e *Engine) end(op *operation) error {
	_, err := e.expectAck(rurp.NewEndTransfer())
	if err != nil {
		return fmt.Errorf("end transfer for %s: %w", op.desc.Name, err)
	}
	return nil
}

// expectAck performs an exchange and requires a MsgAck reply.
func (e *Engine) expectAck(p *rurp.Packet) (string, error) {
	reply, err := e.link.Exchange(p)
	if err != nil {
		return "", err
	}
	if reply.Type() != rurp.MsgAck {
		return "", fmt.Errorf("expected ACK, got %s", rurp.FormatMessageType(reply.Type()))
	}
	msg, _ := rurp.GetMapString(reply.PayloadMap(), rurp.KeyAckMessage)
	return msg, nil
}

// requestChunk asks the programmer for one chunk and validates the reply.
func (e *Engine) requestChunk(address uint32, length int) ([]byte, error) {
	reply, err := e.link.Exchange(rurp.NewChunkRequest(address, uint16(length)))
	if err != nil {
		return nil, err
	}
	if reply.Type() != rurp.MsgData {
		return nil, fmt.Errorf("expected DATA, got %s", rurp.FormatMessageType(reply.Type()))
	}
	m := reply.PayloadMap()
	replyAddr, _ := rurp.GetMapUint(m, rurp.KeyChunkAddress)
	if uint32(replyAddr) != address {
		return nil, fmt.Errorf("chunk address skew: requested 0x%04X, got 0x%04X", address, replyAddr)
	}
	data, ok := rurp.GetMapBytes(m, rurp.KeyChunkData)
	if !ok {
		return nil, fmt.Errorf("DATA reply at 0x%04X carries no bytes", address)
	}
	if len(data) != length {
		return nil, fmt.Errorf("short chunk at 0x%04X: requested %d bytes, got %d", address, length, len(data))
	}
	return data, nil
}

// checkCancelled is consulted at chunk boundaries only; a chunk in flight
// always runs to ack or retry exhaustion so the programmer is never left
// mid-command.
func (e *Engine) checkCancelled(ctx context.Context, op *operation) error {
	if err := ctx.Err(); err != nil {
		e.logInfo("operation cancelled", "device", op.desc.Name, "bytes_done", op.bytesDone)
		e.returnToIdle()
		return err
	}
	return nil
}

// returnToIdle makes a best-effort attempt to put the programmer back in
// its idle state after a cancellation or fatal error. Failure is logged,
// not escalated.
func (e *Engine) returnToIdle() {
	if _, err := e.link.Exchange(rurp.NewIdleCommand()); err != nil {
		e.logError("failed to return programmer to idle", "error", err)
	}
}

func (e *Engine) reportProgress(op *operation, phase Phase, address uint32) {
	if e.config.ProgressFunc == nil {
		return
	}
	e.config.ProgressFunc(Progress{
		Phase:     phase,
		Device:    op.desc.Name,
		Address:   address,
		BytesDone: op.bytesDone,
		Total:     int(op.length),
		Elapsed:   time.Since(op.started),
	})
}

func (e *Engine) logDebug(msg string, keysAndValues ...interface{}) {
	if e.config.Logger != nil {
		e.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (e *Engine) logInfo(msg string, keysAndValues ...interface{}) {
	if e.config.Logger != nil {
		e.config.Logger.Info(msg, keysAndValues...)
	}
}

func (e *Engine) logError(msg string, keysAndValues ...interface{}) {
	if e.config.Logger != nil {
		e.config.Logger.Error(msg, keysAndValues...)
	}
}
