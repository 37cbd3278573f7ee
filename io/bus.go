// Package io provides the memory mapped bus for the fun-emu CPU, and the
// peripheral devices that can sit on it: plain RAM (Ram), a button and LED
// panel (ButtonLed), two text displays (TextMode, CellText) and a double
// buffered vector command device with a game controller (Vector).
package io

import (
	"io"
	"iter"
)

// BUS_SIZE is the number of addressable bytes on the bus.
const BUS_SIZE = 1 << 16

// Bus is the capability every peripheral offers the CPU: synchronous byte
// access over a 64K address space. Both operations are total; a device
// resolves its own failures to a default byte rather than reporting them.
type Bus interface {
	// Read returns the byte at address.
	Read(address uint16) uint8
	// Write stores data at address.
	Write(address uint16, data uint8)
}

// Device is a Bus that can be attached to the emulator.
type Device interface {
	Bus
	// Reset clears memory and any device latches.
	Reset()
	// Defines yields the names and addresses of the special addresses
	// of the device, for use as assembler equates.
	Defines() iter.Seq2[string, string]
}

// Renderer is implemented by devices with a visible side effect.
type Renderer interface {
	// Render writes the current device output to w.
	Render(w io.Writer) error
}

// Memory is the 64K backing store shared by all the devices.
type Memory [BUS_SIZE]uint8

// Read returns the stored byte.
func (mem *Memory) Read(address uint16) uint8 {
	return mem[address]
}

// Write stores a byte.
func (mem *Memory) Write(address uint16, data uint8) {
	mem[address] = data
}

// Reset zeros the store.
func (mem *Memory) Reset() {
	clear(mem[:])
}
