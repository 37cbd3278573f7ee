// Copyright 2026, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"fmt"
	"log"

	"github.com/ezrec/funemu/io"
)

const (
	RESET_PC      = uint16(0x0100) // Program counter after reset.
	RESET_SP      = uint16(1024)   // Stack pointer after reset.
	ADDRESS_SPACE = io.BUS_SIZE    // Bytes addressable by the CPU.
)

// Latch holds a pending literal load. When armed, the next byte fetched is
// stored into register Target instead of being executed.
type Latch struct {
	Armed  bool
	Target uint8
}

// Cpu is the simulation context for the fun-emu processor.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Register [16]uint8 // Register bank.
	Pc       uint16    // Program counter.
	Sp       uint16    // Stack pointer.
	Latch    Latch     // Literal load latch.

	Ticks int // Instructions executed since reset.
}

// NewCpu creates a new CPU in the reset state.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{}
	cpu.Reset()

	return
}

// Reset the CPU state.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Register[:])
	cpu.Pc = RESET_PC
	cpu.Sp = RESET_SP
	cpu.Latch = Latch{}
	cpu.Ticks = 0
}

// Interrupt forces the program counter to addr. No state is saved, so
// execution cannot return to the interrupted code.
func (cpu *Cpu) Interrupt(addr uint16) {
	if cpu.Verbose {
		log.Printf("cpu: interrupt %04x", addr)
	}

	cpu.Pc = addr
}

// Halted returns true if the next step will spin on a halt instruction.
func (cpu *Cpu) Halted(bus io.Bus) bool {
	return !cpu.Latch.Armed && Code(bus.Read(cpu.Pc)) == MakeCodeFlow(FLOW_HALT)
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text += fmt.Sprintf("   pc: %04X\n", cpu.Pc)
	text += fmt.Sprintf("   sp: %04X\n", cpu.Sp)
	if cpu.Latch.Armed {
		text += fmt.Sprintf("  lit: r%d\n", cpu.Latch.Target)
	} else {
		text += "  lit: -\n"
	}
	for n, val := range cpu.Register {
		text += fmt.Sprintf("% 5s: %02X\n", fmt.Sprintf("r%d", n), val)
	}

	status := cpu.Register[REG_STATUS]
	flags := []byte("---")
	for n, flag := range []struct {
		mask uint8
		name byte
	}{
		{STATUS_UNDERFLOW, 'u'},
		{STATUS_OVERFLOW, 'o'},
		{STATUS_GT, 'g'},
	} {
		if status&flag.mask != 0 {
			flags[n] = flag.name
		}
	}
	text += fmt.Sprintf("flags: %s\n", flags)

	return
}

// addr16 is the indirect address formed by r1:r2.
func (cpu *Cpu) addr16() uint16 {
	return uint16(cpu.Register[REG_ADDR_LO]) | (uint16(cpu.Register[REG_ADDR_HI]) << 8)
}

// Step fetches and executes a single instruction from the bus.
func (cpu *Cpu) Step(bus io.Bus) {
	pc := cpu.Pc
	data := bus.Read(pc)
	next_pc := pc + 1

	defer func() {
		cpu.Pc = next_pc
		cpu.Ticks++
	}()

	if cpu.Latch.Armed {
		if cpu.Verbose {
			log.Printf("%04x: .byte 0x%02x -> r%d", pc, data, cpu.Latch.Target)
		}
		cpu.Register[cpu.Latch.Target] = data
		cpu.Latch = Latch{}
		return
	}

	code := Code(data)
	if cpu.Verbose {
		log.Printf("%04x: %v", pc, code)
	}

	n := code.Reg()
	reg := &cpu.Register
	acc := &cpu.Register[REG_ACC]
	addr := cpu.addr16()

	switch code.Class() {
	case OP_LIT:
		cpu.Latch = Latch{Armed: true, Target: n}
	case OP_FLOW:
		switch n {
		case FLOW_JMP:
			next_pc = addr
		case FLOW_CALL:
			cpu.Sp -= 2
			bus.Write(cpu.Sp, uint8(pc&0xff))
			bus.Write(cpu.Sp+1, uint8(pc>>8))
			next_pc = addr
		case FLOW_RET:
			ret := uint16(bus.Read(cpu.Sp)) | (uint16(bus.Read(cpu.Sp+1)) << 8)
			cpu.Sp += 2
			next_pc = ret + 1
		case FLOW_HALT:
			next_pc = pc
		default:
			// nop
		}
	case OP_JNZ:
		if reg[n] != 0 {
			next_pc = addr
		}
	case OP_GET:
		*acc = reg[n]
	case OP_PUT:
		reg[n] = *acc
	case OP_LOAD:
		reg[n] = bus.Read(addr)
	case OP_STORE:
		bus.Write(addr, reg[n])
	case OP_EQ:
		if *acc == reg[n] {
			*acc = 1
		} else {
			*acc = 0
		}
	case OP_CMP:
		var hit bool
		if reg[REG_STATUS]&STATUS_GT != 0 {
			hit = *acc > reg[n]
		} else {
			hit = *acc < reg[n]
		}
		if hit {
			*acc = 0xff
		} else {
			*acc = 0x00
		}
	case OP_ADD:
		prior, val := *acc, reg[n]
		*acc = prior + val
		cpu.setStatus(STATUS_OVERFLOW, uint16(prior)+uint16(val) > 0xff)
	case OP_SUB:
		prior, val := *acc, reg[n]
		*acc = prior - val
		cpu.setStatus(STATUS_UNDERFLOW, val > prior)
	case OP_SHL:
		*acc <<= reg[n]
	case OP_SHR:
		*acc >>= reg[n]
	case OP_OR:
		*acc |= reg[n]
	case OP_AND:
		*acc &= reg[n]
	case OP_NOT:
		*acc = ^reg[n]
	}
}

// setStatus sets or clears a status register bit.
func (cpu *Cpu) setStatus(mask uint8, set bool) {
	if set {
		cpu.Register[REG_STATUS] |= mask
	} else {
		cpu.Register[REG_STATUS] &^= mask
	}
}
