// Copyright 2026, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package emulator drives a fun-emu CPU attached to a single bus device:
// it loads ROM images, steps the CPU, and periodically renders the
// device's visible output.
package emulator

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/funemu/cpu"
	"github.com/ezrec/funemu/internal"
	funio "github.com/ezrec/funemu/io"
)

const (
	STEPS_PER_RENDER = 1000 // Default CPU steps between renders.
)

var _emulator_defines = map[string]string{
	"STEPS_PER_RENDER": fmt.Sprintf("%v", STEPS_PER_RENDER),
}

// Emulator state. CPU + one bus device.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently loaded program listing, if any.

	Device funio.Device // The bus the CPU is attached to.
	Output io.Writer    // Destination of device renders, may be nil.

	StepsPerRender int // CPU steps between renders.
}

// NewEmulator creates a new emulator attached to a device.
func NewEmulator(dev funio.Device) (emu *Emulator) {
	emu = &Emulator{
		Cpu:            cpu.NewCpu(),
		Device:         dev,
		StepsPerRender: STEPS_PER_RENDER,
	}

	return
}

// Defines returns an iterator over the emulator and device defines.
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	var dev iter.Seq2[string, string]
	if emu.Device != nil {
		dev = emu.Device.Defines()
	}

	return internal.Concat2(maps.All(_emulator_defines), dev)
}

// Assembler returns an assembler with the emulator defines predefined.
func (emu *Emulator) Assembler() (asm *cpu.Assembler) {
	asm = &cpu.Assembler{Verbose: emu.Verbose}
	asm.PredefineAll(emu.Defines())

	return
}

// Reset the device, then the CPU.
func (emu *Emulator) Reset() (err error) {
	if emu.Device == nil {
		err = ErrNoDevice
		return
	}

	emu.Device.Reset()
	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Reset()

	return
}

// Load resets the emulator and loads a flat ROM image at address 0.
func (emu *Emulator) Load(rom io.Reader) (err error) {
	err = emu.Reset()
	if err != nil {
		return
	}

	n, err := funio.LoadRom(emu.Device, rom)
	if err != nil {
		return
	}

	if emu.Verbose {
		log.Printf("emulator: loaded %d bytes", n)
	}

	emu.Program = nil

	return
}

// LoadProgram resets the emulator and loads an assembled program.
func (emu *Emulator) LoadProgram(prog *cpu.Program) (err error) {
	err = emu.Reset()
	if err != nil {
		return
	}

	for ip, code := range prog.Codes() {
		emu.Device.Write(ip, code)
	}

	emu.Program = prog

	return
}

// LineNo returns the source line of the next instruction, or 0 if unknown.
func (emu *Emulator) LineNo() int {
	if emu.Program == nil {
		return 0
	}

	dbg := emu.Program.Debug(emu.Cpu.Pc)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// Halted returns true if the CPU is spinning on a halt instruction.
func (emu *Emulator) Halted() bool {
	return emu.Cpu.Halted(emu.Device)
}

// Render writes the device output, if the device has any.
func (emu *Emulator) Render() (err error) {
	renderer, ok := emu.Device.(funio.Renderer)
	if !ok || emu.Output == nil {
		return
	}

	err = renderer.Render(emu.Output)

	return
}

// Tick performs a single CPU step, rendering every StepsPerRender steps.
// It returns done when the CPU has halted.
func (emu *Emulator) Tick() (done bool, err error) {
	if emu.Device == nil {
		err = ErrNoDevice
		return
	}

	pc := emu.Cpu.Pc
	defer func() {
		if err != nil {
			err = &ErrRuntime{Pc: pc, Err: err}
		}
	}()

	if emu.Halted() {
		done = true
		err = emu.Render()
		return
	}

	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Step(emu.Device)

	if emu.StepsPerRender > 0 && emu.Cpu.Ticks%emu.StepsPerRender == 0 {
		err = emu.Render()
	}

	return
}

// Run ticks the emulator until the CPU halts, the context is done, or
// limit steps have run. A limit of 0 runs without limit.
func (emu *Emulator) Run(ctx context.Context, limit int) (err error) {
	for steps := 0; limit == 0 || steps < limit; steps++ {
		if steps%emu.checkInterval() == 0 {
			err = ctx.Err()
			if err != nil {
				return
			}
		}

		var done bool
		done, err = emu.Tick()
		if err != nil || done {
			return
		}
	}

	err = ErrStepLimit

	return
}

// checkInterval is how often Run polls its context.
func (emu *Emulator) checkInterval() int {
	if emu.StepsPerRender > 0 {
		return emu.StepsPerRender
	}
	return STEPS_PER_RENDER
}
