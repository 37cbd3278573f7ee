// Copyright 2026, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/ezrec/funemu/cpu"
	"github.com/ezrec/funemu/emulator"
	funio "github.com/ezrec/funemu/io"
)

// defineFlags collects repeated -D NAME=VALUE options.
type defineFlags map[string]string

func (df defineFlags) String() string {
	var items []string
	for name, value := range df {
		items = append(items, name+"="+value)
	}
	return strings.Join(items, ",")
}

func (df defineFlags) Set(text string) error {
	name, value, ok := strings.Cut(text, "=")
	if !ok {
		value = "1"
	}
	df[name] = value
	return nil
}

// newDevice creates the named bus device. Text devices read keys from kb.
func newDevice(name string, kb funio.Keyboard) (dev funio.Device, err error) {
	switch name {
	case "ram":
		dev = funio.NewRam()
	case "led":
		dev = funio.NewButtonLed()
	case "text":
		dev = funio.NewTextMode(kb)
	case "cell":
		dev = funio.NewCellText(kb)
	case "vector":
		dev = funio.NewVector(&funio.ControllerLatch{})
	default:
		err = fmt.Errorf("unknown device %q", name)
	}
	return
}

// keyHost feeds terminal input to the key queue until stdin closes.
func keyHost(keys *funio.KeyQueue) {
	defer keys.Close()

	in := bufio.NewReader(os.Stdin)
	for {
		key, err := in.ReadByte()
		if err != nil {
			return
		}
		switch key {
		case '\r':
			key = '\n'
		case 0x7f:
			key = '\b'
		case 0x03:
			// Raw mode swallows ^C, so deliver it ourselves.
			p, _ := os.FindProcess(os.Getpid())
			p.Signal(os.Interrupt)
		}
		keys.Push(key)
	}
}

func main() {
	var compile string
	var rom string
	var save bool
	var output string
	var disasm bool
	var device string
	var steps int
	var delay time.Duration
	var limit int
	var verbose bool
	defines := defineFlags{}

	flag.StringVar(&compile, "c", "", ".fun assembly file to compile")
	flag.StringVar(&rom, "r", "", "ROM image to run")
	flag.BoolVar(&save, "s", false, "Save ROM image to output, do not execute")
	flag.StringVar(&output, "o", "-", "ROM image output, for -s")
	flag.BoolVar(&disasm, "d", false, "Disassemble the ROM image, do not execute")
	flag.StringVar(&device, "device", "text", "Bus device: ram, led, text, cell, vector")
	flag.IntVar(&steps, "steps", emulator.STEPS_PER_RENDER, "CPU steps per render")
	flag.DurationVar(&delay, "delay", 0, "Delay per CPU step")
	flag.IntVar(&limit, "limit", 0, "Maximum CPU steps, 0 for no limit")
	flag.Var(defines, "D", "Assembler predefine NAME=VALUE (repeatable)")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	if len(compile) == 0 && len(rom) == 0 {
		log.Fatalf("%v: one of -c or -r is required", os.Args[0])
	}

	keys := &funio.KeyQueue{}
	dev, err := newDevice(device, keys)
	if err != nil {
		log.Fatalf("%v: %v", os.Args[0], err)
	}

	emu := emulator.NewEmulator(dev)
	emu.Verbose = verbose
	emu.StepsPerRender = steps
	emu.Output = os.Stdout

	var image []byte

	// Compile a new instruction stream.
	if len(compile) != 0 {
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		asm := emu.Assembler()
		for name, value := range defines {
			asm.Predefine(name, value)
		}
		prog, err := asm.Parse(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}

		err = emu.LoadProgram(prog)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		image = prog.Binary()
	} else {
		inf, err := os.Open(rom)
		if err != nil {
			log.Fatalf("%v: %v", rom, err)
		}
		defer inf.Close()

		err = emu.Load(inf)
		if err != nil {
			log.Fatalf("%v: %v", rom, err)
		}
	}

	if save {
		if len(compile) == 0 {
			log.Fatalf("%v: -s requires -c", os.Args[0])
		}
		ouf := os.Stdout
		if output != "-" {
			ouf, err = os.Create(output)
			if err != nil {
				log.Fatalf("%v: %v", output, err)
			}
			defer ouf.Close()
		}
		_, err = ouf.Write(image)
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
		return
	}

	if disasm {
		if image == nil {
			image = make([]byte, funio.BUS_SIZE)
			for addr := range image {
				image[addr] = emu.Device.Read(uint16(addr))
			}
		}
		for ip, text := range cpu.Disassemble(image, 0) {
			fmt.Printf("%04x: %v\n", ip, text)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	restore := func() {}
	switch device {
	case "text", "cell":
		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			state, err := term.MakeRaw(fd)
			if err != nil {
				log.Fatalf("%v: %v", os.Args[0], err)
			}
			restore = func() { term.Restore(fd, state) }
			fmt.Print("\033[2J")
		}
		go keyHost(keys)
	}

	if delay == 0 {
		err = emu.Run(ctx, limit)
	} else {
		for n := 0; limit == 0 || n < limit; n++ {
			var done bool
			done, err = emu.Tick()
			if err != nil || done {
				break
			}
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case <-time.After(delay):
			}
			if err != nil {
				break
			}
		}
	}

	restore()

	if verbose {
		log.Printf("\n%v", emu.Cpu.String())
	}

	if err != nil {
		log.Fatalf("%v: line %d: %v", os.Args[0], emu.LineNo(), err)
	}
}
