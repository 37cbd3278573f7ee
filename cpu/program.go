package cpu

import (
	"iter"
)

// Opcode is a line of assembled code with its source location and the
// bytes generated for it.
type Opcode struct {
	LineNo    int
	Ip        int      // Address of the first byte.
	Words     []string // Source words, after equate and macro expansion.
	Codes     []byte
	LinkLabel string // Label whose address is patched into an addr sequence.
}

// Program is the output of the assembler.
type Program struct {
	Opcodes []Opcode
}

type Debug struct {
	*Opcode
	Index int
}

// Debug finds the opcode that generated the byte at ip.
func (prog *Program) Debug(ip uint16) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if int(ip) >= op.Ip && int(ip) < op.Ip+len(op.Codes) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  int(ip) - op.Ip,
			}
			break
		}
	}

	return
}

// Codes yields every generated byte with its address, in source order.
func (prog *Program) Codes() iter.Seq2[uint16, byte] {
	return func(yield func(ip uint16, code byte) bool) {
		for _, op := range prog.Opcodes {
			for n, code := range op.Codes {
				if !yield(uint16(op.Ip+n), code) {
					return
				}
			}
		}
	}
}

// Binary returns the flat ROM image, starting at address 0. Gaps are zero
// filled, and later opcodes overwrite earlier ones at the same address.
func (prog *Program) Binary() (rom []byte) {
	size := 0
	for _, op := range prog.Opcodes {
		size = max(size, op.Ip+len(op.Codes))
	}

	rom = make([]byte, size)
	for ip, code := range prog.Codes() {
		rom[ip] = code
	}

	return
}
