// Package cpu implements the processor and assembler for the fun-emu system.
//
// The CPU has sixteen 8-bit registers (r0-r15), a 16-bit program counter
// (PC), a 16-bit stack pointer (SP) and a literal latch. Every instruction
// is one byte: the high nibble selects the operation, the low nibble names
// a register. By convention r0 is the accumulator, r1:r2 hold the 16-bit
// address used by memory and jump instructions, and r3 holds the status
// flags.
//
// The processor has no knowledge of peripherals; all memory and device
// access goes through an io.Bus supplied to each Step.
//
// The assembler provides a small assembly language for the instruction
// set, supporting macros, labels, equates, and compile-time expression
// evaluation.
package cpu
