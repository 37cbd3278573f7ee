package cpu

import (
	"fmt"
	"iter"
)

// CodeClass is the operation class of an instruction, its high nibble.
type CodeClass uint8

const (
	OP_LIT   = CodeClass(0x0) // lit
	OP_FLOW  = CodeClass(0x1) // flow control, see FLOW_*
	OP_JNZ   = CodeClass(0x2) // jnz
	OP_GET   = CodeClass(0x3) // get
	OP_PUT   = CodeClass(0x4) // put
	OP_LOAD  = CodeClass(0x5) // load
	OP_STORE = CodeClass(0x6) // store
	OP_EQ    = CodeClass(0x7) // eq
	OP_CMP   = CodeClass(0x8) // cmp
	OP_ADD   = CodeClass(0x9) // add
	OP_SUB   = CodeClass(0xa) // sub
	OP_SHL   = CodeClass(0xb) // shl
	OP_SHR   = CodeClass(0xc) // shr
	OP_OR    = CodeClass(0xd) // or
	OP_AND   = CodeClass(0xe) // and
	OP_NOT   = CodeClass(0xf) // not
)

var codeClassName = [16]string{
	"lit", "flow", "jnz", "get", "put", "load", "store", "eq",
	"cmp", "add", "sub", "shl", "shr", "or", "and", "not",
}

func (cc CodeClass) String() string {
	return codeClassName[cc&0xf]
}

// Flow control operations, the low nibble of an OP_FLOW instruction.
const (
	FLOW_JMP  = uint8(0x0) // jmp
	FLOW_CALL = uint8(0x1) // call
	FLOW_RET  = uint8(0x2) // ret
	FLOW_HALT = uint8(0x3) // halt
	FLOW_NOP  = uint8(0xf) // nop, as are all other unassigned values
)

var flowName = map[uint8]string{
	FLOW_JMP:  "jmp",
	FLOW_CALL: "call",
	FLOW_RET:  "ret",
	FLOW_HALT: "halt",
	FLOW_NOP:  "nop",
}

// Register conventions.
const (
	REG_ACC     = uint8(0) // Accumulator.
	REG_ADDR_HI = uint8(1) // High byte of the indirect address.
	REG_ADDR_LO = uint8(2) // Low byte of the indirect address.
	REG_STATUS  = uint8(3) // Status flags.
)

// Status register bits.
const (
	STATUS_GT        = uint8(1 << 0) // cmp tests greater-than when set, less-than when clear.
	STATUS_OVERFLOW  = uint8(1 << 1) // Last add carried out of 8 bits.
	STATUS_UNDERFLOW = uint8(1 << 2) // Last sub borrowed.
)

// Code is a single instruction byte.
type Code uint8

// MakeCode assembles an instruction from its class and register operand.
func MakeCode(class CodeClass, reg uint8) Code {
	return Code((uint8(class) << 4) | (reg & 0xf))
}

// MakeCodeFlow assembles a flow control instruction.
func MakeCodeFlow(op uint8) Code {
	return MakeCode(OP_FLOW, op)
}

// Class returns the operation class.
func (code Code) Class() CodeClass {
	return CodeClass(code >> 4)
}

// Reg returns the register operand.
func (code Code) Reg() uint8 {
	return uint8(code & 0xf)
}

// String disassembles the instruction. The byte following a lit is data,
// and is not decoded here; see Disassemble.
func (code Code) String() string {
	class := code.Class()
	if class == OP_FLOW {
		name, ok := flowName[code.Reg()]
		if !ok {
			return "nop"
		}
		return name
	}

	return fmt.Sprintf("%v r%d", class, code.Reg())
}

// Disassemble walks a memory image, yielding the address and text of each
// instruction. A lit and its literal byte are yielded as one line.
func Disassemble(data []byte, origin uint16) iter.Seq2[uint16, string] {
	return func(yield func(addr uint16, text string) bool) {
		for n := 0; n < len(data); n++ {
			addr := origin + uint16(n)
			code := Code(data[n])
			text := code.String()
			if code.Class() == OP_LIT {
				if n+1 < len(data) {
					n++
					text = fmt.Sprintf("%v 0x%02x", text, data[n])
				} else {
					text = fmt.Sprintf("%v ?", text)
				}
			}
			if !yield(addr, text) {
				return
			}
		}
	}
}
