package cpu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/funemu/io"
)

// newTestCpu returns a reset CPU and a RAM bus holding program at RESET_PC.
func newTestCpu(program ...byte) (cpu *Cpu, ram *io.Ram) {
	cpu = NewCpu()
	ram = io.NewRam()
	for n, code := range program {
		ram.Write(RESET_PC+uint16(n), code)
	}
	return
}

func TestReset(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.Equal(uint16(0x0100), cpu.Pc)
	assert.Equal(uint16(1024), cpu.Sp)
	assert.Equal([16]uint8{}, cpu.Register)
	assert.False(cpu.Latch.Armed)

	cpu.Register[7] = 9
	cpu.Pc = 0x1234
	cpu.Sp = 0x10
	cpu.Latch = Latch{Armed: true, Target: 4}
	cpu.Ticks = 100
	cpu.Reset()
	assert.Equal(RESET_PC, cpu.Pc)
	assert.Equal(RESET_SP, cpu.Sp)
	assert.Equal(uint8(0), cpu.Register[7])
	assert.Equal(Latch{}, cpu.Latch)
	assert.Equal(0, cpu.Ticks)
}

func TestInterrupt(t *testing.T) {
	assert := assert.New(t)

	cpu, ram := newTestCpu(0x03)
	cpu.Register[5] = 0x55
	cpu.Step(ram)
	assert.True(cpu.Latch.Armed)

	cpu.Interrupt(0xbeef)
	assert.Equal(uint16(0xbeef), cpu.Pc)
	assert.Equal(uint16(1024), cpu.Sp)
	assert.Equal(uint8(0x55), cpu.Register[5])
	assert.True(cpu.Latch.Armed, "interrupt has no other side effects")
}

func TestLiteral(t *testing.T) {
	assert := assert.New(t)

	for n := range uint8(16) {
		for value := range 256 {
			cpu, ram := newTestCpu(byte(MakeCode(OP_LIT, n)), byte(value))
			cpu.Step(ram)
			assert.True(cpu.Latch.Armed)
			assert.Equal(n, cpu.Latch.Target)
			assert.Equal(RESET_PC+1, cpu.Pc)

			cpu.Step(ram)
			assert.False(cpu.Latch.Armed)
			assert.Equal(uint8(value), cpu.Register[n], "lit r%d 0x%02x", n, value)
			assert.Equal(RESET_PC+2, cpu.Pc)
			assert.Equal(uint16(1024), cpu.Sp, "literal 0x%02x not executed", value)
		}
	}
}

func TestLiteral_Wrap(t *testing.T) {
	assert := assert.New(t)

	cpu, ram := newTestCpu()
	ram.Write(0xffff, byte(MakeCode(OP_LIT, 9)))
	ram.Write(0x0000, 0x11)
	cpu.Pc = 0xffff

	cpu.Step(ram)
	assert.Equal(uint16(0x0000), cpu.Pc)
	cpu.Step(ram)
	assert.Equal(uint8(0x11), cpu.Register[9])
	assert.Equal(uint16(0x0001), cpu.Pc)
}

func TestRegisterOps(t *testing.T) {
	table := []struct {
		name   string
		code   Code
		status uint8
		r0     uint8
		rn     uint8
		expect uint8 // expected r0, or rN for put/load
	}{
		{"get", MakeCode(OP_GET, 5), 0, 0x5a, 0x21, 0x21},
		{"put", MakeCode(OP_PUT, 5), 0, 0x5a, 0x21, 0x5a},
		{"load", MakeCode(OP_LOAD, 5), 0, 0x5a, 0x21, 0x99},
		{"eq_true", MakeCode(OP_EQ, 5), 0, 0x21, 0x21, 1},
		{"eq_false", MakeCode(OP_EQ, 5), 0, 0x22, 0x21, 0},
		{"cmp_lt_true", MakeCode(OP_CMP, 5), 0, 0x10, 0x21, 0xff},
		{"cmp_lt_false", MakeCode(OP_CMP, 5), 0, 0x21, 0x21, 0x00},
		{"cmp_gt_true", MakeCode(OP_CMP, 5), STATUS_GT, 0x30, 0x21, 0xff},
		{"cmp_gt_false", MakeCode(OP_CMP, 5), STATUS_GT, 0x10, 0x21, 0x00},
		{"add", MakeCode(OP_ADD, 5), 0, 0x10, 0x21, 0x31},
		{"sub", MakeCode(OP_SUB, 5), 0, 0x31, 0x21, 0x10},
		{"shl", MakeCode(OP_SHL, 5), 0, 0x5a, 1, 0xb4},
		{"shl_8", MakeCode(OP_SHL, 5), 0, 0x5a, 8, 0x00},
		{"shr", MakeCode(OP_SHR, 5), 0, 0x5a, 3, 0x0b},
		{"shr_200", MakeCode(OP_SHR, 5), 0, 0x5a, 200, 0x00},
		{"or", MakeCode(OP_OR, 5), 0, 0x50, 0x0a, 0x5a},
		{"and", MakeCode(OP_AND, 5), 0, 0x5a, 0x0f, 0x0a},
		{"not", MakeCode(OP_NOT, 5), 0, 0x00, 0x5a, 0xa5},
	}

	for _, entry := range table {
		t.Run(entry.name, func(t *testing.T) {
			assert := assert.New(t)

			cpu, ram := newTestCpu(byte(entry.code))
			for n := range cpu.Register {
				cpu.Register[n] = uint8(0x80 + n)
			}
			cpu.Register[REG_ADDR_HI] = 0x20
			cpu.Register[REG_ADDR_LO] = 0x30
			cpu.Register[REG_STATUS] = entry.status
			cpu.Register[REG_ACC] = entry.r0
			cpu.Register[5] = entry.rn
			ram.Write(0x2030, 0x99)

			before := cpu.Register
			cpu.Step(ram)

			after := before
			switch entry.code.Class() {
			case OP_PUT, OP_LOAD:
				after[5] = entry.expect
			default:
				after[REG_ACC] = entry.expect
			}
			after[REG_STATUS] = cpu.Register[REG_STATUS]

			assert.Equal(after, cpu.Register)
			assert.Equal(RESET_PC+1, cpu.Pc)
			assert.Equal(uint16(1024), cpu.Sp)
			assert.Equal(1, cpu.Ticks)
		})
	}
}

func TestStore(t *testing.T) {
	assert := assert.New(t)

	cpu, ram := newTestCpu(byte(MakeCode(OP_STORE, 7)))
	cpu.Register[REG_ADDR_HI] = 0x12
	cpu.Register[REG_ADDR_LO] = 0x34
	cpu.Register[7] = 0xc3
	before := cpu.Register

	cpu.Step(ram)
	assert.Equal(uint8(0xc3), ram.Read(0x1234))
	assert.Equal(before, cpu.Register)
	assert.Equal(RESET_PC+1, cpu.Pc)
}

func TestAddFlags(t *testing.T) {
	table := []struct {
		r0, rk   uint8
		result   uint8
		overflow bool
	}{
		{250, 10, 4, true},
		{10, 5, 15, false},
		{0xff, 0x01, 0x00, true},
		{0x80, 0x7f, 0xff, false},
	}

	for _, entry := range table {
		assert := assert.New(t)

		cpu, ram := newTestCpu(byte(MakeCode(OP_ADD, 6)))
		cpu.Register[REG_STATUS] = STATUS_OVERFLOW | STATUS_GT
		if entry.overflow {
			cpu.Register[REG_STATUS] = STATUS_GT
		}
		cpu.Register[REG_ACC] = entry.r0
		cpu.Register[6] = entry.rk

		cpu.Step(ram)
		assert.Equal(entry.result, cpu.Register[REG_ACC])
		assert.Equal(entry.overflow, cpu.Register[REG_STATUS]&STATUS_OVERFLOW != 0)
		assert.NotZero(cpu.Register[REG_STATUS]&STATUS_GT, "other flags kept")
	}
}

func TestSubFlags(t *testing.T) {
	table := []struct {
		r0, rk    uint8
		result    uint8
		underflow bool
	}{
		{2, 5, 253, true},
		{5, 2, 3, false},
		{5, 5, 0, false},
		{0, 1, 0xff, true},
	}

	for _, entry := range table {
		assert := assert.New(t)

		cpu, ram := newTestCpu(byte(MakeCode(OP_SUB, 9)))
		if !entry.underflow {
			cpu.Register[REG_STATUS] = STATUS_UNDERFLOW
		}
		cpu.Register[REG_ACC] = entry.r0
		cpu.Register[9] = entry.rk

		cpu.Step(ram)
		assert.Equal(entry.result, cpu.Register[REG_ACC])
		assert.Equal(entry.underflow, cpu.Register[REG_STATUS]&STATUS_UNDERFLOW != 0)
	}
}

func TestAddStatusOperand(t *testing.T) {
	assert := assert.New(t)

	// The operand is read before the flag is updated.
	cpu, ram := newTestCpu(byte(MakeCode(OP_ADD, REG_STATUS)))
	cpu.Register[REG_ACC] = 0xff
	cpu.Register[REG_STATUS] = 0x01

	cpu.Step(ram)
	assert.Equal(uint8(0x00), cpu.Register[REG_ACC])
	assert.Equal(uint8(0x01|STATUS_OVERFLOW), cpu.Register[REG_STATUS])
}

func TestCallRet(t *testing.T) {
	assert := assert.New(t)

	cpu, ram := newTestCpu()
	ram.Write(0x0200, byte(MakeCodeFlow(FLOW_CALL)))
	ram.Write(0x0300, byte(MakeCodeFlow(FLOW_RET)))
	cpu.Pc = 0x0200
	cpu.Register[REG_ADDR_HI] = 0x03
	cpu.Register[REG_ADDR_LO] = 0x00

	cpu.Step(ram)
	assert.Equal(uint16(0x0300), cpu.Pc)
	assert.Equal(uint16(1022), cpu.Sp)
	assert.Equal(uint8(0x00), ram.Read(1022))
	assert.Equal(uint8(0x02), ram.Read(1023))

	cpu.Step(ram)
	assert.Equal(uint16(0x0201), cpu.Pc)
	assert.Equal(uint16(1024), cpu.Sp)
}

func TestCall_StackWrap(t *testing.T) {
	assert := assert.New(t)

	cpu, ram := newTestCpu(byte(MakeCodeFlow(FLOW_CALL)))
	cpu.Sp = 1
	cpu.Register[REG_ADDR_HI] = 0x40
	cpu.Register[REG_ADDR_LO] = 0x00
	ram.Write(0x4000, byte(MakeCodeFlow(FLOW_RET)))

	cpu.Step(ram)
	assert.Equal(uint16(0xffff), cpu.Sp)
	assert.Equal(uint8(0x00), ram.Read(0xffff))
	assert.Equal(uint8(0x01), ram.Read(0x0000))

	cpu.Step(ram)
	assert.Equal(uint16(1), cpu.Sp)
	assert.Equal(RESET_PC+1, cpu.Pc)
}

func TestJmp(t *testing.T) {
	assert := assert.New(t)

	cpu, ram := newTestCpu(byte(MakeCodeFlow(FLOW_JMP)))
	cpu.Register[REG_ADDR_HI] = 0xab
	cpu.Register[REG_ADDR_LO] = 0xcd

	cpu.Step(ram)
	assert.Equal(uint16(0xabcd), cpu.Pc)
	assert.Equal(uint16(1024), cpu.Sp)

	// Jump to zero, where the pre-decrement idiom would wrap.
	cpu, ram = newTestCpu(byte(MakeCodeFlow(FLOW_JMP)))
	cpu.Step(ram)
	assert.Equal(uint16(0x0000), cpu.Pc)
}

func TestJnz(t *testing.T) {
	assert := assert.New(t)

	for n := range uint8(16) {
		cpu, ram := newTestCpu(byte(MakeCode(OP_JNZ, n)))
		cpu.Register[REG_ADDR_HI] = 0x03
		cpu.Register[REG_ADDR_LO] = 0x00
		if n != REG_ADDR_HI && n != REG_ADDR_LO {
			cpu.Register[n] = 0
			cpu.Step(ram)
			assert.Equal(RESET_PC+1, cpu.Pc, "jnz r%d not taken", n)
			cpu.Pc = RESET_PC
		}

		cpu.Register[n] = 7
		if n == REG_ADDR_HI {
			cpu.Register[n] = 0x03
		}
		if n == REG_ADDR_LO {
			cpu.Register[n] = 0x00
			cpu.Register[REG_ADDR_HI] = 0x03
			// r2 == 0, so not taken.
			cpu.Step(ram)
			assert.Equal(RESET_PC+1, cpu.Pc)
			continue
		}
		cpu.Step(ram)
		assert.Equal(uint16(0x0300), cpu.Pc, "jnz r%d taken", n)
	}
}

func TestHalt(t *testing.T) {
	assert := assert.New(t)

	cpu, ram := newTestCpu(byte(MakeCodeFlow(FLOW_HALT)))
	assert.True(cpu.Halted(ram))

	for range 3 {
		cpu.Step(ram)
		assert.Equal(RESET_PC, cpu.Pc)
	}
	assert.Equal(3, cpu.Ticks)

	// A halt byte consumed as a literal is not a halt.
	cpu, ram = newTestCpu(byte(MakeCode(OP_LIT, 4)), byte(MakeCodeFlow(FLOW_HALT)))
	cpu.Step(ram)
	assert.False(cpu.Halted(ram))
	cpu.Step(ram)
	assert.Equal(uint8(0x13), cpu.Register[4])
	assert.Equal(RESET_PC+2, cpu.Pc)
}

func TestFlowNop(t *testing.T) {
	assert := assert.New(t)

	for low := uint8(4); low < 16; low++ {
		cpu, ram := newTestCpu(byte(MakeCodeFlow(low)))
		cpu.Register[REG_ADDR_HI] = 0x30
		before := *cpu

		cpu.Step(ram)
		assert.Equal(before.Register, cpu.Register)
		assert.Equal(before.Sp, cpu.Sp)
		assert.Equal(RESET_PC+1, cpu.Pc)
	}
}

func TestPcWrap(t *testing.T) {
	assert := assert.New(t)

	cpu, ram := newTestCpu()
	ram.Write(0xffff, byte(MakeCode(OP_GET, 4)))
	cpu.Pc = 0xffff

	cpu.Step(ram)
	assert.Equal(uint16(0x0000), cpu.Pc)
}

func TestCpu_String(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.Register[12] = 0xab
	cpu.Register[REG_STATUS] = STATUS_OVERFLOW

	text := cpu.String()
	assert.Contains(text, "pc: 0100")
	assert.Contains(text, "sp: 0400")
	assert.Contains(text, "r12: AB")
	assert.Contains(text, "flags: -o-")
	assert.Contains(text, "lit: -")
	assert.Equal(20, strings.Count(text, "\n"))
}

func FuzzStep(f *testing.F) {
	for code := range 256 {
		f.Add(uint8(code), uint16(0x0100), uint16(1024), uint8(0x12), uint8(0x34), false)
	}
	f.Add(uint8(0x11), uint16(0xffff), uint16(0), uint8(0xff), uint8(0xff), false)
	f.Add(uint8(0x12), uint16(0x0000), uint16(0xffff), uint8(0), uint8(0), true)

	f.Fuzz(func(t *testing.T, code uint8, pc uint16, sp uint16, hi uint8, lo uint8, armed bool) {
		assert := assert.New(t)

		cpu, ram := newTestCpu()
		ram.Write(pc, code)
		cpu.Pc = pc
		cpu.Sp = sp
		cpu.Latch = Latch{Armed: armed, Target: code & 0xf}
		for n := range cpu.Register {
			cpu.Register[n] = uint8(n * 0x11)
		}
		cpu.Register[REG_ADDR_HI] = hi
		cpu.Register[REG_ADDR_LO] = lo
		addr := uint16(lo) | uint16(hi)<<8

		cpu.Step(ram)

		if armed {
			assert.Equal(code, cpu.Register[code&0xf])
			assert.False(cpu.Latch.Armed)
			assert.Equal(pc+1, cpu.Pc)
			return
		}

		c := Code(code)
		switch {
		case c == MakeCodeFlow(FLOW_JMP), c == MakeCodeFlow(FLOW_CALL):
			assert.Equal(addr, cpu.Pc)
		case c == MakeCodeFlow(FLOW_RET):
			// Return address comes from memory.
		case c == MakeCodeFlow(FLOW_HALT):
			assert.Equal(pc, cpu.Pc)
		case c.Class() == OP_JNZ:
			// Taken or not.
			assert.Contains([]uint16{addr, pc + 1}, cpu.Pc)
		default:
			assert.Equal(pc+1, cpu.Pc)
		}
		assert.Equal(1, cpu.Ticks)
	})
}
