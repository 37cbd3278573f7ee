// Copyright 2026, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO":           "0",
	"RESET_PC":         fmt.Sprintf("%#x", RESET_PC),
	"RESET_SP":         fmt.Sprintf("%#x", RESET_SP),
	"STATUS_GT":        fmt.Sprintf("%#x", STATUS_GT),
	"STATUS_OVERFLOW":  fmt.Sprintf("%#x", STATUS_OVERFLOW),
	"STATUS_UNDERFLOW": fmt.Sprintf("%#x", STATUS_UNDERFLOW),
}

// Assembler is a single pass macro assembler for the fun-emu CPU.
//
// Code is placed starting at RESET_PC unless moved with .org, and the
// resulting Program is a flat image loaded at address 0.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Opcode  []Opcode // List of generated opcodes.

	predefine map[string]string   // Predefines
	Label     map[string]int      // Map of jump labels to addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.

	ip         int // Address of the next generated byte.
	expansions int // Count of macro expansions.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// PredefineAll predefines every equate in defines.
func (asm *Assembler) PredefineAll(defines iter.Seq2[string, string]) {
	for equ, value := range defines {
		asm.Predefine(equ, value)
	}
}

// Labels returns the label names, sorted.
func (asm *Assembler) Labels() []string {
	return slices.Sorted(maps.Keys(asm.Label))
}

// regMap is a map of register names to register numbers.
var regMap = func() map[string]uint8 {
	regs := map[string]uint8{
		"acc":    REG_ACC,
		"hi":     REG_ADDR_HI,
		"lo":     REG_ADDR_LO,
		"status": REG_STATUS,
	}
	for n := range 16 {
		regs[fmt.Sprintf("r%d", n)] = uint8(n)
	}
	return regs
}()

// register returns the register number of a word.
func (asm *Assembler) register(word string) (reg uint8, err error) {
	reg, ok := regMap[strings.ToLower(word)]
	if !ok {
		err = ErrRegisterInvalid
	}
	return
}

// valueOf returns the value of a simple word, which must fit in bits.
// Negative values are stored as two's complement.
func (asm *Assembler) valueOf(word string, bits int) (value uint16, err error) {
	invert := false
	if strings.HasPrefix(word, "~") {
		invert = true
		word = word[1:]
	}
	if len(word) == 0 {
		err = ErrParseNumber(word)
		return
	}
	if word[0] == '\'' {
		// Character quotes should have been expanded into
		// values in parseLine()
		err = ErrParseCharacter(strings.Trim(word, "'"))
		return
	}
	v64, err := strconv.ParseInt(word, 0, 32)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	limit := int64(1) << bits
	if v64 >= limit || v64 < -(limit/2) {
		err = ErrValueRange{Value: v64, Bits: bits}
		return
	}
	if v64 < 0 {
		v64 += limit
	}

	value = uint16(v64)
	if invert {
		value = ^value & uint16(limit-1)
	}

	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var value16 uint16
		value16, err = asm.valueOf(str, 16)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			err = nil
			continue
		}
		pred[key] = starlark.MakeInt(int(value16))
	}
	for label, ip := range asm.Label {
		pred[label] = starlark.MakeInt(ip)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	return
}

var (
	reAscii     = regexp.MustCompile(`\.ascii\s+(".*")\s*$`)
	reCharacter = regexp.MustCompile(`'\\?[^']'`)
	reParen     = regexp.MustCompile(`\$\([^\$]*\)`)
	reLabel     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
)

// parseLine parses a single line as an opcode.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// .ascii "text" => .byte values...
	if match := reAscii.FindStringSubmatchIndex(line); match != nil {
		text, _err := strconv.Unquote(line[match[2]:match[3]])
		if _err != nil {
			err = ErrAsciiSyntax
			return
		}
		values := make([]string, len(text))
		for n := range len(text) {
			values[n] = fmt.Sprintf("%d", text[n])
		}
		line = line[:match[0]] + ".byte " + strings.Join(values, " ")
	}

	// Do 'x' evaluations
	line = reCharacter.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "e":
				str = "\033"
			case "0":
				str = "\000"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	line = reParen.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%d", value)
	})
	if err != nil {
		return
	}

	words = strings.Fields(line)

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]int, 16)
		}
		asm.Label[label] = asm.ip
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = words[1+n]
		}
		defer func() { asm.Equate = old_equate }()

		// Local labels are unique to each expansion.
		asm.expansions++
		local := fmt.Sprintf("%v_%v_", name, asm.expansions)

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", local)
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// stripComment removes a ';' comment that is not inside quotes.
func stripComment(text string) string {
	var quote byte
	for n := 0; n < len(text); n++ {
		c := text[n]
		switch {
		case quote != 0 && c == '\\':
			n++
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		case quote == 0 && c == ';':
			return text[:n]
		}
	}

	return text
}

// Parse parses an input stream into a Program containing opcodes.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	clear(asm.Label)
	asm.Opcode = asm.Opcode[:0]
	asm.ip = int(RESET_PC)
	if asm.Macro == nil {
		asm.Macro = make(map[string](*Macro))
	}
	clear(asm.Macro)
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		line = strings.TrimSpace(stripComment(text))
		words := strings.Fields(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	if err = scanner.Err(); err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Final linking of jump labels.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		if len(op.LinkLabel) == 0 {
			continue
		}
		label := op.LinkLabel
		ip, ok := asm.Label[label]
		if !ok {
			lineno = op.LineNo
			line = strings.Join(op.Words, " ")
			err = ErrLabelMissing(label)
			return
		}
		if len(op.Codes) < 4 {
			log.Fatalf("Unable to link label '%s' to line %d: %v", label, op.LineNo, op.Words)
		}
		op.Codes[1] = uint8(ip >> 8)
		op.Codes[3] = uint8(ip & 0xff)
	}

	prog = &Program{
		Opcodes: slices.Clone(asm.Opcode),
	}

	return
}

// classMap maps the single register instructions.
var classMap = map[string]CodeClass{
	"get":   OP_GET,
	"put":   OP_PUT,
	"load":  OP_LOAD,
	"store": OP_STORE,
	"eq":    OP_EQ,
	"cmp":   OP_CMP,
	"add":   OP_ADD,
	"sub":   OP_SUB,
	"shl":   OP_SHL,
	"shr":   OP_SHR,
	"or":    OP_OR,
	"and":   OP_AND,
	"not":   OP_NOT,
}

// flowMap maps the flow control instructions that take no register.
var flowMap = map[string]uint8{
	"jmp":  FLOW_JMP,
	"call": FLOW_CALL,
	"ret":  FLOW_RET,
	"halt": FLOW_HALT,
	"nop":  FLOW_NOP,
}

// addrCodes generates the literal loads of r1:r2 for an address or label.
// Label addresses are filled in at link time.
func (asm *Assembler) addrCodes(word string) (codes []byte, label string, err error) {
	value, err := asm.valueOf(word, 16)
	if err != nil {
		if !reLabel.MatchString(word) {
			return
		}
		err = nil
		label = word
		value = 0
	}

	codes = []byte{
		byte(MakeCode(OP_LIT, REG_ADDR_HI)), uint8(value >> 8),
		byte(MakeCode(OP_LIT, REG_ADDR_LO)), uint8(value & 0xff),
	}

	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	var codes []byte
	var label string

	// no-op
	if len(words) == 0 {
		return
	}

	initial_words := words
	ip := asm.ip

	defer func() {
		if len(codes) == 0 {
			return
		}
		if ip+len(codes) > ADDRESS_SPACE {
			err = ErrProgramTooLarge
			return
		}
		opcode := Opcode{LineNo: lineno, Ip: ip, Words: initial_words, Codes: codes, LinkLabel: label}
		asm.Opcode = append(asm.Opcode, opcode)
		asm.ip = ip + len(codes)
	}()

	if asm.Verbose {
		log.Printf("%04x: %v", ip, words)
	}

	if class, ok := classMap[words[0]]; ok {
		if len(words) < 2 {
			err = ErrOpcodeMissing
			return
		}
		if len(words) > 2 {
			err = ErrOpcodeExtraArgs
			return
		}
		var reg uint8
		reg, err = asm.register(words[1])
		if err != nil {
			return
		}
		codes = []byte{byte(MakeCode(class, reg))}
		return
	}

	if flow, ok := flowMap[words[0]]; ok {
		switch {
		case len(words) == 1:
			codes = []byte{byte(MakeCodeFlow(flow))}
		case len(words) == 2 && (flow == FLOW_JMP || flow == FLOW_CALL):
			// jmp TARGET, call TARGET => addr TARGET ; jmp/call
			codes, label, err = asm.addrCodes(words[1])
			if err != nil {
				return
			}
			codes = append(codes, byte(MakeCodeFlow(flow)))
		default:
			err = ErrOpcodeExtraArgs
		}
		return
	}

	switch words[0] {
	case ".org":
		if len(words) != 2 {
			err = ErrOrgSyntax
			return
		}
		var value uint16
		value, err = asm.valueOf(words[1], 16)
		if err != nil {
			return
		}
		asm.ip = int(value)
	case ".byte":
		if len(words) < 2 {
			err = ErrOpcodeValueMissing
			return
		}
		var data []byte
		for _, word := range words[1:] {
			var value uint16
			value, err = asm.valueOf(word, 8)
			if err != nil {
				return
			}
			data = append(data, uint8(value))
		}
		codes = data
	case "lit":
		if len(words) < 3 {
			err = ErrOpcodeValueMissing
			return
		}
		if len(words) > 3 {
			err = ErrOpcodeExtraArgs
			return
		}
		var reg uint8
		reg, err = asm.register(words[1])
		if err != nil {
			return
		}
		var value uint16
		value, err = asm.valueOf(words[2], 8)
		if err != nil {
			return
		}
		codes = []byte{byte(MakeCode(OP_LIT, reg)), uint8(value)}
	case "addr":
		if len(words) < 2 {
			err = ErrOpcodeValueMissing
			return
		}
		if len(words) > 2 {
			err = ErrOpcodeExtraArgs
			return
		}
		var data []byte
		data, label, err = asm.addrCodes(words[1])
		if err != nil {
			return
		}
		codes = data
	case "jnz":
		if len(words) < 2 {
			err = ErrOpcodeMissing
			return
		}
		if len(words) > 3 {
			err = ErrOpcodeExtraArgs
			return
		}
		var reg uint8
		reg, err = asm.register(words[1])
		if err != nil {
			return
		}
		var data []byte
		if len(words) == 3 {
			// jnz REG TARGET => addr TARGET ; jnz REG
			data, label, err = asm.addrCodes(words[2])
			if err != nil {
				return
			}
		}
		codes = append(data, byte(MakeCode(OP_JNZ, reg)))
	default:
		err = ErrInstructionInvalid
		return
	}

	return
}
