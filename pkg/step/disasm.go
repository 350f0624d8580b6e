package step

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var hexLiteral = regexp.MustCompile(`0x[0-9a-fA-F]+`)

// currentInstrMarker is prepended by the host to the line of the
// instruction the program counter points at.
const currentInstrMarker = "=>"

// DecodedInstruction is one instruction of the disassembly window,
// parsed out of the host's textual form. It is valid for the duration
// of one step iteration.
type DecodedInstruction struct {
	Addr     uint64
	Mnemonic string
	Operand  string
}

// MalformedInstructionError is returned when an instruction line
// contains no address literal.
type MalformedInstructionError struct {
	Line string
}

func (e MalformedInstructionError) Error() string {
	return fmt.Sprintf("could not parse instruction address from %q", e.Line)
}

// ShortDisassemblyError is returned when the host produced fewer
// instruction lines than a step needs.
type ShortDisassemblyError struct {
	Have, Want int
}

func (e ShortDisassemblyError) Error() string {
	return fmt.Sprintf("disassembly window too short: %d lines, need %d", e.Have, e.Want)
}

// DecodeInstruction parses one line of the form
//
//	<hex-address>: <mnemonic> [operand]
//
// as produced by the host's disassembler. A leading current-PC marker
// is stripped. The first hexadecimal literal is the instruction
// address; the text after the first colon splits into mnemonic and
// operand. The operand is empty for no-operand instructions.
func DecodeInstruction(line string) (DecodedInstruction, error) {
	clean := strings.TrimSpace(line)
	clean = strings.TrimSpace(strings.TrimPrefix(clean, currentInstrMarker))

	loc := hexLiteral.FindStringIndex(clean)
	if loc == nil {
		return DecodedInstruction{}, MalformedInstructionError{Line: line}
	}
	addr, err := strconv.ParseUint(clean[loc[0]:loc[1]], 0, 64)
	if err != nil {
		return DecodedInstruction{}, MalformedInstructionError{Line: line}
	}

	var rest string
	if colon := strings.Index(clean, ":"); colon >= 0 {
		rest = clean[colon+1:]
	} else {
		rest = clean[loc[1]:]
	}
	rest = strings.TrimSpace(rest)

	instr := DecodedInstruction{Addr: addr}
	if rest == "" {
		return instr, nil
	}
	fields := strings.Fields(rest)
	instr.Mnemonic = fields[0]
	instr.Operand = strings.TrimSpace(strings.TrimPrefix(rest, fields[0]))
	return instr, nil
}

// operandTarget extracts a direct branch target from operand text. It
// returns false for indirect forms (register or memory operands
// without an address literal).
func operandTarget(op string) (uint64, bool) {
	lit := hexLiteral.FindString(op)
	if lit == "" {
		return 0, false
	}
	addr, err := strconv.ParseUint(lit, 0, 64)
	if err != nil {
		return 0, false
	}
	return addr, true
}
