package step

import (
	"strings"

	"github.com/qstep/qstep/pkg/logflags"
)

// Mode selects how call instructions are stepped.
type Mode uint8

const (
	// StepInto stops at the target of a direct call.
	StepInto Mode = iota
	// StepOver lets the call run to completion and stops at its
	// return site.
	StepOver
)

func (m Mode) String() string {
	if m == StepOver {
		return "over"
	}
	return "into"
}

// ptrSize is the pointer width of the target in bytes.
const ptrSize = 8

// retAddrExpr reads the return address from the top of the call
// stack.
const retAddrExpr = "(unsigned long long)*(unsigned long long*)$rsp"

// An IntReader reads an integer of the given width from a target
// memory or register expression.
type IntReader interface {
	ReadUint(expr string, size int) (uint64, error)
}

// candidates computes the set of addresses the target can legally be
// executing next, given the decoded instruction at the program counter
// and the address of its linear successor. The result has one or two
// elements.
//
// Conditional branches contribute both sides because the branch
// condition is never evaluated here. Instructions with repeat-prefix
// or loop-control semantics are not classified and take the linear
// path, so a single step over them may stop before their repetition
// has finished.
func candidates(instr DecodedInstruction, fallthroughAddr uint64, mem IntReader, mode Mode) []uint64 {
	mnem := strings.ToLower(instr.Mnemonic)

	switch {
	case strings.HasPrefix(mnem, "ret"):
		ra, err := mem.ReadUint(retAddrExpr, ptrSize)
		if err != nil {
			// The stack slot could not be read. The fallthrough
			// address is almost certainly not where a return
			// lands but it keeps the step alive.
			logflags.StepperLogger().Warnf("return address read failed at %#x: %v", instr.Addr, err)
			return []uint64{fallthroughAddr}
		}
		return []uint64{ra}

	case strings.HasPrefix(mnem, "call"):
		if mode == StepOver {
			return []uint64{fallthroughAddr}
		}
		if tgt, ok := operandTarget(instr.Operand); ok {
			return []uint64{tgt}
		}
		// Indirect call, the target is not in the operand text.
		return []uint64{fallthroughAddr}

	case mnem == "jmp" || mnem == "jmpq":
		if tgt, ok := operandTarget(instr.Operand); ok {
			return []uint64{tgt}
		}
		return []uint64{fallthroughAddr}

	case strings.HasPrefix(mnem, "j"):
		addrs := []uint64{fallthroughAddr}
		if tgt, ok := operandTarget(instr.Operand); ok && tgt != fallthroughAddr {
			addrs = append(addrs, tgt)
		}
		return addrs
	}

	return []uint64{fallthroughAddr}
}
