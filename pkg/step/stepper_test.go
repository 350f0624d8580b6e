package step

import (
	"errors"
	"fmt"
	"testing"
)

// fakeHost simulates a target executing a small linear program. Every
// SetTempBreakpoint and ClearBreakpoint is recorded so tests can check
// the breakpoint lifecycle invariant.
type fakeHost struct {
	pc    uint64
	text  map[uint64]string // address -> "mnem op"
	sizes map[uint64]uint64 // address -> instruction length

	mem map[string]uint64

	nextID  int
	armed   map[int]uint64
	created int
	cleared []int

	// if set, ContinueWait reports this stop instead of jumping to
	// the lowest armed candidate
	forcedStop *StopState

	disasErr error
	reject   map[uint64]error
	clearErr error
}

func newFakeHost(entry uint64) *fakeHost {
	return &fakeHost{
		pc:     entry,
		text:   map[uint64]string{},
		sizes:  map[uint64]uint64{},
		mem:    map[string]uint64{},
		armed:  map[int]uint64{},
		reject: map[uint64]error{},
	}
}

func (h *fakeHost) add(addr, size uint64, text string) {
	h.text[addr] = text
	h.sizes[addr] = size
}

func (h *fakeHost) DisassembleWindow() (string, string, error) {
	if h.disasErr != nil {
		return "", "", h.disasErr
	}
	cur, ok := h.text[h.pc]
	if !ok {
		return "", "", fmt.Errorf("no instruction at %#x", h.pc)
	}
	next := h.pc + h.sizes[h.pc]
	return fmt.Sprintf("=> %#x:\t%s", h.pc, cur),
		fmt.Sprintf("   %#x:\t%s", next, h.text[next]), nil
}

func (h *fakeHost) ReadUint(expr string, size int) (uint64, error) {
	v, ok := h.mem[expr]
	if !ok {
		return 0, errors.New("cannot access memory")
	}
	return v, nil
}

func (h *fakeHost) SetTempBreakpoint(addr uint64) (int, error) {
	if err := h.reject[addr]; err != nil {
		return 0, InvalidAddressError{Addr: addr, Err: err}
	}
	h.nextID++
	h.created++
	h.armed[h.nextID] = addr
	return h.nextID, nil
}

func (h *fakeHost) ClearBreakpoint(id int) error {
	h.cleared = append(h.cleared, id)
	if h.clearErr != nil {
		return h.clearErr
	}
	delete(h.armed, id)
	return nil
}

func (h *fakeHost) ContinueWait() (*StopState, error) {
	if h.forcedStop != nil {
		stop := h.forcedStop
		h.forcedStop = nil
		h.pc = stop.PC
		return stop, nil
	}
	var hit int
	var hitAddr uint64
	first := true
	for id, addr := range h.armed {
		if first || addr < hitAddr {
			hit, hitAddr, first = id, addr, false
		}
	}
	if first {
		return nil, errors.New("target resumed with no breakpoints armed")
	}
	// temporary breakpoints auto-remove when hit
	delete(h.armed, hit)
	h.pc = hitAddr
	return &StopState{PC: hitAddr, Reason: "breakpoint-hit", Breakpoint: hit}, nil
}

// leakCheck verifies that no breakpoint armed during the test is
// still present in the host.
func leakCheck(t *testing.T, h *fakeHost) {
	t.Helper()
	if len(h.armed) != 0 {
		t.Errorf("breakpoints leaked: %v", h.armed)
	}
}

func TestStepIntoLinear(t *testing.T) {
	h := newFakeHost(0x100)
	h.add(0x100, 3, "mov rax, rbx")
	h.add(0x103, 1, "nop")
	h.add(0x104, 2, "xor rcx, rcx")
	h.add(0x106, 1, "nop")

	stop, err := New(h).StepInto(3)
	if err != nil {
		t.Fatal(err)
	}
	if h.pc != 0x106 {
		t.Errorf("pc = %#x after three steps, want 0x106", h.pc)
	}
	if stop == nil || stop.PC != 0x106 {
		t.Errorf("stop = %+v, want stop at 0x106", stop)
	}
	if h.created != 3 {
		t.Errorf("created %d breakpoints over three linear steps, want 3", h.created)
	}
	leakCheck(t, h)
}

func TestStepOverCall(t *testing.T) {
	h := newFakeHost(0x100)
	h.add(0x100, 5, "call   0x1000")
	h.add(0x105, 1, "nop")

	stop, err := New(h).StepOver(1)
	if err != nil {
		t.Fatal(err)
	}
	if stop.PC != 0x105 {
		t.Errorf("step over call stopped at %#x, want fallthrough 0x105", stop.PC)
	}
	leakCheck(t, h)
}

func TestStepIntoCall(t *testing.T) {
	h := newFakeHost(0x100)
	h.add(0x100, 5, "call   0x1000")
	h.add(0x105, 1, "nop")
	h.add(0x1000, 1, "push rbp")

	stop, err := New(h).StepInto(1)
	if err != nil {
		t.Fatal(err)
	}
	if stop.PC != 0x1000 {
		t.Errorf("step into call stopped at %#x, want target 0x1000", stop.PC)
	}
	leakCheck(t, h)
}

func TestStepConditionalJumpClearsUntakenSide(t *testing.T) {
	h := newFakeHost(0x100)
	h.add(0x100, 2, "je     0x4000")
	h.add(0x102, 1, "nop")
	h.add(0x4000, 1, "nop")

	// the host stops at the lowest armed address (0x102, branch not
	// taken); the 0x4000 breakpoint must still be gone afterwards
	stop, err := New(h).StepInto(1)
	if err != nil {
		t.Fatal(err)
	}
	if stop.PC != 0x102 {
		t.Errorf("stopped at %#x, want 0x102", stop.PC)
	}
	if h.created != 2 {
		t.Errorf("created %d breakpoints for a conditional jump, want 2", h.created)
	}
	leakCheck(t, h)
}

func TestStepRet(t *testing.T) {
	h := newFakeHost(0x1000)
	h.add(0x1000, 1, "ret")
	h.add(0x1001, 1, "nop")
	h.add(0x105, 1, "nop")
	h.mem[retAddrExpr] = 0x105

	stop, err := New(h).StepInto(1)
	if err != nil {
		t.Fatal(err)
	}
	if stop.PC != 0x105 {
		t.Errorf("ret stopped at %#x, want return address 0x105", stop.PC)
	}
	leakCheck(t, h)
}

func TestStepRetReadFailureFallsThrough(t *testing.T) {
	h := newFakeHost(0x1000)
	h.add(0x1000, 1, "ret")
	h.add(0x1001, 1, "nop")

	stop, err := New(h).StepInto(1)
	if err != nil {
		t.Fatal(err)
	}
	if stop.PC != 0x1001 {
		t.Errorf("ret with unreadable stack stopped at %#x, want fallthrough 0x1001", stop.PC)
	}
	leakCheck(t, h)
}

func TestStepUnrelatedStopEndsRepetition(t *testing.T) {
	h := newFakeHost(0x100)
	h.add(0x100, 1, "nop")
	h.add(0x101, 1, "nop")
	h.add(0x102, 1, "nop")
	h.add(0x9000, 1, "nop")
	h.forcedStop = &StopState{PC: 0x9000, Reason: "signal-received", Signal: "SIGSEGV"}

	stop, err := New(h).StepInto(5)
	if err != nil {
		t.Fatal(err)
	}
	if stop.PC != 0x9000 || stop.Signal != "SIGSEGV" {
		t.Errorf("stop = %+v, want the unrelated SIGSEGV stop surfaced", stop)
	}
	if h.created != 1 {
		t.Errorf("created %d breakpoints, want 1 (repetition must end at the unrelated stop)", h.created)
	}
	leakCheck(t, h)
}

func TestStepDecodeFailureArmsNothing(t *testing.T) {
	h := newFakeHost(0x100)
	h.add(0x100, 1, "nop")
	h.add(0x101, 1, "nop")
	h.disasErr = ShortDisassemblyError{Have: 1, Want: 2}

	_, err := New(h).StepInto(1)
	if err == nil {
		t.Fatal("expected decode failure")
	}
	if h.created != 0 {
		t.Errorf("created %d breakpoints in an aborted iteration, want 0", h.created)
	}
}

func TestStepAllCandidatesRejected(t *testing.T) {
	h := newFakeHost(0x100)
	h.add(0x100, 1, "nop")
	h.add(0x101, 1, "nop")
	h.reject[0x101] = errors.New("address unmapped")

	_, err := New(h).StepInto(1)
	if err == nil {
		t.Fatal("expected failure when every candidate is rejected")
	}
	if _, ok := err.(NoCandidatesError); !ok {
		t.Errorf("got %T, want NoCandidatesError", err)
	}
	leakCheck(t, h)
}

func TestStepPartialRejectionStillSteps(t *testing.T) {
	h := newFakeHost(0x100)
	h.add(0x100, 2, "je     0x4000")
	h.add(0x102, 1, "nop")
	h.reject[0x4000] = errors.New("address unmapped")

	stop, err := New(h).StepInto(1)
	if err != nil {
		t.Fatal(err)
	}
	if stop.PC != 0x102 {
		t.Errorf("stopped at %#x, want surviving candidate 0x102", stop.PC)
	}
	leakCheck(t, h)
}

func TestStepClearFailureDoesNotAbort(t *testing.T) {
	h := newFakeHost(0x100)
	h.add(0x100, 2, "je     0x4000")
	h.add(0x102, 1, "nop")
	h.add(0x4000, 1, "nop")
	h.clearErr = errors.New("stub went away")

	if _, err := New(h).StepInto(1); err != nil {
		t.Fatalf("cleanup failure aborted the step: %v", err)
	}
	if len(h.cleared) == 0 {
		t.Error("cleanup was never attempted")
	}
}

func TestStepExit(t *testing.T) {
	h := newFakeHost(0x100)
	h.add(0x100, 1, "nop")
	h.add(0x101, 1, "nop")
	h.forcedStop = &StopState{PC: 0, Reason: "exited", Exited: true, ExitStatus: 2}

	stop, err := New(h).StepInto(3)
	if err != nil {
		t.Fatal(err)
	}
	if !stop.Exited || stop.ExitStatus != 2 {
		t.Errorf("stop = %+v, want exit with status 2", stop)
	}
}

func TestStepZeroCount(t *testing.T) {
	h := newFakeHost(0x100)
	h.add(0x100, 1, "nop")
	h.add(0x101, 1, "nop")

	stop, err := New(h).StepOver(0)
	if err != nil {
		t.Fatal(err)
	}
	if stop != nil {
		t.Errorf("stop = %+v for a zero-count step, want nil", stop)
	}
	if h.created != 0 {
		t.Errorf("created %d breakpoints for a zero-count step, want 0", h.created)
	}
}
