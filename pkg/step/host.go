package step

// Host is the capability surface the stepping engine requires from
// the debugger controlling the target. Everything else the host can
// do (loading binaries, attaching to stubs, user breakpoints) is
// outside the engine's contract.
type Host interface {
	// DisassembleWindow returns the textual disassembly of the
	// instruction at the current program counter and of its linear
	// successor.
	DisassembleWindow() (current, next string, err error)

	// ReadUint reads an integer of size bytes from a target memory
	// or register expression.
	ReadUint(expr string, size int) (uint64, error)

	// SetTempBreakpoint creates a breakpoint at addr that removes
	// itself when hit and is hidden from user-facing breakpoint
	// listings. It fails if the host rejects the address.
	SetTempBreakpoint(addr uint64) (id int, err error)

	// ClearBreakpoint deletes a breakpoint by id. Deleting a
	// breakpoint that already removed itself is not an error.
	ClearBreakpoint(id int) error

	// ContinueWait resumes the target and blocks until it halts.
	ContinueWait() (*StopState, error)
}

// StopState describes where and why the target halted after a resume.
type StopState struct {
	PC     uint64
	Reason string
	Signal string

	// Breakpoint is the host id of the breakpoint that fired, 0 if
	// the stop was not caused by one.
	Breakpoint int

	Exited     bool
	ExitStatus int
}
