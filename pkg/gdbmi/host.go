package gdbmi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qstep/qstep/pkg/step"
)

// Conn implements step.Host.
var _ step.Host = (*Conn)(nil)

// DisassembleWindow asks gdb to print the instruction at the program
// counter and its linear successor. The limited introspection of the
// machine interface only yields text; parsing it back into structure
// is the stepping engine's problem.
func (c *Conn) DisassembleWindow() (string, string, error) {
	if _, err := c.exec(`-interpreter-exec console "x/2i $pc"`, "disassemble"); err != nil {
		return "", "", err
	}
	lines := c.consoleLines()
	if len(lines) < 2 {
		return "", "", step.ShortDisassemblyError{Have: len(lines), Want: 2}
	}
	return lines[0], lines[1], nil
}

// ReadUint evaluates expr in the target and returns its value
// truncated to size bytes.
func (c *Conn) ReadUint(expr string, size int) (uint64, error) {
	rec, err := c.exec(fmt.Sprintf("-data-evaluate-expression %q", expr), "read")
	if err != nil {
		return 0, err
	}
	v := miString(rec, "value")
	// values with a symbolic suffix come out as "0x401000 <main>"
	if i := strings.IndexByte(v, ' '); i >= 0 {
		v = v[:i]
	}
	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return 0, &ProtocolError{context: "read", cmd: expr, msg: "unparseable value " + v}
	}
	if size > 0 && size < 8 {
		n &= 1<<(8*uint(size)) - 1
	}
	return n, nil
}

// SetTempBreakpoint arms a temporary breakpoint at addr. gdb removes
// it when it fires; qstep never shows it in its breakpoint listing.
func (c *Conn) SetTempBreakpoint(addr uint64) (int, error) {
	rec, err := c.exec(fmt.Sprintf("-break-insert -t *%#x", addr), "set breakpoint")
	if err != nil {
		return 0, step.InvalidAddressError{Addr: addr, Err: err}
	}
	id, err := strconv.Atoi(miString(rec, "number"))
	if err != nil {
		return 0, &ProtocolError{context: "set breakpoint", cmd: rec, msg: "no breakpoint number in reply"}
	}
	return id, nil
}

// ClearBreakpoint deletes breakpoint id. A breakpoint that already
// removed itself is gone as far as the caller is concerned, so
// "no breakpoint" replies are success.
func (c *Conn) ClearBreakpoint(id int) error {
	_, err := c.exec(fmt.Sprintf("-break-delete %d", id), "clear breakpoint")
	if err != nil && isNoBreakpoint(err) {
		return nil
	}
	return err
}

func isNoBreakpoint(err error) bool {
	perr, ok := err.(*ProtocolError)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(perr.msg), "no breakpoint")
}

// ContinueWait resumes the target and blocks until it halts.
func (c *Conn) ContinueWait() (*step.StopState, error) {
	if _, err := c.exec("-exec-continue", "continue"); err != nil {
		return nil, err
	}
	return c.waitStopped()
}
