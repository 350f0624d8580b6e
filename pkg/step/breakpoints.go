package step

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/qstep/qstep/pkg/logflags"
)

// TempBreakpoint is one ephemeral breakpoint armed for the duration
// of a single step iteration. The host removes it automatically when
// it fires; the manager deletes whatever is left when the iteration
// ends.
type TempBreakpoint struct {
	ID   int
	Addr uint64

	armed bool
}

// InvalidAddressError is returned by the host when it rejects a
// candidate address.
type InvalidAddressError struct {
	Addr uint64
	Err  error
}

func (e InvalidAddressError) Error() string {
	return fmt.Sprintf("could not set breakpoint at %#x: %v", e.Addr, e.Err)
}

// NoCandidatesError is returned when the host rejected every
// candidate address and the step has nothing left to stop at.
// Resuming anyway would let the target run away.
type NoCandidatesError struct {
	Addrs []uint64
}

func (e NoCandidatesError) Error() string {
	return fmt.Sprintf("no breakpoint could be set for candidate addresses %#x", e.Addrs)
}

// tempBreakpoints tracks the breakpoints armed during one step
// iteration. It is the sole owner of their ids.
type tempBreakpoints struct {
	host Host
	bps  []*TempBreakpoint
	log  *logrus.Entry
}

func newTempBreakpoints(host Host) *tempBreakpoints {
	return &tempBreakpoints{host: host, log: logflags.StepperLogger()}
}

// Arm sets one temporary breakpoint per candidate address. A
// candidate the host rejects is dropped; if every candidate is
// rejected nothing is armed and Arm fails.
func (t *tempBreakpoints) Arm(addrs []uint64) error {
	for _, addr := range addrs {
		id, err := t.host.SetTempBreakpoint(addr)
		if err != nil {
			t.log.Warnf("dropping candidate %#x: %v", addr, err)
			continue
		}
		t.bps = append(t.bps, &TempBreakpoint{ID: id, Addr: addr, armed: true})
	}
	if len(t.bps) == 0 {
		return NoCandidatesError{Addrs: addrs}
	}
	return nil
}

// ClearAll deletes every breakpoint armed in this iteration,
// regardless of what stopped the target. The host auto-removes a
// temporary breakpoint when it fires, so deleting one that is already
// gone must succeed silently; any other deletion failure is logged
// and never interrupts cleanup.
func (t *tempBreakpoints) ClearAll() {
	for _, bp := range t.bps {
		if !bp.armed {
			continue
		}
		if err := t.host.ClearBreakpoint(bp.ID); err != nil {
			t.log.Warnf("could not clear breakpoint %d at %#x: %v", bp.ID, bp.Addr, err)
		}
		bp.armed = false
	}
	t.bps = t.bps[:0]
}

// markHit records that the host auto-removed the breakpoint that
// fired, so ClearAll does not try to delete it again.
func (t *tempBreakpoints) markHit(id int) {
	for _, bp := range t.bps {
		if bp.ID == id {
			bp.armed = false
		}
	}
}

// covers reports whether addr is one of the candidate addresses armed
// this iteration.
func (t *tempBreakpoints) covers(addr uint64) bool {
	for _, bp := range t.bps {
		if bp.Addr == addr {
			return true
		}
	}
	return false
}
