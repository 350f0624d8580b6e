package step

import (
	"github.com/sirupsen/logrus"

	"github.com/qstep/qstep/pkg/logflags"
)

// Stepper is the public surface of the stepping engine. One Stepper
// is constructed per debugging session and drives the host through
// the decode, classify, arm, resume, disarm cycle.
//
// A Stepper is synchronous: the step operations block on the host's
// resume-and-wait and there is no timeout. If none of the computed
// candidates is ever reached (a wrong return-address fallback, a
// branch into self-modified code) the wait blocks until something
// outside the engine interrupts the session.
type Stepper struct {
	host Host
	log  *logrus.Entry
}

// New returns a Stepper driving host.
func New(host Host) *Stepper {
	return &Stepper{host: host, log: logflags.StepperLogger()}
}

// StepInto advances the target by count instructions, entering the
// target of direct call instructions. It returns the final stop
// description.
func (s *Stepper) StepInto(count int) (*StopState, error) {
	return s.step(StepInto, count)
}

// StepOver advances the target by count instructions, letting call
// instructions run to completion and stopping at their return site.
func (s *Stepper) StepOver(count int) (*StopState, error) {
	return s.step(StepOver, count)
}

func (s *Stepper) step(mode Mode, count int) (*StopState, error) {
	var stop *StopState
	for i := 0; i < count; i++ {
		var onCandidate bool
		var err error
		stop, onCandidate, err = s.next(mode)
		if err != nil {
			return stop, err
		}
		if !onCandidate {
			// The target stopped for a reason of its own: an
			// asynchronous signal, a user breakpoint, process
			// exit. Report that instead of pretending the
			// remaining steps completed.
			s.log.Debugf("step interrupted by unrelated stop at %#x (%s)", stop.PC, stop.Reason)
			break
		}
	}
	return stop, nil
}

// next performs one decode, classify, arm, resume, disarm cycle. It
// reports whether the target halted on one of the armed candidates.
//
// Between the halt and ClearAll the untaken side of a conditional
// branch is still armed; on self-modifying or re-entered code that
// stale trap is observable. Closing the window would require the host
// to disarm the other candidates atomically with the stop, which no
// host interface offers.
func (s *Stepper) next(mode Mode) (*StopState, bool, error) {
	curLine, nextLine, err := s.host.DisassembleWindow()
	if err != nil {
		return nil, false, err
	}
	cur, err := DecodeInstruction(curLine)
	if err != nil {
		return nil, false, err
	}
	nxt, err := DecodeInstruction(nextLine)
	if err != nil {
		return nil, false, err
	}

	addrs := candidates(cur, nxt.Addr, s.host, mode)
	s.log.Debugf("step %s at %#x (%s %s): candidates %#x", mode, cur.Addr, cur.Mnemonic, cur.Operand, addrs)

	bps := newTempBreakpoints(s.host)
	if err := bps.Arm(addrs); err != nil {
		return nil, false, err
	}
	defer bps.ClearAll()

	stop, err := s.host.ContinueWait()
	if err != nil {
		return nil, false, err
	}
	if stop.Breakpoint != 0 {
		bps.markHit(stop.Breakpoint)
	}
	if stop.Exited {
		return stop, false, nil
	}
	return stop, bps.covers(stop.PC), nil
}
