package logflags

import "testing"

func reset() {
	stepper = false
	gdbWire = false
}

func TestSetupDefaultsToStepper(t *testing.T) {
	defer reset()
	if err := Setup(true, ""); err != nil {
		t.Fatal(err)
	}
	if !Stepper() {
		t.Error("stepper logging not enabled by default")
	}
	if GdbWire() {
		t.Error("gdbwire logging enabled without being requested")
	}
}

func TestSetupSelectsLayers(t *testing.T) {
	defer reset()
	if err := Setup(true, "gdbwire,stepper"); err != nil {
		t.Fatal(err)
	}
	if !Stepper() || !GdbWire() {
		t.Errorf("stepper=%v gdbwire=%v, want both enabled", Stepper(), GdbWire())
	}
}

func TestSetupRejectsOutputWithoutLog(t *testing.T) {
	defer reset()
	if err := Setup(false, "stepper"); err == nil {
		t.Error("expected error for --log-output without --log")
	}
}
