package gdbmi

import "testing"

func TestMiString(t *testing.T) {
	rec := `done,bkpt={number="2",type="breakpoint",disp="del",enabled="y",addr="0x0000000000401005",func="main"}`
	if got := miString(rec, "number"); got != "2" {
		t.Errorf("number = %q, want 2", got)
	}
	if got := miString(rec, "addr"); got != "0x0000000000401005" {
		t.Errorf("addr = %q", got)
	}
	if got := miString(rec, "missing"); got != "" {
		t.Errorf("missing = %q, want empty", got)
	}
}

func TestMiStringKeyBoundary(t *testing.T) {
	// the "addr" of the frame tuple must not be confused with a key
	// that merely ends in addr
	rec := `stopped,reason="breakpoint-hit",frame={shadowaddr="0xbad",addr="0x401000"}`
	if got := miString(rec, "addr"); got != "0x401000" {
		t.Errorf("addr = %q, want 0x401000", got)
	}
}

func TestMiStringEscapes(t *testing.T) {
	rec := `error,msg="No symbol \"foo\" in current context."`
	if got := miString(rec, "msg"); got != `No symbol "foo" in current context.` {
		t.Errorf("msg = %q", got)
	}
}

func TestUnquoteConsole(t *testing.T) {
	got := unquoteConsole(`"=> 0x401000 <main>:\tcall   0x401020\n"`)
	want := "=> 0x401000 <main>:\tcall   0x401020\n"
	if got != want {
		t.Errorf("unquoteConsole = %q, want %q", got, want)
	}
}

func TestResultRecord(t *testing.T) {
	rec, ok := resultRecord(`7^done,value="4202512"`, "7")
	if !ok || rec != `done,value="4202512"` {
		t.Errorf("resultRecord = %q, %v", rec, ok)
	}
	if _, ok := resultRecord(`*stopped,reason="breakpoint-hit"`, "7"); ok {
		t.Error("async record misidentified as result record")
	}
	if _, ok := resultRecord(`8^done`, "7"); ok {
		// wrong token leaves a stray '8' prefix
		t.Error("result record accepted with mismatched token")
	}
}

func TestParseStopStateBreakpoint(t *testing.T) {
	stop := parseStopState(`*stopped,reason="breakpoint-hit",disp="del",bkptno="3",frame={addr="0x0000000000401005",func="main",args=[]},thread-id="1",stopped-threads="all"`)
	if stop.PC != 0x401005 || stop.Breakpoint != 3 || stop.Reason != "breakpoint-hit" || stop.Exited {
		t.Errorf("stop = %+v", stop)
	}
}

func TestParseStopStateSignal(t *testing.T) {
	stop := parseStopState(`*stopped,reason="signal-received",signal-name="SIGSEGV",signal-meaning="Segmentation fault",frame={addr="0x0000000000404028"}`)
	if stop.Signal != "SIGSEGV" || stop.PC != 0x404028 || stop.Breakpoint != 0 {
		t.Errorf("stop = %+v", stop)
	}
}

func TestParseStopStateExit(t *testing.T) {
	stop := parseStopState(`*stopped,reason="exited",exit-code="02"`)
	if !stop.Exited || stop.ExitStatus != 2 {
		t.Errorf("stop = %+v", stop)
	}
	stop = parseStopState(`*stopped,reason="exited-normally"`)
	if !stop.Exited || stop.ExitStatus != 0 {
		t.Errorf("stop = %+v", stop)
	}
}

func TestParseExitStatusOctal(t *testing.T) {
	if got := parseExitStatus("013"); got != 11 {
		t.Errorf("parseExitStatus(013) = %d, want 11", got)
	}
}
