package config

import (
	"os"
	"testing"

	"gopkg.in/yaml.v2"
)

func TestApplyEnvBreakpoints(t *testing.T) {
	os.Setenv(EnvBreakpoints, "*0x200000, kernel::main , ")
	defer os.Unsetenv(EnvBreakpoints)

	c := &Config{EntryBreakpoints: []string{"_start"}}
	c.ApplyEnv()

	want := []string{"_start", "*0x200000", "kernel::main"}
	if len(c.EntryBreakpoints) != len(want) {
		t.Fatalf("EntryBreakpoints = %q, want %q", c.EntryBreakpoints, want)
	}
	for i := range want {
		if c.EntryBreakpoints[i] != want[i] {
			t.Fatalf("EntryBreakpoints = %q, want %q", c.EntryBreakpoints, want)
		}
	}
}

func TestConfigRoundTrip(t *testing.T) {
	in := Config{
		GDBPath:           "gdb-multiarch",
		StubAddr:          "localhost:1234",
		EntrySymbol:       "_start",
		MainSymbol:        "kernel::main",
		EntryBreakpoints:  []string{"*0x200000"},
		SourceDirectories: []string{"kernel"},
	}
	data, err := yaml.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Config
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.GDBPath != in.GDBPath || out.StubAddr != in.StubAddr || out.MainSymbol != in.MainSymbol {
		t.Errorf("round trip mangled config: %+v", out)
	}
}
