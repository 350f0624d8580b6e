// Package gdbmi drives a gdb process through its machine interface
// and exposes it as a step.Host.
//
// The target itself sits behind a remote serial protocol stub, which
// cannot produce textual disassembly and often cannot single-step, so
// qstep talks to a gdb attached to the stub instead of to the stub
// directly. Everything the engine learns about the target arrives as
// MI records or captured console output.
package gdbmi
