// Package step reconstructs single-instruction stepping from
// breakpoints alone.
//
// Some targets cannot be stepped with the host debugger's native
// stepi/nexti primitives: early-boot kernels behind a remote stub,
// stubs that do not implement single-step, watchdog-sensitive
// firmware. For those targets step emulates one instruction of
// progress by decoding the instruction at the program counter,
// computing every address execution can legally continue at, arming a
// temporary breakpoint at each of them, resuming the target and
// removing whatever is left once it halts.
//
// The engine knows nothing about the host debugger beyond the Host
// interface and nothing about the instruction set beyond what is
// needed to classify control flow.
package step
