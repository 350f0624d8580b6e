// Package terminal implements functions for responding to user
// input and dispatching to the stepping engine and the host session.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases []string
	helpMsg string
	cmdFn   cmdfunc
}

// Returns true if the command string matches one of the aliases for
// this command.
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands of the qstep terminal.
type Commands struct {
	cmds []command
}

// DebugCommands returns a Commands struct with default commands
// defined.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: helpCommand, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"ssi", "si"}, cmdFn: stepIntoCommand, helpMsg: `Steps one instruction, entering calls.

	ssi [count]

Stepping is synthesized from temporary breakpoints: the instruction at
the program counter is decoded, breakpoints are armed at every address
execution can continue at, and the target is resumed. A direct call is
entered; an indirect call falls back to its return site. Count accepts
decimal or prefixed bases (0x..., 0o..., 0b...).`},
		{aliases: []string{"nni", "ni"}, cmdFn: stepOverCommand, helpMsg: `Steps one instruction, skipping over calls.

	nni [count]

Identical to ssi except that a call instruction runs to completion and
the step stops at its return site.`},
		{aliases: []string{"continue", "c"}, cmdFn: continueCommand, helpMsg: `Resumes the target until the next stop.`},
		{aliases: []string{"break", "b"}, cmdFn: breakCommand, helpMsg: `Sets a breakpoint.

	break <locspec>

The locspec is passed to the host debugger verbatim: a symbol, a
*0xADDRESS form, or anything else the host accepts.`},
		{aliases: []string{"hbreak", "hb"}, cmdFn: hbreakCommand, helpMsg: `Sets a hardware breakpoint.

	hbreak <locspec>

Useful while the target still executes from memory that software
breakpoints cannot patch.`},
		{aliases: []string{"watch", "w"}, cmdFn: watchCommand, helpMsg: `Sets a write watchpoint on an expression.

	watch <expr>`},
		{aliases: []string{"breakpoints", "bp"}, cmdFn: breakpointsCommand, helpMsg: `Lists the breakpoints set from this session.

Breakpoints the stepping engine arms internally are never listed.`},
		{aliases: []string{"source"}, cmdFn: sourceCommand, helpMsg: `Executes a file.

	source <path>

Files ending in .star are executed as starlark scripts with the
session bindings (ssi, nni, cont, brk, hbrk, watch, read, symbol);
anything else is read as a list of terminal commands.`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: `Exit the debugger session.`},
	}

	sort.Sort(byFirstAlias(c.cmds))
	return c
}

// byFirstAlias will sort by the first alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

// Find the command defined by cmdstr.
func (c *Commands) Find(cmdstr string) cmdfunc {
	// default to ssi on an empty line
	if cmdstr == "" {
		return stepIntoCommand
	}
	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}
	return nil
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	if aliased, ok := t.conf.Aliases[cmdname]; ok && len(aliased) > 0 {
		cmdname = aliased[0]
		args = strings.TrimSpace(strings.Join(aliased[1:], " ") + " " + args)
	}
	cmdfn := c.Find(cmdname)
	if cmdfn == nil {
		return fmt.Errorf("command not available: %q", cmdname)
	}
	return cmdfn(t, args)
}

// executeFile executes the plain command file at path.
func (c *Commands) executeFile(t *Term, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if err := c.Call(line, t); err != nil {
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", path, lineno, err)
		}
	}
	return scanner.Err()
}

// splitArgs tokenizes args the way a shell would, without backtick
// expansion.
func splitArgs(args string) ([]string, error) {
	if args == "" {
		return nil, nil
	}
	v, err := argv.Argv(args,
		func(s string) (string, error) {
			return "", fmt.Errorf("backtick not supported in %q", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal argument list %q", args)
	}
	return v[0], nil
}

// parseCount parses the repeat count argument of the step commands:
// optional, non-negative, decimal or prefixed base.
func parseCount(args string) (int, error) {
	fields, err := splitArgs(args)
	if err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 1, nil
	}
	if len(fields) > 1 {
		return 0, fmt.Errorf("too many arguments: %q", args)
	}
	n, err := strconv.ParseUint(fields[0], 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q", fields[0])
	}
	return int(n), nil
}

func stepIntoCommand(t *Term, args string) error {
	count, err := parseCount(args)
	if err != nil {
		return err
	}
	stop, err := t.StepInto(count)
	if err != nil {
		return err
	}
	t.printStop(stop)
	return nil
}

func stepOverCommand(t *Term, args string) error {
	count, err := parseCount(args)
	if err != nil {
		return err
	}
	stop, err := t.StepOver(count)
	if err != nil {
		return err
	}
	t.printStop(stop)
	return nil
}

func continueCommand(t *Term, args string) error {
	stop, err := t.Continue()
	if err != nil {
		return err
	}
	t.printStop(stop)
	return nil
}

func breakCommand(t *Term, args string) error {
	return setBreak(t, args, t.Break)
}

func hbreakCommand(t *Term, args string) error {
	return setBreak(t, args, t.BreakHardware)
}

func watchCommand(t *Term, args string) error {
	return setBreak(t, args, t.Watch)
}

func setBreak(t *Term, args string, fn func(string) (int, error)) error {
	if args == "" {
		return errors.New("argument required")
	}
	id, err := fn(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Breakpoint %d set at %s\n", id, args)
	return nil
}

func breakpointsCommand(t *Term, args string) error {
	if len(t.breakpoints) == 0 {
		fmt.Fprintln(t.stdout, "No breakpoints.")
		return nil
	}
	ids := make([]int, 0, len(t.breakpoints))
	for id := range t.breakpoints {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	w := tabwriter.NewWriter(t.stdout, 4, 4, 2, ' ', 0)
	for _, id := range ids {
		fmt.Fprintf(w, "%d\t%s\n", id, t.breakpoints[id])
	}
	return w.Flush()
}

func sourceCommand(t *Term, args string) error {
	fields, err := splitArgs(args)
	if err != nil {
		return err
	}
	if len(fields) != 1 {
		return errors.New("wrong number of arguments: source <path>")
	}
	path := fields[0]
	if filepath.Ext(path) == ".star" {
		return t.starlarkEnv.Exec(path)
	}
	return t.cmds.executeFile(t, path)
}

func helpCommand(t *Term, args string) error {
	if args != "" {
		for _, cmd := range t.cmds.cmds {
			if cmd.match(args) {
				fmt.Fprintln(t.stdout, cmd.helpMsg)
				return nil
			}
		}
		return fmt.Errorf("command not available: %q", args)
	}
	fmt.Fprintln(t.stdout, "The following commands are available:")
	w := tabwriter.NewWriter(t.stdout, 0, 8, 0, '-', 0)
	for _, cmd := range t.cmds.cmds {
		h := cmd.helpMsg
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

// ExitRequestError is returned when the user exits the session.
type ExitRequestError struct{}

func (ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, args string) error {
	return ExitRequestError{}
}
