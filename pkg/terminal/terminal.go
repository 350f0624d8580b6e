package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/qstep/qstep/pkg/config"
	"github.com/qstep/qstep/pkg/step"
	"github.com/qstep/qstep/pkg/terminal/starbind"
)

const historyFile string = ".qstep_history"

// Client is the session surface the terminal drives. It is the
// stepping engine's host plus the session-level operations the
// commands need. *gdbmi.Conn implements it.
type Client interface {
	step.Host

	Break(loc string) (int, error)
	BreakHardware(loc string) (int, error)
	Watch(expr string) (int, error)
	SymbolAt(pc uint64) string
	Close() error
}

// Term represents the terminal running qstep.
type Term struct {
	conn    Client
	stepper *step.Stepper
	conf    *config.Config
	prompt  string
	line    *liner.State
	cmds    *Commands
	stdout  io.Writer

	starlarkEnv *starbind.Env

	// breakpoints set by the user from this session, for the
	// user-facing listing. The engine's temporary breakpoints never
	// appear here.
	breakpoints map[int]string

	// InitFile is executed before the first prompt.
	InitFile string
}

// New returns a new Term driving conn.
func New(conn Client, conf *config.Config) *Term {
	if conf == nil {
		conf = &config.Config{}
	}

	var w io.Writer = os.Stdout
	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb"
	if !dumb && isatty.IsTerminal(os.Stdout.Fd()) {
		w = colorable.NewColorableStdout()
	}

	t := &Term{
		conn:        conn,
		stepper:     step.New(conn),
		conf:        conf,
		prompt:      "(qstep) ",
		line:        liner.NewLiner(),
		cmds:        DebugCommands(),
		stdout:      w,
		breakpoints: make(map[int]string),
	}
	t.starlarkEnv = starbind.New(t, w)
	return t
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

// Run begins running qstep in the terminal.
func (t *Term) Run() (int, error) {
	defer t.Close()

	completions := trie.New()
	for _, cmd := range t.cmds.cmds {
		for _, alias := range cmd.aliases {
			completions.Add(alias, nil)
		}
	}
	t.line.SetCompleter(func(line string) []string {
		return completions.PrefixSearch(strings.ToLower(line))
	})

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
	}
	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.", err)
		}
	}
	if f != nil {
		t.line.ReadHistory(f)
		f.Close()
	}
	fmt.Println("Type 'help' for list of commands.")

	if t.InitFile != "" {
		if err := t.runFile(t.InitFile); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Println("exit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("prompt for input failed: %v", err)
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

func (t *Term) runFile(path string) error {
	if strings.HasSuffix(path, ".star") {
		return t.starlarkEnv.Exec(path)
	}
	return t.cmds.executeFile(t, path)
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}
	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}
	return l, nil
}

func (t *Term) handleExit() (int, error) {
	if fullHistoryFile, err := config.GetConfigFilePath(historyFile); err == nil {
		if f, err := os.Create(fullHistoryFile); err == nil {
			_, err = t.line.WriteHistory(f)
			if err != nil {
				fmt.Println("readline history not saved:", err)
			}
			f.Close()
		}
	}
	if err := t.conn.Close(); err != nil {
		fmt.Println("error detaching from the host debugger:", err)
	}
	return 0, nil
}

// printStop reports where and why the target halted.
func (t *Term) printStop(stop *step.StopState) {
	if stop == nil {
		return
	}
	if stop.Exited {
		fmt.Fprintf(t.stdout, "Process has exited with status %d\n", stop.ExitStatus)
		return
	}
	loc := fmt.Sprintf("%#x", stop.PC)
	if sym := t.conn.SymbolAt(stop.PC); sym != "" {
		loc += " (" + sym + ")"
	}
	switch {
	case stop.Signal != "":
		fmt.Fprintf(t.stdout, "Stopped at %s: %s\n", loc, stop.Signal)
	case stop.Reason != "" && stop.Reason != "breakpoint-hit":
		fmt.Fprintf(t.stdout, "Stopped at %s: %s\n", loc, stop.Reason)
	default:
		fmt.Fprintf(t.stdout, "Stopped at %s\n", loc)
	}
}

// StepInto implements starbind.Context and backs the ssi command.
func (t *Term) StepInto(count int) (*step.StopState, error) {
	return t.stepper.StepInto(count)
}

// StepOver implements starbind.Context and backs the nni command.
func (t *Term) StepOver(count int) (*step.StopState, error) {
	return t.stepper.StepOver(count)
}

// Continue resumes the target until the next stop.
func (t *Term) Continue() (*step.StopState, error) {
	return t.conn.ContinueWait()
}

// Break sets a user breakpoint and records it for the listing.
func (t *Term) Break(loc string) (int, error) {
	id, err := t.conn.Break(loc)
	if err == nil {
		t.breakpoints[id] = loc
	}
	return id, err
}

// BreakHardware sets a user hardware breakpoint.
func (t *Term) BreakHardware(loc string) (int, error) {
	id, err := t.conn.BreakHardware(loc)
	if err == nil {
		t.breakpoints[id] = loc + " (hardware)"
	}
	return id, err
}

// Watch sets a user watchpoint.
func (t *Term) Watch(expr string) (int, error) {
	id, err := t.conn.Watch(expr)
	if err == nil {
		t.breakpoints[id] = expr + " (watch)"
	}
	return id, err
}

// ReadUint implements starbind.Context.
func (t *Term) ReadUint(expr string, size int) (uint64, error) {
	return t.conn.ReadUint(expr, size)
}

// SymbolAt implements starbind.Context.
func (t *Term) SymbolAt(pc uint64) string {
	return t.conn.SymbolAt(pc)
}
