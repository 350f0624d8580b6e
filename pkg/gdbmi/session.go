package gdbmi

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/qstep/qstep/pkg/step"
)

// LoadBinary points gdb at the executable providing symbols for the
// target.
func (c *Conn) LoadBinary(path string) error {
	_, err := c.exec(fmt.Sprintf("-file-exec-and-symbols %q", path), "load binary")
	return err
}

// TargetRemote attaches to a remote serial protocol stub.
func (c *Conn) TargetRemote(addr string) error {
	_, err := c.exec(fmt.Sprintf("-target-select remote %s", addr), "attach")
	return err
}

// AddSourceDir appends dir to the source search path.
func (c *Conn) AddSourceDir(dir string) error {
	_, err := c.exec(fmt.Sprintf("-environment-directory %q", dir), "source path")
	return err
}

// Break sets an ordinary breakpoint at a location spec and returns
// its host id.
func (c *Conn) Break(loc string) (int, error) {
	return c.breakInsert("", loc)
}

// BreakHardware sets a hardware breakpoint. Early-boot code may
// execute from memory a software breakpoint cannot be written to.
func (c *Conn) BreakHardware(loc string) (int, error) {
	return c.breakInsert("-h", loc)
}

func (c *Conn) breakInsert(flag, loc string) (int, error) {
	cmd := "-break-insert "
	if flag != "" {
		cmd += flag + " "
	}
	rec, err := c.exec(cmd+loc, "set breakpoint")
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(miString(rec, "number"))
	if err != nil {
		return 0, &ProtocolError{context: "set breakpoint", cmd: rec, msg: "no breakpoint number in reply"}
	}
	return id, nil
}

// Watch sets a write watchpoint on expr.
func (c *Conn) Watch(expr string) (int, error) {
	rec, err := c.exec(fmt.Sprintf("-break-watch %s", expr), "set watchpoint")
	if err != nil {
		return 0, err
	}
	id, _ := strconv.Atoi(miString(rec, "number"))
	return id, nil
}

// symCacheSize bounds the symbol cache; a stepping session revisits a
// small working set of addresses.
const symCacheSize = 512

// SymbolAt resolves pc to a symbolic description for stop reporting.
// Symbols do not move while the session is attached, so resolutions
// are cached.
func (c *Conn) SymbolAt(pc uint64) string {
	if c.symCache == nil {
		c.symCache, _ = lru.New(symCacheSize)
	}
	if c.symCache != nil {
		if v, ok := c.symCache.Get(pc); ok {
			return v.(string)
		}
	}
	if _, err := c.exec(fmt.Sprintf(`-interpreter-exec console "info symbol %#x"`, pc), "symbol"); err != nil {
		return ""
	}
	sym := ""
	if lines := c.consoleLines(); len(lines) > 0 {
		l := strings.TrimSpace(lines[0])
		if !strings.HasPrefix(l, "No symbol matches") {
			if i := strings.Index(l, " in section "); i >= 0 {
				l = l[:i]
			}
			sym = l
		}
	}
	if c.symCache != nil {
		c.symCache.Add(pc, sym)
	}
	return sym
}

// BootstrapOptions describe how to bring a freshly launched gdb to
// the point where stepping is useful: symbols loaded, stub attached,
// target run to its entry and main symbols.
type BootstrapOptions struct {
	Binary      string
	StubAddr    string
	EntrySymbol string
	MainSymbol  string

	// ExtraBreakpoints are armed after attach, before the first
	// resume.
	ExtraBreakpoints []string

	// WatchExpr, if set, arms a write watchpoint after attach.
	WatchExpr string

	SourceDirs []string
}

// Bootstrap runs the session to its starting point. The entry symbol
// is reached with a hardware breakpoint because at attach time the
// target may still be executing from memory that software breakpoints
// cannot patch; the main symbol is reached with an ordinary one. The
// stop state of the last resume is returned, nil if nothing was
// resumed.
func (c *Conn) Bootstrap(opts BootstrapOptions) (*step.StopState, error) {
	if opts.Binary != "" {
		if err := c.LoadBinary(opts.Binary); err != nil {
			return nil, err
		}
	}
	if opts.StubAddr != "" {
		if err := c.TargetRemote(opts.StubAddr); err != nil {
			return nil, err
		}
	}
	for _, dir := range opts.SourceDirs {
		if err := c.AddSourceDir(dir); err != nil {
			return nil, err
		}
	}
	for _, loc := range opts.ExtraBreakpoints {
		if _, err := c.Break(loc); err != nil {
			return nil, err
		}
	}
	if opts.WatchExpr != "" {
		if _, err := c.Watch(opts.WatchExpr); err != nil {
			return nil, err
		}
	}

	var stop *step.StopState
	if opts.EntrySymbol != "" {
		if _, err := c.BreakHardware(opts.EntrySymbol); err != nil {
			return nil, err
		}
		var err error
		if stop, err = c.ContinueWait(); err != nil {
			return nil, err
		}
	}
	if opts.MainSymbol != "" {
		if _, err := c.Break("*" + opts.MainSymbol); err != nil {
			return nil, err
		}
		var err error
		if stop, err = c.ContinueWait(); err != nil {
			return nil, err
		}
	}
	return stop, nil
}
