// Package starbind exposes the qstep session to starlark scripts, so
// session bootstrap and repetitive stepping chores can be automated
// the way they would be from an init file, but with control flow.
package starbind

import (
	"fmt"
	"io"
	"io/ioutil"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"

	"github.com/qstep/qstep/pkg/step"
)

func init() {
	resolve.AllowNestedDef = true
	resolve.AllowLambda = true
	resolve.AllowFloat = true
	resolve.AllowSet = true
	resolve.AllowBitwise = true
	resolve.AllowRecursion = true
	resolve.AllowGlobalReassign = true
}

// Context is the session surface scripts drive. It is implemented by
// the terminal.
type Context interface {
	StepInto(count int) (*step.StopState, error)
	StepOver(count int) (*step.StopState, error)
	Continue() (*step.StopState, error)
	Break(loc string) (int, error)
	BreakHardware(loc string) (int, error)
	Watch(expr string) (int, error)
	ReadUint(expr string, size int) (uint64, error)
	SymbolAt(pc uint64) string
}

// Env is the environment used to evaluate starlark scripts.
type Env struct {
	env    starlark.StringDict
	thread *starlark.Thread

	ctx Context
	out io.Writer
}

// New creates a new starlark binding environment.
func New(ctx Context, out io.Writer) *Env {
	env := &Env{ctx: ctx, out: out}
	env.thread = &starlark.Thread{
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(env.out, msg)
		},
	}
	env.env = starlark.StringDict{
		"ssi":     env.stepBuiltin("ssi", ctx.StepInto),
		"nni":     env.stepBuiltin("nni", ctx.StepOver),
		"cont":    starlark.NewBuiltin("cont", env.contBuiltin),
		"brk":     env.locBuiltin("brk", ctx.Break),
		"hbrk":    env.locBuiltin("hbrk", ctx.BreakHardware),
		"watch":   env.locBuiltin("watch", ctx.Watch),
		"read":    starlark.NewBuiltin("read", env.readBuiltin),
		"symbol":  starlark.NewBuiltin("symbol", env.symbolBuiltin),
		"read_file": starlark.NewBuiltin("read_file", func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var path string
			if err := starlark.UnpackPositionalArgs("read_file", args, kwargs, 1, &path); err != nil {
				return nil, err
			}
			buf, err := ioutil.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return starlark.String(buf), nil
		}),
	}
	return env
}

// Exec executes the starlark script at path.
func (env *Env) Exec(path string) error {
	_, err := starlark.ExecFile(env.thread, path, nil, env.env)
	return err
}

func (env *Env) stepBuiltin(name string, fn func(int) (*step.StopState, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		count := 1
		if err := starlark.UnpackPositionalArgs(name, args, kwargs, 0, &count); err != nil {
			return nil, err
		}
		if count < 0 {
			return nil, fmt.Errorf("%s: count must be non-negative", name)
		}
		stop, err := fn(count)
		if err != nil {
			return nil, err
		}
		return stopValue(stop), nil
	})
}

func (env *Env) contBuiltin(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs("cont", args, kwargs, 0); err != nil {
		return nil, err
	}
	stop, err := env.ctx.Continue()
	if err != nil {
		return nil, err
	}
	return stopValue(stop), nil
}

func (env *Env) locBuiltin(name string, fn func(string) (int, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var loc string
		if err := starlark.UnpackPositionalArgs(name, args, kwargs, 1, &loc); err != nil {
			return nil, err
		}
		id, err := fn(loc)
		if err != nil {
			return nil, err
		}
		return starlark.MakeInt(id), nil
	})
}

func (env *Env) readBuiltin(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var expr string
	size := 8
	if err := starlark.UnpackPositionalArgs("read", args, kwargs, 1, &expr, &size); err != nil {
		return nil, err
	}
	v, err := env.ctx.ReadUint(expr, size)
	if err != nil {
		return nil, err
	}
	return starlark.MakeUint64(v), nil
}

func (env *Env) symbolBuiltin(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pc uint64
	if err := starlark.UnpackPositionalArgs("symbol", args, kwargs, 1, &pc); err != nil {
		return nil, err
	}
	return starlark.String(env.ctx.SymbolAt(pc)), nil
}

// stopValue converts a stop description to a starlark dict.
func stopValue(stop *step.StopState) starlark.Value {
	if stop == nil {
		return starlark.None
	}
	d := starlark.NewDict(4)
	d.SetKey(starlark.String("pc"), starlark.MakeUint64(stop.PC))
	d.SetKey(starlark.String("reason"), starlark.String(stop.Reason))
	if stop.Signal != "" {
		d.SetKey(starlark.String("signal"), starlark.String(stop.Signal))
	}
	if stop.Exited {
		d.SetKey(starlark.String("exit_status"), starlark.MakeInt(stop.ExitStatus))
	}
	return d
}
