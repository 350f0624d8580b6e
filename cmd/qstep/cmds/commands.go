// Package cmds implements the qstep command line interface.
package cmds

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/qstep/qstep/pkg/config"
	"github.com/qstep/qstep/pkg/gdbmi"
	"github.com/qstep/qstep/pkg/logflags"
	"github.com/qstep/qstep/pkg/terminal"
	"github.com/qstep/qstep/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should
	// produce debug output.
	logOutput string
	// initFile is the path to the initialization file.
	initFile string

	// gdbPath overrides the gdb binary used to drive the target.
	gdbPath string
	// entrySymbol is run to with a hardware breakpoint after attach.
	entrySymbol string
	// mainSymbol is run to with a software breakpoint after the
	// entry symbol.
	mainSymbol string
	// watchExpr arms a write watchpoint right after attach.
	watchExpr string
	// extraBreakpoints are armed after attach, before the first
	// resume.
	extraBreakpoints []string
	// sourceDirs are added to the host's source search path.
	sourceDirs []string

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const qstepCommandLongDesc = `qstep steps targets that cannot be single-stepped.

It attaches a host debugger to a remote execution stub and reconstructs
the stepi/nexti primitives from instruction decoding and temporary
breakpoints, for stubs where the native single-step is unavailable or
unusable (early-boot kernels, minimal firmware stubs).`

// New returns an initialized command tree.
func New() *cobra.Command {
	conf = config.LoadConfig()

	rootCommand = &cobra.Command{
		Use:   "qstep",
		Short: "qstep steps targets that cannot be single-stepped.",
		Long:  qstepCommandLongDesc,
	}
	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debugging output.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", "Comma separated list of components that should produce debug output. (stepper, gdbwire)")

	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("qstep %s\n%s\n", version.QstepVersion, version.BuildInfo())
		},
	}
	rootCommand.AddCommand(versionCommand)

	connectCommand := &cobra.Command{
		Use:   "connect <stub-addr> [binary]",
		Short: "Attach to a remote execution stub and begin stepping.",
		Long: `Attach to a remote execution stub and begin stepping.

The stub address and binary default to the configuration file. After
attach the target is run to the entry symbol with a hardware breakpoint
and then to the main symbol, when those are configured.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: connect,
	}
	addTargetFlags(connectCommand.Flags())
	rootCommand.AddCommand(connectCommand)

	return rootCommand
}

// addTargetFlags registers the target-selection flags shared by
// commands that open a session.
func addTargetFlags(fs *pflag.FlagSet) {
	fs.StringVar(&gdbPath, "gdb", "", "Path of the gdb binary used to drive the target.")
	fs.StringVar(&initFile, "init", "", "Init file, executed by the terminal client.")
	fs.StringVar(&entrySymbol, "entry", "", "Symbol reached with a hardware breakpoint after attach.")
	fs.StringVar(&mainSymbol, "main", "", "Symbol reached with a software breakpoint after the entry symbol.")
	fs.StringVar(&watchExpr, "watch", "", "Expression put under a write watchpoint after attach.")
	fs.StringArrayVar(&extraBreakpoints, "break", nil, "Additional breakpoint locations armed after attach.")
	fs.StringArrayVar(&sourceDirs, "source-dir", nil, "Directories added to the source search path.")
}

func connect(cmd *cobra.Command, args []string) error {
	if err := logflags.Setup(log, logOutput); err != nil {
		return err
	}

	opts := bootstrapOptions(args)
	if opts.StubAddr == "" {
		return errors.New("no stub address: pass one or set stub-addr in the configuration file")
	}

	conn, err := gdbmi.Launch(firstOf(gdbPath, conf.GDBPath))
	if err != nil {
		return fmt.Errorf("could not launch the host debugger: %v", err)
	}

	stop, err := conn.Bootstrap(opts)
	if err != nil {
		conn.Close()
		return fmt.Errorf("session bootstrap failed: %v", err)
	}
	if stop != nil {
		fmt.Printf("Target stopped at %#x\n", stop.PC)
	}

	t := terminal.New(conn, conf)
	t.InitFile = initFile
	status, err := t.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(status)
	return nil
}

// bootstrapOptions merges the command line over the configuration
// file. Environment overrides are already folded into conf by
// config.LoadConfig.
func bootstrapOptions(args []string) gdbmi.BootstrapOptions {
	opts := gdbmi.BootstrapOptions{
		StubAddr:         conf.StubAddr,
		EntrySymbol:      firstOf(entrySymbol, conf.EntrySymbol),
		MainSymbol:       firstOf(mainSymbol, conf.MainSymbol),
		WatchExpr:        watchExpr,
		ExtraBreakpoints: append(append([]string{}, conf.EntryBreakpoints...), extraBreakpoints...),
		SourceDirs:       append(append([]string{}, conf.SourceDirectories...), sourceDirs...),
	}
	if len(args) > 0 {
		opts.StubAddr = args[0]
	}
	if len(args) > 1 {
		opts.Binary = args[1]
	}
	return opts
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
