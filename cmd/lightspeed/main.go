// Command lightspeed runs the synthetic asset presence pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/pflag"
)

// Exit codes
const (
	exitOK    = 0
	exitStage = 1
	exitUsage = 2
)

// usageError marks bad invocations; they exit with exitUsage
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// globalFlags are accepted before the command name
type globalFlags struct {
	settings string
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var g globalFlags
	flagSet := pflag.NewFlagSet("lightspeed", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&g.settings, "settings", "", "pipeline settings YAML (default: search $LIGHTSPEED_CONFIG, ./lightspeed.yaml, XDG paths)")
	flagSet.StringVar(&g.logLevel, "log-level", "", "logging level (overrides settings)")
	flagSet.Usage = func() { usage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if flagSet.NArg() < 1 {
		fmt.Fprintf(stderr, "error: no command specified\n\n")
		usage(stderr, flagSet)
		return exitUsage
	}

	name := flagSet.Arg(0)
	cmd, ok := knownCommands[name]
	if !ok {
		fmt.Fprintf(stderr, "error: unknown command '%s'\n\n", name)
		usage(stderr, flagSet)
		return exitUsage
	}

	cmdFlags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	cmdFlags.SetOutput(stderr)
	cmdFlags.Usage = func() {
		fmt.Fprintf(stderr, "syntax: lightspeed %s [options]\n\n%s\n\nOptions:\n", name, cmd.Description())
		cmdFlags.PrintDefaults()
	}

	env, err := newEnv(g, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	defer env.Close()

	cmd.SetupFlagSet(cmdFlags, env)
	if err := cmdFlags.Parse(flagSet.Args()[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if cmdFlags.NArg() > 0 {
		fmt.Fprintf(stderr, "error: unexpected arguments %v\n\n", cmdFlags.Args())
		cmdFlags.Usage()
		return exitUsage
	}

	if err := cmd.Execute(ctx, env); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "error: %v\n\n", err)
			cmdFlags.Usage()
			return exitUsage
		}
		env.log.WithError(err).Errorf("%s failed", name)
		return exitStage
	}
	return exitOK
}

func usage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "syntax: lightspeed [global options] <command> [options]\n")
	fmt.Fprintf(w, "\nPossible commands:\n")

	var names []string
	for name := range knownCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "    %-16s %s\n", name, knownCommands[name].Description())
	}

	fmt.Fprintf(w, "\nGlobal options:\n")
	flagSet.PrintDefaults()
}
