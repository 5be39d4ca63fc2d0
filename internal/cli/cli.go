// Package cli defines the usernamescan command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tdh8316/usernamescan/internal/config"
	"github.com/tdh8316/usernamescan/internal/scan"
)

// UsageError marks a bad invocation. It maps to exit code 2.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

func usagef(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// IsUsage reports whether err should exit with code 2.
func IsUsage(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue) || errors.Is(err, scan.ErrEmptyHandle) || errors.Is(err, scan.ErrUnknownPlatform)
}

// Runtime is the wired application a command runs against.
type Runtime struct {
	Config  *config.Config
	Log     *logrus.Logger
	Scanner *scan.Scanner
	Close   func()
}

// SetupFunc builds a Runtime from the config file and flag overrides.
type SetupFunc func(ctx context.Context, configFile string, overrides map[string]any) (*Runtime, error)

type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Setup  SetupFunc
}

type globalOptions struct {
	configFile    string
	platformsFile string
	logLevel      string
	timeout       time.Duration
	withTor       bool
	verbose       bool
	noColor       bool
}

// NewRootCommand returns the command tree bound to env.
func NewRootCommand(env Env) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "usernamescan",
		Short: "Check whether a username is available across platforms",
		Long: `usernamescan probes a fixed table of platforms for a handle and reports,
per platform, whether it is available or taken.

Examples:
  usernamescan scan someone
  usernamescan scan someone other --platforms github,reddit --format json
  usernamescan check someone --platform twitch --raw
  usernamescan serve --addr :8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usagef("unknown command %q", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRun: func(*cobra.Command, []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}
	root.SetIn(env.Stdin)
	root.SetOut(env.Stdout)
	root.SetErr(env.Stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (YAML)")
	pf.StringVar(&opts.platformsFile, "platforms-file", "", "replacement platform table (YAML)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.DurationVar(&opts.timeout, "timeout", 0, "per-request timeout (default 15s)")
	pf.BoolVarP(&opts.withTor, "tor", "t", false, "route requests through the Tor SOCKS proxy")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "show attempts, timing and defaulted results")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	setup := func(cmd *cobra.Command) (*Runtime, error) {
		overrides := map[string]any{}
		flags := cmd.Flags()
		if flags.Changed("platforms-file") {
			overrides["scan.platforms_file"] = opts.platformsFile
		}
		if flags.Changed("log-level") {
			overrides["log.level"] = opts.logLevel
		}
		if flags.Changed("timeout") {
			if opts.timeout <= 0 {
				return nil, usagef("--timeout must be positive")
			}
			overrides["http.timeout"] = opts.timeout
		}
		if flags.Changed("tor") {
			overrides["http.with_tor"] = opts.withTor
		}
		return env.Setup(cmd.Context(), opts.configFile, overrides)
	}

	root.AddCommand(
		newScanCommand(env, opts, setup),
		newCheckCommand(env, opts, setup),
		newValidateCommand(env, opts, setup),
		newPlatformsCommand(env, opts, setup),
		newServeCommand(env, setup),
	)
	return root
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("%s takes no arguments", cmd.Name())
	}
	return nil
}

func splitList(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func withRuntime(cmd *cobra.Command, setup func(*cobra.Command) (*Runtime, error), fn func(*Runtime) error) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	if rt.Close != nil {
		defer rt.Close()
	}
	return fn(rt)
}
