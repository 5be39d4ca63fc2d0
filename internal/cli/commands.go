package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tdh8316/usernamescan/internal/output"
	"github.com/tdh8316/usernamescan/internal/server"
)

func newCheckCommand(env Env, opts *globalOptions, setup func(*cobra.Command) (*Runtime, error)) *cobra.Command {
	var (
		platformID string
		raw        bool
	)

	cmd := &cobra.Command{
		Use:   "check HANDLE --platform ID",
		Short: "Check a handle on a single platform",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usagef("check takes exactly one handle, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(platformID) == "" {
				return usagef("--platform is required")
			}
			return withRuntime(cmd, setup, func(rt *Runtime) error {
				printer := output.NewPrinter(env.Stdout, opts.noColor, opts.verbose)
				if raw {
					o, err := rt.Scanner.CheckRaw(cmd.Context(), args[0], platformID)
					if err != nil {
						return err
					}
					printer.Outcome(platformID, o)
					return nil
				}

				res, err := rt.Scanner.Check(cmd.Context(), args[0], platformID)
				if err != nil {
					return err
				}
				printer.Result(res)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&platformID, "platform", "p", "", "platform id")
	cmd.Flags().BoolVar(&raw, "raw", false, "single attempt without retry or default; may print unknown")
	return cmd
}

func newValidateCommand(env Env, opts *globalOptions, setup func(*cobra.Command) (*Runtime, error)) *cobra.Command {
	var platformsCSV string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Probe every platform's sample handles against the live sites",
		Long: `validate probes each platform's claimed handle (expected taken) and
unclaimed handle (expected available) once, without retries or defaults.
It talks to the real platforms, so results change as the sites do.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, setup, func(rt *Runtime) error {
				printer := output.NewPrinter(env.Stdout, opts.noColor, opts.verbose)
				scanner := filterPlatforms(rt.Scanner, splitList(platformsCSV), printer)

				fmt.Fprintln(env.Stdout, "[i] Checking platform validity...")
				failed, err := scanner.Validate(cmd.Context(), printer.Failure)
				if err != nil {
					return err
				}
				fmt.Fprintln(env.Stdout, "[Done]")

				if failed > 0 {
					return fmt.Errorf("%d of %d platforms failed validation", failed, len(scanner.Platforms()))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&platformsCSV, "platforms", "", "comma-separated platform ids (default: all)")
	return cmd
}

func newPlatformsCommand(env Env, opts *globalOptions, setup func(*cobra.Command) (*Runtime, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List the configured platforms",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, setup, func(rt *Runtime) error {
				for _, d := range rt.Scanner.Platforms() {
					strategy := string(d.Probe.Strategy)
					if d.Fallback != nil {
						strategy += "+" + string(d.Fallback.Strategy)
					}
					line := fmt.Sprintf("%-12s %-14s %-16s default=%s", d.ID, d.Name, strategy, d.Default)
					if d.UsesRelay() {
						line += " relay"
					}
					if opts.verbose {
						line += " " + d.ProfileURL
					}
					fmt.Fprintln(env.Stdout, line)
				}
				return nil
			})
		},
	}
}

func newServeCommand(env Env, setup func(*cobra.Command) (*Runtime, error)) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, setup, func(rt *Runtime) error {
				cfg := rt.Config.Server
				if cmd.Flags().Changed("addr") {
					cfg.Addr = addr
				}
				srv := server.New(rt.Scanner, server.Config{
					Addr:        cfg.Addr,
					Mode:        cfg.Mode,
					CacheTTL:    cfg.CacheTTL,
					RateLimit:   cfg.RateLimit,
					Burst:       cfg.Burst,
					CORSOrigins: cfg.CORSOrigins,
				}, rt.Log)
				fmt.Fprintf(env.Stdout, "[i] Serving %d platforms on %s\n", len(rt.Scanner.Platforms()), cfg.Addr)
				return srv.Run(cmd.Context())
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}

