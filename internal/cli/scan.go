package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tdh8316/usernamescan/internal/output"
	"github.com/tdh8316/usernamescan/internal/scan"
)

func newScanCommand(env Env, opts *globalOptions, setup func(*cobra.Command) (*Runtime, error)) *cobra.Command {
	var (
		platformsCSV string
		formatName   string
	)

	cmd := &cobra.Command{
		Use:   "scan [HANDLE...]",
		Short: "Check one or more handles on every platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(formatName)
			if err != nil {
				return &UsageError{Err: err}
			}

			handles := cleanHandles(args)
			if len(handles) == 0 {
				handles = promptUsernames(env.Stdout, env.Stdin)
				if len(handles) == 0 {
					return usagef("no usernames provided")
				}
			}

			return withRuntime(cmd, setup, func(rt *Runtime) error {
				printer := output.NewPrinter(env.Stdout, opts.noColor, opts.verbose)
				scanner := filterPlatforms(rt.Scanner, splitList(platformsCSV), printer)

				// Text is streamed per handle; structured formats need every report first.
				var reports []*scan.Report
				for _, h := range handles {
					r, err := scanner.Scan(cmd.Context(), h)
					if err != nil {
						return err
					}
					if format == output.FormatText {
						printer.Report(r)
						continue
					}
					reports = append(reports, r)
				}
				if format == output.FormatText {
					return nil
				}
				return output.Render(env.Stdout, format, opts.noColor, opts.verbose, reports)
			})
		},
	}

	cmd.Flags().StringVar(&platformsCSV, "platforms", "", "comma-separated platform ids (default: all)")
	cmd.Flags().StringVarP(&formatName, "format", "f", "text", "output format: text, json or markdown")
	return cmd
}

// filterPlatforms restricts s to ids. Unknown ids are reported and ignored;
// if nothing matches, every platform is used.
func filterPlatforms(s *scan.Scanner, ids []string, printer *output.Printer) *scan.Scanner {
	if len(ids) == 0 {
		return s
	}

	sub, unknown := s.Select(ids)
	if len(unknown) > 0 {
		printer.Info("Unknown platforms ignored: %s", strings.Join(unknown, ", "))
	}
	if len(sub.Platforms()) == 0 {
		printer.Info("No matching platforms found; using all platforms.")
		return s
	}
	return sub
}

func cleanHandles(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func promptUsernames(stdout io.Writer, stdin io.Reader) []string {
	if stdin == nil {
		return nil
	}
	fmt.Fprint(stdout, "Enter usernames to check separated by a space: ")
	r := bufio.NewReader(stdin)
	line, _ := r.ReadString('\n')
	return strings.Fields(strings.TrimSpace(line))
}
