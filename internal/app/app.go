package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tdh8316/usernamescan/internal/cli"
)

// Run executes the command line and returns the process exit code:
// 0 on success, 1 on runtime failure, 2 on bad usage.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return RunWithInput(ctx, args, os.Stdin, stdout, stderr)
}

func RunWithInput(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := cli.NewRootCommand(cli.Env{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		Setup: func(_ context.Context, configFile string, overrides map[string]any) (*cli.Runtime, error) {
			return Setup(configFile, overrides, stdout, stderr)
		},
	})
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		if cli.IsUsage(err) {
			return 2
		}
		return 1
	}
	return 0
}
