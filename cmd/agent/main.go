// In file: cmd/agent/main.go

// Command agent runs one tool-augmented prompt against a model from the
// command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dileep-u-k/llm-agent/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, newRootCmd()); err != nil {
		stop()
		os.Exit(1)
	}
}

// reportedError marks a failure the command has already printed.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// execute runs cmd and prints any error it has not reported itself. Errors
// stay silenced inside cobra so each failure is printed once.
func execute(ctx context.Context, cmd *cobra.Command) error {
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var reported reportedError
	if !errors.As(err, &reported) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run a single prompt through a tool-using model",
		Long: `Run a single prompt through a model that may call local tools
(calculator, file_read, weather) before giving its final answer.

Examples:
  agent run -p "What is 25 * 4 + 10?" -t calculator
  agent run -p "List the files here" -t file_read --model gpt-4o-mini
  agent demo calculator`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./config.yaml when present)")

	cmd.AddCommand(runCmd(&configPath))
	cmd.AddCommand(demoCmd(&configPath))
	cmd.AddCommand(versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}
