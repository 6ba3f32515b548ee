package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/guard"
	"github.com/Lin-Jiong-HDU/actionguard/internal/terminal"
)

var (
	assumeYes   bool
	noRender    bool
	execTimeout time.Duration
	execFile    string
)

// printOutcome renders o and turns a failure into the command error
func printOutcome(out io.Writer, o guard.Outcome) error {
	var renderer *terminal.Renderer
	if !noRender && isTerminal(out) {
		renderer, _ = terminal.NewRenderer(80)
	}
	fmt.Fprint(out, renderer.Render(terminal.FormatOutcome(o)))
	return o.Err()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func actionCommand(use, short string, args cobra.PositionalArgs, run func(ctx context.Context, a *app, args []string) guard.Outcome) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, confirmBlocking, func(ctx context.Context, a *app) error {
				return printOutcome(cmd.OutOrStdout(), run(ctx, a, args))
			})
		},
	}
	cmd.Flags().BoolVar(&noRender, "no-render", false, "print plain markdown")
	return cmd
}

func requestOptions() guard.RequestOptions {
	return guard.RequestOptions{SkipConfirmation: assumeYes, Timeout: execTimeout}
}

func getReadCommand() *cobra.Command {
	return actionCommand("read <path>", "Read a file, masking secrets", cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) guard.Outcome {
			return a.guard.RequestRead(ctx, principal(), args[0])
		})
}

func getListCommand() *cobra.Command {
	return actionCommand("ls [path]", "List a directory", cobra.MaximumNArgs(1),
		func(ctx context.Context, a *app, args []string) guard.Outcome {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return a.guard.RequestList(ctx, principal(), path)
		})
}

func getWriteCommand() *cobra.Command {
	cmd := actionCommand("write <path> [content]", "Write a file after confirmation", cobra.RangeArgs(1, 2),
		func(ctx context.Context, a *app, args []string) guard.Outcome {
			return a.guard.RequestWrite(ctx, principal(), args[0], args[1], requestOptions())
		})
	run := cmd.RunE
	cmd.RunE = func(c *cobra.Command, args []string) error {
		if len(args) == 1 {
			// piped content leaves no terminal to confirm on; use --yes
			data, err := io.ReadAll(c.InOrStdin())
			if err != nil {
				return fmt.Errorf("read content: %w", err)
			}
			args = append(args, string(data))
		}
		return run(c, args)
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip warning-level confirmation")
	return cmd
}

func getDeleteCommand() *cobra.Command {
	cmd := actionCommand("rm <path>", "Delete a file after code confirmation", cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) guard.Outcome {
			return a.guard.RequestDelete(ctx, principal(), args[0], requestOptions())
		})
	cmd.Aliases = []string{"delete"}
	return cmd
}

func getExecCommand() *cobra.Command {
	cmd := actionCommand("exec [code]", "Run code in the sandbox", cobra.MaximumNArgs(1),
		func(ctx context.Context, a *app, args []string) guard.Outcome {
			return a.guard.RequestExecute(ctx, principal(), args[0], requestOptions())
		})
	run := cmd.RunE
	cmd.RunE = func(c *cobra.Command, args []string) error {
		switch {
		case execFile != "":
			data, err := os.ReadFile(execFile)
			if err != nil {
				return fmt.Errorf("read code: %w", err)
			}
			args = []string{string(data)}
		case len(args) == 0:
			return fmt.Errorf("code or --file is required")
		}
		if strings.TrimSpace(args[0]) == "" {
			return fmt.Errorf("code is empty")
		}
		return run(c, args)
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip warning-level confirmation")
	cmd.Flags().DurationVar(&execTimeout, "timeout", 0, "execution timeout (default from config)")
	cmd.Flags().StringVarP(&execFile, "file", "f", "", "read code from a file")
	return cmd
}
