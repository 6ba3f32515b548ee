package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lin-Jiong-HDU/actionguard/internal/terminal"
)

var (
	chatNoRender bool
	chatYes      bool
)

func getChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive session with challenge confirmation",
		Long: `Start an interactive session. Gated actions answer with a challenge;
the next line you type is the reply.`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}

	cmd.Flags().BoolVar(&chatNoRender, "no-render", false, "disable markdown rendering")
	cmd.Flags().BoolVarP(&chatYes, "yes", "y", false, "skip warning-level confirmation")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	return withApp(cmd, confirmChallenge, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		repl := terminal.NewREPL(a.guard, principal(), out)
		repl.SkipWarnings = chatYes
		if !chatNoRender {
			renderer, err := terminal.NewRenderer(80)
			if err != nil {
				a.logger.Warn("markdown rendering disabled", "error", err)
			}
			repl.SetRenderer(renderer)
		}

		fmt.Fprintf(out, "acting as %s; /help lists commands, /exit leaves\n\n", principal())

		lr := terminal.NewLineReader()
		defer lr.Close()
		return repl.Run(ctx, lr)
	})
}
