package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func getLimitsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Show the remaining execution quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, confirmChallenge, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				p := principal()
				remaining := a.guard.Remaining(p)
				fmt.Fprintf(out, "%s: %d of %d executions remaining per %s\n",
					p, remaining, a.execLimiter.Max(), a.execLimiter.Window())
				if remaining == 0 {
					fmt.Fprintf(out, "next execution allowed at %s\n", a.guard.ResetAt(p).Local().Format("15:04:05"))
				}
				if a.fileLimiter != nil {
					fmt.Fprintf(out, "%d of %d file operations remaining\n",
						a.fileLimiter.Remaining(p), a.fileLimiter.Max())
				}
				return nil
			})
		},
	}
}
