package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Lin-Jiong-HDU/actionguard/internal/storage"
)

var (
	configDir     string
	principalFlag string
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actionguard",
		Short: "Safety guard for assistant side effects",
		Long: `actionguard - gates file access, file changes and code execution requested
by an assistant behind path policy, secret masking, rate limits,
confirmation and a sandbox, and records every decision in an audit log.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configDir != "" {
				_, err := storage.InitConfigAt(configDir)
				return err
			}
			_, err := storage.InitConfig()
			return err
		},
	}

	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default ~/"+storage.AppDirName+")")
	cmd.PersistentFlags().StringVar(&principalFlag, "principal", "", "principal to act as (default cli:$USER)")

	cmd.AddCommand(
		getReadCommand(),
		getListCommand(),
		getWriteCommand(),
		getDeleteCommand(),
		getExecCommand(),
		getChatCommand(),
		getServeCommand(),
		getAuditCommand(),
		getLimitsCommand(),
	)
	return cmd
}

// principal returns the principal the CLI acts as
func principal() string {
	if principalFlag != "" {
		return principalFlag
	}
	return localPrincipal()
}

// withApp builds the app for one command and flushes its state however the command ends
func withApp(cmd *cobra.Command, mode confirmMode, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	a, err := buildApp(ctx, storage.GetConfig(), mode, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			a.close()
			panic(r)
		}
		if cerr := a.close(); cerr != nil {
			a.logger.Warn("shutdown incomplete", "error", cerr)
		}
	}()
	return fn(ctx, a)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
