package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lin-Jiong-HDU/actionguard/internal/transport/httpapi"
)

var serveAddr string

func getServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the guard over HTTP",
		Long: `Serve guard requests over HTTP for bots and agents. Every caller is
identified by the X-Channel and X-Principal headers and confirms
through challenges on /v1/reply. Metrics are exposed on /metrics.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd, confirmServer, func(ctx context.Context, a *app) error {
		addr := serveAddr
		if addr == "" {
			addr = a.cfg.Server.Addr
		}

		srv := httpapi.New(a.guard, a.logger, httpapi.Options{
			MaxBodyBytes:   a.cfg.Guard.MaxReadBytes * 2,
			ChallengeTTL:   time.Duration(a.cfg.Confirm.ChallengeTTLSeconds) * time.Second,
			MaxExecTimeout: a.cfg.Sandbox.Timeout(),
		})
		err := srv.ListenAndServe(ctx, addr)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
}
