package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/audit"
	"github.com/Lin-Jiong-HDU/actionguard/internal/core/tui"
	"github.com/Lin-Jiong-HDU/actionguard/internal/storage"
)

var (
	auditTail    int
	auditJSON    bool
	auditRefresh time.Duration
)

func getAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Browse the audit log",
		Long: `Open the audit log in a terminal viewer. With --json the newest
records are printed as JSON lines instead.`,
		Args: cobra.NoArgs,
		RunE: runAudit,
	}

	cmd.Flags().IntVarP(&auditTail, "tail", "n", 500, "number of newest records to show")
	cmd.Flags().BoolVar(&auditJSON, "json", false, "print JSON lines instead of opening the viewer")
	cmd.Flags().DurationVar(&auditRefresh, "refresh", 2*time.Second, "viewer reload interval, 0 disables")
	return cmd
}

func runAudit(cmd *cobra.Command, args []string) error {
	path := storage.GetConfig().AuditLogPath()
	load := func() ([]audit.Record, int, error) {
		return audit.Tail(path, auditTail)
	}

	records, skipped, err := load()
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	if auditJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		if skipped > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d malformed lines skipped\n", skipped)
		}
		return nil
	}

	return tui.Run(records, load, auditRefresh)
}
