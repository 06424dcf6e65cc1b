package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"allowanceScope/internal/model"
	"allowanceScope/internal/storage"
)

func runList(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.reconciler.Refresh(ctx, a.owner); err != nil {
		return err
	}

	allowances := a.reconciler.Allowances()
	if len(allowances) == 0 {
		fmt.Println("no active allowances")
		return nil
	}

	symbol := a.meta.Symbol
	if symbol == "" {
		symbol = "tokens"
	}
	for _, entry := range allowances {
		fmt.Printf("%-42s  %-32s  %s %s\n",
			entry.Spender,
			entry.DisplayName,
			a.reconciler.Display(entry.CurrentAmount),
			symbol,
		)
	}

	if a.cfg.Out != "" {
		sink := storage.NewJsonlStorage(a.cfg.Out)
		if err := sink.PutSnapshot(snapshotRecords(a, allowances)); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	return nil
}

func snapshotRecords(a *app, allowances []model.Allowance) []model.AllowanceRecord {
	exportedAt := time.Now().UTC().Format(time.RFC3339Nano)
	records := make([]model.AllowanceRecord, 0, len(allowances))
	for _, entry := range allowances {
		records = append(records, model.AllowanceRecord{
			Token:         a.meta.Address,
			Owner:         a.owner.Hex(),
			Spender:       entry.Spender,
			DisplayName:   entry.DisplayName,
			CurrentAmount: entry.CurrentAmount.String(),
			Display:       a.reconciler.Display(entry.CurrentAmount),
			ExportedAt:    exportedAt,
		})
	}
	return records
}
