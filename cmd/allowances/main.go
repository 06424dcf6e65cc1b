package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "allowances",
		Short:        "ERC20 allowance reconciliation tool",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Discover current allowances for an owner",
		RunE:  runList,
	}
	addCommonFlags(listCmd)
	listCmd.Flags().String("out", "", "optional JSONL snapshot path")

	updateCmd := &cobra.Command{
		Use:   "update <spender> <amount>",
		Short: "Set a spender's allowance to a new amount",
		Args:  cobra.ExactArgs(2),
		RunE:  runUpdate,
	}
	addCommonFlags(updateCmd)
	addWriteFlags(updateCmd)

	revokeCmd := &cobra.Command{
		Use:   "revoke <spender>",
		Short: "Revoke a spender's allowance",
		Args:  cobra.ExactArgs(1),
		RunE:  runRevoke,
	}
	addCommonFlags(revokeCmd)
	addWriteFlags(revokeCmd)

	root.AddCommand(listCmd, updateCmd, revokeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "node RPC URL")
	cmd.Flags().String("token", "", "ERC20 token contract address")
	cmd.Flags().String("owner", "", "owner address")
	cmd.Flags().Uint64("from", 0, "scan start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "scan end block (inclusive), 0 means latest")
	cmd.Flags().Uint64("batch-size", 5000, "blocks per log query")
	cmd.Flags().Int("max-retries", 5, "maximum log query retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the app-name directory")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func addWriteFlags(cmd *cobra.Command) {
	cmd.Flags().String("private-key", "", "hex private key of the owner account")
	cmd.Flags().Uint64("min-confirmations", 1, "confirmations to wait for each change")
	cmd.Flags().Uint64("gas-limit", 0, "fixed gas limit, 0 means estimate")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
