package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func runUpdate(cmd *cobra.Command, args []string) error {
	spender, err := parseSpender(args[0])
	if err != nil {
		return err
	}
	amountText := args[1]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.reconciler.Refresh(ctx, a.owner); err != nil {
		return err
	}
	if err := a.reconciler.Update(ctx, spender, amountText); err != nil {
		return err
	}

	fmt.Printf("allowance for %s updated\n", spender.Hex())
	printRefreshed(a)
	return nil
}

func runRevoke(cmd *cobra.Command, args []string) error {
	spender, err := parseSpender(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.reconciler.Refresh(ctx, a.owner); err != nil {
		return err
	}
	if err := a.reconciler.Revoke(ctx, spender); err != nil {
		return err
	}

	fmt.Printf("allowance for %s revoked\n", spender.Hex())
	printRefreshed(a)
	return nil
}

func parseSpender(input string) (common.Address, error) {
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid spender address: %q", input)
	}
	return common.HexToAddress(input), nil
}

func printRefreshed(a *app) {
	for _, entry := range a.reconciler.Allowances() {
		fmt.Printf("%-42s  %s\n", entry.Spender, a.reconciler.Display(entry.CurrentAmount))
	}
}
