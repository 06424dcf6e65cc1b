package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"allowanceScope/internal/allowance"
	"allowanceScope/internal/chain"
	"allowanceScope/internal/config"
	"allowanceScope/internal/erc20"
	"allowanceScope/internal/identity"
	"allowanceScope/internal/model"
	"allowanceScope/internal/scan"
)

// app wires the chain client, scanner, token caller/transactor, identity
// resolvers, and the reconciler for one command invocation.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	chain      *chain.Client
	appDir     *identity.AppDirectory
	reconciler *allowance.Reconciler
	meta       model.TokenMeta
	owner      common.Address
}

func buildApp(ctx context.Context, cmd *cobra.Command, withWriter bool) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Token) {
		return nil, fmt.Errorf("invalid token address: %q", cfg.Token)
	}
	if !common.IsHexAddress(cfg.Owner) {
		return nil, fmt.Errorf("invalid owner address: %q", cfg.Owner)
	}
	token := common.HexToAddress(cfg.Token)
	owner := common.HexToAddress(cfg.Owner)

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, chain: chainClient, owner: owner}

	meta, err := erc20.FetchTokenMeta(ctx, chainClient, token, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("fetch token metadata: %w", err)
	}
	a.meta = meta

	scanner, err := scan.NewScanner(scan.Config{
		Token:        token,
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	var apps identity.Resolver
	if cfg.PgDSN != "" {
		dir, err := identity.NewAppDirectory(ctx, cfg.PgDSN, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect app directory: %w", err)
		}
		a.appDir = dir
		apps = dir
	}
	resolver := identity.NewComposite(apps, identity.NewENSReverse(chainClient, logger))

	var writer allowance.TokenWriter
	if withWriter {
		if cfg.PrivateKey == "" {
			a.close()
			return nil, fmt.Errorf("private key is required")
		}
		transactor, err := erc20.NewTransactor(ctx, chainClient, token, cfg.PrivateKey, cfg.GasLimit)
		if err != nil {
			a.close()
			return nil, err
		}
		if transactor.From() != owner {
			a.close()
			return nil, fmt.Errorf("private key account %s does not match owner %s", transactor.From().Hex(), owner.Hex())
		}
		writer = txWriter{inner: transactor}
	}

	reconciler, err := allowance.NewReconciler(allowance.Options{
		Reader:           erc20.NewCaller(chainClient, token),
		Writer:           writer,
		Events:           scanner,
		Identity:         resolver,
		Meta:             meta,
		MinConfirmations: cfg.MinConfirmations,
		Logger:           logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.reconciler = reconciler

	logger.Info("allowance tool ready",
		zap.String("token", token.Hex()),
		zap.String("symbol", meta.Symbol),
		zap.Uint8("decimals", meta.Decimals),
		zap.String("owner", owner.Hex()),
	)

	return a, nil
}

func (a *app) close() {
	if a.appDir != nil {
		a.appDir.Close()
	}
	if a.chain != nil {
		a.chain.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

// txWriter adapts the concrete transactor to the reconciler's capability
// interface.
type txWriter struct {
	inner *erc20.Transactor
}

func (w txWriter) Approve(ctx context.Context, spender common.Address, amount *big.Int) (allowance.PendingChange, error) {
	pending, err := w.inner.Approve(ctx, spender, amount)
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (w txWriter) IncreaseAllowance(ctx context.Context, spender common.Address, delta *big.Int) (allowance.PendingChange, error) {
	pending, err := w.inner.IncreaseAllowance(ctx, spender, delta)
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (w txWriter) DecreaseAllowance(ctx context.Context, spender common.Address, delta *big.Int) (allowance.PendingChange, error) {
	pending, err := w.inner.DecreaseAllowance(ctx, spender, delta)
	if err != nil {
		return nil, err
	}
	return pending, nil
}
