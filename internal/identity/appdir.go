package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// AppDirectory looks up curated application names (protocol frontends,
// routers, marketplaces) from a Postgres table keyed by lower-case
// address. Misses and query failures both report ok=false.
type AppDirectory struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewAppDirectory(ctx context.Context, dsn string, logger *zap.Logger) (*AppDirectory, error) {
	if dsn == "" {
		return nil, errors.New("pg dsn is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &AppDirectory{pool: pool, logger: logger}, nil
}

func (d *AppDirectory) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

func (d *AppDirectory) ApplicationName(ctx context.Context, addr common.Address) (string, bool) {
	var name string
	err := d.pool.QueryRow(ctx,
		`SELECT name FROM app_names WHERE address = $1`,
		strings.ToLower(addr.Hex()),
	).Scan(&name)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			d.logger.Debug("app name lookup failed", zap.String("addr", addr.Hex()), zap.Error(err))
		}
		return "", false
	}
	return name, name != ""
}

func (d *AppDirectory) ReverseName(_ context.Context, _ common.Address) (string, bool) {
	return "", false
}
