// Package identity resolves spender addresses to human-readable names.
// Resolution is advisory only: every lookup is best-effort, absence is
// not an error, and nothing here ever influences reconciliation logic.
package identity

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Resolver maps an address to optional display names. Implementations
// must never fail the caller; a miss is reported as ok=false.
type Resolver interface {
	ApplicationName(ctx context.Context, addr common.Address) (string, bool)
	ReverseName(ctx context.Context, addr common.Address) (string, bool)
}

// Composite chains an application directory and a reverse-name service.
// Either half may be nil.
type Composite struct {
	apps    Resolver
	reverse Resolver
}

func NewComposite(apps, reverse Resolver) *Composite {
	return &Composite{apps: apps, reverse: reverse}
}

func (c *Composite) ApplicationName(ctx context.Context, addr common.Address) (string, bool) {
	if c.apps == nil {
		return "", false
	}
	return c.apps.ApplicationName(ctx, addr)
}

func (c *Composite) ReverseName(ctx context.Context, addr common.Address) (string, bool) {
	if c.reverse == nil {
		return "", false
	}
	return c.reverse.ReverseName(ctx, addr)
}

// Shorten renders an address in the truncated 0xabcd...1234 form used
// where a full address does not fit.
func Shorten(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}

// Map is a static resolver for tests and offline use.
type Map map[common.Address]string

func (m Map) ApplicationName(_ context.Context, addr common.Address) (string, bool) {
	name, ok := m[addr]
	return name, ok
}

func (m Map) ReverseName(_ context.Context, addr common.Address) (string, bool) {
	name, ok := m[addr]
	return name, ok
}
