package storage

import "allowanceScope/internal/model"

// Storage defines a sink for reconciled allowance snapshots.
type Storage interface {
	PutSnapshot(records []model.AllowanceRecord) error
}
