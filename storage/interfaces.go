package storage

import (
	"context"

	"airbnb-etl/models"
)

// Table write modes.
const (
	ModeReplace = "replace"
	ModeAppend  = "append"
)

// TableWriter is the interface any relational backend must satisfy.
type TableWriter interface {
	WriteTable(ctx context.Context, t *models.Table, mode string) error
	CountRows(ctx context.Context, table string) (int, error)
	Close() error
}

var (
	_ TableWriter = (*SQLiteStore)(nil)
	_ TableWriter = (*PostgresWriter)(nil)
)
