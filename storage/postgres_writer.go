package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"airbnb-etl/models"
	"airbnb-etl/utils"
)

// postgres caps bind parameters per statement at 65535
const maxPostgresParams = 65535

// PostgresWriter mirrors cleaned tables into PostgreSQL.
type PostgresWriter struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresWriter opens a connection to PostgreSQL and pings it, retrying
// with back-off as configured by retry.
func NewPostgresWriter(ctx context.Context, dsn string, retry *utils.RetryConfig) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	ping := func(ctx context.Context) error { return db.PingContext(ctx) }
	if retry != nil {
		err = retry.Do(ctx, "postgres ping", ping)
	} else {
		err = ping(ctx)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &PostgresWriter{db: db, now: time.Now}, nil
}

// WriteTable mirrors t. Replace mode recreates the table; append mode creates
// it when missing and adds any new columns.
func (pw *PostgresWriter) WriteTable(ctx context.Context, t *models.Table, mode string) error {
	cols := withCreatedAt(t)
	kinds := InferKinds(t)

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var ddl []string
	if mode == ModeAppend {
		ddl = append(ddl, postgresCreateSQL(t.Name, cols, kinds, true))
		for _, c := range cols {
			ddl = append(ddl, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s`,
				quoteIdent(t.Name), quoteIdent(c), postgresType(kinds[c])))
		}
	} else {
		ddl = append(ddl,
			`DROP TABLE IF EXISTS `+quoteIdent(t.Name),
			postgresCreateSQL(t.Name, cols, kinds, false))
	}
	for _, q := range ddl {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("postgres: schema %s: %w", t.Name, err)
		}
	}

	createdAt := pw.now().UTC().Format(time.RFC3339)
	batchSize := postgresBatchSize(len(cols))
	for i := 0; i < len(t.Rows); i += batchSize {
		end := i + batchSize
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		query, args := postgresInsert(t, cols, t.Rows[i:end], createdAt)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: insert %s rows %d-%d: %w", t.Name, i, end, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit %s: %w", t.Name, err)
	}
	return nil
}

// CountRows returns the number of rows currently stored in table.
func (pw *PostgresWriter) CountRows(ctx context.Context, table string) (int, error) {
	var n int
	if err := pw.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quoteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", table, err)
	}
	return n, nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

func postgresCreateSQL(table string, cols []string, kinds map[string]ColumnKind, ifNotExists bool) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		typ := postgresType(kinds[c])
		if c == models.ColCreatedAt {
			typ = "TIMESTAMPTZ"
		}
		defs[i] = quoteIdent(c) + " " + typ
	}
	create := "CREATE TABLE "
	if ifNotExists {
		create += "IF NOT EXISTS "
	}
	return create + quoteIdent(table) + " (" + strings.Join(defs, ", ") + ")"
}

func postgresType(k ColumnKind) string {
	switch k {
	case KindInteger:
		return "BIGINT"
	case KindReal:
		return "DOUBLE PRECISION"
	}
	return "TEXT"
}

func postgresBatchSize(cols int) int {
	if cols == 0 {
		return 1
	}
	n := maxPostgresParams / cols
	if n > 500 {
		n = 500
	}
	if n < 1 {
		n = 1
	}
	return n
}

// postgresInsert builds one multi-row INSERT with $n placeholders.
func postgresInsert(t *models.Table, cols []string, batch []models.Record, createdAt string) (string, []any) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}

	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*len(cols))
	for idx, r := range batch {
		ph := make([]string, len(cols))
		for j, c := range cols {
			ph[j] = fmt.Sprintf("$%d", idx*len(cols)+j+1)
			if c == models.ColCreatedAt && !t.HasColumn(c) {
				valueArgs = append(valueArgs, createdAt)
				continue
			}
			valueArgs = append(valueArgs, cellValue(r[c]))
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s`,
		quoteIdent(t.Name), strings.Join(quoted, ","), strings.Join(valueStrings, ","))
	return query, valueArgs
}
