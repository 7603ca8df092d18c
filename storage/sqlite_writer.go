package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"airbnb-etl/models"
)

// SQLiteStore persists cleaned tables to a SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSQLite opens (creating if needed) the database file at path and
// verifies the connection.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %q: %w", path, err)
	}
	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// WriteTable stores t under its name. In replace mode the table is dropped
// and recreated; in append mode it is created when missing and extended with
// any new columns. Each call runs in its own transaction.
func (s *SQLiteStore) WriteTable(ctx context.Context, t *models.Table, mode string) error {
	cols := withCreatedAt(t)
	kinds := InferKinds(t)
	name := quoteIdent(t.Name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if mode == ModeAppend {
		if err := s.ensureTable(ctx, tx, t.Name, cols, kinds); err != nil {
			return err
		}
	} else {
		if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+name); err != nil {
			return fmt.Errorf("sqlite: drop %s: %w", t.Name, err)
		}
		if _, err := tx.ExecContext(ctx, createTableSQL(t.Name, cols, kinds)); err != nil {
			return fmt.Errorf("sqlite: create %s: %w", t.Name, err)
		}
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	ph := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO `+name+` (`+strings.Join(quoted, ",")+`) VALUES (`+ph+`)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert %s: %w", t.Name, err)
	}
	defer stmt.Close()

	createdAt := s.now().Format(time.RFC3339)
	for i, r := range t.Rows {
		args := make([]any, len(cols))
		for j, c := range cols {
			if c == models.ColCreatedAt && !t.HasColumn(c) {
				args[j] = createdAt
				continue
			}
			args[j] = cellValue(r[c])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("sqlite: insert %s row %d: %w", t.Name, i, err)
		}
	}

	for _, c := range []string{models.ColID, models.ColListingID} {
		if !t.HasColumn(c) {
			continue
		}
		idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(%s)`,
			quoteIdent("idx_"+t.Name+"_"+c), name, quoteIdent(c))
		if _, err := tx.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("sqlite: index %s.%s: %w", t.Name, c, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit %s: %w", t.Name, err)
	}
	return nil
}

func (s *SQLiteStore) ensureTable(ctx context.Context, tx *sql.Tx, table string, cols []string, kinds map[string]ColumnKind) error {
	if _, err := tx.ExecContext(ctx, strings.Replace(createTableSQL(table, cols, kinds),
		"CREATE TABLE", "CREATE TABLE IF NOT EXISTS", 1)); err != nil {
		return fmt.Errorf("sqlite: create %s: %w", table, err)
	}

	existing, err := tableColumns(ctx, tx, table)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if _, ok := existing[c]; ok {
			continue
		}
		alter := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, quoteIdent(table), quoteIdent(c), sqliteType(kinds[c]))
		if _, err := tx.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("sqlite: add column %s.%s: %w", table, c, err)
		}
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func tableColumns(ctx context.Context, q queryer, table string) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: scan table info: %w", err)
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}

func createTableSQL(table string, cols []string, kinds map[string]ColumnKind) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quoteIdent(c) + " " + sqliteType(kinds[c])
	}
	return `CREATE TABLE ` + quoteIdent(table) + ` (` + strings.Join(defs, ", ") + `)`
}

func sqliteType(k ColumnKind) string {
	switch k {
	case KindInteger:
		return "INTEGER"
	case KindReal:
		return "REAL"
	}
	return "TEXT"
}

// TableExists reports whether table is present in the database.
func (s *SQLiteStore) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: lookup %s: %w", table, err)
	}
	return n > 0, nil
}

// CountRows returns the number of rows in table, 0 when it does not exist.
func (s *SQLiteStore) CountRows(ctx context.Context, table string) (int, error) {
	ok, err := s.TableExists(ctx, table)
	if err != nil || !ok {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quoteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count %s: %w", table, err)
	}
	return n, nil
}

// ColumnCount returns the number of columns of table.
func (s *SQLiteStore) ColumnCount(ctx context.Context, table string) (int, error) {
	cols, err := tableColumns(ctx, s.db, table)
	if err != nil {
		return 0, err
	}
	return len(cols), nil
}

// CountNulls returns how many rows of table have a NULL col.
func (s *SQLiteStore) CountNulls(ctx context.Context, table, col string) (int, error) {
	var n int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s IS NULL`, quoteIdent(table), quoteIdent(col))
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count nulls %s.%s: %w", table, col, err)
	}
	return n, nil
}

// CountOrphans returns the rows of child whose fk matches no pk in parent.
func (s *SQLiteStore) CountOrphans(ctx context.Context, child, fk, parent, pk string) (int, error) {
	q := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %[1]s c
		LEFT JOIN %[3]s p ON c.%[2]s = p.%[4]s
		WHERE p.%[4]s IS NULL`,
		quoteIdent(child), quoteIdent(fk), quoteIdent(parent), quoteIdent(pk))

	var n int
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: orphan check %s.%s: %w", child, fk, err)
	}
	return n, nil
}

// SizeMB returns the database file size in megabytes.
func (s *SQLiteStore) SizeMB() float64 {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return float64(fi.Size()) / (1024 * 1024)
}
