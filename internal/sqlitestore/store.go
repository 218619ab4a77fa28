// Package sqlitestore exports the long panel and the regression dataset to a
// SQLite file. Each write replaces its table inside one transaction.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/esgpanel/internal/esg"
	"github.com/dyluth/esgpanel/internal/panel"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Table names
const (
	ObservationsTable = "observations"
	RegressionTable   = "regression_dataset"
)

// Store wraps a SQLite database file.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open creates or opens the database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	return &Store{db: db, path: path, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying handle for queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WriteObservations replaces the observations table with p.
func (s *Store) WriteObservations(ctx context.Context, p panel.Panel) error {
	ddl := `CREATE TABLE observations (
		country_name TEXT NOT NULL,
		country_code TEXT NOT NULL,
		indicator TEXT NOT NULL,
		year INTEGER NOT NULL,
		value REAL,
		category TEXT,
		source TEXT,
		region TEXT,
		income_group TEXT
	)`
	insert := `INSERT INTO observations
		(country_name, country_code, indicator, year, value, category, source, region, income_group)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	err := s.replace(ctx, ObservationsTable, ddl, insert, func(stmt *sql.Stmt) error {
		for _, o := range p {
			if _, err := stmt.ExecContext(ctx,
				o.CountryName, o.CountryCode, o.Indicator, o.Year, nullable(o.Value),
				o.Category, o.Source, o.Region, o.IncomeGroup); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("Exported panel to SQLite", zap.String("path", s.path), zap.Int("rows", len(p)))
	return nil
}

// WriteDataset replaces the regression_dataset table with d. Value columns
// keep their dataset names.
func (s *Store) WriteDataset(ctx context.Context, d *esg.Dataset) error {
	cols := []string{"country_name TEXT NOT NULL", "country_code TEXT NOT NULL", "year INTEGER NOT NULL", "region TEXT", "income_group TEXT"}
	names := []string{"country_name", "country_code", "year", "region", "income_group"}
	for _, c := range d.Columns {
		cols = append(cols, quoteIdent(c)+" REAL")
		names = append(names, quoteIdent(c))
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", RegressionTable, strings.Join(cols, ", "))
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		RegressionTable, strings.Join(names, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "))

	err := s.replace(ctx, RegressionTable, ddl, insert, func(stmt *sql.Stmt) error {
		args := make([]any, len(names))
		for _, r := range d.Rows {
			args[0], args[1], args[2], args[3], args[4] = r.CountryName, r.CountryCode, r.Year, r.Region, r.IncomeGroup
			for j, v := range r.Values {
				args[5+j] = nullable(v)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("Exported regression dataset to SQLite", zap.String("path", s.path), zap.Int("rows", len(d.Rows)))
	return nil
}

// replace drops and recreates table, then fills it through insert.
func (s *Store) replace(ctx context.Context, table, ddl, insert string, fill func(*sql.Stmt) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s: %w", table, err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	if err := fill(stmt); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table, err)
	}
	return nil
}

// Count returns the number of rows in table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
