package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/naka-gawa/github-traffic/internal/domain"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS repositories (
	name TEXT PRIMARY KEY,
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS dates (
	date TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS cells (
	repository TEXT NOT NULL,
	date TEXT NOT NULL,
	cell TEXT NOT NULL,
	PRIMARY KEY (repository, date)
);

CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT
);
`

// SQLiteStore keeps the dataset in a SQLite database. Cells are stored in their text form,
// the TOTAL row under the repository name TOTAL.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens the database at path and creates the tables if they don't exist.
func NewSQLiteStore(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create tables: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*domain.Dataset, error) {
	var savedAt string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'saved_at'`).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read meta: %w", err)
	}

	ds := domain.NewDataset()

	dateRows, err := s.db.QueryContext(ctx, `SELECT date FROM dates ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("storage: query dates: %w", err)
	}
	defer dateRows.Close()
	for dateRows.Next() {
		var raw string
		if err := dateRows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("storage: scan date: %w", err)
		}
		date, err := domain.ParseDate(raw)
		if err != nil {
			s.logger.Warn("skipping invalid date column", "date", raw)
			continue
		}
		ds.Dates = append(ds.Dates, date)
	}
	if err := dateRows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate dates: %w", err)
	}

	repoRows, err := s.db.QueryContext(ctx, `SELECT name FROM repositories ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("storage: query repositories: %w", err)
	}
	defer repoRows.Close()
	for repoRows.Next() {
		var name string
		if err := repoRows.Scan(&name); err != nil {
			return nil, fmt.Errorf("storage: scan repository: %w", err)
		}
		ds.Repositories = append(ds.Repositories, name)
		ds.Entries[name] = zeroRow(ds.Dates)
	}
	if err := repoRows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate repositories: %w", err)
	}
	ds.Aggregate = zeroRow(ds.Dates)

	cellRows, err := s.db.QueryContext(ctx, `SELECT repository, date, cell FROM cells`)
	if err != nil {
		return nil, fmt.Errorf("storage: query cells: %w", err)
	}
	defer cellRows.Close()
	for cellRows.Next() {
		var repo, date, cell string
		if err := cellRows.Scan(&repo, &date, &cell); err != nil {
			return nil, fmt.Errorf("storage: scan cell: %w", err)
		}
		row := ds.Entries[repo]
		if repo == domain.AggregateRow {
			row = ds.Aggregate
		}
		if row == nil || !ds.HasDate(domain.Date(date)) {
			continue
		}
		row[domain.Date(date)] = domain.DecodeCell(cell)
	}
	if err := cellRows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate cells: %w", err)
	}

	s.logger.Debug("loaded dataset", "saved_at", savedAt, "repositories", len(ds.Repositories), "dates", len(ds.Dates))
	return ds, nil
}

// Save replaces the stored dataset in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, ds *domain.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"cells", "dates", "repositories"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("storage: clear %s: %w", table, err)
		}
	}

	for _, date := range ds.Dates {
		if _, err := tx.ExecContext(ctx, `INSERT INTO dates (date) VALUES (?)`, date.String()); err != nil {
			return fmt.Errorf("storage: insert date %s: %w", date, err)
		}
	}
	insertRow := func(name string, cells map[domain.Date]domain.Cell) error {
		for _, date := range ds.Dates {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO cells (repository, date, cell) VALUES (?, ?, ?)`,
				name, date.String(), cells[date].String())
			if err != nil {
				return err
			}
		}
		return nil
	}
	for i, repo := range ds.Repositories {
		if _, err := tx.ExecContext(ctx, `INSERT INTO repositories (name, position) VALUES (?, ?)`, repo, i); err != nil {
			return fmt.Errorf("storage: insert repository %s: %w", repo, err)
		}
		if err := insertRow(repo, ds.Entries[repo]); err != nil {
			return fmt.Errorf("storage: insert cells of %s: %w", repo, err)
		}
	}
	if err := insertRow(domain.AggregateRow, ds.Aggregate); err != nil {
		return fmt.Errorf("storage: insert aggregate cells: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('saved_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("storage: update meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	s.logger.Info("saved dataset", "repositories", len(ds.Repositories), "dates", len(ds.Dates))
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func zeroRow(dates []domain.Date) map[domain.Date]domain.Cell {
	row := make(map[domain.Date]domain.Cell, len(dates))
	for _, date := range dates {
		row[date] = domain.Cell{}
	}
	return row
}
