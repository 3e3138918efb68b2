package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/smpapa/mentalmap-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It has no spatial
// index; nearby queries load open centers with coordinates and evaluate the
// great-circle distance in process. Meant for development and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS centers (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	phone       TEXT NOT NULL DEFAULT '',
	address     TEXT NOT NULL DEFAULT '',
	website     TEXT NOT NULL DEFAULT '',
	lat         REAL,
	lng         REAL,
	is_open     INTEGER NOT NULL DEFAULT 1,
	region      TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	CHECK ((lat IS NULL) = (lng IS NULL))
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	added       INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	error       TEXT
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCenter(ctx context.Context, id int64) (*model.Center, error) {
	var c model.Center
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, address, website, lat, lng, is_open, region, description, created_at
		FROM centers WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.Website, &c.Lat, &c.Lng, &c.IsOpen, &c.Region, &c.Description, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get center %d", id)
	}
	return &c, nil
}

func (s *SQLiteStore) FindNearby(ctx context.Context, lat, lng, radiusM float64) ([]model.CenterSummary, error) {
	if err := model.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, phone, website, description, lat, lng, region
		FROM centers
		WHERE is_open = 1 AND lat IS NOT NULL AND lng IS NOT NULL`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find nearby")
	}
	defer rows.Close()

	var results []model.CenterSummary
	for rows.Next() {
		var c model.CenterSummary
		if err := rows.Scan(&c.Name, &c.Phone, &c.Website, &c.Description, &c.Lat, &c.Lng, &c.Region); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan nearby row")
		}
		c.DistanceM = haversineM(lat, lng, c.Lat, c.Lng)
		if c.DistanceM <= radiusM {
			results = append(results, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate nearby rows")
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceM < results[j].DistanceM
	})
	return results, nil
}

func (s *SQLiteStore) CountCenters(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM centers`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count centers")
	}
	return n, nil
}

func (s *SQLiteStore) ImportCenters(ctx context.Context, centers []model.ScrapedCenter, opts ImportOptions) (*model.IngestReport, error) {
	log := zap.L().With(zap.String("component", "store.import"))
	report := &model.IngestReport{}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin import")
	}
	defer func() { _ = tx.Rollback() }()

	nameQuery := `SELECT EXISTS (SELECT 1 FROM centers WHERE name = ?)`
	if opts.NormalizeNames {
		nameQuery = `SELECT EXISTS (SELECT 1 FROM centers WHERE lower(trim(name)) = lower(trim(?)))`
	}

	for i, c := range centers {
		if err := importOneSQLite(ctx, tx, nameQuery, c, report); err != nil {
			log.Warn("row failed, continuing",
				zap.Int("row", i),
				zap.String("name", c.Name),
				zap.Error(err),
			)
			report.Failed++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit import")
	}
	return report, nil
}

func importOneSQLite(ctx context.Context, tx *sql.Tx, nameQuery string, c model.ScrapedCenter, report *model.IngestReport) error {
	if c.Name == "" {
		return eris.New("sqlite: center has no name")
	}
	if c.HasCoords() {
		if err := model.ValidateCoordinates(*c.Lat, *c.Lng); err != nil {
			return err
		}
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, nameQuery, c.Name).Scan(&exists); err != nil {
		return eris.Wrapf(err, "sqlite: check name %q", c.Name)
	}
	if exists {
		report.Skipped++
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO centers (name, phone, address, website, lat, lng, is_open, region, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Phone, c.Address, c.Website, c.Lat, c.Lng, c.IsOpen, c.Region, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert center %q", c.Name)
	}

	report.Added++
	return nil
}

func (s *SQLiteStore) RecordIngestRun(ctx context.Context, run IngestRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, started_at, finished_at, added, skipped, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Report.Added, run.Report.Skipped, run.Report.Failed, run.Error,
	)
	return eris.Wrap(err, "sqlite: record ingest run")
}
