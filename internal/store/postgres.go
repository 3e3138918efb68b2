package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/smpapa/mentalmap-cli/internal/db"
	"github.com/smpapa/mentalmap-cli/internal/model"
)

// PostgresStore implements Store on PostGIS using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolSettings holds optional connection pool tuning parameters.
type PoolSettings struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, settings *PoolSettings) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if settings != nil {
		if settings.MaxConns > 0 {
			maxConns = settings.MaxConns
		}
		if settings.MinConns > 0 {
			minConns = settings.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS centers (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	phone       TEXT,
	address     TEXT,
	website     TEXT,
	lat         DOUBLE PRECISION,
	lng         DOUBLE PRECISION,
	is_open     BOOLEAN NOT NULL DEFAULT true,
	region      TEXT,
	description TEXT,
	geom        geometry(Point, 4326),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT centers_coords_pair CHECK ((lat IS NULL) = (lng IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_centers_geom ON centers USING GIST (geom);
CREATE INDEX IF NOT EXISTS idx_centers_is_open ON centers(is_open);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	added       INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	error       TEXT
);
`

// Migrate creates the schema. An advisory lock prevents concurrent
// migration runs from overlapping deploys.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_lock(7342201)"); err != nil {
		return eris.Wrap(err, "postgres: acquire migration advisory lock")
	}
	defer func() {
		if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_unlock(7342201)"); err != nil {
			zap.L().Warn("postgres: failed to release migration advisory lock", zap.Error(err))
		}
	}()

	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) GetCenter(ctx context.Context, id int64) (*model.Center, error) {
	var c model.Center
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(address, ''), COALESCE(website, ''),
			lat, lng, is_open, COALESCE(region, ''), COALESCE(description, ''), created_at
		FROM centers WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.Website, &c.Lat, &c.Lng, &c.IsOpen, &c.Region, &c.Description, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get center %d", id)
	}
	return &c, nil
}

// FindNearby filters with ST_DWithin over geography and orders by
// ST_DistanceSphere. Rows without a geometry never match ST_DWithin, so
// centers lacking coordinates are excluded by construction.
func (s *PostgresStore) FindNearby(ctx context.Context, lat, lng, radiusM float64) ([]model.CenterSummary, error) {
	if err := model.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT name, COALESCE(phone, ''), COALESCE(website, ''), COALESCE(description, ''), lat, lng, COALESCE(region, ''),
			ST_DistanceSphere(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326)) AS distance_m
		FROM centers
		WHERE is_open = true
			AND geom IS NOT NULL
			AND ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance_m ASC`,
		lng, lat, radiusM,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find nearby")
	}
	defer rows.Close()

	var results []model.CenterSummary
	for rows.Next() {
		var c model.CenterSummary
		if err := rows.Scan(&c.Name, &c.Phone, &c.Website, &c.Description, &c.Lat, &c.Lng, &c.Region, &c.DistanceM); err != nil {
			return nil, eris.Wrap(err, "postgres: scan nearby row")
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate nearby rows")
	}
	return results, nil
}

func (s *PostgresStore) CountCenters(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM centers`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count centers")
	}
	return n, nil
}

// ImportCenters runs the whole batch in one transaction. Each row gets its
// own savepoint so a failed insert doesn't poison the surrounding
// transaction; a commit failure rolls back everything and propagates.
func (s *PostgresStore) ImportCenters(ctx context.Context, centers []model.ScrapedCenter, opts ImportOptions) (*model.IngestReport, error) {
	log := zap.L().With(zap.String("component", "store.import"))
	report := &model.IngestReport{}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin import")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, c := range centers {
		if err := s.importOne(ctx, tx, c, opts, report); err != nil {
			log.Warn("row failed, continuing",
				zap.Int("row", i),
				zap.String("name", c.Name),
				zap.Error(err),
			)
			report.Failed++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit import")
	}
	return report, nil
}

// importOne processes a single row inside a savepoint.
func (s *PostgresStore) importOne(ctx context.Context, tx pgx.Tx, c model.ScrapedCenter, opts ImportOptions, report *model.IngestReport) error {
	if c.Name == "" {
		return eris.New("postgres: center has no name")
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: savepoint")
	}
	defer func() { _ = sp.Rollback(ctx) }()

	var exists bool
	nameQuery := `SELECT EXISTS (SELECT 1 FROM centers WHERE name = $1)`
	if opts.NormalizeNames {
		nameQuery = `SELECT EXISTS (SELECT 1 FROM centers WHERE lower(btrim(name)) = lower(btrim($1)))`
	}
	if err := sp.QueryRow(ctx, nameQuery, c.Name).Scan(&exists); err != nil {
		return eris.Wrapf(err, "postgres: check name %q", c.Name)
	}
	if exists {
		report.Skipped++
		return sp.Commit(ctx)
	}

	geomBytes, err := pointEWKB(c)
	if err != nil {
		return err
	}

	_, err = sp.Exec(ctx, `
		INSERT INTO centers (name, phone, address, website, lat, lng, is_open, region, description, geom)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, ST_GeomFromEWKB($10))`,
		c.Name, c.Phone, c.Address, c.Website, c.Lat, c.Lng, c.IsOpen, c.Region, "", geomBytes,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert center %q", c.Name)
	}

	report.Added++
	return sp.Commit(ctx)
}

// pointEWKB builds the derived geometry from (lng, lat) as EWKB with SRID
// 4326, or nil when the row has no coordinates.
func pointEWKB(c model.ScrapedCenter) ([]byte, error) {
	if !c.HasCoords() {
		return nil, nil
	}
	if err := model.ValidateCoordinates(*c.Lat, *c.Lng); err != nil {
		return nil, err
	}
	pt := geom.NewPointFlat(geom.XY, []float64{*c.Lng, *c.Lat}).SetSRID(4326)
	data, err := ewkb.Marshal(pt, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode point")
	}
	return data, nil
}

func (s *PostgresStore) RecordIngestRun(ctx context.Context, run IngestRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_runs (id, started_at, finished_at, added, skipped, failed, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Report.Added, run.Report.Skipped, run.Report.Failed, run.Error,
	)
	return eris.Wrap(err, "postgres: record ingest run")
}
