// Package store persists center records and answers proximity queries.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/smpapa/mentalmap-cli/internal/model"
)

// ErrNotFound signals a lookup for a center that does not exist.
var ErrNotFound = eris.New("store: center not found")

// ImportOptions configures a batch import.
type ImportOptions struct {
	// NormalizeNames compares dedupe names trimmed and case-folded instead
	// of verbatim.
	NormalizeNames bool
}

// IngestRun is one recorded ingestion run.
type IngestRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Report     model.IngestReport
	Error      string
}

// Store defines the persistence interface for center records.
type Store interface {
	// GetCenter fetches a single center by identifier. Returns ErrNotFound
	// when no such center exists.
	GetCenter(ctx context.Context, id int64) (*model.Center, error)

	// FindNearby returns open centers whose great-circle distance to
	// (lat, lng) is within radiusM meters, ascending by distance. Centers
	// without coordinates are excluded.
	FindNearby(ctx context.Context, lat, lng, radiusM float64) ([]model.CenterSummary, error)

	// CountCenters returns the total number of stored centers.
	CountCenters(ctx context.Context) (int64, error)

	// ImportCenters inserts scraped rows in one transaction. Rows whose
	// name already exists are skipped, never updated. A failure on one row
	// is logged and counted; a commit failure rolls back the whole batch.
	ImportCenters(ctx context.Context, rows []model.ScrapedCenter, opts ImportOptions) (*model.IngestReport, error)

	// RecordIngestRun appends an entry to the ingestion run log.
	RecordIngestRun(ctx context.Context, run IngestRun) error

	// Migrate creates the schema. Safe to run against an initialized store.
	Migrate(ctx context.Context) error

	Close() error
}
