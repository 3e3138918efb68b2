package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smpapa/mentalmap-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func ptr(v float64) *float64 { return &v }

func seedCenters(t *testing.T, s *SQLiteStore, rows []model.ScrapedCenter) *model.IngestReport {
	t.Helper()
	report, err := s.ImportCenters(context.Background(), rows, ImportOptions{})
	require.NoError(t, err)
	return report
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSQLite_GetCenter_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetCenter(context.Background(), 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_GetCenter_RoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	seedCenters(t, s, []model.ScrapedCenter{{
		Name:    "허그맘 강남점",
		Phone:   "02-123-4567",
		Address: "서울 강남구 테헤란로 152",
		Website: "https://example.com/gangnam",
		Lat:     ptr(37.4979),
		Lng:     ptr(127.0276),
		IsOpen:  true,
		Region:  "서울",
	}})

	c, err := s.GetCenter(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "허그맘 강남점", c.Name)
	assert.Equal(t, "02-123-4567", c.Phone)
	require.NotNil(t, c.Lat)
	require.NotNil(t, c.Lng)
	assert.InDelta(t, 37.4979, *c.Lat, 1e-9)
	assert.True(t, c.IsOpen)
}

func TestSQLite_Import_ReportCounts(t *testing.T) {
	s := newTestSQLite(t)
	seedCenters(t, s, []model.ScrapedCenter{
		{Name: "Center A", Lat: ptr(37.5), Lng: ptr(127.0), IsOpen: true},
	})

	// Row 1 matches an existing name, row 2 is new.
	report, err := s.ImportCenters(context.Background(), []model.ScrapedCenter{
		{Name: "Center A", Phone: "changed", Address: "changed", IsOpen: true},
		{Name: "Center B", Lat: ptr(37.51), Lng: ptr(127.01), IsOpen: true},
	}, ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)
}

func TestSQLite_Import_Idempotent(t *testing.T) {
	s := newTestSQLite(t)
	rows := []model.ScrapedCenter{
		{Name: "Center A", Lat: ptr(37.5), Lng: ptr(127.0), IsOpen: true},
		{Name: "Center B", IsOpen: true},
	}

	first := seedCenters(t, s, rows)
	assert.Equal(t, 2, first.Added)

	second := seedCenters(t, s, rows)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 2, second.Skipped)

	n, err := s.CountCenters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSQLite_Import_SkipOnNameMatch_NeverUpdates(t *testing.T) {
	s := newTestSQLite(t)
	seedCenters(t, s, []model.ScrapedCenter{
		{Name: "Center A", Phone: "original", IsOpen: true},
	})

	seedCenters(t, s, []model.ScrapedCenter{
		{Name: "Center A", Phone: "different", Address: "somewhere new", IsOpen: true},
	})

	c, err := s.GetCenter(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "original", c.Phone, "existing records are skipped, not merged")
}

func TestSQLite_Import_NormalizeNames(t *testing.T) {
	s := newTestSQLite(t)
	seedCenters(t, s, []model.ScrapedCenter{{Name: "Center A", IsOpen: true}})

	// Verbatim matching treats a whitespace variant as a new center.
	report, err := s.ImportCenters(context.Background(),
		[]model.ScrapedCenter{{Name: " center a ", IsOpen: true}}, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)

	// Normalized matching folds the variant onto the existing record.
	report, err = s.ImportCenters(context.Background(),
		[]model.ScrapedCenter{{Name: "CENTER A", IsOpen: true}}, ImportOptions{NormalizeNames: true})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Added)
	assert.Equal(t, 1, report.Skipped)
}

func TestSQLite_Import_RowFailureTolerated(t *testing.T) {
	s := newTestSQLite(t)

	report, err := s.ImportCenters(context.Background(), []model.ScrapedCenter{
		{Name: "", IsOpen: true},                                    // no name
		{Name: "Bad Coords", Lat: ptr(95), Lng: ptr(0), IsOpen: true}, // out of range
		{Name: "Good", IsOpen: true},
	}, ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 2, report.Failed)
}

func TestSQLite_Import_FailedGeocodeStillInserted(t *testing.T) {
	s := newTestSQLite(t)
	seedCenters(t, s, []model.ScrapedCenter{
		{Name: "No Coords", Address: "ungeocodable address", IsOpen: true},
	})

	c, err := s.GetCenter(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, c.Lat)
	assert.Nil(t, c.Lng)

	// Absent from every nearby result no matter the radius.
	results, err := s.FindNearby(context.Background(), 37.5, 127.0, 1e9)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSQLite_FindNearby_FiltersAndOrders(t *testing.T) {
	s := newTestSQLite(t)
	seedCenters(t, s, []model.ScrapedCenter{
		{Name: "Far", Lat: ptr(37.6), Lng: ptr(127.1), IsOpen: true},
		{Name: "Near", Lat: ptr(37.501), Lng: ptr(127.001), IsOpen: true},
		{Name: "Origin", Lat: ptr(37.5), Lng: ptr(127.0), IsOpen: true},
		{Name: "Closed", Lat: ptr(37.5), Lng: ptr(127.0), IsOpen: false},
		{Name: "NoGeom", IsOpen: true},
	})

	results, err := s.FindNearby(context.Background(), 37.5, 127.0, 50000)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "Origin", results[0].Name)
	assert.Equal(t, "Near", results[1].Name)
	assert.Equal(t, "Far", results[2].Name)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].DistanceM, results[i].DistanceM)
	}
}

func TestSQLite_FindNearby_RadiusFilter(t *testing.T) {
	s := newTestSQLite(t)
	seedCenters(t, s, []model.ScrapedCenter{
		{Name: "Center A", Lat: ptr(37.5), Lng: ptr(127.0), IsOpen: true},
		{Name: "Center B", Lat: ptr(37.51), Lng: ptr(127.01), IsOpen: false},
	})

	// Worked example: only the open center within 5km comes back.
	results, err := s.FindNearby(context.Background(), 37.5, 127.0, 5000)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Center A", results[0].Name)
	assert.InDelta(t, 0, results[0].DistanceM, 0.1)
}

func TestSQLite_FindNearby_BadPoint(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.FindNearby(context.Background(), 95, 127.0, 5000)
	require.Error(t, err)
}

func TestSQLite_RecordIngestRun(t *testing.T) {
	s := newTestSQLite(t)

	err := s.RecordIngestRun(context.Background(), IngestRun{
		Report: model.IngestReport{Added: 3, Skipped: 1, Failed: 2},
	})
	require.NoError(t, err)

	var added, skipped, failed int
	err = s.db.QueryRow(`SELECT added, skipped, failed FROM ingest_runs`).Scan(&added, &skipped, &failed)
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 2, failed)
}
