// Package crawler scrapes the center directory site, resolves coordinates,
// and feeds deduplicated rows into the store.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/smpapa/mentalmap-cli/internal/config"
	"github.com/smpapa/mentalmap-cli/internal/model"
	"github.com/smpapa/mentalmap-cli/internal/store"
	"github.com/smpapa/mentalmap-cli/pkg/geocode"
)

// Engine orchestrates a crawl-geocode-import run. The pipeline is strictly
// sequential; rate limiters enforce the minimum spacing the external
// services expect.
type Engine struct {
	store           store.Store
	geocoder        geocode.Client
	httpClient      *http.Client
	baseURL         string
	maxPages        int
	pageLimiter     *rate.Limiter
	importOpts      store.ImportOptions
	geocodeAttempts int
	geocodeBackoff  time.Duration
}

// Option configures the Engine.
type Option func(*Engine)

// WithHTTPClient sets a custom HTTP client for page fetches.
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Engine) {
		e.httpClient = hc
	}
}

// WithGeocodeRetry tunes the retry policy for transient geocode failures.
// attempts of 1 disables retries.
func WithGeocodeRetry(attempts int, backoff time.Duration) Option {
	return func(e *Engine) {
		if attempts > 0 {
			e.geocodeAttempts = attempts
		}
		if backoff > 0 {
			e.geocodeBackoff = backoff
		}
	}
}

// NewEngine creates an Engine from the crawl and ingest configuration.
func NewEngine(st store.Store, gc geocode.Client, crawlCfg config.CrawlConfig, ingestCfg config.IngestConfig, opts ...Option) *Engine {
	pageRPS := crawlCfg.PageRPS
	if pageRPS <= 0 {
		pageRPS = 1
	}
	maxPages := crawlCfg.MaxPages
	if maxPages <= 0 {
		maxPages = 25
	}
	timeout := time.Duration(crawlCfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	e := &Engine{
		store:           st,
		geocoder:        gc,
		httpClient:      &http.Client{Timeout: timeout},
		baseURL:         crawlCfg.BaseURL,
		maxPages:        maxPages,
		pageLimiter:     rate.NewLimiter(rate.Limit(pageRPS), 1),
		importOpts:      store.ImportOptions{NormalizeNames: ingestCfg.NormalizeNames},
		geocodeAttempts: 3,
		geocodeBackoff:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// pageURL builds the paginated directory URL, keeping the site's branch
// search parameters.
func (e *Engine) pageURL(page int) string {
	params := url.Values{
		"page":       {fmt.Sprintf("%d", page)},
		"find_field": {"jijumname"},
		"find_word":  {""},
	}
	return e.baseURL + "?" + params.Encode()
}

// fetchPage downloads and parses one directory page.
func (e *Engine) fetchPage(ctx context.Context, page int) (*goquery.Document, error) {
	if err := e.pageLimiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "crawler: page rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.pageURL(page), nil)
	if err != nil {
		return nil, eris.Wrapf(err, "crawler: build request for page %d", page)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "crawler: fetch page %d", page)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("crawler: page %d returned status %d", page, resp.StatusCode)
	}

	body, err := decodeBody(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, eris.Wrapf(err, "crawler: parse page %d", page)
	}
	return doc, nil
}

// Crawl walks directory pages until the first empty page, bounded by the
// configured page cap, and geocodes rows lacking coordinates. Transient
// geocode failures are retried with backoff; a page-fetch failure or an
// exhausted geocode on one row leaves that row without coordinates rather
// than aborting the run. An unauthorized geocode response aborts, since it
// means the credential is wrong and every later call would fail the same
// way. Returns the scraped rows and the count of malformed items skipped.
func (e *Engine) Crawl(ctx context.Context) ([]model.ScrapedCenter, int, error) {
	log := zap.L().With(zap.String("component", "crawler.engine"))

	var all []model.ScrapedCenter
	failed := 0

	for page := 1; page <= e.maxPages; page++ {
		doc, err := e.fetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, eris.Wrap(ctx.Err(), "crawler: cancelled")
			}
			log.Warn("page fetch failed, skipping", zap.Int("page", page), zap.Error(err))
			failed++
			continue
		}

		centers, pageFailed := parseCenters(doc, page)
		failed += pageFailed

		if len(centers) == 0 {
			log.Info("empty page, stopping crawl", zap.Int("page", page))
			break
		}
		log.Info("page scraped", zap.Int("page", page), zap.Int("items", len(centers)))

		for i := range centers {
			if centers[i].HasCoords() || centers[i].Address == "" {
				continue
			}
			result, err := e.resolveWithRetry(ctx, centers[i].Address)
			if err != nil {
				if errors.Is(err, geocode.ErrUnauthorized) {
					return nil, 0, err
				}
				log.Warn("geocode failed, keeping row without coordinates",
					zap.Int("page", page),
					zap.String("name", centers[i].Name),
					zap.Error(err),
				)
				continue
			}
			if !result.Matched {
				log.Debug("no geocode match",
					zap.String("name", centers[i].Name),
					zap.String("address", centers[i].Address),
				)
				continue
			}
			lat, lng := result.Lat, result.Lng
			centers[i].Lat = &lat
			centers[i].Lng = &lng
		}

		all = append(all, centers...)
	}

	return all, failed, nil
}

// Ingest runs the full pipeline: crawl, geocode, dedupe, import. The
// outcome is appended to the ingest run log either way.
func (e *Engine) Ingest(ctx context.Context) (*model.IngestReport, error) {
	started := time.Now().UTC()

	rows, crawlFailed, err := e.Crawl(ctx)
	if err != nil {
		e.recordRun(ctx, started, nil, err)
		return nil, err
	}

	report, err := e.importRows(ctx, started, rows, crawlFailed)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// IngestRows imports externally produced rows (e.g. a CSV export) through
// the same dedupe and transaction path as a live crawl.
func (e *Engine) IngestRows(ctx context.Context, rows []model.ScrapedCenter, alreadyFailed int) (*model.IngestReport, error) {
	return e.importRows(ctx, time.Now().UTC(), rows, alreadyFailed)
}

func (e *Engine) importRows(ctx context.Context, started time.Time, rows []model.ScrapedCenter, preFailed int) (*model.IngestReport, error) {
	report, err := e.store.ImportCenters(ctx, rows, e.importOpts)
	if err != nil {
		e.recordRun(ctx, started, nil, err)
		return nil, err
	}
	report.Failed += preFailed

	e.recordRun(ctx, started, report, nil)

	zap.L().Info("ingest complete",
		zap.Int("added", report.Added),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// recordRun appends to the ingest run log. Best effort: a logging failure
// never masks the run outcome.
func (e *Engine) recordRun(ctx context.Context, started time.Time, report *model.IngestReport, runErr error) {
	run := store.IngestRun{
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if report != nil {
		run.Report = *report
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := e.store.RecordIngestRun(ctx, run); err != nil {
		zap.L().Warn("failed to record ingest run", zap.Error(err))
	}
}
