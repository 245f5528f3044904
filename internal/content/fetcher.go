// Package content implements the fetch-and-persist stage of the pipeline.
package content

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tndd/datadoggo-v3-rss/internal/compress"
	"github.com/tndd/datadoggo-v3-rss/internal/metrics"
	"github.com/tndd/datadoggo-v3-rss/internal/model"
	"github.com/tndd/datadoggo-v3-rss/internal/scrape"
)

// SuccessStatus is the scrape outcome that carries a storable body.
const SuccessStatus = http.StatusOK

// DefaultLimit is applied when an API caller omits the entry limit.
const DefaultLimit = 100

// ErrInvalidLimit marks a caller input error, not a pipeline failure.
var ErrInvalidLimit = errors.New("limit must be a positive integer")

// Outcome classifies the result of processing one queue entry.
type Outcome string

const (
	// OutcomeSaved: the scrape succeeded and status plus compressed body
	// were persisted together.
	OutcomeSaved Outcome = "saved"
	// OutcomeStatusOnly: the scrape reported a non-success status; only the
	// status was persisted.
	OutcomeStatusOnly Outcome = "status_only"
	// OutcomeAPIError: the scrape call itself failed; nothing was written.
	OutcomeAPIError Outcome = "api_error"
	// OutcomePersistError: the scrape produced an outcome but storing it
	// failed.
	OutcomePersistError Outcome = "persist_error"
)

// EntryResult reports the outcome of one queue entry within a run.
type EntryResult struct {
	ID         uuid.UUID `json:"id"`
	Link       string    `json:"link"`
	Outcome    Outcome   `json:"outcome"`
	StatusCode *int      `json:"status_code,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Summary is the aggregate report of one fetch-content invocation. The three
// counters are mutually exclusive and always sum to len(Entries).
type Summary struct {
	SavedCount      int           `json:"saved_count"`
	StatusOnlyCount int           `json:"status_only_count"`
	ErrorCount      int           `json:"error_count"`
	Entries         []EntryResult `json:"entries"`
}

// Store is the persistence surface the fetcher needs.
type Store interface {
	SelectFetchable(ctx context.Context, limit int) ([]model.QueueEntry, error)
	PersistSuccess(ctx context.Context, id uuid.UUID, data []byte, status int) error
	PersistStatusOnly(ctx context.Context, id uuid.UUID, status int) error
}

// Scraper issues one scrape call per URL.
type Scraper interface {
	Fetch(ctx context.Context, req model.ScrapeRequest) (model.ScrapeResponse, error)
}

// Fetcher drains fetchable queue entries through the scrape service and
// persists each outcome. Entries are processed sequentially; per-entry
// persistence is transactional, so a stronger scheduler could parallelize
// runs without changing the store contract.
type Fetcher struct {
	store   Store
	scraper Scraper
	logger  *zap.Logger
}

// NewFetcher constructs a Fetcher.
func NewFetcher(store Store, scraper Scraper, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{store: store, scraper: scraper, logger: logger}
}

// Run processes up to limit fetchable entries and reports every one of them.
// Upstream and persistence failures are recorded per entry and never abort
// the batch; only the selection query failing is fatal.
func (f *Fetcher) Run(ctx context.Context, limit int) (*Summary, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	entries, err := f.store.SelectFetchable(ctx, limit)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Entries: make([]EntryResult, 0, len(entries))}
	for _, entry := range entries {
		result := f.processEntry(ctx, entry)
		summary.Entries = append(summary.Entries, result)
		switch result.Outcome {
		case OutcomeSaved:
			summary.SavedCount++
		case OutcomeStatusOnly:
			summary.StatusOnlyCount++
		default:
			summary.ErrorCount++
		}
		metrics.ObserveContentFetch(string(result.Outcome))
	}

	f.logger.Info("fetch-content run finished",
		zap.Int("examined", len(summary.Entries)),
		zap.Int("saved", summary.SavedCount),
		zap.Int("status_only", summary.StatusOnlyCount),
		zap.Int("errors", summary.ErrorCount),
	)
	return summary, nil
}

func (f *Fetcher) processEntry(ctx context.Context, entry model.QueueEntry) EntryResult {
	result := EntryResult{ID: entry.ID, Link: entry.Link}

	resp, err := f.scraper.Fetch(ctx, model.ScrapeRequest{URL: entry.Link})
	if err != nil {
		result.Outcome = OutcomeAPIError
		result.Message = err.Error()
		f.logger.Warn("scrape call failed",
			zap.String("link", entry.Link),
			zap.Error(err),
		)
		return result
	}

	status := resp.StatusCode
	result.StatusCode = &status

	if status != SuccessStatus {
		if err := f.store.PersistStatusOnly(ctx, entry.ID, status); err != nil {
			result.Outcome = OutcomePersistError
			result.Message = err.Error()
			f.logger.Error("status persist failed",
				zap.String("link", entry.Link),
				zap.Int("status", status),
				zap.Error(err),
			)
			return result
		}
		result.Outcome = OutcomeStatusOnly
		return result
	}

	data, err := compress.HTML(resp.HTML)
	if err != nil {
		result.Outcome = OutcomePersistError
		result.Message = err.Error()
		f.logger.Error("compress failed", zap.String("link", entry.Link), zap.Error(err))
		return result
	}

	if err := f.store.PersistSuccess(ctx, entry.ID, data, status); err != nil {
		result.Outcome = OutcomePersistError
		result.Message = err.Error()
		f.logger.Error("content persist failed",
			zap.String("link", entry.Link),
			zap.Error(err),
		)
		return result
	}

	result.Outcome = OutcomeSaved
	return result
}

// compile-time check that the scrape client satisfies Scraper.
var _ Scraper = (*scrape.Client)(nil)
