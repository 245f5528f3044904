package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tndd/datadoggo-v3-rss/internal/compress"
	"github.com/tndd/datadoggo-v3-rss/internal/model"
)

type fakeStore struct {
	entries       []model.QueueEntry
	selectErr     error
	successErr    error
	statusOnlyErr error

	saved      map[uuid.UUID][]byte
	savedCodes map[uuid.UUID]int
	statusOnly map[uuid.UUID]int
}

func newFakeStore(entries ...model.QueueEntry) *fakeStore {
	return &fakeStore{
		entries:    entries,
		saved:      make(map[uuid.UUID][]byte),
		savedCodes: make(map[uuid.UUID]int),
		statusOnly: make(map[uuid.UUID]int),
	}
}

func (s *fakeStore) SelectFetchable(_ context.Context, limit int) ([]model.QueueEntry, error) {
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	if limit < len(s.entries) {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

func (s *fakeStore) PersistSuccess(_ context.Context, id uuid.UUID, data []byte, status int) error {
	if s.successErr != nil {
		return s.successErr
	}
	s.saved[id] = data
	s.savedCodes[id] = status
	return nil
}

func (s *fakeStore) PersistStatusOnly(_ context.Context, id uuid.UUID, status int) error {
	if s.statusOnlyErr != nil {
		return s.statusOnlyErr
	}
	s.statusOnly[id] = status
	return nil
}

type fakeScraper struct {
	responses map[string]model.ScrapeResponse
	errs      map[string]error
}

func (f *fakeScraper) Fetch(_ context.Context, req model.ScrapeRequest) (model.ScrapeResponse, error) {
	if err, ok := f.errs[req.URL]; ok {
		return model.ScrapeResponse{}, err
	}
	return f.responses[req.URL], nil
}

func queueEntry(link string) model.QueueEntry {
	return model.QueueEntry{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Link:      link,
		Title:     "t",
	}
}

func TestRunInvalidLimit(t *testing.T) {
	t.Parallel()

	f := NewFetcher(newFakeStore(), &fakeScraper{}, nil)
	for _, limit := range []int{0, -5} {
		_, err := f.Run(context.Background(), limit)
		require.ErrorIs(t, err, ErrInvalidLimit)
	}
}

func TestRunSavesSuccessfulFetch(t *testing.T) {
	t.Parallel()

	entry := queueEntry("https://example.com/ok")
	store := newFakeStore(entry)
	scraper := &fakeScraper{responses: map[string]model.ScrapeResponse{
		entry.Link: {HTML: "<html>body</html>", StatusCode: 200},
	}}

	summary, err := NewFetcher(store, scraper, nil).Run(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, summary.SavedCount)
	require.Zero(t, summary.StatusOnlyCount)
	require.Zero(t, summary.ErrorCount)

	require.Equal(t, OutcomeSaved, summary.Entries[0].Outcome)
	require.Equal(t, 200, *summary.Entries[0].StatusCode)
	require.Equal(t, 200, store.savedCodes[entry.ID])

	// Stored payload must round-trip back to the exact original HTML.
	decompressed, err := compress.Decompress(store.saved[entry.ID])
	require.NoError(t, err)
	require.Equal(t, "<html>body</html>", decompressed)
}

func TestRunRecordsStatusOnlyForNonSuccess(t *testing.T) {
	t.Parallel()

	entry := queueEntry("https://example.com/gone")
	store := newFakeStore(entry)
	scraper := &fakeScraper{responses: map[string]model.ScrapeResponse{
		entry.Link: {StatusCode: 503},
	}}

	summary, err := NewFetcher(store, scraper, nil).Run(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, summary.StatusOnlyCount)
	require.Equal(t, OutcomeStatusOnly, summary.Entries[0].Outcome)
	require.Equal(t, 503, *summary.Entries[0].StatusCode)

	require.Equal(t, 503, store.statusOnly[entry.ID])
	require.Empty(t, store.saved, "no content row for a failed fetch")
}

func TestRunRecordsAPIError(t *testing.T) {
	t.Parallel()

	entry := queueEntry("https://example.com/down")
	store := newFakeStore(entry)
	scraper := &fakeScraper{errs: map[string]error{
		entry.Link: errors.New("connection reset"),
	}}

	summary, err := NewFetcher(store, scraper, nil).Run(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, summary.ErrorCount)
	require.Equal(t, OutcomeAPIError, summary.Entries[0].Outcome)
	require.Nil(t, summary.Entries[0].StatusCode)
	require.Contains(t, summary.Entries[0].Message, "connection reset")

	require.Empty(t, store.saved)
	require.Empty(t, store.statusOnly)
}

func TestRunDemotesPersistFailures(t *testing.T) {
	t.Parallel()

	okEntry := queueEntry("https://example.com/ok")
	failEntry := queueEntry("https://example.com/fail")
	store := newFakeStore(okEntry, failEntry)
	store.successErr = errors.New("tx aborted")
	store.statusOnlyErr = errors.New("tx aborted")
	scraper := &fakeScraper{responses: map[string]model.ScrapeResponse{
		okEntry.Link:   {HTML: "<p>x</p>", StatusCode: 200},
		failEntry.Link: {StatusCode: 404},
	}}

	summary, err := NewFetcher(store, scraper, nil).Run(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, summary.ErrorCount)
	for _, res := range summary.Entries {
		require.Equal(t, OutcomePersistError, res.Outcome)
		require.Contains(t, res.Message, "tx aborted")
	}
}

func TestRunCountersSumToExaminedEntries(t *testing.T) {
	t.Parallel()

	saved := queueEntry("https://example.com/saved")
	statusOnly := queueEntry("https://example.com/404")
	apiErr := queueEntry("https://example.com/err")
	store := newFakeStore(saved, statusOnly, apiErr)
	scraper := &fakeScraper{
		responses: map[string]model.ScrapeResponse{
			saved.Link:      {HTML: "<p>x</p>", StatusCode: 200},
			statusOnly.Link: {StatusCode: 404},
		},
		errs: map[string]error{apiErr.Link: errors.New("timeout")},
	}

	summary, err := NewFetcher(store, scraper, nil).Run(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, summary.Entries, 3)
	require.Equal(t, len(summary.Entries),
		summary.SavedCount+summary.StatusOnlyCount+summary.ErrorCount)
	require.Equal(t, 1, summary.SavedCount)
	require.Equal(t, 1, summary.StatusOnlyCount)
	require.Equal(t, 1, summary.ErrorCount)
}

func TestRunSelectionFailureIsFatal(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.selectErr = errors.New("db unreachable")

	_, err := NewFetcher(store, &fakeScraper{}, nil).Run(context.Background(), 10)
	require.Error(t, err)
}

func TestRunRespectsLimit(t *testing.T) {
	t.Parallel()

	entries := []model.QueueEntry{
		queueEntry("https://example.com/1"),
		queueEntry("https://example.com/2"),
		queueEntry("https://example.com/3"),
	}
	store := newFakeStore(entries...)
	scraper := &fakeScraper{responses: map[string]model.ScrapeResponse{
		entries[0].Link: {HTML: "a", StatusCode: 200},
		entries[1].Link: {HTML: "b", StatusCode: 200},
	}}

	summary, err := NewFetcher(store, scraper, nil).Run(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, summary.Entries, 2)
}
