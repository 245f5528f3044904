package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tndd/datadoggo-v3-rss/internal/articles"
	"github.com/tndd/datadoggo-v3-rss/internal/content"
	"github.com/tndd/datadoggo-v3-rss/internal/feed"
)

type fakeIngestor struct {
	summary *feed.Summary
	err     error
	calls   int
	path    string
}

func (f *fakeIngestor) Run(_ context.Context, sourcesPath string) (*feed.Summary, error) {
	f.calls++
	f.path = sourcesPath
	return f.summary, f.err
}

type fakeFetcher struct {
	summary *content.Summary
	err     error
	limit   int
}

func (f *fakeFetcher) Run(_ context.Context, limit int) (*content.Summary, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

type fakePager struct {
	page  *articles.Page
	err   error
	limit int
	token string
}

func (f *fakePager) Page(_ context.Context, limit int, pageToken string) (*articles.Page, error) {
	f.limit = limit
	f.token = pageToken
	return f.page, f.err
}

type notification struct {
	event   string
	source  string
	summary any
}

type fakeNotifier struct {
	sent []notification
}

func (f *fakeNotifier) NotifyFetchRss(_ context.Context, source string, summary any) {
	f.sent = append(f.sent, notification{event: "fetch_rss", source: source, summary: summary})
}

func (f *fakeNotifier) NotifyFetchContent(_ context.Context, source string, summary any) {
	f.sent = append(f.sent, notification{event: "fetch_content", source: source, summary: summary})
}

type serverFixture struct {
	ingestor *fakeIngestor
	fetcher  *fakeFetcher
	pager    *fakePager
	notifier *fakeNotifier
	srv      *Server
}

func newFixture() *serverFixture {
	f := &serverFixture{
		ingestor: &fakeIngestor{summary: &feed.Summary{TotalProcessed: 3, Feeds: []feed.SourceResult{}}},
		fetcher:  &fakeFetcher{summary: &content.Summary{SavedCount: 1, Entries: []content.EntryResult{}}},
		pager:    &fakePager{page: &articles.Page{Items: []articles.Item{}}},
		notifier: &fakeNotifier{},
	}
	f.srv = NewServer(f.ingestor, f.fetcher, f.pager, f.notifier, "links.yml", nil)
	return f
}

func (f *serverFixture) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListArticlesDefaults(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rec := f.do(t, http.MethodGet, "/api/articles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, articles.DefaultLimit, f.pager.limit)
	require.Empty(t, f.pager.token)
}

func TestListArticlesPassesLimitAndToken(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rec := f.do(t, http.MethodGet, "/api/articles?limit=25&page_token=abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 25, f.pager.limit)
	require.Equal(t, "abc", f.pager.token)
}

func TestListArticlesRejectsBadLimit(t *testing.T) {
	t.Parallel()

	f := newFixture()
	for _, raw := range []string{"0", "-1", "abc", "1.5"} {
		rec := f.do(t, http.MethodGet, "/api/articles?limit="+raw, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", raw)
		require.Equal(t, "invalid_limit", decodeError(t, rec).Code)
	}
}

func TestListArticlesErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid limit", articles.ErrInvalidLimit, http.StatusBadRequest, "invalid_limit"},
		{"unknown token", articles.ErrCursorNotFound, http.StatusBadRequest, "page_token_not_found"},
		{"oversized row", articles.ErrRowTooLarge, http.StatusRequestEntityTooLarge, "article_too_large"},
		{"storage failure", errors.New("connection refused"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture()
			f.pager.err = tt.err
			rec := f.do(t, http.MethodGet, "/api/articles", nil)
			require.Equal(t, tt.wantStatus, rec.Code)
			require.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestFetchRssReturnsSummaryAndNotifies(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/fetch-rss", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, f.ingestor.calls)
	require.Equal(t, "links.yml", f.ingestor.path)

	var summary feed.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 3, summary.TotalProcessed)

	require.Len(t, f.notifier.sent, 1)
	require.Equal(t, "fetch_rss", f.notifier.sent[0].event)
	require.Equal(t, "api", f.notifier.sent[0].source)
}

func TestFetchRssFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.ingestor.summary = nil
	f.ingestor.err = errors.New("links file missing")
	rec := f.do(t, http.MethodPost, "/api/fetch-rss", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal_error", decodeError(t, rec).Code)
	require.Empty(t, f.notifier.sent, "no notification on failure")
}

func TestFetchContentDefaultLimit(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/fetch-content", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, content.DefaultLimit, f.fetcher.limit)

	require.Len(t, f.notifier.sent, 1)
	require.Equal(t, "fetch_content", f.notifier.sent[0].event)
	require.Equal(t, "api", f.notifier.sent[0].source)
}

func TestFetchContentExplicitLimit(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/fetch-content", []byte(`{"limit": 5}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, f.fetcher.limit)
}

func TestFetchContentInvalidLimit(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.fetcher.err = content.ErrInvalidLimit
	rec := f.do(t, http.MethodPost, "/api/fetch-content", []byte(`{"limit": 0}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_limit", decodeError(t, rec).Code)
}

func TestFetchContentRejectsBadJSON(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/fetch-content", []byte(`{limit}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_json", decodeError(t, rec).Code)
}

func TestRequestIDHeaderSet(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
