package feed

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/tndd/datadoggo-v3-rss/internal/metrics"
	"github.com/tndd/datadoggo-v3-rss/internal/model"
)

const (
	// DefaultConcurrency bounds in-flight feed requests to protect the
	// origin servers and the local process.
	DefaultConcurrency = 8

	// DefaultFetchTimeout is the per-source request budget.
	DefaultFetchTimeout = 15 * time.Second

	titleFallback = "No title"
)

// EntryUpserter persists parsed feed items into the queue.
type EntryUpserter interface {
	UpsertEntries(ctx context.Context, entries []model.NewQueueEntry, group string) (int, error)
}

// SourceResult reports the outcome of one feed source within a run.
type SourceResult struct {
	Group     string  `json:"group"`
	Name      string  `json:"name"`
	Processed int     `json:"processed"`
	Error     *string `json:"error"`
}

// Summary is the aggregate report of one fetch-rss invocation.
type Summary struct {
	TotalProcessed int            `json:"total_processed"`
	Feeds          []SourceResult `json:"feeds"`
}

// Ingestor fetches and parses configured feeds concurrently and upserts the
// discovered items.
type Ingestor struct {
	store       EntryUpserter
	client      *http.Client
	concurrency int
	timeout     time.Duration
	logger      *zap.Logger
}

// NewIngestor constructs an Ingestor. The HTTP client is shared across all
// feed requests; per-source deadlines come from the configured timeout.
func NewIngestor(store EntryUpserter, client *http.Client, concurrency int, timeout time.Duration, logger *zap.Logger) *Ingestor {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		store:       store,
		client:      client,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logger,
	}
}

// Run loads the source definitions at sourcesPath and ingests every feed.
// Individual source failures are recorded per source and never abort the
// run; only an unreadable definition file is fatal. Results are re-sorted by
// (group, name) so callers see deterministic ordering regardless of fetch
// completion order.
func (ing *Ingestor) Run(ctx context.Context, sourcesPath string) (*Summary, error) {
	sources, err := LoadSources(sourcesPath)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return &Summary{Feeds: []SourceResult{}}, nil
	}

	jobs := make(chan model.FeedSource)
	results := make(chan SourceResult, len(sources))

	var wg sync.WaitGroup
	for i := 0; i < ing.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range jobs {
				results <- ing.processSource(ctx, src)
			}
		}()
	}

	for _, src := range sources {
		jobs <- src
	}
	close(jobs)
	wg.Wait()
	close(results)

	summary := &Summary{Feeds: make([]SourceResult, 0, len(sources))}
	for res := range results {
		summary.Feeds = append(summary.Feeds, res)
		summary.TotalProcessed += res.Processed
	}
	sort.Slice(summary.Feeds, func(i, j int) bool {
		if summary.Feeds[i].Group != summary.Feeds[j].Group {
			return summary.Feeds[i].Group < summary.Feeds[j].Group
		}
		return summary.Feeds[i].Name < summary.Feeds[j].Name
	})

	ing.logger.Info("fetch-rss run finished",
		zap.Int("sources", len(sources)),
		zap.Int("total_processed", summary.TotalProcessed),
	)
	return summary, nil
}

func (ing *Ingestor) processSource(ctx context.Context, src model.FeedSource) SourceResult {
	result := SourceResult{Group: src.Group, Name: src.Name}

	fetchCtx, cancel := context.WithTimeout(ctx, ing.timeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.Client = ing.client

	parsed, err := parser.ParseURLWithContext(src.URL, fetchCtx)
	if err != nil {
		msg := err.Error()
		result.Error = &msg
		metrics.ObserveFeedFetch(src.Group, "error")
		ing.logger.Warn("feed fetch failed",
			zap.String("group", src.Group),
			zap.String("name", src.Name),
			zap.String("url", src.URL),
			zap.Error(err),
		)
		return result
	}

	entries := entriesFromFeed(parsed)
	processed, err := ing.store.UpsertEntries(ctx, entries, src.Group)
	if err != nil {
		msg := err.Error()
		result.Error = &msg
		metrics.ObserveFeedFetch(src.Group, "error")
		ing.logger.Error("queue upsert failed",
			zap.String("group", src.Group),
			zap.String("name", src.Name),
			zap.Error(err),
		)
		return result
	}

	result.Processed = processed
	metrics.ObserveFeedFetch(src.Group, "ok")
	metrics.AddQueueEntriesUpserted(processed)
	return result
}

// entriesFromFeed converts parsed feed items into queue candidates. Items
// without an extractable link are dropped; they cannot serve as a queue key.
func entriesFromFeed(parsed *gofeed.Feed) []model.NewQueueEntry {
	entries := make([]model.NewQueueEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		link := ExtractLink(item)
		if link == "" {
			continue
		}

		title := item.Title
		if title == "" {
			title = titleFallback
		}

		var pubDate *time.Time
		switch {
		case item.PublishedParsed != nil:
			pubDate = item.PublishedParsed
		case item.UpdatedParsed != nil:
			pubDate = item.UpdatedParsed
		}

		description := item.Description
		if description == "" {
			description = item.Content
		}

		entries = append(entries, model.NewQueueEntry{
			Link:        link,
			Title:       title,
			PubDate:     pubDate,
			Description: description,
		})
	}
	return entries
}
