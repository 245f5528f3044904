// Package model defines the persistent and wire-level types shared by the
// ingestion pipeline, the content fetcher, and the read API.
package model

import (
	"time"

	"github.com/google/uuid"
)

// QueueEntry is one discovered feed item in the queue table. StatusCode is
// nil until the first content fetch attempt; after that it holds the most
// recent fetch outcome, which may be a non-success code.
type QueueEntry struct {
	ID          uuid.UUID  `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Link        string     `json:"link"`
	Title       string     `json:"title"`
	PubDate     *time.Time `json:"pub_date"`
	Description string     `json:"description"`
	StatusCode  *int       `json:"status_code"`
	Group       *string    `json:"group"`
}

// NewQueueEntry carries the fields of a freshly parsed feed item ahead of the
// upsert. The row id and timestamps are assigned by the store.
type NewQueueEntry struct {
	Link        string
	Title       string
	PubDate     *time.Time
	Description string
}

// Article is a queue row joined with its fetched content. Data holds the
// brotli-compressed body as stored; it is never decompressed on the read path.
type Article struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Link        string
	Title       string
	PubDate     *time.Time
	Description string
	Data        []byte
	Group       *string
}

// ArticleCursor is a keyset pagination position taken from a previously
// returned article. The compound (CreatedAt, ID) order is what keeps the walk
// stable when bulk inserts share a timestamp.
type ArticleCursor struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

// FeedSource is one flattened feed definition from the source YAML.
//
// WaitForSelector and Timeout are per-source hints for the scraping service,
// accepted in detailed YAML entries and mirrored on ScrapeRequest. Queue rows
// do not carry them, so content fetches currently send the URL alone; the
// fields are kept so source files declaring hints keep parsing and the wire
// contract stays complete.
type FeedSource struct {
	Group           string
	Name            string
	URL             string
	WaitForSelector string
	Timeout         *int
}

// ScrapeRequest is the JSON body sent to the scraping service's /fetch
// endpoint.
type ScrapeRequest struct {
	URL             string `json:"url"`
	WaitForSelector string `json:"wait_for_selector,omitempty"`
	Timeout         *int   `json:"timeout,omitempty"`
}

// ScrapeResponse is the scraping service's reply. The pipeline only inspects
// HTML and StatusCode; the remaining fields are carried for logging.
type ScrapeResponse struct {
	HTML       string  `json:"html"`
	StatusCode int     `json:"status_code"`
	Title      string  `json:"title"`
	FinalURL   string  `json:"final_url"`
	ElapsedMs  float64 `json:"elapsed_ms"`
	Timestamp  string  `json:"timestamp"`
}
