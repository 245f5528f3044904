// Package articles implements keyset pagination over the fetched article
// corpus.
package articles

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tndd/datadoggo-v3-rss/internal/model"
	"github.com/tndd/datadoggo-v3-rss/internal/storage/postgres"
)

const (
	// DefaultLimit is used when the caller omits a limit; it is also the
	// hard ceiling a larger request is clamped to.
	DefaultLimit = 500
	// MaxLimit is the clamp ceiling for caller-provided limits.
	MaxLimit = 500

	// ResponseByteBudget caps the cumulative size of encoded content in one
	// page.
	ResponseByteBudget = 50 * 1024 * 1024
)

var (
	// ErrInvalidLimit marks a non-positive caller-provided limit.
	ErrInvalidLimit = errors.New("limit must be a positive integer")
	// ErrCursorNotFound marks a page token that resolves to no known row.
	ErrCursorNotFound = errors.New("page token not found")
	// ErrRowTooLarge marks a single row whose encoded size alone exceeds
	// the response budget.
	ErrRowTooLarge = errors.New("article exceeds response size budget")
)

// Store is the read surface the pager needs.
type Store interface {
	FindCursor(ctx context.Context, id uuid.UUID) (model.ArticleCursor, error)
	SearchArticlesWindow(ctx context.Context, limit int, cursor *model.ArticleCursor) ([]model.Article, error)
}

// Item is one article row as served by the read API. ContentEncoded carries
// the stored compressed payload in base64; clients decompress after decoding.
type Item struct {
	ID             uuid.UUID  `json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Link           string     `json:"link"`
	Title          string     `json:"title"`
	PubDate        *time.Time `json:"pub_date"`
	Description    string     `json:"description"`
	Group          *string    `json:"group"`
	ContentEncoded string     `json:"content_encoded"`
}

// Page is one window of the article corpus. NextToken is present only when
// more rows remain past the last included item.
type Page struct {
	Items     []Item  `json:"items"`
	NextToken *string `json:"next_token"`
}

// Pager walks the article corpus newest-first with a stable
// (created_at DESC, id DESC) keyset order.
type Pager struct {
	store  Store
	logger *zap.Logger
}

// NewPager constructs a Pager.
func NewPager(store Store, logger *zap.Logger) *Pager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pager{store: store, logger: logger}
}

// Page returns up to limit articles after the position identified by
// pageToken (empty token means the newest edge). The limit must be positive
// and is clamped to MaxLimit. The continuation token of the returned page is
// the id of its last item; it is absent on the final page.
func (p *Pager) Page(ctx context.Context, limit int, pageToken string) (*Page, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var cursor *model.ArticleCursor
	if pageToken != "" {
		id, err := uuid.Parse(pageToken)
		if err != nil {
			return nil, ErrCursorNotFound
		}
		found, err := p.store.FindCursor(ctx, id)
		if err != nil {
			if errors.Is(err, postgres.ErrNotFound) {
				return nil, ErrCursorNotFound
			}
			return nil, fmt.Errorf("resolve page token: %w", err)
		}
		cursor = &found
	}

	// One extra row tells us whether a further page exists.
	rows, err := p.store.SearchArticlesWindow(ctx, limit+1, cursor)
	if err != nil {
		return nil, fmt.Errorf("search article window: %w", err)
	}

	moreByCount := len(rows) == limit+1
	if moreByCount {
		rows = rows[:limit]
	}

	page := &Page{Items: make([]Item, 0, len(rows))}
	truncatedByBudget := false
	budgetUsed := 0
	for _, row := range rows {
		encodedLen := base64.StdEncoding.EncodedLen(len(row.Data))
		if encodedLen > ResponseByteBudget {
			p.logger.Warn("article exceeds response budget",
				zap.String("id", row.ID.String()),
				zap.Int("encoded_bytes", encodedLen),
			)
			return nil, ErrRowTooLarge
		}
		if budgetUsed+encodedLen > ResponseByteBudget {
			truncatedByBudget = true
			break
		}
		budgetUsed += encodedLen
		page.Items = append(page.Items, Item{
			ID:             row.ID,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
			Link:           row.Link,
			Title:          row.Title,
			PubDate:        row.PubDate,
			Description:    row.Description,
			Group:          row.Group,
			ContentEncoded: base64.StdEncoding.EncodeToString(row.Data),
		})
	}

	if (moreByCount || truncatedByBudget) && len(page.Items) > 0 {
		token := page.Items[len(page.Items)-1].ID.String()
		page.NextToken = &token
	}
	return page, nil
}
