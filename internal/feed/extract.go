// Package feed loads feed source definitions and ingests feed items into the
// queue store.
package feed

import (
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
)

// urlPattern matches an http(s) URL up to the first character that cannot be
// part of one inside prose: whitespace, quotes, angle brackets or parentheses.
var urlPattern = regexp.MustCompile(`https?://[^\s"'<>()]+`)

// trailingPunct holds punctuation commonly glued to a URL quoted in summary
// text.
const trailingPunct = `)]"',.;`

// ExtractLink returns the best-effort absolute URL for a feed entry, or ""
// when none can be found. Preference order: the entry's declared links, then
// a URL-shaped substring in its summary, then one in its content body.
// Entries without any extractable link cannot be queued and are dropped by
// the caller.
func ExtractLink(item *gofeed.Item) string {
	for _, href := range item.Links {
		if trimmed := strings.TrimSpace(href); trimmed != "" {
			return trimmed
		}
	}
	if trimmed := strings.TrimSpace(item.Link); trimmed != "" {
		return trimmed
	}
	if url := scanForURL(item.Description); url != "" {
		return url
	}
	return scanForURL(item.Content)
}

func scanForURL(text string) string {
	match := urlPattern.FindString(text)
	if match == "" {
		return ""
	}
	trimmed := strings.TrimRight(match, trailingPunct)
	// A match like "http://..." trims down to a bare scheme; that is not a
	// usable link.
	if rest := trimmed[strings.Index(trimmed, "://")+3:]; rest == "" {
		return ""
	}
	return trimmed
}
