package types

import (
	"strconv"
	"time"
)

// AuthorUnknown is substituted when a post carries no readable author element.
const AuthorUnknown = "Unknown"

// PostRecord is a single extracted community post. Records are built once by
// the parser and never mutated afterwards; the field order here also fixes
// the CSV column order so JSON and CSV exports always agree.
type PostRecord struct {
	// ID is the platform-assigned identifier, or a URL-derived one when the
	// platform omits it. Unique within a run; the deduplication key.
	ID string `json:"id"`

	// Title is the explicit post title, or a prefix synthesized from Content.
	Title string `json:"title"`

	// Content is the full post body text. Empty string when absent, never null.
	Content string `json:"content"`

	// Author is the display name, or AuthorUnknown when extraction fails.
	Author string `json:"author"`

	// Timestamp is RFC 3339 UTC when the source time was parseable, otherwise
	// the raw source text is retained and TimestampParsed is false.
	Timestamp string `json:"timestamp"`

	// TimestampParsed reports whether Timestamp is a normalized value.
	TimestampParsed bool `json:"timestamp_parsed"`

	// Likes and CommentsCount are non-negative; abbreviated counters
	// ("1.2k", "3m") are expanded at parse time.
	Likes         int `json:"likes"`
	CommentsCount int `json:"comments_count"`

	// URL is the absolute link to the post. Empty only when the platform id
	// was present but no link was.
	URL string `json:"url"`

	// Category is optional and empty when the post has none.
	Category string `json:"category"`
}

// CSVHeader lists the export columns in their fixed order.
func CSVHeader() []string {
	return []string{
		"id",
		"title",
		"content",
		"author",
		"timestamp",
		"timestamp_parsed",
		"likes",
		"comments_count",
		"url",
		"category",
	}
}

// CSVRow renders the record as one CSV row, aligned with CSVHeader.
func (p PostRecord) CSVRow() []string {
	return []string{
		p.ID,
		p.Title,
		p.Content,
		p.Author,
		p.Timestamp,
		strconv.FormatBool(p.TimestampParsed),
		strconv.Itoa(p.Likes),
		strconv.Itoa(p.CommentsCount),
		p.URL,
		p.Category,
	}
}

// RunStats tracks what happened during one scrape run. The engine is
// single-threaded, so plain fields are enough.
type RunStats struct {
	PostsCollected    int
	PostsDuplicate    int
	PostsSkipped      int
	ScrollPasses      int
	Stalls            int
	TimestampFailures int
	StartTime         time.Time
	Elapsed           time.Duration
}

// NewRunStats returns stats anchored at the current time.
func NewRunStats() *RunStats {
	return &RunStats{StartTime: time.Now()}
}

// Snapshot returns the stats as a map for structured logging.
func (s *RunStats) Snapshot() map[string]any {
	return map[string]any{
		"posts_collected":    s.PostsCollected,
		"posts_duplicate":    s.PostsDuplicate,
		"posts_skipped":      s.PostsSkipped,
		"scroll_passes":      s.ScrollPasses,
		"stalls":             s.Stalls,
		"timestamp_failures": s.TimestampFailures,
		"elapsed":            s.Elapsed.String(),
	}
}
