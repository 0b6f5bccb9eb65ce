package engine

import (
	"github.com/IshaanNene/skoolstalk/internal/types"
)

// Collector is the run's only mutable state: the seen-key sets and the
// ordered collection. One Collector exists per invocation and is never
// shared, so runs stay independently testable.
//
// Scroll pagination re-renders posts it already showed, so the same record
// arrives here many times. The id is the primary key; the url is tracked as
// a secondary key because the platform does not promise id stability across
// re-renders.
type Collector struct {
	seenIDs  map[string]struct{}
	seenURLs map[string]struct{}
	records  []types.PostRecord
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		seenIDs:  make(map[string]struct{}),
		seenURLs: make(map[string]struct{}),
	}
}

// Offer appends the record and returns true the first time its identity is
// seen; every later occurrence returns false and the record is discarded.
// The collection order is the order in which distinct records were first
// offered, no matter how often they reappear afterwards.
func (c *Collector) Offer(rec types.PostRecord) bool {
	if _, ok := c.seenIDs[rec.ID]; ok {
		return false
	}
	if rec.URL != "" {
		if _, ok := c.seenURLs[rec.URL]; ok {
			return false
		}
		c.seenURLs[rec.URL] = struct{}{}
	}
	c.seenIDs[rec.ID] = struct{}{}
	c.records = append(c.records, rec)
	return true
}

// Records returns the ordered collection. The slice is the collector's own;
// callers must not mutate it while the run is still offering.
func (c *Collector) Records() []types.PostRecord {
	return c.records
}

// Len returns the number of distinct records collected.
func (c *Collector) Len() int {
	return len(c.records)
}
