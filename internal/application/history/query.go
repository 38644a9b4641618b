package history

import (
	"fmt"
	"sort"
	"strings"

	"github.com/doeshing/calltrail/internal/domain"
)

// Criteria is a validated HistoryQuery.
type Criteria struct {
	MaxResults int
	Offset     int
	ToolName   string
	Since      domain.Timestamp
	HasSince   bool
}

// ParseQuery validates q. It rejects a negative max_results and a since value
// that is neither RFC 3339 nor an epoch number.
func ParseQuery(q domain.HistoryQuery) (Criteria, error) {
	if q.MaxResults < 0 {
		return Criteria{}, fmt.Errorf("%w: max_results must be >= 0, got %d", domain.ErrInvalidFilter, q.MaxResults)
	}
	c := Criteria{
		MaxResults: q.MaxResults,
		Offset:     q.Offset,
		ToolName:   strings.TrimSpace(q.ToolName),
	}
	if strings.TrimSpace(q.Since) != "" {
		since, err := domain.ParseTimestamp(q.Since)
		if err != nil {
			return Criteria{}, fmt.Errorf("since: %w", err)
		}
		c.Since = since
		c.HasSince = true
	}
	return c, nil
}

// Select applies c to records given in insertion order. The result is sorted
// most recent first, ties going to the later insertion.
//
// A non-negative offset skips that many records from the head. A negative
// offset -K keeps the K most recent matches (all of them when K exceeds the
// match count). Either way at most MaxResults records are returned.
func Select(records []domain.Record, c Criteria) []domain.Record {
	matched := make([]domain.Record, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if c.ToolName != "" && rec.ToolName != c.ToolName {
			continue
		}
		if c.HasSince && rec.Timestamp.Before(c.Since.Time) {
			continue
		}
		matched = append(matched, rec)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp.Time)
	})

	if c.MaxResults <= 0 || len(matched) == 0 {
		return []domain.Record{}
	}

	var window []domain.Record
	if c.Offset >= 0 {
		if c.Offset >= len(matched) {
			return []domain.Record{}
		}
		window = matched[c.Offset:]
	} else if c.Offset < -len(matched) {
		// Compared before negating: -math.MinInt overflows.
		window = matched
	} else {
		window = matched[:-c.Offset]
	}
	if len(window) > c.MaxResults {
		window = window[:c.MaxResults]
	}
	return append([]domain.Record(nil), window...)
}

// Query validates q, then runs it against a snapshot of the store.
func (s *Store) Query(q domain.HistoryQuery) (domain.HistoryPage, error) {
	c, err := ParseQuery(q)
	if err != nil {
		return domain.HistoryPage{}, err
	}
	records, err := s.Snapshot()
	if err != nil {
		return domain.HistoryPage{}, err
	}
	calls := Select(records, c)
	return domain.HistoryPage{
		Calls:                calls,
		Count:                len(calls),
		TotalEntriesInMemory: len(records),
	}, nil
}
