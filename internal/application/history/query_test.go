package history

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/calltrail/internal/domain"
)

func names(records []domain.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ToolName)
	}
	return out
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   domain.HistoryQuery
		wantErr bool
	}{
		{name: "defaults", query: domain.DefaultHistoryQuery()},
		{name: "rfc3339 since", query: domain.HistoryQuery{MaxResults: 5, Since: "2024-01-01T00:00:00Z"}},
		{name: "epoch since", query: domain.HistoryQuery{MaxResults: 5, Since: "1700000000"}},
		{name: "negative max results", query: domain.HistoryQuery{MaxResults: -1}, wantErr: true},
		{name: "garbage since", query: domain.HistoryQuery{MaxResults: 5, Since: "yesterday"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuery(tt.query)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidFilter) {
					t.Fatalf("error = %v, want ErrInvalidFilter", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	records := []domain.Record{
		call("a", 1), call("b", 2), call("a", 3), call("c", 4), call("a", 5),
	}
	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{name: "all most recent first", criteria: Criteria{MaxResults: 50}, want: []string{"a", "c", "a", "b", "a"}},
		{name: "tool filter", criteria: Criteria{MaxResults: 50, ToolName: "a"}, want: []string{"a", "a", "a"}},
		{name: "max results", criteria: Criteria{MaxResults: 2}, want: []string{"a", "c"}},
		{name: "offset", criteria: Criteria{MaxResults: 2, Offset: 3}, want: []string{"b", "a"}},
		{name: "offset past end", criteria: Criteria{MaxResults: 2, Offset: 5}, want: []string{}},
		{name: "negative offset", criteria: Criteria{MaxResults: 50, Offset: -2}, want: []string{"a", "c"}},
		{name: "negative offset clamps", criteria: Criteria{MaxResults: 50, Offset: -99}, want: []string{"a", "c", "a", "b", "a"}},
		{name: "most negative offset clamps", criteria: Criteria{MaxResults: 50, Offset: math.MinInt}, want: []string{"a", "c", "a", "b", "a"}},
		{name: "negative offset capped by max", criteria: Criteria{MaxResults: 1, Offset: -3}, want: []string{"a"}},
		{name: "zero max results", criteria: Criteria{MaxResults: 0}, want: []string{}},
		{name: "unknown tool", criteria: Criteria{MaxResults: 50, ToolName: "zzz"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(Select(records, tt.criteria))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Select mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelectSinceIsInclusive(t *testing.T) {
	records := []domain.Record{call("a", 1), call("b", 2), call("c", 3)}
	c := Criteria{MaxResults: 50, Since: records[1].Timestamp, HasSince: true}
	got := names(Select(records, c))
	if diff := cmp.Diff([]string{"c", "b"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectOrdersByTimestampThenInsertion(t *testing.T) {
	same := call("first", 10)
	later := same
	later.ToolName = "second"
	records := []domain.Record{call("newest", 20), same, later, call("oldest", 1)}

	got := names(Select(records, Criteria{MaxResults: 10}))
	want := []string{"newest", "second", "first", "oldest"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	var records []domain.Record
	for i := 0; i < 100; i++ {
		records = append(records, call(fmt.Sprintf("t%d", i%7), int64(i%13)))
	}
	c := Criteria{MaxResults: 30, Offset: 4}
	first := Select(records, c)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, Select(records, c)); diff != "" {
			t.Fatalf("run %d differs:\n%s", i, diff)
		}
	}
}

func TestPaginationCoversEveryRecordOnce(t *testing.T) {
	var records []domain.Record
	for i := 0; i < 47; i++ {
		records = append(records, call(fmt.Sprintf("t%d", i), int64(i)))
	}
	seen := make(map[string]int)
	for offset := 0; offset < len(records); offset += 10 {
		for _, r := range Select(records, Criteria{MaxResults: 10, Offset: offset}) {
			seen[r.ToolName]++
		}
	}
	if len(seen) != len(records) {
		t.Fatalf("pages covered %d distinct records, want %d", len(seen), len(records))
	}
	for name, n := range seen {
		if n != 1 {
			t.Errorf("%s returned %d times", name, n)
		}
	}
}

func TestStoreQuery(t *testing.T) {
	s := newStore(t, Options{})
	for i := 1; i <= 1200; i++ {
		s.Append(call(fmt.Sprintf("tool-%d", i), int64(i)))
	}

	page, err := s.Query(domain.HistoryQuery{MaxResults: 50, Offset: -1})
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if page.Count != 1 || page.Calls[0].ToolName != "tool-1200" {
		t.Fatalf("offset -1 page = %+v", names(page.Calls))
	}
	if page.TotalEntriesInMemory != domain.MaxEntries {
		t.Errorf("TotalEntriesInMemory = %d", page.TotalEntriesInMemory)
	}

	if _, err := s.Query(domain.HistoryQuery{MaxResults: 5, Since: "not-a-time"}); !errors.Is(err, domain.ErrInvalidFilter) {
		t.Errorf("invalid since error = %v", err)
	}
}

func TestStoreQueryEmpty(t *testing.T) {
	s := newStore(t, Options{})
	page, err := s.Query(domain.DefaultHistoryQuery())
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if page.Count != 0 || page.TotalEntriesInMemory != 0 || page.Calls == nil {
		t.Fatalf("page = %+v", page)
	}
}
