package domain

// HistoryQuery carries the filter and pagination arguments of a history
// request exactly as the caller supplied them. Since stays a raw string so it
// can be echoed back; it is parsed before the store is touched.
type HistoryQuery struct {
	MaxResults int    `json:"max_results"`
	Offset     int    `json:"offset"`
	ToolName   string `json:"tool_name,omitempty"`
	Since      string `json:"since,omitempty"`
}

// DefaultHistoryQuery returns the first page with default size.
func DefaultHistoryQuery() HistoryQuery {
	return HistoryQuery{MaxResults: DefaultMaxResults}
}

// HistoryPage is a query result over a Record sequence.
type HistoryPage struct {
	Calls                []Record `json:"calls"`
	Count                int      `json:"count"`
	TotalEntriesInMemory int      `json:"total_entries_in_memory"`
}

// HistoryStats describes the in-memory store.
type HistoryStats struct {
	TotalEntries int `json:"total_entries"`
}
