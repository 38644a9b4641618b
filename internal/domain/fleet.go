package domain

// Peer is one process reachable through a connection.
type Peer struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ServerUsage is one fleet member's answer to a usage request.
type ServerUsage struct {
	Peer       string        `json:"peer"`
	InstanceID string        `json:"instance_id,omitempty"`
	Available  bool          `json:"available"`
	Error      string        `json:"error,omitempty"`
	Stats      UsageCounters `json:"stats"`
}

// ServerHistory is one fleet member's answer to a history request.
type ServerHistory struct {
	Peer         string   `json:"peer"`
	InstanceID   string   `json:"instance_id,omitempty"`
	Available    bool     `json:"available"`
	Error        string   `json:"error,omitempty"`
	TotalEntries int      `json:"total_entries"`
	Calls        []Record `json:"calls"`
}

// FleetUsage combines usage counters across every process of a connection.
// Totals cover available servers only.
type FleetUsage struct {
	ConnectionID      string        `json:"connection_id"`
	Servers           []ServerUsage `json:"servers"`
	Totals            UsageCounters `json:"totals"`
	SessionDurationMS int64         `json:"session_duration_ms"`
}

// AvailableCount reports how many servers answered.
func (f FleetUsage) AvailableCount() int {
	n := 0
	for _, s := range f.Servers {
		if s.Available {
			n++
		}
	}
	return n
}

// FleetHistory combines history snapshots across every process of a
// connection. Calls holds available servers' records in server order.
type FleetHistory struct {
	ConnectionID string          `json:"connection_id"`
	Servers      []ServerHistory `json:"servers"`
	Calls        []Record        `json:"calls"`
	TotalCalls   int             `json:"total_calls"`
}

// AvailableCount reports how many servers answered.
func (f FleetHistory) AvailableCount() int {
	n := 0
	for _, s := range f.Servers {
		if s.Available {
			n++
		}
	}
	return n
}
