package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// GetFleetTimeout returns the per-peer request timeout.
// Falls back to DefaultFleetTimeout when unset or unparseable.
func (c *Config) GetFleetTimeout() time.Duration {
	if c.Fleet.Timeout == "" {
		return DefaultFleetTimeout
	}
	d, err := time.ParseDuration(c.Fleet.Timeout)
	if err != nil || d <= 0 {
		return DefaultFleetTimeout
	}
	return d
}

// GetFleetParallelism returns how many peers may be queried at once.
func (c *Config) GetFleetParallelism() int {
	if c.Fleet.Parallelism <= 0 {
		return DefaultFleetParallelism
	}
	return c.Fleet.Parallelism
}

// GetDefaultConnection returns the connection used when a caller names none.
func (c *Config) GetDefaultConnection() string {
	if strings.TrimSpace(c.Fleet.DefaultConnection) == "" {
		return DefaultConnectionID
	}
	return c.Fleet.DefaultConnection
}

// FindConnection returns the peers declared for a connection id.
func (c *Config) FindConnection(id string) ([]Peer, bool) {
	defs, ok := c.Fleet.Connections[id]
	if !ok {
		return nil, false
	}
	peers := make([]Peer, 0, len(defs))
	for i, def := range defs {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			name = def.URL
		}
		if name == "" {
			name = fmt.Sprintf("peer-%d", i+1)
		}
		peers = append(peers, Peer{Name: name, URL: strings.TrimSpace(def.URL)})
	}
	return peers, true
}

// ConnectionIDs lists configured connections in lexical order.
func (c *Config) ConnectionIDs() []string {
	ids := make([]string, 0, len(c.Fleet.Connections))
	for id := range c.Fleet.Connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetJournalDriver returns the durable log driver, jsonl by default.
func (c *Config) GetJournalDriver() string {
	driver := strings.ToLower(strings.TrimSpace(c.Journal.Driver))
	if driver == "" {
		return JournalDriverJSONL
	}
	return driver
}

// GetJournalQueueSize returns the background writer queue bound.
func (c *Config) GetJournalQueueSize() int {
	if c.Journal.QueueSize <= 0 {
		return DefaultJournalQueueSize
	}
	return c.Journal.QueueSize
}

// GetListenAddr returns the HTTP listen address.
func (c *Config) GetListenAddr() string {
	if c.Server.Listen == "" {
		return DefaultListenAddr
	}
	return c.Server.Listen
}
