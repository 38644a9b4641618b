// Package usage maintains the per-process aggregate counters of tool calls.
package usage

import (
	"sync"

	"github.com/doeshing/calltrail/internal/domain"
)

// Counters accumulates call totals for the lifetime of the process.
type Counters struct {
	once sync.Once

	mu          sync.Mutex
	initialized bool
	instanceID  string
	counters    domain.UsageCounters
}

// NewCounters returns counters that reject reads until Init.
func NewCounters() *Counters {
	return &Counters{counters: domain.NewUsageCounters()}
}

// Init enables the counters. Later calls are no-ops.
func (c *Counters) Init(instanceID string) {
	c.once.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.instanceID = instanceID
		c.initialized = true
	})
}

// Record folds one completed call into the counters.
func (c *Counters) Record(rec domain.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return domain.ErrNotInitialized
	}
	u := &c.counters
	u.TotalCalls++
	if rec.Success {
		u.SuccessfulCalls++
	} else {
		u.FailedCalls++
	}
	u.ToolCounts[rec.ToolName]++
	u.ToolDurationsMS[rec.ToolName] += rec.DurationMS

	ts := rec.Timestamp
	if u.FirstUsed.IsZero() || ts.Before(u.FirstUsed.Time) {
		u.FirstUsed = ts
	}
	if ts.After(u.LastUsed.Time) {
		u.LastUsed = ts
	}
	return nil
}

// Snapshot returns a deep copy of the current counters.
func (c *Counters) Snapshot() (domain.UsageCounters, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return domain.UsageCounters{}, domain.ErrNotInitialized
	}
	return c.counters.Clone(), nil
}

// InstanceID returns the id given to Init.
func (c *Counters) InstanceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instanceID
}
