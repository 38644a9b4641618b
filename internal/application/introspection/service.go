// Package introspection answers questions about the calls this process (or a
// whole fleet) has handled, and records new ones.
package introspection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doeshing/calltrail/internal/application/history"
	"github.com/doeshing/calltrail/internal/application/usage"
	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/ports"
)

// FleetReader is the part of the fleet aggregator the service needs.
type FleetReader interface {
	Usage(ctx context.Context, connectionID string) (domain.FleetUsage, error)
	History(ctx context.Context, connectionID string) (domain.FleetHistory, error)
}

// ToolCallsReport is a history query result plus its one-glance summary.
type ToolCallsReport struct {
	Result  domain.ToolCallsResult `json:"result"`
	Summary string                 `json:"summary"`
}

// UsageReport is a usage result plus its one-glance summary.
type UsageReport struct {
	Result  domain.UsageResult `json:"result"`
	Summary string             `json:"summary"`
}

// Service ties the history store, the usage counters and the fleet
// aggregator together.
type Service struct {
	Store    *history.Store
	Counters *usage.Counters
	Fleet    FleetReader
	Logger   ports.Logger
	Metrics  ports.Metrics
	Now      func() time.Time
}

func (s *Service) ready() error {
	if s.Store == nil || s.Counters == nil {
		return errors.New("introspection.Service dependencies not satisfied")
	}
	return nil
}

// Record stores a completed invocation and counts it.
func (s *Service) Record(_ context.Context, inv domain.Invocation) (domain.Record, error) {
	if err := s.ready(); err != nil {
		return domain.Record{}, err
	}
	if err := inv.Validate(); err != nil {
		return domain.Record{}, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	rec, err := s.Store.Append(inv.Record(now()))
	if err != nil {
		return domain.Record{}, err
	}
	if err := s.Counters.Record(rec); err != nil {
		return domain.Record{}, fmt.Errorf("update counters: %w", err)
	}
	if s.Metrics != nil {
		s.Metrics.CallRecorded(rec.ToolName, rec.Success, time.Duration(rec.DurationMS)*time.Millisecond)
	}
	if s.Logger != nil {
		s.Logger.Debug("tool call recorded", map[string]interface{}{
			"tool_name":   rec.ToolName,
			"seq":         rec.Seq,
			"duration_ms": rec.DurationMS,
			"success":     rec.Success,
		})
	}
	return rec, nil
}

// RecentToolCalls queries this process's history.
func (s *Service) RecentToolCalls(q domain.HistoryQuery) (ToolCallsReport, error) {
	if err := s.ready(); err != nil {
		return ToolCallsReport{}, err
	}
	page, err := s.Store.Query(q)
	if err != nil {
		return ToolCallsReport{}, err
	}
	result := domain.NewToolCallsResult(q, page)
	return ToolCallsReport{Result: result, Summary: HistorySummary(result)}, nil
}

// UsageStats reports this process's counters.
func (s *Service) UsageStats() (UsageReport, error) {
	if err := s.ready(); err != nil {
		return UsageReport{}, err
	}
	counters, err := s.Counters.Snapshot()
	if err != nil {
		return UsageReport{}, err
	}
	result := domain.NewUsageResult(counters, counters.SessionDurationMS())
	return UsageReport{Result: result, Summary: UsageSummary(result)}, nil
}

// InspectToolCalls queries the combined history of every process behind
// connectionID. The query is validated before any peer is contacted.
func (s *Service) InspectToolCalls(ctx context.Context, connectionID string, q domain.HistoryQuery) (ToolCallsReport, error) {
	if s.Fleet == nil {
		return ToolCallsReport{}, errors.New("introspection.Service has no fleet reader")
	}
	criteria, err := history.ParseQuery(q)
	if err != nil {
		return ToolCallsReport{}, err
	}
	fleet, err := s.Fleet.History(ctx, connectionID)
	if err != nil {
		return ToolCallsReport{}, err
	}
	calls := history.Select(fleet.Calls, criteria)
	result := domain.NewToolCallsResult(q, domain.HistoryPage{
		Calls:                calls,
		Count:                len(calls),
		TotalEntriesInMemory: fleet.TotalCalls,
	})
	return ToolCallsReport{Result: result, Summary: HistorySummary(result)}, nil
}

// InspectUsageStats reports the combined counters of every process behind
// connectionID.
func (s *Service) InspectUsageStats(ctx context.Context, connectionID string) (UsageReport, error) {
	if s.Fleet == nil {
		return UsageReport{}, errors.New("introspection.Service has no fleet reader")
	}
	fleet, err := s.Fleet.Usage(ctx, connectionID)
	if err != nil {
		return UsageReport{}, err
	}
	result := domain.NewUsageResult(fleet.Totals, fleet.SessionDurationMS)
	return UsageReport{Result: result, Summary: UsageSummary(result)}, nil
}

// UsageSnapshot is this process's answer to a fleet usage request.
func (s *Service) UsageSnapshot() (domain.ServerUsage, error) {
	if err := s.ready(); err != nil {
		return domain.ServerUsage{}, err
	}
	counters, err := s.Counters.Snapshot()
	if err != nil {
		return domain.ServerUsage{}, err
	}
	return domain.ServerUsage{
		InstanceID: s.Counters.InstanceID(),
		Available:  true,
		Stats:      counters,
	}, nil
}

// HistorySnapshot is this process's answer to a fleet history request.
func (s *Service) HistorySnapshot() (domain.ServerHistory, error) {
	if err := s.ready(); err != nil {
		return domain.ServerHistory{}, err
	}
	records, err := s.Store.Snapshot()
	if err != nil {
		return domain.ServerHistory{}, err
	}
	return domain.ServerHistory{
		InstanceID:   s.Store.InstanceID(),
		Available:    true,
		TotalEntries: len(records),
		Calls:        records,
	}, nil
}
