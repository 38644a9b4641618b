package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/calltrail/internal/domain"
)

type stubResolver struct {
	peers map[string][]domain.Peer
}

func (s stubResolver) Resolve(_ context.Context, id string) ([]domain.Peer, error) {
	return s.peers[id], nil
}

type stubClient struct {
	usage   map[string]domain.UsageCounters
	history map[string][]domain.Record
	fail    map[string]bool
	hang    map[string]bool
}

func (s stubClient) wait(ctx context.Context, peer domain.Peer) error {
	if s.hang[peer.Name] {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.fail[peer.Name] {
		return errors.New("connection refused")
	}
	return nil
}

func (s stubClient) FetchUsage(ctx context.Context, peer domain.Peer) (domain.ServerUsage, error) {
	if err := s.wait(ctx, peer); err != nil {
		return domain.ServerUsage{}, err
	}
	return domain.ServerUsage{InstanceID: peer.Name + "-id", Stats: s.usage[peer.Name]}, nil
}

func (s stubClient) FetchHistory(ctx context.Context, peer domain.Peer) (domain.ServerHistory, error) {
	if err := s.wait(ctx, peer); err != nil {
		return domain.ServerHistory{}, err
	}
	calls := s.history[peer.Name]
	return domain.ServerHistory{TotalEntries: len(calls), Calls: calls}, nil
}

func counters(total, ok uint64, tools map[string]uint64, first, last int64) domain.UsageCounters {
	return domain.UsageCounters{
		TotalCalls:      total,
		SuccessfulCalls: ok,
		FailedCalls:     total - ok,
		ToolCounts:      tools,
		FirstUsed:       domain.TimestampFromMillis(first),
		LastUsed:        domain.TimestampFromMillis(last),
	}
}

func threePeers() stubResolver {
	return stubResolver{peers: map[string][]domain.Peer{
		"conn": {{Name: "p1", URL: "http://p1"}, {Name: "p2", URL: "http://p2"}, {Name: "p3", URL: "http://p3"}},
	}}
}

func TestAggregatorUsagePartialFailure(t *testing.T) {
	agg := &Aggregator{
		Resolver: threePeers(),
		Client: stubClient{
			usage: map[string]domain.UsageCounters{
				"p1": counters(10, 9, map[string]uint64{"a": 6, "b": 4}, 1_000, 5_000),
				"p3": counters(5, 4, map[string]uint64{"a": 5}, 2_000, 10_000),
			},
			fail: map[string]bool{"p2": true},
		},
	}

	got, err := agg.Usage(context.Background(), "conn")
	if err != nil {
		t.Fatalf("Usage error: %v", err)
	}
	if len(got.Servers) != 3 || got.AvailableCount() != 2 {
		t.Fatalf("servers = %+v", got.Servers)
	}
	if got.Servers[1].Available || got.Servers[1].Error == "" || got.Servers[1].Peer != "p2" {
		t.Errorf("p2 should be unavailable with an error, got %+v", got.Servers[1])
	}
	if got.Totals.TotalCalls != 15 || got.Totals.SuccessfulCalls != 13 || got.Totals.FailedCalls != 2 {
		t.Errorf("totals = %+v", got.Totals)
	}
	if diff := cmp.Diff(map[string]uint64{"a": 11, "b": 4}, got.Totals.ToolCounts); diff != "" {
		t.Errorf("tool counts (-want +got):\n%s", diff)
	}
	if got.SessionDurationMS != 8_000 {
		t.Errorf("SessionDurationMS = %d, want max per-process 8000", got.SessionDurationMS)
	}
	rate := got.Totals.SuccessRate()
	if rate < 86.6 || rate > 86.7 {
		t.Errorf("success rate = %f", rate)
	}
}

func TestAggregatorHistoryFlattensInPeerOrder(t *testing.T) {
	mk := func(name string) domain.Record { return domain.Record{ToolName: name} }
	agg := &Aggregator{
		Resolver: threePeers(),
		Client: stubClient{
			history: map[string][]domain.Record{
				"p1": {mk("p1-a"), mk("p1-b")},
				"p2": {mk("p2-a")},
				"p3": {mk("p3-a")},
			},
			fail: map[string]bool{"p2": true},
		},
	}

	got, err := agg.History(context.Background(), "conn")
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	var tools []string
	for _, c := range got.Calls {
		tools = append(tools, c.ToolName)
	}
	if diff := cmp.Diff([]string{"p1-a", "p1-b", "p3-a"}, tools); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
	if got.TotalCalls != 3 {
		t.Errorf("TotalCalls = %d", got.TotalCalls)
	}
}

func TestAggregatorAllUnavailable(t *testing.T) {
	agg := &Aggregator{
		Resolver: threePeers(),
		Client:   stubClient{fail: map[string]bool{"p1": true, "p2": true, "p3": true}},
	}
	got, err := agg.Usage(context.Background(), "conn")
	if err != nil {
		t.Fatalf("Usage error: %v", err)
	}
	if got.AvailableCount() != 0 || got.Totals.TotalCalls != 0 || got.Totals.SuccessRate() != 0 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestAggregatorTimeoutDoesNotDelaySiblings(t *testing.T) {
	agg := &Aggregator{
		Resolver: threePeers(),
		Client: stubClient{
			usage: map[string]domain.UsageCounters{"p1": counters(1, 1, map[string]uint64{"a": 1}, 0, 0)},
			hang:  map[string]bool{"p2": true},
		},
		Timeout:     50 * time.Millisecond,
		Parallelism: 3,
	}

	started := time.Now()
	got, err := agg.Usage(context.Background(), "conn")
	if err != nil {
		t.Fatalf("Usage error: %v", err)
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("aggregation took %v", elapsed)
	}
	if !got.Servers[0].Available || got.Servers[1].Available || !got.Servers[2].Available {
		t.Fatalf("availability = %v %v %v", got.Servers[0].Available, got.Servers[1].Available, got.Servers[2].Available)
	}
}

func TestAggregatorConnectionErrors(t *testing.T) {
	agg := &Aggregator{Resolver: threePeers(), Client: stubClient{}}
	if _, err := agg.Usage(context.Background(), ""); !errors.Is(err, domain.ErrMissingConnection) {
		t.Errorf("empty connection error = %v", err)
	}
	if _, err := agg.History(context.Background(), "nope"); !errors.Is(err, domain.ErrUnknownConnection) {
		t.Errorf("unknown connection error = %v", err)
	}
}
