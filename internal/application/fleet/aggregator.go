// Package fleet combines usage counters and history snapshots across every
// process reachable through a connection.
package fleet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/ports"
)

// Aggregator fans snapshot requests out to the peers of a connection. A peer
// that fails or times out is reported as unavailable; it never fails the
// aggregation as a whole.
type Aggregator struct {
	Resolver    ports.PeerResolver
	Client      ports.PeerClient
	Timeout     time.Duration
	Parallelism int
	Logger      ports.Logger
	Metrics     ports.Metrics
}

// Usage sums the usage counters of every available peer.
func (a *Aggregator) Usage(ctx context.Context, connectionID string) (domain.FleetUsage, error) {
	peers, err := a.resolve(ctx, connectionID)
	if err != nil {
		return domain.FleetUsage{}, err
	}

	servers := make([]domain.ServerUsage, len(peers))
	a.fanOut(ctx, peers, "usage", func(ctx context.Context, i int, peer domain.Peer) error {
		res, err := a.Client.FetchUsage(ctx, peer)
		if err != nil {
			servers[i] = domain.ServerUsage{Peer: peer.Name, Error: err.Error()}
			return err
		}
		res.Peer = peer.Name
		res.Available = true
		servers[i] = res
		return nil
	})

	out := domain.FleetUsage{
		ConnectionID: connectionID,
		Servers:      servers,
		Totals:       domain.NewUsageCounters(),
	}
	for _, s := range servers {
		if !s.Available {
			continue
		}
		out.Totals.Merge(s.Stats)
		if d := s.Stats.SessionDurationMS(); d > out.SessionDurationMS {
			out.SessionDurationMS = d
		}
	}
	return out, nil
}

// History flattens the retained records of every available peer, in peer
// order.
func (a *Aggregator) History(ctx context.Context, connectionID string) (domain.FleetHistory, error) {
	peers, err := a.resolve(ctx, connectionID)
	if err != nil {
		return domain.FleetHistory{}, err
	}

	servers := make([]domain.ServerHistory, len(peers))
	a.fanOut(ctx, peers, "history", func(ctx context.Context, i int, peer domain.Peer) error {
		res, err := a.Client.FetchHistory(ctx, peer)
		if err != nil {
			servers[i] = domain.ServerHistory{Peer: peer.Name, Error: err.Error()}
			return err
		}
		res.Peer = peer.Name
		res.Available = true
		servers[i] = res
		return nil
	})

	out := domain.FleetHistory{
		ConnectionID: connectionID,
		Servers:      servers,
		Calls:        []domain.Record{},
	}
	for _, s := range servers {
		if !s.Available {
			continue
		}
		out.Calls = append(out.Calls, s.Calls...)
		out.TotalCalls += s.TotalEntries
	}
	return out, nil
}

func (a *Aggregator) resolve(ctx context.Context, connectionID string) ([]domain.Peer, error) {
	if strings.TrimSpace(connectionID) == "" {
		return nil, domain.ErrMissingConnection
	}
	if a.Resolver == nil || a.Client == nil {
		return nil, fmt.Errorf("fleet aggregator dependencies not satisfied")
	}
	peers, err := a.Resolver.Resolve(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if len(peers) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownConnection, connectionID)
	}
	return peers, nil
}

// fanOut runs fetch once per peer with bounded parallelism. Each call gets
// its own deadline; fetch errors are recorded, not propagated, so one slow
// or broken peer cannot cancel its siblings.
func (a *Aggregator) fanOut(ctx context.Context, peers []domain.Peer, kind string, fetch func(context.Context, int, domain.Peer) error) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultFleetTimeout
	}
	limit := a.Parallelism
	if limit <= 0 {
		limit = domain.DefaultFleetParallelism
	}
	metrics := a.Metrics
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	var grp errgroup.Group
	grp.SetLimit(limit)
	for i, peer := range peers {
		grp.Go(func() error {
			peerCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			started := time.Now()
			err := fetch(peerCtx, i, peer)
			metrics.PeerFetch(kind, err == nil, time.Since(started))
			if err != nil && a.Logger != nil {
				a.Logger.Warn("peer unavailable", map[string]interface{}{
					"peer":  peer.Name,
					"url":   peer.URL,
					"kind":  kind,
					"error": err.Error(),
				})
			}
			return nil
		})
	}
	_ = grp.Wait()
}
