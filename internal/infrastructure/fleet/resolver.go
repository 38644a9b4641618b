// Package fleet provides the transports the aggregator uses to reach the
// processes behind a connection.
package fleet

import (
	"context"
	"fmt"

	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/ports"
)

// ConfigResolver reads connection membership from the configuration on every
// call, so edits to the file apply without a restart.
type ConfigResolver struct {
	Config ports.ConfigProvider
}

// Resolve implements ports.PeerResolver.
func (r ConfigResolver) Resolve(ctx context.Context, connectionID string) ([]domain.Peer, error) {
	cfg, err := r.Config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	peers, ok := cfg.FindConnection(connectionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownConnection, connectionID)
	}
	return peers, nil
}

var _ ports.PeerResolver = ConfigResolver{}
