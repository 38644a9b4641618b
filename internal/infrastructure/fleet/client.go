package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/ports"
)

// Endpoints served by every calltrail process.
const (
	UsageSnapshotPath   = "/v1/snapshot/usage"
	HistorySnapshotPath = "/v1/snapshot/history"
	RecordPath          = "/v1/calls"
)

// maxErrorBody bounds how much of a failed response is quoted in errors.
const maxErrorBody = 512

// HTTPClient fetches snapshots from remote processes.
type HTTPClient struct {
	httpClient *http.Client
}

// NewHTTPClient wraps client, or a client with the default timeout when nil.
// Per-request deadlines come from the context.
func NewHTTPClient(client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: domain.DefaultHTTPClientTimeout}
	}
	return &HTTPClient{httpClient: client}
}

// FetchUsage implements ports.PeerClient.
func (c *HTTPClient) FetchUsage(ctx context.Context, peer domain.Peer) (domain.ServerUsage, error) {
	var out domain.ServerUsage
	if err := c.get(ctx, peer, UsageSnapshotPath, &out); err != nil {
		return domain.ServerUsage{}, err
	}
	return out, nil
}

// FetchHistory implements ports.PeerClient.
func (c *HTTPClient) FetchHistory(ctx context.Context, peer domain.Peer) (domain.ServerHistory, error) {
	var out domain.ServerHistory
	if err := c.get(ctx, peer, HistorySnapshotPath, &out); err != nil {
		return domain.ServerHistory{}, err
	}
	return out, nil
}

// PostInvocation records inv on the process listening at baseURL.
func (c *HTTPClient) PostInvocation(ctx context.Context, baseURL string, inv domain.Invocation) (domain.Record, error) {
	payload, err := json.Marshal(inv)
	if err != nil {
		return domain.Record{}, fmt.Errorf("encode invocation: %w", err)
	}
	var out domain.Record
	peer := domain.Peer{Name: baseURL, URL: baseURL}
	if err := c.do(ctx, http.MethodPost, peer, RecordPath, payload, http.StatusCreated, &out); err != nil {
		return domain.Record{}, err
	}
	return out, nil
}

func (c *HTTPClient) get(ctx context.Context, peer domain.Peer, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, peer, path, nil, http.StatusOK, out)
}

func (c *HTTPClient) do(ctx context.Context, method string, peer domain.Peer, path string, payload []byte, want int, out interface{}) error {
	if peer.URL == "" {
		return fmt.Errorf("peer %s has no url", peer.Name)
	}
	endpoint := strings.TrimSuffix(peer.URL, "/") + path
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if payload != nil {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			return fmt.Errorf("%s: unexpected status %s", endpoint, resp.Status)
		}
		return fmt.Errorf("%s: unexpected status %s: %s", endpoint, resp.Status, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

// SnapshotSource is the local process's own view, as served over HTTP.
type SnapshotSource interface {
	UsageSnapshot() (domain.ServerUsage, error)
	HistorySnapshot() (domain.ServerHistory, error)
}

// LocalClient answers for this process without a network hop.
type LocalClient struct {
	Source SnapshotSource
}

// FetchUsage implements ports.PeerClient.
func (c LocalClient) FetchUsage(ctx context.Context, _ domain.Peer) (domain.ServerUsage, error) {
	if err := ctx.Err(); err != nil {
		return domain.ServerUsage{}, err
	}
	return c.Source.UsageSnapshot()
}

// FetchHistory implements ports.PeerClient.
func (c LocalClient) FetchHistory(ctx context.Context, _ domain.Peer) (domain.ServerHistory, error) {
	if err := ctx.Err(); err != nil {
		return domain.ServerHistory{}, err
	}
	return c.Source.HistorySnapshot()
}

// Router sends peers whose URL is "local" to Local and the rest to Remote.
type Router struct {
	Local  ports.PeerClient
	Remote ports.PeerClient
}

func (r Router) pick(peer domain.Peer) (ports.PeerClient, error) {
	if strings.EqualFold(peer.URL, domain.LocalPeerURL) {
		if r.Local == nil {
			return nil, fmt.Errorf("peer %s is local but this process serves no local snapshots", peer.Name)
		}
		return r.Local, nil
	}
	if r.Remote == nil {
		return nil, fmt.Errorf("no remote client for peer %s", peer.Name)
	}
	return r.Remote, nil
}

// FetchUsage implements ports.PeerClient.
func (r Router) FetchUsage(ctx context.Context, peer domain.Peer) (domain.ServerUsage, error) {
	client, err := r.pick(peer)
	if err != nil {
		return domain.ServerUsage{}, err
	}
	return client.FetchUsage(ctx, peer)
}

// FetchHistory implements ports.PeerClient.
func (r Router) FetchHistory(ctx context.Context, peer domain.Peer) (domain.ServerHistory, error) {
	client, err := r.pick(peer)
	if err != nil {
		return domain.ServerHistory{}, err
	}
	return client.FetchHistory(ctx, peer)
}

var (
	_ ports.PeerClient = (*HTTPClient)(nil)
	_ ports.PeerClient = LocalClient{}
	_ ports.PeerClient = Router{}
)
