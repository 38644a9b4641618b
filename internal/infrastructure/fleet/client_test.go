package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/doeshing/calltrail/internal/domain"
)

func TestHTTPClientFetchUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != UsageSnapshotPath {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(domain.ServerUsage{
			InstanceID: "remote-1",
			Available:  true,
			Stats: domain.UsageCounters{
				TotalCalls:      3,
				SuccessfulCalls: 3,
				ToolCounts:      map[string]uint64{"a": 3},
			},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.Client())
	got, err := client.FetchUsage(context.Background(), domain.Peer{Name: "r", URL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("FetchUsage error: %v", err)
	}
	if got.InstanceID != "remote-1" || got.Stats.TotalCalls != 3 || got.Stats.ToolCounts["a"] != 3 {
		t.Fatalf("unexpected usage %+v", got)
	}
}

func TestHTTPClientFetchHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"instance_id":"x","available":true,"total_entries":1,
			"calls":[{"tool_name":"a","timestamp":1700000000000,"duration_ms":4,"success":true}]}`))
	}))
	defer srv.Close()

	got, err := NewHTTPClient(nil).FetchHistory(context.Background(), domain.Peer{Name: "r", URL: srv.URL})
	if err != nil {
		t.Fatalf("FetchHistory error: %v", err)
	}
	if got.TotalEntries != 1 || len(got.Calls) != 1 {
		t.Fatalf("unexpected history %+v", got)
	}
	if got.Calls[0].Timestamp.Millis() != 1_700_000_000_000 {
		t.Errorf("epoch millis timestamp decoded as %v", got.Calls[0].Timestamp)
	}
}

func TestHTTPClientNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tool history not initialized", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.Client()).FetchUsage(context.Background(), domain.Peer{Name: "r", URL: srv.URL})
	if err == nil || !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("error = %v", err)
	}
}

func TestHTTPClientPostInvocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != RecordPath {
			http.NotFound(w, r)
			return
		}
		var inv domain.Invocation
		if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.Record{ToolName: inv.ToolName, Seq: 7, Success: inv.Success})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.Client())
	rec, err := client.PostInvocation(context.Background(), srv.URL, domain.Invocation{ToolName: "grep", Success: true})
	if err != nil {
		t.Fatalf("PostInvocation error: %v", err)
	}
	if rec.ToolName != "grep" || rec.Seq != 7 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestHTTPClientHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewHTTPClient(srv.Client()).FetchUsage(ctx, domain.Peer{Name: "slow", URL: srv.URL})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v", err)
	}
}

type stubSource struct{}

func (stubSource) UsageSnapshot() (domain.ServerUsage, error) {
	return domain.ServerUsage{InstanceID: "local", Available: true}, nil
}

func (stubSource) HistorySnapshot() (domain.ServerHistory, error) {
	return domain.ServerHistory{InstanceID: "local", Available: true}, nil
}

func TestRouterDispatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"instance_id":"remote","available":true}`))
	}))
	defer srv.Close()

	router := Router{Local: LocalClient{Source: stubSource{}}, Remote: NewHTTPClient(srv.Client())}
	local, err := router.FetchUsage(context.Background(), domain.Peer{Name: "self", URL: "local"})
	if err != nil || local.InstanceID != "local" {
		t.Fatalf("local = %+v, %v", local, err)
	}
	remote, err := router.FetchUsage(context.Background(), domain.Peer{Name: "other", URL: srv.URL})
	if err != nil || remote.InstanceID != "remote" {
		t.Fatalf("remote = %+v, %v", remote, err)
	}

	if _, err := (Router{}).FetchHistory(context.Background(), domain.Peer{Name: "self", URL: "local"}); err == nil {
		t.Fatal("expected error without a local client")
	}
}

type stubConfig struct {
	cfg domain.Config
}

func (s stubConfig) Load(context.Context) (domain.Config, error) { return s.cfg, nil }

func TestConfigResolver(t *testing.T) {
	cfg := domain.Config{Fleet: domain.FleetSettings{Connections: map[string][]domain.PeerDefinition{
		"dev": {{Name: "self", URL: "local"}, {URL: "http://10.0.0.2:7419"}},
	}}}
	r := ConfigResolver{Config: stubConfig{cfg: cfg}}

	peers, err := r.Resolve(context.Background(), "dev")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if len(peers) != 2 || peers[1].Name != "http://10.0.0.2:7419" {
		t.Fatalf("peers = %+v", peers)
	}
	if _, err := r.Resolve(context.Background(), "prod"); !errors.Is(err, domain.ErrUnknownConnection) {
		t.Errorf("error = %v", err)
	}
}
