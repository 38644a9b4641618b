package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/doeshing/calltrail/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if err := validateJournal(cfg.Journal); err != nil {
		return err
	}
	if err := validateFleet(cfg.Fleet); err != nil {
		return err
	}
	if err := validateServer(cfg.Server); err != nil {
		return err
	}
	if err := validateLogging(cfg.Logging); err != nil {
		return err
	}
	return nil
}

func validateJournal(j domain.JournalSettings) error {
	switch strings.ToLower(j.Driver) {
	case "", domain.JournalDriverJSONL, domain.JournalDriverSQLite:
	default:
		return fmt.Errorf("journal.driver must be %s|%s, got %s", domain.JournalDriverJSONL, domain.JournalDriverSQLite, j.Driver)
	}
	if j.QueueSize < 0 {
		return fmt.Errorf("journal.queue_size must be >= 0")
	}
	return nil
}

func validateFleet(f domain.FleetSettings) error {
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("fleet.timeout invalid: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("fleet.timeout must be > 0")
		}
	}
	if f.Parallelism < 0 {
		return fmt.Errorf("fleet.parallelism must be >= 0")
	}
	if f.DefaultConnection != "" && len(f.Connections) > 0 {
		if _, ok := f.Connections[f.DefaultConnection]; !ok {
			return fmt.Errorf("fleet.default_connection %s not found in connections", f.DefaultConnection)
		}
	}
	for id, peers := range f.Connections {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("fleet.connections has an empty connection id")
		}
		if len(peers) == 0 {
			return fmt.Errorf("fleet.connections.%s lists no peers", id)
		}
		for i, peer := range peers {
			if err := validatePeerURL(peer.URL); err != nil {
				return fmt.Errorf("fleet.connections.%s[%d]: %w", id, i, err)
			}
		}
	}
	return nil
}

func validatePeerURL(raw string) error {
	if strings.EqualFold(raw, domain.LocalPeerURL) {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("url invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must be %q or http(s), got %q", domain.LocalPeerURL, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

func validateServer(s domain.ServerSettings) error {
	if s.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		return fmt.Errorf("server.listen invalid: %w", err)
	}
	return nil
}

func validateLogging(l domain.LoggingSettings) error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug|info|warn|error, got %s", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text|json, got %s", l.Format)
	}
	return nil
}
