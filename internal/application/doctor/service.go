package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	configapp "github.com/doeshing/calltrail/internal/application/config"
	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/ports"
)

// FleetProbe reports which peers of a connection answer.
type FleetProbe interface {
	Usage(ctx context.Context, connectionID string) (domain.FleetUsage, error)
}

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Fleet          FleetProbe
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("loaded format %s", cfg.ConfigFormatVersion)))

	if err := configapp.Validate(cfg); err != nil {
		checks = append(checks, fail("Config validation", err.Error()))
	} else {
		checks = append(checks, ok("Config validation", "valid"))
	}

	checks = append(checks, journalCheck(cfg.GetJournalDriver(), cfg.Journal.Path))

	if s.Fleet != nil {
		for _, id := range cfg.ConnectionIDs() {
			checks = append(checks, s.fleetCheck(ctx, id))
		}
	}

	return domain.HealthReport{Checks: checks}, nil
}

func journalCheck(driver, path string) domain.HealthCheck {
	name := fmt.Sprintf("Journal (%s)", driver)
	if path == "" {
		return fail(name, "no journal path configured")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirectoryPermissions); err != nil {
		return fail(name, fmt.Sprintf("cannot create %s: %v", dir, err))
	}
	probe, err := os.CreateTemp(dir, ".calltrail-probe-*")
	if err != nil {
		return fail(name, fmt.Sprintf("%s not writable: %v", dir, err))
	}
	probe.Close()
	os.Remove(probe.Name())

	if info, err := os.Stat(path); err == nil {
		return ok(name, fmt.Sprintf("%s (%d bytes)", path, info.Size()))
	}
	return ok(name, fmt.Sprintf("%s will be created on first call", path))
}

func (s *Service) fleetCheck(ctx context.Context, id string) domain.HealthCheck {
	name := fmt.Sprintf("Connection %s", id)
	usage, err := s.Fleet.Usage(ctx, id)
	if err != nil {
		return fail(name, err.Error())
	}
	total := len(usage.Servers)
	up := usage.AvailableCount()
	switch {
	case up == total:
		return ok(name, fmt.Sprintf("%d/%d peers reachable", up, total))
	case up == 0:
		return fail(name, fmt.Sprintf("no peers reachable: %s", firstErrors(usage.Servers)))
	default:
		return warn(name, fmt.Sprintf("%d/%d peers reachable: %s", up, total, firstErrors(usage.Servers)))
	}
}

func firstErrors(servers []domain.ServerUsage) string {
	var parts []string
	for _, s := range servers {
		if !s.Available {
			parts = append(parts, fmt.Sprintf("%s: %s", s.Peer, s.Error))
		}
	}
	return strings.Join(parts, "; ")
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
