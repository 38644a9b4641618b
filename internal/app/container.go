package app

import (
	"context"
	"sync"

	configapp "github.com/doeshing/calltrail/internal/application/config"
	"github.com/doeshing/calltrail/internal/application/doctor"
	fleetapp "github.com/doeshing/calltrail/internal/application/fleet"
	"github.com/doeshing/calltrail/internal/application/history"
	"github.com/doeshing/calltrail/internal/application/introspection"
	"github.com/doeshing/calltrail/internal/application/usage"
	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/infrastructure/config"
	fleetinfra "github.com/doeshing/calltrail/internal/infrastructure/fleet"
	"github.com/doeshing/calltrail/internal/infrastructure/journal"
	"github.com/doeshing/calltrail/internal/infrastructure/metrics"
	"github.com/doeshing/calltrail/internal/infrastructure/server"
	"github.com/doeshing/calltrail/internal/pkg/logger"
	"github.com/doeshing/calltrail/internal/ports"
)

// Options controls container construction.
type Options struct {
	// ConfigPath overrides the config file location.
	ConfigPath string
	// Verbose forces debug logging.
	Verbose bool
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config         domain.Config
	ConfigProvider ports.ConfigProvider
	ConfigLoader   *config.FileLoader
	Logger         ports.Logger
	Metrics        *metrics.Prometheus
	Journal        ports.Journal
	Writer         *journal.Writer
	Store          *history.Store
	Counters       *usage.Counters
	Aggregator     *fleetapp.Aggregator
	Introspection  *introspection.Service
	DoctorService  *doctor.Service

	initOnce sync.Once
	initErr  error
}

// BuildContainer constructs the dependency graph. Nothing is read from the
// journal until Initialize.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	logOpts := logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if opts.Verbose {
		logOpts.Level = "debug"
	}
	log := logger.New(logOpts)

	if err := configapp.Validate(cfg); err != nil {
		log.Warn("configuration invalid, continuing with defaults where possible", map[string]interface{}{
			"path":  cfgLoader.Path(),
			"error": err.Error(),
		})
	}

	prom := metrics.NewPrometheus()
	j := openJournal(cfg, log)
	writer := journal.NewWriter(j, log, prom, cfg.GetJournalQueueSize())

	store := history.NewStore(history.Options{
		ReplayOnStart: cfg.History.ReplayOnStart,
		Journal:       j,
		Sink:          writer,
		Logger:        log,
		Metrics:       prom,
	})
	counters := usage.NewCounters()

	svc := &introspection.Service{
		Store:    store,
		Counters: counters,
		Logger:   log,
		Metrics:  prom,
	}
	aggregator := &fleetapp.Aggregator{
		Resolver: fleetinfra.ConfigResolver{Config: cfgLoader},
		Client: fleetinfra.Router{
			Local:  fleetinfra.LocalClient{Source: svc},
			Remote: fleetinfra.NewHTTPClient(nil),
		},
		Timeout:     cfg.GetFleetTimeout(),
		Parallelism: cfg.GetFleetParallelism(),
		Logger:      log,
		Metrics:     prom,
	}
	svc.Fleet = aggregator

	return &Container{
		Config:         cfg,
		ConfigProvider: cfgLoader,
		ConfigLoader:   cfgLoader,
		Logger:         log,
		Metrics:        prom,
		Journal:        j,
		Writer:         writer,
		Store:          store,
		Counters:       counters,
		Aggregator:     aggregator,
		Introspection:  svc,
		DoctorService:  &doctor.Service{ConfigProvider: cfgLoader, Fleet: aggregator},
	}, nil
}

// openJournal picks the configured driver. A SQLite database that cannot be
// opened falls back to the JSONL file so calls are still persisted.
func openJournal(cfg domain.Config, log ports.Logger) ports.Journal {
	if cfg.GetJournalDriver() == domain.JournalDriverSQLite {
		j, err := journal.NewSQLiteJournal(cfg.Journal.Path)
		if err == nil {
			return j
		}
		fallback := config.DefaultJournalPath(domain.JournalDriverJSONL)
		log.Warn("sqlite journal unavailable, falling back to jsonl", map[string]interface{}{
			"path":     cfg.Journal.Path,
			"fallback": fallback,
			"error":    err.Error(),
		})
		return journal.NewFileJournal(fallback)
	}
	return journal.NewFileJournal(cfg.Journal.Path)
}

// Initialize brings the history store and usage counters up. It is the one
// process-wide init; repeated calls return the first result.
func (c *Container) Initialize(ctx context.Context) error {
	c.initOnce.Do(func() {
		if err := c.Store.Init(ctx, c.Config.InstanceID); err != nil {
			c.initErr = err
			return
		}
		c.Counters.Init(c.Config.InstanceID)
		c.Logger.Debug("calltrail initialized", map[string]interface{}{
			"instance_id": c.Config.InstanceID,
			"journal":     c.Journal.Path(),
			"replayed":    c.Store.State() == history.StateActive,
		})
	})
	return c.initErr
}

// NewServer builds the HTTP surface over the container's services.
func (c *Container) NewServer() *server.Server {
	return server.New(server.Options{
		Service:           c.Introspection,
		Metrics:           c.Metrics.Handler(),
		Requests:          c.Metrics,
		Logger:            c.Logger,
		DefaultConnection: c.Config.GetDefaultConnection(),
	})
}

// Close flushes queued journal writes.
func (c *Container) Close() error {
	if c.Writer == nil {
		return nil
	}
	return c.Writer.Close()
}
