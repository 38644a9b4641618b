package domain

// Config mirrors ~/.calltrail/config.yaml.
type Config struct {
	ConfigFormatVersion string          `yaml:"config_format_version"`
	InstanceID          string          `yaml:"instance_id"`
	History             HistorySettings `yaml:"history"`
	Journal             JournalSettings `yaml:"journal"`
	Fleet               FleetSettings   `yaml:"fleet"`
	Server              ServerSettings  `yaml:"server"`
	Logging             LoggingSettings `yaml:"logging"`
}

// HistorySettings controls the in-memory history window.
type HistorySettings struct {
	ReplayOnStart bool `yaml:"replay_on_start"`
}

// JournalSettings configures the durable append-only log.
type JournalSettings struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path"`
	QueueSize int    `yaml:"queue_size"`
}

// FleetSettings lists the processes reachable per connection id.
type FleetSettings struct {
	Timeout           string                      `yaml:"timeout"`
	Parallelism       int                         `yaml:"parallelism"`
	DefaultConnection string                      `yaml:"default_connection"`
	Connections       map[string][]PeerDefinition `yaml:"connections"`
}

// PeerDefinition declares one fleet member. URL "local" means this process.
type PeerDefinition struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ServerSettings configures the HTTP surface of `calltrail serve`.
type ServerSettings struct {
	Listen string `yaml:"listen"`
}

// LoggingSettings selects log level and handler.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
