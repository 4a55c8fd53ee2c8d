package config

import (
	"fmt"
	"time"

	"github.com/goran-ethernal/ChainIndexor/internal/common"
	"github.com/goran-ethernal/ChainIndexor/internal/logger"
)

// Config represents the complete configuration for the realtime sync core.
type Config struct {
	// Network contains the chain connection and sync cadence settings.
	Network NetworkConfig `yaml:"network" json:"network"`

	// LogFilters contains the log filters this process tracks.
	LogFilters []LogFilterConfig `yaml:"logFilters" json:"logFilters"`

	// DB contains database configuration for the event store.
	DB DatabaseConfig `yaml:"db" json:"db"`

	// Logging contains logging configuration.
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty"`

	// Metrics contains Prometheus metrics configuration.
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// NetworkConfig describes the chain this process syncs against.
type NetworkConfig struct {
	// RPCURL is the JSON-RPC endpoint URL.
	RPCURL string `yaml:"rpcURL" json:"rpcURL"`

	// ChainID tags all persisted rows on write paths.
	ChainID uint64 `yaml:"chainId" json:"chainId"`

	// PollingInterval is the poll cadence for latest-block fetches.
	PollingInterval common.Duration `yaml:"pollingInterval" json:"pollingInterval"`

	// FinalityBlockCount is the depth beyond which a block is treated as final.
	FinalityBlockCount uint64 `yaml:"finalityBlockCount" json:"finalityBlockCount"`

	// Retry contains RPC retry configuration with exponential backoff.
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// ApplyDefaults sets default values for optional network configuration fields.
func (n *NetworkConfig) ApplyDefaults() {
	if n.PollingInterval.Duration == 0 {
		n.PollingInterval = common.NewDuration(4 * time.Second)
	}
	if n.FinalityBlockCount == 0 {
		n.FinalityBlockCount = 64 //nolint:mnd
	}
	if n.Retry != nil {
		n.Retry.ApplyDefaults()
	}
}

// Validate checks if the network configuration is valid.
func (n *NetworkConfig) Validate() error {
	if n.RPCURL == "" {
		return fmt.Errorf("network.rpcURL is required")
	}
	if n.ChainID == 0 {
		return fmt.Errorf("network.chainId is required")
	}
	return nil
}

// LogFilterConfig names one log filter this process tracks.
type LogFilterConfig struct {
	// Key uniquely identifies this filter across the cached-interval table.
	Key string `yaml:"key" json:"key"`

	// Filter holds the address/topic matching rule and an optional endBlock.
	Filter LogFilterRule `yaml:"filter" json:"filter"`
}

// LogFilterRule is the address/topic match predicate for one log filter,
// plus the optional endBlock that bounds how far this filter polls.
type LogFilterRule struct {
	// Address constrains matched logs to this contract address, lowercase hex.
	Address string `yaml:"address" json:"address"`

	// Topics constrains each of up to 4 topic slots. An empty slot matches any
	// value; a non-empty slot lists the allowed hex hashes for that slot.
	Topics [][]string `yaml:"topics,omitempty" json:"topics,omitempty"`

	// EndBlock, if set, is the block number beyond which this filter no
	// longer needs new data. Used for configuration-exhaustion detection.
	EndBlock *uint64 `yaml:"endBlock,omitempty" json:"endBlock,omitempty"`
}

// RetryConfig represents RPC retry configuration with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial request).
	MaxAttempts int `yaml:"maxAttempts" json:"maxAttempts"`

	// InitialBackoff is the initial backoff duration before the first retry.
	InitialBackoff common.Duration `yaml:"initialBackoff" json:"initialBackoff"`

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff common.Duration `yaml:"maxBackoff" json:"maxBackoff"`

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64 `yaml:"backoffMultiplier" json:"backoffMultiplier"`
}

// ApplyDefaults sets default values for retry configuration.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = common.NewDuration(1 * time.Second)
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	// Path is the file path to the SQLite database.
	Path string `yaml:"path" json:"path"`

	// JournalMode sets the SQLite journal mode (e.g., "WAL", "DELETE").
	JournalMode string `yaml:"journalMode" json:"journalMode"`

	// Synchronous sets the synchronization level ("FULL", "NORMAL", "OFF").
	Synchronous string `yaml:"synchronous" json:"synchronous"`

	// BusyTimeout is the time in milliseconds to wait when the database is locked.
	BusyTimeout int `yaml:"busyTimeout" json:"busyTimeout"`

	// CacheSize is the size of the page cache (negative = KB, positive = pages).
	CacheSize int `yaml:"cacheSize" json:"cacheSize"`

	// MaxOpenConnections is the maximum number of open database connections.
	MaxOpenConnections int `yaml:"maxOpenConnections" json:"maxOpenConnections"`

	// MaxIdleConnections is the maximum number of idle connections in the pool.
	MaxIdleConnections int `yaml:"maxIdleConnections" json:"maxIdleConnections"`

	// EnableForeignKeys enables foreign key constraint enforcement.
	EnableForeignKeys bool `yaml:"enableForeignKeys" json:"enableForeignKeys"`

	// Maintenance contains optional background VACUUM/WAL-checkpoint settings.
	Maintenance *MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty"`
}

// ApplyDefaults sets default values for optional database configuration fields.
func (d *DatabaseConfig) ApplyDefaults() {
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
	if d.Maintenance != nil {
		d.Maintenance.ApplyDefaults()
	}
}

// MaintenanceConfig configures background database maintenance for the
// event store (periodic WAL checkpoints and VACUUM).
type MaintenanceConfig struct {
	// Enabled controls whether background maintenance runs.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// CheckInterval is how often to run maintenance.
	CheckInterval common.Duration `yaml:"checkInterval" json:"checkInterval"`

	// VacuumOnStartup runs maintenance once immediately on startup.
	VacuumOnStartup bool `yaml:"vacuumOnStartup" json:"vacuumOnStartup"`

	// WALCheckpointMode controls the WAL checkpoint aggressiveness.
	// Options: PASSIVE, FULL, RESTART, TRUNCATE.
	WALCheckpointMode string `yaml:"walCheckpointMode" json:"walCheckpointMode"`
}

// ApplyDefaults sets default values for optional maintenance configuration fields.
func (m *MaintenanceConfig) ApplyDefaults() {
	if m.CheckInterval.Duration == 0 {
		m.CheckInterval = common.NewDuration(30 * time.Minute) //nolint:mnd
	}
	if m.WALCheckpointMode == "" {
		m.WALCheckpointMode = "TRUNCATE"
	}
}

// Validate checks if the maintenance configuration is valid.
func (m *MaintenanceConfig) Validate() error {
	if m.WALCheckpointMode != "" {
		validModes := map[string]bool{"PASSIVE": true, "FULL": true, "RESTART": true, "TRUNCATE": true}
		if !validModes[m.WALCheckpointMode] {
			return fmt.Errorf("db.maintenance.walCheckpointMode: must be one of: PASSIVE, FULL, RESTART, TRUNCATE")
		}
	}
	return nil
}

// LoggingConfig configures logging behavior with per-component log levels.
// It satisfies internal/logger.LoggingConfig.
type LoggingConfig struct {
	// DefaultLevel is the default log level for all components.
	// Options: "debug", "info", "warn", "error".
	DefaultLevel string `yaml:"defaultLevel" json:"defaultLevel"`

	// Development enables development mode (stack traces, console encoder).
	Development bool `yaml:"development" json:"development"`

	// ComponentLevels sets log levels for specific components.
	// Available components: realtime-sync, event-store, bloom-filter,
	// log-filter, task-queue, rpc-client.
	ComponentLevels map[string]string `yaml:"componentLevels,omitempty" json:"componentLevels,omitempty"`
}

// ApplyDefaults sets default values for optional logging configuration fields.
func (l *LoggingConfig) ApplyDefaults() {
	if l.DefaultLevel == "" {
		l.DefaultLevel = "info"
	}
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[string]string)
	}
}

// Validate checks if the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	if l.DefaultLevel != "" {
		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(l.DefaultLevel)]; !valid {
			return fmt.Errorf("logging.defaultLevel: must be one of: debug, info, warn, error")
		}
	}

	for component, level := range l.ComponentLevels {
		if _, validComponent := common.AllComponents[common.ToLowerWithTrim(component)]; !validComponent {
			return fmt.Errorf("logging.componentLevels: unknown component '%s'", component)
		}
		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(level)]; !valid {
			return fmt.Errorf("logging.componentLevels[%s]: must be one of: debug, info, warn, error", component)
		}
	}

	return nil
}

// GetComponentLevel returns the log level for a specific component.
// Falls back to DefaultLevel if no component-specific level is set.
func (l *LoggingConfig) GetComponentLevel(component string) string {
	if level, ok := l.ComponentLevels[component]; ok {
		return common.ToLowerWithTrim(level)
	}
	return common.ToLowerWithTrim(l.DefaultLevel)
}

// GetDefaultLevel returns the default log level.
func (l *LoggingConfig) GetDefaultLevel() string {
	return common.ToLowerWithTrim(l.DefaultLevel)
}

// IsDevelopment returns whether development mode is enabled.
func (l *LoggingConfig) IsDevelopment() bool {
	return l.Development
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and the HTTP endpoint are active.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// ListenAddress is the address to bind the metrics HTTP server to.
	ListenAddress string `yaml:"listenAddress" json:"listenAddress"`

	// Path is the HTTP path where metrics are exposed.
	Path string `yaml:"path" json:"path"`
}

// ApplyDefaults sets default values for optional metrics configuration fields.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Validate checks if the metrics configuration is valid.
func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.ListenAddress == "" {
			return fmt.Errorf("listenAddress is required when metrics are enabled")
		}
		if m.Path == "" {
			return fmt.Errorf("path is required when metrics are enabled")
		}
		if m.Path[0] != '/' {
			return fmt.Errorf("path must start with '/'")
		}
	}
	return nil
}

// ApplyDefaults sets default values for optional configuration fields.
func (c *Config) ApplyDefaults() {
	c.Network.ApplyDefaults()
	c.DB.ApplyDefaults()

	if c.Logging != nil {
		c.Logging.ApplyDefaults()
	}
	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Network.Validate(); err != nil {
		return err
	}

	if c.DB.Path == "" {
		return fmt.Errorf("db.path is required")
	}

	if c.DB.JournalMode != "" && c.DB.JournalMode != "WAL" &&
		c.DB.JournalMode != "DELETE" && c.DB.JournalMode != "TRUNCATE" &&
		c.DB.JournalMode != "PERSIST" && c.DB.JournalMode != "MEMORY" {
		return fmt.Errorf("db.journalMode must be one of: WAL, DELETE, TRUNCATE, PERSIST, MEMORY")
	}

	if c.DB.Synchronous != "" && c.DB.Synchronous != "FULL" &&
		c.DB.Synchronous != "NORMAL" && c.DB.Synchronous != "OFF" {
		return fmt.Errorf("db.synchronous must be one of: FULL, NORMAL, OFF")
	}

	if c.DB.Maintenance != nil {
		if err := c.DB.Maintenance.Validate(); err != nil {
			return err
		}
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	if len(c.LogFilters) == 0 {
		return fmt.Errorf("at least one log filter must be configured")
	}

	keys := make(map[string]bool)
	for i, lf := range c.LogFilters {
		if lf.Key == "" {
			return fmt.Errorf("logFilters[%d]: key is required", i)
		}
		if keys[lf.Key] {
			return fmt.Errorf("logFilters[%d]: duplicate key '%s'", i, lf.Key)
		}
		keys[lf.Key] = true

		if lf.Filter.Address == "" {
			return fmt.Errorf("logFilters[%d] (%s): filter.address is required", i, lf.Key)
		}
		if len(lf.Filter.Topics) > 4 { //nolint:mnd
			return fmt.Errorf("logFilters[%d] (%s): filter.topics supports at most 4 slots", i, lf.Key)
		}
	}

	return nil
}
