// Package conf loads and validates application settings.
package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DatabaseSettings selects the storage backend.
type DatabaseSettings struct {
	// Driver is "sqlite" or "mysql".
	Driver string `mapstructure:"driver" yaml:"driver"`
	// DSN is the driver-specific connection string.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// MonitorSettings controls stream evaluation.
type MonitorSettings struct {
	// Windows is the set of lookback windows for rate aggregation.
	Windows []Duration `mapstructure:"windows" yaml:"windows"`
	// Deviation is the acceptable fractional deviation below the
	// expected rate before a stream is considered degraded.
	Deviation float64 `mapstructure:"deviation" yaml:"deviation"`
	// DeadMultiplier scales the fail interval to the cutoff beyond
	// which a silent stream is reported DEAD instead of FAILED.
	DeadMultiplier float64 `mapstructure:"dead_multiplier" yaml:"dead_multiplier"`
	// CheckInterval is how often the evaluation cycle runs.
	CheckInterval Duration `mapstructure:"check_interval" yaml:"check_interval"`
	// RollupOrder lists statuses from most to least severe for the
	// instrument/site rollup. Statuses not listed never win a rollup.
	RollupOrder []string `mapstructure:"rollup_order" yaml:"rollup_order"`
}

// NotifierSettings controls outbox delivery to the event service.
type NotifierSettings struct {
	// EventURL is the endpoint status events are POSTed to. The asset
	// UID is appended as the final path segment.
	EventURL string `mapstructure:"event_url" yaml:"event_url"`
	// Timeout bounds each outbound POST.
	Timeout Duration `mapstructure:"timeout" yaml:"timeout"`
	// RetryBudget is the number of client-error responses tolerated
	// before a pending update is dropped.
	RetryBudget int `mapstructure:"retry_budget" yaml:"retry_budget"`
	// Interval is how often the delivery pass runs.
	Interval Duration `mapstructure:"interval" yaml:"interval"`
}

// ResampleSettings controls counter compaction.
type ResampleSettings struct {
	// BucketWidth is the width of the coarse buckets written by the
	// compactor.
	BucketWidth Duration `mapstructure:"bucket_width" yaml:"bucket_width"`
	// GuardStart is how far back the resample window begins; counters
	// newer than this are never rewritten so concurrent ingestion
	// cannot race the compactor.
	GuardStart Duration `mapstructure:"guard_start" yaml:"guard_start"`
	// GuardEnd is how far back the resample window ends.
	GuardEnd Duration `mapstructure:"guard_end" yaml:"guard_end"`
	// Interval is how often the resample job runs.
	Interval Duration `mapstructure:"interval" yaml:"interval"`
}

// HTTPSourceSettings configures the metadata-polling ingestion source.
type HTTPSourceSettings struct {
	BaseURL  string   `mapstructure:"base_url" yaml:"base_url"`
	Timeout  Duration `mapstructure:"timeout" yaml:"timeout"`
	Interval Duration `mapstructure:"interval" yaml:"interval"`
}

// MQTTSourceSettings configures the port-agent byte counter
// subscription. The feed supplements the stream poller with per-port
// throughput and is off by default.
type MQTTSourceSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker   string `mapstructure:"broker" yaml:"broker"`
	Topic    string `mapstructure:"topic" yaml:"topic"`
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
}

// IngestSettings configures the ingestion feeds.
type IngestSettings struct {
	HTTP HTTPSourceSettings `mapstructure:"http" yaml:"http"`
	MQTT MQTTSourceSettings `mapstructure:"mqtt" yaml:"mqtt"`
}

// APISettings configures the outward query API.
type APISettings struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// Settings is the root configuration object.
type Settings struct {
	Database DatabaseSettings `mapstructure:"database" yaml:"database"`
	Monitor  MonitorSettings  `mapstructure:"monitor" yaml:"monitor"`
	Notifier NotifierSettings `mapstructure:"notifier" yaml:"notifier"`
	Resample ResampleSettings `mapstructure:"resample" yaml:"resample"`
	Ingest   IngestSettings   `mapstructure:"ingest" yaml:"ingest"`
	API      APISettings      `mapstructure:"api" yaml:"api"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "streamwatch.db")

	v.SetDefault("monitor.windows", []string{"5m", "1h", "24h", "168h"})
	v.SetDefault("monitor.deviation", 0.25)
	v.SetDefault("monitor.dead_multiplier", 700.0)
	v.SetDefault("monitor.check_interval", "10s")
	v.SetDefault("monitor.rollup_order", []string{"DEAD", "FAILED", "DEGRADED", "OPERATIONAL"})

	v.SetDefault("notifier.event_url", "http://localhost:12587/events/postto")
	v.SetDefault("notifier.timeout", "10s")
	v.SetDefault("notifier.retry_budget", 5)
	v.SetDefault("notifier.interval", "1s")

	v.SetDefault("resample.bucket_width", "1h")
	v.SetDefault("resample.guard_start", "48h")
	v.SetDefault("resample.guard_end", "60h")
	v.SetDefault("resample.interval", "1h")

	v.SetDefault("ingest.http.base_url", "http://localhost:12576")
	v.SetDefault("ingest.http.timeout", "30s")
	v.SetDefault("ingest.http.interval", "10s")
	v.SetDefault("ingest.mqtt.enabled", false)
	v.SetDefault("ingest.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("ingest.mqtt.topic", "port_agent_stats/#")
	v.SetDefault("ingest.mqtt.client_id", "streamwatch")

	v.SetDefault("api.listen", ":8180")
}

// Load reads settings from the given config file (optional), environment
// variables prefixed STREAMWATCH_, and built-in defaults.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STREAMWATCH")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (s *Settings) Validate() error {
	if s.Monitor.Deviation < 0 || s.Monitor.Deviation >= 1 {
		return fmt.Errorf("invalid settings: monitor.deviation %v must be in [0, 1)", s.Monitor.Deviation)
	}
	if s.Monitor.DeadMultiplier < 1 {
		return fmt.Errorf("invalid settings: monitor.dead_multiplier %v must be >= 1", s.Monitor.DeadMultiplier)
	}
	if len(s.Monitor.Windows) == 0 {
		return fmt.Errorf("invalid settings: monitor.windows must not be empty")
	}
	for _, w := range s.Monitor.Windows {
		if w.Std() <= 0 {
			return fmt.Errorf("invalid settings: monitor window %v must be positive", w.Std())
		}
	}
	if s.Notifier.RetryBudget < 1 {
		return fmt.Errorf("invalid settings: notifier.retry_budget %d must be >= 1", s.Notifier.RetryBudget)
	}
	if s.Resample.BucketWidth.Std() < time.Minute {
		return fmt.Errorf("invalid settings: resample.bucket_width %v must be at least 1m", s.Resample.BucketWidth.Std())
	}
	if s.Resample.GuardEnd.Std() <= s.Resample.GuardStart.Std() {
		return fmt.Errorf("invalid settings: resample.guard_end %v must exceed guard_start %v",
			s.Resample.GuardEnd.Std(), s.Resample.GuardStart.Std())
	}
	return nil
}
