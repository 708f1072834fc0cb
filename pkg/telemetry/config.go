package telemetry

import (
	"fmt"
	"time"
)

// Config is the root telemetry configuration. Zero values are not
// usable directly; start from DefaultConfig, ProductionConfig, or
// DevelopmentConfig and override what differs.
type Config struct {
	ServiceName    string // reported on every span, metric, and event
	ServiceVersion string
	Environment    string // development, staging, production

	Logging LoggingConfig
	Tracing TracingConfig
	Metrics MetricsConfig
	Events  EventsConfig

	// ResourceAttributes are merged into the OTel resource alongside
	// the service identity.
	ResourceAttributes map[string]string
}

// LoggingConfig controls the zerolog-backed structured logger.
type LoggingConfig struct {
	Level  string // trace, debug, info, warn, error, fatal
	Format string // console or json
	Output string // stdout, stderr, or a file path

	// EnableCaller annotates entries with file:line of the call site.
	EnableCaller bool

	// Sampling bounds log volume on hot paths: SamplingInitial entries
	// pass per second, then every SamplingThereafter-th entry.
	EnableSampling     bool
	SamplingInitial    int
	SamplingThereafter int

	TimeFormat string // rfc3339, unix, unixms, unixmicro
}

// TracingConfig controls span creation and export.
type TracingConfig struct {
	Enabled  bool
	Exporter string // otlp, stdout, none
	Endpoint string // collector address for the otlp exporter

	// SamplingRate is the head sampling ratio, 0.0 through 1.0.
	SamplingRate float64

	MaxExportBatchSize int
	ExportTimeout      time.Duration

	// Headers ride along on every OTLP export request.
	Headers map[string]string

	// Insecure turns off TLS on the exporter connection.
	Insecure bool
}

// MetricsConfig controls the Prometheus registry and scrape endpoint.
type MetricsConfig struct {
	Enabled       bool
	ListenAddress string
	Path          string
	Namespace     string

	// DefaultHistogramBuckets are latency bucket bounds in seconds.
	DefaultHistogramBuckets []float64
}

// EventsConfig controls the in-process event publisher.
type EventsConfig struct {
	Enabled bool

	// BufferSize caps pending events in async mode; publishes beyond
	// it are dropped with an error.
	BufferSize int

	// FlushInterval bounds how long a partial batch may sit before
	// delivery in async mode.
	FlushInterval time.Duration

	MaxBatchSize int

	// EnableAsync decouples publishers from subscribers through the
	// buffer. Synchronous mode delivers inline.
	EnableAsync bool
}

// DefaultConfig returns the baseline configuration: console logging,
// stdout tracing, metrics on :9464, async events.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "opsforge",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "console",
			Output:             "stdout",
			EnableCaller:       true,
			EnableSampling:     false,
			SamplingInitial:    100,
			SamplingThereafter: 100,
			TimeFormat:         "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:            true,
			Exporter:           "stdout",
			Endpoint:           "",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Headers:            make(map[string]string),
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9464",
			Path:          "/metrics",
			Namespace:     "opsforge",
			DefaultHistogramBuckets: []float64{
				0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
			},
		},
		Events: EventsConfig{
			Enabled:       true,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
			MaxBatchSize:  100,
			EnableAsync:   true,
		},
		ResourceAttributes: make(map[string]string),
	}
}

// ProductionConfig returns defaults tuned for production: JSON logs
// with sampling, OTLP export over TLS, 10% head sampling. The caller
// still has to set Tracing.Endpoint.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.EnableSampling = true
	cfg.Logging.TimeFormat = "unix"
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.SamplingRate = 0.1
	cfg.Tracing.Insecure = false
	return cfg
}

// DevelopmentConfig returns defaults tuned for local work: debug-level
// console logs and every trace kept.
func DevelopmentConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "development"
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "console"
	cfg.Logging.EnableCaller = true
	cfg.Tracing.Exporter = "stdout"
	cfg.Tracing.SamplingRate = 1.0
	return cfg
}

// Validate reports the first problem that would keep NewTelemetry from
// producing a working stack.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service version is required")
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	if err := c.Tracing.validate(); err != nil {
		return err
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got: %d", c.Events.BufferSize)
	}
	return nil
}

func (l LoggingConfig) validate() error {
	switch l.Level {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid log level: %s", l.Level)
	}
	if l.Format != "console" && l.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", l.Format)
	}
	return nil
}

func (t TracingConfig) validate() error {
	if !t.Enabled {
		return nil
	}
	switch t.Exporter {
	case "otlp", "stdout", "none":
	default:
		return fmt.Errorf("invalid trace exporter: %s", t.Exporter)
	}
	if t.Exporter == "otlp" && t.Endpoint == "" {
		return fmt.Errorf("otlp exporter requires an endpoint")
	}
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got: %f", t.SamplingRate)
	}
	return nil
}
