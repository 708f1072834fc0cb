// Package config loads the runtime configuration from the process
// environment.
//
// Configuration is 12-factor: every setting is an environment variable
// with the OPSFORGE_ prefix, defaults apply when a variable is unset,
// and Load fails fast on the first malformed value. There is no
// configuration file.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//
//	store, err := stores.NewSQLiteStore(cfg.StoreConfig())
//
// The bridge methods (TelemetryConfig, MonitorConfig, StoreConfig,
// PolicyEngineConfig) translate the loaded settings into each
// subsystem's own configuration type so wiring stays in one place.
//
// # Variables
//
// Core:
//
//	OPSFORGE_ENVIRONMENT        deployment environment (default development)
//	OPSFORGE_DB_PATH            SQLite database path (default opsforge.db)
//	OPSFORGE_CATALOG_DIRS       colon-separated tool directories
//	OPSFORGE_CATALOG_WATCH      hot reload catalog directories (default false)
//	OPSFORGE_LISTEN_ADDRESS     serve-mode HTTP listener (default :8080)
//
// Policy:
//
//	OPSFORGE_POLICY_ENABLED         gate plans through admission (default false)
//	OPSFORGE_POLICY_DIR             directory of custom .rego policies
//	OPSFORGE_POLICY_BLOCKED_TOOLS   comma-separated tool blocklist
//	OPSFORGE_POLICY_MAX_STEPS       plan step cap, 0 disables
//
// Discovery and health:
//
//	OPSFORGE_DISCOVERY_ENABLED              use etcd for service records
//	OPSFORGE_DISCOVERY_ENDPOINTS            comma-separated etcd endpoints
//	OPSFORGE_DISCOVERY_NAMESPACE            record key prefix
//	OPSFORGE_MONITOR_POLL_INTERVAL          health poll interval (default 30s)
//	OPSFORGE_MONITOR_CHECK_TIMEOUT          single probe timeout (default 5s)
//	OPSFORGE_MONITOR_CALL_TIMEOUT           service call timeout (default 30s)
//	OPSFORGE_MONITOR_MAX_CONCURRENT_CHECKS  parallel probes (default 8)
//	OPSFORGE_BREAKER_FAILURE_THRESHOLD      failures to open (default 3)
//	OPSFORGE_BREAKER_SUCCESS_THRESHOLD      successes to close (default 2)
//	OPSFORGE_BREAKER_RECOVERY_TIMEOUT       open-state wait (default 60s)
//
// Static service URLs are scanned from OPSFORGE_SERVICE_<NAME>_URL
// variables; OPSFORGE_SERVICE_ASSET_SERVICE_URL registers the service
// asset-service. Encryption keys are read by the secrets package, not
// here; Load only records whether one is present.
//
// Telemetry:
//
//	OPSFORGE_LOG_LEVEL             trace|debug|info|warn|error|fatal (default info)
//	OPSFORGE_LOG_FORMAT            console|json (default console)
//	OPSFORGE_LOG_OUTPUT            stdout|stderr|path (default stdout)
//	OPSFORGE_METRICS_ENABLED       default true
//	OPSFORGE_METRICS_PATH          default /metrics
//	OPSFORGE_TRACING_ENABLED       default false
//	OPSFORGE_TRACING_EXPORTER      otlp|stdout|none (default none)
//	OPSFORGE_TRACING_ENDPOINT      OTLP collector, required for otlp
//	OPSFORGE_TRACING_SAMPLING_RATE 0..1 (default 1.0)
//	OPSFORGE_EVENTS_ENABLED        default true
//	OPSFORGE_EVENTS_BUFFER_SIZE    default 1000
//
// # Validation
//
// The Config struct carries go-playground/validator tags; Validate
// reports the first failing field with its full path, for example
// "Config.Monitor.PollInterval failed gt validation". Cross-field rules
// cover discovery endpoints (required when discovery is enabled) and
// the OTLP endpoint (required when the otlp exporter is selected).
package config
