package discovery

import "time"

// Service health states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusUnknown   = "unknown"
)

// ServiceRecord is the shared wire form of one registered service's
// health. Records are written to the record store on every check so
// other processes can discover addresses without static configuration.
type ServiceRecord struct {
	// Name is the service name tools and callers refer to.
	Name string `json:"name"`

	// URL is the service base URL.
	URL string `json:"url"`

	// Status is the last observed health state.
	Status string `json:"status"`

	// LastCheck is when the service was last probed.
	LastCheck time.Time `json:"last_check"`

	// ResponseTimeMS is the duration of the last probe in milliseconds.
	ResponseTimeMS int64 `json:"response_time_ms"`

	// SuccessCount is the rolling number of healthy probes.
	SuccessCount int64 `json:"success_count"`

	// ErrorCount is the rolling number of failed probes.
	ErrorCount int64 `json:"error_count"`

	// Version is the version reported by the health endpoint, when any.
	Version string `json:"version,omitempty"`
}

// ServiceStatus pairs a service record with its breaker snapshot.
type ServiceStatus struct {
	Record  ServiceRecord   `json:"record"`
	Breaker BreakerSnapshot `json:"breaker"`
}
