package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opsforge/opsforge/pkg/engine"
	"github.com/opsforge/opsforge/pkg/telemetry"
)

// MonitorConfig tunes the health polling loop.
type MonitorConfig struct {
	// PollInterval is the time between health check rounds.
	PollInterval time.Duration

	// CheckTimeout bounds a single health probe.
	CheckTimeout time.Duration

	// CallTimeout bounds a single CallService request.
	CallTimeout time.Duration

	// MaxConcurrentChecks caps how many probes run in parallel per
	// round.
	MaxConcurrentChecks int

	// Breaker is applied to every registered service.
	Breaker BreakerConfig
}

// DefaultMonitorConfig returns the production defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval:        30 * time.Second,
		CheckTimeout:        5 * time.Second,
		CallTimeout:         30 * time.Second,
		MaxConcurrentChecks: 8,
		Breaker:             DefaultBreakerConfig(),
	}
}

// Monitor polls registered services, drives a circuit breaker per
// service and shares health records through the record store. It
// implements the engine's ServiceCaller, so service-backed tools fail
// fast against services whose breaker is open instead of piling up
// timeouts.
type Monitor struct {
	cfg     MonitorConfig
	store   RecordStore
	client  *http.Client
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	events  *telemetry.EventPublisher

	mu       sync.RWMutex
	records  map[string]*ServiceRecord
	breakers map[string]*Breaker

	wg sync.WaitGroup
}

// NewMonitor creates a monitor. Zero config fields fall back to
// DefaultMonitorConfig values; a nil store falls back to an in-process
// MemoryStore.
func NewMonitor(cfg MonitorConfig, store RecordStore, tel *telemetry.Telemetry) *Monitor {
	def := DefaultMonitorConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = def.CheckTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.MaxConcurrentChecks <= 0 {
		cfg.MaxConcurrentChecks = def.MaxConcurrentChecks
	}
	if store == nil {
		store = NewMemoryStore()
	}

	var logger *telemetry.Logger
	var metrics *telemetry.Metrics
	var events *telemetry.EventPublisher
	if tel != nil {
		if tel.Logger != nil {
			logger = tel.Logger.NewComponentLogger("discovery")
		}
		metrics = tel.Metrics
		events = tel.Events
	}
	if logger == nil {
		logger = telemetry.FromContext(context.Background()).NewComponentLogger("discovery")
	}

	return &Monitor{
		cfg:      cfg,
		store:    store,
		client:   &http.Client{},
		logger:   logger,
		metrics:  metrics,
		events:   events,
		records:  make(map[string]*ServiceRecord),
		breakers: make(map[string]*Breaker),
	}
}

// Register adds a service to the monitor with status unknown until the
// first probe. Re-registering updates the URL and keeps the existing
// breaker and counters, so a redeploy does not reset trip history.
func (m *Monitor) Register(name, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.records[name]; ok {
		rec.URL = url
		m.logger.WithService(name).WithField("url", url).Info("Service re-registered")
		return
	}

	m.records[name] = &ServiceRecord{
		Name:   name,
		URL:    url,
		Status: StatusUnknown,
	}
	m.breakers[name] = m.newBreaker(name)
	m.logger.WithService(name).WithField("url", url).Info("Service registered")
}

func (m *Monitor) newBreaker(name string) *Breaker {
	b := NewBreaker(name, m.cfg.Breaker, m.logger)
	if m.metrics != nil {
		b.OnTransition = func(_, to State) {
			m.metrics.RecordBreakerTransition(name, to.String())
		}
	}
	return b
}

// Start launches the background polling loop. The loop runs an
// immediate first round and then one round per poll interval until ctx
// is cancelled. Cancel the context before calling Close.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	m.logger.Infof("Service monitor started, polling every %s", m.cfg.PollInterval)
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.checkAll(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Service monitor stopped")
			return
		case <-ticker.C:
			m.checkAll(ctx)
		}
	}
}

// Close waits for the polling loop to exit and closes the record store.
func (m *Monitor) Close() error {
	m.wg.Wait()
	return m.store.Close()
}

// checkAll probes every registered service, at most MaxConcurrentChecks
// at a time.
func (m *Monitor) checkAll(ctx context.Context) {
	m.mu.RLock()
	names := make([]string, 0, len(m.records))
	for name := range m.records {
		names = append(names, name)
	}
	m.mu.RUnlock()

	sem := make(chan struct{}, m.cfg.MaxConcurrentChecks)
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		sem <- struct{}{}
		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()
			m.checkService(ctx, name)
		}(name)
	}
	wg.Wait()
}

// checkService runs one health probe and feeds the outcome into the
// record, the breaker, the metrics and the record store.
func (m *Monitor) checkService(ctx context.Context, name string) {
	m.mu.RLock()
	rec, ok := m.records[name]
	breaker := m.breakers[name]
	var url string
	if ok {
		url = rec.URL
	}
	m.mu.RUnlock()
	if !ok {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.CheckTimeout)
	defer cancel()

	start := time.Now()
	status, version, err := m.probe(probeCtx, url)
	elapsed := time.Since(start)

	m.mu.Lock()
	oldStatus := rec.Status
	rec.Status = status
	rec.LastCheck = time.Now().UTC()
	rec.ResponseTimeMS = elapsed.Milliseconds()
	if version != "" {
		rec.Version = version
	}
	if status == StatusHealthy {
		rec.SuccessCount++
	} else {
		rec.ErrorCount++
	}
	snapshot := *rec
	m.mu.Unlock()

	if status == StatusHealthy {
		breaker.RecordSuccess()
	} else {
		breaker.RecordFailure()
	}

	if m.metrics != nil {
		m.metrics.RecordHealthCheck(name, status, elapsed)
	}
	if m.events != nil && oldStatus != status {
		_ = m.events.PublishServiceStateChanged(name, oldStatus, status)
	}
	if err != nil {
		m.logger.WithService(name).WithError(err).Debug("Health check failed")
	}

	putCtx, cancelPut := context.WithTimeout(ctx, m.cfg.CheckTimeout)
	defer cancelPut()
	if err := m.store.Put(putCtx, snapshot, 3*m.cfg.PollInterval); err != nil {
		m.logger.WithService(name).WithError(err).Warn("Failed to publish service record")
	}
}

// probe GETs the service's /health endpoint. A transport error means
// unhealthy, a 200 means healthy, anything else means degraded. A JSON
// body carrying a version field is picked up when present.
func (m *Monitor) probe(ctx context.Context, url string) (status, version string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(url, "/")+"/health", nil)
	if err != nil {
		return StatusUnhealthy, "", fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return StatusUnhealthy, "", fmt.Errorf("failed to reach health endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StatusDegraded, "", fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		Version string `json:"version"`
	}
	if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); decodeErr == nil {
		version = body.Version
	}
	return StatusHealthy, version, nil
}

// ServiceURL returns the base URL for a service. An open breaker fails
// fast with an unavailable error before any network attempt. Services
// this monitor never registered fall back to a record store lookup, so
// peers found through the shared store are still reachable.
func (m *Monitor) ServiceURL(name string) (string, error) {
	m.mu.RLock()
	rec, ok := m.records[name]
	breaker := m.breakers[name]
	var url string
	if ok {
		url = rec.URL
	}
	m.mu.RUnlock()

	if ok {
		if err := breaker.Allow(); err != nil {
			return "", engine.NewUnavailableError(
				fmt.Sprintf("service %s is unavailable", name), err).
				WithCode(engine.ErrCodeCircuitOpen).
				WithResource(name).
				WithOperation("service_url")
		}
		return url, nil
	}

	storeCtx, cancel := context.WithTimeout(context.Background(), m.cfg.CheckTimeout)
	defer cancel()
	record, err := m.store.Get(storeCtx, name)
	if err != nil {
		return "", engine.NewNotFoundError(
			fmt.Sprintf("service not found: %s", name), err).
			WithResource(name).
			WithOperation("service_url")
	}
	return record.URL, nil
}

// CallService sends body as JSON to path on the named service and
// decodes the JSON response into out when out is non-nil. The breaker
// gates the attempt and the outcome feeds back into it.
func (m *Monitor) CallService(ctx context.Context, service, method, path string, body, out interface{}) error {
	url, err := m.ServiceURL(service)
	if err != nil {
		return err
	}

	m.mu.RLock()
	breaker := m.breakers[service]
	m.mu.RUnlock()

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	callCtx := ctx
	if m.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.cfg.CallTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, method, strings.TrimRight(url, "/")+path, payload)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	err = telemetry.RecordServiceOperation(ctx, service, path, func() error {
		resp, err := m.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call service %s: %w", service, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("service %s returned %d: %s", service, resp.StatusCode, strings.TrimSpace(string(data)))
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("failed to decode response from service %s: %w", service, err)
			}
		}
		return nil
	})

	if breaker != nil {
		if err != nil {
			breaker.RecordFailure()
		} else {
			breaker.RecordSuccess()
		}
	}
	return err
}

// Status returns a snapshot of every registered service and its
// breaker, sorted by service name.
func (m *Monitor) Status() []ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ServiceStatus, 0, len(m.records))
	for name, rec := range m.records {
		out = append(out, ServiceStatus{
			Record:  *rec,
			Breaker: m.breakers[name].Snapshot(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Record.Name < out[j].Record.Name })
	return out
}
