// Package discovery tracks backend service health and shields callers
// from failing services with per-service circuit breakers.
//
// # Monitor
//
// The Monitor holds a record and a breaker per registered service. A
// background loop probes every service's /health endpoint each poll
// interval with bounded concurrency:
//
//   - a transport error marks the service unhealthy
//   - a 200 marks it healthy
//   - any other status marks it degraded
//
// Only healthy probes count as breaker successes. After every probe the
// updated record is written to the record store with a TTL of three
// poll intervals, so records of dead monitors age out on their own.
//
// # Circuit Breaker
//
// Each Breaker runs the usual closed, open, half-open state machine.
// In the closed state failures count up and each success heals one
// failure, so only a sustained streak trips the breaker. An open
// breaker rejects calls with CircuitOpenError until the recovery
// timeout elapses; the first call after that is admitted as a probe in
// the half-open state. Enough consecutive probe successes close the
// breaker, a single probe failure reopens it.
//
// # Record Store
//
// Records are shared through a RecordStore so peers can discover
// addresses they never registered themselves. EtcdStore keeps records
// in etcd under lease, MemoryStore keeps them in process for
// single-node deployments and tests.
//
// # Calling Services
//
// CallService satisfies the engine's ServiceCaller: it resolves the
// service URL, lets the breaker gate the attempt, sends JSON and feeds
// the outcome back into the breaker:
//
//	monitor := discovery.NewMonitor(discovery.DefaultMonitorConfig(), store, tel)
//	monitor.Register("executor", "http://executor:8080")
//	monitor.Start(ctx)
//
//	var out map[string]interface{}
//	err := monitor.CallService(ctx, "executor", "POST", "/api/v1/tools/restart_service", body, &out)
package discovery
