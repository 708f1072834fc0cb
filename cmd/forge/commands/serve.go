package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opsforge/opsforge/pkg/engine"
	"github.com/opsforge/opsforge/pkg/policy"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the long-lived runtime service",
		Long: `Run the runtime as a long-lived service.

Serve mode:
  - initializes the store and applies migrations
  - loads the tool catalog and watches it for changes when enabled
  - polls downstream service health and drives the circuit breakers
  - hot-reloads admission policies from the policy directory
  - accepts plan submissions over HTTP
  - serves health and Prometheus metrics on the same listener

Shutdown is graceful on SIGINT and SIGTERM.`,
		Example: `  # Serve with catalog hot reload
  OPSFORGE_CATALOG_WATCH=true forge serve

  # Submit a plan to a running instance
  curl -X POST localhost:8080/api/v1/executions -d @plan.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	return cmd
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if a.cfg.Catalog.Watch {
		if err := a.registry.Watch(ctx); err != nil {
			return fmt.Errorf("failed to watch catalog: %w", err)
		}
		defer func() { _ = a.registry.StopWatching() }()
	}

	a.monitor.Start(ctx)

	if a.gate != nil && a.cfg.Policy.Dir != "" {
		if err := watchPolicies(ctx, a); err != nil {
			return err
		}
	}

	server := newHTTPServer(a)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", a.cfg.Server.ListenAddress).Msg("HTTP listener started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// watchPolicies hot-reloads the custom policy directory into the gate.
// Built-in policies survive every reload.
func watchPolicies(ctx context.Context, a *app) error {
	loader := policy.NewLoader(a.tel.Logger.Zerolog())
	err := loader.Watch(ctx, []string{a.cfg.Policy.Dir}, func(policies []policy.Policy) error {
		return a.gate.ReplacePolicies(ctx, policies)
	})
	if err != nil {
		return fmt.Errorf("failed to watch policy directory: %w", err)
	}
	return nil
}

// newHTTPServer builds the serve-mode listener: health, metrics and the
// execution API share one address.
func newHTTPServer(a *app) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("POST /api/v1/executions", a.handleSubmitPlan)
	mux.HandleFunc("GET /api/v1/executions", a.handleListExecutions)
	mux.HandleFunc("GET /api/v1/executions/{id}", a.handleGetExecution)
	mux.HandleFunc("GET /api/v1/tools", a.handleListTools)
	mux.HandleFunc("GET /api/v1/services", a.handleListServices)
	if a.cfg.Metrics.Enabled {
		mux.Handle("GET "+a.cfg.Metrics.Path, a.tel.Metrics.Handler())
	}

	return &http.Server{
		Addr:              a.cfg.Server.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": version,
		"tools":   len(a.registry.List("", "")),
	})
}

// handleSubmitPlan executes a submitted plan synchronously and returns
// the terminal result. Rejections and step failures are reported in the
// result body, not as HTTP errors.
func (a *app) handleSubmitPlan(w http.ResponseWriter, r *http.Request) {
	var plan engine.PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid plan: %v", err))
		return
	}

	result := a.runner.Execute(r.Context(), plan)
	writeJSON(w, http.StatusOK, result)
}

func (a *app) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	executions, err := a.store.ListExecutions(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"executions": executions,
		"count":      len(executions),
	})
}

func (a *app) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	execution, err := a.store.GetExecution(r.Context(), id)
	if err != nil {
		if engine.IsNotFound(err) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	steps, err := a.store.GetStepRecords(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"execution": execution,
		"steps":     steps,
	})
}

func (a *app) handleListTools(w http.ResponseWriter, r *http.Request) {
	platform := r.URL.Query().Get("platform")
	category := r.URL.Query().Get("category")

	tools := a.registry.List(platform, category)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": tools,
		"count": len(tools),
	})
}

func (a *app) handleListServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"services": a.monitor.Status(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
