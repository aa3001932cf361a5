package components

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/harunnryd/navi/internal/concurrency"
	"github.com/harunnryd/navi/internal/config"
	"github.com/harunnryd/navi/internal/daemon"
)

// HealthSource is what the health endpoint reports on.
type HealthSource interface {
	Health() daemon.HealthStatus
	Uptime() time.Duration
	ComponentHealth() map[string]*daemon.ComponentHealth
}

type HTTPServerComponent struct {
	source       HealthSource
	cfg          *config.ServerConfig
	dependencies []string
	server       *http.Server
	listener     net.Listener
	served       <-chan error
	shutdownTTL  time.Duration
	initialized  bool
	started      bool
	mu           sync.RWMutex

	errMu    sync.Mutex
	serveErr error
}

var defaultHTTPDependencies = []string{"Store"}

func NewHTTPServerComponent(source HealthSource, cfg *config.ServerConfig) *HTTPServerComponent {
	return NewHTTPServerComponentWithDependencies(source, cfg, defaultHTTPDependencies)
}

// NewHTTPServerComponentWithDependencies lets the caller start the server
// after every other component.
func NewHTTPServerComponentWithDependencies(source HealthSource, cfg *config.ServerConfig, deps []string) *HTTPServerComponent {
	return &HTTPServerComponent{
		source:       source,
		cfg:          cfg,
		dependencies: append([]string(nil), deps...),
	}
}

func (h *HTTPServerComponent) Name() string {
	return "HTTPServer"
}

func (h *HTTPServerComponent) Dependencies() []string {
	return append([]string(nil), h.dependencies...)
}

func (h *HTTPServerComponent) Init(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.source == nil {
		return fmt.Errorf("health source not configured")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)

	readTimeout, err := config.DurationOrDefault(h.cfg.ReadTimeout, config.DefaultServerReadTimeout)
	if err != nil {
		return fmt.Errorf("parse server read timeout: %w", err)
	}
	writeTimeout, err := config.DurationOrDefault(h.cfg.WriteTimeout, config.DefaultServerWriteTimeout)
	if err != nil {
		return fmt.Errorf("parse server write timeout: %w", err)
	}
	idleTimeout, err := config.DurationOrDefault(h.cfg.IdleTimeout, config.DefaultServerIdleTimeout)
	if err != nil {
		return fmt.Errorf("parse server idle timeout: %w", err)
	}
	shutdownTimeout, err := config.DurationOrDefault(h.cfg.ShutdownTimeout, config.DefaultServerShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse server shutdown timeout: %w", err)
	}

	h.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", h.cfg.Port),
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	h.shutdownTTL = shutdownTimeout

	h.initialized = true
	slog.Info("HTTPServer initialized", "component", h.Name(), "port", h.cfg.Port)
	return nil
}

// Start binds synchronously so a taken port fails startup.
func (h *HTTPServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return fmt.Errorf("HTTPServer not initialized")
	}

	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", h.server.Addr, err)
	}
	h.listener = ln
	server := h.server

	h.served = concurrency.Go(h.Name(), func() error {
		slog.Info("HTTP server listening", "component", h.Name(), "addr", ln.Addr().String())
		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "component", h.Name(), "error", err)
			h.errMu.Lock()
			h.serveErr = err
			h.errMu.Unlock()
			return err
		}
		return nil
	})

	h.started = true
	return nil
}

// Addr is the bound address, useful when the configured port is 0.
func (h *HTTPServerComponent) Addr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

func (h *HTTPServerComponent) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, h.shutdownTTL)
	defer cancel()

	if err := h.server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTPServer shutdown error", "component", h.Name(), "error", err)
		return err
	}
	select {
	case <-h.served:
	case <-shutdownCtx.Done():
		return shutdownCtx.Err()
	}

	h.started = false
	slog.Info("HTTPServer stopped", "component", h.Name())
	return nil
}

func (h *HTTPServerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.initialized {
		return daemon.Unhealthy(h.Name(), fmt.Errorf("not initialized"), nil), nil
	}
	if !h.started {
		return daemon.Unhealthy(h.Name(), fmt.Errorf("not started"), nil), nil
	}
	h.errMu.Lock()
	serveErr := h.serveErr
	h.errMu.Unlock()
	if serveErr != nil {
		return daemon.Unhealthy(h.Name(), fmt.Errorf("server exited: %w", serveErr), nil), nil
	}
	return daemon.Healthy(h.Name(), nil), nil
}

type componentReport struct {
	Healthy bool        `json:"healthy"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Daemon     daemon.HealthStatus        `json:"daemon"`
	Uptime     string                     `json:"uptime"`
	Unhealthy  []string                   `json:"unhealthy,omitempty"`
	Components map[string]componentReport `json:"components"`
}

// handleHealth answers 200 when every component is healthy and 503
// otherwise, with the per-component reports in both cases.
func (h *HTTPServerComponent) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{
		Status:     "ok",
		Daemon:     h.source.Health(),
		Uptime:     h.source.Uptime().Round(time.Second).String(),
		Components: map[string]componentReport{},
	}
	for name, ch := range h.source.ComponentHealth() {
		report := componentReport{Healthy: ch.Healthy, Details: ch.Details}
		if ch.Error != nil {
			report.Error = ch.Error.Error()
		}
		if !ch.Healthy {
			resp.Unhealthy = append(resp.Unhealthy, name)
		}
		resp.Components[name] = report
	}
	sort.Strings(resp.Unhealthy)

	code := http.StatusOK
	if len(resp.Unhealthy) > 0 {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("Failed to write health response", "error", err)
	}
}
