// Package health exposes store reachability through the standard gRPC health
// service.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the health service name of the turn API.
const Service = "jobassist.Turns"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewGRPCServer returns a gRPC server with hs registered.
func NewGRPCServer(hs *health.Server, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

// Watcher keeps a health server in sync with the session store.
type Watcher struct {
	repo     Pinger
	srv      *health.Server
	interval time.Duration
	timeout  time.Duration

	mu   sync.Mutex
	last healthpb.HealthCheckResponse_ServingStatus
}

// NewWatcher creates a watcher. Until the first check both the overall and
// the Service status are NOT_SERVING.
func NewWatcher(repo Pinger, srv *health.Server, interval, timeout time.Duration) *Watcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	w := &Watcher{repo: repo, srv: srv, interval: interval, timeout: timeout}
	w.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return w
}

// Check pings the store once and publishes the result.
func (w *Watcher) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := w.repo.Ping(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		slog.Error("Store health check failed", "error", err)
	}
	w.set(status)
	return status
}

// Start checks immediately and then on every interval until ctx is done,
// when the server is marked NOT_SERVING for good.
func (w *Watcher) Start(ctx context.Context) {
	w.Check(ctx)
	ticker := time.NewTicker(w.interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Health watcher started", "interval", w.interval)

		for {
			select {
			case <-ticker.C:
				w.Check(ctx)
			case <-ctx.Done():
				w.srv.Shutdown()
				slog.Info("Health watcher shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (w *Watcher) set(status healthpb.HealthCheckResponse_ServingStatus) {
	w.mu.Lock()
	changed := w.last != status
	w.last = status
	w.mu.Unlock()

	w.srv.SetServingStatus("", status)
	w.srv.SetServingStatus(Service, status)
	if changed {
		slog.Info("Serving status changed", "status", status.String())
	}
}
