package grpc

import (
	"context"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) error

// Health serves grpc.health.v1 with one service name per probe. The overall
// status ("") is SERVING only while every probe passes.
type Health struct {
	srv     *health.Server
	probes  map[string]Probe
	timeout time.Duration

	mu   sync.Mutex
	last map[string]error
}

func NewHealth(probes map[string]Probe) *Health {
	h := &Health{
		srv:     health.NewServer(),
		probes:  probes,
		timeout: 2 * time.Second,
		last:    map[string]error{},
	}
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Check runs every probe once and publishes the statuses.
func (h *Health) Check(ctx context.Context) map[string]error {
	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]error, len(names))
	overall := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, h.timeout)
		err := h.probes[name](pctx)
		cancel()

		out[name] = err
		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = st
		}
		h.srv.SetServingStatus(name, st)
	}
	h.srv.SetServingStatus("", overall)

	h.mu.Lock()
	h.last = out
	h.mu.Unlock()
	return out
}

// Last returns the result of the most recent Check.
func (h *Health) Last() map[string]error {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]error, len(h.last))
	for k, v := range h.last {
		out[k] = v
	}
	return out
}

// Run re-checks on every tick until ctx ends, then marks everything NOT_SERVING.
func (h *Health) Run(ctx context.Context, interval time.Duration) error {
	h.Check(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return nil
		case <-t.C:
			h.Check(ctx)
		}
	}
}
