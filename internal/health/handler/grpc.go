package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const checkTimeout = 3 * time.Second

// Pinger checks database reachability (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the action policy evaluates (e.g. *engine.ActionPolicy).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server implements grpc.health.v1.Health for readiness/liveness and serves the same check
// over HTTP. Nil dependencies are skipped.
type Server struct {
	healthpb.UnimplementedHealthServer
	pinger Pinger
	policy PolicyChecker
}

// NewServer returns a new Health server.
func NewServer(pinger Pinger, policy PolicyChecker) *Server {
	return &Server{pinger: pinger, policy: policy}
}

// Ready runs every configured check and returns the first failure.
func (s *Server) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if s.pinger != nil {
		if err := s.pinger.PingContext(ctx); err != nil {
			return err
		}
	}
	if s.policy != nil {
		if err := s.policy.HealthCheck(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Check reports SERVING or NOT_SERVING. Check failures are never returned as gRPC errors.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if err := s.Ready(ctx); err != nil {
		log.Printf("health: not serving: %v", err)
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// ServeHTTP answers 200 {"status":"ok"} or 503 {"status":"unavailable"}.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code, body := http.StatusOK, "ok"
	if err := s.Ready(r.Context()); err != nil {
		log.Printf("health: not ready: %v", err)
		code, body = http.StatusServiceUnavailable, "unavailable"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": body})
}
