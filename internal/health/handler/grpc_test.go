package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func check(t *testing.T, srv *Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check must not return a gRPC error: %v", err)
	}
	return resp.GetStatus()
}

func TestCheck_NilDependencies(t *testing.T) {
	if got := check(t, NewServer(nil, nil)); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
}

func TestCheck_PingerSuccess(t *testing.T) {
	if got := check(t, NewServer(&mockPinger{}, nil)); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
}

func TestCheck_PingerFailure(t *testing.T) {
	srv := NewServer(&mockPinger{pingErr: errors.New("connection refused")}, nil)
	if got := check(t, srv); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", got)
	}
}

func TestCheck_PolicyCheckerFailure(t *testing.T) {
	srv := NewServer(&mockPinger{}, &mockPolicyChecker{healthErr: errors.New("rego compile failed")})
	if got := check(t, srv); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", got)
	}
}

func TestServeHTTP(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(&mockPinger{}, &mockPolicyChecker{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewServer(&mockPinger{pingErr: errors.New("down")}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
