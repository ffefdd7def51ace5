package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"danus-dashboard/backend/internal/audit"
	healthhandler "danus-dashboard/backend/internal/health/handler"
	membershiphandler "danus-dashboard/backend/internal/membership/handler"
	"danus-dashboard/backend/internal/platform/rbac"
	"danus-dashboard/backend/internal/server/interceptors"
	"danus-dashboard/backend/internal/telemetry"
)

// Deps holds optional service dependencies for gRPC handlers.
type Deps struct {
	// Resolver answers role queries. If nil, AuthorizationService RPCs return Unimplemented.
	Resolver rbac.VerdictResolver
	// Actions answers organization action checks for GetVerdict and CheckRole. May be nil.
	Actions membershiphandler.ActionPolicy
	// Health serves grpc.health.v1. If nil, a server without readiness checks is registered.
	Health *healthhandler.Server
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - danus.authz.v1.AuthorizationService → internal/membership/handler
//   - grpc.health.v1.Health               → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	membershiphandler.RegisterAuthorizationServiceServer(s, membershiphandler.NewServer(deps.Resolver, deps.Actions))
	health := deps.Health
	if health == nil {
		health = healthhandler.NewServer(nil, nil)
	}
	healthpb.RegisterHealthServer(s, health)
}

// PublicMethods are callable without a credential.
var PublicMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// InterceptorDeps configures NewGRPCServer. Audit and Events may be nil.
type InterceptorDeps struct {
	Auth   interceptors.Authenticator
	Audit  audit.AuditLogger
	Events telemetry.EventEmitter
}

// NewGRPCServer returns a server with otelgrpc instrumentation and the auth, audit and
// telemetry interceptors chained in that order.
func NewGRPCServer(deps InterceptorDeps, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(deps.Auth, PublicMethods),
			interceptors.AuditUnary(deps.Audit, PublicMethods),
			interceptors.TelemetryUnary(deps.Events, PublicMethods),
		),
	}, opts...)
	return grpc.NewServer(opts...)
}
