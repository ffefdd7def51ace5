package interceptors

import (
	"context"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"danus-dashboard/backend/internal/telemetry"
)

// TelemetryUnary returns a unary server interceptor that emits a telemetry.EventRoleDenied event
// for every RPC that ends in PermissionDenied. Best-effort: the emit runs asynchronously and never
// fails the RPC. If emitter is nil, the interceptor no-ops.
func TelemetryUnary(emitter telemetry.EventEmitter, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if emitter == nil || skipMethods[info.FullMethod] || status.Code(err) != codes.PermissionDenied {
			return resp, err
		}
		userID, _ := GetUserID(ctx)
		event := telemetry.NewEvent(telemetry.EventRoleDenied, userID).
			With("full_method", info.FullMethod).
			With("duration_ms", strconv.FormatInt(time.Since(start).Milliseconds(), 10))
		event.OrgID = OrgIDFromRequest(req)
		event.SessionID, _ = GetSessionID(ctx)
		event.Source = "grpc_interceptor"
		event.IP = ClientIP(ctx)
		telemetry.EmitAsync(emitter, event)
		return resp, err
	}
}
