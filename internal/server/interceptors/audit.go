package interceptors

import (
	"context"
	"encoding/json"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"danus-dashboard/backend/internal/audit"
)

// AuditUnary returns a unary server interceptor that records an audit log entry after each RPC.
// skipMethods is the set of full method names to not audit (e.g. health checks).
// Only authenticated calls that name an organization are written; LogEvent is best-effort.
func AuditUnary(logger audit.AuditLogger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if logger == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		userID, _ := GetUserID(ctx)
		orgID := OrgIDFromRequest(req)
		if userID == "" || orgID == "" {
			return resp, err
		}
		ar := audit.ParseFullMethod(info.FullMethod)
		meta, _ := json.Marshal(map[string]string{
			"status_code": status.Code(err).String(),
			"client_ip":   ClientIP(ctx),
		})
		logger.LogEvent(ctx, orgID, userID, ar.Action, ar.Resource, string(meta))
		return resp, err
	}
}

// OrgIDFromRequest returns the org_id field of a Struct request, or "".
func OrgIDFromRequest(req interface{}) string {
	s, ok := req.(*structpb.Struct)
	if !ok || s == nil {
		return ""
	}
	return strings.TrimSpace(s.GetFields()["org_id"].GetStringValue())
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
