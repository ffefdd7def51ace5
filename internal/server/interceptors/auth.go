package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	identitydomain "danus-dashboard/backend/internal/identity/domain"
)

const bearerPrefix = "bearer "

// Authenticator resolves a credential to the principal it was issued for.
// Any error means the credential is unusable; callers do not distinguish causes.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*identitydomain.Principal, error)
}

// AuthUnary returns a unary server interceptor that validates the Bearer credential
// from gRPC metadata and sets user_id and session_id in context for protected RPCs.
// publicMethods is the set of full method names that do not require a credential (e.g. health checks).
func AuthUnary(auth Authenticator, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token := extractBearer(ctx)
		public := publicMethods[info.FullMethod]

		if token == "" {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		p, err := auth.Authenticate(ctx, token)
		if err != nil || p == nil || p.User == nil {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		ctx = WithIdentity(ctx, p.User.ID, p.SessionID)
		return handler(ctx, req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	return ParseBearer(vals[0])
}

// ParseBearer returns the token from an Authorization header value ("Bearer <token>"), or "".
func ParseBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
