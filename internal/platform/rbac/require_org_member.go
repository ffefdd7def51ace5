package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"danus-dashboard/backend/internal/membership/domain"
	"danus-dashboard/backend/internal/server/interceptors"
)

// VerdictResolver resolves the caller's role in an org. Implemented by *Resolver.
type VerdictResolver interface {
	Verdict(ctx context.Context, userID, orgID string) Verdict
}

// RequireOrgRole ensures the caller is authenticated and holds at least min in orgID.
// Returns the caller's verdict on success; returns a gRPC error (Unauthenticated or PermissionDenied) on failure.
// Lookup failures are reported as PermissionDenied, the same as a missing membership.
func RequireOrgRole(ctx context.Context, resolver VerdictResolver, orgID string, min domain.Role) (Verdict, error) {
	userID, ok := interceptors.GetUserID(ctx)
	if !ok || userID == "" {
		return Verdict{}, status.Error(codes.Unauthenticated, "user context required")
	}
	if orgID == "" {
		return Verdict{}, status.Error(codes.InvalidArgument, "organization_id is required")
	}
	v := resolver.Verdict(ctx, userID, orgID)
	if !v.Found() {
		return v, status.Error(codes.PermissionDenied, "not a member of this organization")
	}
	if !v.HasAtLeast(min) {
		return v, status.Errorf(codes.PermissionDenied, "organization %s or above required", min)
	}
	return v, nil
}

// RequireOrgMember ensures the caller is a member of orgID (any role).
func RequireOrgMember(ctx context.Context, resolver VerdictResolver, orgID string) (Verdict, error) {
	return RequireOrgRole(ctx, resolver, orgID, domain.RoleMember)
}
