package rbac

import (
	"context"

	"danus-dashboard/backend/internal/membership/domain"
)

// RequireOrgAdmin ensures the caller has role admin in orgID.
func RequireOrgAdmin(ctx context.Context, resolver VerdictResolver, orgID string) (Verdict, error) {
	return RequireOrgRole(ctx, resolver, orgID, domain.RoleAdmin)
}

// RequireOrgModerator ensures the caller has role moderator or admin in orgID.
func RequireOrgModerator(ctx context.Context, resolver VerdictResolver, orgID string) (Verdict, error) {
	return RequireOrgRole(ctx, resolver, orgID, domain.RoleModerator)
}
