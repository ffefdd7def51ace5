package rbac

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"danus-dashboard/backend/internal/membership/domain"
	"danus-dashboard/backend/internal/server/interceptors"
)

func TestRequireOrgAdmin_Success(t *testing.T) {
	r := NewResolver(finderWith("user-1", "org-1", domain.RoleAdmin))
	ctx := interceptors.WithIdentity(context.Background(), "user-1", "session-1")

	v, err := RequireOrgAdmin(ctx, r, "org-1")
	if err != nil {
		t.Fatalf("RequireOrgAdmin: %v", err)
	}
	if v.OrgID != "org-1" || v.UserID != "user-1" {
		t.Errorf("verdict = %+v", v)
	}
}

func TestRequireOrgAdmin_Failure_Moderator(t *testing.T) {
	r := NewResolver(finderWith("user-1", "org-1", domain.RoleModerator))
	ctx := interceptors.WithIdentity(context.Background(), "user-1", "session-1")

	_, err := RequireOrgAdmin(ctx, r, "org-1")
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("error is not a gRPC status: %v", err)
	}
	if st.Code() != codes.PermissionDenied {
		t.Errorf("status code = %v, want %v", st.Code(), codes.PermissionDenied)
	}
}

func TestRequireOrgModerator_AdminAllowed(t *testing.T) {
	r := NewResolver(finderWith("user-1", "org-1", domain.RoleAdmin))
	ctx := interceptors.WithIdentity(context.Background(), "user-1", "session-1")

	if _, err := RequireOrgModerator(ctx, r, "org-1"); err != nil {
		t.Fatalf("RequireOrgModerator: %v", err)
	}
}

func TestRequireOrgMember_Success_AnyRole(t *testing.T) {
	for _, role := range domain.Roles() {
		t.Run(role.String(), func(t *testing.T) {
			r := NewResolver(finderWith("user-1", "org-1", role))
			ctx := interceptors.WithIdentity(context.Background(), "user-1", "session-1")
			if _, err := RequireOrgMember(ctx, r, "org-1"); err != nil {
				t.Fatalf("RequireOrgMember: %v", err)
			}
		})
	}
}

func TestRequireOrgMember_Failure_NotMember(t *testing.T) {
	r := NewResolver(finderWith("user-1", "org-1"))
	ctx := interceptors.WithIdentity(context.Background(), "user-1", "session-1")

	_, err := RequireOrgMember(ctx, r, "org-1")
	if status.Code(err) != codes.PermissionDenied {
		t.Errorf("status code = %v, want %v", status.Code(err), codes.PermissionDenied)
	}
}

func TestRequireOrgMember_Failure_NoContext(t *testing.T) {
	r := NewResolver(finderWith("user-1", "org-1", domain.RoleAdmin))

	_, err := RequireOrgMember(context.Background(), r, "org-1")
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("status code = %v, want %v", status.Code(err), codes.Unauthenticated)
	}
}

func TestRequireOrgMember_Failure_EmptyOrgID(t *testing.T) {
	r := NewResolver(finderWith("user-1", "org-1", domain.RoleAdmin))
	ctx := interceptors.WithIdentity(context.Background(), "user-1", "session-1")

	_, err := RequireOrgMember(ctx, r, "")
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("status code = %v, want %v", status.Code(err), codes.InvalidArgument)
	}
}

func TestRequireOrgMember_RepositoryErrorIsDenied(t *testing.T) {
	r := NewResolver(&mockMembershipFinder{err: errors.New("database error")})
	ctx := interceptors.WithIdentity(context.Background(), "user-1", "session-1")

	_, err := RequireOrgMember(ctx, r, "org-1")
	if status.Code(err) != codes.PermissionDenied {
		t.Errorf("status code = %v, want %v", status.Code(err), codes.PermissionDenied)
	}
}
