package handler

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"danus-dashboard/backend/internal/membership/domain"
	"danus-dashboard/backend/internal/platform/rbac"
	"danus-dashboard/backend/internal/server/interceptors"
)

// ActionPolicy answers which organization actions a verdict permits.
type ActionPolicy interface {
	Allowed(ctx context.Context, v rbac.Verdict, action string) bool
	PermittedActions(ctx context.Context, v rbac.Verdict) []string
}

// Server implements AuthorizationService for org-scoped role queries.
// Every method resolves the role with a single membership lookup.
type Server struct {
	resolver rbac.VerdictResolver
	actions  ActionPolicy
}

// NewServer returns a new Authorization gRPC server. actions may be nil; then GetVerdict
// returns no actions and CheckRole rejects action checks.
func NewServer(resolver rbac.VerdictResolver, actions ActionPolicy) *Server {
	return &Server{resolver: resolver, actions: actions}
}

// ResolveRole returns the role of user_id (default: the caller) in org_id.
// Looking up another user requires moderator or above in that organization.
func (s *Server) ResolveRole(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.resolver == nil {
		return nil, status.Error(codes.Unimplemented, "method ResolveRole not implemented")
	}
	callerID, ok := interceptors.GetUserID(ctx)
	if !ok || callerID == "" {
		return nil, status.Error(codes.Unauthenticated, "user context required")
	}
	orgID := stringField(req, "org_id")
	if orgID == "" {
		return nil, status.Error(codes.InvalidArgument, "org_id is required")
	}
	userID := stringField(req, "user_id")
	if userID == "" {
		userID = callerID
	}
	if userID != callerID {
		if _, err := rbac.RequireOrgModerator(ctx, s.resolver, orgID); err != nil {
			return nil, err
		}
	}
	v := s.resolver.Verdict(ctx, userID, orgID)
	return newStruct(map[string]interface{}{
		"user_id": userID,
		"org_id":  orgID,
		"role":    roleName(v.Role),
		"found":   v.Found(),
	})
}

// CheckRole reports whether the caller holds at least min_role in org_id. When action is set
// instead, it reports whether the caller's role permits that action.
func (s *Server) CheckRole(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.resolver == nil {
		return nil, status.Error(codes.Unimplemented, "method CheckRole not implemented")
	}
	if action := stringField(req, "action"); action != "" {
		return s.checkAction(ctx, stringField(req, "org_id"), action)
	}
	min, err := domain.ParseRole(stringField(req, "min_role"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "min_role must be member, moderator or admin")
	}
	_, err = rbac.RequireOrgRole(ctx, s.resolver, stringField(req, "org_id"), min)
	switch status.Code(err) {
	case codes.OK:
		return newStruct(map[string]interface{}{"allowed": true})
	case codes.PermissionDenied:
		return newStruct(map[string]interface{}{"allowed": false})
	default:
		return nil, err
	}
}

func (s *Server) checkAction(ctx context.Context, orgID, action string) (*structpb.Struct, error) {
	if s.actions == nil {
		return nil, status.Error(codes.Unimplemented, "action checks not configured")
	}
	userID, ok := interceptors.GetUserID(ctx)
	if !ok || userID == "" {
		return nil, status.Error(codes.Unauthenticated, "user context required")
	}
	if orgID == "" {
		return nil, status.Error(codes.InvalidArgument, "org_id is required")
	}
	v := s.resolver.Verdict(ctx, userID, orgID)
	return newStruct(map[string]interface{}{
		"allowed": s.actions.Allowed(ctx, v, action),
		"action":  action,
	})
}

// GetVerdict returns the caller's role in org_id with every capability predicate and the
// permitted actions.
func (s *Server) GetVerdict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.resolver == nil {
		return nil, status.Error(codes.Unimplemented, "method GetVerdict not implemented")
	}
	userID, ok := interceptors.GetUserID(ctx)
	if !ok || userID == "" {
		return nil, status.Error(codes.Unauthenticated, "user context required")
	}
	orgID := stringField(req, "org_id")
	if orgID == "" {
		return nil, status.Error(codes.InvalidArgument, "org_id is required")
	}
	v := s.resolver.Verdict(ctx, userID, orgID)
	actions := []interface{}{}
	if s.actions != nil {
		for _, a := range s.actions.PermittedActions(ctx, v) {
			actions = append(actions, a)
		}
	}
	return newStruct(map[string]interface{}{
		"org_id":                orgID,
		"role":                  roleName(v.Role),
		"is_admin":              v.IsAdmin(),
		"is_moderator_or_above": v.IsModeratorOrAbove(),
		"is_member":             v.IsMember(),
		"actions":               actions,
	})
}

func stringField(s *structpb.Struct, name string) string {
	return strings.TrimSpace(s.GetFields()[name].GetStringValue())
}

func roleName(r domain.Role) string {
	if !r.Valid() {
		return ""
	}
	return r.String()
}

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return s, nil
}
