// Package rbac resolves a user's role in an organization and answers minimum-rank
// capability queries (member < moderator < admin).
package rbac

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"danus-dashboard/backend/internal/membership/domain"
)

const instrumentationName = "danus-dashboard/backend/internal/platform/rbac"

// Lookup outcomes. Callers that only need a yes/no answer use ResolveRole or Verdict,
// which collapse every error into "no role".
var (
	ErrNotMember           = errors.New("rbac: user is not a member of the organization")
	ErrLookupFailed        = errors.New("rbac: membership lookup failed")
	ErrDuplicateMembership = errors.New("rbac: more than one membership for user and organization")
)

// MembershipFinder returns every membership row for a (user, org) pair.
type MembershipFinder interface {
	FindByUserAndOrg(ctx context.Context, userID, orgID string) ([]*domain.Membership, error)
}

// Resolver determines a user's role in an organization with a single membership lookup per decision.
type Resolver struct {
	finder  MembershipFinder
	tracer  trace.Tracer
	lookups metric.Int64Counter
}

// NewResolver returns a Resolver that reads memberships from finder and reports through the
// global OpenTelemetry providers.
func NewResolver(finder MembershipFinder) *Resolver {
	lookups, err := otel.Meter(instrumentationName).Int64Counter("rbac.lookups",
		metric.WithDescription("Membership lookups by outcome"))
	if err != nil {
		log.Printf("rbac: create lookups counter: %v", err)
	}
	return &Resolver{
		finder:  finder,
		tracer:  otel.Tracer(instrumentationName),
		lookups: lookups,
	}
}

// Lookup is the single adapter over the membership store. It returns the user's role, or
// ErrNotMember, ErrDuplicateMembership, or an error wrapping ErrLookupFailed.
// Empty ids return ErrNotMember without a lookup.
func (r *Resolver) Lookup(ctx context.Context, userID, orgID string) (domain.Role, error) {
	if userID == "" || orgID == "" {
		return domain.RoleNone, ErrNotMember
	}
	ctx, span := r.tracer.Start(ctx, "rbac.Lookup", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("org_id", orgID),
	))
	defer span.End()

	role, err := r.lookup(ctx, userID, orgID)
	outcome := "found"
	switch {
	case errors.Is(err, ErrNotMember):
		outcome = "not_member"
	case errors.Is(err, ErrDuplicateMembership):
		outcome = "duplicate"
		span.SetStatus(codes.Error, err.Error())
	case err != nil:
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
	default:
		span.SetAttributes(attribute.String("role", role.String()))
	}
	if r.lookups != nil {
		r.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	return role, err
}

func (r *Resolver) lookup(ctx context.Context, userID, orgID string) (domain.Role, error) {
	ms, err := r.finder.FindByUserAndOrg(ctx, userID, orgID)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return domain.RoleNone, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	switch len(ms) {
	case 0:
		return domain.RoleNone, ErrNotMember
	case 1:
		if ms[0] == nil || !ms[0].Role.Valid() {
			return domain.RoleNone, fmt.Errorf("%w: %w", ErrLookupFailed, domain.ErrUnknownRole)
		}
		return ms[0].Role, nil
	default:
		log.Printf("rbac: ALERT duplicate memberships for user=%s org=%s (%d rows); treating as no role", userID, orgID, len(ms))
		return domain.RoleNone, ErrDuplicateMembership
	}
}

// ResolveRole returns the user's role in the organization and true, or RoleNone and false when
// the user has no membership. Lookup failures are indistinguishable from "not a member".
func (r *Resolver) ResolveRole(ctx context.Context, userID, orgID string) (domain.Role, bool) {
	role, err := r.Lookup(ctx, userID, orgID)
	if err != nil {
		if !errors.Is(err, ErrNotMember) {
			log.Printf("rbac: resolve role user=%s org=%s: %v", userID, orgID, err)
		}
		return domain.RoleNone, false
	}
	return role, true
}

// Verdict resolves the role once and returns a Verdict that answers every capability
// predicate for the same authorization decision.
func (r *Resolver) Verdict(ctx context.Context, userID, orgID string) Verdict {
	role, _ := r.ResolveRole(ctx, userID, orgID)
	return Verdict{UserID: userID, OrgID: orgID, Role: role}
}

// HasAtLeast reports whether the user's role in the organization ranks at or above min.
func (r *Resolver) HasAtLeast(ctx context.Context, userID, orgID string, min domain.Role) bool {
	return r.Verdict(ctx, userID, orgID).HasAtLeast(min)
}

// Verdict is the resolved role of one user in one organization.
// All predicates are pure functions of Role.
type Verdict struct {
	UserID string
	OrgID  string
	Role   domain.Role
}

// Found reports whether the user holds any role in the organization.
func (v Verdict) Found() bool { return v.Role.Valid() }

// HasAtLeast reports whether the resolved role ranks at or above min.
func (v Verdict) HasAtLeast(min domain.Role) bool { return v.Role.AtLeast(min) }

func (v Verdict) IsAdmin() bool            { return v.HasAtLeast(domain.RoleAdmin) }
func (v Verdict) IsModeratorOrAbove() bool { return v.HasAtLeast(domain.RoleModerator) }
func (v Verdict) IsMember() bool           { return v.HasAtLeast(domain.RoleMember) }
