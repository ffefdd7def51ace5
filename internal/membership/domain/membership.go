package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownRole is returned by ParseRole for role strings outside the closed set.
var ErrUnknownRole = errors.New("unknown membership role")

// Membership links a user to an organization with a role.
// At most one membership exists per (UserID, OrgID) pair.
type Membership struct {
	ID        string
	UserID    string
	OrgID     string
	Role      Role
	CreatedAt time.Time
}

// Role is an organization role. The zero value is RoleNone (no membership).
// Roles are totally ordered: member < moderator < admin.
type Role uint8

const (
	RoleNone Role = iota
	RoleMember
	RoleModerator
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleMember:    "member",
	RoleModerator: "moderator",
	RoleAdmin:     "admin",
}

// Roles lists every assignable role in ascending rank.
func Roles() []Role {
	return []Role{RoleMember, RoleModerator, RoleAdmin}
}

// ParseRole converts the stored role string to a Role. Unknown strings are rejected
// instead of being treated as the lowest rank.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "member":
		return RoleMember, nil
	case "moderator":
		return RoleModerator, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleNone, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// String returns the stored form of the role ("member", "moderator", "admin"), or "none".
func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return "none"
}

// Rank returns the role's position in the total order: member=1, moderator=2, admin=3.
// RoleNone and out-of-range values rank 0.
func (r Role) Rank() int {
	if _, ok := roleNames[r]; !ok {
		return 0
	}
	return int(r)
}

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r ranks at or above min. RoleNone never satisfies any minimum,
// and an invalid min is never satisfied.
func (r Role) AtLeast(min Role) bool {
	if !r.Valid() || !min.Valid() {
		return false
	}
	return r.Rank() >= min.Rank()
}

// Validate validates the membership for persistence. Returns an error describing the first validation failure.
func (m *Membership) Validate() error {
	if m.UserID == "" {
		return errors.New("user_id is required")
	}
	if m.OrgID == "" {
		return errors.New("org_id is required")
	}
	if !m.Role.Valid() {
		return ErrUnknownRole
	}
	return nil
}
