// Package engine evaluates which organization-scoped actions a resolved role may perform,
// using an OPA Rego policy compiled once at startup.
package engine

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"sort"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"danus-dashboard/backend/internal/membership/domain"
	"danus-dashboard/backend/internal/platform/rbac"
)

// Organization-scoped actions known to the default policy.
const (
	ActionViewDashboard      = "view_dashboard"
	ActionEditCatalog        = "edit_catalog"
	ActionManageProducts     = "manage_products"
	ActionModerateComments   = "moderate_comments"
	ActionUpdateOrganization = "update_organization"
	ActionManageMembers      = "manage_members"
	ActionDeleteOrganization = "delete_organization"
)

//go:embed actions.rego
var defaultActionPolicy string

const (
	allowQuery     = "data.danus.actions.allow"
	permittedQuery = "data.danus.actions.permitted"
)

// ActionPolicy answers "may this verdict perform this action". Evaluation errors deny.
type ActionPolicy struct {
	allow     rego.PreparedEvalQuery
	permitted rego.PreparedEvalQuery
}

// NewActionPolicy compiles the built-in policy.
func NewActionPolicy(ctx context.Context) (*ActionPolicy, error) {
	return NewActionPolicyFromSource(ctx, defaultActionPolicy)
}

// NewActionPolicyFromSource compiles a custom policy. It must define package danus.actions with
// a boolean allow rule and a permitted set, both reading input.action and input.rank.
func NewActionPolicyFromSource(ctx context.Context, source string) (*ActionPolicy, error) {
	compiler, err := ast.CompileModules(map[string]string{"actions.rego": source})
	if err != nil {
		return nil, fmt.Errorf("compile action policy: %w", err)
	}
	allow, err := rego.New(rego.Query(allowQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare allow query: %w", err)
	}
	permitted, err := rego.New(rego.Query(permittedQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare permitted query: %w", err)
	}
	return &ActionPolicy{allow: allow, permitted: permitted}, nil
}

// Allowed reports whether v's role meets the minimum rank for action. Unknown actions are denied.
func (p *ActionPolicy) Allowed(ctx context.Context, v rbac.Verdict, action string) bool {
	rs, err := p.allow.Eval(ctx, rego.EvalInput(input(v.Role, action)))
	if err != nil {
		log.Printf("policy: evaluate %s for user=%s org=%s: %v", action, v.UserID, v.OrgID, err)
		return false
	}
	allowed, ok := firstValue(rs).(bool)
	return ok && allowed
}

// PermittedActions returns every action v may perform, sorted.
func (p *ActionPolicy) PermittedActions(ctx context.Context, v rbac.Verdict) []string {
	rs, err := p.permitted.Eval(ctx, rego.EvalInput(input(v.Role, "")))
	if err != nil {
		log.Printf("policy: evaluate permitted actions for user=%s org=%s: %v", v.UserID, v.OrgID, err)
		return nil
	}
	raw, _ := firstValue(rs).([]interface{})
	out := make([]string, 0, len(raw))
	for _, a := range raw {
		if s, ok := a.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// HealthCheck evaluates the prepared queries against a fixed admin input.
func (p *ActionPolicy) HealthCheck(ctx context.Context) error {
	rs, err := p.allow.Eval(ctx, rego.EvalInput(input(domain.RoleAdmin, ActionViewDashboard)))
	if err != nil {
		return fmt.Errorf("eval action policy: %w", err)
	}
	if _, ok := firstValue(rs).(bool); !ok {
		return fmt.Errorf("action policy query returned no result")
	}
	return nil
}

func input(role domain.Role, action string) map[string]interface{} {
	rank := 0
	if role.Valid() {
		rank = role.Rank()
	}
	return map[string]interface{}{"action": action, "rank": rank}
}

func firstValue(rs rego.ResultSet) interface{} {
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil
	}
	return rs[0].Expressions[0].Value
}
