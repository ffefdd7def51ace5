package audit

import (
	"strings"
	"unicode"
)

// ActionResource holds action and resource derived from a gRPC full method name or an event type.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseFullMethod returns action and resource for a gRPC full method
// (e.g. /danus.authz.v1.AuthorizationService/ResolveRole -> resolve_role on authorization).
func ParseFullMethod(fullMethod string) ActionResource {
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: snakeCase(method), Resource: "unknown"}
	}
	resource := strings.TrimSuffix(beforeSlash[dot+1:], "Service")
	if resource == "" {
		resource = "unknown"
	}
	return ActionResource{Action: snakeCase(method), Resource: snakeCase(resource)}
}

// ActionForEvent splits a dotted event type ("auth.signed_in") into resource and action.
func ActionForEvent(eventType string) ActionResource {
	resource, action, ok := strings.Cut(eventType, ".")
	if !ok || resource == "" || action == "" {
		return ActionResource{Action: eventType, Resource: "unknown"}
	}
	return ActionResource{Action: action, Resource: resource}
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
