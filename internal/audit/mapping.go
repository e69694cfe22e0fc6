package audit

import "strings"

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
}

// methodOverrides maps RPC method names to domain audit actions.
var methodOverrides = map[string]ActionResource{
	"SelectOrganization": {Action: ActionOrganizationSelected, Resource: "organization"},
	"SignOut":            {Action: ActionSignedOut, Resource: "session"},
}

// ParseFullMethod returns action and resource for a gRPC full method
// (e.g. /pulsedeck.access.v1.AccessService/GetProfile -> get/access).
// SelectOrganization and SignOut map to organization_selected and signed_out.
func ParseFullMethod(fullMethod string) ActionResource {
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	if ar, ok := methodOverrides[method]; ok {
		return ar
	}
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	return ActionResource{Action: methodToAction(method), Resource: serviceToResource(beforeSlash[dot+1:])}
}

func serviceToResource(serviceName string) string {
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[0:1]) + s[1:]
}

func methodToAction(method string) string {
	for _, verb := range []string{"Get", "List", "Resolve", "Check", "Select", "Create", "Update", "Delete"} {
		if strings.HasPrefix(method, verb) && method != verb {
			return strings.ToLower(verb)
		}
	}
	return strings.ToLower(method)
}
