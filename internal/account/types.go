package account

import (
	"strings"
	"time"
)

// Scope orders how broadly a Permission applies (spec.md §3). Global
// dominates any Department, and any Department dominates Own.
type Scope struct {
	Kind string // "Own", "Department", "Global"
	Dept string // set only when Kind == "Department"
}

// ScopeOwn, ScopeGlobal are the two scopes with no further parameter.
// ScopeDepartment(name) constructs the parameterized variant.
var (
	ScopeOwn    = Scope{Kind: "Own"}
	ScopeGlobal = Scope{Kind: "Global"}
)

// ScopeDepartment builds a Department-scoped Scope.
func ScopeDepartment(dept string) Scope { return Scope{Kind: "Department", Dept: dept} }

func (s Scope) String() string {
	if s.Kind == "Department" {
		return "Department(" + s.Dept + ")"
	}
	return s.Kind
}

// rank gives the three scope kinds a total order for dominance comparison:
// Global(2) >= Department(1) >= Own(0), Department only dominates another
// Department of the same name.
func (s Scope) rank() int {
	switch s.Kind {
	case "Global":
		return 2
	case "Department":
		return 1
	default:
		return 0
	}
}

// Dominates reports whether s covers required (spec.md §3's dominance:
// "Global ⊇ Department(d) ⊇ Own").
func (s Scope) Dominates(required Scope) bool {
	if s.Kind == "Global" {
		return true
	}
	if s.Kind == "Department" {
		if required.Kind == "Global" {
			return false
		}
		if required.Kind == "Department" {
			return s.Dept == required.Dept
		}
		return true // Department dominates Own
	}
	// Own only dominates Own.
	return required.Kind == "Own"
}

// Permission is a single grantable capability (spec.md §3).
type Permission struct {
	Resource string
	Action   string
	Scope    Scope
}

// Dominates reports whether p covers the requested permission req: same
// resource, same action, and p.Scope dominates req.Scope.
func (p Permission) Dominates(req Permission) bool {
	return p.Resource == req.Resource && p.Action == req.Action && p.Scope.Dominates(req.Scope)
}

func (p Permission) String() string {
	return p.Resource + ":" + p.Action + "@" + p.Scope.String()
}

// ParsePermission decodes a "resource:action" string — the form manifests
// and route declarations use — into a Permission scoped Global, the
// broadest scope a bare declaration can reasonably default to.
func ParsePermission(raw string) (Permission, bool) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Permission{}, false
	}
	return Permission{Resource: parts[0], Action: parts[1], Scope: ScopeGlobal}, true
}

// RoleRef names a role a User holds; the role's own permission set is
// resolved through a RoleStore at check time rather than copied onto User.
type RoleRef string

// Role is a named bundle of permissions.
type Role struct {
	Name        string
	Permissions []Permission
}

// User is the kernel's identity record (spec.md §3).
type User struct {
	ID                 string
	Username           string
	Email              string
	Roles              []RoleRef
	PermissionsDirect   []Permission
	IsActive           bool
	Preferences        map[string]any
	LastLogin          *time.Time
	RoleVersion        uint64 // bumped on any role/permission mutation; invalidates the cache
}

// Session is an issued authentication session (spec.md §3).
type Session struct {
	Token        string
	UserID       string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	RefreshToken string
	revoked      bool
}

// Claims is what ValidateToken returns: the decoded, verified contents of
// a session token.
type Claims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Credentials is an opaque bag an AuthProvider interprets; Kind
// selects which registered provider handles it.
type Credentials struct {
	Kind     string // "local", "oauth2", "saml", "ldap"
	Username string
	Password string
	// OAuth2/SAML/LDAP-specific fields are carried in Extra to keep the
	// Credentials struct provider-agnostic at the gate boundary.
	Extra map[string]string
}
