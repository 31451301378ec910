package account

// RoleStore resolves a RoleRef to its permission set. Kept abstract (no
// direct platform.Database dependency) so account stays testable without a
// real database; the kernel orchestrator wires a platform-backed
// implementation at startup.
type RoleStore interface {
	Permissions(role RoleRef) []Permission
}

// staticRoleStore is an in-memory RoleStore, sufficient for tests and for
// small deployments that define roles in config rather than a database.
type staticRoleStore struct {
	roles map[RoleRef][]Permission
}

// NewStaticRoleStore builds a RoleStore from a fixed role->permissions map.
func NewStaticRoleStore(roles map[RoleRef][]Permission) RoleStore {
	return &staticRoleStore{roles: roles}
}

func (s *staticRoleStore) Permissions(role RoleRef) []Permission {
	return s.roles[role]
}

// dominantPermission evaluates spec.md §3/§8's dominance predicate: does
// the union of the user's direct permissions and their roles' permissions
// contain some p' that dominates req? Returns the first dominating
// permission found, for attaching to audit/error metadata.
func dominantPermission(user User, roles RoleStore, req Permission) (Permission, bool) {
	for _, p := range user.PermissionsDirect {
		if p.Dominates(req) {
			return p, true
		}
	}
	if roles == nil {
		return Permission{}, false
	}
	for _, ref := range user.Roles {
		for _, p := range roles.Permissions(ref) {
			if p.Dominates(req) {
				return p, true
			}
		}
	}
	return Permission{}, false
}
