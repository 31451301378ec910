package sandbox

import (
	"context"

	"github.com/qorzen/kernel/internal/account"
	"github.com/qorzen/kernel/internal/kernelerr"
	"github.com/qorzen/kernel/internal/plugin"
)

// AccountPermissionPolicy adapts an account.Gate into a plugin.PermissionPolicy
// (spec.md §4.5 stage 1): it checks every permission a plugin manifest
// declares against the installing operator's own grants, scoped Global —
// a plugin can never be loaded with a permission its installer doesn't
// themselves hold.
func AccountPermissionPolicy(gate *account.Gate, operatorUserID string) plugin.PermissionPolicy {
	return func(required []string) error {
		for _, raw := range required {
			perm, ok := account.ParsePermission(raw)
			if !ok {
				return kernelerr.Validation("sandbox.permission_policy", "malformed required_permissions entry: "+raw)
			}
			ok, err := gate.Check(context.Background(), operatorUserID, perm)
			if err != nil {
				return err
			}
			if !ok {
				return kernelerr.Permission("sandbox.permission_policy", raw, "")
			}
		}
		return nil
	}
}
