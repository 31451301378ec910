package plugin

import (
	"context"

	"github.com/qorzen/kernel/internal/platform"
)

// PlatformMigrator adapts a platform.Database into a Migrator, translating
// manifest-declared MigrationSpecs into platform.Migration steps and
// running them under the plugin's own schema namespace (spec.md §4.5 stage
// 4: "each plugin's migrations run against its own namespace/schema").
func PlatformMigrator(db platform.Database) Migrator {
	return func(ctx context.Context, pluginID string, specs []MigrationSpec) error {
		migrations := make([]platform.Migration, len(specs))
		for i, s := range specs {
			migrations[i] = platform.Migration{Version: s.Version, Name: s.Name, Up: s.Up}
		}
		return db.Migrate(ctx, "plugin_"+pluginID, migrations)
	}
}
