package sandbox

import (
	"context"
	"regexp"
	"strings"

	"github.com/qorzen/kernel/internal/kernelerr"
	"github.com/qorzen/kernel/internal/platform"
	"github.com/qorzen/kernel/internal/plugin"
)

// schemaStatementKind classifies a SQL statement's leading keyword against
// the DatabasePermissions a plugin declared (spec.md §4.6).
var schemaStatementKind = regexp.MustCompile(`(?i)^\s*(create|drop|alter)\b`)

// pluginDatabase mediates a plugin's access to the shared
// platform.Database: CREATE/ALTER/DROP are rejected unless explicitly
// granted, and every other statement is passed through unchanged. The
// schema field is stored but not applied to statements, and max_tables
// and max_storage are not checked.
type pluginDatabase struct {
	pluginID string
	schema   string
	perms    *plugin.DatabasePermissions
	db       platform.Database
}

func newPluginDatabase(pluginID string, m *plugin.Manifest, db platform.Database) plugin.PluginDatabase {
	if db == nil {
		return nil
	}
	return &pluginDatabase{pluginID: pluginID, schema: "plugin_" + pluginID, perms: m.DatabasePerms, db: db}
}

func (d *pluginDatabase) checkStatement(sql string) error {
	match := schemaStatementKind.FindStringSubmatch(sql)
	if match == nil {
		return nil
	}
	if d.perms == nil {
		return kernelerr.Permission("sandbox.database", "database:ddl", "").WithMetadata("plugin_id", d.pluginID)
	}
	switch strings.ToLower(match[1]) {
	case "create":
		if !d.perms.CanCreate {
			return kernelerr.Permission("sandbox.database", "database:create", "")
		}
	case "alter":
		if !d.perms.CanAlter {
			return kernelerr.Permission("sandbox.database", "database:alter", "")
		}
	case "drop":
		if !d.perms.CanDrop {
			return kernelerr.Permission("sandbox.database", "database:drop", "")
		}
	}
	return nil
}

func (d *pluginDatabase) Execute(ctx context.Context, sql string, args ...any) error {
	if err := d.checkStatement(sql); err != nil {
		return err
	}
	return d.db.Execute(ctx, sql, args...)
}

func (d *pluginDatabase) Query(ctx context.Context, sql string, args ...any) (plugin.Rows, error) {
	if err := d.checkStatement(sql); err != nil {
		return nil, err
	}
	rows, err := d.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
