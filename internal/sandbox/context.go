package sandbox

import (
	"github.com/qorzen/kernel/internal/account"
	"github.com/qorzen/kernel/internal/eventbus"
	"github.com/qorzen/kernel/internal/platform"
	"github.com/qorzen/kernel/internal/plugin"
)

// Builder holds the kernel-wide collaborators shared by every sandboxed
// plugin context it constructs. One Builder is owned by the orchestrator
// and handed to plugin.Registry as a plugin.ContextBuilder.
type Builder struct {
	Bus      *eventbus.Bus
	Platform platform.Provider
	Gate     *account.Gate
	Router   APIDispatcher
}

// APIDispatcher is the router's raw-dispatch surface, narrowed to what a
// plugin's APIClient proxy needs — kept as an interface here so sandbox
// never imports internal/router directly (router imports account and
// kernelerr; sandbox sits beside it, not above it). internal/router's
// Dispatcher.DispatchRaw satisfies this directly.
type APIDispatcher interface {
	DispatchRaw(method, path string, body []byte, headers map[string]string) (status int, respBody []byte, err error)
}

// Build implements plugin.ContextBuilder: it constructs a Context scoped
// to exactly one plugin's declared manifest.
func (b *Builder) Build(id string, m *plugin.Manifest, cfg map[string]any) plugin.Context {
	return &pluginContext{
		id:       id,
		manifest: m,
		cfg:      cfg,
		api:      &apiClient{pluginID: id, manifest: m, dispatcher: b.Router},
		bus:      newEventBusClient(id, b.Bus),
		db:       newPluginDatabase(id, m, b.Platform.DB),
		fs:       newScopedFileSystem(id, b.Platform.FS),
		log:      &pluginLogger{pluginID: id},
	}
}

type pluginContext struct {
	id       string
	manifest *plugin.Manifest
	cfg      map[string]any

	api plugin.APIClient
	bus plugin.EventBusClient
	db  plugin.PluginDatabase
	fs  plugin.ScopedFileSystem
	log plugin.Logger
}

func (c *pluginContext) PluginID() string          { return c.id }
func (c *pluginContext) Config() map[string]any    { return c.cfg }
func (c *pluginContext) APIClient() plugin.APIClient       { return c.api }
func (c *pluginContext) EventBus() plugin.EventBusClient   { return c.bus }
func (c *pluginContext) FileSystem() plugin.ScopedFileSystem { return c.fs }
func (c *pluginContext) Logger() plugin.Logger             { return c.log }

func (c *pluginContext) Database() (plugin.PluginDatabase, bool) {
	if c.db == nil {
		return nil, false
	}
	return c.db, true
}
