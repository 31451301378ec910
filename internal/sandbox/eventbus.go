package sandbox

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/qorzen/kernel/internal/eventbus"
	"github.com/qorzen/kernel/internal/kernelerr"
)

// pluginPublishRate caps how many events per second a single plugin may
// publish through its sandboxed event_bus proxy (spec.md §4.6), preventing
// one runaway plugin from saturating the shared bus queue.
const pluginPublishRate = 50

// eventBusClient mediates a plugin's access to the shared event bus: every
// publish is tagged with the plugin's id as Source and subject to a
// per-plugin token bucket.
type eventBusClient struct {
	pluginID string
	bus      *eventbus.Bus
	limiter  *rate.Limiter
}

func newEventBusClient(pluginID string, bus *eventbus.Bus) *eventBusClient {
	return &eventBusClient{
		pluginID: pluginID,
		bus:      bus,
		limiter:  rate.NewLimiter(rate.Limit(pluginPublishRate), pluginPublishRate),
	}
}

func (c *eventBusClient) Publish(eventType string, body any) error {
	if !c.limiter.Allow() {
		return kernelerr.RateLimited("sandbox.event_bus", "plugin "+c.pluginID+" exceeded its publish rate")
	}
	return c.bus.Publish(eventbus.Event{
		Type:      eventType,
		Source:    "plugin:" + c.pluginID,
		Timestamp: time.Now(),
		Body:      body,
	})
}

func (c *eventBusClient) Subscribe(filterTypes []string, handler func(eventType, source string, body any)) func() {
	id := c.bus.Subscribe("plugin:"+c.pluginID, eventbus.Filter{Types: filterTypes}, func(e eventbus.Event) {
		handler(e.Type, e.Source, e.Body)
	})
	return func() { c.bus.Unsubscribe(id) }
}
