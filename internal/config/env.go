package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix spec.md §6 reserves for the Runtime-tier
// environment overlay: QORZEN_<KEY_PATH>, uppercase, with "__" as the
// dotted-path separator (so QORZEN_EVENTBUS__QUEUE_SIZE becomes
// "eventbus.queue_size").
const EnvPrefix = "QORZEN_"

// LoadEnvOverlay scans os.Environ for QORZEN_-prefixed variables and loads
// them into the Runtime tier. Values are parsed as bool/int/float when they
// look like one, otherwise kept as strings — Runtime tier values never
// persist regardless (spec.md §3's tier ordering note).
func LoadEnvOverlay(store *Store) error {
	flat := make(map[string]any)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		path := strings.TrimPrefix(k, EnvPrefix)
		path = strings.ToLower(strings.ReplaceAll(path, "__", "."))
		if path == "" {
			continue
		}
		flat[path] = parseEnvValue(v)
	}
	return store.Reload(TierRuntime, flat)
}

func parseEnvValue(v string) any {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}
