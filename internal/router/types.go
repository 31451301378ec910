package router

import "github.com/qorzen/kernel/internal/account"

// Request is spec.md §4.7's transport-agnostic request value.
type Request struct {
	Method        string
	Path          string
	Headers       map[string]string
	Query         map[string]string
	Body          []byte
	User          *account.Claims
	CorrelationID string

	// ClientIP and APIKey feed the per_ip/per_api_key rate-limit scopes;
	// both are optional and populated by whatever transport adapter an
	// embedding host wires in front of Dispatch.
	ClientIP string
	APIKey   string
}

// Response is spec.md §4.7's transport-agnostic response value.
type Response struct {
	Status      int
	Headers     map[string]string
	Body        []byte
	ContentType string
}

// Handler processes a resolved, authorized, rate-limit-cleared request. A
// returned error is translated into an HTTP-shaped Response via the error
// taxonomy (spec.md §7) rather than being left to the handler to encode.
type Handler func(Request) (Response, error)

// RateLimitScope names which identity a RouteRateLimit is keyed by
// (spec.md §4.7).
type RateLimitScope string

const (
	ScopeGlobal    RateLimitScope = "global"
	ScopePerUser   RateLimitScope = "per_user"
	ScopePerIP     RateLimitScope = "per_ip"
	ScopePerAPIKey RateLimitScope = "per_api_key"
)

// RateLimit configures a token bucket: burst_limit is the bucket size,
// requests_per_minute its refill rate.
type RateLimit struct {
	Scope             RateLimitScope
	BurstLimit        int
	RequestsPerMinute int
}

// RequiredPermission is one entry of a route's declared required_permissions
// (spec.md §8 scenario 5).
type RequiredPermission struct {
	Resource string
	Action   string
	Scope    account.Scope
}

// Route is a single registered endpoint.
type Route struct {
	Method              string
	Path                string
	Handler             Handler
	RequiredPermissions []RequiredPermission
	RateLimit           *RateLimit
	OwnerPluginID       string // empty for kernel-native routes
}
