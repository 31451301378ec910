package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/qorzen/kernel/internal/kernelerr"
	"github.com/qorzen/kernel/internal/metrics"
	"github.com/qorzen/kernel/pkg/logging"
)

// UserStore resolves a user id to its current record, the minimal surface
// Gate needs (roles/direct permissions/role_version for §4.4's cache key
// and dominance evaluation).
type UserStore interface {
	GetUser(ctx context.Context, userID string) (User, error)
}

// sessionRecord is what the Gate keeps per issued session, beyond the
// public Session fields: the refresh-token epoch used to invalidate a
// rotated-out refresh token atomically.
type sessionRecord struct {
	session Session
	epoch   uint64
}

// Gate is the kernel's account & authorization gate (spec.md §4.4).
// Grounded in the pack's auth-package shape (rbac/session/ratelimit) since
// the teacher carries no lifecycle logic of its own here — only the
// two-struct OAuth status summary this package's name is borrowed from.
type Gate struct {
	mu        sync.RWMutex
	providers map[string]AuthProvider
	users     UserStore
	roles     RoleStore

	sessions map[string]*sessionRecord // token -> record
	byRefresh map[string]string        // refresh token -> access token

	signingKey []byte
	ttl        time.Duration
	refreshTTL time.Duration

	cache *permissionCache
}

// GateConfig configures session TTLs and the signing key used for JWT
// session tokens.
type GateConfig struct {
	SigningKey      []byte
	SessionTTL      time.Duration
	RefreshTTL      time.Duration
	PermissionCache int
}

// NewGate constructs a Gate. Call RegisterProvider for each AuthProvider
// the deployment supports before calling Authenticate.
func NewGate(cfg GateConfig, users UserStore, roles RoleStore, m *metrics.Registry) *Gate {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Gate{
		providers:  make(map[string]AuthProvider),
		users:      users,
		roles:      roles,
		sessions:   make(map[string]*sessionRecord),
		byRefresh:  make(map[string]string),
		signingKey: cfg.SigningKey,
		ttl:        cfg.SessionTTL,
		refreshTTL: cfg.RefreshTTL,
		cache:      newPermissionCache(cfg.PermissionCache, m),
	}
}

// RegisterProvider installs an AuthProvider keyed by its Kind().
func (g *Gate) RegisterProvider(p AuthProvider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.providers[p.Kind()] = p
}

// sessionClaims is the JWT claim set embedded in a session token.
type sessionClaims struct {
	jwt.RegisteredClaims
	Epoch uint64 `json:"epoch"`
}

// Authenticate delegates to the registered AuthProvider matching
// creds.Kind and, on success, issues a new Session (spec.md §4.4).
func (g *Gate) Authenticate(ctx context.Context, creds Credentials) (Session, error) {
	g.mu.RLock()
	provider, ok := g.providers[creds.Kind]
	g.mu.RUnlock()
	if !ok {
		return Session{}, kernelerr.New(kernelerr.KindAuth, kernelerr.SeverityMedium, "account.authenticate", "auth.invalid: no provider for kind "+creds.Kind)
	}

	userID, err := provider.Authenticate(ctx, creds)
	if err != nil {
		logging.Audit(logging.AuditEvent{Action: "authenticate", Outcome: "failure", Details: creds.Kind, Error: err.Error()})
		return Session{}, err
	}

	user, err := g.users.GetUser(ctx, userID)
	if err != nil {
		return Session{}, kernelerr.Wrap(kernelerr.KindAuth, kernelerr.SeverityMedium, "account.authenticate", "auth.invalid: user lookup failed", err)
	}
	if !user.IsActive {
		return Session{}, kernelerr.New(kernelerr.KindAuth, kernelerr.SeverityMedium, "account.authenticate", "auth.locked")
	}

	sess, err := g.issueSession(userID, 0)
	if err != nil {
		return Session{}, err
	}
	logging.Audit(logging.AuditEvent{Action: "authenticate", Outcome: "success", UserID: userID})
	return sess, nil
}

func (g *Gate) issueSession(userID string, epoch uint64) (Session, error) {
	now := time.Now()
	expires := now.Add(g.ttl)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Epoch: epoch,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.signingKey)
	if err != nil {
		return Session{}, kernelerr.Wrap(kernelerr.KindInternal, kernelerr.SeverityHigh, "account.issue_session", "signing session token", err)
	}

	refreshToken, err := randomToken()
	if err != nil {
		return Session{}, kernelerr.Wrap(kernelerr.KindInternal, kernelerr.SeverityHigh, "account.issue_session", "generating refresh token", err)
	}

	sess := Session{
		Token:        signed,
		UserID:       userID,
		IssuedAt:     now,
		ExpiresAt:    expires,
		RefreshToken: refreshToken,
	}

	g.mu.Lock()
	g.sessions[signed] = &sessionRecord{session: sess, epoch: epoch}
	g.byRefresh[refreshToken] = signed
	g.mu.Unlock()

	return sess, nil
}

// ValidateToken verifies token's signature and expiry, then requires its
// session to still be known to this Gate and not revoked, and returns its
// Claims. Errors are auth.expired (expired JWT) or auth.invalid (bad
// signature, unknown, revoked or refreshed-away session).
func (g *Gate) ValidateToken(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		return g.signingKey, nil
	})
	if err != nil {
		if isExpired(err) {
			return Claims{}, kernelerr.New(kernelerr.KindAuth, kernelerr.SeverityLow, "account.validate_token", "auth.expired")
		}
		return Claims{}, kernelerr.Wrap(kernelerr.KindAuth, kernelerr.SeverityMedium, "account.validate_token", "auth.invalid", err)
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return Claims{}, kernelerr.New(kernelerr.KindAuth, kernelerr.SeverityMedium, "account.validate_token", "auth.invalid")
	}

	g.mu.RLock()
	rec, exists := g.sessions[token]
	g.mu.RUnlock()
	if !exists || rec.session.revoked {
		return Claims{}, kernelerr.New(kernelerr.KindAuth, kernelerr.SeverityMedium, "account.validate_token", "auth.invalid: session revoked")
	}

	return Claims{
		UserID:    claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func isExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

// Refresh rotates the token pair behind refreshToken; the old refresh
// token is invalidated atomically on success (spec.md §4.4).
func (g *Gate) Refresh(refreshToken string) (Session, error) {
	g.mu.Lock()
	oldAccess, ok := g.byRefresh[refreshToken]
	if !ok {
		g.mu.Unlock()
		return Session{}, kernelerr.New(kernelerr.KindAuth, kernelerr.SeverityMedium, "account.refresh", "auth.invalid: unknown refresh token")
	}
	rec := g.sessions[oldAccess]
	userID := rec.session.UserID
	nextEpoch := rec.epoch + 1

	delete(g.byRefresh, refreshToken)
	delete(g.sessions, oldAccess)
	g.mu.Unlock()

	return g.issueSession(userID, nextEpoch)
}

// Check evaluates dominance (spec.md §3) for user against permission,
// memoized in the bounded cache keyed by (user_id, permission,
// role_version).
func (g *Gate) Check(ctx context.Context, userID string, permission Permission) (bool, error) {
	user, err := g.users.GetUser(ctx, userID)
	if err != nil {
		return false, kernelerr.Wrap(kernelerr.KindAuth, kernelerr.SeverityLow, "account.check", "user lookup failed", err)
	}

	key := cacheKey{userID: userID, permission: permission.String(), roleVersion: user.RoleVersion}
	ok := g.cache.getOrCompute(key, func() bool {
		_, dominates := dominantPermission(user, g.roles, permission)
		return dominates
	})
	return ok, nil
}

// Revoke marks the session matching sessionToken expired. Cached
// permission decisions for that session's user remain valid until the
// next role-version bump (spec.md §4.4 — revocation is not a cache
// invalidation event).
func (g *Gate) Revoke(sessionToken string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.sessions[sessionToken]
	if !ok {
		return kernelerr.New(kernelerr.KindAuth, kernelerr.SeverityLow, "account.revoke", "unknown session")
	}
	rec.session.revoked = true
	delete(g.byRefresh, rec.session.RefreshToken)
	return nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
