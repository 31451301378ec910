package account

import (
	"context"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/qorzen/kernel/internal/kernelerr"
)

// AuthProvider is the contract every credential-kind handler implements
// (spec.md §4.4: "local, oauth2, saml, ldap providers share the
// AuthProvider contract; only one provider needs to succeed"). saml/ldap
// ship no concrete implementation in this kernel — only the interface
// boundary, consistent with the Non-goal "providing a specific
// authentication provider".
type AuthProvider interface {
	// Kind returns the Credentials.Kind this provider handles.
	Kind() string
	// Authenticate verifies creds and returns the authenticated user's id.
	Authenticate(ctx context.Context, creds Credentials) (userID string, err error)
}

// UserLookup resolves a username to the stored password hash and user id,
// the minimal surface LocalProvider needs from wherever users are
// persisted (typically platform.Database; kept abstract here so account
// has no direct platform dependency).
type UserLookup interface {
	LookupByUsername(ctx context.Context, username string) (userID string, passwordHash string, err error)
}

// LocalProvider authenticates username/password pairs against bcrypt
// hashes (spec.md §4.4, grounded in the pack's wisbric-style local auth
// package).
type LocalProvider struct {
	users UserLookup
}

// NewLocalProvider constructs a LocalProvider backed by users.
func NewLocalProvider(users UserLookup) *LocalProvider {
	return &LocalProvider{users: users}
}

func (p *LocalProvider) Kind() string { return "local" }

func (p *LocalProvider) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	userID, hash, err := p.users.LookupByUsername(ctx, creds.Username)
	if err != nil {
		return "", kernelerr.New(kernelerr.KindAuth, kernelerr.SeverityMedium, "account.local", "auth.invalid")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		return "", kernelerr.New(kernelerr.KindAuth, kernelerr.SeverityMedium, "account.local", "auth.invalid")
	}
	return userID, nil
}

// HashPassword bcrypt-hashes a plaintext password at the package's default
// cost, for use by whatever admin/provisioning path creates local users.
func HashPassword(plaintext string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", kernelerr.Wrap(kernelerr.KindInternal, kernelerr.SeverityMedium, "account.local", "hashing password", err)
	}
	return string(h), nil
}

// OAuth2Exchanger is the minimal surface OAuth2Provider needs from
// golang.org/x/oauth2's Config, narrowed so tests can fake it.
type OAuth2Exchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// OAuth2UserResolver maps a verified OAuth2 token to a kernel user id
// (e.g. via a userinfo endpoint call); left to the embedding host since
// the claim shape varies per identity provider.
type OAuth2UserResolver func(ctx context.Context, token *oauth2.Token) (userID string, err error)

// OAuth2Provider exchanges an authorization code for a token and resolves
// it to a kernel user id (spec.md §4.4).
type OAuth2Provider struct {
	exchanger OAuth2Exchanger
	resolve   OAuth2UserResolver
}

// NewOAuth2Provider constructs an OAuth2Provider. cfg is typically an
// *oauth2.Config, which satisfies OAuth2Exchanger directly.
func NewOAuth2Provider(cfg OAuth2Exchanger, resolve OAuth2UserResolver) *OAuth2Provider {
	return &OAuth2Provider{exchanger: cfg, resolve: resolve}
}

func (p *OAuth2Provider) Kind() string { return "oauth2" }

func (p *OAuth2Provider) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	code := creds.Extra["code"]
	if code == "" {
		return "", kernelerr.Validation("account.oauth2", "missing authorization code")
	}
	token, err := p.exchanger.Exchange(ctx, code)
	if err != nil {
		return "", kernelerr.Wrap(kernelerr.KindAuth, kernelerr.SeverityMedium, "account.oauth2", "auth.invalid", err)
	}
	userID, err := p.resolve(ctx, token)
	if err != nil {
		return "", kernelerr.Wrap(kernelerr.KindAuth, kernelerr.SeverityMedium, "account.oauth2", "auth.invalid", err)
	}
	return userID, nil
}
