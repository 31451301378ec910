package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserStore struct {
	users map[string]User
}

func (f *fakeUserStore) GetUser(ctx context.Context, userID string) (User, error) {
	u, ok := f.users[userID]
	if !ok {
		return User{}, assertErr{}
	}
	return u, nil
}

type assertErr struct{}

func (assertErr) Error() string { return "not found" }

type fakeUserLookup struct {
	byUsername map[string]struct{ id, hash string }
}

func (f *fakeUserLookup) LookupByUsername(ctx context.Context, username string) (string, string, error) {
	rec, ok := f.byUsername[username]
	if !ok {
		return "", "", assertErr{}
	}
	return rec.id, rec.hash, nil
}

func newTestGate(t *testing.T) (*Gate, *fakeUserStore) {
	t.Helper()
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	users := &fakeUserStore{users: map[string]User{
		"u1": {ID: "u1", IsActive: true, Roles: []RoleRef{"admin"}},
	}}
	lookup := &fakeUserLookup{byUsername: map[string]struct{ id, hash string }{
		"alice": {id: "u1", hash: hash},
	}}
	roles := NewStaticRoleStore(map[RoleRef][]Permission{
		"admin": {{Resource: "products", Action: "read", Scope: ScopeGlobal}},
	})

	g := NewGate(GateConfig{SigningKey: []byte("test-signing-key")}, users, roles, nil)
	g.RegisterProvider(NewLocalProvider(lookup))
	return g, users
}

func TestGate_AuthenticateAndValidate(t *testing.T) {
	g, _ := newTestGate(t)
	sess, err := g.Authenticate(context.Background(), Credentials{Kind: "local", Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)

	claims, err := g.ValidateToken(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestGate_AuthenticateWrongPassword(t *testing.T) {
	g, _ := newTestGate(t)
	_, err := g.Authenticate(context.Background(), Credentials{Kind: "local", Username: "alice", Password: "wrong"})
	require.Error(t, err)
}

func TestGate_RefreshRotatesAndInvalidatesOld(t *testing.T) {
	g, _ := newTestGate(t)
	sess, err := g.Authenticate(context.Background(), Credentials{Kind: "local", Username: "alice", Password: "s3cret"})
	require.NoError(t, err)

	next, err := g.Refresh(sess.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Token, next.Token)

	_, err = g.Refresh(sess.RefreshToken)
	assert.Error(t, err, "a rotated-out refresh token must not work twice")
}

func TestGate_CheckDominance(t *testing.T) {
	g, _ := newTestGate(t)
	ok, err := g.Check(context.Background(), "u1", Permission{Resource: "products", Action: "read", Scope: ScopeGlobal})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Check(context.Background(), "u1", Permission{Resource: "products", Action: "write", Scope: ScopeGlobal})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGate_RevokeThenValidateFails(t *testing.T) {
	g, _ := newTestGate(t)
	sess, err := g.Authenticate(context.Background(), Credentials{Kind: "local", Username: "alice", Password: "s3cret"})
	require.NoError(t, err)

	require.NoError(t, g.Revoke(sess.Token))
	_, err = g.ValidateToken(sess.Token)
	assert.Error(t, err)
}

func TestScope_Dominance(t *testing.T) {
	assert.True(t, ScopeGlobal.Dominates(ScopeDepartment("d1")))
	assert.True(t, ScopeGlobal.Dominates(ScopeOwn))
	assert.True(t, ScopeDepartment("d1").Dominates(ScopeOwn))
	assert.False(t, ScopeDepartment("d1").Dominates(ScopeDepartment("d2")))
	assert.False(t, ScopeDepartment("d1").Dominates(ScopeGlobal))
}
