package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateIssueAndVerifyRoundTrip(t *testing.T) {
	g := NewGate("test-secret", time.Minute)

	token, err := g.IssueTestToken("client-1")
	require.NoError(t, err)

	claims, err := g.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "client-1", claims.Subject)
}

func TestGateVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewGate("secret-a", time.Minute)
	verifier := NewGate("secret-b", time.Minute)

	token, err := issuer.IssueTestToken("client-1")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.Error(t, err)
}

func TestGateVerifyRejectsExpiredToken(t *testing.T) {
	g := NewGate("test-secret", -time.Minute)

	token, err := g.IssueTestToken("client-1")
	require.NoError(t, err)

	_, err = g.Verify(token)
	assert.Error(t, err)
}

func TestExtractTokenFromHeader(t *testing.T) {
	token, err := ExtractTokenFromHeader("Bearer abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	_, err = ExtractTokenFromHeader("")
	assert.Error(t, err)

	_, err = ExtractTokenFromHeader("Basic abc123")
	assert.Error(t, err)
}

func TestExtractTokenFromQuery(t *testing.T) {
	token, err := ExtractTokenFromQuery("token=abc123&other=x")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	_, err = ExtractTokenFromQuery("other=x")
	assert.Error(t, err)
}

func TestAuthenticateFallsBackToQuery(t *testing.T) {
	g := NewGate("test-secret", time.Minute)
	token, err := g.IssueTestToken("client-1")
	require.NoError(t, err)

	claims, err := g.Authenticate("", "token="+token)
	require.NoError(t, err)
	assert.Equal(t, "client-1", claims.Subject)
}

func TestAuthenticatePrefersHeaderOverQuery(t *testing.T) {
	g := NewGate("test-secret", time.Minute)
	token, err := g.IssueTestToken("header-client")
	require.NoError(t, err)

	claims, err := g.Authenticate("Bearer "+token, "token=stale-or-wrong")
	require.NoError(t, err)
	assert.Equal(t, "header-client", claims.Subject)
}

func TestAuthenticateFailsWithNoToken(t *testing.T) {
	g := NewGate("test-secret", time.Minute)
	_, err := g.Authenticate("", "")
	assert.Error(t, err)
}
