// Package auth implements the optional opaque-token gate the transport
// checks before establishing a subscription stream (spec.md §6
// "Authentication").
package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the minimal claim set a fan-out access token carries: who it
// was issued to, nothing about role or user profile, since the gate only
// decides stream admission, not authorization scope.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Gate verifies the opaque bearer token a transport forwards before
// allowing a connection to reach AwaitingInitial.
type Gate struct {
	secretKey     []byte
	tokenDuration time.Duration
}

// NewGate builds a Gate from a shared secret. tokenDuration is only used
// by IssueTestToken; Verify enforces whatever expiry is already present in
// a presented token.
func NewGate(secretKey string, tokenDuration time.Duration) *Gate {
	return &Gate{secretKey: []byte(secretKey), tokenDuration: tokenDuration}
}

// Verify validates tokenString and returns its claims.
func (g *Gate) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ExtractTokenFromHeader strips the "Bearer " prefix from an Authorization
// header value. Takes the raw header value rather than an *http.Request so
// it works equally from net/http handlers and from the WebSocket upgrade's
// raw header callback, which never builds an *http.Request.
func ExtractTokenFromHeader(headerValue string) (string, error) {
	if headerValue == "" {
		return "", errors.New("authorization header missing")
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimPrefix(headerValue, bearerPrefix), nil
}

// ExtractTokenFromQuery reads a token from the "token" query parameter of
// rawQuery, a fallback for clients that cannot set a header before the
// WebSocket upgrade completes (the browser WebSocket API is one).
func ExtractTokenFromQuery(rawQuery string) (string, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("parse query: %w", err)
	}
	token := values.Get("token")
	if token == "" {
		return "", errors.New("token query parameter missing")
	}
	return token, nil
}

// Authenticate extracts and verifies a request's opaque token, trying the
// Authorization header first, then the query-parameter fallback (spec.md
// §6: "rejection before any stream is established").
func (g *Gate) Authenticate(headerValue, rawQuery string) (*Claims, error) {
	token, err := ExtractTokenFromHeader(headerValue)
	if err != nil {
		token, err = ExtractTokenFromQuery(rawQuery)
		if err != nil {
			return nil, fmt.Errorf("no token presented: %w", err)
		}
	}
	return g.Verify(token)
}

// IssueTestToken signs a short-lived token for subject, for local
// development and integration tests; production issuance is an external
// collaborator concern.
func (g *Gate) IssueTestToken(subject string) (string, error) {
	claims := &Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(g.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   subject,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secretKey)
}
