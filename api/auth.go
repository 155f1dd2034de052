package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

// =============================================================================
// TOKENS - HS256 bearer tokens carrying username and role
// =============================================================================

type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for u and its expiry.
func (t *TokenIssuer) Issue(u pharmacy.User) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := authClaims{
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Verify parses a token and returns the principal it names.
func (t *TokenIssuer) Verify(tokenString string) (principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return principal{}, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*authClaims)
	if !ok || claims.Subject == "" {
		return principal{}, errors.New("invalid token claims")
	}
	role, err := pharmacy.ParseRole(claims.Role)
	if err != nil {
		return principal{}, err
	}
	return principal{Username: claims.Subject, Role: role}, nil
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type principal struct {
	Username string
	Role     pharmacy.Role
}

type principalKey struct{}

func principalFrom(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalKey{}).(principal)
	return p, ok
}

// authenticate rejects requests without a valid bearer token and attaches the
// acting user to the context for the audit trail.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}
		p, err := h.tokens.Verify(strings.TrimSpace(header[len("Bearer "):]))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token", err)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, p)
		ctx = pharmacy.WithActor(ctx, p.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// require lets the request through only if the caller's role holds perm.
func (h *Handler) require(perm pharmacy.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing credentials", nil)
				return
			}
			if err := pharmacy.Authorize(p.Role, perm); err != nil {
				h.writeDomainError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
