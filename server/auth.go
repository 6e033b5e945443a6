package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// ErrInvalidToken means that there was an invalid or missing authorization token
var ErrInvalidToken = errors.New("invalid authorization token")

var defaultTokenDuration = 72 * time.Hour

// Auth issues and verifies the bearer tokens protecting the import API.
// Tokens are signed with a shared HMAC secret; an Auth with an empty secret
// is disabled and its middleware passes every request through.
type Auth struct {
	secret []byte
}

// NewAuth creates an authenticator for the given shared secret. An empty
// secret disables authentication.
func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// Enabled reports whether this authenticator enforces tokens.
func (auth *Auth) Enabled() bool {
	return len(auth.secret) > 0
}

// IssueToken generates a signed token for the named client, valid for the
// given duration (or a default when zero).
func (auth *Auth) IssueToken(subject string, duration time.Duration) (string, error) {
	if !auth.Enabled() {
		return "", errors.New("auth: no secret configured")
	}
	if duration == 0 {
		duration = defaultTokenDuration
	}
	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(auth.secret)
}

// verifyToken parses a token string and returns its subject. The signing
// method is pinned to HS256.
func (auth *Auth) verifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return auth.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims := token.Claims.(*jwt.RegisteredClaims)
	return claims.Subject, nil
}

type contextKey string

const subjectContextKey = contextKey("subject")

// Middleware enforces a valid bearer token on every request. When the
// authenticator is disabled it is a no-op.
func (auth *Auth) Middleware(next http.Handler) http.Handler {
	if !auth.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const bearerSchema = "Bearer "
		if !strings.HasPrefix(header, bearerSchema) {
			writeError(w, http.StatusUnauthorized, ErrInvalidToken)
			return
		}
		subject, err := auth.verifyToken(header[len(bearerSchema):])
		if err != nil {
			log.Warn().Str("path", r.URL.Path).Msg("rejected request with invalid token")
			writeError(w, http.StatusUnauthorized, ErrInvalidToken)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectContextKey, subject)))
	})
}

// Subject returns the authenticated client name from the context, or an
// empty string when authentication is disabled.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectContextKey).(string)
	return s
}
