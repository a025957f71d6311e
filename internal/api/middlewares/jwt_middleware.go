package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/markdave123-py/flowdesk/internal/models"
)

const (
	DefaultTokenTTL     = 24 * time.Hour
	InternalTokenHeader = "X-Internal-Token"
)

type ctxKey int

const identityKey ctxKey = iota

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID string
	Role   models.Role
}

type claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(secret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authenticator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (a *Authenticator) IssueToken(userID string, role models.Role) (string, error) {
	now := a.now()
	c := claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
}

func (a *Authenticator) parse(tokenStr string) (*claims, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if c.UserID == "" {
		return nil, errors.New("token has no user_id")
	}
	if c.Role == "" {
		c.Role = models.RoleUser
	}
	return &c, nil
}

// JWTMiddleware validates the Authorization header and attaches the caller's
// Identity to the request context.
func (a *Authenticator) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeUnauthorized(w, "missing or invalid token")
			return
		}

		c, err := a.parse(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			slog.DebugContext(r.Context(), "token rejected", "error", err)
			writeUnauthorized(w, "invalid token")
			return
		}

		ctx := WithIdentity(r.Context(), Identity{UserID: c.UserID, Role: c.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// InternalToken guards server-to-server routes with a shared secret. An empty
// secret disables the routes entirely.
func InternalToken(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(InternalTokenHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				writeUnauthorized(w, "invalid internal token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits only callers whose Identity carries role. It must run
// after JWTMiddleware.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				writeUnauthorized(w, "missing or invalid token")
				return
			}
			if id.Role != role {
				slog.InfoContext(r.Context(), "role required", "user_id", id.UserID, "role", id.Role, "required", role)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprintln(w, `{"error":"forbidden"}`)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, "{\"error\":%q}\n", msg)
}
