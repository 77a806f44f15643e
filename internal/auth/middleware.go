package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/alusatu/marketplace/internal/storage"
	"github.com/alusatu/marketplace/pkg/cache"
	"github.com/rs/zerolog"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "auth_token"

// UserLookup resolves token subjects to users.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (storage.User, error)
}

// Guard authenticates requests from a bearer token or the session cookie.
type Guard struct {
	issuer *Issuer
	users  UserLookup
	cookie string
	secure bool
	logger zerolog.Logger
}

// NewGuard creates a Guard. An empty cookie name uses DefaultCookieName.
func NewGuard(issuer *Issuer, users UserLookup, cookie string, secure bool, logger zerolog.Logger) *Guard {
	if cookie == "" {
		cookie = DefaultCookieName
	}
	return &Guard{issuer: issuer, users: users, cookie: cookie, secure: secure, logger: logger}
}

// TokenFromRequest extracts the session token. The Authorization header wins
// over the cookie.
func (g *Guard) TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	if c, err := r.Cookie(g.cookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth rejects unauthenticated requests with 401 and stores the user
// in the request context.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := g.TokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		userID, err := g.issuer.Verify(token)
		if err != nil {
			g.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("token rejected")
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		user, err := g.users.GetUser(r.Context(), userID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "User not found")
				return
			}
			g.logger.Error().Err(err).Str("user_id", userID).Msg("user lookup failed")
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireAdmin rejects non-admin users with 403. It must run inside RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.IsAdmin {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetCookie stores token in the session cookie for the issuer's TTL.
func (g *Guard) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.cookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(g.issuer.TTL() / time.Second),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (g *Guard) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	_ = cache.SendJSON(w, status, map[string]string{"error": message})
}
