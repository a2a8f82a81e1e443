package middleware

import (
	"context"
	"net/http"
	"strings"

	"fashion-store/models"
	"fashion-store/utils"

	"github.com/google/uuid"
)

// Key type for context
type contextKey string

const (
	UserContextKey  = contextKey("user")
	GuestContextKey = contextKey("guest")

	// SessionCookie carries the login token for browser clients
	SessionCookie = "session"
	GuestCookie   = "guest_id"

	guestCookieAge = 30 * 24 * 60 * 60
)

// tokenFromRequest reads a bearer token or falls back to the session cookie
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// AuthMiddleware verifies JWT tokens and attaches user information to the context
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := tokenFromRequest(r)
		if tokenStr == "" {
			utils.WriteError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		claims, err := utils.ParseJWT(tokenStr)
		if err != nil {
			utils.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth attaches the user when a valid token is present and
// otherwise identifies the visitor by a guest cookie, issuing one if needed.
func OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenStr := tokenFromRequest(r); tokenStr != "" {
			if claims, err := utils.ParseJWT(tokenStr); err == nil {
				ctx := context.WithValue(r.Context(), UserContextKey, claims)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		guestID := ""
		if c, err := r.Cookie(GuestCookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				guestID = c.Value
			}
		}
		if guestID == "" {
			guestID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     GuestCookie,
				Value:    guestID,
				Path:     "/",
				MaxAge:   guestCookieAge,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := context.WithValue(r.Context(), GuestContextKey, guestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminMiddleware ensures that the user has admin privileges
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok || claims.Role != models.RoleAdmin {
			utils.WriteError(w, http.StatusForbidden, "admins only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ClaimsFrom(ctx context.Context) (*utils.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*utils.Claims)
	return claims, ok
}

// Owner names whose cart and wishlist a request works on: the user id, or
// "guest:<id>" for anonymous visitors.
func Owner(ctx context.Context) (string, bool) {
	if claims, ok := ClaimsFrom(ctx); ok {
		return claims.UserID, true
	}
	if guestID, ok := ctx.Value(GuestContextKey).(string); ok && guestID != "" {
		return "guest:" + guestID, true
	}
	return "", false
}
