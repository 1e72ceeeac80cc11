package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtutil "patchpilot/backend/app/jwt"
)

type ctxKey int

const ClaimsKey ctxKey = 1

type Auth struct {
	Signer *jwtutil.Signer
	// RequireDeviceToken reports whether device calls must carry a token.
	RequireDeviceToken func() bool
}

func bearer(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(authz, "Bearer "), true
}

// Bearer returns the request's bearer token, or "".
func Bearer(r *http.Request) string {
	tok, _ := bearer(r)
	return tok
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// RequireAuth admits any operator token. Device tokens are refused.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearer(r)
		if !ok {
			deny(w, http.StatusUnauthorized, "missing token")
			return
		}
		claims, err := a.Signer.Parse(token)
		if err != nil {
			deny(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if claims.Role == jwtutil.RoleDevice {
			deny(w, http.StatusForbidden, "forbidden")
			return
		}
		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearer(r)
		if !ok {
			deny(w, http.StatusUnauthorized, "missing token")
			return
		}
		claims, err := a.Signer.Parse(token)
		if err != nil || claims.Role != jwtutil.RoleAdmin {
			deny(w, http.StatusForbidden, "forbidden")
			return
		}
		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceToken checks the optional device bearer token. When present it must
// be a device token for the {device_id} in the path, if the route has one.
// When absent the call is refused only if RequireDeviceToken says so.
func (a *Auth) DeviceToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearer(r)
		if !ok {
			if a.RequireDeviceToken != nil && a.RequireDeviceToken() {
				deny(w, http.StatusUnauthorized, "device token required")
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		claims, err := a.Signer.Parse(token)
		if err != nil || claims.Role != jwtutil.RoleDevice {
			deny(w, http.StatusUnauthorized, "invalid device token")
			return
		}
		if id := r.PathValue("device_id"); id != "" && id != claims.DeviceID {
			deny(w, http.StatusForbidden, "token does not match device")
			return
		}
		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
