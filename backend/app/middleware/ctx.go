package middleware

import (
	"context"

	jwtutil "patchpilot/backend/app/jwt"
)

func GetClaims(ctx context.Context) *jwtutil.Claims {
	if v := ctx.Value(ClaimsKey); v != nil {
		if c, ok := v.(*jwtutil.Claims); ok {
			return c
		}
	}
	return nil
}

// Actor names the caller for audit entries.
func Actor(ctx context.Context) string {
	c := GetClaims(ctx)
	switch {
	case c == nil:
		return "anonymous"
	case c.DeviceID != "":
		return "device:" + c.DeviceID
	case c.Username != "":
		return c.Username
	default:
		return "unknown"
	}
}
