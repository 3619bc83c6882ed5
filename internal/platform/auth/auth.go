// Package auth issues and validates the HS256 bearer tokens guarding the ops endpoints
package auth

import (
	"time"

	"instapilot/internal/platform/config"
	perr "instapilot/internal/platform/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds signing material for ops tokens
type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// FromConfig reads AUTH_ prefixed settings
func FromConfig(cfg config.Conf) Config {
	a := cfg.Prefix("AUTH_")
	return Config{
		Secret: a.MayString("JWT_SECRET", ""),
		Issuer: a.MayString("JWT_ISSUER", "instapilot"),
		TTL:    a.MayDuration("JWT_TTL", 24*time.Hour),
	}
}

// Claims carries the operator and the workspace the token is scoped to
type Claims struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for userID scoped to workspaceID
func Issue(c Config, userID, workspaceID string, now time.Time) (string, error) {
	if c.Secret == "" {
		return "", perr.Unavailablef("auth: no signing secret configured")
	}
	if userID == "" {
		return "", perr.InvalidArgf("auth: user id required")
	}
	claims := Claims{
		UserID:      userID,
		WorkspaceID: workspaceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.Secret))
}

// Parser returns a token parser shaped for httpkit.NewPortFunc.
// Every token is refused when no secret is configured
func Parser(c Config) func(token string) (userID, tenantID string, err error) {
	return func(token string) (string, string, error) {
		if c.Secret == "" {
			return "", "", perr.Unauthorizedf("auth: ops api disabled")
		}
		claims := &Claims{}
		tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, perr.Unauthorizedf("auth: unexpected signing method %v", t.Header["alg"])
			}
			return []byte(c.Secret), nil
		}, jwt.WithIssuer(c.Issuer))
		if err != nil {
			return "", "", perr.Wrap(err, perr.ErrorCodeUnauthorized, "auth: invalid token")
		}
		if !tok.Valid || claims.UserID == "" {
			return "", "", perr.Unauthorizedf("auth: invalid token")
		}
		return claims.UserID, claims.WorkspaceID, nil
	}
}
