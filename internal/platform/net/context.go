// Package net holds the request scoped values middleware sets and handlers read
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const (
	keyWorkspace ctxKey = iota
	keyUser
)

// WithIdentity records who a bearer token belongs to. tenantID is the workspace
// the token is scoped to; either may be empty
func WithIdentity(ctx context.Context, userID, tenantID string) context.Context {
	if userID != "" {
		ctx = context.WithValue(ctx, keyUser, userID)
	}
	if tenantID != "" {
		ctx = context.WithValue(ctx, keyWorkspace, tenantID)
	}
	return ctx
}

// RequestID is the id chi's RequestID middleware assigned, or ""
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }

// TenantID is the workspace the caller's token is scoped to, or ""
func TenantID(ctx context.Context) string {
	v, _ := ctx.Value(keyWorkspace).(string)
	return v
}

// UserID is the authenticated operator, or ""
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(keyUser).(string)
	return v
}
