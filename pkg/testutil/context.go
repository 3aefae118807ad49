package testutil

import (
	"context"
	"net/http"

	"intake/internal/platform/middleware"
)

// WithOperator adds an authenticated operator to the request context,
// simulating what the session middleware does for verified requests.
func WithOperator(req *http.Request, userID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeyUserID, userID)
	return req.WithContext(ctx)
}

// WithAccount adds the host account ID to the request context.
func WithAccount(req *http.Request, accountID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeyAccountID, accountID)
	return req.WithContext(ctx)
}

// WithSession adds both operator and account, the typical state of an
// authenticated request.
func WithSession(req *http.Request, userID, accountID string) *http.Request {
	ctx := req.Context()
	if userID != "" {
		ctx = context.WithValue(ctx, middleware.ContextKeyUserID, userID)
	}
	if accountID != "" {
		ctx = context.WithValue(ctx, middleware.ContextKeyAccountID, accountID)
	}
	return req.WithContext(ctx)
}
