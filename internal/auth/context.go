package auth

import "context"

type contextKey string

const userIDKey contextKey = "userID"

// WithUserID stores the authenticated user id on the request context.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, or nil for anonymous
// requests.
func UserIDFromContext(ctx context.Context) *int64 {
	if id, ok := ctx.Value(userIDKey).(int64); ok {
		return &id
	}
	return nil
}
