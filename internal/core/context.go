package core

import "context"

type contextKey string

const (
	ctxKeyOperatorToken contextKey = "operator_token"
	ctxKeyIPAddress     contextKey = "client_ip"
)

// ContextWithOperatorToken attaches the operator's bearer token so the
// backend client can act on their behalf.
func ContextWithOperatorToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyOperatorToken, token)
}

// OperatorTokenFromContext returns the operator's bearer token, if any.
func OperatorTokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyOperatorToken).(string); ok {
		return v
	}
	return ""
}

// ContextWithIPAddress adds the client IP for session logging.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// IPAddressFromContext extracts the client IP from context.
func IPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}
