package logger

import "context"

// contextKey is a private type for context keys to avoid collisions.
type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request-scoped fields threaded through RPC handlers.
type LogContext struct {
	Component string // "extentd", "lockd", "paxos", "client"
	ClientID  string // lock/extent client identifier
	LockID    uint64 // lock id in scope, if any
}

// WithContext returns a new context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from ctx, or nil if absent.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// WithLock returns a copy of lc with LockID set.
func (lc *LogContext) WithLock(lid uint64) *LogContext {
	if lc == nil {
		return &LogContext{LockID: lid}
	}
	clone := *lc
	clone.LockID = lid
	return &clone
}
