package tenant

import (
	"context"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ValidationError marks a request that was rejected before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Context identifies the calling tenant for every store operation.
// It is immutable once created; the store layer applies it as
// transaction-local session settings so row-level policies scope all
// reads and writes to the tenant and its clearance ceiling.
type Context struct {
	AppID     string
	Clearance int
	RequestID string
}

// New validates the tenant id and clearance and returns a Context.
// A request id is generated when none is supplied.
func New(appID string, clearance int, requestID string) (Context, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return Context{}, &ValidationError{Field: "tenant id", Reason: "must not be empty"}
	}
	if strings.ContainsAny(appID, " \t\n") {
		return Context{}, &ValidationError{Field: "tenant id", Reason: "must not contain whitespace"}
	}
	if clearance < 0 {
		return Context{}, &ValidationError{Field: "clearance", Reason: "must not be negative"}
	}
	if requestID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return Context{}, err
		}
		requestID = id
	}
	return Context{AppID: appID, Clearance: clearance, RequestID: requestID}, nil
}

type ctxKey struct{}

// WithContext attaches the tenant context to ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext extracts the tenant context from ctx.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}
