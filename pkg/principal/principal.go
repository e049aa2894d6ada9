// Package principal carries the authenticated actor through request
// contexts. It sits below both the HTTP layer and the audit trail so
// either side can read the actor without importing the other.
package principal

import (
	"context"
	"errors"
)

// Principal is the interface for any entity making a request.
type Principal interface {
	GetID() string
	GetRoles() []string
}

// Base is a simple implementation of Principal.
type Base struct {
	ID    string
	Roles []string
}

func (b *Base) GetID() string {
	return b.ID
}

func (b *Base) GetRoles() []string {
	return b.Roles
}

type contextKey string

const principalKey contextKey = "principal"

// ErrNoActor is returned when a request carries no authenticated principal.
var ErrNoActor = errors.New("no principal in context")

// NewContext attaches a Principal to the context.
func NewContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext retrieves the Principal from the context.
func FromContext(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok {
		return nil, ErrNoActor
	}
	return p, nil
}
