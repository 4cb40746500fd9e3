package auth

import "context"

// Actor is the signed-in person committing financial mutations. Who may sign
// in, and how, is an external concern; the core only cares that someone did.
type Actor struct {
	ID   string
	Name string
	Role string
}

type contextKey struct{}

// WithActor attaches the actor to the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// FromContext returns the current actor. ok is false when nobody is signed
// in, in which case the persistence router treats every mutation as
// local-only.
func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(Actor)
	return actor, ok
}
