package tierbill

import "context"

type actorKey struct{}

// WithActor returns a context carrying the acting account identity.
// Administrator- and platform-gated operations resolve their caller
// from the context; the transport layer is responsible for having
// authenticated the identity it injects here.
func WithActor(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, actorKey{}, account)
}

// ActorFrom extracts the acting account from the context.
// Returns an empty string when no actor was attached.
func ActorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}
