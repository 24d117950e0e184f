package hooks

import "context"

type skipHooksKey struct{}

// ContextWithSkipHooks marks ctx so Dispatch/EvaluateSingleHook become no-ops
// for it — used by internal replays (e.g. quality-gate retries) that must
// not re-trigger the hooks they themselves were invoked from.
func ContextWithSkipHooks(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipHooksKey{}, true)
}

// SkipHooksFromContext reports whether ctx was marked by ContextWithSkipHooks.
func SkipHooksFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(skipHooksKey{}).(bool)
	return v
}
