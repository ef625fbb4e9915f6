package middleware

import "context"

// THE RECORDER SLOT:
// Logger runs before auth is resolved, but wants to log who called. It puts
// a pointer to a local string into the context; middleware further down
// the chain writes through that pointer, and Logger reads the string after
// the handler returns. Context values flow down only, so the pointer is
// the way back up.

type recorderKey struct{}

// withRecorder attaches slot for downstream middleware to fill.
func withRecorder(ctx context.Context, slot *string) context.Context {
	return context.WithValue(ctx, recorderKey{}, slot)
}

// recorderFrom returns the slot, or nil outside Logger.
func recorderFrom(ctx context.Context) *string {
	slot, _ := ctx.Value(recorderKey{}).(*string)
	return slot
}
