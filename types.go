package docmap

import "context"

// Tweak filters the options an extension-kind runner will execute. A nil Skip
// keeps everything.
type Tweak struct {
	Skip func(od *OptionData) bool
}

func (t Tweak) keeps(od *OptionData) bool {
	return t.Skip == nil || !t.Skip(od)
}

// DecodeOpt bundles per-call decode behavior.
type DecodeOpt struct {
	// MarkNew controls the isNew flag on decoded instances. Most callers
	// decode documents freshly arrived from outside and want true.
	MarkNew bool
}

// ---- Encode-time context flags ----
//
// Encode hooks need to know whether the root instance is being encoded for an
// update (isNew=false) or a creation. The flag travels on the context, the
// same way parse-time behavior flags do elsewhere in this module.

type contextKey int

const (
	_ctxKeyUpdateEncode contextKey = iota
)

// WithUpdateEncode marks the context as encoding an already-persisted
// instance. Immutable-field hooks consult this to discard their key.
func WithUpdateEncode(ctx context.Context, update bool) context.Context {
	return context.WithValue(ctx, _ctxKeyUpdateEncode, update)
}

// IsUpdateEncode reports whether the current encode targets an update.
func IsUpdateEncode(ctx context.Context) bool {
	b, _ := ctx.Value(_ctxKeyUpdateEncode).(bool)
	return b
}
