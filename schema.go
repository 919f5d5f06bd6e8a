package docmap

import (
	"context"

	"github.com/docmap/docmap/wire"
)

// Schema is the typed decode/encode contract between wire values and a
// runtime type T.
//
// Decode(Encode(x)) is not guaranteed equal to x (scalar coercion may be
// lossy), but Encode(Decode(w)) must be accepted by CanDecode for every w the
// schema accepts.
type Schema[T any] interface {
	// Decode converts a wire value into T or fails with a DecodeError.
	Decode(ctx context.Context, v any) (T, error)
	// Encode converts T back into a wire value.
	Encode(ctx context.Context, t T) (any, error)
	// CanDecode reports whether Decode can possibly succeed for v's kind.
	CanDecode(v any) bool
}

// AnySchema is the type-erased view used where the static type of T is not
// available, e.g. option blocks operating on arbitrary field values.
// EncodeAny performs the safe runtime type check before encoding so a value
// smuggled through an any-typed call site fails fast instead of corrupting
// the document.
type AnySchema interface {
	DecodeAny(ctx context.Context, v any) (any, error)
	EncodeAny(ctx context.Context, t any) (any, error)
	CanDecode(v any) bool
}

type anySchema[T any] struct {
	s Schema[T]
}

// EraseSchema wraps a Schema[T] as an AnySchema.
func EraseSchema[T any](s Schema[T]) AnySchema { return anySchema[T]{s: s} }

func (a anySchema[T]) DecodeAny(ctx context.Context, v any) (any, error) {
	t, err := a.s.Decode(ctx, v)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (a anySchema[T]) EncodeAny(ctx context.Context, v any) (any, error) {
	t, ok := v.(T)
	if !ok {
		return nil, &EncodeError{Reason: "value does not match schema type", Value: v}
	}
	return a.s.Encode(ctx, t)
}

func (a anySchema[T]) CanDecode(v any) bool { return a.s.CanDecode(v) }

// Unit decodes any wire value to struct{} and encodes to null. Useful for
// fields whose presence alone is meaningful.
func Unit() Schema[struct{}] { return unitSchema{} }

type unitSchema struct{}

func (unitSchema) Decode(ctx context.Context, v any) (struct{}, error) { return struct{}{}, nil }
func (unitSchema) Encode(ctx context.Context, _ struct{}) (any, error) { return wire.Null, nil }
func (unitSchema) CanDecode(v any) bool                                { return true }

// optionCarrier is implemented by schema variants that can contribute options
// during instance traversal. Scalars do not carry options; objects, arrays,
// nullables and mapped schemas recurse.
type optionCarrier interface {
	appendOptions(m Model, root any, value any, path string, out *[]*OptionData)
	appendStaticOptions(m Model, path string, out *[]*OptionData)
}

// appendSchemaOptions recurses into s when it carries options.
func appendSchemaOptions[T any](s Schema[T], m Model, root any, value any, path string, out *[]*OptionData) {
	if oc, ok := any(s).(optionCarrier); ok {
		oc.appendOptions(m, root, value, path, out)
	}
}

func appendSchemaStaticOptions[T any](s Schema[T], m Model, path string, out *[]*OptionData) {
	if oc, ok := any(s).(optionCarrier); ok {
		oc.appendStaticOptions(m, path, out)
	}
}
