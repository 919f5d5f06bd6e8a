package docmap

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/docmap/docmap/wire"
)

// ObjectField is one named slot of an object schema. FieldDefinition is the
// only implementation; the interface erases the field's value type so an
// object schema can hold heterogeneously typed fields.
type ObjectField[T any] interface {
	Name() string
	decodeInto(ctx context.Context, inst *T, doc bson.D) error
	encodeFrom(ctx context.Context, inst *T, doc *bson.D) error
	appendFieldOptions(m Model, root any, inst *T, path string, out *[]*OptionData)
	appendFieldStaticOptions(m Model, path string, out *[]*OptionData)
}

// ObjectSchema decodes a wire document into a *T built by the zero-argument
// constructor, running each field in declared order. Field order is part of
// the observable contract: a later field's hooks may depend on document state
// written by an earlier field, and encoding the same instance twice yields an
// identical document.
type ObjectSchema[T any] struct {
	ctor          func() *T
	fields        []ObjectField[T]
	options       []Option
	staticOptions []Option
}

// NewObject builds an object schema, failing fast on a nil constructor or a
// duplicate field name.
func NewObject[T any](ctor func() *T, fields ...ObjectField[T]) (*ObjectSchema[T], error) {
	if ctor == nil {
		return nil, configErrf("object schema requires a constructor")
	}
	seen := map[string]bool{}
	for _, f := range fields {
		if f.Name() == "" {
			return nil, configErrf("object schema has a field with an empty name")
		}
		if seen[f.Name()] {
			return nil, configErrf("duplicate field %q", f.Name())
		}
		seen[f.Name()] = true
	}
	return &ObjectSchema[T]{ctor: ctor, fields: fields}, nil
}

// MustObject is NewObject panicking on error; for package-level declarations.
func MustObject[T any](ctor func() *T, fields ...ObjectField[T]) *ObjectSchema[T] {
	o, err := NewObject(ctor, fields...)
	if err != nil {
		panic(err)
	}
	return o
}

// WithOptions appends object-level instance options.
func (o *ObjectSchema[T]) WithOptions(os ...Option) *ObjectSchema[T] {
	o.options = append(o.options, os...)
	return o
}

// WithStaticOptions appends object-level model-scoped options.
func (o *ObjectSchema[T]) WithStaticOptions(os ...Option) *ObjectSchema[T] {
	o.staticOptions = append(o.staticOptions, os...)
	return o
}

// Fields returns the declared fields in order.
func (o *ObjectSchema[T]) Fields() []ObjectField[T] {
	return append([]ObjectField[T](nil), o.fields...)
}

func (o *ObjectSchema[T]) Decode(ctx context.Context, v any) (*T, error) {
	doc, ok := v.(bson.D)
	if !ok {
		return nil, &DecodeError{Expected: []wire.Kind{wire.KindDocument}, Value: v}
	}
	inst := o.ctor()
	for _, f := range o.fields {
		if err := f.decodeInto(ctx, inst, doc); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func (o *ObjectSchema[T]) Encode(ctx context.Context, inst *T) (any, error) {
	return o.EncodeDoc(ctx, inst)
}

// EncodeDoc is Encode with the concrete document type, for callers that go on
// to manipulate the result.
func (o *ObjectSchema[T]) EncodeDoc(ctx context.Context, inst *T) (bson.D, error) {
	doc := bson.D{}
	for _, f := range o.fields {
		if err := f.encodeFrom(ctx, inst, &doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (o *ObjectSchema[T]) CanDecode(v any) bool { return wire.KindOf(v) == wire.KindDocument }

// ObtainOptions materializes fresh OptionData for the instance: object-level
// options first, then each field's options in declared order, recursing
// through nested schemas with dot paths.
func (o *ObjectSchema[T]) ObtainOptions(m Model, root any, inst *T, path string) []*OptionData {
	var out []*OptionData
	o.appendOptionsTyped(m, root, inst, path, &out)
	return out
}

// ObtainStaticOptions materializes the model-scoped options, with no instance
// bound.
func (o *ObjectSchema[T]) ObtainStaticOptions(m Model, path string) []*OptionData {
	var out []*OptionData
	o.appendStaticOptions(m, path, &out)
	return out
}

func (o *ObjectSchema[T]) appendOptionsTyped(m Model, root any, inst *T, path string, out *[]*OptionData) {
	if inst == nil {
		return
	}
	var rootVal any = root
	if rootVal == nil {
		rootVal = inst
	}
	for _, opt := range o.options {
		*out = append(*out, newOptionData(opt, "", m, rootVal, inst, path))
	}
	for _, f := range o.fields {
		f.appendFieldOptions(m, rootVal, inst, path, out)
	}
}

// appendOptions implements optionCarrier for nested object schemas.
func (o *ObjectSchema[T]) appendOptions(m Model, root any, value any, path string, out *[]*OptionData) {
	inst, ok := value.(*T)
	if !ok {
		return
	}
	o.appendOptionsTyped(m, root, inst, path, out)
}

func (o *ObjectSchema[T]) appendStaticOptions(m Model, path string, out *[]*OptionData) {
	for _, opt := range o.staticOptions {
		*out = append(*out, newOptionData(opt, "", m, nil, nil, path))
	}
	for _, f := range o.fields {
		f.appendFieldStaticOptions(m, path, out)
	}
}
