// Package dsl is the builder surface for declaring object schemas: field
// bindings with getter/setter pairs, option attachment, and the field
// policies (immutable, unset-if-null). Builders accumulate configuration
// errors and fail fast at Build, never at decode time.
package dsl

import (
	"context"

	docmap "github.com/docmap/docmap"
)

// ObjectBuilder accumulates field definitions for T until Build.
type ObjectBuilder[T any] struct {
	ctor       func() *T
	fields     []docmap.ObjectField[T]
	names      map[string]bool
	options    []docmap.Option
	static     []docmap.Option
	finalizers []func()
	errs       []error
}

// Object starts a builder around the zero-argument constructor for T.
func Object[T any](ctor func() *T) *ObjectBuilder[T] {
	return &ObjectBuilder[T]{ctor: ctor, names: map[string]bool{}}
}

// Option attaches an object-level instance option.
func (b *ObjectBuilder[T]) Option(os ...docmap.Option) *ObjectBuilder[T] {
	b.options = append(b.options, os...)
	return b
}

// Static attaches an object-level model-scoped option.
func (b *ObjectBuilder[T]) Static(os ...docmap.Option) *ObjectBuilder[T] {
	b.static = append(b.static, os...)
	return b
}

// Defer queues a finalization callback run at the end of Build, in
// declaration order.
func (b *ObjectBuilder[T]) Defer(fn func()) *ObjectBuilder[T] {
	b.finalizers = append(b.finalizers, fn)
	return b
}

func (b *ObjectBuilder[T]) fail(err error) {
	b.errs = append(b.errs, err)
}

// Build finalizes the schema, running deferred callbacks and reporting the
// first accumulated ConfigurationError.
func (b *ObjectBuilder[T]) Build() (*docmap.ObjectSchema[T], error) {
	for _, fn := range b.finalizers {
		fn()
	}
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	o, err := docmap.NewObject(b.ctor, b.fields...)
	if err != nil {
		return nil, err
	}
	return o.WithOptions(b.options...).WithStaticOptions(b.static...), nil
}

// MustBuild is Build panicking on error; for package-level declarations.
func (b *ObjectBuilder[T]) MustBuild() *docmap.ObjectSchema[T] {
	o, err := b.Build()
	if err != nil {
		panic(err)
	}
	return o
}

// FieldChain continues configuring one field before returning to the builder.
type FieldChain[T, M any] struct {
	b   *ObjectBuilder[T]
	def *docmap.FieldDefinition[T, M]
}

// Field declares a field bound through an always-initialized getter.
// Free function for Go generics compatibility (methods cannot add type
// parameters).
func Field[T, M any](b *ObjectBuilder[T], name string, s docmap.Schema[M], get func(*T) M, set func(*T, M)) *FieldChain[T, M] {
	var g func(*T) (M, bool)
	if get != nil {
		g = func(t *T) (M, bool) { return get(t), true }
	}
	return FieldMaybe(b, name, s, g, set)
}

// FieldMaybe declares a field whose slot may be uninitialized: the getter
// reports ok=false and encode writes null instead of reading through it.
func FieldMaybe[T, M any](b *ObjectBuilder[T], name string, s docmap.Schema[M], get func(*T) (M, bool), set func(*T, M)) *FieldChain[T, M] {
	if name == "" {
		b.fail(configErr("field with an empty name"))
	}
	if s == nil {
		b.fail(configErr("field %q has no schema", name))
	}
	if get == nil {
		b.fail(configErr("field %q has no getter", name))
	}
	if set == nil {
		b.fail(configErr("field %q has no setter", name))
	}
	if b.names[name] {
		b.fail(configErr("duplicate field %q", name))
	}
	b.names[name] = true
	def := docmap.NewField(name, s, get, set)
	b.fields = append(b.fields, def)
	return &FieldChain[T, M]{b: b, def: def}
}

// Definition exposes the underlying field definition.
func (f *FieldChain[T, M]) Definition() *docmap.FieldDefinition[T, M] { return f.def }

// Immutable discards this field on any encode whose root is not new.
func (f *FieldChain[T, M]) Immutable() *FieldChain[T, M] {
	f.def.Immutable()
	return f
}

// UnsetIfNull drops the key rather than writing an explicit null.
func (f *FieldChain[T, M]) UnsetIfNull() *FieldChain[T, M] {
	f.def.UnsetIfNull()
	return f
}

// Option attaches instance-scoped options to the field.
func (f *FieldChain[T, M]) Option(os ...docmap.Option) *FieldChain[T, M] {
	f.def.WithOptions(os...)
	return f
}

// Static attaches model-scoped options to the field.
func (f *FieldChain[T, M]) Static(os ...docmap.Option) *FieldChain[T, M] {
	f.def.WithStaticOptions(os...)
	return f
}

// Initialize attaches an initialization option.
func (f *FieldChain[T, M]) Initialize(name string, block docmap.Behavior) *FieldChain[T, M] {
	return f.Option(docmap.Initialization(name, block))
}

// Normalize attaches a normalization option.
func (f *FieldChain[T, M]) Normalize(name string, block docmap.Behavior) *FieldChain[T, M] {
	return f.Option(docmap.Normalization(name, block))
}

// Validate attaches a validation option.
func (f *FieldChain[T, M]) Validate(name string, block docmap.Behavior) *FieldChain[T, M] {
	return f.Option(docmap.Validation(name, block))
}

// Migrate attaches a migration option.
func (f *FieldChain[T, M]) Migrate(name string, block docmap.Behavior) *FieldChain[T, M] {
	return f.Option(docmap.Migration(name, block))
}

// OnDelete attaches a deletion option.
func (f *FieldChain[T, M]) OnDelete(name string, block docmap.Behavior) *FieldChain[T, M] {
	return f.Option(docmap.Deletion(name, block))
}

// Writes attaches a writes option.
func (f *FieldChain[T, M]) Writes(name string, block docmap.Behavior) *FieldChain[T, M] {
	return f.Option(docmap.Writes(name, block))
}

// PostDecode attaches a post-decode hook.
func (f *FieldChain[T, M]) PostDecode(h func(ctx context.Context, ev *docmap.DecodeEvent[T, M]) error) *FieldChain[T, M] {
	f.def.PostDecode(h)
	return f
}

// PostEncode attaches a post-encode hook.
func (f *FieldChain[T, M]) PostEncode(h func(ctx context.Context, ev *docmap.EncodeEvent[T, M]) error) *FieldChain[T, M] {
	f.def.PostEncode(h)
	return f
}

// Done returns to the enclosing builder.
func (f *FieldChain[T, M]) Done() *ObjectBuilder[T] { return f.b }
