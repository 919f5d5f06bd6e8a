package docmap

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/docmap/docmap/wire"
)

// DecodeEvent is what a post-decode hook observes: the declaring field, the
// instance under construction, the source document, the decoded value and the
// raw wire value it came from.
type DecodeEvent[T, M any] struct {
	Field    string
	Instance *T
	Document bson.D
	Value    M
	Source   any
}

// EncodeEvent is what a post-encode hook observes. Document points at the
// wire document being built; a hook may rewrite its own key or delete it
// (immutability, unset-if-null). Present is false when the getter reported an
// uninitialized slot.
type EncodeEvent[T, M any] struct {
	Field    string
	Instance *T
	Document *bson.D
	Value    M
	Present  bool
}

// FieldDefinition binds a named slot on T to a Schema[M] plus a getter/setter
// pair and the option declarations attached to the field.
type FieldDefinition[T, M any] struct {
	name          string
	schema        Schema[M]
	get           func(*T) (M, bool)
	set           func(*T, M)
	options       []Option
	staticOptions []Option
	postDecode    []func(ctx context.Context, ev *DecodeEvent[T, M]) error
	postEncode    []func(ctx context.Context, ev *EncodeEvent[T, M]) error
}

// NewField builds a field definition. The getter returns ok=false when the
// underlying slot is uninitialized; encode then writes null instead of
// panicking through the getter.
func NewField[T, M any](name string, schema Schema[M], get func(*T) (M, bool), set func(*T, M)) *FieldDefinition[T, M] {
	return &FieldDefinition[T, M]{name: name, schema: schema, get: get, set: set}
}

func (f *FieldDefinition[T, M]) Name() string { return f.name }

// Schema exposes the field's schema.
func (f *FieldDefinition[T, M]) Schema() Schema[M] { return f.schema }

// WithOptions appends instance-scoped options, in declaration order.
func (f *FieldDefinition[T, M]) WithOptions(os ...Option) *FieldDefinition[T, M] {
	f.options = append(f.options, os...)
	return f
}

// WithStaticOptions appends model-scoped options, collected at registration.
func (f *FieldDefinition[T, M]) WithStaticOptions(os ...Option) *FieldDefinition[T, M] {
	f.staticOptions = append(f.staticOptions, os...)
	return f
}

// PostDecode appends a hook run after the field value has been set.
func (f *FieldDefinition[T, M]) PostDecode(h func(ctx context.Context, ev *DecodeEvent[T, M]) error) *FieldDefinition[T, M] {
	f.postDecode = append(f.postDecode, h)
	return f
}

// PostEncode appends a hook run after the field value has been written.
func (f *FieldDefinition[T, M]) PostEncode(h func(ctx context.Context, ev *EncodeEvent[T, M]) error) *FieldDefinition[T, M] {
	f.postEncode = append(f.postEncode, h)
	return f
}

// Immutable discards the field from any encode whose root instance is not
// new: the value written at creation is never overwritten by later saves.
func (f *FieldDefinition[T, M]) Immutable() *FieldDefinition[T, M] {
	return f.PostEncode(func(ctx context.Context, ev *EncodeEvent[T, M]) error {
		if IsUpdateEncode(ctx) {
			*ev.Document = wire.Delete(*ev.Document, ev.Field)
		}
		return nil
	})
}

// UnsetIfNull removes the key instead of writing an explicit null.
func (f *FieldDefinition[T, M]) UnsetIfNull() *FieldDefinition[T, M] {
	return f.PostEncode(func(ctx context.Context, ev *EncodeEvent[T, M]) error {
		if wire.IsNullish(wire.Lookup(*ev.Document, ev.Field)) {
			*ev.Document = wire.Delete(*ev.Document, ev.Field)
		}
		return nil
	})
}

// ---- ObjectField (sealed) ----

func (f *FieldDefinition[T, M]) decodeInto(ctx context.Context, inst *T, doc bson.D) error {
	src := wire.Lookup(doc, f.name)
	mv, err := f.schema.Decode(ctx, src)
	if err != nil {
		return rebaseError(f.name, err)
	}
	f.set(inst, mv)
	for _, h := range f.postDecode {
		if err := h(ctx, &DecodeEvent[T, M]{Field: f.name, Instance: inst, Document: doc, Value: mv, Source: src}); err != nil {
			return rebaseError(f.name, err)
		}
	}
	return nil
}

func (f *FieldDefinition[T, M]) encodeFrom(ctx context.Context, inst *T, doc *bson.D) error {
	mv, ok := f.get(inst)
	var wv any
	if !ok {
		wv = wire.Null
	} else {
		var err error
		wv, err = f.schema.Encode(ctx, mv)
		if err != nil {
			return rebaseError(f.name, err)
		}
	}
	*doc = wire.Set(*doc, f.name, wv)
	for _, h := range f.postEncode {
		if err := h(ctx, &EncodeEvent[T, M]{Field: f.name, Instance: inst, Document: doc, Value: mv, Present: ok}); err != nil {
			return rebaseError(f.name, err)
		}
	}
	return nil
}

func (f *FieldDefinition[T, M]) appendFieldOptions(m Model, root any, inst *T, path string, out *[]*OptionData) {
	fpath := prefixPath(path, f.name)
	mv, ok := f.get(inst)
	var val any
	if ok {
		val = mv
	}
	for _, o := range f.options {
		*out = append(*out, newOptionData(o, f.name, m, root, val, fpath))
	}
	if ok {
		appendSchemaOptions(f.schema, m, root, mv, fpath, out)
	}
}

func (f *FieldDefinition[T, M]) appendFieldStaticOptions(m Model, path string, out *[]*OptionData) {
	fpath := prefixPath(path, f.name)
	for _, o := range f.staticOptions {
		*out = append(*out, newOptionData(o, f.name, m, nil, nil, fpath))
	}
	appendSchemaStaticOptions(f.schema, m, fpath, out)
}
