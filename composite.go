package docmap

import (
	"context"
	"errors"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/docmap/docmap/wire"
)

// ---- Array ----

// ArraySchema maps each wire-array element through the element schema.
// Elements whose decode returns ErrSkipElement are dropped instead of
// failing the array.
type ArraySchema[E any] struct {
	elem Schema[E]
}

// Array wraps an element schema into a []E schema.
func Array[E any](elem Schema[E]) *ArraySchema[E] { return &ArraySchema[E]{elem: elem} }

func (a *ArraySchema[E]) Decode(ctx context.Context, v any) ([]E, error) {
	src, ok := v.(bson.A)
	if !ok {
		return nil, &DecodeError{Expected: []wire.Kind{wire.KindArray}, Value: v}
	}
	out := make([]E, 0, len(src))
	for i, ev := range src {
		e, err := a.elem.Decode(ctx, ev)
		if err != nil {
			if errors.Is(err, ErrSkipElement) {
				continue
			}
			return nil, rebaseError(strconv.Itoa(i), err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (a *ArraySchema[E]) Encode(ctx context.Context, es []E) (any, error) {
	out := make(bson.A, 0, len(es))
	for i, e := range es {
		wv, err := a.elem.Encode(ctx, e)
		if err != nil {
			return nil, rebaseError(strconv.Itoa(i), err)
		}
		out = append(out, wv)
	}
	return out, nil
}

func (a *ArraySchema[E]) CanDecode(v any) bool { return wire.KindOf(v) == wire.KindArray }

func (a *ArraySchema[E]) appendOptions(m Model, root any, value any, path string, out *[]*OptionData) {
	es, ok := value.([]E)
	if !ok {
		return
	}
	for i, e := range es {
		appendSchemaOptions(a.elem, m, root, e, prefixPath(path, strconv.Itoa(i)), out)
	}
}

func (a *ArraySchema[E]) appendStaticOptions(m Model, path string, out *[]*OptionData) {
	appendSchemaStaticOptions(a.elem, m, path, out)
}

// ---- Nullable ----

// NullableSchema passes null/undefined through as a nil pointer and delegates
// everything else to the wrapped schema.
type NullableSchema[M any] struct {
	inner Schema[M]
}

// Nullable wraps a schema so null and undefined decode to nil.
func Nullable[M any](inner Schema[M]) *NullableSchema[M] { return &NullableSchema[M]{inner: inner} }

func (n *NullableSchema[M]) Decode(ctx context.Context, v any) (*M, error) {
	if wire.IsNullish(v) {
		return nil, nil
	}
	m, err := n.inner.Decode(ctx, v)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (n *NullableSchema[M]) Encode(ctx context.Context, m *M) (any, error) {
	if m == nil {
		return wire.Null, nil
	}
	return n.inner.Encode(ctx, *m)
}

func (n *NullableSchema[M]) CanDecode(v any) bool {
	return wire.IsNullish(v) || n.inner.CanDecode(v)
}

func (n *NullableSchema[M]) appendOptions(m Model, root any, value any, path string, out *[]*OptionData) {
	mv, ok := value.(*M)
	if !ok || mv == nil {
		return
	}
	appendSchemaOptions(n.inner, m, root, *mv, path, out)
}

func (n *NullableSchema[M]) appendStaticOptions(m Model, path string, out *[]*OptionData) {
	appendSchemaStaticOptions(n.inner, m, path, out)
}

// ---- Enum ----

// EnumPair binds one wire value to one runtime token.
type EnumPair[T comparable] struct {
	Wire  any
	Token T
}

// EnumSchema is a finite bijection between wire values and runtime tokens.
type EnumSchema[T comparable] struct {
	pairs []EnumPair[T]
}

// Enum builds an enum schema from the given pairs.
func Enum[T comparable](pairs ...EnumPair[T]) *EnumSchema[T] {
	return &EnumSchema[T]{pairs: pairs}
}

func (e *EnumSchema[T]) domain() []wire.Kind {
	seen := map[wire.Kind]bool{}
	var out []wire.Kind
	for _, p := range e.pairs {
		k := wire.KindOf(p.Wire)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func (e *EnumSchema[T]) Decode(ctx context.Context, v any) (T, error) {
	for _, p := range e.pairs {
		if p.Wire == v {
			return p.Token, nil
		}
	}
	var zero T
	return zero, &DecodeError{Expected: e.domain(), Value: v}
}

func (e *EnumSchema[T]) Encode(ctx context.Context, t T) (any, error) {
	for _, p := range e.pairs {
		if p.Token == t {
			return p.Wire, nil
		}
	}
	return nil, &EncodeError{Reason: "token outside the enum domain", Value: t}
}

func (e *EnumSchema[T]) CanDecode(v any) bool {
	for _, p := range e.pairs {
		if p.Wire == v {
			return true
		}
	}
	return false
}

// ---- Mapped (adapter) ----

// MappedSchema retrofits a schema (and its option blocks) written against U
// onto a field the caller expresses as M. The two value mappers convert
// runtime M<->U; the optional wire mappers rewrite the wire value around the
// inner schema.
type MappedSchema[M, U any] struct {
	inner     Schema[U]
	fromInner func(U) (M, error)
	toInner   func(M) (U, error)
	fromWire  func(any) (any, error) // applied before inner decode; optional
	toWire    func(any) (any, error) // applied after inner encode; optional
}

// Mapped builds the adapter from the inner schema and the runtime mappers.
func Mapped[M, U any](inner Schema[U], fromInner func(U) (M, error), toInner func(M) (U, error)) *MappedSchema[M, U] {
	return &MappedSchema[M, U]{inner: inner, fromInner: fromInner, toInner: toInner}
}

// WithWireMappers installs the wire-side rewrite pair.
func (s *MappedSchema[M, U]) WithWireMappers(fromWire, toWire func(any) (any, error)) *MappedSchema[M, U] {
	s.fromWire = fromWire
	s.toWire = toWire
	return s
}

func (s *MappedSchema[M, U]) Decode(ctx context.Context, v any) (M, error) {
	var zero M
	if s.fromWire != nil {
		var err error
		v, err = s.fromWire(v)
		if err != nil {
			return zero, &DecodeError{Value: v, Cause: err}
		}
	}
	u, err := s.inner.Decode(ctx, v)
	if err != nil {
		return zero, err
	}
	m, err := s.fromInner(u)
	if err != nil {
		return zero, &DecodeError{Value: v, Cause: err}
	}
	return m, nil
}

func (s *MappedSchema[M, U]) Encode(ctx context.Context, m M) (any, error) {
	u, err := s.toInner(m)
	if err != nil {
		return nil, &EncodeError{Reason: err.Error(), Value: m}
	}
	wv, err := s.inner.Encode(ctx, u)
	if err != nil {
		return nil, err
	}
	if s.toWire != nil {
		wv, err = s.toWire(wv)
		if err != nil {
			return nil, &EncodeError{Reason: err.Error(), Value: m}
		}
	}
	return wv, nil
}

func (s *MappedSchema[M, U]) CanDecode(v any) bool {
	if s.fromWire != nil {
		rv, err := s.fromWire(v)
		if err != nil {
			return false
		}
		v = rv
	}
	return s.inner.CanDecode(v)
}

func (s *MappedSchema[M, U]) appendOptions(m Model, root any, value any, path string, out *[]*OptionData) {
	mv, ok := value.(M)
	if !ok {
		return
	}
	// option blocks written against U see the converted value
	u, err := s.toInner(mv)
	if err != nil {
		return
	}
	appendSchemaOptions(s.inner, m, root, u, path, out)
}

func (s *MappedSchema[M, U]) appendStaticOptions(m Model, path string, out *[]*OptionData) {
	appendSchemaStaticOptions(s.inner, m, path, out)
}
