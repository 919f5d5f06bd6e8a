package docmap

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docmap/docmap/coerce"
	"github.com/docmap/docmap/wire"
)

// ScalarSchema decodes wire values whose kind is in the direct-accept set via
// the native decoder, then falls back to the registered coercers in order,
// then to an optional final decoder. Encode goes through the registered
// encoder; the safe runtime check lives on the erased AnySchema path.
type ScalarSchema[T any] struct {
	name     string
	accepts  []wire.Kind
	native   func(v any) (T, error)
	coercers []coerce.Coercer[T]
	fallback func(v any) (T, error)
	encode   func(t T) (any, error)
}

// NewScalar builds a scalar schema. name labels errors; accepts lists the
// directly-decodable kinds handled by native; enc converts back to the wire.
func NewScalar[T any](name string, accepts []wire.Kind, native func(any) (T, error), enc func(T) (any, error)) *ScalarSchema[T] {
	return &ScalarSchema[T]{name: name, accepts: accepts, native: native, encode: enc}
}

// WithCoercers appends fallback coercers, tried in order after the direct
// accept set misses.
func (s *ScalarSchema[T]) WithCoercers(cs ...coerce.Coercer[T]) *ScalarSchema[T] {
	s.coercers = append(s.coercers, cs...)
	return s
}

// WithFallback installs the final decoder tried when every coercer misses.
func (s *ScalarSchema[T]) WithFallback(fn func(any) (T, error)) *ScalarSchema[T] {
	s.fallback = fn
	return s
}

func (s *ScalarSchema[T]) acceptsDirect(v any) bool {
	k := wire.KindOf(v)
	for _, a := range s.accepts {
		if a == k {
			return true
		}
	}
	return false
}

func (s *ScalarSchema[T]) Decode(ctx context.Context, v any) (T, error) {
	var zero T
	if s.acceptsDirect(v) {
		t, err := s.native(v)
		if err != nil {
			return zero, &DecodeError{Expected: s.accepts, Value: v, Cause: err}
		}
		return t, nil
	}
	for _, c := range s.coercers {
		if c.CanDecode == nil || !c.CanDecode(v) {
			continue
		}
		t, err := c.Decode(v)
		if err == nil {
			return t, nil
		}
		if c.Deterministic {
			// a deterministic coercer commits; no retry with later coercers
			return zero, &DecodeError{Expected: s.accepts, Value: v, Cause: err}
		}
	}
	if s.fallback != nil {
		t, err := s.fallback(v)
		if err != nil {
			return zero, &DecodeError{Expected: s.accepts, Value: v, Cause: err}
		}
		return t, nil
	}
	return zero, &DecodeError{Expected: s.accepts, Value: v}
}

func (s *ScalarSchema[T]) Encode(ctx context.Context, t T) (any, error) {
	return s.encode(t)
}

func (s *ScalarSchema[T]) CanDecode(v any) bool {
	if s.acceptsDirect(v) {
		return true
	}
	for _, c := range s.coercers {
		if c.CanDecode != nil && c.CanDecode(v) {
			return true
		}
	}
	return s.fallback != nil
}

// ---- builtin scalars ----

// String accepts string directly and renders numerics as decimal strings.
func String() *ScalarSchema[string] {
	return NewScalar[string]("string",
		[]wire.Kind{wire.KindString},
		func(v any) (string, error) { return v.(string), nil },
		func(t string) (any, error) { return t, nil },
	).WithCoercers(coerce.StringFromNumeric())
}

// Int64 accepts int64 directly; int32/double widen (half-up), strings parse.
func Int64() *ScalarSchema[int64] {
	return NewScalar[int64]("int64",
		[]wire.Kind{wire.KindInt64},
		func(v any) (int64, error) { return v.(int64), nil },
		func(t int64) (any, error) { return t, nil },
	).WithCoercers(coerce.Int64FromNumeric(), coerce.Int64FromString())
}

// Int32 accepts int32 directly; other numerics convert (half-up), strings parse.
func Int32() *ScalarSchema[int32] {
	return NewScalar[int32]("int32",
		[]wire.Kind{wire.KindInt32},
		func(v any) (int32, error) { return v.(int32), nil },
		func(t int32) (any, error) { return t, nil },
	).WithCoercers(coerce.Int32FromNumeric(), coerce.Int32FromString())
}

// Float64 accepts double directly; integers widen, strings parse.
func Float64() *ScalarSchema[float64] {
	return NewScalar[float64]("double",
		[]wire.Kind{wire.KindDouble},
		func(v any) (float64, error) { return v.(float64), nil },
		func(t float64) (any, error) { return t, nil },
	).WithCoercers(coerce.Float64FromNumeric(), coerce.Float64FromString())
}

// Bool accepts bool only.
func Bool() *ScalarSchema[bool] {
	return NewScalar[bool]("bool",
		[]wire.Kind{wire.KindBool},
		func(v any) (bool, error) { return v.(bool), nil },
		func(t bool) (any, error) { return t, nil },
	)
}

// Time accepts BSON datetimes; epoch millis and RFC3339 strings coerce.
func Time() *ScalarSchema[time.Time] {
	return NewScalar[time.Time]("dateTime",
		[]wire.Kind{wire.KindDateTime},
		func(v any) (time.Time, error) {
			switch t := v.(type) {
			case time.Time:
				return t.UTC(), nil
			case primitive.DateTime:
				return t.Time().UTC(), nil
			}
			return time.Time{}, fmt.Errorf("not a datetime: %T", v)
		},
		func(t time.Time) (any, error) { return primitive.NewDateTimeFromTime(t), nil },
	).WithCoercers(coerce.TimeFromMillis(), coerce.TimeFromString())
}

// ObjectID accepts the binary id form or its hex string rendering; both decode
// to the same id.
func ObjectID() *ScalarSchema[primitive.ObjectID] {
	return NewScalar[primitive.ObjectID]("objectId",
		[]wire.Kind{wire.KindObjectID},
		func(v any) (primitive.ObjectID, error) { return v.(primitive.ObjectID), nil },
		func(t primitive.ObjectID) (any, error) { return t, nil },
	).WithCoercers(coerce.ObjectIDFromString())
}

// LenientObjectID additionally treats null/undefined as "generate a fresh id".
func LenientObjectID() *ScalarSchema[primitive.ObjectID] {
	return NewScalar[primitive.ObjectID]("objectId",
		[]wire.Kind{wire.KindObjectID},
		func(v any) (primitive.ObjectID, error) { return v.(primitive.ObjectID), nil },
		func(t primitive.ObjectID) (any, error) { return t, nil },
	).WithCoercers(coerce.ObjectIDFromString(), coerce.LenientObjectID())
}
