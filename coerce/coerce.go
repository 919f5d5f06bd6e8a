// Package coerce provides fallback converters that let scalar schemas accept
// wire values of a broader type set than their canonical type. Coercion is
// possibly lossy on decode; see the per-coercer notes.
package coerce

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docmap/docmap/wire"
)

// Coercer attempts to produce a T from a wire value the schema does not accept
// directly. CanDecode is a cheap pre-check; Decode may still fail.
//
// A deterministic coercer commits in one pass: once CanDecode matches, its
// Decode outcome is final and later coercers are not tried.
type Coercer[T any] struct {
	Name          string
	Deterministic bool
	CanDecode     func(v any) bool
	Decode        func(v any) (T, error)
}

func isNumeric(v any) bool {
	switch wire.KindOf(v) {
	case wire.KindInt32, wire.KindInt64, wire.KindDouble:
		return true
	}
	return false
}

// roundToInt64 converts a double to the nearest integer, half up. Truncation
// would silently disagree with the source semantics of roundToLong.
func roundToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("coerce: cannot round %v to integer", f)
	}
	r := math.Floor(f + 0.5)
	if r < math.MinInt64 || r > math.MaxInt64 {
		return 0, fmt.Errorf("coerce: %v overflows int64", f)
	}
	return int64(r), nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return roundToInt64(n)
	}
	return 0, fmt.Errorf("coerce: not numeric: %T", v)
}

// Int64FromNumeric widens int32 and rounds double (half up) to int64.
func Int64FromNumeric() Coercer[int64] {
	return Coercer[int64]{
		Name:      "int64<-numeric",
		CanDecode: isNumeric,
		Decode:    toInt64,
	}
}

// Int64FromString parses a locale-independent decimal string.
func Int64FromString() Coercer[int64] {
	return Coercer[int64]{
		Name:      "int64<-string",
		CanDecode: func(v any) bool { return wire.KindOf(v) == wire.KindString },
		Decode: func(v any) (int64, error) {
			s := v.(string)
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i, nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, fmt.Errorf("coerce: %q is not a decimal number", s)
			}
			return roundToInt64(f)
		},
	}
}

// Int32FromNumeric narrows int64 and rounds double (half up) to int32,
// failing on overflow.
func Int32FromNumeric() Coercer[int32] {
	return Coercer[int32]{
		Name:      "int32<-numeric",
		CanDecode: isNumeric,
		Decode: func(v any) (int32, error) {
			i, err := toInt64(v)
			if err != nil {
				return 0, err
			}
			if i < math.MinInt32 || i > math.MaxInt32 {
				return 0, fmt.Errorf("coerce: %d overflows int32", i)
			}
			return int32(i), nil
		},
	}
}

// Int32FromString parses a locale-independent decimal string.
func Int32FromString() Coercer[int32] {
	inner := Int64FromString()
	return Coercer[int32]{
		Name:      "int32<-string",
		CanDecode: inner.CanDecode,
		Decode: func(v any) (int32, error) {
			i, err := inner.Decode(v)
			if err != nil {
				return 0, err
			}
			if i < math.MinInt32 || i > math.MaxInt32 {
				return 0, fmt.Errorf("coerce: %d overflows int32", i)
			}
			return int32(i), nil
		},
	}
}

// Float64FromNumeric widens any integer kind to double.
func Float64FromNumeric() Coercer[float64] {
	return Coercer[float64]{
		Name:      "double<-numeric",
		CanDecode: isNumeric,
		Decode: func(v any) (float64, error) {
			switch n := v.(type) {
			case int32:
				return float64(n), nil
			case int64:
				return float64(n), nil
			case float64:
				return n, nil
			}
			return 0, fmt.Errorf("coerce: not numeric: %T", v)
		},
	}
}

// Float64FromString parses a locale-independent decimal string.
func Float64FromString() Coercer[float64] {
	return Coercer[float64]{
		Name:      "double<-string",
		CanDecode: func(v any) bool { return wire.KindOf(v) == wire.KindString },
		Decode: func(v any) (float64, error) {
			f, err := strconv.ParseFloat(v.(string), 64)
			if err != nil {
				return 0, fmt.Errorf("coerce: %q is not a decimal number", v)
			}
			return f, nil
		},
	}
}

// StringFromNumeric renders any numeric kind as its decimal string.
func StringFromNumeric() Coercer[string] {
	return Coercer[string]{
		Name:      "string<-numeric",
		CanDecode: isNumeric,
		Decode: func(v any) (string, error) {
			switch n := v.(type) {
			case int32:
				return strconv.FormatInt(int64(n), 10), nil
			case int64:
				return strconv.FormatInt(n, 10), nil
			case float64:
				return strconv.FormatFloat(n, 'g', -1, 64), nil
			}
			return "", fmt.Errorf("coerce: not numeric: %T", v)
		},
	}
}

// ObjectIDFromString accepts the 24-hex rendering of an id. Ids compare equal
// regardless of which wire form they arrived in.
func ObjectIDFromString() Coercer[primitive.ObjectID] {
	return Coercer[primitive.ObjectID]{
		Name:      "objectId<-string",
		CanDecode: func(v any) bool { return wire.KindOf(v) == wire.KindString },
		Decode: func(v any) (primitive.ObjectID, error) {
			id, err := primitive.ObjectIDFromHex(v.(string))
			if err != nil {
				return primitive.NilObjectID, fmt.Errorf("coerce: %q is not an objectId: %w", v, err)
			}
			return id, nil
		},
	}
}

// LenientObjectID turns null/undefined into a freshly generated id instead of
// failing. Deterministic: once matched there is nothing else to try.
func LenientObjectID() Coercer[primitive.ObjectID] {
	return Coercer[primitive.ObjectID]{
		Name:          "objectId<-nullish",
		Deterministic: true,
		CanDecode:     wire.IsNullish,
		Decode: func(any) (primitive.ObjectID, error) {
			return primitive.NewObjectID(), nil
		},
	}
}

// TimeFromMillis accepts an epoch-milliseconds integer.
func TimeFromMillis() Coercer[time.Time] {
	return Coercer[time.Time]{
		Name: "dateTime<-millis",
		CanDecode: func(v any) bool {
			k := wire.KindOf(v)
			return k == wire.KindInt32 || k == wire.KindInt64
		},
		Decode: func(v any) (time.Time, error) {
			i, err := toInt64(v)
			if err != nil {
				return time.Time{}, err
			}
			return primitive.DateTime(i).Time().UTC(), nil
		},
	}
}

// TimeFromString accepts an RFC3339 string.
func TimeFromString() Coercer[time.Time] {
	return Coercer[time.Time]{
		Name:      "dateTime<-string",
		CanDecode: func(v any) bool { return wire.KindOf(v) == wire.KindString },
		Decode: func(v any) (time.Time, error) {
			t, err := time.Parse(time.RFC3339Nano, v.(string))
			if err != nil {
				return time.Time{}, fmt.Errorf("coerce: invalid RFC3339 time: %w", err)
			}
			return t, nil
		},
	}
}
