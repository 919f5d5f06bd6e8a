package docmap_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	docmap "github.com/docmap/docmap"
	"github.com/docmap/docmap/coerce"
	"github.com/docmap/docmap/wire"
)

func TestScalar_DirectAcceptSkipsCoercers(t *testing.T) {
	var calls int
	counting := coerce.Coercer[int64]{
		Name:      "counting",
		CanDecode: func(any) bool { calls++; return false },
	}
	s := docmap.NewScalar[int64]("int64",
		[]wire.Kind{wire.KindInt64},
		func(v any) (int64, error) { return v.(int64), nil },
		func(t int64) (any, error) { return t, nil },
	).WithCoercers(counting)

	got, err := s.Decode(context.Background(), int64(7))
	if err != nil || got != 7 {
		t.Fatalf("Decode = %d, %v", got, err)
	}
	if calls != 0 {
		t.Fatalf("direct accept must not consult coercers, saw %d probes", calls)
	}
}

func TestScalar_CoercersTriedInOrder(t *testing.T) {
	var order []string
	mk := func(name string, match bool, out int64, fail bool) coerce.Coercer[int64] {
		return coerce.Coercer[int64]{
			Name:      name,
			CanDecode: func(any) bool { order = append(order, name); return match },
			Decode: func(any) (int64, error) {
				if fail {
					return 0, errors.New(name + " declined")
				}
				return out, nil
			},
		}
	}
	s := docmap.NewScalar[int64]("int64",
		[]wire.Kind{wire.KindInt64},
		func(v any) (int64, error) { return v.(int64), nil },
		func(t int64) (any, error) { return t, nil },
	).WithCoercers(
		mk("miss", false, 0, false),
		mk("failing", true, 0, true), // non-deterministic failure falls through
		mk("winner", true, 42, false),
	)

	got, err := s.Decode(context.Background(), "anything")
	if err != nil || got != 42 {
		t.Fatalf("Decode = %d, %v", got, err)
	}
	if len(order) != 3 || order[0] != "miss" || order[1] != "failing" || order[2] != "winner" {
		t.Fatalf("probe order %v", order)
	}
}

func TestScalar_DeterministicCoercerCommits(t *testing.T) {
	boom := errors.New("committed failure")
	s := docmap.NewScalar[int64]("int64",
		[]wire.Kind{wire.KindInt64},
		func(v any) (int64, error) { return v.(int64), nil },
		func(t int64) (any, error) { return t, nil },
	).WithCoercers(
		coerce.Coercer[int64]{
			Name:          "committing",
			Deterministic: true,
			CanDecode:     func(any) bool { return true },
			Decode:        func(any) (int64, error) { return 0, boom },
		},
		coerce.Coercer[int64]{
			Name:      "never-reached",
			CanDecode: func(any) bool { return true },
			Decode:    func(any) (int64, error) { return 99, nil },
		},
	)
	_, err := s.Decode(context.Background(), "x")
	if !errors.Is(err, boom) {
		t.Fatalf("deterministic coercer must commit its failure, got %v", err)
	}
	de, ok := docmap.AsDecodeError(err)
	if !ok {
		t.Fatalf("expected a decode error, got %T", err)
	}
	if de.Value != "x" {
		t.Fatalf("decode error should carry the offending value, got %v", de.Value)
	}
}

func TestScalar_NoMatchYieldsDecodeError(t *testing.T) {
	_, err := docmap.Bool().Decode(context.Background(), int64(1))
	de, ok := docmap.AsDecodeError(err)
	if !ok {
		t.Fatalf("expected decode error, got %v", err)
	}
	if len(de.Expected) != 1 || de.Expected[0] != wire.KindBool {
		t.Fatalf("Expected = %v", de.Expected)
	}
}

func TestBuiltinScalars(t *testing.T) {
	ctx := context.Background()

	if got, err := docmap.String().Decode(ctx, int64(5)); err != nil || got != "5" {
		t.Fatalf("String()<-int64 = %q, %v", got, err)
	}
	if got, err := docmap.Int64().Decode(ctx, 2.5); err != nil || got != 3 {
		t.Fatalf("Int64()<-2.5 = %d, %v", got, err)
	}
	if got, err := docmap.Int64().Decode(ctx, "17"); err != nil || got != 17 {
		t.Fatalf("Int64()<-string = %d, %v", got, err)
	}
	if got, err := docmap.Float64().Decode(ctx, int32(3)); err != nil || got != 3.0 {
		t.Fatalf("Float64()<-int32 = %v, %v", got, err)
	}

	when := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	tv, err := docmap.Time().Decode(ctx, primitive.NewDateTimeFromTime(when))
	if err != nil || !tv.Equal(when) {
		t.Fatalf("Time()<-DateTime = %v, %v", tv, err)
	}
	enc, err := docmap.Time().Encode(ctx, when)
	if err != nil {
		t.Fatalf("Time().Encode: %v", err)
	}
	if wire.KindOf(enc) != wire.KindDateTime {
		t.Fatalf("Time() must encode as a wire datetime, got %T", enc)
	}
}

func TestObjectID_HexAndBinaryAgree(t *testing.T) {
	ctx := context.Background()
	id := primitive.NewObjectID()
	fromBin, err := docmap.ObjectID().Decode(ctx, id)
	if err != nil {
		t.Fatalf("binary decode: %v", err)
	}
	fromHex, err := docmap.ObjectID().Decode(ctx, id.Hex())
	if err != nil {
		t.Fatalf("hex decode: %v", err)
	}
	if fromBin != fromHex {
		t.Fatalf("the two wire forms must decode to the same id")
	}
}

func TestLenientObjectID_GeneratesOnNullish(t *testing.T) {
	ctx := context.Background()
	s := docmap.LenientObjectID()
	a, err := s.Decode(ctx, wire.Null)
	if err != nil || a.IsZero() {
		t.Fatalf("null should yield a fresh id, got %v, %v", a, err)
	}
	b, err := s.Decode(ctx, wire.Undefined)
	if err != nil || b.IsZero() {
		t.Fatalf("undefined should yield a fresh id, got %v, %v", b, err)
	}
	if a == b {
		t.Fatalf("generated ids must be unique")
	}

	// strict variant rejects the same input
	if _, err := docmap.ObjectID().Decode(ctx, wire.Null); err == nil {
		t.Fatalf("strict ObjectID must reject null")
	}
}
