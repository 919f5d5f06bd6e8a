package coerce_test

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docmap/docmap/coerce"
)

func TestInt64FromNumeric_RoundHalfUp(t *testing.T) {
	c := coerce.Int64FromNumeric()
	cases := []struct {
		in   float64
		want int64
	}{
		{2.4, 2},
		{2.5, 3},
		{2.6, 3},
		{-2.5, -2}, // half up rounds toward positive infinity
		{-2.6, -3},
	}
	for _, cse := range cases {
		got, err := c.Decode(cse.in)
		if err != nil {
			t.Fatalf("Decode(%v): %v", cse.in, err)
		}
		if got != cse.want {
			t.Fatalf("Decode(%v) = %d, want %d", cse.in, got, cse.want)
		}
	}
	if _, err := c.Decode(1.0); err != nil {
		t.Fatalf("whole double should convert: %v", err)
	}
	if got, _ := c.Decode(int32(7)); got != 7 {
		t.Fatalf("int32 widening failed: %d", got)
	}
}

func TestInt64FromString(t *testing.T) {
	c := coerce.Int64FromString()
	if got, err := c.Decode("42"); err != nil || got != 42 {
		t.Fatalf("Decode(42) = %d, %v", got, err)
	}
	if got, err := c.Decode("2.5"); err != nil || got != 3 {
		t.Fatalf("decimal string rounds half up: %d, %v", got, err)
	}
	if _, err := c.Decode("nope"); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}
}

func TestInt32Overflow(t *testing.T) {
	c := coerce.Int32FromNumeric()
	if _, err := c.Decode(int64(1) << 40); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestStringFromNumeric(t *testing.T) {
	c := coerce.StringFromNumeric()
	if got, _ := c.Decode(int64(5)); got != "5" {
		t.Fatalf("got %q", got)
	}
	if got, _ := c.Decode(2.5); got != "2.5" {
		t.Fatalf("got %q", got)
	}
}

func TestObjectIDFromString(t *testing.T) {
	id := primitive.NewObjectID()
	c := coerce.ObjectIDFromString()
	got, err := c.Decode(id.Hex())
	if err != nil {
		t.Fatalf("Decode(hex): %v", err)
	}
	if got != id {
		t.Fatalf("hex form should decode to the same id")
	}
	if _, err := c.Decode("zz"); err == nil {
		t.Fatalf("expected error for bad hex")
	}
}

func TestLenientObjectID(t *testing.T) {
	c := coerce.LenientObjectID()
	if !c.Deterministic {
		t.Fatalf("lenient id coercer must commit in one pass")
	}
	if !c.CanDecode(nil) || !c.CanDecode(primitive.Undefined{}) {
		t.Fatalf("lenient id must accept nullish")
	}
	a, err := c.Decode(nil)
	if err != nil || a.IsZero() {
		t.Fatalf("expected fresh id, got %v, %v", a, err)
	}
	b, _ := c.Decode(nil)
	if a == b {
		t.Fatalf("two generated ids must differ")
	}
}

func TestTimeFromMillis(t *testing.T) {
	c := coerce.TimeFromMillis()
	got, err := c.Decode(int64(1000))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Unix() != 1 {
		t.Fatalf("epoch millis mismatch: %v", got)
	}
}

func TestTimeFromString(t *testing.T) {
	c := coerce.TimeFromString()
	got, err := c.Decode("2023-04-05T06:07:08Z")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Year() != 2023 || got.Month() != 4 {
		t.Fatalf("parsed wrong time: %v", got)
	}
	if _, err := c.Decode("not-a-time"); err == nil {
		t.Fatalf("expected error")
	}
}
