package docmap_test

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	docmap "github.com/docmap/docmap"
	"github.com/docmap/docmap/wire"
)

type account struct {
	Name    string
	Credits int64
	Note    *string
}

func accountSchema() *docmap.ObjectSchema[account] {
	return docmap.MustObject(func() *account { return &account{} },
		docmap.NewField[account, string]("name", docmap.String(),
			func(a *account) (string, bool) { return a.Name, true },
			func(a *account, v string) { a.Name = v },
		),
		docmap.NewField[account, int64]("credits", docmap.Int64(),
			func(a *account) (int64, bool) { return a.Credits, true },
			func(a *account, v int64) { a.Credits = v },
		),
		docmap.NewField[account, *string]("note", docmap.Nullable[string](docmap.String()),
			func(a *account) (*string, bool) { return a.Note, true },
			func(a *account, v *string) { a.Note = v },
		),
	)
}

func TestObject_DecodeEncode(t *testing.T) {
	ctx := context.Background()
	s := accountSchema()

	inst, err := s.Decode(ctx, bson.D{
		{Key: "name", Value: "ada"},
		{Key: "credits", Value: int32(7)}, // coerces
		{Key: "note", Value: wire.Null},
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if inst.Name != "ada" || inst.Credits != 7 || inst.Note != nil {
		t.Fatalf("Decode = %+v", inst)
	}

	doc, err := s.EncodeDoc(ctx, inst)
	if err != nil {
		t.Fatalf("EncodeDoc: %v", err)
	}
	// field order follows declaration order, every time
	if doc[0].Key != "name" || doc[1].Key != "credits" || doc[2].Key != "note" {
		t.Fatalf("field order = %v", doc)
	}
	again, err := s.EncodeDoc(ctx, inst)
	if err != nil {
		t.Fatalf("second EncodeDoc: %v", err)
	}
	for i := range doc {
		if doc[i].Key != again[i].Key {
			t.Fatalf("two encodes of one instance must agree on order")
		}
	}
}

func TestObject_FieldErrorCarriesPath(t *testing.T) {
	s := accountSchema()
	_, err := s.Decode(context.Background(), bson.D{
		{Key: "name", Value: "ada"},
		{Key: "credits", Value: bson.D{}}, // not numeric
	})
	de, ok := docmap.AsDecodeError(err)
	if !ok {
		t.Fatalf("expected decode error, got %v", err)
	}
	if de.Path != "credits" {
		t.Fatalf("Path = %q, want the failing field", de.Path)
	}
}

func TestObject_DuplicateFieldRejected(t *testing.T) {
	f := func() *docmap.FieldDefinition[account, string] {
		return docmap.NewField[account, string]("name", docmap.String(),
			func(a *account) (string, bool) { return a.Name, true },
			func(a *account, v string) { a.Name = v },
		)
	}
	_, err := docmap.NewObject(func() *account { return &account{} }, f(), f())
	if _, ok := docmap.AsConfigurationError(err); !ok {
		t.Fatalf("duplicate field must be a configuration error, got %v", err)
	}
}

func TestObject_NilCtorRejected(t *testing.T) {
	_, err := docmap.NewObject[account](nil)
	if _, ok := docmap.AsConfigurationError(err); !ok {
		t.Fatalf("nil constructor must be a configuration error, got %v", err)
	}
}

func TestField_AbsentGetterEncodesNull(t *testing.T) {
	s := docmap.MustObject(func() *account { return &account{} },
		docmap.NewField[account, string]("name", docmap.String(),
			func(a *account) (string, bool) { return "", false }, // never set
			func(a *account, v string) { a.Name = v },
		),
	)
	doc, err := s.EncodeDoc(context.Background(), &account{})
	if err != nil {
		t.Fatalf("EncodeDoc: %v", err)
	}
	if !wire.IsNullish(wire.Lookup(doc, "name")) {
		t.Fatalf("uninitialized slot must encode as null, got %v", doc)
	}
}

func TestField_UnsetIfNull(t *testing.T) {
	s := docmap.MustObject(func() *account { return &account{} },
		docmap.NewField[account, *string]("note", docmap.Nullable[string](docmap.String()),
			func(a *account) (*string, bool) { return a.Note, true },
			func(a *account, v *string) { a.Note = v },
		).UnsetIfNull(),
	)
	doc, err := s.EncodeDoc(context.Background(), &account{})
	if err != nil {
		t.Fatalf("EncodeDoc: %v", err)
	}
	if wire.Has(doc, "note") {
		t.Fatalf("null value must be unset, got %v", doc)
	}
}

func TestField_ImmutableDiscardsOnUpdate(t *testing.T) {
	s := docmap.MustObject(func() *account { return &account{} },
		docmap.NewField[account, string]("name", docmap.String(),
			func(a *account) (string, bool) { return a.Name, true },
			func(a *account, v string) { a.Name = v },
		).Immutable(),
		docmap.NewField[account, int64]("credits", docmap.Int64(),
			func(a *account) (int64, bool) { return a.Credits, true },
			func(a *account, v int64) { a.Credits = v },
		),
	)
	inst := &account{Name: "ada", Credits: 3}

	fresh, err := s.EncodeDoc(context.Background(), inst)
	if err != nil {
		t.Fatalf("EncodeDoc: %v", err)
	}
	if !wire.Has(fresh, "name") {
		t.Fatalf("creation encode keeps immutable fields: %v", fresh)
	}

	upd, err := s.EncodeDoc(docmap.WithUpdateEncode(context.Background(), true), inst)
	if err != nil {
		t.Fatalf("update EncodeDoc: %v", err)
	}
	if wire.Has(upd, "name") {
		t.Fatalf("update encode must drop immutable fields: %v", upd)
	}
	if !wire.Has(upd, "credits") {
		t.Fatalf("other fields survive the update encode: %v", upd)
	}
}

func TestField_PostDecodeHook(t *testing.T) {
	var sawSource any
	s := docmap.MustObject(func() *account { return &account{} },
		docmap.NewField[account, int64]("credits", docmap.Int64(),
			func(a *account) (int64, bool) { return a.Credits, true },
			func(a *account, v int64) { a.Credits = v },
		).PostDecode(func(ctx context.Context, ev *docmap.DecodeEvent[account, int64]) error {
			sawSource = ev.Source
			ev.Instance.Credits = ev.Value * 2
			return nil
		}),
	)
	inst, err := s.Decode(context.Background(), bson.D{{Key: "credits", Value: int64(5)}})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if inst.Credits != 10 {
		t.Fatalf("post-decode hook must see the set instance, got %d", inst.Credits)
	}
	if sawSource != int64(5) {
		t.Fatalf("hook source = %v", sawSource)
	}
}

func TestObject_ObtainOptionsOrder(t *testing.T) {
	objOpt := docmap.Normalization("object-level", nil)
	fieldOpt := docmap.Normalization("field-level", nil)

	s := docmap.MustObject(func() *account { return &account{} },
		docmap.NewField[account, string]("name", docmap.String(),
			func(a *account) (string, bool) { return a.Name, true },
			func(a *account, v string) { a.Name = v },
		).WithOptions(fieldOpt),
	).WithOptions(objOpt)

	inst := &account{Name: "ada"}
	ods := s.ObtainOptions(nil, inst, inst, "")
	if len(ods) != 2 {
		t.Fatalf("materialized %d options, want 2", len(ods))
	}
	if ods[0].Config.Name != "object-level" || ods[1].Config.Name != "field-level" {
		t.Fatalf("object options come before field options: %v, %v", ods[0].Config, ods[1].Config)
	}
	if ods[1].Path != "name" || ods[1].Value != "ada" {
		t.Fatalf("field option binds path and value: %+v", ods[1])
	}
	if ods[0].Root != any(inst) {
		t.Fatalf("root must be the instance")
	}
}
