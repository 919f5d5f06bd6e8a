package dsl

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	docmap "github.com/docmap/docmap"
)

func configErr(format string, args ...any) error {
	return &docmap.ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// Scalar constructors, re-exported so schema declarations read from one
// package.

func String() *docmap.ScalarSchema[string]   { return docmap.String() }
func Bool() *docmap.ScalarSchema[bool]       { return docmap.Bool() }
func Int32() *docmap.ScalarSchema[int32]     { return docmap.Int32() }
func Int64() *docmap.ScalarSchema[int64]     { return docmap.Int64() }
func Float64() *docmap.ScalarSchema[float64] { return docmap.Float64() }
func Time() *docmap.ScalarSchema[time.Time]  { return docmap.Time() }

func ObjectID() *docmap.ScalarSchema[primitive.ObjectID] { return docmap.ObjectID() }
func LenientObjectID() *docmap.ScalarSchema[primitive.ObjectID] {
	return docmap.LenientObjectID()
}

// Array wraps an element schema.
func Array[E any](elem docmap.Schema[E]) *docmap.ArraySchema[E] { return docmap.Array(elem) }

// Nullable passes null/undefined through as nil.
func Nullable[M any](inner docmap.Schema[M]) *docmap.NullableSchema[M] {
	return docmap.Nullable(inner)
}

// Enum builds a finite wire<->token bijection.
func Enum[T comparable](pairs ...docmap.EnumPair[T]) *docmap.EnumSchema[T] {
	return docmap.Enum(pairs...)
}

// Mapped retrofits a schema written against U onto an M-typed field.
func Mapped[M, U any](inner docmap.Schema[U], fromInner func(U) (M, error), toInner func(M) (U, error)) *docmap.MappedSchema[M, U] {
	return docmap.Mapped(inner, fromInner, toInner)
}

// Unit decodes anything to struct{} and encodes to null.
func Unit() docmap.Schema[struct{}] { return docmap.Unit() }
