// Package wire adapts the mongo-driver BSON types into the value algebra the
// schema layer consumes. A wire value is an `any` restricted to the BSON
// family; documents are always bson.D so field order survives decode/encode.
package wire

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind tags the wire-level type of a value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindDouble
	KindString
	KindDocument
	KindArray
	KindObjectID
	KindBool
	KindDateTime
	KindNull
	KindUndefined
	KindInt32
	KindInt64
)

var kindNames = map[Kind]string{
	KindInvalid:   "invalid",
	KindDouble:    "double",
	KindString:    "string",
	KindDocument:  "document",
	KindArray:     "array",
	KindObjectID:  "objectId",
	KindBool:      "bool",
	KindDateTime:  "dateTime",
	KindNull:      "null",
	KindUndefined: "undefined",
	KindInt32:     "int32",
	KindInt64:     "int64",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// Undefined is the canonical undefined wire value, substituted for absent
// document fields during object traversal.
var Undefined any = primitive.Undefined{}

// Null is the canonical null wire value.
var Null any = primitive.Null{}

// KindOf reports the wire kind of v. Unrecognized Go values map to KindInvalid.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil, primitive.Null:
		return KindNull
	case primitive.Undefined:
		return KindUndefined
	case string:
		return KindString
	case bool:
		return KindBool
	case int32:
		return KindInt32
	case int64:
		return KindInt64
	case float64:
		return KindDouble
	case primitive.ObjectID:
		return KindObjectID
	case primitive.DateTime, time.Time:
		return KindDateTime
	case bson.D:
		return KindDocument
	case bson.A:
		return KindArray
	default:
		return KindInvalid
	}
}

// IsNullish reports whether v is null or undefined.
func IsNullish(v any) bool {
	k := KindOf(v)
	return k == KindNull || k == KindUndefined
}

// Lookup returns the value stored under name, or Undefined when the key is
// absent. First occurrence wins for (malformed) duplicate keys.
func Lookup(doc bson.D, name string) any {
	for _, e := range doc {
		if e.Key == name {
			if e.Value == nil {
				return Null
			}
			return e.Value
		}
	}
	return Undefined
}

// Has reports whether the document carries the key at all.
func Has(doc bson.D, name string) bool {
	for _, e := range doc {
		if e.Key == name {
			return true
		}
	}
	return false
}

// Set writes name=v, replacing an existing entry in place (order preserved) or
// appending when absent.
func Set(doc bson.D, name string, v any) bson.D {
	for i, e := range doc {
		if e.Key == name {
			doc[i].Value = v
			return doc
		}
	}
	return append(doc, bson.E{Key: name, Value: v})
}

// Delete removes name, preserving the order of the remaining entries.
func Delete(doc bson.D, name string) bson.D {
	for i, e := range doc {
		if e.Key == name {
			return append(doc[:i], doc[i+1:]...)
		}
	}
	return doc
}
