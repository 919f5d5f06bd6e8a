package wire

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	json "github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
)

// FromJSON parses a JSON document into wire values. Objects become bson.D in
// source key order, arrays become bson.A, numbers become int64 when integral
// and float64 otherwise, null becomes Null.
func FromJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	// trailing garbage check
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("wire: trailing data after JSON value")
	}
	return v, nil
}

// ToJSON renders a wire value as JSON. bson.D marshals as an ordered object.
func ToJSON(v any) ([]byte, error) {
	return json.Marshal(toJSONValue(v))
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (any, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("wire: unexpected delimiter %q", t.String())
	case string:
		return t, nil
	case bool:
		return t, nil
	case json.Number:
		return numberValue(t)
	case nil:
		return Null, nil
	default:
		return nil, fmt.Errorf("wire: unexpected JSON token %v", tok)
	}
}

func decodeObject(dec *json.Decoder) (bson.D, error) {
	out := bson.D{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return out, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("wire: expected object key, got %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, bson.E{Key: key, Value: val})
	}
}

func decodeArray(dec *json.Decoder) (bson.A, error) {
	out := bson.A{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); ok && d == ']' {
			return out, nil
		}
		v, err := decodeFromToken(dec, tok)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

func numberValue(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("wire: unparsable number %q", string(n))
	}
	return f, nil
}

func toJSONValue(v any) any {
	switch t := v.(type) {
	case bson.D:
		// ordered object rendering is handled by orderedObject
		return orderedObject(t)
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toJSONValue(e)
		}
		return out
	default:
		if IsNullish(v) {
			return nil
		}
		return v
	}
}

// orderedObject marshals a bson.D as a JSON object preserving entry order.
type orderedObject bson.D

func (o orderedObject) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, e := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(e.Key))
		buf.WriteByte(':')
		b, err := json.Marshal(toJSONValue(e.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
