package store

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Memory is an in-memory Collection. It implements the filter subset the
// mapper actually issues (equality and $in, plus $set/$unset updates) and is
// intended for tests and embedded use, not as a query engine.
type Memory struct {
	mu      sync.RWMutex
	docs    []bson.D
	indexes []string
}

var _ Collection = (*Memory)(nil)

// NewMemory returns an empty in-memory collection.
func NewMemory() *Memory { return &Memory{} }

// Docs returns a deep copy of the stored documents in insertion order.
func (m *Memory) Docs() []bson.D {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]bson.D, len(m.docs))
	for i, d := range m.docs {
		out[i] = copyDoc(d)
	}
	return out
}

// IndexNames returns the names of indexes created so far.
func (m *Memory) IndexNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.indexes...)
}

func (m *Memory) Find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]bson.D, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []bson.D
	for _, d := range m.docs {
		ok, err := matchDoc(d, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, copyDoc(d))
		}
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context, filter any, opts ...*options.CountOptions) (int64, error) {
	docs, err := m.Find(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (m *Memory) DeleteMany(ctx context.Context, filter any, opts ...*options.DeleteOptions) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []bson.D
	var n int64
	for _, d := range m.docs {
		ok, err := matchDoc(d, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
			continue
		}
		kept = append(kept, d)
	}
	m.docs = kept
	return n, nil
}

func (m *Memory) BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := &mongo.BulkWriteResult{UpsertedIDs: map[int64]any{}}
	for i, wm := range models {
		switch w := wm.(type) {
		case *mongo.InsertOneModel:
			doc, err := asDoc(w.Document)
			if err != nil {
				return res, err
			}
			m.docs = append(m.docs, copyDoc(doc))
			res.InsertedCount++
		case *mongo.ReplaceOneModel:
			doc, err := asDoc(w.Replacement)
			if err != nil {
				return res, err
			}
			idx, err := m.findFirst(w.Filter)
			if err != nil {
				return res, err
			}
			if idx >= 0 {
				m.docs[idx] = copyDoc(doc)
				res.MatchedCount++
				res.ModifiedCount++
				break
			}
			if w.Upsert != nil && *w.Upsert {
				m.docs = append(m.docs, copyDoc(doc))
				res.UpsertedCount++
				if id, ok := docLookup(doc, "_id"); ok {
					res.UpsertedIDs[int64(i)] = id
				}
			}
		case *mongo.UpdateOneModel:
			idx, err := m.findFirst(w.Filter)
			if err != nil {
				return res, err
			}
			if idx < 0 {
				break
			}
			upd, err := asDoc(w.Update)
			if err != nil {
				return res, err
			}
			m.docs[idx], err = applyUpdate(m.docs[idx], upd)
			if err != nil {
				return res, err
			}
			res.MatchedCount++
			res.ModifiedCount++
		case *mongo.DeleteOneModel:
			idx, err := m.findFirst(w.Filter)
			if err != nil {
				return res, err
			}
			if idx >= 0 {
				m.docs = append(m.docs[:idx], m.docs[idx+1:]...)
				res.DeletedCount++
			}
		case *mongo.DeleteManyModel:
			var kept []bson.D
			for _, d := range m.docs {
				ok, err := matchDoc(d, w.Filter)
				if err != nil {
					return res, err
				}
				if ok {
					res.DeletedCount++
					continue
				}
				kept = append(kept, d)
			}
			m.docs = kept
		default:
			return res, fmt.Errorf("store: memory bulk write: unsupported model %T", wm)
		}
	}
	return res, nil
}

func (m *Memory) CreateIndexes(ctx context.Context, models []mongo.IndexModel) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, im := range models {
		name := ""
		if im.Options != nil && im.Options.Name != nil {
			name = *im.Options.Name
		} else {
			name = indexNameFromKeys(im.Keys)
		}
		m.indexes = append(m.indexes, name)
		names = append(names, name)
	}
	return names, nil
}

func (m *Memory) Aggregate(ctx context.Context, pipeline any, opts ...*options.AggregateOptions) ([]bson.D, error) {
	stages, err := asPipeline(pipeline)
	if err != nil {
		return nil, err
	}
	docs := m.Docs()
	for _, st := range stages {
		if len(st) != 1 {
			return nil, fmt.Errorf("store: memory aggregate: malformed stage %v", st)
		}
		op := st[0]
		switch op.Key {
		case "$match":
			var kept []bson.D
			for _, d := range docs {
				ok, err := matchDoc(d, op.Value)
				if err != nil {
					return nil, err
				}
				if ok {
					kept = append(kept, d)
				}
			}
			docs = kept
		case "$limit":
			n, ok := toInt(op.Value)
			if !ok {
				return nil, fmt.Errorf("store: memory aggregate: bad $limit %v", op.Value)
			}
			if int64(len(docs)) > n {
				docs = docs[:n]
			}
		default:
			return nil, fmt.Errorf("store: memory aggregate: unsupported stage %q", op.Key)
		}
	}
	return docs, nil
}

// findFirst must be called with the lock held.
func (m *Memory) findFirst(filter any) (int, error) {
	for i, d := range m.docs {
		ok, err := matchDoc(d, filter)
		if err != nil {
			return -1, err
		}
		if ok {
			return i, nil
		}
	}
	return -1, nil
}

// ---- filter and update helpers ----

func asDoc(v any) (bson.D, error) {
	switch d := v.(type) {
	case bson.D:
		return d, nil
	case bson.M:
		out := make(bson.D, 0, len(d))
		for k, vv := range d {
			out = append(out, bson.E{Key: k, Value: vv})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("store: memory: expected document, got %T", v)
	}
}

func asPipeline(v any) ([]bson.D, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case mongo.Pipeline:
		return []bson.D(p), nil
	case []bson.D:
		return p, nil
	case bson.A:
		out := make([]bson.D, 0, len(p))
		for _, st := range p {
			d, err := asDoc(st)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("store: memory: expected pipeline, got %T", v)
	}
}

func docLookup(doc bson.D, key string) (any, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func matchDoc(doc bson.D, filter any) (bool, error) {
	if filter == nil {
		return true, nil
	}
	fd, err := asDoc(filter)
	if err != nil {
		return false, err
	}
	for _, cond := range fd {
		got, _ := docLookup(doc, cond.Key)
		ok, err := matchValue(got, cond.Value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchValue(got, want any) (bool, error) {
	// operator document?
	if wd, err := asDoc(want); err == nil && len(wd) > 0 && strings.HasPrefix(wd[0].Key, "$") {
		for _, op := range wd {
			switch op.Key {
			case "$in":
				arr, ok := op.Value.(bson.A)
				if !ok {
					return false, fmt.Errorf("store: memory: $in wants an array, got %T", op.Value)
				}
				hit := false
				for _, cand := range arr {
					if valuesEqual(got, cand) {
						hit = true
						break
					}
				}
				if !hit {
					return false, nil
				}
			case "$ne":
				if valuesEqual(got, op.Value) {
					return false, nil
				}
			default:
				return false, fmt.Errorf("store: memory: unsupported operator %q", op.Key)
			}
		}
		return true, nil
	}
	return valuesEqual(got, want), nil
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}

func applyUpdate(doc bson.D, upd bson.D) (bson.D, error) {
	for _, stage := range upd {
		sd, err := asDoc(stage.Value)
		if err != nil {
			return nil, err
		}
		switch stage.Key {
		case "$set":
			for _, e := range sd {
				doc = setAtPath(doc, strings.Split(e.Key, "."), e.Value)
			}
		case "$unset":
			for _, e := range sd {
				doc = unsetAtPath(doc, strings.Split(e.Key, "."))
			}
		default:
			return nil, fmt.Errorf("store: memory: unsupported update operator %q", stage.Key)
		}
	}
	return doc, nil
}

func setAtPath(doc bson.D, path []string, v any) bson.D {
	if len(path) == 1 {
		for i, e := range doc {
			if e.Key == path[0] {
				doc[i].Value = v
				return doc
			}
		}
		return append(doc, bson.E{Key: path[0], Value: v})
	}
	for i, e := range doc {
		if e.Key == path[0] {
			child, _ := e.Value.(bson.D)
			doc[i].Value = setAtPath(child, path[1:], v)
			return doc
		}
	}
	return append(doc, bson.E{Key: path[0], Value: setAtPath(bson.D{}, path[1:], v)})
}

func unsetAtPath(doc bson.D, path []string) bson.D {
	for i, e := range doc {
		if e.Key != path[0] {
			continue
		}
		if len(path) == 1 {
			return append(doc[:i], doc[i+1:]...)
		}
		if child, ok := e.Value.(bson.D); ok {
			doc[i].Value = unsetAtPath(child, path[1:])
		}
		return doc
	}
	return doc
}

func copyDoc(doc bson.D) bson.D {
	out := make(bson.D, len(doc))
	for i, e := range doc {
		out[i] = bson.E{Key: e.Key, Value: copyValue(e.Value)}
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case bson.D:
		return copyDoc(t)
	case bson.A:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

func indexNameFromKeys(keys any) string {
	kd, err := asDoc(keys)
	if err != nil {
		return "index"
	}
	parts := make([]string, 0, len(kd))
	for _, e := range kd {
		dir := "1"
		if n, ok := toInt(e.Value); ok {
			dir = strconv.FormatInt(n, 10)
		}
		parts = append(parts, e.Key+"_"+dir)
	}
	return strings.Join(parts, "_")
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
