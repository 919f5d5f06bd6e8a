package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docmap/docmap/store"
)

func seed(t *testing.T, m *store.Memory, docs ...bson.D) {
	t.Helper()
	models := make([]mongo.WriteModel, len(docs))
	for i, d := range docs {
		models[i] = mongo.NewInsertOneModel().SetDocument(d)
	}
	if _, err := m.BulkWrite(context.Background(), models); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestMemory_FindEqualityAndOperators(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seed(t, m,
		bson.D{{Key: "_id", Value: int64(1)}, {Key: "kind", Value: "a"}},
		bson.D{{Key: "_id", Value: int64(2)}, {Key: "kind", Value: "b"}},
		bson.D{{Key: "_id", Value: int64(3)}, {Key: "kind", Value: "a"}},
	)

	got, err := m.Find(ctx, bson.D{{Key: "kind", Value: "a"}})
	if err != nil || len(got) != 2 {
		t.Fatalf("equality find = %v, %v", got, err)
	}

	got, err = m.Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{int64(1), int64(3)}}}}})
	if err != nil || len(got) != 2 {
		t.Fatalf("$in find = %v, %v", got, err)
	}

	got, err = m.Find(ctx, bson.D{{Key: "kind", Value: bson.D{{Key: "$ne", Value: "a"}}}})
	if err != nil || len(got) != 1 {
		t.Fatalf("$ne find = %v, %v", got, err)
	}

	n, err := m.Count(ctx, nil)
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}

func TestMemory_ReplaceUpsert(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	up := mongo.NewReplaceOneModel().
		SetFilter(bson.D{{Key: "_id", Value: int64(1)}}).
		SetReplacement(bson.D{{Key: "_id", Value: int64(1)}, {Key: "v", Value: "first"}}).
		SetUpsert(true)
	res, err := m.BulkWrite(ctx, []mongo.WriteModel{up})
	if err != nil {
		t.Fatalf("BulkWrite: %v", err)
	}
	if res.UpsertedCount != 1 {
		t.Fatalf("missing doc must upsert: %+v", res)
	}

	up2 := mongo.NewReplaceOneModel().
		SetFilter(bson.D{{Key: "_id", Value: int64(1)}}).
		SetReplacement(bson.D{{Key: "_id", Value: int64(1)}, {Key: "v", Value: "second"}}).
		SetUpsert(true)
	res, err = m.BulkWrite(ctx, []mongo.WriteModel{up2})
	if err != nil {
		t.Fatalf("BulkWrite: %v", err)
	}
	if res.ModifiedCount != 1 || res.UpsertedCount != 0 {
		t.Fatalf("existing doc must replace: %+v", res)
	}
	docs := m.Docs()
	if len(docs) != 1 {
		t.Fatalf("replace must not duplicate: %v", docs)
	}
}

func TestMemory_UpdateSetUnset(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seed(t, m, bson.D{
		{Key: "_id", Value: int64(1)},
		{Key: "meta", Value: bson.D{{Key: "a", Value: int64(1)}, {Key: "b", Value: int64(2)}}},
	})

	upd := mongo.NewUpdateOneModel().
		SetFilter(bson.D{{Key: "_id", Value: int64(1)}}).
		SetUpdate(bson.D{
			{Key: "$set", Value: bson.D{{Key: "meta.a", Value: int64(9)}, {Key: "top", Value: true}}},
			{Key: "$unset", Value: bson.D{{Key: "meta.b", Value: ""}}},
		})
	if _, err := m.BulkWrite(ctx, []mongo.WriteModel{upd}); err != nil {
		t.Fatalf("BulkWrite: %v", err)
	}

	doc := m.Docs()[0]
	var meta bson.D
	for _, e := range doc {
		if e.Key == "meta" {
			meta = e.Value.(bson.D)
		}
	}
	if len(meta) != 1 || meta[0].Key != "a" || meta[0].Value != int64(9) {
		t.Fatalf("dot-path update wrong: %v", doc)
	}
}

func TestMemory_DeleteMany(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seed(t, m,
		bson.D{{Key: "_id", Value: int64(1)}},
		bson.D{{Key: "_id", Value: int64(2)}},
		bson.D{{Key: "_id", Value: int64(3)}},
	)
	n, err := m.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{int64(1), int64(2)}}}}})
	if err != nil || n != 2 {
		t.Fatalf("DeleteMany = %d, %v", n, err)
	}
	if len(m.Docs()) != 1 {
		t.Fatalf("docs left = %v", m.Docs())
	}
}

func TestMemory_Aggregate(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seed(t, m,
		bson.D{{Key: "kind", Value: "a"}},
		bson.D{{Key: "kind", Value: "a"}},
		bson.D{{Key: "kind", Value: "b"}},
	)
	out, err := m.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "kind", Value: "a"}}}},
		{{Key: "$limit", Value: int64(1)}},
	})
	if err != nil || len(out) != 1 {
		t.Fatalf("Aggregate = %v, %v", out, err)
	}
	if _, err := m.Aggregate(ctx, mongo.Pipeline{{{Key: "$group", Value: bson.D{}}}}); err == nil {
		t.Fatalf("unsupported stages must fail loudly")
	}
}

func TestMemory_DocsAreCopies(t *testing.T) {
	m := store.NewMemory()
	seed(t, m, bson.D{{Key: "v", Value: int64(1)}})
	docs := m.Docs()
	docs[0][0].Value = int64(99)
	if m.Docs()[0][0].Value != int64(1) {
		t.Fatalf("Docs must hand out copies")
	}
}

func TestMemory_CreateIndexes(t *testing.T) {
	m := store.NewMemory()
	names, err := m.CreateIndexes(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "age", Value: -1}}, Options: options.Index().SetName("by_email")},
	})
	if err != nil {
		t.Fatalf("CreateIndexes: %v", err)
	}
	if len(names) != 2 || names[0] != "email_1" || names[1] != "by_email" {
		t.Fatalf("names = %v", names)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")
	body := "uri: mongodb://localhost:27017\ndatabase: app\napp_name: docmap-test\nconnect_timeout: 5s\nmax_pool_size: 10\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.URI != "mongodb://localhost:27017" || cfg.Database != "app" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ConnectTimeout.Std() != 5*time.Second || cfg.MaxPoolSize != 10 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if _, err := store.LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("missing file must error")
	}
}
