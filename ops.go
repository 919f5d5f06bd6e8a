package docmap

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/docmap/docmap/wire"
)

// idSchema reads the _id slot of incoming documents: binary id or hex string,
// with null/undefined/absent defaulting to a freshly generated id.
var idSchema = LenientObjectID()

// Decode converts wire documents into instances of m's type: object decode,
// then id and owning model set atomically before any option handler runs,
// then initialization options, then migration options. Instances come out
// flagged isNew per opt (default true) and isDeleted=false.
func Decode[T any](ctx context.Context, m *TypedModel[T], docs []bson.D, opt ...DecodeOpt) ([]*T, error) {
	r := m.Registry()
	if r == nil {
		return nil, configErrf("model %q is not registered", m.name)
	}
	markNew := true
	if len(opt) > 0 {
		markNew = opt[0].MarkNew
	}
	out := make([]*T, 0, len(docs))
	tracked := make([]any, 0, len(docs))
	for _, doc := range docs {
		inst, err := m.schema.Decode(ctx, doc)
		if err != nil {
			return nil, err
		}
		id, err := idSchema.Decode(ctx, wire.Lookup(doc, "_id"))
		if err != nil {
			return nil, rebaseError("_id", err)
		}
		r.setMeta(inst, &Meta{ID: id, Model: m, IsNew: markNew, IsDeleted: false})
		out = append(out, inst)
		tracked = append(tracked, inst)
	}
	if err := r.Initialize(ctx, Tweak{}, tracked...); err != nil {
		return nil, err
	}
	if err := r.Migrate(ctx, Tweak{}, tracked...); err != nil {
		return nil, err
	}
	return out, nil
}

// Track registers a locally constructed instance with the registry, giving it
// a fresh id and isNew=true, so it can be saved without having been decoded.
func Track[T any](r *Registry, m *TypedModel[T], inst *T) *T {
	r.setMeta(inst, &Meta{ID: primitive.NewObjectID(), Model: m, IsNew: true})
	return inst
}

// Encode runs normalization, strict validation, then object-encodes each
// instance, guaranteeing an _id key in every output document. Instances with
// isNew=false are encoded in update mode (immutable fields discard
// themselves).
func (r *Registry) Encode(ctx context.Context, instances ...any) ([]bson.D, error) {
	if err := r.Normalize(ctx, Tweak{}, instances...); err != nil {
		return nil, err
	}
	if err := r.Validate(ctx, Tweak{}, instances...); err != nil {
		return nil, err
	}
	out := make([]bson.D, 0, len(instances))
	for _, inst := range instances {
		doc, _, err := r.encodeOne(ctx, inst)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// encodeOne object-encodes a tracked instance and injects its id when the
// schema did not write one. Normalization/validation are the caller's duty.
func (r *Registry) encodeOne(ctx context.Context, inst any) (bson.D, *Meta, error) {
	mt := r.metaRef(inst)
	if mt == nil {
		return nil, nil, configErrf("instance %T is not tracked by this registry", inst)
	}
	ectx := WithUpdateEncode(ctx, !mt.IsNew)
	doc, err := mt.Model.encodeDoc(ectx, inst)
	if err != nil {
		return nil, nil, err
	}
	if !wire.Has(doc, "_id") {
		doc = append(bson.D{{Key: "_id", Value: mt.ID}}, doc...)
	}
	return doc, mt, nil
}

type modelBatch struct {
	model  Model
	writes []mongo.WriteModel
	metas  []*Meta
	ids    []primitive.ObjectID
}

// Save encodes the instances (normalize, validate, encode) and issues one
// batched write per owning model: an upsert-by-id replace per instance plus
// whatever extra writes its writes-options emitted. On success every saved
// instance is flagged isNew=false, isDeleted=false.
//
// Batches of different models are independent operations with no ordering
// between them; within one model's batch, writes follow instance order.
// Store errors propagate unchanged.
func (r *Registry) Save(ctx context.Context, instances ...any) error {
	if len(instances) == 0 {
		return nil
	}
	if err := r.Normalize(ctx, Tweak{}, instances...); err != nil {
		return err
	}
	if err := r.Validate(ctx, Tweak{}, instances...); err != nil {
		return err
	}
	var order []string
	batches := map[string]*modelBatch{}
	for _, inst := range instances {
		doc, mt, err := r.encodeOne(ctx, inst)
		if err != nil {
			return err
		}
		b := batches[mt.Model.Name()]
		if b == nil {
			b = &modelBatch{model: mt.Model}
			batches[mt.Model.Name()] = b
			order = append(order, mt.Model.Name())
		}
		upsert := mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: mt.ID}}).
			SetReplacement(doc).
			SetUpsert(true)
		b.writes = append(b.writes, upsert)

		inv, err := r.runKind(ctx, OptionWrites, Tweak{}, inst)
		if err != nil {
			return err
		}
		b.writes = append(b.writes, inv.Writes()...)
		b.metas = append(b.metas, mt)
	}
	for _, name := range order {
		b := batches[name]
		if _, err := b.model.Collection().BulkWrite(ctx, b.writes); err != nil {
			return err
		}
		r.log.Debug().Str("model", name).Int("writes", len(b.writes)).Msg("saved batch")
		r.mu.Lock()
		for _, mt := range b.metas {
			mt.IsNew = false
			mt.IsDeleted = false
		}
		r.mu.Unlock()
	}
	return nil
}

// Delete runs the instances' deletion options, drops the vetoed ones from the
// set, and issues one batched delete-by-id per owning model. Deleted
// instances are flagged isNew=false, isDeleted=true; vetoed instances keep
// their flags.
func (r *Registry) Delete(ctx context.Context, instances ...any) error {
	if len(instances) == 0 {
		return nil
	}
	inv, err := r.runKind(ctx, OptionDeletion, Tweak{}, instances...)
	if err != nil {
		return err
	}
	var order []string
	batches := map[string]*modelBatch{}
	for _, inst := range instances {
		if inv.Vetoed(inst) {
			continue
		}
		mt := r.metaRef(inst)
		if mt == nil {
			return configErrf("instance %T is not tracked by this registry", inst)
		}
		b := batches[mt.Model.Name()]
		if b == nil {
			b = &modelBatch{model: mt.Model}
			batches[mt.Model.Name()] = b
			order = append(order, mt.Model.Name())
		}
		b.ids = append(b.ids, mt.ID)
		b.metas = append(b.metas, mt)
	}
	for _, name := range order {
		b := batches[name]
		ids := make(bson.A, len(b.ids))
		for i, id := range b.ids {
			ids[i] = id
		}
		filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
		n, err := b.model.Collection().DeleteMany(ctx, filter)
		if err != nil {
			return err
		}
		r.log.Debug().Str("model", name).Int64("deleted", n).Msg("deleted batch")
		r.mu.Lock()
		for _, mt := range b.metas {
			mt.IsNew = false
			mt.IsDeleted = true
		}
		r.mu.Unlock()
	}
	return nil
}
