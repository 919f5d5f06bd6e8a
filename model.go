package docmap

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docmap/docmap/store"
)

// Meta is the out-of-band state associated with a decoded instance. It lives
// in a side table keyed by instance identity so instance types need not embed
// anything.
type Meta struct {
	ID        primitive.ObjectID
	Model     Model
	IsNew     bool
	IsDeleted bool
}

// Model ties a name and an object schema to a collection. TypedModel is the
// only implementation; the interface erases T so a Registry can hold
// heterogeneous models and group mixed instance sets.
type Model interface {
	Name() string
	Collection() store.Collection

	bind(r *Registry) error
	encodeDoc(ctx context.Context, inst any) (bson.D, error)
	instanceOptions(inst any) []*OptionData
	staticOptions() []*OptionData
	indexModels() []mongo.IndexModel
}

// TypedModel is the typed binding of T to a named collection.
type TypedModel[T any] struct {
	name   string
	schema *ObjectSchema[T]
	coll   store.Collection
	idx    []mongo.IndexModel

	mu  sync.Mutex
	reg *Registry // deferred back-reference, resolved once at registration
}

// NewModel builds a model over the given schema and collection. It is inert
// until registered.
func NewModel[T any](name string, schema *ObjectSchema[T], coll store.Collection) *TypedModel[T] {
	return &TypedModel[T]{name: name, schema: schema, coll: coll}
}

// WithIndexes declares index specs created at registration.
func (m *TypedModel[T]) WithIndexes(ix ...mongo.IndexModel) *TypedModel[T] {
	m.idx = append(m.idx, ix...)
	return m
}

func (m *TypedModel[T]) Name() string                 { return m.name }
func (m *TypedModel[T]) Collection() store.Collection { return m.coll }

// Schema exposes the model's object schema.
func (m *TypedModel[T]) Schema() *ObjectSchema[T] { return m.schema }

// Registry returns the owning registry, nil before registration.
func (m *TypedModel[T]) Registry() *Registry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg
}

func (m *TypedModel[T]) bind(r *Registry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reg != nil {
		return configErrf("model %q is already registered", m.name)
	}
	m.reg = r
	return nil
}

func (m *TypedModel[T]) encodeDoc(ctx context.Context, inst any) (bson.D, error) {
	t, ok := inst.(*T)
	if !ok {
		return nil, &EncodeError{Reason: "instance does not belong to model " + m.name, Value: inst}
	}
	return m.schema.EncodeDoc(ctx, t)
}

func (m *TypedModel[T]) instanceOptions(inst any) []*OptionData {
	t, ok := inst.(*T)
	if !ok {
		return nil
	}
	return m.schema.ObtainOptions(m, t, t, "")
}

func (m *TypedModel[T]) staticOptions() []*OptionData {
	return m.schema.ObtainStaticOptions(m, "")
}

func (m *TypedModel[T]) indexModels() []mongo.IndexModel { return m.idx }

// Find runs a filtered find and decodes the results. Found instances are
// flagged isNew=false.
func (m *TypedModel[T]) Find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]*T, error) {
	r := m.Registry()
	if r == nil {
		return nil, configErrf("model %q is not registered", m.name)
	}
	docs, err := m.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return Decode(ctx, m, docs, DecodeOpt{MarkNew: false})
}

// FindByID fetches one instance by id, nil when absent.
func (m *TypedModel[T]) FindByID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	out, err := m.Find(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// Count passes through to the collection.
func (m *TypedModel[T]) Count(ctx context.Context, filter any, opts ...*options.CountOptions) (int64, error) {
	return m.coll.Count(ctx, filter, opts...)
}

// Aggregate passes the pipeline through to the collection.
func (m *TypedModel[T]) Aggregate(ctx context.Context, pipeline any, opts ...*options.AggregateOptions) ([]bson.D, error) {
	return m.coll.Aggregate(ctx, pipeline, opts...)
}

// Registry owns the model table, the metadata side table and the option
// handler dispatch. Every top-level operation allocates its own invocation
// state, so independent operations are safe from concurrent callers.
type Registry struct {
	mu       sync.RWMutex
	models   map[string]Model
	metaTab  map[any]*Meta
	handlers *Handlers
	log      zerolog.Logger
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*Registry)

// WithLogger installs the orchestration logger (default zerolog.Nop).
func WithLogger(l zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// WithHandlers installs a custom handler table.
func WithHandlers(h *Handlers) RegistryOption {
	return func(r *Registry) { r.handlers = h }
}

// NewRegistry builds an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		models:   map[string]Model{},
		metaTab:  map[any]*Meta{},
		handlers: NewHandlers(),
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handlers returns the registry's dispatch table.
func (r *Registry) Handlers() *Handlers { return r.handlers }

// Register binds the model to this registry (exactly once), runs its static
// initialization options and creates its declared indexes. A duplicate name
// or an already-bound model is a ConfigurationError.
func (r *Registry) Register(ctx context.Context, m Model) error {
	r.mu.Lock()
	if _, dup := r.models[m.Name()]; dup {
		r.mu.Unlock()
		return configErrf("model %q is already registered", m.Name())
	}
	r.models[m.Name()] = m
	r.mu.Unlock()

	if err := m.bind(r); err != nil {
		r.mu.Lock()
		delete(r.models, m.Name())
		r.mu.Unlock()
		return err
	}

	var static []*OptionData
	for _, od := range m.staticOptions() {
		if od.Config.Kind == OptionInitialization {
			static = append(static, od)
		}
	}
	if len(static) > 0 {
		if _, err := Perform(ctx, r.handlers, static); err != nil {
			return err
		}
	}

	if ix := m.indexModels(); len(ix) > 0 {
		names, err := m.Collection().CreateIndexes(ctx, ix)
		if err != nil {
			return err
		}
		r.log.Debug().Str("model", m.Name()).Strs("indexes", names).Msg("created indexes")
	}
	r.log.Debug().Str("model", m.Name()).Msg("registered model")
	return nil
}

// ModelByName looks a model up.
func (r *Registry) ModelByName(name string) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// MetaOf returns a copy of the instance's metadata.
func (r *Registry) MetaOf(inst any) (Meta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mt, ok := r.metaTab[inst]
	if !ok {
		return Meta{}, false
	}
	return *mt, true
}

// IDOf returns the instance's id.
func (r *Registry) IDOf(inst any) (primitive.ObjectID, bool) {
	mt, ok := r.MetaOf(inst)
	if !ok {
		return primitive.NilObjectID, false
	}
	return mt.ID, true
}

// ModelOf returns the instance's owning model.
func (r *Registry) ModelOf(inst any) (Model, bool) {
	mt, ok := r.MetaOf(inst)
	if !ok {
		return nil, false
	}
	return mt.Model, true
}

// Forget drops the instance's metadata, e.g. when discarding instances early.
func (r *Registry) Forget(inst any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.metaTab, inst)
}

func (r *Registry) setMeta(inst any, mt *Meta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metaTab[inst] = mt
}

func (r *Registry) metaRef(inst any) *Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metaTab[inst]
}
