package docmap

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// The builtin extension kinds are thin policy wrappers around the invocation
// engine: each differs only in when its options are collected and what side
// effect its blocks are expected to produce. The constructors below build the
// declared Option values attached to fields and object schemas.

// Initialization runs at model registration (static declarations) and after
// decode (instance declarations); blocks typically populate defaults or
// derived fields.
func Initialization(name string, block Behavior) Option {
	return Option{Config: Configuration{Kind: OptionInitialization, Name: name}, Block: block}
}

// Normalization runs before encode and mutates the instance into canonical
// form, ahead of validation.
func Normalization(name string, block Behavior) Option {
	return Option{Config: Configuration{Kind: OptionNormalization, Name: name}, Block: block}
}

// Validation runs before encode, after normalization. Blocks report
// violations via Scope.Reject and must not mutate the instance.
func Validation(name string, block Behavior) Option {
	return Option{Config: Configuration{Kind: OptionValidation, Name: name}, Block: block}
}

// Migration runs after decode, after initialization; blocks upgrade instances
// decoded from older document shapes.
func Migration(name string, block Behavior) Option {
	return Option{Config: Configuration{Kind: OptionMigration, Name: name}, Block: block}
}

// Deletion runs before delete; a block may Scope.Veto to keep its instance
// out of the delete set.
func Deletion(name string, block Behavior) Option {
	return Option{Config: Configuration{Kind: OptionDeletion, Name: name}, Block: block}
}

// Writes runs before save, after normalize and validate; blocks emit extra
// write models via Scope.EmitWrite beyond the default full-document upsert.
func Writes(name string, block Behavior) Option {
	return Option{Config: Configuration{Kind: OptionWrites, Name: name}, Block: block}
}

// AggregateSignal options contribute pipeline stages via Scope.EmitStage. A
// builtin handler accepts them even when no custom handler is registered;
// with a nil block that is a documented no-op.
func AggregateSignal(name string, block Behavior) Option {
	return Option{Config: Configuration{Kind: OptionAggregateSignal, Name: name}, Block: block}
}

// collectKind materializes the instances' options of one kind, in instance
// order then declaration order, applying the tweak filter.
func (r *Registry) collectKind(kind OptionKind, tweak Tweak, instances []any) ([]*OptionData, error) {
	var out []*OptionData
	for _, inst := range instances {
		mt := r.metaRef(inst)
		if mt == nil {
			return nil, configErrf("instance %T is not tracked by this registry", inst)
		}
		for _, od := range mt.Model.instanceOptions(inst) {
			if od.Config.Kind == kind && tweak.keeps(od) {
				out = append(out, od)
			}
		}
	}
	return out, nil
}

// runKind performs one extension kind over the instances and returns the
// invocation for its collectors.
func (r *Registry) runKind(ctx context.Context, kind OptionKind, tweak Tweak, instances ...any) (*Invocation, error) {
	items, err := r.collectKind(kind, tweak, instances)
	if err != nil {
		return nil, err
	}
	inv, err := Perform(ctx, r.handlers, items)
	if inv != nil && inv.Dropped() > 0 {
		r.log.Debug().Int("dropped", inv.Dropped()).Str("kind", kind.String()).Msg("options dropped without a handler")
	}
	return inv, err
}

// Initialize runs the instances' initialization options.
func (r *Registry) Initialize(ctx context.Context, tweak Tweak, instances ...any) error {
	_, err := r.runKind(ctx, OptionInitialization, tweak, instances...)
	return err
}

// Normalize runs the instances' normalization options.
func (r *Registry) Normalize(ctx context.Context, tweak Tweak, instances ...any) error {
	_, err := r.runKind(ctx, OptionNormalization, tweak, instances...)
	return err
}

// Migrate runs the instances' migration options.
func (r *Registry) Migrate(ctx context.Context, tweak Tweak, instances ...any) error {
	_, err := r.runKind(ctx, OptionMigration, tweak, instances...)
	return err
}

// ValidateSafe runs every validation option to completion and returns all
// collected violations in declaration order; it never raises on a violation.
func (r *Registry) ValidateSafe(ctx context.Context, tweak Tweak, instances ...any) ([]error, error) {
	inv, err := r.runKind(ctx, OptionValidation, tweak, instances...)
	if err != nil {
		return nil, err
	}
	return inv.Violations(), nil
}

// Validate is the strict variant: the first violation becomes the primary
// error and the rest ride along as secondary causes.
func (r *Registry) Validate(ctx context.Context, tweak Tweak, instances ...any) error {
	vs, err := r.ValidateSafe(ctx, tweak, instances...)
	if err != nil {
		return err
	}
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Primary: vs[0], Secondary: vs[1:]}
}

// AggregateSignals runs the model's static aggregate-signal options and
// returns the collected pipeline stages.
func (r *Registry) AggregateSignals(ctx context.Context, m Model) ([]bson.D, error) {
	var items []*OptionData
	for _, od := range m.staticOptions() {
		if od.Config.Kind == OptionAggregateSignal {
			items = append(items, od)
		}
	}
	inv, err := Perform(ctx, r.handlers, items)
	if err != nil {
		return nil, err
	}
	return inv.Stages(), nil
}
