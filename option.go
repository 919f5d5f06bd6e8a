package docmap

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// OptionKind discriminates configuration kinds. The set is closed for the
// builtin extension kinds; values above OptionAggregateSignal are free for
// external extensions (which must register their own handler or accept the
// silent drop).
type OptionKind uint8

const (
	OptionInitialization OptionKind = iota + 1
	OptionNormalization
	OptionValidation
	OptionMigration
	OptionDeletion
	OptionWrites
	OptionAggregateSignal
)

var optionKindNames = map[OptionKind]string{
	OptionInitialization:  "initialization",
	OptionNormalization:   "normalization",
	OptionValidation:      "validation",
	OptionMigration:       "migration",
	OptionDeletion:        "deletion",
	OptionWrites:          "writes",
	OptionAggregateSignal: "aggregate-signal",
}

func (k OptionKind) String() string {
	if s, ok := optionKindNames[k]; ok {
		return s
	}
	return "extension"
}

// Configuration tags an option with its kind plus free-form metadata. Kind
// equality replaces open subtype checks; handlers dispatch on it.
type Configuration struct {
	Kind   OptionKind
	Name   string // diagnostic label: validation rule, migration tag, ...
	Params map[string]any
}

// Behavior is the block executed when an option is dispatched.
type Behavior func(ctx context.Context, sc *Scope) error

// Option is a (configuration, behavior) pair declared on a field or object
// schema. It is inert until materialized into OptionData against a concrete
// instance.
type Option struct {
	Config Configuration
	Block  Behavior
}

// OptionData is an option bound to a concrete context: the declaring path,
// the root instance, the current value at that path, and the owning model.
// Instances are created fresh on each traversal, consumed exactly once per
// invocation sweep unless re-enqueued, and never persisted.
type OptionData struct {
	Config      Configuration
	Declaration string // name of the declaring field, or the object schema
	Model       Model
	Root        any
	Value       any
	Path        string // dot path from the root, e.g. "a.b.c"

	block Behavior

	// future: resolved when the item finishes processing; never resolved
	// for items dropped without a handler.
	done chan struct{}
	err  error
}

// NewOptionData materializes a declared option against an explicit context.
// Traversal does this for schema-declared options; extensions and tests use
// it to feed hand-built items into Perform.
func NewOptionData(o Option, m Model, root, value any, path string) *OptionData {
	return newOptionData(o, "", m, root, value, path)
}

func newOptionData(o Option, declaration string, m Model, root, value any, path string) *OptionData {
	return &OptionData{
		Config:      o.Config,
		Declaration: declaration,
		Model:       m,
		Root:        root,
		Value:       value,
		Path:        path,
		block:       o.Block,
		done:        make(chan struct{}),
	}
}

// Done exposes the item's future. It is closed when the item has been
// processed; for dropped items it never closes.
func (od *OptionData) Done() <-chan struct{} { return od.done }

// Err returns the behavior block's error after Done is closed.
func (od *OptionData) Err() error { return od.err }

func (od *OptionData) resolve(err error) {
	od.err = err
	close(od.done)
}

// Rebind materializes a fresh copy of the same declared option against a new
// value/path. Used by handlers that enqueue follow-up work.
func (od *OptionData) Rebind(cfg Configuration, value any, path string, block Behavior) *OptionData {
	return &OptionData{
		Config:      cfg,
		Declaration: od.Declaration,
		Model:       od.Model,
		Root:        od.Root,
		Value:       value,
		Path:        path,
		block:       block,
		done:        make(chan struct{}),
	}
}

// Scope is what a behavior block sees while it runs. It exposes the bound
// context plus the invocation-level effects: enqueueing follow-up options,
// waiting on an enqueued sibling, and the per-kind collectors.
type Scope struct {
	inv  *Invocation
	item *OptionData
	rb   *runningBlock
}

// Item returns the option data being processed.
func (sc *Scope) Item() *OptionData { return sc.item }

// Model returns the owning model.
func (sc *Scope) Model() Model { return sc.item.Model }

// Root returns the root instance of the traversal.
func (sc *Scope) Root() any { return sc.item.Root }

// Value returns the value at the declaring path.
func (sc *Scope) Value() any { return sc.item.Value }

// Path returns the dot path from the root instance.
func (sc *Scope) Path() string { return sc.item.Path }

// Config returns the option's configuration.
func (sc *Scope) Config() Configuration { return sc.item.Config }

// Enqueue appends od to the running invocation's worklist. The item is
// processed within the same invocation, after everything already queued.
func (sc *Scope) Enqueue(od *OptionData) *OptionData {
	sc.inv.push(od)
	return od
}

// Wait parks the current block until target has been processed and returns
// the target's error. Waiting on an item that will never run — dropped for
// lack of a handler, or never enqueued — blocks until ctx is canceled; that
// is the caller's hazard, not defended here.
func (sc *Scope) Wait(ctx context.Context, target *OptionData) error {
	return sc.inv.wait(ctx, sc.rb, target)
}

// Reject records a validation violation. Violations are collected, never
// raised from inside the invocation.
func (sc *Scope) Reject(err error) {
	sc.inv.addViolation(err)
}

// EmitWrite adds an extra write model to be issued alongside the default
// upsert of the instance being saved.
func (sc *Scope) EmitWrite(wm mongo.WriteModel) {
	sc.inv.addWrite(wm)
}

// Veto excludes the root instance from the pending delete set.
func (sc *Scope) Veto() {
	sc.inv.addVeto(sc.item.Root)
}

// EmitStage appends an aggregation pipeline stage.
func (sc *Scope) EmitStage(stage bson.D) {
	sc.inv.addStage(stage)
}
