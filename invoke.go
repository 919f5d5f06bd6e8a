package docmap

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// HandlerFunc processes one dispatched option.
type HandlerFunc func(ctx context.Context, sc *Scope) error

type handlerEntry struct {
	match func(Configuration) bool
	run   HandlerFunc
}

// Handlers is the dispatch table for option configurations. Custom handlers
// are consulted in registration order; the first whose match accepts the
// configuration wins. When none matches, the per-kind builtin runs the
// option's behavior block; configurations of unknown kinds are silently
// dropped (their future never resolves) while the drop counter and hook fire.
type Handlers struct {
	mu       sync.RWMutex
	custom   []handlerEntry
	dropHook func(Configuration)
}

// NewHandlers returns a dispatch table with only the builtins.
func NewHandlers() *Handlers { return &Handlers{} }

// Register appends a custom handler. Registration order is dispatch order.
func (h *Handlers) Register(match func(Configuration) bool, run HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.custom = append(h.custom, handlerEntry{match: match, run: run})
}

// RegisterKind registers a handler for every configuration of one kind.
func (h *Handlers) RegisterKind(kind OptionKind, run HandlerFunc) {
	h.Register(func(c Configuration) bool { return c.Kind == kind }, run)
}

// OnDrop installs the diagnostic hook invoked for each dropped option.
func (h *Handlers) OnDrop(fn func(Configuration)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropHook = fn
}

func runBlock(ctx context.Context, sc *Scope) error {
	if sc.item.block == nil {
		return nil
	}
	return sc.item.block(ctx, sc)
}

// lookup returns the handler for cfg, or nil when the item must be dropped.
func (h *Handlers) lookup(cfg Configuration) HandlerFunc {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.custom {
		if e.match(cfg) {
			return e.run
		}
	}
	switch cfg.Kind {
	case OptionInitialization, OptionNormalization, OptionValidation,
		OptionMigration, OptionDeletion, OptionWrites, OptionAggregateSignal:
		return runBlock
	}
	return nil
}

func (h *Handlers) notifyDrop(cfg Configuration) {
	h.mu.RLock()
	fn := h.dropHook
	h.mu.RUnlock()
	if fn != nil {
		fn(cfg)
	}
}

type sigKind uint8

const (
	sigFinished sigKind = iota
	sigParked
)

type invEvent struct {
	rb     *runningBlock
	kind   sigKind
	target *OptionData
	err    error
}

type runningBlock struct {
	item     *OptionData
	resume   chan struct{}
	parkedOn *OptionData
}

// Invocation is one saturating run over a worklist of options. Behavior
// blocks execute one at a time; a block that parks in Wait yields control
// back to the loop, which keeps draining the queue and hands control back
// once the awaited item has been processed. All collectors are per-invocation
// so independent top-level operations never share state.
type Invocation struct {
	handlers *Handlers

	mu     sync.Mutex
	queue  []*OptionData
	parked []*runningBlock

	events chan invEvent
	closed chan struct{}

	firstErr error
	dropped  int

	violations []error
	writes     []mongo.WriteModel
	vetoes     map[any]struct{}
	stages     []bson.D
}

// NewInvocation prepares a fresh invocation over the given worklist.
func NewInvocation(h *Handlers, items []*OptionData) *Invocation {
	inv := &Invocation{
		handlers: h,
		queue:    append([]*OptionData(nil), items...),
		events:   make(chan invEvent),
		closed:   make(chan struct{}),
		vetoes:   map[any]struct{}{},
	}
	return inv
}

// Perform executes the worklist to saturation: every item, including those
// enqueued by running blocks, is processed FIFO until the queue is empty and
// no block remains in flight. The first block error aborts further dispatch
// and is returned; the futures of still-queued items resolve with
// ErrInvocationAborted.
//
// Termination is the caller's contract: a block that unconditionally
// re-enqueues itself loops forever.
func Perform(ctx context.Context, h *Handlers, items []*OptionData) (*Invocation, error) {
	inv := NewInvocation(h, items)
	return inv, inv.Run(ctx)
}

// Dropped returns how many items found no handler and were silently dropped.
func (inv *Invocation) Dropped() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.dropped
}

// Violations returns the collected validation errors in execution order.
func (inv *Invocation) Violations() []error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]error(nil), inv.violations...)
}

// Writes returns the extra write models emitted via Scope.EmitWrite.
func (inv *Invocation) Writes() []mongo.WriteModel {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]mongo.WriteModel(nil), inv.writes...)
}

// Vetoed reports whether a deletion option vetoed the given root instance.
func (inv *Invocation) Vetoed(root any) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	_, ok := inv.vetoes[root]
	return ok
}

// Stages returns the aggregation stages emitted via Scope.EmitStage.
func (inv *Invocation) Stages() []bson.D {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]bson.D(nil), inv.stages...)
}

func (inv *Invocation) addViolation(err error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.violations = append(inv.violations, err)
}

func (inv *Invocation) addWrite(wm mongo.WriteModel) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.writes = append(inv.writes, wm)
}

func (inv *Invocation) addVeto(root any) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.vetoes[root] = struct{}{}
}

func (inv *Invocation) addStage(stage bson.D) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.stages = append(inv.stages, stage)
}

func (inv *Invocation) push(od *OptionData) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.queue = append(inv.queue, od)
}

func (inv *Invocation) pop() *OptionData {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if len(inv.queue) == 0 {
		return nil
	}
	od := inv.queue[0]
	inv.queue = inv.queue[1:]
	return od
}

// takeReadyParked removes and returns the first parked block whose awaited
// item has been processed.
func (inv *Invocation) takeReadyParked() *runningBlock {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for i, rb := range inv.parked {
		select {
		case <-rb.parkedOn.done:
			inv.parked = append(inv.parked[:i], inv.parked[i+1:]...)
			return rb
		default:
		}
	}
	return nil
}

func (inv *Invocation) parkedCount() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return len(inv.parked)
}

// Run drives the loop. See Perform.
func (inv *Invocation) Run(ctx context.Context) error {
	defer close(inv.closed)
	for {
		// hand control back to a block whose awaited item resolved
		if rb := inv.takeReadyParked(); rb != nil {
			rb.resume <- struct{}{}
			if err := inv.awaitActive(ctx); err != nil {
				return inv.abort(err)
			}
			continue
		}
		item := inv.pop()
		if item == nil {
			if inv.parkedCount() == 0 {
				return inv.firstErr
			}
			// Queue drained but blocks still wait on items that can no
			// longer run. Per contract this hangs until the caller's
			// context gives up.
			<-ctx.Done()
			return inv.abort(ctx.Err())
		}
		run := inv.handlers.lookup(item.Config)
		if run == nil {
			inv.mu.Lock()
			inv.dropped++
			inv.mu.Unlock()
			inv.handlers.notifyDrop(item.Config)
			continue
		}
		rb := &runningBlock{item: item, resume: make(chan struct{}, 1)}
		sc := &Scope{inv: inv, item: item, rb: rb}
		go func() {
			err := run(ctx, sc)
			item.resolve(err)
			inv.emit(invEvent{rb: rb, kind: sigFinished, err: err})
		}()
		if err := inv.awaitActive(ctx); err != nil {
			return inv.abort(err)
		}
	}
}

// awaitActive blocks until the single active block finishes or parks.
func (inv *Invocation) awaitActive(ctx context.Context) error {
	ev := <-inv.events
	switch ev.kind {
	case sigParked:
		ev.rb.parkedOn = ev.target
		inv.mu.Lock()
		inv.parked = append(inv.parked, ev.rb)
		inv.mu.Unlock()
		return nil
	default: // sigFinished
		if ev.err != nil {
			if inv.firstErr == nil {
				inv.firstErr = ev.err
			}
			return ev.err
		}
		return nil
	}
}

// abort stops dispatch, resolves still-queued futures with
// ErrInvocationAborted, and releases parked blocks. Blocks parked on items
// that can never resolve stay parked; that goroutine leak is the documented
// cost of waiting on a dropped item.
func (inv *Invocation) abort(cause error) error {
	inv.mu.Lock()
	pending := inv.queue
	inv.queue = nil
	parked := append([]*runningBlock(nil), inv.parked...)
	inv.parked = nil
	inv.mu.Unlock()
	for _, it := range pending {
		it.resolve(ErrInvocationAborted)
	}
	for _, rb := range parked {
		rb.resume <- struct{}{} // buffered; never blocks
	}
	if inv.firstErr == nil {
		inv.firstErr = cause
	}
	return cause
}

// emit delivers an event unless the invocation already closed.
func (inv *Invocation) emit(ev invEvent) bool {
	select {
	case inv.events <- ev:
		return true
	case <-inv.closed:
		return false
	}
}

// wait implements Scope.Wait.
func (inv *Invocation) wait(ctx context.Context, rb *runningBlock, target *OptionData) error {
	if !inv.emit(invEvent{rb: rb, kind: sigParked, target: target}) {
		return ErrInvocationAborted
	}
	select {
	case <-target.done:
	case <-ctx.Done():
	case <-inv.closed:
	}
	select {
	case <-rb.resume:
	case <-inv.closed:
	}
	select {
	case <-target.done:
		return target.err
	default:
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrInvocationAborted
	}
}
