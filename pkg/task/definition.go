package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jkilzi/futask/internal/models"
	fterrors "github.com/jkilzi/futask/pkg/errors"
	"github.com/jkilzi/futask/pkg/future"
	"github.com/jkilzi/futask/pkg/reschedule"
)

// DefinitionListener observes a TaskDefinition's completed instances, one
// call per instance, in completion order.
type DefinitionListener[V any] interface {
	OnInstanceComplete(inst *Instance[V])
}

// DefinitionListenerFunc adapts a plain function to DefinitionListener.
type DefinitionListenerFunc[V any] func(inst *Instance[V])

func (f DefinitionListenerFunc[V]) OnInstanceComplete(inst *Instance[V]) { f(inst) }

// ExceptionPolicy selects how a Definition reacts to a failed instance.
// The zero value is PolicyAbort.
type ExceptionPolicy[V any] struct {
	kind    models.ExceptionPolicyKind
	handler func(inst *Instance[V]) models.ExceptionDecision
}

// AbortOnException finishes the definition on the first failed instance.
func AbortOnException[V any]() ExceptionPolicy[V] {
	return ExceptionPolicy[V]{kind: models.PolicyAbort}
}

// ContinueOnException schedules the next instance regardless of failure.
func ContinueOnException[V any]() ExceptionPolicy[V] {
	return ExceptionPolicy[V]{kind: models.PolicyContinue}
}

// CustomExceptionPolicy consults handler after every failed instance.
func CustomExceptionPolicy[V any](handler func(inst *Instance[V]) models.ExceptionDecision) ExceptionPolicy[V] {
	return ExceptionPolicy[V]{kind: models.PolicyCustom, handler: handler}
}

const defaultHistorySize = 16

// Definition is a scheduled unit of recurring (or one-shot) work: a
// Producer plus the policy knobs that decide, after each instance
// completes, whether and when a successor runs. Definition owns its own
// mutex, independent of the Engine's dispatch lock, so lifecycle calls
// (Cancel/Pause/Resume) never block on work the engine is dispatching for
// other definitions.
type Definition[V any] struct {
	id                 uuid.UUID
	ordinal            int64
	producer           future.Producer[V]
	initialDelay       time.Duration
	policy             reschedule.Policy // nil: one-shot, no successor is ever scheduled.
	shouldScheduleNext func(inst *Instance[V]) bool
	exceptionPolicy    ExceptionPolicy[V]
	historyCap         int
	submitTime         time.Time
	engine             *Engine
	log                *zap.SugaredLogger

	mu             sync.Mutex
	status         models.Status
	execCount      int64
	successCount   int64
	failureCount   int64
	cancelledCount int64
	hist           *history[V]
	current        *Instance[V]
	lastCompleted  *Instance[V]
	listeners      []DefinitionListener[V]
}

// Option configures a Definition at construction time.
type Option[V any] func(*Definition[V])

// WithInitialDelay delays the first instance by d relative to Submit.
func WithInitialDelay[V any](d time.Duration) Option[V] {
	return func(def *Definition[V]) { def.initialDelay = d }
}

// WithRescheduler installs the policy used to compute every successor's
// start. Omitting it makes the definition one-shot: it finishes after its
// first instance completes.
func WithRescheduler[V any](p reschedule.Policy) Option[V] {
	return func(def *Definition[V]) { def.policy = p }
}

// WithShouldScheduleNext installs a predicate consulted after every
// successful instance, and after a failed instance the exception policy
// lets continue; returning false finishes the definition instead of
// scheduling a successor. A cancelled instance finishes the definition
// without consulting it.
func WithShouldScheduleNext[V any](pred func(inst *Instance[V]) bool) Option[V] {
	return func(def *Definition[V]) { def.shouldScheduleNext = pred }
}

// WithExceptionPolicy installs the policy consulted after a failed
// instance. Omitting it defaults to AbortOnException.
func WithExceptionPolicy[V any](p ExceptionPolicy[V]) Option[V] {
	return func(def *Definition[V]) { def.exceptionPolicy = p }
}

// WithHistorySize bounds the number of retained completed instances.
func WithHistorySize[V any](n int) Option[V] {
	return func(def *Definition[V]) { def.historyCap = n }
}

// WithListeners registers listeners at construction time.
func WithListeners[V any](ls ...DefinitionListener[V]) Option[V] {
	return func(def *Definition[V]) { def.listeners = append(def.listeners, ls...) }
}

// NewDefinition builds a Definition around producer. It is not scheduled
// until passed to Engine.Submit.
func NewDefinition[V any](producer future.Producer[V], opts ...Option[V]) (*Definition[V], error) {
	if producer == nil {
		return nil, &fterrors.IllegalArgumentError{Msg: "producer must not be nil"}
	}
	def := &Definition[V]{
		id:         uuid.New(),
		producer:   producer,
		historyCap: defaultHistorySize,
		status:     models.Active,
		submitTime: time.Now(),
		log:        zap.S().Named("task"),
	}
	for _, opt := range opts {
		opt(def)
	}
	if def.historyCap < 1 {
		return nil, &fterrors.IllegalArgumentError{Msg: "historySize must be >= 1"}
	}
	def.hist = newHistory[V](def.historyCap)
	return def, nil
}

// ID is this definition's identity, stable across its whole lifetime.
func (d *Definition[V]) ID() uuid.UUID { return d.id }

// Status is this definition's current lifecycle state.
func (d *Definition[V]) Status() models.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Current is the instance currently pending or running, or nil.
func (d *Definition[V]) Current() *Instance[V] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// History returns completed instances, newest first, bounded by the
// configured history size.
func (d *Definition[V]) History() []*Instance[V] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hist.snapshot()
}

// ExecutionCount, SuccessCount, FailureCount, CancelledCount are the
// running totals of completed instances by disposition.
func (d *Definition[V]) ExecutionCount() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.execCount
}

func (d *Definition[V]) SuccessCount() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.successCount
}

func (d *Definition[V]) FailureCount() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failureCount
}

func (d *Definition[V]) CancelledCount() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelledCount
}

// AddListener registers l to observe every future instance completion.
func (d *Definition[V]) AddListener(l DefinitionListener[V]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Cancel marks the definition CANCELLED, removes its pending instance
// from the engine's queue if it hasn't started yet, and advisory-cancels
// whatever instance is current (pending or running). Returns false if the
// definition was already CANCELLED or FINISHED.
func (d *Definition[V]) Cancel(mayInterrupt bool) bool {
	d.mu.Lock()
	if d.status == models.DefinitionCancelled || d.status == models.Finished {
		d.mu.Unlock()
		return false
	}
	d.status = models.DefinitionCancelled
	cur := d.current
	d.mu.Unlock()

	if cur != nil {
		if d.engine.removeFromQueue(cur) {
			cur.cancelPending(d.engine.clk)
		} else {
			cur.RunnableFuture.Cancel(mayInterrupt)
		}
	}
	return true
}

// Pause marks the definition PAUSED if ACTIVE and best-effort removes its
// pending (not yet started) instance from the engine's queue, clearing
// Current() once the removal succeeds. An instance already running is left
// to finish; the post-completion decision sees PAUSED and parks instead of
// scheduling a successor, clearing Current() itself once that happens.
// Returns false if the definition was not ACTIVE.
func (d *Definition[V]) Pause() bool {
	d.mu.Lock()
	if d.status != models.Active {
		d.mu.Unlock()
		return false
	}
	d.status = models.Paused
	cur := d.current
	d.mu.Unlock()

	if cur != nil && d.engine.removeFromQueue(cur) {
		d.mu.Lock()
		if d.current == cur {
			d.current = nil
		}
		d.mu.Unlock()
	}
	return true
}

// Resume marks the definition ACTIVE again and, if it has at least one
// completed instance and a rescheduler policy, computes and enqueues a
// successor from that last completion's timing — the same NextStart call
// the normal post-completion path makes, so a resume after a long pause
// goes through the same fixed-rate/skip/backoff behavior a live
// definition would have. Returns false if the definition was not PAUSED.
func (d *Definition[V]) Resume() bool {
	d.mu.Lock()
	if d.status != models.Paused {
		d.mu.Unlock()
		return false
	}
	d.status = models.Active
	last := d.lastCompleted
	d.mu.Unlock()

	if last == nil || d.policy == nil {
		return true
	}

	now := d.engine.clk.Now()
	next := d.policy.NextStart(last.ScheduledAt(), now, last.outcome())
	inst := newInstance[V](context.Background(), d, next, last.idx+1)

	d.mu.Lock()
	d.current = inst
	d.mu.Unlock()

	if err := d.engine.enqueue(inst); err != nil {
		d.mu.Lock()
		d.status = models.Finished
		d.current = nil
		d.mu.Unlock()
		d.log.Errorw("resume: failed to enqueue successor, finishing definition", "error", err)
	}
	return true
}

// tryStartCurrent is the engine worker's pre-run gate for inst, called
// after it has been popped from the queue but before the producer runs.
// A CANCELLED or PAUSED definition discards inst instead of running it.
func (d *Definition[V]) tryStartCurrent(inst *Instance[V]) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status == models.DefinitionCancelled || d.status == models.Paused {
		if d.current == inst {
			d.current = nil
		}
		return false
	}
	return true
}

type completionAction int

const (
	actionContinue completionAction = iota
	actionFinish
)

func (d *Definition[V]) decideOnFailure(inst *Instance[V]) completionAction {
	switch d.exceptionPolicy.kind {
	case models.PolicyContinue:
		return actionContinue
	case models.PolicyCustom:
		if d.exceptionPolicy.handler != nil && d.exceptionPolicy.handler(inst) == models.DecisionContinue {
			return actionContinue
		}
		return actionFinish
	default: // PolicyAbort
		return actionFinish
	}
}

// onInstanceComplete is §4.7 step 5: bookkeeping, then the decision of
// whether and when a successor is scheduled. It is called at most once
// per instance, by whichever of {the engine worker after running inst,
// Definition.Cancel removing inst from the queue, Engine.Shutdown's
// drain} takes inst. An instance discarded by tryStartCurrent is not
// reported here.
func (d *Definition[V]) onInstanceComplete(inst *Instance[V]) {
	d.mu.Lock()

	d.execCount++
	switch inst.disposition() {
	case models.Success:
		d.successCount++
	case models.Failure:
		d.failureCount++
	case models.Cancelled:
		d.cancelledCount++
	}
	d.hist.push(inst)
	d.lastCompleted = inst
	if d.current == inst {
		d.current = nil
	}

	var decision completionAction
	switch {
	case d.status == models.DefinitionCancelled:
		decision = actionFinish
	case inst.IsCancelled():
		decision = actionFinish
	case inst.IsFailed():
		decision = d.decideOnFailure(inst)
	default:
		decision = actionContinue
	}

	if decision == actionContinue && d.shouldScheduleNext != nil && !d.shouldScheduleNext(inst) {
		decision = actionFinish
	}
	if decision == actionContinue && d.policy == nil {
		decision = actionFinish
	}

	var next *Instance[V]
	switch {
	case decision == actionFinish:
		d.status = models.Finished
	case d.status == models.Paused:
		// Parked: Resume() will compute the successor's start later.
	default:
		nextStart := d.policy.NextStart(inst.ScheduledAt(), inst.EndTime(), inst.outcome())
		next = newInstance[V](context.Background(), d, nextStart, inst.idx+1)
		d.current = next
	}

	listeners := append([]DefinitionListener[V](nil), d.listeners...)
	d.mu.Unlock()

	if next != nil {
		if err := d.engine.enqueue(next); err != nil {
			d.mu.Lock()
			d.status = models.Finished
			d.current = nil
			d.mu.Unlock()
			d.log.Errorw("failed to enqueue successor, finishing definition", "error", err)
		}
	}

	for _, l := range listeners {
		l.OnInstanceComplete(inst)
	}
}
