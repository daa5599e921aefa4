// Package evaluator implements C5: the core rule-based mapping of
// (speaker, condition, action) to {active, inactive, broken}, loop bound
// enforcement, and expression supersession (spec.md §4.5).
package evaluator

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/user/humanlogica/internal/ledger"
	"github.com/user/humanlogica/internal/speaker"
)

// Version is the one-way lifecycle of an expression: current can become
// superseded or expired, never the reverse.
type Version string

const (
	VersionCurrent    Version = "current"
	VersionSuperseded Version = "superseded"
	VersionExpired    Version = "expired"
)

// Expression is an evaluated computational commitment (spec.md §3).
// Condition and Action are first-class callables bound to whatever
// environment produced them (in this build, internal/runtime passes closures
// over values it has already computed) so the evaluator itself stays
// agnostic to how they were constructed.
type Expression struct {
	ID             string
	SpeakerID      int64
	ConditionLabel string
	HasCondition   bool
	Condition      func() bool
	ActionLabel    string
	HasAction      bool
	Action         func() bool
	CreatedAt      int64
	Version        Version
	FinalStatus    ledger.Status
	ScopeUntil     int64
	HasScopeUntil  bool
	IsRefusal      bool
	LoopPredicate  func() bool
	HasLoop        bool
	LoopBound      int
}

// Clock abstracts time for deterministic tests and for comparing against
// ScopeUntil.
type Clock func() int64

// Store holds every expression submitted through this evaluator, indexed
// for supersession lookups by (speaker, condition_label, action_label).
type Store struct {
	mu          sync.Mutex
	byID        map[string]*Expression
	currentIdx  map[string]string // "speakerID|cond|action" -> expression id
}

func NewStore() *Store {
	return &Store{
		byID:       make(map[string]*Expression),
		currentIdx: make(map[string]string),
	}
}

// WHY: identity for supersession is (speaker, condition_label, action_label),
// not the expression's id or its condition/action bodies — resubmitting the
// same label pair always supersedes the previous submission under that pair,
// even if the underlying condition or action changed.
func supersedeKey(speakerID int64, cond, action string) string {
	return fmt.Sprintf("%d|%s|%s", speakerID, cond, action)
}

// Evaluator drives expression evaluation against a speaker registry and logs
// every decision to the ledger.
type Evaluator struct {
	registry *speaker.Registry
	ledger   *ledger.Ledger
	store    *Store
	clock    Clock

	defaultLoopBound int
}

// New builds an Evaluator. defaultLoopBound is the bound used by
// EvaluateLoop when an expression carries no explicit LoopBound (spec.md
// §4.5: "default n=10000 if omitted at the kernel boundary").
func New(registry *speaker.Registry, l *ledger.Ledger, store *Store, clock Clock, defaultLoopBound int) *Evaluator {
	if defaultLoopBound <= 0 {
		defaultLoopBound = 10000
	}
	return &Evaluator{registry: registry, ledger: l, store: store, clock: clock, defaultLoopBound: defaultLoopBound}
}

// Submit inserts a new expression, superseding any prior current expression
// from the same speaker with the same (condition_label, action_label).
func (ev *Evaluator) Submit(e *Expression) *Expression {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Version == "" {
		e.Version = VersionCurrent
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = ev.clock()
	}

	ev.store.mu.Lock()
	key := supersedeKey(e.SpeakerID, e.ConditionLabel, e.ActionLabel)
	if priorID, exists := ev.store.currentIdx[key]; exists {
		if prior, ok := ev.store.byID[priorID]; ok && prior.Version == VersionCurrent {
			prior.Version = VersionSuperseded
			ev.ledger.Append(e.SpeakerID, ledger.OpSupersede,
				fmt.Sprintf("supersede:%s->%s", prior.ID, e.ID))
		}
	}
	ev.store.currentIdx[key] = e.ID
	ev.store.byID[e.ID] = e
	ev.store.mu.Unlock()

	return e
}

// Get looks up a submitted expression by id.
func (ev *Evaluator) Get(id string) (*Expression, bool) {
	ev.store.mu.Lock()
	defer ev.store.mu.Unlock()
	e, ok := ev.store.byID[id]
	return e, ok
}

// Evaluate runs the three-valued semantics of spec.md §4.5 against a single
// expression and logs the outcome.
func (ev *Evaluator) Evaluate(e *Expression) ledger.Status {
	if !ev.registry.Authenticate(e.SpeakerID) {
		ev.ledger.Append(e.SpeakerID, ledger.OpEvaluate, "evaluate:speaker_not_found_or_suspended",
			ledger.WithBreakReason("speaker_not_found_or_suspended"))
		return ledger.StatusBroken
	}

	if e.Version != VersionCurrent {
		return ledger.StatusInactive
	}

	if e.HasScopeUntil && ev.clock() > e.ScopeUntil {
		e.Version = VersionExpired
		ev.ledger.Append(e.SpeakerID, ledger.OpEvaluate, fmt.Sprintf("expire:%s", e.ID), ledger.WithStatus(ledger.StatusInactive))
		return ledger.StatusInactive
	}

	condMet := true
	if e.HasCondition && e.Condition != nil {
		condMet = e.Condition()
	}
	if !condMet {
		opts := []ledger.Option{ledger.WithStatus(ledger.StatusInactive)}
		if e.ConditionLabel != "" {
			opts = append(opts, ledger.WithCondition(e.ConditionLabel, false))
		}
		ev.ledger.Append(e.SpeakerID, ledger.OpEvaluate, fmt.Sprintf("inactive:%s", e.ActionLabel), opts...)
		return ledger.StatusInactive
	}

	fulfilled := true
	if e.HasAction && e.Action != nil {
		fulfilled = e.Action()
	}
	if e.IsRefusal {
		fulfilled = !fulfilled
	}

	status := ledger.StatusActive
	opts := []ledger.Option{}
	if e.ConditionLabel != "" {
		opts = append(opts, ledger.WithCondition(e.ConditionLabel, true))
	}
	if !fulfilled {
		status = ledger.StatusBroken
		opts = append(opts, ledger.WithBreakReason(fmt.Sprintf("action_not_fulfilled:%s", e.ActionLabel)))
	} else {
		opts = append(opts, ledger.WithStatus(ledger.StatusActive))
	}
	ev.ledger.Append(e.SpeakerID, ledger.OpEvaluate, fmt.Sprintf("eval:%s", e.ActionLabel), opts...)

	e.FinalStatus = status
	return status
}

// EvaluateLoop runs spec.md §4.5's bounded loop semantics. bound<=0 uses the
// evaluator's configured default.
func (ev *Evaluator) EvaluateLoop(e *Expression, predicate func() bool, bound int) (ledger.Status, int) {
	if bound <= 0 {
		bound = ev.defaultLoopBound
	}
	count := 0
	for count < bound {
		if !predicate() {
			ev.ledger.Append(e.SpeakerID, ledger.OpLoopEnd,
				fmt.Sprintf("loop_end:iterations=%d", count), ledger.WithStatus(ledger.StatusInactive))
			return ledger.StatusInactive, count
		}
		status := ev.Evaluate(e)
		count++
		if status == ledger.StatusBroken || status == ledger.StatusInactive {
			return status, count
		}
	}
	ev.ledger.Append(e.SpeakerID, ledger.OpLoopBoundExceed,
		fmt.Sprintf("loop exceeded max %d iterations", bound), ledger.WithBreakReason(fmt.Sprintf("loop exceeded max %d iterations", bound)))
	return ledger.StatusBroken, count
}
