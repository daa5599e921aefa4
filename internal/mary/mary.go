// Package mary implements C6: the kernel facade. Mary is the single entry
// point that authenticates callers, routes to the ledger/memory/speaker
// registry/request bus/evaluator, and guarantees every operation produces a
// ledger entry (spec.md §4.6).
package mary

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/user/humanlogica/internal/evaluator"
	"github.com/user/humanlogica/internal/langerr"
	"github.com/user/humanlogica/internal/ledger"
	"github.com/user/humanlogica/internal/memory"
	"github.com/user/humanlogica/internal/requestbus"
	"github.com/user/humanlogica/internal/speaker"
	"github.com/user/humanlogica/internal/value"
)

// Clock abstracts time so an embedder (or a test) can inject a monotonic
// counter instead of wall-clock time — spec.md §8 invariant 6 requires
// byte-for-byte identical ledgers modulo timestamps across identical runs.
type Clock func() int64

func wallClock() int64 { return time.Now().UnixNano() }

// Mary is the kernel facade. It holds every C1–C5 component and is the only
// type the runtime (C11) is allowed to call into for a side effect.
type Mary struct {
	Registry    *speaker.Registry
	Memory      *memory.Manager
	Ledger      *ledger.Ledger
	Requests    *requestbus.Bus
	Evaluator   *evaluator.Evaluator
	clock       Clock
	log         *zap.Logger
	loopBound   int
}

// Option configures Boot.
type Option func(*options)

type options struct {
	clock       Clock
	log         *zap.Logger
	loopBound   int
	mintHelena  bool
}

func WithClock(c Clock) Option          { return func(o *options) { o.clock = c } }
func WithLogger(l *zap.Logger) Option    { return func(o *options) { o.log = l } }
func WithLoopBound(n int) Option         { return func(o *options) { o.loopBound = n } }
func WithHelena(mint bool) Option        { return func(o *options) { o.mintHelena = mint } }

// Boot constructs a new Mary kernel: mints root, optionally mints Helena,
// and appends the boot ledger entry (spec.md §4.3).
func Boot(opts ...Option) *Mary {
	o := options{clock: wallClock, log: zap.NewNop(), loopBound: 10000}
	for _, opt := range opts {
		opt(&o)
	}

	reg := speaker.New(speaker.Clock(o.clock))
	mem := memory.New()
	mem.CreatePartition(speaker.RootID)
	l := ledger.NewWithClock(ledger.Clock(o.clock))
	bus := requestbus.New(requestbus.Clock(o.clock), l)
	store := evaluator.NewStore()
	ev := evaluator.New(reg, l, store, evaluator.Clock(o.clock), o.loopBound)

	l.Append(speaker.RootID, ledger.OpBoot, "boot:root")

	m := &Mary{
		Registry:  reg,
		Memory:    mem,
		Ledger:    l,
		Requests:  bus,
		Evaluator: ev,
		clock:     o.clock,
		log:       o.log,
		loopBound: o.loopBound,
	}

	if o.mintHelena {
		if _, err := m.CreateSpeaker(speaker.RootID, "helena"); err != nil {
			o.log.Warn("failed to mint helena at boot", zap.Error(err))
		}
	}

	o.log.Info("mary kernel booted", zap.Int("loop_bound", o.loopBound))
	return m
}

func (m *Mary) authOrLog(callerID int64, op ledger.Operation, action string) bool {
	if !m.Registry.Authenticate(callerID) {
		m.Ledger.Append(callerID, op, action, ledger.WithBreakReason("speaker_not_found_or_suspended"))
		return false
	}
	return true
}

// halt builds a KernelHalt error for a state that the kernel's own
// invariants say cannot happen (e.g. an authenticated speaker with no
// memory partition). The stack trace attached by errors.WithStack survives
// in wrapped for whoever logs the halt, since by definition there is no
// recovery path to report through normally.
func (m *Mary) halt(format string, args ...interface{}) error {
	cause := errors.WithStack(fmt.Errorf(format, args...))
	if m.log != nil {
		m.log.Error("kernel halt", zap.Error(cause))
	}
	return langerr.KernelHalt(cause, format, args...)
}

// CreateSpeaker registers a new speaker and its partition. Any authenticated
// speaker may create another (spec.md §3: "created by an existing
// authenticated speaker").
func (m *Mary) CreateSpeaker(callerID int64, name string) (*speaker.Speaker, error) {
	if !m.authOrLog(callerID, ledger.OpCreateSpeaker, "create_speaker:"+name) {
		return nil, fmt.Errorf("caller %d not authenticated", callerID)
	}
	s, err := m.Registry.Create(name)
	if err != nil {
		m.Ledger.Append(callerID, ledger.OpCreateSpeaker, "create_speaker:"+name, ledger.WithBreakReason(err.Error()))
		return nil, err
	}
	m.Memory.CreatePartition(s.ID)
	m.Ledger.Append(callerID, ledger.OpCreateSpeaker, fmt.Sprintf("create_speaker:%s(id=%d)", name, s.ID),
		ledger.WithStatus(ledger.StatusActive))
	return s, nil
}

// SuspendSpeaker suspends targetID; only root may do so (spec.md §4.3).
func (m *Mary) SuspendSpeaker(callerID, targetID int64) error {
	if !m.authOrLog(callerID, ledger.OpSuspendSpeaker, fmt.Sprintf("suspend_speaker:%d", targetID)) {
		return fmt.Errorf("caller %d not authenticated", callerID)
	}
	if err := m.Registry.Suspend(callerID, targetID); err != nil {
		m.Ledger.Append(callerID, ledger.OpSuspendSpeaker, fmt.Sprintf("suspend_speaker:%d", targetID),
			ledger.WithBreakReason(err.Error()))
		return err
	}
	m.Ledger.Append(callerID, ledger.OpSuspendSpeaker, fmt.Sprintf("suspend_speaker:%d", targetID),
		ledger.WithStatus(ledger.StatusActive))
	return nil
}

// ListSpeakers returns every speaker known to the registry.
func (m *Mary) ListSpeakers(callerID int64) ([]speaker.Speaker, error) {
	if !m.authOrLog(callerID, ledger.OpListSpeakers, "list_speakers") {
		return nil, fmt.Errorf("caller %d not authenticated", callerID)
	}
	all := m.Registry.ListAll()
	m.Ledger.Append(callerID, ledger.OpListSpeakers, fmt.Sprintf("list_speakers:count=%d", len(all)), ledger.WithStatus(ledger.StatusActive))
	return all, nil
}

// Read reads a variable from ownerID's partition. Reads are unrestricted —
// any authenticated caller may read any speaker's partition.
func (m *Mary) Read(callerID, ownerID int64, varName string) (value.Value, error) {
	if !m.authOrLog(callerID, ledger.OpRead, fmt.Sprintf("read:%d.%s", ownerID, varName)) {
		return value.None{}, fmt.Errorf("caller %d not authenticated", callerID)
	}
	v := m.Memory.Read(ownerID, varName)
	m.Ledger.Append(callerID, ledger.OpRead, fmt.Sprintf("read:%d.%s", ownerID, varName), ledger.WithStatus(ledger.StatusActive))
	return v, nil
}

// Write writes varName in callerID's own partition. This is the only
// writing path memory.Manager exposes — cross-speaker writes cannot be
// expressed through it, so success here always means owner==caller.
func (m *Mary) Write(callerID int64, varName string, v value.Value) error {
	if !m.authOrLog(callerID, ledger.OpWrite, fmt.Sprintf("write:%d.%s", callerID, varName)) {
		return fmt.Errorf("caller %d not authenticated", callerID)
	}
	ok, old := m.Memory.Write(callerID, varName, v)
	if !ok {
		// Registry.Authenticate already passed, and CreateSpeaker always
		// pairs a new speaker with a partition, so a missing partition here
		// means that invariant has been violated, not that the caller made
		// a mistake.
		m.Ledger.Append(callerID, ledger.OpWrite, fmt.Sprintf("write:%d.%s", callerID, varName),
			ledger.WithBreakReason("no partition for caller"))
		return m.halt("speaker %d authenticated but has no memory partition", callerID)
	}
	m.Ledger.Append(callerID, ledger.OpWrite, fmt.Sprintf("write:%d.%s", callerID, varName),
		ledger.WithStatus(ledger.StatusActive),
		ledger.WithStateBefore(old.String()),
		ledger.WithStateAfter(v.String()))
	return nil
}

// WriteTo is the cross-speaker attempt path of spec.md §4.2: it always
// rejects and logs a write_violation with status broken. There is no
// variant of this call that can succeed — its only purpose is to give a
// caller-convenience entry point (and a single audited rejection message)
// for an operation the memory layer structurally cannot perform.
func (m *Mary) WriteTo(callerID, ownerID int64, varName string, v value.Value) error {
	if callerID == ownerID {
		// Not actually cross-speaker; route to the real Write path so the
		// ledger records a write rather than a synthetic violation.
		return m.Write(callerID, varName, v)
	}
	if !m.Registry.Authenticate(callerID) {
		m.Ledger.Append(callerID, ledger.OpWriteViolation, fmt.Sprintf("write_violation:%d->%d.%s", callerID, ownerID, varName),
			ledger.WithBreakReason("speaker_not_found_or_suspended"))
		return fmt.Errorf("caller %d not authenticated", callerID)
	}
	m.Ledger.Append(callerID, ledger.OpWriteViolation, fmt.Sprintf("write_violation:%d->%d.%s", callerID, ownerID, varName),
		ledger.WithBreakReason(fmt.Sprintf("speaker %d may not write to speaker %d's partition", callerID, ownerID)))
	return fmt.Errorf("write rejected: speaker %d may not write to speaker %d's partition", callerID, ownerID)
}

// ListVars lists variable names in ownerID's partition.
func (m *Mary) ListVars(callerID, ownerID int64) ([]string, error) {
	if !m.authOrLog(callerID, ledger.OpListVars, fmt.Sprintf("list_vars:%d", ownerID)) {
		return nil, fmt.Errorf("caller %d not authenticated", callerID)
	}
	names := m.Memory.ListVars(ownerID)
	m.Ledger.Append(callerID, ledger.OpListVars, fmt.Sprintf("list_vars:%d:count=%d", ownerID, len(names)), ledger.WithStatus(ledger.StatusActive))
	return names, nil
}

// Submit submits a new expression for callerID, logging submit and then
// evaluating it once.
func (m *Mary) Submit(callerID int64, e *evaluator.Expression) (ledger.Status, error) {
	if !m.authOrLog(callerID, ledger.OpSubmit, "submit:"+e.ActionLabel) {
		return ledger.StatusBroken, fmt.Errorf("caller %d not authenticated", callerID)
	}
	e.SpeakerID = callerID
	m.Evaluator.Submit(e)
	m.Ledger.Append(callerID, ledger.OpSubmit, "submit:"+e.ActionLabel, ledger.WithStatus(ledger.StatusActive))
	status := m.Evaluator.Evaluate(e)
	return status, nil
}

// SubmitLoop submits a looped expression and drives it to completion
// (spec.md §4.5's bounded loop semantics).
func (m *Mary) SubmitLoop(callerID int64, e *evaluator.Expression, predicate func() bool, bound int) (ledger.Status, int, error) {
	if !m.authOrLog(callerID, ledger.OpSubmitLoop, "submit_loop:"+e.ActionLabel) {
		return ledger.StatusBroken, 0, fmt.Errorf("caller %d not authenticated", callerID)
	}
	e.SpeakerID = callerID
	m.Evaluator.Submit(e)
	m.Ledger.Append(callerID, ledger.OpSubmitLoop, "submit_loop:"+e.ActionLabel, ledger.WithStatus(ledger.StatusActive))
	status, iterations := m.Evaluator.EvaluateLoop(e, predicate, bound)
	return status, iterations, nil
}

// ExpressionStatus re-evaluates a previously submitted expression by id.
func (m *Mary) ExpressionStatus(callerID int64, expressionID string) (ledger.Status, error) {
	if !m.authOrLog(callerID, ledger.OpExpressionStat, "expression_status:"+expressionID) {
		return ledger.StatusBroken, fmt.Errorf("caller %d not authenticated", callerID)
	}
	e, ok := m.Evaluator.Get(expressionID)
	if !ok {
		m.Ledger.Append(callerID, ledger.OpExpressionStat, "expression_status:"+expressionID, ledger.WithBreakReason("expression not found"))
		return ledger.StatusBroken, fmt.Errorf("expression %s not found", expressionID)
	}
	status := m.Evaluator.Evaluate(e)
	return status, nil
}

// Request creates a new pending request from callerID to toID.
func (m *Mary) Request(callerID, toID int64, action string, payload value.Value, hasPayload bool, expiresAt int64, hasExpiresAt bool) (*requestbus.Request, error) {
	if !m.authOrLog(callerID, ledger.OpRequest, fmt.Sprintf("request:%d->%d:%s", callerID, toID, action)) {
		return nil, fmt.Errorf("caller %d not authenticated", callerID)
	}
	r := m.Requests.CreateRequest(callerID, toID, action, payload, hasPayload, expiresAt, hasExpiresAt)
	m.Ledger.Append(callerID, ledger.OpRequest, fmt.Sprintf("request:%d->%d:%s", callerID, toID, action), ledger.WithStatus(ledger.StatusActive))
	return r, nil
}

// Respond resolves the oldest pending request for callerID, or a specific
// requestID when given.
func (m *Mary) Respond(callerID int64, requestID string, accept bool, responseData value.Value, hasResponse bool) (*requestbus.Request, error) {
	verb := "refuse"
	if accept {
		verb = "accept"
	}
	if !m.authOrLog(callerID, ledger.OpRespond, fmt.Sprintf("respond:%s", verb)) {
		return nil, fmt.Errorf("caller %d not authenticated", callerID)
	}
	r, err := m.Requests.Respond(requestID, callerID, accept, responseData, hasResponse)
	if err != nil {
		m.Ledger.Append(callerID, ledger.OpRespond, fmt.Sprintf("respond:%s", verb), ledger.WithBreakReason(err.Error()))
		return nil, err
	}
	m.Ledger.Append(callerID, ledger.OpRespond, fmt.Sprintf("respond:%s:%s", verb, r.ID), ledger.WithStatus(ledger.StatusActive))
	return r, nil
}

// PendingRequests returns requests still pending for callerID.
func (m *Mary) PendingRequests(callerID int64) ([]*requestbus.Request, error) {
	if !m.authOrLog(callerID, ledger.OpPendingRequests, "pending_requests") {
		return nil, fmt.Errorf("caller %d not authenticated", callerID)
	}
	pending := m.Requests.GetPendingFor(callerID)
	m.Ledger.Append(callerID, ledger.OpPendingRequests, fmt.Sprintf("pending_requests:count=%d", len(pending)), ledger.WithStatus(ledger.StatusActive))
	return pending, nil
}

// CheckTimeouts retires overdue pending requests to expired, ledgering one
// request_expired entry per retirement. Per spec.md §5 this is a
// system-driven operation called at coarse intervals by the embedding
// application, not a speaker-initiated call — there is no callerID to
// authenticate.
func (m *Mary) CheckTimeouts() []*requestbus.Request {
	return m.Requests.CheckTimeouts(m.clock())
}

// LedgerRead exposes ledger.Read through the facade.
func (m *Mary) LedgerRead(callerID int64, fromID, toID int64) ([]ledger.Entry, error) {
	if !m.authOrLog(callerID, ledger.OpLedgerRead, "ledger_read") {
		return nil, fmt.Errorf("caller %d not authenticated", callerID)
	}
	entries := m.Ledger.Read(fromID, toID)
	m.Ledger.Append(callerID, ledger.OpLedgerRead, fmt.Sprintf("ledger_read:%d:%d", fromID, toID), ledger.WithStatus(ledger.StatusActive))
	return entries, nil
}

// LedgerSearch exposes ledger.Search through the facade.
func (m *Mary) LedgerSearch(callerID int64, f ledger.Filter) ([]ledger.Entry, error) {
	if !m.authOrLog(callerID, ledger.OpLedgerSearch, "ledger_search") {
		return nil, fmt.Errorf("caller %d not authenticated", callerID)
	}
	entries := m.Ledger.Search(f)
	m.Ledger.Append(callerID, ledger.OpLedgerSearch, fmt.Sprintf("ledger_search:count=%d", len(entries)), ledger.WithStatus(ledger.StatusActive))
	return entries, nil
}

// LedgerCount exposes ledger.Count through the facade.
func (m *Mary) LedgerCount(callerID int64) (int64, error) {
	if !m.authOrLog(callerID, ledger.OpLedgerCount, "ledger_count") {
		return 0, fmt.Errorf("caller %d not authenticated", callerID)
	}
	count := m.Ledger.Count()
	m.Ledger.Append(callerID, ledger.OpLedgerCount, fmt.Sprintf("ledger_count:%d", count), ledger.WithStatus(ledger.StatusActive))
	return count, nil
}

// LedgerVerify exposes ledger.VerifyIntegrity through the facade.
func (m *Mary) LedgerVerify(callerID int64) (bool, error) {
	if !m.authOrLog(callerID, ledger.OpLedgerVerify, "ledger_verify") {
		return false, fmt.Errorf("caller %d not authenticated", callerID)
	}
	ok := m.Ledger.VerifyIntegrity()
	status := ledger.StatusActive
	if !ok {
		status = ledger.StatusBroken
	}
	m.Ledger.Append(callerID, ledger.OpLedgerVerify, fmt.Sprintf("ledger_verify:%v", ok), ledger.WithStatus(status))
	return ok, nil
}

// InspectSpeaker returns a speaker's public record.
func (m *Mary) InspectSpeaker(callerID, targetID int64) (*speaker.Speaker, error) {
	if !m.authOrLog(callerID, ledger.OpInspectSpeaker, fmt.Sprintf("inspect_speaker:%d", targetID)) {
		return nil, fmt.Errorf("caller %d not authenticated", callerID)
	}
	s, ok := m.Registry.Get(targetID)
	if !ok {
		m.Ledger.Append(callerID, ledger.OpInspectSpeaker, fmt.Sprintf("inspect_speaker:%d", targetID), ledger.WithBreakReason("speaker not found"))
		return nil, fmt.Errorf("speaker %d not found", targetID)
	}
	m.Ledger.Append(callerID, ledger.OpInspectSpeaker, fmt.Sprintf("inspect_speaker:%d", targetID), ledger.WithStatus(ledger.StatusActive))
	return s, nil
}

// InspectVariable returns the current value and snapshot state of one
// variable for display (e.g. the `inspect` statement).
func (m *Mary) InspectVariable(callerID, ownerID int64, varName string) (value.Value, error) {
	if !m.authOrLog(callerID, ledger.OpInspectVariable, fmt.Sprintf("inspect_variable:%d.%s", ownerID, varName)) {
		return value.None{}, fmt.Errorf("caller %d not authenticated", callerID)
	}
	v := m.Memory.Read(ownerID, varName)
	m.Ledger.Append(callerID, ledger.OpInspectVariable, fmt.Sprintf("inspect_variable:%d.%s", ownerID, varName), ledger.WithStatus(ledger.StatusActive))
	return v, nil
}

// Seal authenticates and logs a seal event; the sealed-variable set itself
// is runtime-side state (spec.md §4.11 "seal semantics (runtime)"), so this
// call exists purely to give sealing an audited kernel entry point like
// every other side effect.
func (m *Mary) Seal(callerID int64, varName string) error {
	if !m.authOrLog(callerID, ledger.OpSeal, "seal:"+varName) {
		return fmt.Errorf("caller %d not authenticated", callerID)
	}
	m.Ledger.Append(callerID, ledger.OpSeal, "seal:"+varName, ledger.WithStatus(ledger.StatusActive))
	return nil
}

// State is a point-in-time snapshot of kernel-level counters, for embedders'
// diagnostics.
type State struct {
	SpeakerCount int
	LedgerCount  int64
	LedgerValid  bool
}

// State returns a snapshot. It is read-only but still authenticates and
// logs, per spec.md §4.6's "every call".
func (m *Mary) State(callerID int64) (State, error) {
	if !m.authOrLog(callerID, ledger.OpState, "state") {
		return State{}, fmt.Errorf("caller %d not authenticated", callerID)
	}
	st := State{
		SpeakerCount: len(m.Registry.ListAll()),
		LedgerCount:  m.Ledger.Count(),
		LedgerValid:  m.Ledger.VerifyIntegrity(),
	}
	m.Ledger.Append(callerID, ledger.OpState, "state", ledger.WithStatus(ledger.StatusActive))
	return st, nil
}
