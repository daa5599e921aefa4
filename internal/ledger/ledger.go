// Package ledger implements C1: a sequential, gapless, hash-chained entry
// store with integrity verification. It is the only mutable side-effect
// surface in the kernel — every other component logs through it rather than
// keeping its own history.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Operation is the closed set of ledger operation kinds. New operations are
// added here, never invented ad hoc at call sites, so Search(ByOperation)
// stays meaningful.
type Operation string

const (
	OpBoot            Operation = "boot"
	OpCreateSpeaker   Operation = "create_speaker"
	OpSuspendSpeaker  Operation = "suspend_speaker"
	OpSetSpeaker      Operation = "set_speaker"
	OpWrite           Operation = "write"
	OpWriteViolation  Operation = "write_violation"
	OpEvaluate        Operation = "evaluate"
	OpSupersede       Operation = "supersede"
	OpLoopEnd         Operation = "loop_end"
	OpLoopBoundExceed Operation = "loop_bound_exceeded"
	OpRequest         Operation = "request"
	OpRespond         Operation = "respond"
	OpRequestExpired  Operation = "request_expired"
	OpSeal            Operation = "seal"
	OpEvalExpr        Operation = "eval_expr"
	OpRead            Operation = "read"
	OpListVars        Operation = "list_vars"
	OpListSpeakers    Operation = "list_speakers"
	OpSubmit          Operation = "submit"
	OpSubmitLoop      Operation = "submit_loop"
	OpExpressionStat  Operation = "expression_status"
	OpPendingRequests Operation = "pending_requests"
	OpLedgerRead      Operation = "ledger_read"
	OpLedgerSearch    Operation = "ledger_search"
	OpLedgerCount     Operation = "ledger_count"
	OpLedgerVerify    Operation = "ledger_verify"
	OpInspectSpeaker  Operation = "inspect_speaker"
	OpInspectVariable Operation = "inspect_variable"
	OpState           Operation = "state"
)

// Status is the closed three-valued (plus none) status set shared with the
// evaluator.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBroken   Status = "broken"
	StatusNone     Status = "none"
)

const genesisHash = "genesis"

// Entry is one immutable ledger record. All fields are exported. Condition
// and ConditionResult are present only when HasCondition / HasConditionRes
// is set; for StateBefore/After and BreakReason the zero value means
// "absent", matching spec.md's "optional" data-model fields.
type Entry struct {
	EntryID         int64
	SpeakerID       int64
	Operation       Operation
	Action          string
	Condition       string
	HasCondition    bool
	ConditionResult bool
	HasConditionRes bool
	Status          Status
	StateBefore     string
	StateAfter      string
	Timestamp       int64
	PrevHash        string
	EntryHash       string
	BreakReason     string
}

// Clock abstracts time so tests can inject a monotonic counter instead of
// wall-clock time (spec.md §8 invariant 6: determinism modulo timestamps).
type Clock func() int64

func wallClock() int64 { return time.Now().UnixNano() }

// Ledger is the append-only hash chain.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
	clock   Clock
}

// New creates an empty ledger using wall-clock timestamps.
func New() *Ledger {
	return &Ledger{clock: wallClock}
}

// NewWithClock creates an empty ledger using a caller-supplied clock, for
// deterministic tests.
func NewWithClock(clock Clock) *Ledger {
	return &Ledger{clock: clock}
}

// Option configures optional Entry fields on Append.
type Option func(*Entry)

func WithCondition(label string, result bool) Option {
	return func(e *Entry) {
		e.Condition = label
		e.HasCondition = true
		e.ConditionResult = result
		e.HasConditionRes = true
	}
}

func WithConditionLabel(label string) Option {
	return func(e *Entry) {
		e.Condition = label
		e.HasCondition = true
	}
}

func WithStateBefore(s string) Option { return func(e *Entry) { e.StateBefore = s } }
func WithStateAfter(s string) Option  { return func(e *Entry) { e.StateAfter = s } }
func WithBreakReason(reason string) Option {
	return func(e *Entry) {
		e.BreakReason = reason
		e.Status = StatusBroken
	}
}
func WithStatus(s Status) Option { return func(e *Entry) { e.Status = s } }

// Append is the ledger's only mutating operation. It cannot fail in the
// sense of returning an error to the caller (spec.md §4.1 "Failure model");
// if the in-process append itself cannot happen (e.g. out-of-memory), that
// is a kernel halt condition handled by the caller, not by Ledger.
func (l *Ledger) Append(speakerID int64, op Operation, action string, opts ...Option) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash := genesisHash
	if n := len(l.entries); n > 0 {
		prevHash = l.entries[n-1].EntryHash
	}

	e := Entry{
		EntryID:   int64(len(l.entries)),
		SpeakerID: speakerID,
		Operation: op,
		Action:    action,
		Status:    StatusNone,
		Timestamp: l.clock(),
		PrevHash:  prevHash,
	}
	for _, opt := range opts {
		opt(&e)
	}
	e.EntryHash = entryHash(e)

	l.entries = append(l.entries, e)
	return e
}

// entryHash implements spec.md §4.1's hash rule:
// H(entry_id || speaker_id || operation || action || timestamp || prev_hash).
func entryHash(e Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%s|%s|%d|%s", e.EntryID, e.SpeakerID, e.Operation, e.Action, e.Timestamp, e.PrevHash)
	return hex.EncodeToString(h.Sum(nil))
}

// Read returns entries with EntryID in [fromID, toID), in order.
func (l *Ledger) Read(fromID, toID int64) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if fromID < 0 {
		fromID = 0
	}
	if toID > int64(len(l.entries)) {
		toID = int64(len(l.entries))
	}
	if fromID >= toID {
		return nil
	}
	out := make([]Entry, toID-fromID)
	copy(out, l.entries[fromID:toID])
	return out
}

// Filter narrows Search results. A zero-value field means "don't filter on
// this dimension" except where the Has* flag below says otherwise.
type Filter struct {
	HasSpeakerID bool
	SpeakerID    int64

	HasOperation bool
	Operation    Operation

	HasStatus bool
	Status    Status

	FromEntryID int64
	ToEntryID   int64 // 0 means "no upper bound"
}

// Search scans entries in order applying every set filter dimension.
func (l *Ledger) Search(f Filter) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Entry
	for _, e := range l.entries {
		if e.EntryID < f.FromEntryID {
			continue
		}
		if f.ToEntryID != 0 && e.EntryID >= f.ToEntryID {
			continue
		}
		if f.HasSpeakerID && e.SpeakerID != f.SpeakerID {
			continue
		}
		if f.HasOperation && e.Operation != f.Operation {
			continue
		}
		if f.HasStatus && e.Status != f.Status {
			continue
		}
		out = append(out, e)
	}
	return out
}

// VerifyIntegrity walks the chain from genesis, checking prev_hash linkage
// and recomputing entry_hash for every entry. Returns true for an empty
// ledger (spec.md §4.1).
func (l *Ledger) VerifyIntegrity() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	running := genesisHash
	for _, e := range l.entries {
		if e.PrevHash != running {
			return false
		}
		if entryHash(e) != e.EntryHash {
			return false
		}
		running = e.EntryHash
	}
	return true
}

// Count returns the number of entries.
func (l *Ledger) Count() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.entries))
}

// Last returns the most recent entry, if any.
func (l *Ledger) Last() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// String renders an entry per spec.md §6:
// "#ID [STATUS] SPEAKER: ACTION" with optional trailing fields.
func (e Entry) String() string {
	s := fmt.Sprintf("#%d [%s] speaker:%d: %s", e.EntryID, e.Status, e.SpeakerID, e.Action)
	if e.BreakReason != "" {
		s += fmt.Sprintf(" breakReason=%q", e.BreakReason)
	}
	if e.StateBefore != "" {
		s += fmt.Sprintf(" before=%q", e.StateBefore)
	}
	if e.StateAfter != "" {
		s += fmt.Sprintf(" after=%q", e.StateAfter)
	}
	return s
}
