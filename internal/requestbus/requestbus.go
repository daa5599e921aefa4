// Package requestbus implements C4: the FIFO pending queue of inter-speaker
// requests. Only the target of a request may resolve it, and each request
// resolves exactly once (spec.md §4.4).
package requestbus

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/user/humanlogica/internal/ledger"
	"github.com/user/humanlogica/internal/speaker"
	"github.com/user/humanlogica/internal/value"
)

// Status is the closed request lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRefused  Status = "refused"
	StatusExpired  Status = "expired"
)

// Request is one inter-speaker request (spec.md §3 "Request").
type Request struct {
	ID           string
	FromSpeaker  int64
	ToSpeaker    int64
	Action       string
	Payload      value.Value
	HasPayload   bool
	Status       Status
	CreatedAt    int64
	ExpiresAt    int64
	HasExpiresAt bool
	ResponseData value.Value
	HasResponse  bool
}

// Clock abstracts time for deterministic tests.
type Clock func() int64

// Bus holds every request ever created, indexed for FIFO-per-target
// dequeue. Global ordering across targets is plain insertion order
// (spec.md §4.4).
type Bus struct {
	mu     sync.Mutex
	all    []*Request
	clock  Clock
	ledger *ledger.Ledger
}

// New creates an empty request bus. ledger receives one request_expired
// entry per request CheckTimeouts retires, attributed to the root speaker
// since expiry is a system-driven event with no calling speaker of its own.
func New(clock Clock, l *ledger.Ledger) *Bus {
	return &Bus{clock: clock, ledger: l}
}

// CreateRequest enqueues a new pending request from "from" to "to".
func (b *Bus) CreateRequest(from, to int64, action string, payload value.Value, hasPayload bool, expiresAt int64, hasExpiresAt bool) *Request {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := &Request{
		ID:           uuid.NewString(),
		FromSpeaker:  from,
		ToSpeaker:    to,
		Action:       action,
		Payload:      payload,
		HasPayload:   hasPayload,
		Status:       StatusPending,
		CreatedAt:    b.clock(),
		ExpiresAt:    expiresAt,
		HasExpiresAt: hasExpiresAt,
	}
	b.all = append(b.all, r)
	return r
}

// Respond resolves the oldest pending request when requestID is empty, or a
// specific request when requestID is set; it fails if responderID is not
// the request's target or the request is no longer pending.
func (b *Bus) Respond(requestID string, responderID int64, accept bool, responseData value.Value, hasResponse bool) (*Request, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var target *Request
	if requestID != "" {
		for _, r := range b.all {
			if r.ID == requestID {
				target = r
				break
			}
		}
		if target == nil {
			return nil, fmt.Errorf("request %s not found", requestID)
		}
	} else {
		target = b.oldestPendingFor(responderID)
		if target == nil {
			return nil, fmt.Errorf("no pending request for speaker %d", responderID)
		}
	}

	if target.ToSpeaker != responderID {
		return nil, fmt.Errorf("only the target speaker may resolve a request")
	}
	if target.Status != StatusPending {
		return nil, fmt.Errorf("request %s is already resolved (%s)", target.ID, target.Status)
	}

	if accept {
		target.Status = StatusAccepted
	} else {
		target.Status = StatusRefused
	}
	target.ResponseData = responseData
	target.HasResponse = hasResponse
	return target, nil
}

func (b *Bus) oldestPendingFor(speakerID int64) *Request {
	for _, r := range b.all {
		if r.ToSpeaker == speakerID && r.Status == StatusPending {
			return r
		}
	}
	return nil
}

// GetPendingFor returns pending requests targeting speakerID, oldest first.
func (b *Bus) GetPendingFor(speakerID int64) []*Request {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*Request
	for _, r := range b.all {
		if r.ToSpeaker == speakerID && r.Status == StatusPending {
			out = append(out, r)
		}
	}
	return out
}

// CheckTimeouts marks overdue pending requests expired and returns them.
// Per spec.md §5, this is called at coarse intervals by the embedding
// application — never from inside an expression evaluation.
func (b *Bus) CheckTimeouts(now int64) []*Request {
	b.mu.Lock()
	defer b.mu.Unlock()

	var expired []*Request
	for _, r := range b.all {
		if r.Status == StatusPending && r.HasExpiresAt && now > r.ExpiresAt {
			r.Status = StatusExpired
			expired = append(expired, r)
			if b.ledger != nil {
				b.ledger.Append(speaker.RootID, ledger.OpRequestExpired,
					fmt.Sprintf("request_expired:%s(%d->%d)", r.ID, r.FromSpeaker, r.ToSpeaker),
					ledger.WithStatus(ledger.StatusBroken))
			}
		}
	}
	return expired
}

// Get looks up a request by id.
func (b *Bus) Get(id string) (*Request, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.all {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}
