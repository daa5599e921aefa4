// Package speaker implements C3: the speaker registry. Ids are assigned
// strictly monotonically and never reused; root (id 0) exists the moment a
// Registry is constructed, matching spec.md §4.3 "root is minted at boot".
package speaker

import (
	"fmt"
	"sync"
)

// Status is the lifecycle status of a speaker.
type Status string

const (
	StatusAlive     Status = "alive"
	StatusSuspended Status = "suspended"
)

// RootID and RootName are fixed: spec.md requires exactly one speaker with
// id 0 and name "root" after boot.
const (
	RootID   int64  = 0
	RootName string = "root"
)

// Speaker is a named identity owning a partition and issuing expressions.
type Speaker struct {
	ID        int64
	Name      string
	CreatedAt int64
	Status    Status
}

// Clock abstracts time for deterministic tests.
type Clock func() int64

// Registry is the id ↔ name bimap plus lifecycle state for every speaker.
type Registry struct {
	mu      sync.RWMutex
	byID    map[int64]*Speaker
	byName  map[string]int64
	nextID  int64
	clock   Clock
}

// New creates a Registry with root already minted.
func New(clock Clock) *Registry {
	r := &Registry{
		byID:   make(map[int64]*Speaker),
		byName: make(map[string]int64),
		clock:  clock,
	}
	root := &Speaker{ID: RootID, Name: RootName, CreatedAt: clock(), Status: StatusAlive}
	r.byID[RootID] = root
	r.byName[RootName] = RootID
	r.nextID = RootID + 1
	return r
}

// Create assigns the next monotonic id to a new speaker. Names must be
// unique at creation time.
func (r *Registry) Create(name string) (*Speaker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return nil, fmt.Errorf("speaker name must not be empty")
	}
	if _, exists := r.byName[name]; exists {
		return nil, fmt.Errorf("speaker name %q already taken", name)
	}

	s := &Speaker{ID: r.nextID, Name: name, CreatedAt: r.clock(), Status: StatusAlive}
	r.byID[s.ID] = s
	r.byName[name] = s.ID
	r.nextID++
	return s, nil
}

// Get looks up a speaker by id.
func (r *Registry) Get(id int64) (*Speaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// GetByName looks up a speaker by name.
func (r *Registry) GetByName(name string) (*Speaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	cp := *r.byID[id]
	return &cp, true
}

// Authenticate reports whether id names a speaker that exists and is alive.
func (r *Registry) Authenticate(id int64) bool {
	s, ok := r.Get(id)
	return ok && s.Status == StatusAlive
}

// Suspend marks a speaker suspended. Only root may suspend, and root may not
// suspend itself (there must always be a live root to administer the
// system).
func (r *Registry) Suspend(callerID, targetID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if callerID != RootID {
		return fmt.Errorf("only root may suspend a speaker")
	}
	if targetID == RootID {
		return fmt.Errorf("root may not be suspended")
	}
	s, ok := r.byID[targetID]
	if !ok {
		return fmt.Errorf("speaker %d not found", targetID)
	}
	s.Status = StatusSuspended
	return nil
}

// ListAll returns every speaker, ordered by id (deterministic iteration,
// spec.md A6).
func (r *Registry) ListAll() []Speaker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Speaker, 0, len(r.byID))
	for id := int64(0); id < r.nextID; id++ {
		if s, ok := r.byID[id]; ok {
			out = append(out, *s)
		}
	}
	return out
}
