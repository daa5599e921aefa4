// Package memory implements C2: per-speaker key→value partitions.
// Unrestricted reads, owner-only writes — there is no operation in this
// package's surface that can write owner≠caller; the kernel facade is what
// enforces that boundary and logs rejected attempts (spec.md §4.2).
package memory

import (
	"sort"
	"sync"

	"github.com/user/humanlogica/internal/value"
)

// partition is one speaker's private, writable-by-owner-only memory.
type partition struct {
	mu   sync.RWMutex
	vars map[string]value.Value
	// order preserves insertion order for ListVars (spec.md §4.1 "ordered
	// sequence of names" — not necessarily alphabetical, so a separate
	// slice tracks write order).
	order []string
}

// Manager owns one partition per speaker.
type Manager struct {
	mu         sync.RWMutex
	partitions map[int64]*partition
}

// New creates an empty manager.
func New() *Manager {
	return &Manager{partitions: make(map[int64]*partition)}
}

// CreatePartition is idempotent: calling it twice for the same speaker is a
// no-op the second time.
func (m *Manager) CreatePartition(speakerID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.partitions[speakerID]; exists {
		return
	}
	m.partitions[speakerID] = &partition{vars: make(map[string]value.Value)}
}

func (m *Manager) get(speakerID int64) (*partition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.partitions[speakerID]
	return p, ok
}

// Read never fails: an absent partition or absent variable both read as
// value.None{}.
func (m *Manager) Read(ownerID int64, varName string) value.Value {
	p, ok := m.get(ownerID)
	if !ok {
		return value.None{}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.vars[varName]
	if !ok {
		return value.None{}
	}
	return v
}

// Write succeeds only if callerID's partition exists. It returns the prior
// value (or none) so the caller can log state_before/state_after.
func (m *Manager) Write(callerID int64, varName string, v value.Value) (ok bool, old value.Value) {
	p, exists := m.get(callerID)
	if !exists {
		return false, value.None{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	prior, hadPrior := p.vars[varName]
	if !hadPrior {
		prior = value.None{}
		p.order = append(p.order, varName)
	}
	p.vars[varName] = v
	return true, prior
}

// ListVars returns variable names for a speaker's partition in the order
// they were first written.
func (m *Manager) ListVars(ownerID int64) []string {
	p, ok := m.get(ownerID)
	if !ok {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// HasPartition reports whether a partition has been created for speakerID.
func (m *Manager) HasPartition(speakerID int64) bool {
	_, ok := m.get(speakerID)
	return ok
}

// Snapshot returns a deterministic, sorted-key rendering of a partition.
func (m *Manager) Snapshot(speakerID int64) map[string]string {
	p, ok := m.get(speakerID)
	if !ok {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.vars))
	for k := range p.vars {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make(map[string]string, len(names))
	for _, n := range names {
		out[n] = p.vars[n].String()
	}
	return out
}
