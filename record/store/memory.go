// Package store provides record.Store implementations.
package store

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/warp/settlement-engine/record"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records map[record.Ref]*memRecord
	// insertion order per library, for stable LinkedFrom and FindOne results
	order map[string][]record.Ref
}

type memRecord struct {
	fields    map[string]any
	relations map[string][]edge
}

type edge struct {
	target record.Ref
	attrs  map[string]any
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[record.Ref]*memRecord),
		order:   make(map[string][]record.Ref),
	}
}

// Put registers a record with the given fields, creating it if needed.
// Intended for test and scenario setup; Create is the engine-facing path.
func (m *Memory) Put(rec record.Ref, fields map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.ensureLocked(rec)
	for k, v := range fields {
		r.fields[k] = v
	}
}

func (m *Memory) ensureLocked(rec record.Ref) *memRecord {
	if r, ok := m.records[rec]; ok {
		return r
	}
	r := &memRecord{
		fields:    make(map[string]any),
		relations: make(map[string][]edge),
	}
	m.records[rec] = r
	m.order[rec.Library] = append(m.order[rec.Library], rec)
	return r
}

func (m *Memory) Get(_ context.Context, rec record.Ref, field string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[rec]
	if !ok {
		return nil, record.ErrRecordNotFound
	}
	return r.fields[field], nil
}

func (m *Memory) Set(_ context.Context, rec record.Ref, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[rec]
	if !ok {
		return record.ErrRecordNotFound
	}
	r.fields[field] = value
	return nil
}

func (m *Memory) Linked(_ context.Context, rec record.Ref, relation string) ([]record.Ref, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[rec]
	if !ok {
		return nil, record.ErrRecordNotFound
	}
	edges := r.relations[relation]
	targets := make([]record.Ref, len(edges))
	for i, e := range edges {
		targets[i] = e.target
	}
	return targets, nil
}

// SetLinked replaces the relation's targets. Attributes survive for targets
// that stay linked: the first surviving edge with a matching target donates
// its attributes to the new edge at that position.
func (m *Memory) SetLinked(_ context.Context, rec record.Ref, relation string, targets []record.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[rec]
	if !ok {
		return record.ErrRecordNotFound
	}

	old := r.relations[relation]
	used := make([]bool, len(old))
	edges := make([]edge, len(targets))
	for i, t := range targets {
		edges[i] = edge{target: t, attrs: make(map[string]any)}
		for j, oe := range old {
			if !used[j] && oe.target == t {
				edges[i].attrs = oe.attrs
				used[j] = true
				break
			}
		}
	}
	r.relations[relation] = edges
	return nil
}

func (m *Memory) EdgeAttribute(_ context.Context, rec record.Ref, relation string, index int, attr string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[rec]
	if !ok {
		return nil, record.ErrRecordNotFound
	}
	edges := r.relations[relation]
	if index < 0 || index >= len(edges) {
		return nil, record.ErrEdgeOutOfRange
	}
	return edges[index].attrs[attr], nil
}

func (m *Memory) SetEdgeAttribute(_ context.Context, rec record.Ref, relation string, index int, attr string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[rec]
	if !ok {
		return record.ErrRecordNotFound
	}
	edges := r.relations[relation]
	if index < 0 || index >= len(edges) {
		return record.ErrEdgeOutOfRange
	}
	edges[index].attrs[attr] = value
	return nil
}

func (m *Memory) LinkedFrom(_ context.Context, target record.Ref, sourceLibrary, sourceRelation string) ([]record.Ref, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []record.Ref
	for _, src := range m.order[sourceLibrary] {
		r := m.records[src]
		for _, e := range r.relations[sourceRelation] {
			if e.target == target {
				result = append(result, src)
				break
			}
		}
	}
	return result, nil
}

func (m *Memory) FindOne(_ context.Context, library, field string, value any) (record.Ref, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.order[library] {
		if fieldEqual(m.records[rec].fields[field], value) {
			return rec, true, nil
		}
	}
	return record.Ref{}, false, nil
}

func (m *Memory) Create(_ context.Context, library string, fields map[string]any) (record.Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := record.Ref{Library: library, ID: uuid.NewString()}
	r := m.ensureLocked(rec)
	for k, v := range fields {
		r.fields[k] = v
	}
	return rec, nil
}

// fieldEqual avoids ==: comparing two interfaces holding the same
// non-comparable dynamic type (a map, a slice) panics.
func fieldEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

var _ record.Store = (*Memory)(nil)
