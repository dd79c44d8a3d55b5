package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phillip/parenting-hub-go/models"
)

// Memory is an in-process Backend for local development and tests. Documents
// are kept in their JSON form.
type Memory struct {
	mu       sync.RWMutex
	docs     map[string]map[string]map[string]any
	order    map[string][]string
	watchers map[string]map[chan struct{}]struct{}
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]map[string]map[string]any),
		order:    make(map[string][]string),
		watchers: make(map[string]map[chan struct{}]struct{}),
		now:      time.Now,
	}
}

type memorySnapshot struct {
	id   string
	data map[string]any
}

func (s memorySnapshot) ID() string { return s.id }

// field returns the stored value of name. The id lives outside the document.
func (s memorySnapshot) field(name string) any {
	if name == models.FieldID {
		return s.id
	}
	return s.data[name]
}

func (s memorySnapshot) DataTo(v any) error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (m *Memory) Find(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.find(collection, q)
}

func (m *Memory) find(collection string, q Query) ([]Snapshot, error) {
	filters := make([]Filter, len(q.Filters))
	for i, f := range q.Filters {
		v, err := normalize(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Field, err)
		}
		filters[i] = Filter{Field: f.Field, Value: v}
	}

	var out []Snapshot
	for _, id := range m.order[collection] {
		doc := m.docs[collection][id]
		if matches(id, doc, filters) {
			out = append(out, memorySnapshot{id: id, data: doc})
		}
	}
	if q.OrderBy != nil {
		field, desc := q.OrderBy.Field, q.OrderBy.Desc
		sort.SliceStable(out, func(i, j int) bool {
			a := out[i].(memorySnapshot).field(field)
			b := out[j].(memorySnapshot).field(field)
			if desc {
				return less(b, a)
			}
			return less(a, b)
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return memorySnapshot{id: id, data: doc}, nil
}

func (m *Memory) Insert(ctx context.Context, collection string, doc any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fields, err := toMap(doc)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	now := m.now().UTC().Format(time.RFC3339Nano)
	delete(fields, models.FieldID)
	fields[models.FieldCreatedAt] = now
	fields[models.FieldUpdatedAt] = now

	m.mu.Lock()
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]map[string]any)
	}
	m.docs[collection][id] = fields
	m.order[collection] = append(m.order[collection], id)
	m.mu.Unlock()

	m.broadcast(collection)
	return id, nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	patch, err := toMap(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	doc, ok := m.docs[collection][id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	merged := make(map[string]any, len(doc)+len(patch))
	for k, v := range doc {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	merged[models.FieldUpdatedAt] = m.now().UTC().Format(time.RFC3339Nano)
	m.docs[collection][id] = merged
	m.mu.Unlock()

	m.broadcast(collection)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if _, ok := m.docs[collection][id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.docs[collection], id)
	ids := m.order[collection]
	for i, x := range ids {
		if x == id {
			m.order[collection] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.broadcast(collection)
	return nil
}

func (m *Memory) Watch(ctx context.Context, collection string, q Query, fn func([]Snapshot)) error {
	changed := make(chan struct{}, 1)
	m.mu.Lock()
	if m.watchers[collection] == nil {
		m.watchers[collection] = make(map[chan struct{}]struct{})
	}
	m.watchers[collection][changed] = struct{}{}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.watchers[collection], changed)
		m.mu.Unlock()
	}()

	for {
		m.mu.RLock()
		snaps, err := m.find(collection, q)
		m.mu.RUnlock()
		if err != nil {
			return err
		}
		fn(snaps)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

func (m *Memory) Close(context.Context) error { return nil }

func (m *Memory) broadcast(collection string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.watchers[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalize converts a filter value to its JSON form so it compares equal to
// stored values.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(raw, &out)
	return out, err
}

func matches(id string, doc map[string]any, filters []Filter) bool {
	snap := memorySnapshot{id: id, data: doc}
	for _, f := range filters {
		if !reflect.DeepEqual(snap.field(f.Field), f.Value) {
			return false
		}
	}
	return true
}

func less(a, b any) bool {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		return ok && x < y
	case string:
		y, ok := b.(string)
		if !ok {
			return false
		}
		// Timestamps are kept as RFC 3339 text with trailing zeros trimmed,
		// which does not sort lexically.
		if tx, err := time.Parse(time.RFC3339Nano, x); err == nil {
			if ty, err := time.Parse(time.RFC3339Nano, y); err == nil {
				return tx.Before(ty)
			}
		}
		return x < y
	case bool:
		y, ok := b.(bool)
		return ok && !x && y
	case nil:
		return b != nil
	}
	return false
}
