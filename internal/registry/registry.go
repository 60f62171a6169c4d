// Package registry is the in-memory product collection behind /api/products.
// Records are free-form JSON objects so any product field round-trips and
// merges unchanged.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Skotchmaster/revoshop/internal/logging"
)

var (
	ErrNotFound       = errors.New("product not found")
	ErrInvalidPayload = errors.New("invalid request data")
)

type Record map[string]json.RawMessage

// ID returns the record's string id, or "" when it has none.
func (r Record) ID() string {
	return r.String("id")
}

func (r Record) String(field string) string {
	raw, ok := r[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (r Record) clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Observer is notified after each successful mutation.
type Observer interface {
	Created(ctx context.Context, rec Record) error
	Updated(ctx context.Context, rec Record) error
	Deleted(ctx context.Context, id string) error
}

type Registry struct {
	mu        sync.RWMutex
	records   []Record
	observers []Observer
	newID     func() string
}

type Option func(*Registry)

func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{newID: uuid.NewString}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.clone()
	}
	return out
}

func (r *Registry) Create(ctx context.Context, payload []byte) (Record, error) {
	rec, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}
	idRaw, err := json.Marshal(r.newID())
	if err != nil {
		return nil, err
	}
	rec["id"] = idRaw

	r.mu.Lock()
	r.records = append(r.records, rec)
	out := rec.clone()
	r.mu.Unlock()

	r.notify(ctx, "created", func(o Observer) error { return o.Created(ctx, out) })
	return out, nil
}

func (r *Registry) Update(ctx context.Context, payload []byte) (Record, error) {
	patch, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}
	id := patch.ID()
	if id == "" {
		return nil, ErrNotFound
	}

	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return nil, ErrNotFound
	}
	merged := r.records[i].clone()
	for k, v := range patch {
		merged[k] = v
	}
	r.records[i] = merged
	out := merged.clone()
	r.mu.Unlock()

	r.notify(ctx, "updated", func(o Observer) error { return o.Updated(ctx, out) })
	return out, nil
}

// Delete removes the record with id and reports whether one was removed.
func (r *Registry) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 || id == "" {
		r.mu.Unlock()
		return false
	}
	r.records = append(r.records[:i:i], r.records[i+1:]...)
	r.mu.Unlock()

	r.notify(ctx, "deleted", func(o Observer) error { return o.Deleted(ctx, id) })
	return true
}

// Search matches query against title, name and description, case-insensitively.
func (r *Registry) Search(_ context.Context, query string, from, size int) (int64, []Record) {
	q := strings.ToLower(strings.TrimSpace(query))

	r.mu.RLock()
	var hits []Record
	for _, rec := range r.records {
		for _, field := range []string{"title", "name", "description"} {
			if q != "" && strings.Contains(strings.ToLower(rec.String(field)), q) {
				hits = append(hits, rec.clone())
				break
			}
		}
	}
	r.mu.RUnlock()

	total := int64(len(hits))
	if from < 0 {
		from = 0
	}
	if from >= len(hits) {
		return total, []Record{}
	}
	end := from + size
	if size <= 0 || end > len(hits) || end < from {
		end = len(hits)
	}
	return total, hits[from:end]
}

func (r *Registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}

func (r *Registry) indexOf(id string) int {
	for i, rec := range r.records {
		if rec.ID() == id {
			return i
		}
	}
	return -1
}

func (r *Registry) notify(ctx context.Context, action string, fn func(Observer) error) {
	for _, o := range r.observers {
		if err := fn(o); err != nil {
			logging.FromContext(ctx).Warn("registry_observer_error", "action", action, "observer", observerName(o), "error", err)
		}
	}
}

func observerName(o Observer) string {
	if n, ok := o.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "observer"
}

func decodeObject(payload []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil || rec == nil {
		return nil, ErrInvalidPayload
	}
	return rec, nil
}
