package shopapi

import (
	"errors"

	"github.com/Skotchmaster/revoshop/internal/models"
)

var (
	ErrNotFound = errors.New("upstream: not found")
	ErrUpstream = errors.New("upstream: request failed")
)

type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	default:
		return "unavailable"
	}
}

// Result is returned by every read. Callers pick their own fallback.
type Result[T any] struct {
	Value  T
	Status Status
	Err    error
}

func (r Result[T]) OK() bool { return r.Status == StatusOK }

func (r Result[T]) NotFound() bool { return r.Status == StatusNotFound }

func (r Result[T]) Or(fallback T) T {
	if r.OK() {
		return r.Value
	}
	return fallback
}

const PlaceholderTitle = "Product unavailable"

// Placeholder stands in for a product the catalog no longer has.
func Placeholder(id string) models.Product {
	return models.Product{
		ID:          models.ID(id),
		Title:       PlaceholderTitle,
		Images:      []string{},
		Unavailable: true,
	}
}

// ProductOrPlaceholder resolves a single-product read: not-found becomes the
// placeholder, any other failure is returned as an error.
func ProductOrPlaceholder(r Result[models.Product], id string) (models.Product, error) {
	switch r.Status {
	case StatusOK:
		return r.Value, nil
	case StatusNotFound:
		return Placeholder(id), nil
	default:
		return models.Product{}, r.Err
	}
}
