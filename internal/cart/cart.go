package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Skotchmaster/revoshop/internal/logging"
	"github.com/Skotchmaster/revoshop/internal/models"
)

// StorageKey is the well-known key the cart is persisted under. Per-browser
// carts append the browser's cart id.
const StorageKey = "cart"

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidProduct  = errors.New("product id is required")
)

func Key(cartID string) string {
	if cartID == "" {
		return StorageKey
	}
	return StorageKey + ":" + cartID
}

type Line struct {
	models.Product
	Quantity int `json:"quantity"`
}

func (l Line) Total() float64 {
	return l.Price * float64(l.Quantity)
}

type Store struct {
	mu      sync.Mutex
	storage Storage
	key     string
	lines   []Line
}

// Load reads the persisted cart once. Anything unreadable yields an empty
// cart.
func Load(ctx context.Context, storage Storage, key string) *Store {
	s := &Store{storage: storage, key: key}

	raw, err := storage.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.FromContext(ctx).Warn("cart_load_error", "key", key, "reason", "storage read failed", "error", err)
		}
		return s
	}

	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		logging.FromContext(ctx).Warn("cart_load_error", "key", key, "reason", "malformed cart", "error", err)
		return s
	}
	s.lines = normalize(lines)
	return s
}

// normalize drops lines that break the store's invariants and folds
// duplicate ids into one line.
func normalize(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	idx := make(map[models.ID]int, len(lines))
	for _, l := range lines {
		if l.ID == "" || l.Quantity < 1 {
			continue
		}
		if i, ok := idx[l.ID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.ID] = len(out)
		out = append(out, l)
	}
	return out
}

func (s *Store) AddToCart(ctx context.Context, p models.Product, quantity int) error {
	if p.ID == "" {
		return ErrInvalidProduct
	}
	if quantity < 1 {
		return fmt.Errorf("add %s x%d: %w", p.ID, quantity, ErrInvalidQuantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(p.ID); i >= 0 {
		s.lines[i].Quantity += quantity
	} else {
		s.lines = append(s.lines, Line{Product: p, Quantity: quantity})
	}
	return s.persist(ctx)
}

func (s *Store) RemoveFromCart(ctx context.Context, id models.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	}
	return s.persist(ctx)
}

func (s *Store) UpdateQuantity(ctx context.Context, id models.ID, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("update %s to %d: %w", id, quantity, ErrInvalidQuantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		s.lines[i].Quantity = quantity
	}
	return s.persist(ctx)
}

func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	return s.persist(ctx)
}

func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) Subtotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, l := range s.lines {
		total += l.Total()
	}
	return total
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

func (s *Store) indexOf(id models.ID) int {
	for i := range s.lines {
		if s.lines[i].ID == id {
			return i
		}
	}
	return -1
}

// persist writes the full line list; callers hold s.mu.
func (s *Store) persist(ctx context.Context) error {
	lines := s.lines
	if lines == nil {
		lines = []Line{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.storage.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("persist cart %s: %w", s.key, err)
	}
	return nil
}
