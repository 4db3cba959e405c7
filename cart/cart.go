// Package cart keeps each customer's cart: product id to quantity, persisted
// as a JSON object under the storage key "carrito_b2b".
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"b2b-storefront/events"
)

// StorageKey names the persisted cart payload.
const StorageKey = "carrito_b2b"

// ErrNotFound is returned by backends when nothing is stored for a key.
var ErrNotFound = errors.New("cart: no stored value")

// Cart maps product id to a positive quantity.
type Cart map[string]int

// Set stores qty for id; qty <= 0 removes the entry.
func (c Cart) Set(id string, qty int) {
	if qty <= 0 {
		delete(c, id)
		return
	}
	c[id] = qty
}

func (c Cart) Quantity(id string) int {
	return c[id]
}

// IDs returns the product ids in a stable order.
func (c Cart) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for id, qty := range c {
		out[id] = qty
	}
	return out
}

// Decode parses a stored payload. Non-positive and non-integer quantities
// are dropped and numeric strings are accepted, as older clients wrote them.
func Decode(data []byte) (Cart, error) {
	c := Cart{}
	if len(data) == 0 {
		return c, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	for id, v := range raw {
		qty, err := decodeQuantity(v)
		if err != nil {
			continue
		}
		c.Set(id, qty)
	}
	return c, nil
}

func decodeQuantity(v json.RawMessage) (int, error) {
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		i, err := strconv.Atoi(n.String())
		if err != nil {
			return 0, err
		}
		return i, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func Encode(c Cart) ([]byte, error) {
	if c == nil {
		c = Cart{}
	}
	return json.Marshal(c)
}

// Store is the cart contract every view uses.
type Store interface {
	Get(ctx context.Context, owner string) (Cart, error)
	// Set stores qty for productID; qty <= 0 removes it.
	Set(ctx context.Context, owner, productID string, qty int) (Cart, error)
	// Add increments the stored quantity by delta.
	Add(ctx context.Context, owner, productID string, delta int) (Cart, error)
	Clear(ctx context.Context, owner string) error
}

// Backend is a per-owner key-value store.
type Backend interface {
	Load(ctx context.Context, owner, key string) ([]byte, error)
	Save(ctx context.Context, owner, key string, data []byte) error
	Delete(ctx context.Context, owner, key string) error
}

// ChangedPayload is published on every cart mutation.
type ChangedPayload struct {
	Items Cart `json:"items"`
}

// Service implements Store over a Backend and announces every change.
type Service struct {
	backend   Backend
	publisher events.Publisher
}

func NewService(backend Backend, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Service{backend: backend, publisher: publisher}
}

func (s *Service) Get(ctx context.Context, owner string) (Cart, error) {
	data, err := s.backend.Load(ctx, owner, StorageKey)
	if errors.Is(err, ErrNotFound) {
		return Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return Decode(data)
}

func (s *Service) Set(ctx context.Context, owner, productID string, qty int) (Cart, error) {
	return s.update(ctx, owner, func(c Cart) { c.Set(productID, qty) })
}

func (s *Service) Add(ctx context.Context, owner, productID string, delta int) (Cart, error) {
	return s.update(ctx, owner, func(c Cart) { c.Set(productID, c.Quantity(productID)+delta) })
}

func (s *Service) Clear(ctx context.Context, owner string) error {
	if err := s.backend.Delete(ctx, owner, StorageKey); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.notify(ctx, owner, Cart{})
	return nil
}

func (s *Service) update(ctx context.Context, owner string, mutate func(Cart)) (Cart, error) {
	c, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	mutate(c)

	data, err := Encode(c)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Save(ctx, owner, StorageKey, data); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	s.notify(ctx, owner, c)
	return c, nil
}

func (s *Service) notify(ctx context.Context, owner string, c Cart) {
	_ = s.publisher.Publish(ctx, events.New(events.TopicCart, events.TypeCartChanged, owner, ChangedPayload{Items: c.Clone()}))
}
