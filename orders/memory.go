package orders

import (
	"context"
	"sort"
	"sync"

	"b2b-storefront/models"
)

// MemoryRepository keeps orders in memory. It has no transactions, so
// checkout falls back to compensation against it.
type MemoryRepository struct {
	mu        sync.RWMutex
	orders    map[int64]*models.Order
	customers map[string]string
	nextOrder int64
	nextLine  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:    make(map[int64]*models.Order),
		customers: make(map[string]string),
	}
}

// SetCustomer registers a customer's display handle.
func (r *MemoryRepository) SetCustomer(c models.Customer) {
	r.mu.Lock()
	r.customers[c.ID] = c.Handle
	r.mu.Unlock()
}

func (r *MemoryRepository) CreateHeader(_ context.Context, o *models.Order) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextOrder++
	stored := *o
	stored.ID = r.nextOrder
	stored.Lines = nil
	r.orders[stored.ID] = &stored
	return stored.ID, nil
}

func (r *MemoryRepository) AddLine(_ context.Context, l *models.OrderLine) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[l.OrderID]
	if !ok {
		return 0, ErrNotFound
	}
	r.nextLine++
	stored := *l
	stored.ID = r.nextLine
	o.Lines = append(o.Lines, stored)
	return stored.ID, nil
}

func (r *MemoryRepository) DeleteOrder(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, q Query) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if q.CustomerID != "" && o.CustomerID != q.CustomerID {
			continue
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		out = append(out, r.snapshot(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	return r.snapshot(o), nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id int64, status models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

// Count returns the number of stored orders.
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

func (r *MemoryRepository) snapshot(o *models.Order) models.Order {
	out := *o
	out.Lines = append([]models.OrderLine(nil), o.Lines...)
	out.CustomerHandle = r.customers[o.CustomerID]
	return out
}
