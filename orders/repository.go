package orders

import (
	"context"
	"errors"

	"b2b-storefront/models"
)

var ErrNotFound = errors.New("orders: not found")

// Query selects orders for listing. An empty CustomerID means every customer;
// an empty Status means every status.
type Query struct {
	CustomerID string
	Status     models.OrderStatus
}

type Repository interface {
	CreateHeader(ctx context.Context, o *models.Order) (int64, error)
	AddLine(ctx context.Context, l *models.OrderLine) (int64, error)
	// DeleteOrder removes a header and its lines. Only checkout compensation
	// uses it; placed orders are never deleted.
	DeleteOrder(ctx context.Context, id int64) error
	List(ctx context.Context, q Query) ([]models.Order, error)
	Get(ctx context.Context, id int64) (models.Order, error)
	UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) error
}

// Transactor is implemented by repositories that can run several writes
// atomically. fn receives a Repository bound to the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(Repository) error) error
}
