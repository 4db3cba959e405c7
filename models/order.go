package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatedByWeb tags orders placed through the storefront.
const CreatedByWeb = "b2b-web"

type Order struct {
	ID             int64           `json:"id"`
	CustomerID     string          `json:"cliente_id"`
	CustomerHandle string          `json:"cliente,omitempty"`
	CreatedBy      string          `json:"created_by"`
	Status         OrderStatus     `json:"estado"`
	StatusLabel    string          `json:"estado_label"`
	Total          decimal.Decimal `json:"total"`
	DeliveryDate   time.Time       `json:"fecha_entrega"`
	CreatedAt      time.Time       `json:"created_at"`
	Lines          []OrderLine     `json:"items"`
}

type OrderLine struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"pedido_id"`
	ProductID string          `json:"producto_id"`
	Article   string          `json:"articulo"`
	Name      string          `json:"nombre"`
	Quantity  int             `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precio_unitario"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Customer struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
}

// ExportRow is one order line flattened with its parent order.
type ExportRow struct {
	Customer  string
	Article   string
	Quantity  int
	Subtotal  decimal.Decimal
	Status    OrderStatus
	CreatedAt time.Time
}

type OrderEvent struct {
	ID         string      `json:"id"`
	OrderID    int64       `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Type       string      `json:"type"` // created, status_updated, delivery_due
	Status     OrderStatus `json:"status"`
	Total      string      `json:"total"`
	Occurred   time.Time   `json:"occurred"`
}
