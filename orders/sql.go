package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"b2b-storefront/database"
	"b2b-storefront/models"

	"github.com/shopspring/decimal"
)

const selectOrders = `
	SELECT o.id, o.cliente_id, COALESCE(c.handle, ''), o.created_by, o.estado, o.total, o.fecha_entrega, o.created_at,
	       oi.id, oi.producto_id, oi.articulo, oi.nombre, oi.cantidad, oi.precio_unitario, oi.subtotal
	FROM pedidos o
	LEFT JOIN clientes c ON c.id = o.cliente_id
	LEFT JOIN pedido_items oi ON oi.pedido_id = o.id`

// SQLRepository stores orders in the pedidos and pedido_items tables.
type SQLRepository struct {
	db     *database.DB
	q      database.Querier
	driver string
}

func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db, q: db, driver: db.Driver}
}

func (r *SQLRepository) WithinTx(ctx context.Context, fn func(Repository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&SQLRepository{db: r.db, q: tx, driver: r.driver}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLRepository) CreateHeader(ctx context.Context, o *models.Order) (int64, error) {
	id, err := database.InsertID(ctx, r.q, r.driver,
		`INSERT INTO pedidos (cliente_id, created_by, estado, total, fecha_entrega, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		o.CustomerID, o.CreatedBy, string(o.Status), o.Total, o.DeliveryDate.UTC(), o.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

func (r *SQLRepository) AddLine(ctx context.Context, l *models.OrderLine) (int64, error) {
	id, err := database.InsertID(ctx, r.q, r.driver,
		`INSERT INTO pedido_items (pedido_id, producto_id, articulo, nombre, cantidad, precio_unitario, subtotal) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.OrderID, l.ProductID, l.Article, l.Name, l.Quantity, l.UnitPrice, l.Subtotal,
	)
	if err != nil {
		return 0, fmt.Errorf("insert order item: %w", err)
	}
	return id, nil
}

func (r *SQLRepository) DeleteOrder(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, database.Rebind(r.driver, `DELETE FROM pedido_items WHERE pedido_id = ?`), id); err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}
	res, err := r.q.ExecContext(ctx, database.Rebind(r.driver, `DELETE FROM pedidos WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context, q Query) ([]models.Order, error) {
	query := selectOrders + ` WHERE 1 = 1`
	var args []interface{}
	if q.CustomerID != "" {
		query += ` AND o.cliente_id = ?`
		args = append(args, q.CustomerID)
	}
	if q.Status != "" {
		query += ` AND o.estado = ?`
		args = append(args, string(q.Status))
	}
	query += ` ORDER BY o.created_at DESC, o.id DESC, oi.id ASC`

	rows, err := r.q.QueryContext(ctx, database.Rebind(r.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (r *SQLRepository) Get(ctx context.Context, id int64) (models.Order, error) {
	rows, err := r.q.QueryContext(ctx, database.Rebind(r.driver, selectOrders+` WHERE o.id = ? ORDER BY oi.id ASC`), id)
	if err != nil {
		return models.Order{}, fmt.Errorf("query order: %w", err)
	}
	defer rows.Close()

	list, err := scanOrders(rows)
	if err != nil {
		return models.Order{}, err
	}
	if len(list) == 0 {
		return models.Order{}, ErrNotFound
	}
	return list[0], nil
}

func (r *SQLRepository) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	res, err := r.q.ExecContext(ctx, database.Rebind(r.driver, `UPDATE pedidos SET estado = ? WHERE id = ?`), string(status), id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports zero affected rows when the value did not change.
		var exists int
		err := r.q.QueryRowContext(ctx, database.Rebind(r.driver, `SELECT 1 FROM pedidos WHERE id = ?`), id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check order: %w", err)
		}
	}
	return nil
}

// scanOrders folds the order/item join into orders, keeping row order.
func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	var list []models.Order
	index := make(map[int64]int)

	for rows.Next() {
		var (
			o         models.Order
			status    string
			itemID    sql.NullInt64
			productID sql.NullString
			article   sql.NullString
			name      sql.NullString
			quantity  sql.NullInt64
			unitPrice decimal.NullDecimal
			subtotal  decimal.NullDecimal
			delivery  time.Time
			created   time.Time
		)
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.CustomerHandle, &o.CreatedBy, &status, &o.Total, &delivery, &created,
			&itemID, &productID, &article, &name, &quantity, &unitPrice, &subtotal); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		i, seen := index[o.ID]
		if !seen {
			o.Status = models.OrderStatus(status)
			o.DeliveryDate = delivery
			o.CreatedAt = created
			o.Lines = []models.OrderLine{}
			list = append(list, o)
			i = len(list) - 1
			index[o.ID] = i
		}
		if !itemID.Valid {
			continue
		}
		list[i].Lines = append(list[i].Lines, models.OrderLine{
			ID:        itemID.Int64,
			OrderID:   list[i].ID,
			ProductID: productID.String,
			Article:   article.String,
			Name:      name.String,
			Quantity:  int(quantity.Int64),
			UnitPrice: unitPrice.Decimal,
			Subtotal:  subtotal.Decimal,
		})
	}
	return list, rows.Err()
}
