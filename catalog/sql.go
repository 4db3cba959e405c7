package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"b2b-storefront/database"
	"b2b-storefront/models"
)

const productColumns = `id, articulo, nombre, marca, COALESCE(categoria, ''), precio, stock, COALESCE(imagen, ''), activo`

type SQLCatalog struct {
	db *database.DB
}

func NewSQLCatalog(db *database.DB) *SQLCatalog {
	return &SQLCatalog{db: db}
}

func (c *SQLCatalog) List(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM productos WHERE activo = ?`
	args := []interface{}{true}
	if f.Category != "" {
		query += ` AND categoria = ?`
		args = append(args, f.Category)
	}
	if f.Brand != "" {
		query += ` AND marca = ?`
		args = append(args, f.Brand)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		query += ` AND LOWER(nombre) LIKE ?`
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%")
	}
	query += ` ORDER BY nombre ASC`

	rows, err := c.db.QueryContext(ctx, database.Rebind(c.db.Driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (c *SQLCatalog) ByIDs(ctx context.Context, ids []string) (map[string]models.Product, error) {
	out := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT ` + productColumns + ` FROM productos WHERE activo = ? AND id IN (` + placeholders + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, true)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := c.db.QueryContext(ctx, database.Rebind(c.db.Driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("query products by id: %w", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	var out []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Article, &p.Name, &p.Brand, &p.Category, &p.Price, &p.Stock, &p.ImageURL, &p.Active); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
