package database

import (
	"context"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS clientes (
		id VARCHAR(64) PRIMARY KEY,
		handle VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS productos (
		id VARCHAR(64) PRIMARY KEY,
		articulo VARCHAR(64) NOT NULL,
		nombre VARCHAR(255) NOT NULL,
		marca VARCHAR(128) NOT NULL DEFAULT '',
		categoria VARCHAR(128) NULL,
		precio DECIMAL(14,4) NOT NULL DEFAULT 0,
		stock INT NOT NULL DEFAULT 0,
		imagen VARCHAR(512) NULL,
		activo BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS pedidos (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		cliente_id VARCHAR(64) NOT NULL,
		created_by VARCHAR(32) NOT NULL,
		estado VARCHAR(16) NOT NULL,
		total DECIMAL(16,4) NOT NULL,
		fecha_entrega DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		INDEX idx_pedidos_cliente (cliente_id),
		INDEX idx_pedidos_estado (estado)
	)`,
	`CREATE TABLE IF NOT EXISTS pedido_items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		pedido_id BIGINT NOT NULL,
		producto_id VARCHAR(64) NOT NULL,
		articulo VARCHAR(64) NOT NULL,
		nombre VARCHAR(255) NOT NULL,
		cantidad INT NOT NULL,
		precio_unitario DECIMAL(14,4) NOT NULL,
		subtotal DECIMAL(16,4) NOT NULL,
		INDEX idx_items_pedido (pedido_id)
	)`,
	`CREATE TABLE IF NOT EXISTS client_storage (
		owner VARCHAR(64) NOT NULL,
		storage_key VARCHAR(64) NOT NULL,
		payload TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (owner, storage_key)
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS clientes (
		id VARCHAR(64) PRIMARY KEY,
		handle VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS productos (
		id VARCHAR(64) PRIMARY KEY,
		articulo VARCHAR(64) NOT NULL,
		nombre VARCHAR(255) NOT NULL,
		marca VARCHAR(128) NOT NULL DEFAULT '',
		categoria VARCHAR(128) NULL,
		precio NUMERIC(14,4) NOT NULL DEFAULT 0,
		stock INT NOT NULL DEFAULT 0,
		imagen VARCHAR(512) NULL,
		activo BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS pedidos (
		id BIGSERIAL PRIMARY KEY,
		cliente_id VARCHAR(64) NOT NULL,
		created_by VARCHAR(32) NOT NULL,
		estado VARCHAR(16) NOT NULL,
		total NUMERIC(16,4) NOT NULL,
		fecha_entrega TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pedidos_cliente ON pedidos (cliente_id)`,
	`CREATE INDEX IF NOT EXISTS idx_pedidos_estado ON pedidos (estado)`,
	`CREATE TABLE IF NOT EXISTS pedido_items (
		id BIGSERIAL PRIMARY KEY,
		pedido_id BIGINT NOT NULL REFERENCES pedidos(id) ON DELETE CASCADE,
		producto_id VARCHAR(64) NOT NULL,
		articulo VARCHAR(64) NOT NULL,
		nombre VARCHAR(255) NOT NULL,
		cantidad INT NOT NULL,
		precio_unitario NUMERIC(14,4) NOT NULL,
		subtotal NUMERIC(16,4) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_pedido ON pedido_items (pedido_id)`,
	`CREATE TABLE IF NOT EXISTS client_storage (
		owner VARCHAR(64) NOT NULL,
		storage_key VARCHAR(64) NOT NULL,
		payload TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (owner, storage_key)
	)`,
}

// Migrate creates the storefront tables when they are missing.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := mysqlSchema
	if d.Driver == DriverPostgres {
		stmts = postgresSchema
	}
	for i, stmt := range stmts {
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
