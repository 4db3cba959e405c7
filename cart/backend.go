package cart

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"b2b-storefront/database"
)

type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (b *MemoryBackend) Load(_ context.Context, owner, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[owner+"\x00"+key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (b *MemoryBackend) Save(_ context.Context, owner, key string, data []byte) error {
	b.mu.Lock()
	b.data[owner+"\x00"+key] = append([]byte(nil), data...)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, owner, key string) error {
	b.mu.Lock()
	delete(b.data, owner+"\x00"+key)
	b.mu.Unlock()
	return nil
}

// SQLBackend stores payloads in the client_storage table.
type SQLBackend struct {
	db *database.DB
}

func NewSQLBackend(db *database.DB) *SQLBackend {
	return &SQLBackend{db: db}
}

func (b *SQLBackend) Load(ctx context.Context, owner, key string) ([]byte, error) {
	var payload string
	err := b.db.QueryRowContext(ctx,
		database.Rebind(b.db.Driver, `SELECT payload FROM client_storage WHERE owner = ? AND storage_key = ?`),
		owner, key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

func (b *SQLBackend) Save(ctx context.Context, owner, key string, data []byte) error {
	query := `INSERT INTO client_storage (owner, storage_key, payload, updated_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated_at = VALUES(updated_at)`
	if b.db.Driver == database.DriverPostgres {
		query = `INSERT INTO client_storage (owner, storage_key, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (owner, storage_key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	}
	_, err := b.db.ExecContext(ctx, database.Rebind(b.db.Driver, query), owner, key, string(data), time.Now().UTC())
	return err
}

func (b *SQLBackend) Delete(ctx context.Context, owner, key string) error {
	_, err := b.db.ExecContext(ctx,
		database.Rebind(b.db.Driver, `DELETE FROM client_storage WHERE owner = ? AND storage_key = ?`),
		owner, key,
	)
	return err
}
