package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/domain"
	"github.com/phrazzld/shelfsync/internal/store"
)

// DeviceStore implements store.DeviceStore using PostgreSQL.
type DeviceStore struct {
	db store.DBTX
}

// NewDeviceStore creates a DeviceStore.
func NewDeviceStore(db store.DBTX) *DeviceStore {
	return &DeviceStore{db: db}
}

// WithTx returns a DeviceStore bound to the given transaction.
func (s *DeviceStore) WithTx(tx *sql.Tx) store.DeviceStore {
	return NewDeviceStore(tx)
}

// GetByID retrieves a device by ID.
func (s *DeviceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Device, error) {
	query := `
		SELECT id, user_id, name, device_type, last_sync_at, created_at
		FROM devices
		WHERE id = $1
	`

	var d domain.Device
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.UserID, &d.Name, &d.DeviceType, &d.LastSyncAt, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &d, nil
}

// Create persists a newly registered device.
func (s *DeviceStore) Create(ctx context.Context, d *domain.Device) error {
	query := `
		INSERT INTO devices (id, user_id, name, device_type, last_sync_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.UserID, d.Name, d.DeviceType, d.LastSyncAt, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// UpdateLastSync advances the device's sync cursor.
func (s *DeviceStore) UpdateLastSync(ctx context.Context, deviceID uuid.UUID, syncedAt time.Time) error {
	query := `UPDATE devices SET last_sync_at = $2 WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, deviceID, syncedAt)
	if err != nil {
		return fmt.Errorf("failed to update last sync: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrDeviceNotFound
	}
	return nil
}

var _ store.DeviceStore = (*DeviceStore)(nil)
