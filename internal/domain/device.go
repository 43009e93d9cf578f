package domain

import (
	"time"

	"github.com/google/uuid"
)

// Device represents a registered reading device belonging to a user.
// LastSyncAt is the device's sync cursor: an exclusive lower bound for
// "what changed since last sync" queries. It is nil until the device
// completes its first sync.
type Device struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Name       string     `json:"name"`
	DeviceType string     `json:"device_type"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewDevice creates a Device with a fresh ID and no sync cursor.
func NewDevice(userID uuid.UUID, name, deviceType string) (*Device, error) {
	d := &Device{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       name,
		DeviceType: deviceType,
		CreatedAt:  time.Now().UTC(),
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}

	return d, nil
}

// Validate checks if the Device has valid data.
func (d *Device) Validate() error {
	if d.ID == uuid.Nil || d.UserID == uuid.Nil {
		return ErrInvalidID
	}

	if d.Name == "" {
		return ErrValidation
	}

	return nil
}

// SyncCursor returns the device's last sync time, or the zero time if the
// device has never synced. The zero time makes every row "changed since".
func (d *Device) SyncCursor() time.Time {
	if d.LastSyncAt == nil {
		return time.Time{}
	}
	return *d.LastSyncAt
}
