// Package directory resolves terminals against the device store.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timeclock/gateway/internal/protocol"
	"timeclock/gateway/internal/store"
)

// Directory implements protocol.DeviceDirectory over a store.DeviceStore.
type Directory struct {
	store store.DeviceStore
	now   func() time.Time
}

func New(s store.DeviceStore) *Directory {
	return &Directory{store: s, now: time.Now}
}

// Lookup resolves an enabled device by code, falling back to serial.
func (d *Directory) Lookup(ctx context.Context, deviceCode uint32, serial string) (*protocol.Device, error) {
	rec, err := d.store.FindDevice(ctx, deviceCode, serial)
	if errors.Is(err, store.ErrNotFound) {
		return nil, protocol.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup device %d: %w", deviceCode, err)
	}
	if !rec.Enabled {
		return nil, protocol.ErrDeviceNotFound
	}
	return &protocol.Device{
		ID:     rec.ID,
		Serial: rec.Serial,
		Code:   rec.Code,
		Name:   rec.Name,
	}, nil
}

func (d *Directory) MarkHeartbeat(ctx context.Context, device *protocol.Device) error {
	if err := d.store.TouchHeartbeat(ctx, device.ID, d.now().UTC()); err != nil {
		return fmt.Errorf("mark heartbeat %s: %w", device.Serial, err)
	}
	return nil
}

func (d *Directory) MarkSynced(ctx context.Context, device *protocol.Device) error {
	if err := d.store.TouchSync(ctx, device.ID, d.now().UTC()); err != nil {
		return fmt.Errorf("mark synced %s: %w", device.Serial, err)
	}
	return nil
}
