package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timeclock/gateway/internal/store"
)

// DeviceStore keeps terminals in PostgreSQL
type DeviceStore struct {
	db *gorm.DB
}

// NewDeviceStore creates a device store over db
func NewDeviceStore(db *gorm.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

// FindDevice prefers an enabled device, then a device-code match over a
// serial match.
func (s *DeviceStore) FindDevice(ctx context.Context, code uint32, serial string) (*store.DeviceRecord, error) {
	serial = strings.TrimSpace(serial)

	var device Device
	err := s.db.WithContext(ctx).
		Where("(device_code = ? AND device_code <> 0) OR (serial = ? AND serial <> '')", code, serial).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:  "enabled DESC, CASE WHEN device_code = ? THEN 0 ELSE 1 END, id",
			Vars: []interface{}{code},
		}}).
		Take(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}
	return device.toRecord(), nil
}

func (s *DeviceStore) UpsertDevice(ctx context.Context, rec store.DeviceRecord) (int64, error) {
	rec.Serial = strings.TrimSpace(rec.Serial)
	if rec.Serial == "" {
		return 0, fmt.Errorf("upsert device: empty serial")
	}

	device := Device{
		Serial:     rec.Serial,
		DeviceCode: rec.Code,
		Name:       rec.Name,
		Enabled:    rec.Enabled,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "serial"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_code", "name", "enabled", "updated_at"}),
	}).Create(&device).Error
	if err != nil {
		return 0, fmt.Errorf("upsert device: %w", err)
	}
	return device.ID, nil
}

func (s *DeviceStore) TouchHeartbeat(ctx context.Context, id int64, t time.Time) error {
	return s.touch(ctx, "last_heartbeat", id, t)
}

func (s *DeviceStore) TouchSync(ctx context.Context, id int64, t time.Time) error {
	return s.touch(ctx, "last_sync", id, t)
}

func (s *DeviceStore) touch(ctx context.Context, column string, id int64, t time.Time) error {
	if t.IsZero() {
		t = time.Now()
	}
	res := s.db.WithContext(ctx).Model(&Device{}).Where("id = ?", id).Update(column, t.UTC())
	if res.Error != nil {
		return fmt.Errorf("touch %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
