package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"timeclock/gateway/internal/store"
)

// DeviceStore keeps devices in process memory. Intended for tests and dev.
type DeviceStore struct {
	mu      sync.RWMutex
	nextID  int64
	devices map[int64]*store.DeviceRecord
}

func NewDeviceStore() *DeviceStore {
	return &DeviceStore{devices: make(map[int64]*store.DeviceRecord)}
}

func (s *DeviceStore) FindDevice(_ context.Context, code uint32, serial string) (*store.DeviceRecord, error) {
	serial = strings.TrimSpace(serial)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *store.DeviceRecord
	bestRank := -1
	for _, d := range s.devices {
		rank := matchRank(d, code, serial)
		if rank < 0 {
			continue
		}
		if best == nil || rank < bestRank || (rank == bestRank && d.ID < best.ID) {
			best, bestRank = d, rank
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return clone(best), nil
}

// matchRank orders candidates: enabled before disabled, code before serial.
// -1 means no match.
func matchRank(d *store.DeviceRecord, code uint32, serial string) int {
	rank := 0
	switch {
	case d.Code != 0 && d.Code == code:
	case serial != "" && d.Serial == serial:
		rank = 1
	default:
		return -1
	}
	if !d.Enabled {
		rank += 2
	}
	return rank
}

func (s *DeviceStore) UpsertDevice(_ context.Context, rec store.DeviceRecord) (int64, error) {
	rec.Serial = strings.TrimSpace(rec.Serial)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, d := range s.devices {
		if d.Serial == rec.Serial {
			d.Code = rec.Code
			d.Name = rec.Name
			d.Enabled = rec.Enabled
			return id, nil
		}
	}

	s.nextID++
	rec.ID = s.nextID
	rec.LastHeartbeat = nil
	rec.LastSync = nil
	s.devices[rec.ID] = &rec
	return rec.ID, nil
}

func (s *DeviceStore) TouchHeartbeat(_ context.Context, id int64, t time.Time) error {
	return s.touch(id, func(d *store.DeviceRecord) { d.LastHeartbeat = stamp(t) })
}

func (s *DeviceStore) TouchSync(_ context.Context, id int64, t time.Time) error {
	return s.touch(id, func(d *store.DeviceRecord) { d.LastSync = stamp(t) })
}

func (s *DeviceStore) touch(id int64, fn func(*store.DeviceRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(d)
	return nil
}

func stamp(t time.Time) *time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	t = t.UTC()
	return &t
}

func clone(d *store.DeviceRecord) *store.DeviceRecord {
	c := *d
	return &c
}
