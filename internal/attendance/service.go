// Package attendance turns decoded clock records into stored events.
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"timeclock/gateway/internal/protocol"
	"timeclock/gateway/internal/store"
)

const (
	MessageRecorded  = "recorded"
	MessageDuplicate = "duplicate"
)

// Publisher receives every newly recorded event
type Publisher interface {
	Publish(ctx context.Context, event *protocol.AttendanceEvent) error
}

// Service is the local attendance sink. It persists each event and, when the
// event is new, fans it out to the publishers.
type Service struct {
	store      store.AttendanceStore
	publishers []Publisher
	now        func() time.Time
}

func NewService(s store.AttendanceStore, publishers ...Publisher) *Service {
	return &Service{store: s, publishers: publishers, now: time.Now}
}

// Ingest implements protocol.AttendanceSink.
func (s *Service) Ingest(ctx context.Context, device *protocol.Device, eventType protocol.EventType, deviceUserID string, eventTime time.Time, metadata map[string]interface{}) (protocol.IngestResult, error) {
	receivedAt := s.now().UTC()
	rec := store.AttendanceRecord{
		DeviceID:     device.ID,
		DeviceUserID: deviceUserID,
		EventType:    string(eventType),
		EventTime:    eventTime,
		VerifyMethod: stringValue(metadata["verify_method"]),
		WorkCode:     workCode(metadata["work_code"]),
		Metadata:     metadata,
		ReceivedAt:   receivedAt,
	}

	inserted, err := s.store.RecordAttendance(ctx, rec)
	if err != nil {
		return protocol.IngestResult{}, fmt.Errorf("record attendance: %w", err)
	}
	if !inserted {
		return protocol.IngestResult{Success: true, Message: MessageDuplicate}, nil
	}

	event := &protocol.AttendanceEvent{
		DeviceID:     device.ID,
		DeviceSerial: device.Serial,
		DeviceCode:   device.Code,
		DeviceUserID: deviceUserID,
		Type:         eventType,
		EventTime:    eventTime,
		ReceivedAt:   receivedAt,
		Extras:       metadata,
	}
	for _, p := range s.publishers {
		if err := p.Publish(ctx, event); err != nil {
			log.Warn().Err(err).
				Int64("device_id", device.ID).
				Str("user_id", deviceUserID).
				Msg("attendance event publish failed")
		}
	}
	return protocol.IngestResult{Success: true, Message: MessageRecorded}, nil
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func workCode(v interface{}) *uint32 {
	switch n := v.(type) {
	case uint32:
		return &n
	case *uint32:
		return n
	default:
		return nil
	}
}
