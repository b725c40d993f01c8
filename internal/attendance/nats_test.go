package attendance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"timeclock/gateway/internal/protocol"
)

func TestNATSPublisherSubjectAndPayload(t *testing.T) {
	var subject string
	var payload []byte
	p := &NATSPublisher{publish: func(s string, data []byte) error {
		subject, payload = s, data
		return nil
	}}

	ev := &protocol.AttendanceEvent{
		DeviceCode:   1001,
		DeviceUserID: "42",
		Type:         protocol.EventClockIn,
		EventTime:    time.Date(2026, 5, 6, 8, 0, 0, 0, time.UTC),
	}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if subject != "attendance.events.1001" {
		t.Fatalf("subject = %q", subject)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if decoded["device_user_id"] != "42" || decoded["type"] != "clock_in" || decoded["event_time"] != "2026-05-06T08:00:00Z" {
		t.Fatalf("payload = %s", payload)
	}
}

func TestNATSPublisherCancelledContext(t *testing.T) {
	called := false
	p := &NATSPublisher{publish: func(string, []byte) error {
		called = true
		return nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Publish(ctx, &protocol.AttendanceEvent{}); err == nil || called {
		t.Fatalf("err = %v, called = %v", err, called)
	}
}
