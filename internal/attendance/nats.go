package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"timeclock/gateway/internal/protocol"
)

const (
	StreamEvents   = "ATTENDANCE_EVENTS"
	SubjectPrefix  = "attendance.events"
	streamSubjects = SubjectPrefix + ".*"
)

// Subject is the NATS subject for a device's events
func Subject(deviceCode uint32) string {
	return fmt.Sprintf("%s.%d", SubjectPrefix, deviceCode)
}

// NATSPublisher publishes recorded events to NATS, through JetStream when
// enabled.
type NATSPublisher struct {
	publish func(subject string, data []byte) error
}

// NewNATSPublisher uses core NATS publish
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{publish: nc.Publish}
}

// NewJetStreamPublisher ensures the event stream exists and publishes with
// acknowledgement.
func NewJetStreamPublisher(nc *nats.Conn) (*NATSPublisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}
	if err := ensureStream(js); err != nil {
		return nil, err
	}
	return &NATSPublisher{publish: func(subject string, data []byte) error {
		_, err := js.Publish(subject, data)
		return err
	}}, nil
}

func ensureStream(js nats.JetStreamContext) error {
	cfg := &nats.StreamConfig{
		Name:      StreamEvents,
		Subjects:  []string{streamSubjects},
		Retention: nats.LimitsPolicy,
		MaxMsgs:   -1,
		MaxBytes:  2 * 1024 * 1024 * 1024,
		MaxAge:    30 * 24 * time.Hour,
		Storage:   nats.FileStorage,
		Replicas:  1,
	}
	_, err := js.AddStream(cfg)
	if err == nil {
		return nil
	}
	if err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to create stream %s: %w", cfg.Name, err)
	}
	if _, err := js.UpdateStream(cfg); err != nil {
		return fmt.Errorf("failed to update stream %s: %w", cfg.Name, err)
	}
	return nil
}

// Publish implements Publisher
func (p *NATSPublisher) Publish(ctx context.Context, event *protocol.AttendanceEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.publish(Subject(event.DeviceCode), data)
}
