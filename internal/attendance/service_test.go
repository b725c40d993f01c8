package attendance

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"timeclock/gateway/internal/protocol"
	"timeclock/gateway/internal/store"
	"timeclock/gateway/internal/store/memory"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

var lobby = &protocol.Device{ID: 1, Serial: "SN-LOBBY", Code: 1001, Name: "Lobby"}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*protocol.AttendanceEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *protocol.AttendanceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type brokenStore struct{}

func (brokenStore) RecordAttendance(context.Context, store.AttendanceRecord) (bool, error) {
	return false, errors.New("disk full")
}

func TestServiceRecordsAndPublishes(t *testing.T) {
	st := memory.NewAttendanceStore()
	pub := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("nats down")}
	svc := NewService(st, failing, pub)

	at := time.Date(2026, 5, 6, 8, 0, 0, 0, time.UTC)
	md := map[string]interface{}{"verify_method": "card", "work_code": uint32(12), "realtime": true}

	res, err := svc.Ingest(context.Background(), lobby, protocol.EventClockIn, "42", at, md)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !res.Success || res.Message != MessageRecorded {
		t.Fatalf("result = %+v", res)
	}

	records := st.Records()
	if len(records) != 1 {
		t.Fatalf("stored %d records", len(records))
	}
	got := records[0]
	if got.VerifyMethod != "card" || got.WorkCode == nil || *got.WorkCode != 12 || got.EventType != "clock_in" {
		t.Fatalf("stored = %+v", got)
	}

	if len(pub.events) != 1 || len(failing.events) != 1 {
		t.Fatalf("published %d/%d events, want 1/1", len(pub.events), len(failing.events))
	}
	ev := pub.events[0]
	if ev.DeviceCode != 1001 || ev.DeviceSerial != "SN-LOBBY" || ev.DeviceUserID != "42" || !ev.EventTime.Equal(at) {
		t.Fatalf("event = %+v", ev)
	}
}

func TestServiceDuplicateNotPublished(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(memory.NewAttendanceStore(), pub)
	at := time.Date(2026, 5, 6, 8, 0, 0, 0, time.UTC)

	for i, want := range []string{MessageRecorded, MessageDuplicate} {
		res, err := svc.Ingest(context.Background(), lobby, protocol.EventClockOut, "42", at, nil)
		if err != nil || !res.Success || res.Message != want {
			t.Fatalf("call %d = %+v, %v; want %q", i, res, err, want)
		}
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
}

func TestServiceStoreError(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(brokenStore{}, pub)

	_, err := svc.Ingest(context.Background(), lobby, protocol.EventClockIn, "1", time.Now(), nil)
	if err == nil {
		t.Fatal("Ingest succeeded with a failing store")
	}
	if len(pub.events) != 0 {
		t.Fatal("event published after a store failure")
	}
}
