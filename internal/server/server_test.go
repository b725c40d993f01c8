package server

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"timeclock/gateway/internal/adapter"
	"timeclock/gateway/internal/config"
	"timeclock/gateway/internal/mocks"
	"timeclock/gateway/internal/protocol"
)

const ackLen = 11

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		GatewayID:      "test",
		GatewayPort:    0,
		HTTPPort:       0,
		IdleTimeout:    time.Minute,
		WriteTimeout:   time.Second,
		CallTimeout:    time.Second,
		ChecksumPolicy: config.ChecksumOff,
	}
}

type serverFixture struct {
	adapter   *adapter.TerminalAdapter
	directory *mocks.MockDeviceDirectory
	sink      *mocks.MockAttendanceSink
	server    *TCPServer
}

// startServer runs a server on a loopback port. The directory resolves every
// device code and the sink accepts everything unless the test adds stricter
// expectations first.
func startServer(t *testing.T, cfg *config.Config, presence protocol.Presence) *serverFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	a := newTestAdapter()
	directory := mocks.NewMockDeviceDirectory(ctrl)
	sink := mocks.NewMockAttendanceSink(ctrl)

	directory.EXPECT().Lookup(gomock.Any(), gomock.Any(), gomock.Any()).Return(testDevice, nil).AnyTimes()
	directory.EXPECT().MarkHeartbeat(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	directory.EXPECT().MarkSynced(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	sink.EXPECT().Ingest(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(protocol.IngestResult{Success: true, Message: "recorded"}, nil).AnyTimes()

	srv := NewTCPServer(cfg, a, NewDispatcher(a, directory, sink, cfg.CallTimeout), presence, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return &serverFixture{adapter: a, directory: directory, sink: sink, server: srv}
}

func (f *serverFixture) dial(t *testing.T) net.Conn {
	t.Helper()
	port := f.server.Addr().(*net.TCPAddr).Port
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *serverFixture) frame(t *testing.T, code uint32, command byte, payload []byte) []byte {
	t.Helper()
	frame, err := f.adapter.EncodeFrame(code, command, payload)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	return frame
}

func readAck(t *testing.T, conn net.Conn) *adapter.Ack {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, ackLen)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("reading ack: %v", err)
	}
	ack, err := adapter.DecodeAck(buf)
	if err != nil {
		t.Fatalf("DecodeAck(% X): %v", buf, err)
	}
	return ack
}

func expectNoData(t *testing.T, conn net.Conn, wait time.Duration) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(wait))
	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected silence, got err=%v", err)
	}
}

func TestServerAcksHeartbeatGoldenVector(t *testing.T) {
	f := startServer(t, testConfig(), nil)
	conn := f.dial(t)

	if _, err := conn.Write([]byte{0xA5, 0x00, 0x00, 0x03, 0xE9, 0x7F, 0x00, 0x00, 0xF3, 0x3A}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, ackLen)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("reading ack: %v", err)
	}
	if got := hex.EncodeToString(buf); got != "a5000003e9ff000000433c" {
		t.Fatalf("ack = %s", got)
	}
}

func TestServerChunkedAndCoalescedFrames(t *testing.T) {
	f := startServer(t, testConfig(), nil)
	conn := f.dial(t)

	connect := f.frame(t, 1001, adapter.CmdConnect, nil)
	for i := range connect {
		if _, err := conn.Write(connect[i : i+1]); err != nil {
			t.Fatalf("Write: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if ack := readAck(t, conn); !ack.Acknowledges(adapter.CmdConnect) {
		t.Fatalf("first ack command = 0x%02X", ack.Command)
	}

	record := append([]byte{0x00, 0x11, 0x22}, f.frame(t, 1001, adapter.CmdRealtimeEvent, testRecord(f.adapter, 5, 0x00))...)
	heartbeat := f.frame(t, 1001, adapter.CmdHeartbeat, nil)
	burst := append(append(record, heartbeat...), heartbeat[:4]...)
	if _, err := conn.Write(burst); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if ack := readAck(t, conn); !ack.Acknowledges(adapter.CmdRealtimeEvent) {
		t.Fatalf("second ack command = 0x%02X", ack.Command)
	}
	if ack := readAck(t, conn); !ack.Acknowledges(adapter.CmdHeartbeat) {
		t.Fatalf("third ack command = 0x%02X", ack.Command)
	}
	expectNoData(t, conn, 100*time.Millisecond)

	if _, err := conn.Write(heartbeat[4:]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if ack := readAck(t, conn); !ack.Acknowledges(adapter.CmdHeartbeat) {
		t.Fatalf("completed split frame ack = 0x%02X", ack.Command)
	}
}

func TestServerUnknownCommandAck(t *testing.T) {
	f := startServer(t, testConfig(), nil)
	conn := f.dial(t)

	if _, err := conn.Write(f.frame(t, 42, 0x33, nil)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	ack := readAck(t, conn)
	if ack.DeviceCode != 42 || !ack.Acknowledges(0x33) || ack.ReturnCode != adapter.ReturnSuccess {
		t.Fatalf("ack = %+v", ack)
	}
}

func TestServerIdleSessionEvicted(t *testing.T) {
	cfg := testConfig()
	cfg.IdleTimeout = 200 * time.Millisecond
	f := startServer(t, cfg, nil)
	conn := f.dial(t)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, err := conn.Read(make([]byte, 1))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("read after idle timeout = %v, want EOF", err)
	}

	deadline := time.Now().Add(time.Second)
	for f.server.Sessions().Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session still registered after eviction")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServerActiveSessionKeptOpen(t *testing.T) {
	cfg := testConfig()
	cfg.IdleTimeout = 400 * time.Millisecond
	f := startServer(t, cfg, nil)
	conn := f.dial(t)
	heartbeat := f.frame(t, 1001, adapter.CmdHeartbeat, nil)

	// total elapsed exceeds the idle timeout, each gap stays under it
	for i := 0; i < 5; i++ {
		time.Sleep(200 * time.Millisecond)
		if _, err := conn.Write(heartbeat); err != nil {
			t.Fatalf("heartbeat %d: %v", i, err)
		}
		readAck(t, conn)
	}
	if n := f.server.Sessions().Count(); n != 1 {
		t.Fatalf("Sessions().Count() = %d, want 1", n)
	}
}

func TestServerChecksumPolicy(t *testing.T) {
	tests := []struct {
		policy  string
		wantAck bool
	}{
		{config.ChecksumOff, true},
		{config.ChecksumWarn, true},
		{config.ChecksumStrict, false},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			cfg := testConfig()
			cfg.ChecksumPolicy = tt.policy
			f := startServer(t, cfg, nil)
			conn := f.dial(t)

			corrupt := f.frame(t, 1001, adapter.CmdHeartbeat, nil)
			corrupt[len(corrupt)-1] ^= 0xFF
			if _, err := conn.Write(corrupt); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if tt.wantAck {
				readAck(t, conn)
			} else {
				expectNoData(t, conn, 150*time.Millisecond)
			}

			// connection stays usable
			if _, err := conn.Write(f.frame(t, 1001, adapter.CmdHeartbeat, nil)); err != nil {
				t.Fatalf("Write: %v", err)
			}
			readAck(t, conn)
		})
	}
}

func TestServerSessionBindsDeviceAndPresence(t *testing.T) {
	ctrl := gomock.NewController(t)
	presence := mocks.NewMockPresence(ctrl)

	f := startServer(t, testConfig(), presence)
	conn := f.dial(t)

	var sessionID string
	presence.EXPECT().Register(gomock.Any(), uint32(1001), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uint32, id, _ string) error {
			sessionID = id
			return nil
		})
	presence.EXPECT().Refresh(gomock.Any(), uint32(1001), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uint32, id, _ string) error {
			if id != sessionID {
				t.Errorf("Refresh session = %q, want %q", id, sessionID)
			}
			return nil
		})
	presence.EXPECT().Unregister(gomock.Any(), uint32(1001), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uint32, id string) error {
			if id != sessionID {
				t.Errorf("Unregister session = %q, want %q", id, sessionID)
			}
			return nil
		})

	conn.Write(f.frame(t, 1001, adapter.CmdConnect, nil))
	readAck(t, conn)
	conn.Write(f.frame(t, 1001, adapter.CmdHeartbeat, nil))
	readAck(t, conn)

	snap := f.server.Sessions().Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot has %d sessions", len(snap))
	}
	if snap[0].DeviceCode == nil || *snap[0].DeviceCode != 1001 {
		t.Fatalf("device code = %v, want 1001", snap[0].DeviceCode)
	}
	if snap[0].Frames != 2 {
		t.Fatalf("frames = %d, want 2", snap[0].Frames)
	}

	conn.Close()
	f.server.Stop()
}

func TestServerHeartbeatOnlySessionTracksPresence(t *testing.T) {
	ctrl := gomock.NewController(t)
	presence := mocks.NewMockPresence(ctrl)

	f := startServer(t, testConfig(), presence)
	conn := f.dial(t)

	var sessionID string
	gomock.InOrder(
		presence.EXPECT().Refresh(gomock.Any(), uint32(1001), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ uint32, id, _ string) error {
				sessionID = id
				return nil
			}),
		presence.EXPECT().Unregister(gomock.Any(), uint32(1001), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ uint32, id string) error {
				if id != sessionID {
					t.Errorf("Unregister session = %q, want %q", id, sessionID)
				}
				return nil
			}),
	)

	conn.Write(f.frame(t, 1001, adapter.CmdHeartbeat, nil))
	readAck(t, conn)

	snap := f.server.Sessions().Snapshot()
	if len(snap) != 1 || snap[0].DeviceCode == nil || *snap[0].DeviceCode != 1001 {
		t.Fatalf("snapshot = %+v", snap)
	}

	conn.Close()
	f.server.Stop()
}

func TestServerPresenceFollowsBoundCodeOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	presence := mocks.NewMockPresence(ctrl)

	f := startServer(t, testConfig(), presence)
	conn := f.dial(t)

	// nothing is expected for 2002: the session stays bound to 1001
	presence.EXPECT().Register(gomock.Any(), uint32(1001), gomock.Any(), gomock.Any()).Return(nil)
	presence.EXPECT().Unregister(gomock.Any(), uint32(1001), gomock.Any()).Return(nil)

	conn.Write(f.frame(t, 1001, adapter.CmdConnect, nil))
	readAck(t, conn)
	conn.Write(f.frame(t, 2002, adapter.CmdConnect, nil))
	readAck(t, conn)
	conn.Write(f.frame(t, 2002, adapter.CmdHeartbeat, nil))
	readAck(t, conn)

	snap := f.server.Sessions().Snapshot()
	if len(snap) != 1 || *snap[0].DeviceCode != 1001 {
		t.Fatalf("snapshot = %+v", snap)
	}

	conn.Close()
	f.server.Stop()
}
