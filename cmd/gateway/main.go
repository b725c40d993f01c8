package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"timeclock/gateway/internal/adapter"
	"timeclock/gateway/internal/attendance"
	"timeclock/gateway/internal/config"
	"timeclock/gateway/internal/db"
	"timeclock/gateway/internal/directory"
	"timeclock/gateway/internal/logging"
	"timeclock/gateway/internal/presence"
	"timeclock/gateway/internal/protocol"
	"timeclock/gateway/internal/roster"
	"timeclock/gateway/internal/server"
	"timeclock/gateway/internal/store"
	"timeclock/gateway/internal/store/memory"
	"timeclock/gateway/internal/store/postgres"
	"timeclock/gateway/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
	logging.Configure(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("gateway_id", cfg.GatewayID).Int("port", cfg.GatewayPort).Msg("starting attendance gateway")

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid device timezone")
	}
	commands := cfg.CommandSet()
	log.Info().
		Str("timezone", loc.String()).
		Hex("realtime_commands", commands.Realtime).
		Hex("upload_commands", commands.Upload).
		Str("checksum_policy", cfg.ChecksumPolicy).
		Msg("protocol configured")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	localSink := cfg.SinkMode != config.SinkHTTP
	devices, events, closeStores, err := openStores(ctx, cfg, localSink)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer closeStores()
	log.Info().Str("driver", cfg.StoreDriver).Bool("attendance_store", events != nil).Msg("store ready")

	if cfg.DeviceRoster != "" {
		r, err := roster.Load(cfg.DeviceRoster)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load device roster")
		}
		n, err := r.Seed(ctx, devices)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to seed device roster")
		}
		log.Info().Int("devices", n).Str("path", cfg.DeviceRoster).Msg("device roster seeded")
	}

	sink, hub, closeSink, err := buildSink(ctx, cfg, events)
	if err != nil {
		log.Fatal().Err(err).Str("sink", cfg.SinkMode).Msg("failed to set up attendance sink")
	}
	defer closeSink()

	var registry protocol.Presence
	if cfg.RedisURL != "" {
		client, err := presence.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer client.Close()
		registry = presence.NewRegistry(client, cfg.GatewayID, cfg.IdleTimeout)
		log.Info().Msg("connected to Redis")
	}

	terminal := adapter.NewTerminalAdapter(commands, loc)
	dispatcher := server.NewDispatcher(terminal, directory.New(devices), sink, cfg.CallTimeout)

	tcpServer := server.NewTCPServer(cfg, terminal, dispatcher, registry, hub)
	if err := tcpServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start TCP server")
	}
	log.Info().Str("listen", tcpServer.Addr().String()).Int("http_port", cfg.HTTPPort).Msg("gateway started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	tcpServer.Stop()
	cancel()
	log.Info().Msg("gateway stopped")
}

// openStores opens the configured backend. The attendance store is only
// built when events are recorded locally; it is nil otherwise.
func openStores(ctx context.Context, cfg *config.Config, withAttendance bool) (store.DeviceStore, store.AttendanceStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		if !withAttendance {
			return memory.NewDeviceStore(), nil, func() {}, nil
		}
		return memory.NewDeviceStore(), memory.NewAttendanceStore(), func() {}, nil

	case config.StorePostgres:
		gdb, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := gdb.DB(); err == nil {
				sqlDB.Close()
			}
		}
		if !withAttendance {
			return postgres.NewDeviceStore(gdb), nil, closeFn, nil
		}
		return postgres.NewDeviceStore(gdb), postgres.NewAttendanceStore(gdb), closeFn, nil

	default:
		conn, err := db.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		writer := db.NewWorker(conn)
		closeFn := func() {
			writer.Close()
			conn.Close()
		}
		if !withAttendance {
			return sqlite.NewDeviceStore(conn, writer), nil, closeFn, nil
		}
		return sqlite.NewDeviceStore(conn, writer), sqlite.NewAttendanceStore(conn, writer), closeFn, nil
	}
}

// buildSink wires the attendance sink for cfg.SinkMode. NATS and the local
// hub only exist for the local sink; the http sink forwards and keeps nothing.
func buildSink(ctx context.Context, cfg *config.Config, events store.AttendanceStore) (protocol.AttendanceSink, *server.Hub, func(), error) {
	if cfg.SinkMode == config.SinkHTTP {
		sink := attendance.NewRemoteSink(attendance.RemoteConfig{
			BaseURL: cfg.AttendanceAPIURL,
			APIKey:  cfg.AttendanceAPIKey,
			Timeout: cfg.SinkTimeout,
		})
		log.Info().Str("url", cfg.AttendanceAPIURL).Msg("forwarding attendance to remote API")
		return sink, nil, func() {}, nil
	}
	if events == nil {
		return nil, nil, nil, fmt.Errorf("local sink needs an attendance store")
	}

	closeFn := func() {}
	publishers := []attendance.Publisher{}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("attendance-gateway-"+cfg.GatewayID))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect NATS: %w", err)
		}
		log.Info().Str("url", cfg.NATSURL).Msg("connected to NATS")
		pub, err := natsPublisher(nc, cfg.JetStreamEnabled)
		if err != nil {
			nc.Close()
			return nil, nil, nil, fmt.Errorf("NATS publisher: %w", err)
		}
		publishers = append(publishers, pub)
		closeFn = nc.Close
	}

	hub := server.NewHub()
	go hub.Run(ctx)
	publishers = append([]attendance.Publisher{hub}, publishers...)

	return attendance.NewService(events, publishers...), hub, closeFn, nil
}

func natsPublisher(nc *nats.Conn, jetStream bool) (*attendance.NATSPublisher, error) {
	if !jetStream {
		return attendance.NewNATSPublisher(nc), nil
	}
	pub, err := attendance.NewJetStreamPublisher(nc)
	if err != nil {
		return nil, err
	}
	log.Info().Str("stream", attendance.StreamEvents).Msg("JetStream enabled")
	return pub, nil
}
