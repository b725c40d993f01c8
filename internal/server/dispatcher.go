package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"timeclock/gateway/internal/adapter"
	"timeclock/gateway/internal/protocol"
)

// Outcome is what the dispatcher decided for one packet.
type Outcome struct {
	Kind     protocol.CommandKind
	Device   *protocol.Device // nil when the device did not resolve
	Records  int              // records decoded from the payload
	Ingested int              // records the sink accepted
	Ack      []byte
}

// Dispatcher routes packets to the directory and the attendance sink and
// always produces an acknowledgement.
type Dispatcher struct {
	adapter     protocol.ProtocolAdapter
	directory   protocol.DeviceDirectory
	sink        protocol.AttendanceSink
	callTimeout time.Duration
}

// NewDispatcher creates a dispatcher. callTimeout bounds the collaborator
// calls made for a single packet; zero means no bound.
func NewDispatcher(a protocol.ProtocolAdapter, directory protocol.DeviceDirectory, sink protocol.AttendanceSink, callTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		adapter:     a,
		directory:   directory,
		sink:        sink,
		callTimeout: callTimeout,
	}
}

// Dispatch handles one packet. Errors from decoding or from the collaborators
// are logged and never change the acknowledgement.
func (d *Dispatcher) Dispatch(ctx context.Context, pkt *protocol.Packet, logger zerolog.Logger) Outcome {
	if d.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}

	logger = logger.With().
		Uint32("device_code", pkt.DeviceCode).
		Str("command", fmt.Sprintf("0x%02X", pkt.Command)).
		Stringer("kind", pkt.Kind).
		Logger()

	out := Outcome{Kind: pkt.Kind}
	switch pkt.Kind {
	case protocol.KindConnect:
		out.Device = d.handleConnect(ctx, pkt, logger)
	case protocol.KindHeartbeat:
		out.Device = d.handleHeartbeat(ctx, pkt, logger)
	case protocol.KindRealtimeRecord, protocol.KindRecordUpload:
		out.Device, out.Records, out.Ingested = d.handleRecords(ctx, pkt, logger)
	case protocol.KindUnknown:
		d.handleUnknown(pkt, logger)
	default:
		d.handleUnknown(pkt, logger)
	}

	out.Ack = d.adapter.EncodeAck(pkt.DeviceCode, pkt.Command, nil)
	return out
}

func (d *Dispatcher) handleConnect(ctx context.Context, pkt *protocol.Packet, logger zerolog.Logger) *protocol.Device {
	device := d.resolve(ctx, pkt, logger)
	if device == nil {
		return nil
	}
	if err := d.directory.MarkHeartbeat(ctx, device); err != nil {
		logger.Warn().Err(err).Int64("device_id", device.ID).Msg("failed to mark heartbeat on connect")
	}
	logger.Info().Int64("device_id", device.ID).Str("serial", device.Serial).Msg("device connected")
	return device
}

func (d *Dispatcher) handleHeartbeat(ctx context.Context, pkt *protocol.Packet, logger zerolog.Logger) *protocol.Device {
	device := d.resolve(ctx, pkt, logger)
	if device == nil {
		return nil
	}
	if err := d.directory.MarkHeartbeat(ctx, device); err != nil {
		logger.Warn().Err(err).Int64("device_id", device.ID).Msg("failed to mark heartbeat")
	}
	logger.Debug().Int64("device_id", device.ID).Msg("heartbeat")
	return device
}

func (d *Dispatcher) handleRecords(ctx context.Context, pkt *protocol.Packet, logger zerolog.Logger) (*protocol.Device, int, int) {
	records, err := d.adapter.DecodeRecords(pkt)
	switch {
	case errors.Is(err, adapter.ErrShortBatch):
		logger.Warn().Err(err).Int("decoded", len(records)).Msg("processing partial batch")
	case err != nil:
		logger.Warn().Err(err).Hex("payload", pkt.Payload).Msg("failed to decode records")
		return nil, 0, 0
	}

	device := d.resolve(ctx, pkt, logger)
	if device == nil {
		if len(records) > 0 {
			logger.Warn().Int("records", len(records)).Msg("dropping records from unresolved device")
		}
		return nil, len(records), 0
	}

	ingested := 0
	for i := range records {
		if d.ingest(ctx, device, pkt, &records[i], logger) {
			ingested++
		}
	}

	if ingested > 0 {
		if err := d.directory.MarkSynced(ctx, device); err != nil {
			logger.Warn().Err(err).Int64("device_id", device.ID).Msg("failed to mark sync")
		}
	}
	logger.Info().
		Int64("device_id", device.ID).
		Int("records", len(records)).
		Int("ingested", ingested).
		Msg("attendance records processed")
	return device, len(records), ingested
}

func (d *Dispatcher) ingest(ctx context.Context, device *protocol.Device, pkt *protocol.Packet, rec *protocol.AttendanceRecord, logger zerolog.Logger) bool {
	userID := strconv.FormatUint(rec.UserID, 10)
	metadata := map[string]interface{}{
		"verify_method":   string(rec.Method),
		"verify_code":     rec.VerifyCode,
		"event_type_byte": rec.TypeByte,
		"realtime":        rec.Realtime,
		"command":         pkt.Command,
		"device_code":     pkt.DeviceCode,
	}
	if rec.WorkCode != nil {
		metadata["work_code"] = *rec.WorkCode
	}

	result, err := d.sink.Ingest(ctx, device, rec.Type, userID, rec.EventTime, metadata)
	if err != nil {
		logger.Error().Err(err).
			Int64("device_id", device.ID).
			Str("user_id", userID).
			Str("type", string(rec.Type)).
			Time("event_time", rec.EventTime).
			Msg("attendance ingestion failed")
		return false
	}
	if !result.Success {
		logger.Warn().
			Int64("device_id", device.ID).
			Str("user_id", userID).
			Str("type", string(rec.Type)).
			Time("event_time", rec.EventTime).
			Str("message", result.Message).
			Msg("attendance rejected")
		return false
	}
	return true
}

func (d *Dispatcher) handleUnknown(pkt *protocol.Packet, logger zerolog.Logger) {
	logger.Info().Hex("payload", pkt.Payload).Msg("unhandled command acknowledged")
}

// resolve looks the device up by its embedded code, with the decimal code as
// the serial fallback.
func (d *Dispatcher) resolve(ctx context.Context, pkt *protocol.Packet, logger zerolog.Logger) *protocol.Device {
	device, err := d.directory.Lookup(ctx, pkt.DeviceCode, strconv.FormatUint(uint64(pkt.DeviceCode), 10))
	switch {
	case errors.Is(err, protocol.ErrDeviceNotFound):
		logger.Warn().Msg("unresolved device")
		return nil
	case err != nil:
		logger.Error().Err(err).Msg("device lookup failed")
		return nil
	}
	return device
}
