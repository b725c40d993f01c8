package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"timeclock/gateway/internal/protocol"
)

const (
	eventsPath = "/api/v1/attendance/events"

	breakerName      = "attendance-api"
	breakerThreshold = 5
	breakerTimeout   = 30 * time.Second
	breakerInterval  = 60 * time.Second
)

// RemoteConfig configures the HTTP attendance sink
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RemoteSink forwards events to an external attendance API.
type RemoteSink struct {
	http    *resty.Client
	cb      *gobreaker.CircuitBreaker
	baseURL string
}

type ingestRequest struct {
	DeviceID     int64                  `json:"device_id"`
	DeviceSerial string                 `json:"device_serial"`
	DeviceCode   uint32                 `json:"device_code"`
	DeviceUserID string                 `json:"device_user_id"`
	EventType    protocol.EventType     `json:"event_type"`
	EventTime    time.Time              `json:"event_time"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

type ingestResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewRemoteSink(cfg RemoteConfig) *RemoteSink {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}

	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("attendance api circuit breaker state changed")
		},
	}

	return &RemoteSink{
		http:    client,
		cb:      gobreaker.NewCircuitBreaker(settings),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Ingest implements protocol.AttendanceSink.
func (s *RemoteSink) Ingest(ctx context.Context, device *protocol.Device, eventType protocol.EventType, deviceUserID string, eventTime time.Time, metadata map[string]interface{}) (protocol.IngestResult, error) {
	body := ingestRequest{
		DeviceID:     device.ID,
		DeviceSerial: device.Serial,
		DeviceCode:   device.Code,
		DeviceUserID: deviceUserID,
		EventType:    eventType,
		EventTime:    eventTime,
		Metadata:     metadata,
	}

	start := time.Now()
	result, err := s.cb.Execute(func() (interface{}, error) {
		resp, err := s.http.R().
			SetContext(ctx).
			SetBody(body).
			Post(s.baseURL + eventsPath)
		if err != nil {
			return nil, &ConnectionError{Cause: err}
		}

		status := resp.StatusCode()
		if status >= 500 {
			return nil, parseAPIError(status, resp.Body())
		}
		// client errors do not count against the breaker
		if status < 200 || status > 299 {
			return parseAPIError(status, resp.Body()), nil
		}
		return resp.Body(), nil
	})
	latency := time.Since(start)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return protocol.IngestResult{}, ErrCircuitOpen
		}
		log.Debug().Err(err).Dur("latency", latency).Msg("attendance api call failed")
		return protocol.IngestResult{}, err
	}
	if apiErr, ok := result.(*APIError); ok {
		return protocol.IngestResult{}, apiErr
	}

	raw, _ := result.([]byte)
	var parsed ingestResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Success == nil {
		return protocol.IngestResult{}, fmt.Errorf("%w: %s", ErrInvalidResponse, truncate(raw))
	}
	log.Debug().Dur("latency", latency).Bool("success", *parsed.Success).Msg("attendance api call")
	return protocol.IngestResult{Success: *parsed.Success, Message: parsed.Message}, nil
}

func parseAPIError(status int, body []byte) *APIError {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			return &APIError{StatusCode: status, Message: parsed.Error}
		}
		if parsed.Message != "" {
			return &APIError{StatusCode: status, Message: parsed.Message}
		}
	}
	return &APIError{StatusCode: status, Message: truncate(body)}
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
