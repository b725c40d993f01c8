// Package roster loads a YAML list of terminals and seeds the device store.
package roster

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"timeclock/gateway/internal/store"
)

// Roster is the file layout:
//
//	devices:
//	  - serial: "SN-LOBBY"
//	    code: 1001
//	    name: Lobby
//	    enabled: true
type Roster struct {
	Devices []Entry `yaml:"devices"`
}

// Entry describes one terminal. Enabled defaults to true.
type Entry struct {
	Serial  string `yaml:"serial"`
	Code    uint32 `yaml:"code"`
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled"`
}

// IsEnabled reports whether the entry is enabled
func (e Entry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Load reads and validates a roster file
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse decodes and validates roster YAML
func Parse(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate rejects blank or repeated serials and repeated non-zero codes.
func (r *Roster) Validate() error {
	serials := make(map[string]int, len(r.Devices))
	codes := make(map[uint32]int, len(r.Devices))
	for i := range r.Devices {
		e := &r.Devices[i]
		e.Serial = strings.TrimSpace(e.Serial)
		if e.Serial == "" {
			return fmt.Errorf("roster entry %d: serial is required", i+1)
		}
		if prev, ok := serials[e.Serial]; ok {
			return fmt.Errorf("roster entry %d: serial %q already used by entry %d", i+1, e.Serial, prev)
		}
		serials[e.Serial] = i + 1
		if e.Code == 0 {
			continue
		}
		if prev, ok := codes[e.Code]; ok {
			return fmt.Errorf("roster entry %d: code %d already used by entry %d", i+1, e.Code, prev)
		}
		codes[e.Code] = i + 1
	}
	return nil
}

// Seed upserts every entry into s and returns how many were written.
func (r *Roster) Seed(ctx context.Context, s store.DeviceStore) (int, error) {
	for i, e := range r.Devices {
		id, err := s.UpsertDevice(ctx, store.DeviceRecord{
			Serial:  e.Serial,
			Code:    e.Code,
			Name:    e.Name,
			Enabled: e.IsEnabled(),
		})
		if err != nil {
			return i, fmt.Errorf("seed %s: %w", e.Serial, err)
		}
		log.Debug().Int64("id", id).Str("serial", e.Serial).Uint32("code", e.Code).Msg("roster device seeded")
	}
	return len(r.Devices), nil
}
