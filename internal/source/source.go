// Package source feeds position fixes into the tracker. Fixes arrive as
// JSON lines, one object per line, typically piped from gpspipe, termux
// location polling or a replay file.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"time"

	"go.uber.org/zap"
)

// Fix is a single position sample.
type Fix struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Accuracy  float64    `json:"accuracy,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Handler receives decoded fixes.
type Handler func(lat, lng, accuracy float64, ts time.Time)

// Reader decodes newline-delimited JSON fixes from a stream.
type Reader struct {
	in  io.Reader
	log *zap.Logger
}

func NewReader(in io.Reader, log *zap.Logger) *Reader {
	return &Reader{in: in, log: log}
}

// Run reads fixes until the stream ends or ctx is cancelled. Malformed
// lines are logged and skipped, a flaky producer must not stall tracking.
func (r *Reader) Run(ctx context.Context, handle Handler) error {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var fix Fix
		if err := json.Unmarshal(line, &fix); err != nil {
			r.log.Warn("skipping malformed position line", zap.Error(err))
			continue
		}
		if fix.Latitude < -90 || fix.Latitude > 90 || fix.Longitude < -180 || fix.Longitude > 180 {
			r.log.Warn("skipping out-of-range position",
				zap.Float64("lat", fix.Latitude), zap.Float64("lng", fix.Longitude))
			continue
		}

		ts := time.Now()
		if fix.Timestamp != nil {
			ts = *fix.Timestamp
		}
		handle(fix.Latitude, fix.Longitude, fix.Accuracy, ts)
	}
	return scanner.Err()
}
