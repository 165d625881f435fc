package stream

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/CedoySch/PhysicsLT2.2/internal/chart"
	"github.com/CedoySch/PhysicsLT2.2/internal/metrics"
)

// send writes v as a JSON text message. Only the read loop calls send.
func (s *session) send(v any) error {
	// Extend write deadline before each write so a stalled client cannot block the loop.
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
		s.logger.Debug("could not set write deadline", "error", err)
	}
	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	metrics.IncSessionMessages("out")
	return nil
}

// encodeFrames turns the displayed images into PNG data URLs keyed by chart kind.
func encodeFrames(frames map[chart.Kind]image.Image) (map[string]string, error) {
	out := make(map[string]string, len(chart.Kinds))
	var buf bytes.Buffer
	for _, k := range chart.Kinds {
		img, ok := frames[k]
		if !ok {
			return nil, fmt.Errorf("no %s frame to encode", k)
		}
		buf.Reset()
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding %s frame: %w", k, err)
		}
		out[string(k)] = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	return out, nil
}
