package serialmux

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/gait.report/internal/gait/offset"
)

const (
	EventTypeFrame   = "frame"
	EventTypeStatus  = "status"
	EventTypeComment = "comment"
	EventTypeUnknown = "unknown"
)

// ClassifyPayload inspects a line from the IMU hub and returns an event type
// token. Frames are comma or whitespace separated angle lists; status
// messages are JSON objects; lines starting with '#' are comments.
func ClassifyPayload(payload string) string {
	p := strings.TrimSpace(payload)
	switch {
	case p == "":
		return EventTypeUnknown
	case strings.HasPrefix(p, "#"):
		return EventTypeComment
	case strings.HasPrefix(p, "{"):
		return EventTypeStatus
	}
	c := p[0]
	if c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9') {
		return EventTypeFrame
	}
	return EventTypeUnknown
}

func splitFields(r rune) bool {
	return r == ',' || r == ' ' || r == '\t' || r == ';'
}

// ParseFrame parses one line of raw angles in degrees. The line must carry
// exactly offset.FrameWidth values.
func ParseFrame(line string) ([]float64, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(line), splitFields)
	if len(fields) != offset.FrameWidth {
		return nil, fmt.Errorf("%w: got %d values, want %d", offset.ErrMalformedFrame, len(fields), offset.FrameWidth)
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %v", offset.ErrMalformedFrame, i, err)
		}
		out[i] = v
	}
	return out, nil
}
