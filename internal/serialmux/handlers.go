package serialmux

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/banshee-data/gait.report/internal/monitoring"
)

// FrameHandler receives parsed angle frames.
type FrameHandler interface {
	HandleFrame(raw []float64) error
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(raw []float64) error

func (f FrameHandlerFunc) HandleFrame(raw []float64) error { return f(raw) }

// HubState holds the latest status values reported by the IMU hub.
type HubState struct {
	mu     sync.Mutex
	values map[string]any
}

// Snapshot returns a copy of the current values.
func (s *HubState) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *HubState) merge(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]any)
	}
	for k, v := range values {
		s.values[k] = v
	}
}

// HandleStatus merges a JSON status line into state.
func HandleStatus(state *HubState, payload string) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	state.merge(values)
	monitoring.Debugf("[serialmux] status line: %s", payload)
	return nil
}

// HandleEvent dispatches one line: frames go to h, status lines update
// state, comments are dropped.
func HandleEvent(h FrameHandler, state *HubState, payload string) error {
	switch ClassifyPayload(payload) {
	case EventTypeFrame:
		raw, err := ParseFrame(payload)
		if err != nil {
			return err
		}
		if err := h.HandleFrame(raw); err != nil {
			return fmt.Errorf("failed to handle frame: %w", err)
		}
	case EventTypeStatus:
		if state == nil {
			return nil
		}
		if err := HandleStatus(state, payload); err != nil {
			return fmt.Errorf("failed to handle status: %w", err)
		}
	case EventTypeComment:
	default:
		monitoring.Logf("[serialmux] unknown event type: %q", payload)
	}
	return nil
}
