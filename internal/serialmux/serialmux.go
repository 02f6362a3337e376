// Package serialmux provides an abstraction over the IMU hub's serial port
// with the ability for multiple clients to subscribe to the angle lines it
// streams and to send commands to the device.
package serialmux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/gait.report/internal/monitoring"
)

var ErrWriteFailed = errors.New("failed to write to serial port")

// DefaultStartCommands put the hub into degree-valued CSV streaming.
var DefaultStartCommands = []string{
	"STOP",      // halt any stream left running
	"UNITS DEG", // angles in degrees
	"FMT CSV",   // one comma separated frame per line
	"START",
}

// SerialMuxInterface is what gaitd needs from a hub connection.
type SerialMuxInterface interface {
	// Subscribe returns an id and a channel receiving every line read from
	// the hub. Pass the id to Unsubscribe when done.
	Subscribe() (string, chan string)
	Unsubscribe(string)
	// SendCommand writes one command line to the hub.
	SendCommand(string) error
	// Initialize puts the hub into streaming mode.
	Initialize() error
	// Monitor reads lines until ctx is done or the port fails.
	Monitor(context.Context) error
	// Close closes every subscriber channel and the port.
	Close() error
	// AttachAdminRoutes registers debug endpoints under /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// MuxStats counts lines seen by Monitor.
type MuxStats struct {
	Lines       uint64 `json:"lines"`
	Dropped     uint64 `json:"dropped"` // per-subscriber deliveries skipped on a full buffer
	Subscribers int    `json:"subscribers"`
}

// SerialMux fans the lines of one serial port out to any number of
// subscribers and serialises command writes.
type SerialMux[T SerialPorter] struct {
	port    T
	subs    *subscriberSet
	writeMu sync.Mutex

	lines   atomic.Uint64
	dropped atomic.Uint64
}

// NewSerialMux creates a SerialMux instance backed by port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port: port,
		subs: newSubscriberSet(subscriberBuffer),
	}
}

func (s *SerialMux[T]) Subscribe() (string, chan string) { return s.subs.add() }

func (s *SerialMux[T]) Unsubscribe(id string) { s.subs.remove(id) }

// Stats returns the line counters and current subscriber count.
func (s *SerialMux[T]) Stats() MuxStats {
	return MuxStats{
		Lines:       s.lines.Load(),
		Dropped:     s.dropped.Load(),
		Subscribers: s.subs.len(),
	}
}

// Initialize sends DefaultStartCommands in order and stops at the first
// failure.
func (s *SerialMux[T]) Initialize() error {
	for _, command := range DefaultStartCommands {
		if err := s.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send start command %q: %w", command, err)
		}
	}
	monitoring.Debugf("[serialmux] hub initialised with %d commands", len(DefaultStartCommands))
	return nil
}

// SendCommand writes command to the port, newline terminated.
func (s *SerialMux[T]) SendCommand(command string) error {
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	n, err := s.port.Write([]byte(command))
	switch {
	case err != nil:
		return err
	case n != len(command):
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrWriteFailed, n, len(command))
	}
	return nil
}

// readLines scans the port on its own goroutine so a blocked Read never
// delays cancellation. The line channel is closed when scanning stops; a
// scan error, if any, is sent on errc first.
func (s *SerialMux[T]) readLines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scan := bufio.NewScanner(s.port)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			errc <- err
		}
	}()
	return lines, errc
}

// Monitor reads lines from the serial port and fans them out to subscribers.
// It returns nil at EOF or after Close, and ctx.Err() on cancellation.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	lines, errc := s.readLines(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			dropped, open := s.subs.broadcast(line)
			if !open {
				return nil
			}
			s.lines.Add(1)
			if dropped > 0 {
				s.dropped.Add(uint64(dropped))
				monitoring.Debugf("[serialmux] %d subscriber(s) lagging, line dropped", dropped)
			}
		}
	}
}

// Close closes every subscriber channel, then the port.
func (s *SerialMux[T]) Close() error {
	s.subs.closeAll()
	return s.port.Close()
}
