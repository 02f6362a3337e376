package serialmux

import (
	"fmt"
	"net/http"
	"strings"

	"tailscale.com/tsweb"

	"github.com/banshee-data/gait.report/internal/httputil"
)

// AttachAdminRoutes registers, under /debug/:
//
//	send-command-api  POST command=<line> writes one command to the hub
//	tail              Server-Sent Events of every line read
//	serial            JSON MuxStats
func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleSilentFunc("send-command-api", s.handleSendCommand)
	debug.HandleFunc("tail", "live tail of the IMU angle stream", s.handleTail)
	debug.HandleSilentFunc("serial", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, struct {
			Enabled bool `json:"enabled"`
			MuxStats
		}{true, s.Stats()})
	})
}

func (s *SerialMux[T]) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	command := strings.TrimSpace(r.FormValue("command"))
	if command == "" {
		httputil.BadRequest(w, "missing command")
		return
	}
	if err := s.SendCommand(command); err != nil {
		httputil.InternalServerError(w, fmt.Errorf("write command %q: %w", command, err))
		return
	}
	fmt.Fprintf(w, "Wrote command %q to serial port", command)
}

func (s *SerialMux[T]) handleTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	id, c := s.Subscribe()
	defer s.Unsubscribe(id)

	fmt.Fprint(w, ": ping\n\n")
	flush()

	for {
		select {
		case line, ok := <-c:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
				return
			}
			flush()
		case <-r.Context().Done():
			return
		}
	}
}
