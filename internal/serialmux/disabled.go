package serialmux

import (
	"context"
	"errors"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/gait.report/internal/httputil"
	"github.com/banshee-data/gait.report/internal/monitoring"
)

// ErrSerialDisabled is returned by commands sent while no hub is attached.
var ErrSerialDisabled = errors.New("serial hub disabled")

// DisabledSerialMux stands in for the hub when gaitd runs without one. No
// line is ever delivered; subscriber channels are closed on Unsubscribe or
// Close so consumers exit cleanly.
type DisabledSerialMux struct {
	subs *subscriberSet
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{subs: newSubscriberSet(0)}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) { return d.subs.add() }

func (d *DisabledSerialMux) Unsubscribe(id string) { d.subs.remove(id) }

func (d *DisabledSerialMux) SendCommand(command string) error {
	monitoring.Debugf("[serialmux] dropping command %q: hub disabled", command)
	return ErrSerialDisabled
}

// Initialize is a no-op: there is nothing to configure.
func (d *DisabledSerialMux) Initialize() error { return nil }

func (d *DisabledSerialMux) Monitor(ctx context.Context) error {
	monitoring.Logf("[serialmux] hub disabled, waiting for shutdown")
	<-ctx.Done()
	return ctx.Err()
}

func (d *DisabledSerialMux) Close() error {
	d.subs.closeAll()
	return nil
}

// AttachAdminRoutes registers /debug/serial reporting the hub as disabled.
func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleSilentFunc("serial", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, map[string]any{"enabled": false})
	})
}

var _ SerialMuxInterface = (*DisabledSerialMux)(nil)
