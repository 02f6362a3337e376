package serialmux

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/banshee-data/gait.report/internal/monitoring"
)

// NewRealSerialMux opens the IMU hub at path and wraps it in a SerialMux.
// Zero-valued fields of opts take the hub defaults.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, fmt.Errorf("serial options for %s: %w", path, err)
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	monitoring.Logf("[serialmux] opened %s at %d baud (%d%s%d)", path, opts.BaudRate, opts.DataBits, opts.Parity, opts.StopBits)

	return NewSerialMux[serial.Port](port), nil
}
