package serialmux

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate is the rate the IMU hub streams angle frames at.
const DefaultBaudRate = 115200

// PortOptions are the line settings for the hub's serial port. Zero values
// mean the hub defaults: DefaultBaudRate, 8 data bits, 1 stop bit, no parity.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"` // N, E or O
}

// parityCodes maps accepted spellings to the canonical single letter.
var parityCodes = map[string]string{
	"": "N", "N": "N", "NONE": "N",
	"E": "E", "EVEN": "E",
	"O": "O", "ODD": "O",
}

var serialParity = map[string]serial.Parity{
	"N": serial.NoParity,
	"E": serial.EvenParity,
	"O": serial.OddParity,
}

// Normalize fills defaults and canonicalises Parity, rejecting settings the
// hub cannot use.
func (o PortOptions) Normalize() (PortOptions, error) {
	n := o
	if n.BaudRate <= 0 {
		n.BaudRate = DefaultBaudRate
	}
	if n.DataBits == 0 {
		n.DataBits = 8
	}
	if n.StopBits == 0 {
		n.StopBits = 1
	}

	if n.DataBits < 5 || n.DataBits > 8 {
		return o, fmt.Errorf("invalid data bits %d: must be between 5 and 8", n.DataBits)
	}
	if n.StopBits > 2 || n.StopBits < 1 {
		return o, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", n.StopBits)
	}
	code, ok := parityCodes[strings.ToUpper(strings.TrimSpace(n.Parity))]
	if !ok {
		return o, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	n.Parity = code
	return n, nil
}

// Equal reports whether both options open the port identically. Invalid
// options are never equal.
func (o PortOptions) Equal(other PortOptions) bool {
	a, err := o.Normalize()
	if err != nil {
		return false
	}
	b, err := other.Normalize()
	return err == nil && a == b
}

// SerialMode converts the options for serial.Open.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	n, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	// serial.StopBits is an enum, not a count.
	stop := serial.OneStopBit
	if n.StopBits == 2 {
		stop = serial.TwoStopBits
	}
	return &serial.Mode{
		BaudRate: n.BaudRate,
		DataBits: n.DataBits,
		Parity:   serialParity[n.Parity],
		StopBits: stop,
	}, nil
}
