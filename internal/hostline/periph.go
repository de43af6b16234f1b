package hostline

import (
	"fmt"

	"github.com/pkg/errors"
	"libdb.so/neopixel/waveform"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PinLine drives a periph.io pin.
type PinLine struct {
	pin gpio.PinOut
}

var _ waveform.Line = (*PinLine)(nil)

// NewPinLine wraps pin.
func NewPinLine(pin gpio.PinOut) *PinLine {
	return &PinLine{pin: pin}
}

// OpenPeriph initializes the periph.io host drivers and looks up the pin
// with the given name, such as "GPIO18".
func OpenPeriph(name string) (*PinLine, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph host")
	}
	return lookupPin(name)
}

func lookupPin(name string) (*PinLine, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no such pin %q", name)
	}
	return NewPinLine(pin), nil
}

// Output implements waveform.Line.
func (l *PinLine) Output() error {
	if err := l.pin.Out(gpio.Low); err != nil {
		return errors.Wrapf(err, "failed to set %s as output", l.pin)
	}
	return nil
}

// High implements waveform.Line.
func (l *PinLine) High() { l.pin.Out(gpio.High) }

// Low implements waveform.Line.
func (l *PinLine) Low() { l.pin.Out(gpio.Low) }

// Close implements io.Closer. It leaves the pin low.
func (l *PinLine) Close() error {
	return l.pin.Out(gpio.Low)
}
