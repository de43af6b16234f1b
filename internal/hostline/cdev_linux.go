package hostline

import (
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
	"libdb.so/neopixel/waveform"
)

// CdevLine drives a line of a GPIO character device.
type CdevLine struct {
	line *gpiocdev.Line
}

var _ waveform.Line = (*CdevLine)(nil)

// OpenCdev requests the line at offset on chip, such as "gpiochip0", as an
// output driven low.
func OpenCdev(chip string, offset int) (*CdevLine, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("neopixel"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to request %s line %d", chip, offset)
	}
	return &CdevLine{line: line}, nil
}

// Output implements waveform.Line. The line was requested as an output, so
// this only drives it low.
func (l *CdevLine) Output() error {
	return l.line.SetValue(0)
}

// High implements waveform.Line.
func (l *CdevLine) High() { l.line.SetValue(1) }

// Low implements waveform.Line.
func (l *CdevLine) Low() { l.line.SetValue(0) }

// Close releases the line.
func (l *CdevLine) Close() error {
	return l.line.Close()
}
