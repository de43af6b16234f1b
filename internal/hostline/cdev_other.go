//go:build !linux

package hostline

import "errors"

// CdevLine drives a line of a GPIO character device. It is only available
// on Linux.
type CdevLine struct{}

// OpenCdev always fails outside of Linux.
func OpenCdev(chip string, offset int) (*CdevLine, error) {
	return nil, errors.New("GPIO character devices are only available on Linux")
}

func (l *CdevLine) Output() error { return errors.ErrUnsupported }
func (l *CdevLine) High()         {}
func (l *CdevLine) Low()          {}
func (l *CdevLine) Close() error  { return nil }
