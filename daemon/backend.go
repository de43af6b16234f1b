package daemon

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"libdb.so/neopixel"
	"libdb.so/neopixel/internal/hostline"
	"libdb.so/neopixel/internal/realtime"
	"libdb.so/neopixel/waveform"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// OpenOutput opens the output of the configured backend.
func OpenOutput(cfg *Config, logger *slog.Logger) (Output, error) {
	switch cfg.Backend {
	case SerialBackend:
		return OpenSerialOutput(cfg, logger)
	case SPIBackend:
		return OpenSPIOutput(cfg)
	}

	line, excl, err := OpenLine(cfg)
	if err != nil {
		return nil, err
	}

	closer, _ := line.(io.Closer)
	closeLine := func() {
		if closer != nil {
			closer.Close()
		}
	}

	strip, err := neopixel.NewStrip(line, &neopixel.Opts{
		NumPixels:    cfg.NumLEDs(),
		Profile:      cfg.Profile,
		Clock:        hostline.NewClock(),
		Exclusive:    excl,
		EdgeOverhead: cfg.EdgeOverhead,
	})
	if err != nil {
		closeLine()
		return nil, err
	}

	out, err := NewStripOutput(strip, closer)
	if err != nil {
		closeLine()
		return nil, err
	}

	return out, nil
}

// OpenLine opens the line of a bit-banged backend along with the exclusive
// region transmissions on it should hold. The line may be an io.Closer.
func OpenLine(cfg *Config) (waveform.Line, waveform.Exclusive, error) {
	switch cfg.Backend {
	case CdevBackend:
		line, err := hostline.OpenCdev(cfg.Cdev.Chip, cfg.Cdev.Line)
		if err != nil {
			return nil, nil, err
		}
		return line, realtime.Exclusive, nil

	case PeriphBackend:
		line, err := hostline.OpenPeriph(cfg.Periph.Pin)
		if err != nil {
			return nil, nil, err
		}
		return line, realtime.Exclusive, nil

	case SimBackend:
		return hostline.Discard{}, waveform.NoExclusive, nil

	default:
		return nil, nil, fmt.Errorf("backend %q has no line", cfg.Backend)
	}
}

// OpenSerialPort opens a serial port for the LED serial protocol. Reads
// block until data arrives or the port is closed.
func OpenSerialPort(device string, baud int) (serial.Port, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open serial port")
	}

	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to reset read timeout")
	}

	return port, nil
}

// OpenSerialOutput opens the configured serial port as a RemoteOutput.
func OpenSerialOutput(cfg *Config, logger *slog.Logger) (*RemoteOutput, error) {
	port, err := OpenSerialPort(cfg.Serial.Device, cfg.Serial.Baud)
	if err != nil {
		return nil, err
	}

	out, err := NewRemoteOutput(port, RemoteOpts{
		NumLEDs: cfg.NumLEDs(),
		Profile: cfg.Profile,
		Logger:  logger,
	})
	if err != nil {
		port.Close()
		return nil, err
	}

	return out, nil
}

// OpenSPIOutput opens the configured SPI port as an SPIOutput.
func OpenSPIOutput(cfg *Config) (*SPIOutput, error) {
	freq, err := cfg.SPI.Frequency()
	if err != nil {
		return nil, err
	}

	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph host")
	}

	port, err := spireg.Open(cfg.SPI.Port)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open spi port")
	}

	out, err := NewSPIOutput(port, port, cfg.NumLEDs(), cfg.Profile, freq)
	if err != nil {
		port.Close()
		return nil, err
	}

	return out, nil
}
