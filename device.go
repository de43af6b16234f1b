package neopixel

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"libdb.so/neopixel/ledserial"
	"libdb.so/neopixel/pixel"
	"libdb.so/neopixel/waveform"
)

// ErrNotInitialized is returned for packets that need a strip before an
// initialize packet made one.
var ErrNotInitialized = errors.New("strip not initialized")

// DeviceOpts configures the strips a Device creates.
type DeviceOpts struct {
	// Clock times the pulses. It is required.
	Clock waveform.Clock
	// Exclusive guards transmissions.
	Exclusive waveform.Exclusive
	// EdgeOverhead is the cost of a line transition in clock ticks.
	EdgeOverhead uint32
}

// Device drives a strip on one line as told by ledserial packets. It is what
// runs on the microcontroller end of a serial link.
type Device struct {
	line  waveform.Line
	opts  DeviceOpts
	strip *Strip
	begun bool

	// scratch receives the pixels of set packets.
	scratch []byte
}

// NewDevice creates a device on line. The strip is created by the first
// initialize packet.
func NewDevice(line waveform.Line, opts *DeviceOpts) *Device {
	d := &Device{line: line}
	if opts != nil {
		d.opts = *opts
	}
	return d
}

// Strip returns the current strip, or nil before initialization.
func (d *Device) Strip() *Strip {
	return d.strip
}

// ReadContext returns the context to read the next incoming packet with.
func (d *Device) ReadContext() ledserial.ReadContext {
	if d.strip == nil {
		return ledserial.ReadContext{}
	}
	return ledserial.ReadContext{
		NumLEDs:   uint16(d.strip.NumPixels()),
		LEDBuffer: d.scratch,
	}
}

// Handle applies a packet to the strip and returns the acknowledgement to
// send back.
func (d *Device) Handle(p ledserial.IncomingPacket) (ledserial.OutgoingPacket, error) {
	switch p := p.(type) {
	case ledserial.InitializePacket:
		if err := d.initialize(p); err != nil {
			return nil, err
		}

	case ledserial.ClearPacket:
		if d.strip == nil {
			return nil, ErrNotInitialized
		}
		d.strip.Clear()
		d.strip.Show()

	case ledserial.SetPacket:
		if d.strip == nil {
			return nil, ErrNotInitialized
		}
		if len(p.Pix) != len(d.strip.Bytes()) {
			return nil, fmt.Errorf("set packet has %d bytes, strip needs %d", len(p.Pix), len(d.strip.Bytes()))
		}
		copy(d.strip.Bytes(), p.Pix)
		d.strip.Show()

	default:
		return nil, fmt.Errorf("unknown packet type: %T", p)
	}

	return ledserial.AckPacket{IncomingPacketType: p.Type()}, nil
}

func (d *Device) initialize(p ledserial.InitializePacket) error {
	if p.NumLEDs < 1 {
		return fmt.Errorf("invalid number of LEDs: %d", p.NumLEDs)
	}

	strip, err := NewStrip(d.line, &Opts{
		NumPixels:    int(p.NumLEDs),
		Profile:      Profile(p.Profile),
		Clock:        d.opts.Clock,
		Exclusive:    d.opts.Exclusive,
		EdgeOverhead: d.opts.EdgeOverhead,
	})
	if err != nil {
		return err
	}
	if strip.NumPixels() != int(p.NumLEDs) {
		return fmt.Errorf("cannot allocate %d LEDs", p.NumLEDs)
	}

	if !d.begun {
		if err := strip.Begin(); err != nil {
			return errors.Wrap(err, "failed to set up line")
		}
		d.begun = true
	}

	// Turn off the old strip, which may be longer, and wait out its latch
	// gap since the new emitter does not know about it.
	if d.strip != nil {
		d.strip.Clear()
		d.strip.Show()
		d.opts.Clock.Spin(strip.Emitter().Schedule().Ticks(waveform.Latch))
	}

	d.strip = strip
	d.scratch = make([]byte, len(strip.Bytes()))

	// Signal readiness: first LED red, last LED blue.
	strip.SetColor(0, pixel.Red)
	strip.SetColor(strip.NumPixels()-1, pixel.Blue)
	strip.Show()
	return nil
}

// Serve reads packets from rw and handles them until ctx is canceled or rw
// is exhausted. Every packet is answered with an ack or an error packet.
//
// Serve only notices ctx between packets; close rw to interrupt a read.
func (d *Device) Serve(ctx context.Context, rw io.ReadWriter) error {
	for ctx.Err() == nil {
		p, err := ledserial.ReadIncomingPacket(rw, d.ReadContext())
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			if err := d.send(rw, ledserial.ErrorPacket{Message: err.Error()}); err != nil {
				return err
			}
			continue
		}

		reply, err := d.Handle(p)
		if err != nil {
			reply = ledserial.ErrorPacket{Message: err.Error()}
		} else if ip, ok := p.(ledserial.InitializePacket); ok {
			msg := fmt.Sprintf("initialized %d LEDs as %s", ip.NumLEDs, Profile(ip.Profile))
			if err := d.send(rw, ledserial.LogPacket{Message: msg}); err != nil {
				return err
			}
		}

		if err := d.send(rw, reply); err != nil {
			return err
		}
	}

	return ctx.Err()
}

func (d *Device) send(w io.Writer, p ledserial.OutgoingPacket) error {
	if err := ledserial.WriteOutgoingPacket(w, p); err != nil {
		return errors.Wrapf(err, "failed to write %s packet", p.Type())
	}
	return nil
}
