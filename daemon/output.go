package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"libdb.so/neopixel"
	"libdb.so/neopixel/ledserial"
	"libdb.so/neopixel/pixel"
	"libdb.so/neopixel/waveform"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/nrzled"
)

// Output is where the daemon sends its frames.
type Output interface {
	// Run does the background work of the output until ctx is canceled or
	// the output fails.
	Run(ctx context.Context) error
	// WriteFrame shows the given frame. The frame is only read, and may be
	// of any channel order.
	WriteFrame(ctx context.Context, frame *pixel.Buffer) error
	// Close releases the output.
	Close() error
}

// StripOutput shows frames on a local strip.
type StripOutput struct {
	strip  *neopixel.Strip
	closer io.Closer
}

var _ Output = (*StripOutput)(nil)

// NewStripOutput creates an output over the given strip and prepares its
// line. If closer is not nil, it is closed along with the output.
func NewStripOutput(strip *neopixel.Strip, closer io.Closer) (*StripOutput, error) {
	if err := strip.Begin(); err != nil {
		return nil, errors.Wrap(err, "failed to set up line")
	}
	return &StripOutput{strip: strip, closer: closer}, nil
}

// Strip returns the strip frames are shown on.
func (o *StripOutput) Strip() *neopixel.Strip {
	return o.strip
}

// Run implements Output. A strip has no background work.
func (o *StripOutput) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// WriteFrame implements Output.
func (o *StripOutput) WriteFrame(ctx context.Context, frame *pixel.Buffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.strip.CopyFrom(frame)
	o.strip.Show()
	return nil
}

// Close implements Output.
func (o *StripOutput) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

// RemoteOpts configures a RemoteOutput.
type RemoteOpts struct {
	// NumLEDs is the number of LEDs on the remote strip.
	NumLEDs int
	// Profile is the profile of the remote strip.
	Profile neopixel.Profile
	// AckTimeout is how long to wait for the device to acknowledge a
	// packet. Zero means one second.
	AckTimeout time.Duration
	// Logger receives the log packets of the device. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// RemoteOutput sends frames over a serial link to a microcontroller running
// a Device.
//
// Every packet must be acknowledged before the next one is sent. Error and
// panic packets from the device fail the output.
type RemoteOutput struct {
	port   io.ReadWriteCloser
	opts   RemoteOpts
	logger *slog.Logger
	frame  *pixel.Buffer

	readOnce sync.Once
	acks     chan ledserial.AckPacket
	dead     chan struct{}
	readErr  error

	// stale counts packets whose ack was given up on. Their acks may still
	// arrive and must not be taken for the ack of a later packet.
	stale int

	initialized bool
}

var _ Output = (*RemoteOutput)(nil)

// NewRemoteOutput creates an output over the given port.
func NewRemoteOutput(port io.ReadWriteCloser, opts RemoteOpts) (*RemoteOutput, error) {
	if !opts.Profile.Valid() {
		return nil, errors.Wrapf(neopixel.ErrUnknownProfile, "%d", uint8(opts.Profile))
	}
	if opts.NumLEDs < 1 || opts.NumLEDs > pixel.MaxPixels {
		return nil, fmt.Errorf("invalid number of LEDs: %d", opts.NumLEDs)
	}
	if opts.AckTimeout == 0 {
		opts.AckTimeout = time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RemoteOutput{
		port:   port,
		opts:   opts,
		logger: logger,
		frame:  pixel.New(opts.NumLEDs, opts.Profile.Order()),
		acks:   make(chan ledserial.AckPacket, 8),
		dead:   make(chan struct{}),
	}, nil
}

// Run implements Output. It reads the packets of the device until ctx is
// canceled or the device reports a failure.
func (o *RemoteOutput) Run(ctx context.Context) error {
	o.startReading()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-o.dead:
		return o.readErr
	}
}

// WriteFrame implements Output. The first frame initializes the device.
func (o *RemoteOutput) WriteFrame(ctx context.Context, frame *pixel.Buffer) error {
	o.startReading()

	if !o.initialized {
		o.logger.Debug("sending initialize packet")

		err := o.send(ctx, ledserial.InitializePacket{
			NumLEDs: uint16(o.opts.NumLEDs),
			Profile: uint8(o.opts.Profile),
		})
		if err != nil {
			return errors.Wrap(err, "failed to initialize LEDs")
		}

		o.initialized = true
	}

	o.frame.CopyFrom(frame)
	return o.send(ctx, ledserial.SetPacket{Pix: o.frame.Bytes()})
}

// Close implements Output. It closes the port.
func (o *RemoteOutput) Close() error {
	return o.port.Close()
}

func (o *RemoteOutput) send(ctx context.Context, p ledserial.IncomingPacket) error {
	o.dropStaleAcks()

	o.logger.Debug(
		"writing packet",
		"type", p.Type())

	if err := ledserial.WriteIncomingPacket(o.port, p); err != nil {
		return errors.Wrapf(err, "failed to write %s packet", p.Type())
	}

	timer := time.NewTimer(o.opts.AckTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			o.stale++
			return ctx.Err()
		case <-o.dead:
			return o.readErr
		case <-timer.C:
			o.stale++
			return fmt.Errorf("timed out waiting for %s ack", p.Type())
		case ack := <-o.acks:
			if o.stale > 0 {
				o.stale--
				o.logger.Debug(
					"skipping late ack from controller",
					"acked_for", ack.IncomingPacketType)
				continue
			}
			if ack.IncomingPacketType != p.Type() {
				return fmt.Errorf("controller acked %s, expected %s", ack.IncomingPacketType, p.Type())
			}
			return nil
		}
	}
}

// dropStaleAcks discards late acks that already arrived.
func (o *RemoteOutput) dropStaleAcks() {
	for o.stale > 0 {
		select {
		case <-o.acks:
			o.stale--
		default:
			return
		}
	}
}

func (o *RemoteOutput) startReading() {
	o.readOnce.Do(func() { go o.readPackets() })
}

func (o *RemoteOutput) readPackets() {
	o.readErr = o.readLoop()
	close(o.dead)
}

func (o *RemoteOutput) readLoop() error {
	for {
		p, err := ledserial.ReadOutgoingPacket(o.port)
		if err != nil {
			return errors.Wrap(err, "failed to read packet")
		}

		o.logger.Debug(
			"received packet from controller",
			"type", p.Type())

		switch p := p.(type) {
		case ledserial.AckPacket:
			select {
			case o.acks <- p:
			default:
				o.logger.Warn(
					"dropping unexpected ack from controller",
					"acked_for", p.IncomingPacketType)
			}

		case ledserial.ErrorPacket:
			o.logger.Warn(
				"received error packet from controller",
				"message", p.Message)
			return fmt.Errorf("controller reported error: %s", p.Message)

		case ledserial.PanicPacket:
			o.logger.Error(
				"controller unrecoverably panicked",
				"message", p.Message)
			return fmt.Errorf("controller panicked: %s", p.Message)

		case ledserial.LogPacket:
			o.logger.Info(
				"received log packet from controller",
				"message", p.Message)

		default:
			return fmt.Errorf("received unknown packet from controller: %s", p.Type())
		}
	}
}

// SPIOutput encodes frames as an NRZ bit stream on an SPI port, which needs
// no bit-banging at all.
type SPIOutput struct {
	dev     *nrzled.Dev
	profile neopixel.Profile
	closer  io.Closer
	raw     []byte
}

var _ Output = (*SPIOutput)(nil)

// NewSPIOutput creates an output driving numLEDs LEDs over the given port.
// A zero freq derives the NRZ bit rate from the profile. If closer is not
// nil, it is closed along with the output.
func NewSPIOutput(port spi.Port, closer io.Closer, numLEDs int, profile neopixel.Profile, freq physic.Frequency) (*SPIOutput, error) {
	if !profile.Valid() {
		return nil, errors.Wrapf(neopixel.ErrUnknownProfile, "%d", uint8(profile))
	}
	if freq == 0 {
		freq = 800 * physic.KiloHertz
		if profile.Rate() == waveform.KHz400 {
			freq = 400 * physic.KiloHertz
		}
	}

	dev, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: numLEDs,
		Channels:  3,
		Freq:      freq,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to set up nrzled")
	}

	return &SPIOutput{
		dev:     dev,
		profile: profile,
		closer:  closer,
		raw:     make([]byte, 3*numLEDs),
	}, nil
}

// Run implements Output. SPI has no background work.
func (o *SPIOutput) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// WriteFrame implements Output.
func (o *SPIOutput) WriteFrame(ctx context.Context, frame *pixel.Buffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// nrzled takes RGB and sends it as GRB, so RGB strips get their red and
	// green swapped up front.
	swap := o.profile.Order() == pixel.RGB
	for i := 0; i < len(o.raw)/3; i++ {
		r, g, b := frame.Color(i).RGB()
		if swap {
			r, g = g, r
		}
		o.raw[3*i+0] = r
		o.raw[3*i+1] = g
		o.raw[3*i+2] = b
	}

	if _, err := o.dev.Write(o.raw); err != nil {
		return errors.Wrap(err, "failed to write to spi")
	}
	return nil
}

// Close implements Output. It turns the LEDs off first.
func (o *SPIOutput) Close() error {
	err := o.dev.Halt()
	if o.closer != nil {
		if cerr := o.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
