package daemon

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/neopixel"
	"libdb.so/neopixel/ledserial"
	"libdb.so/neopixel/pixel"
	"libdb.so/neopixel/waveform"
	"libdb.so/neopixel/waveform/wavetest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"
)

func testFrame() *pixel.Buffer {
	frame := pixel.New(2, pixel.RGB)
	frame.SetColor(0, pixel.Red)
	frame.SetColor(1, pixel.Pack(0x01, 0x02, 0x03))
	return frame
}

type countingCloser struct{ closed int }

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func TestStripOutput(t *testing.T) {
	rec := wavetest.NewRecorder(16 * physic.MegaHertz)
	strip, err := neopixel.NewStrip(rec, &neopixel.Opts{
		NumPixels: 2,
		Profile:   neopixel.GRB800,
		Clock:     rec,
	})
	require.NoError(t, err)

	closer := &countingCloser{}
	out, err := NewStripOutput(strip, closer)
	require.NoError(t, err)
	assert.True(t, rec.IsOutput())
	assert.Same(t, strip, out.Strip())

	require.NoError(t, out.WriteFrame(context.Background(), testFrame()))

	frames := rec.Frames(waveform.Latch)
	require.Len(t, frames, 1)
	timing, _ := waveform.KHz800.Timing()
	data, err := frames[0].Decode(timing)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xFF, 0x00, 0x02, 0x01, 0x03}, data)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, out.WriteFrame(ctx, testFrame()), context.Canceled)
	assert.ErrorIs(t, out.Run(ctx), context.Canceled)

	require.NoError(t, out.Close())
	assert.Equal(t, 1, closer.closed)
}

func TestRemoteOutput_Device(t *testing.T) {
	host, remote := net.Pipe()

	rec := wavetest.NewRecorder(16 * physic.MegaHertz)
	dev := neopixel.NewDevice(rec, &neopixel.DeviceOpts{Clock: rec})

	served := make(chan error, 1)
	go func() { served <- dev.Serve(context.Background(), remote) }()

	out, err := NewRemoteOutput(host, RemoteOpts{
		NumLEDs: 2,
		Profile: neopixel.RGB800,
		Logger:  testLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := make(chan error, 1)
	go func() { ran <- out.Run(ctx) }()

	require.NoError(t, out.WriteFrame(ctx, testFrame()))
	require.NotNil(t, dev.Strip())
	assert.Equal(t, neopixel.RGB800, dev.Strip().Profile())
	assert.Equal(t, []byte{0xFF, 0x00, 0x00, 0x01, 0x02, 0x03}, dev.Strip().Bytes())

	off := pixel.New(2, pixel.GRB)
	require.NoError(t, out.WriteFrame(ctx, off))
	assert.Equal(t, make([]byte, 6), dev.Strip().Bytes())

	cancel()
	assert.ErrorIs(t, <-ran, context.Canceled)

	require.NoError(t, out.Close())
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("device did not stop")
	}
}

func TestRemoteOutput_ErrorPacket(t *testing.T) {
	host, remote := net.Pipe()
	defer remote.Close()

	go func() {
		if _, err := ledserial.ReadIncomingPacket(remote, ledserial.ReadContext{}); err != nil {
			return
		}
		ledserial.WriteOutgoingPacket(remote, ledserial.ErrorPacket{Message: "out of memory"})
	}()

	out, err := NewRemoteOutput(host, RemoteOpts{NumLEDs: 2, Logger: testLogger()})
	require.NoError(t, err)
	defer out.Close()

	err = out.WriteFrame(context.Background(), testFrame())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")

	err = out.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "controller reported error")
}

func TestRemoteOutput_AckTimeout(t *testing.T) {
	host, remote := net.Pipe()
	defer remote.Close()

	go func() {
		ledserial.ReadIncomingPacket(remote, ledserial.ReadContext{})
	}()

	out, err := NewRemoteOutput(host, RemoteOpts{
		NumLEDs:    1,
		AckTimeout: 20 * time.Millisecond,
		Logger:     testLogger(),
	})
	require.NoError(t, err)
	defer out.Close()

	err = out.WriteFrame(context.Background(), testFrame())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out waiting for initialize ack")
}

func TestRemoteOutput_LateAck(t *testing.T) {
	host, remote := net.Pipe()
	defer remote.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	abandoned := make(chan struct{})
	device := make(chan error, 1)
	go func() {
		device <- func() error {
			// The first initialize is acked only after the host gave up on it.
			if _, err := ledserial.ReadIncomingPacket(remote, ledserial.ReadContext{}); err != nil {
				return err
			}
			cancel()
			<-abandoned

			ack := func(typ ledserial.IncomingPacketType) error {
				return ledserial.WriteOutgoingPacket(remote, ledserial.AckPacket{IncomingPacketType: typ})
			}
			if err := ack(ledserial.TypeInitializePacket); err != nil {
				return err
			}

			for _, want := range []ledserial.IncomingPacketType{
				ledserial.TypeInitializePacket,
				ledserial.TypeSetPacket,
			} {
				p, err := ledserial.ReadIncomingPacket(remote, ledserial.ReadContext{NumLEDs: 2})
				if err != nil {
					return err
				}
				if p.Type() != want {
					return fmt.Errorf("got %s packet, want %s", p.Type(), want)
				}
				if err := ack(want); err != nil {
					return err
				}
			}
			return nil
		}()
	}()

	out, err := NewRemoteOutput(host, RemoteOpts{NumLEDs: 2, Logger: testLogger()})
	require.NoError(t, err)
	defer out.Close()

	assert.ErrorIs(t, out.WriteFrame(ctx, testFrame()), context.Canceled)
	close(abandoned)

	require.NoError(t, out.WriteFrame(context.Background(), testFrame()))
	require.NoError(t, <-device)
}

func TestNewRemoteOutput_Errors(t *testing.T) {
	host, remote := net.Pipe()
	defer host.Close()
	defer remote.Close()

	_, err := NewRemoteOutput(host, RemoteOpts{NumLEDs: 0})
	assert.Error(t, err)

	_, err = NewRemoteOutput(host, RemoteOpts{NumLEDs: 1, Profile: neopixel.Profile(7)})
	assert.ErrorIs(t, err, neopixel.ErrUnknownProfile)
}

// decodeNRZ decodes n bytes from an SPI NRZ stream, where each data bit
// takes three SPI bits: 110 for a one and 100 for a zero.
func decodeNRZ(t *testing.T, raw []byte, n int) []byte {
	t.Helper()
	require.GreaterOrEqual(t, len(raw), 3*n)

	bit := func(i int) byte { return raw[i/8] >> (7 - i%8) & 1 }

	out := make([]byte, n)
	for i := 0; i < 8*n; i++ {
		sym := bit(3*i)<<2 | bit(3*i+1)<<1 | bit(3*i+2)
		switch sym {
		case 0b110:
			out[i/8] |= 0x80 >> (i % 8)
		case 0b100:
		default:
			t.Fatalf("bit %d: bad symbol %03b", i, sym)
		}
	}
	return out
}

func TestSPIOutput(t *testing.T) {
	tests := []struct {
		profile neopixel.Profile
		want    []byte
	}{
		{neopixel.GRB800, []byte{0x00, 0xFF, 0x00, 0x02, 0x01, 0x03}},
		{neopixel.RGB800, []byte{0xFF, 0x00, 0x00, 0x01, 0x02, 0x03}},
	}

	for _, tt := range tests {
		t.Run(tt.profile.String(), func(t *testing.T) {
			var buf bytes.Buffer
			out, err := NewSPIOutput(spitest.NewRecordRaw(&buf), nil, 2, tt.profile, 0)
			require.NoError(t, err)

			require.NoError(t, out.WriteFrame(context.Background(), testFrame()))
			assert.Equal(t, tt.want, decodeNRZ(t, buf.Bytes(), len(tt.want)))
		})
	}
}

func TestNewSPIOutput_UnknownProfile(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewSPIOutput(spitest.NewRecordRaw(&buf), nil, 2, neopixel.Profile(5), 0)
	assert.ErrorIs(t, err, neopixel.ErrUnknownProfile)
}
