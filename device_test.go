package neopixel

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/neopixel/ledserial"
	"libdb.so/neopixel/waveform"
	"libdb.so/neopixel/waveform/wavetest"
	"periph.io/x/conn/v3/physic"
)

func newTestDevice(t *testing.T) (*Device, *wavetest.Recorder) {
	t.Helper()
	rec := wavetest.NewRecorder(16 * physic.MegaHertz)
	return NewDevice(rec, &DeviceOpts{Clock: rec}), rec
}

func lastFrame(t *testing.T, rec *wavetest.Recorder, rate waveform.Rate) []byte {
	t.Helper()

	frames := rec.Frames(waveform.Latch)
	require.NotEmpty(t, frames)

	timing, err := rate.Timing()
	require.NoError(t, err)

	data, err := frames[len(frames)-1].Decode(timing)
	require.NoError(t, err)
	return data
}

func TestDevice_NotInitialized(t *testing.T) {
	d, rec := newTestDevice(t)

	_, err := d.Handle(ledserial.ClearPacket{})
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = d.Handle(ledserial.SetPacket{Pix: []byte{1, 2, 3}})
	assert.ErrorIs(t, err, ErrNotInitialized)

	assert.Nil(t, d.Strip())
	assert.Equal(t, ledserial.ReadContext{}, d.ReadContext())
	assert.Empty(t, rec.Edges())
}

func TestDevice_Packets(t *testing.T) {
	d, rec := newTestDevice(t)

	reply, err := d.Handle(ledserial.InitializePacket{NumLEDs: 3, Profile: uint8(GRB800)})
	require.NoError(t, err)
	assert.Equal(t, ledserial.AckPacket{IncomingPacketType: ledserial.TypeInitializePacket}, reply)
	assert.True(t, rec.IsOutput())

	// Ready pattern: first red, last blue.
	assert.Equal(t, []byte{
		0x00, 0xFF, 0x00,
		0x00, 0x00, 0x00,
		0x00, 0x00, 0xFF,
	}, lastFrame(t, rec, waveform.KHz800))

	rctx := d.ReadContext()
	assert.Equal(t, uint16(3), rctx.NumLEDs)
	assert.Len(t, rctx.LEDBuffer, 9)

	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	reply, err = d.Handle(ledserial.SetPacket{Pix: pix})
	require.NoError(t, err)
	assert.Equal(t, ledserial.AckPacket{IncomingPacketType: ledserial.TypeSetPacket}, reply)
	assert.Equal(t, pix, lastFrame(t, rec, waveform.KHz800))

	_, err = d.Handle(ledserial.SetPacket{Pix: pix[:6]})
	assert.Error(t, err)

	reply, err = d.Handle(ledserial.ClearPacket{})
	require.NoError(t, err)
	assert.Equal(t, ledserial.AckPacket{IncomingPacketType: ledserial.TypeClearPacket}, reply)
	assert.Equal(t, make([]byte, 9), lastFrame(t, rec, waveform.KHz800))
}

func TestDevice_Reinitialize(t *testing.T) {
	d, rec := newTestDevice(t)

	_, err := d.Handle(ledserial.InitializePacket{NumLEDs: 4, Profile: uint8(GRB800)})
	require.NoError(t, err)

	_, err = d.Handle(ledserial.InitializePacket{NumLEDs: 2, Profile: uint8(RGB400)})
	require.NoError(t, err)
	assert.Equal(t, RGB400, d.Strip().Profile())

	frames := rec.Frames(waveform.Latch)
	require.Len(t, frames, 3)
	// The old strip is turned off before the new one starts.
	t800, _ := waveform.KHz800.Timing()
	off, err := frames[1].Decode(t800)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 12), off)

	assert.Equal(t, []byte{0xFF, 0x00, 0x00, 0x00, 0x00, 0xFF}, lastFrame(t, rec, waveform.KHz400))
}

func TestDevice_InitializeErrors(t *testing.T) {
	d, _ := newTestDevice(t)

	_, err := d.Handle(ledserial.InitializePacket{NumLEDs: 0})
	assert.Error(t, err)

	_, err = d.Handle(ledserial.InitializePacket{NumLEDs: 1, Profile: 9})
	assert.ErrorIs(t, err, ErrUnknownProfile)

	slow := wavetest.NewRecorder(physic.MegaHertz)
	_, err = NewDevice(slow, &DeviceOpts{Clock: slow}).
		Handle(ledserial.InitializePacket{NumLEDs: 1})
	assert.ErrorIs(t, err, waveform.ErrUnsupportedClock)

	assert.Nil(t, d.Strip())
}

type splitReadWriter struct {
	io.Reader
	io.Writer
}

func TestDevice_Serve(t *testing.T) {
	var in bytes.Buffer
	require.NoError(t, ledserial.WriteIncomingPacket(&in, ledserial.ClearPacket{}))
	require.NoError(t, ledserial.WriteIncomingPacket(&in, ledserial.InitializePacket{NumLEDs: 2}))
	require.NoError(t, ledserial.WriteIncomingPacket(&in, ledserial.SetPacket{Pix: []byte{1, 2, 3, 4, 5, 6}}))

	d, rec := newTestDevice(t)

	var out bytes.Buffer
	err := d.Serve(context.Background(), splitReadWriter{&in, &out})
	require.NoError(t, err)

	var replies []ledserial.OutgoingPacket
	for out.Len() > 0 {
		p, err := ledserial.ReadOutgoingPacket(&out)
		require.NoError(t, err)
		replies = append(replies, p)
	}

	assert.Equal(t, []ledserial.OutgoingPacket{
		ledserial.ErrorPacket{Message: ErrNotInitialized.Error()},
		ledserial.LogPacket{Message: "initialized 2 LEDs as grb800"},
		ledserial.AckPacket{IncomingPacketType: ledserial.TypeInitializePacket},
		ledserial.AckPacket{IncomingPacketType: ledserial.TypeSetPacket},
	}, replies)

	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, lastFrame(t, rec, waveform.KHz800))
}

func TestDevice_ServeBadChecksum(t *testing.T) {
	var in bytes.Buffer
	require.NoError(t, ledserial.WriteIncomingPacket(&in, ledserial.ClearPacket{}))
	raw := in.Bytes()
	raw[len(raw)-1] ^= 0xFF

	d, _ := newTestDevice(t)

	var out bytes.Buffer
	require.NoError(t, d.Serve(context.Background(), splitReadWriter{&in, &out}))

	p, err := ledserial.ReadOutgoingPacket(&out)
	require.NoError(t, err)
	assert.Equal(t, ledserial.ErrorPacket{Message: ledserial.ErrChecksum.Error()}, p)
}

func TestDevice_ServeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, _ := newTestDevice(t)
	err := d.Serve(ctx, splitReadWriter{&bytes.Buffer{}, io.Discard})
	assert.ErrorIs(t, err, context.Canceled)
}
