package realtime

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/neopixel/waveform"
	"libdb.so/neopixel/waveform/wavetest"
	"periph.io/x/conn/v3/physic"
)

func TestEnter(t *testing.T) {
	old := debug.SetGCPercent(77)
	defer debug.SetGCPercent(old)

	restore := Enter()
	assert.Equal(t, -1, debug.SetGCPercent(-1), "GC paused inside")
	restore()

	assert.Equal(t, 77, debug.SetGCPercent(77), "GC restored after")
}

func TestExclusive(t *testing.T) {
	old := debug.SetGCPercent(55)
	defer debug.SetGCPercent(old)

	rec := wavetest.NewRecorder(physic.GigaHertz)
	e, err := waveform.New(rec, rec, &waveform.Opts{Exclusive: Exclusive})
	require.NoError(t, err)
	require.NoError(t, e.Begin())

	e.Show([]byte{0xC3})

	timing, _ := waveform.KHz800.Timing()
	frames := rec.Frames(waveform.Latch)
	require.Len(t, frames, 1)
	data, err := frames[0].Decode(timing)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC3}, data)

	assert.Equal(t, 55, debug.SetGCPercent(55))
}
