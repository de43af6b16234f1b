package daemon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/neopixel"
	"libdb.so/neopixel/internal/hostline"
	"libdb.so/neopixel/waveform"
)

func TestOpenOutput_Sim(t *testing.T) {
	cfg := validConfig()
	cfg.Profile = neopixel.RGB400

	out, err := OpenOutput(&cfg, testLogger())
	require.NoError(t, err)
	defer out.Close()

	so, ok := out.(*StripOutput)
	require.True(t, ok)
	assert.Equal(t, cfg.NumLEDs(), so.Strip().NumPixels())
	assert.Equal(t, neopixel.RGB400, so.Strip().Profile())

	require.NoError(t, out.WriteFrame(context.Background(), testFrame()))
	_, sent := so.Strip().Emitter().LastEnd()
	assert.True(t, sent)
}

func TestOpenLine(t *testing.T) {
	cfg := validConfig()

	line, excl, err := OpenLine(&cfg)
	require.NoError(t, err)
	assert.Equal(t, hostline.Discard{}, line)
	assert.Equal(t, waveform.NoExclusive, excl)

	cfg.Backend = SerialBackend
	_, _, err = OpenLine(&cfg)
	assert.Error(t, err)
}
