package app

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func bufferBytes(t *testing.T, buf *circularBuffer) []byte {
	out := &bytes.Buffer{}
	_, err := buf.WriteTo(out)
	require.Nil(t, err)
	return out.Bytes()
}

func TestCircularBuffer(t *testing.T) {
	buf := newBuffer(2) // small buffer for testing

	_, err := buf.Write([]byte("hello"))
	require.Nil(t, err)
	_, err = buf.Write([]byte("world"))
	require.Nil(t, err)

	require.Equal(t, []byte("helloworld"), bufferBytes(t, buf))

	buf.Reset()
	require.Empty(t, bufferBytes(t, buf))
}

func TestCircularBufferOverflow(t *testing.T) {
	buf := newBuffer(2)

	// overflow drops the oldest chunk, the newest lines survive
	line := bytes.Repeat([]byte{'x'}, chunkSize/2)
	for i := 0; i < 8; i++ {
		_, err := buf.Write(line)
		require.Nil(t, err)
	}

	out := bufferBytes(t, buf)
	require.NotEmpty(t, out)
	require.LessOrEqual(t, len(out), 2*chunkSize)
}

func TestGetLogger(t *testing.T) {
	modules["module1"] = "debug"
	modules["module2"] = "warn"

	require.Equal(t, zerolog.DebugLevel, GetLogger("module1").GetLevel())
	require.Equal(t, zerolog.WarnLevel, GetLogger("module2").GetLevel())

	// non-existent module falls back to the global logger
	require.Equal(t, log.Logger.GetLevel(), GetLogger("nonexistent").GetLevel())
}
