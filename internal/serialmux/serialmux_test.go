package serialmux

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvLine(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		require.True(t, ok, "channel closed")
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
		return ""
	}
}

func TestMonitorFansOutLines(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	id1, ch1 := mux.Subscribe()
	_, ch2 := mux.Subscribe()
	assert.NotEqual(t, "", id1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.AddReadData("RX,7CC355FE01030000,-80,9\r\n\r\nboot ok\n")

	for _, ch := range []chan string{ch1, ch2} {
		assert.Equal(t, "RX,7CC355FE01030000,-80,9", recvLine(t, ch))
		assert.Equal(t, "boot ok", recvLine(t, ch), "blank lines are skipped")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not stop")
	}
}

func TestMonitorReturnsNilAtEOF(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData("one\n")
	port.SetEOF()
	mux := NewSerialMux(port)

	err := mux.Monitor(context.Background())
	assert.NoError(t, err)
}

func TestMonitorStopsOnClose(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	require.NoError(t, mux.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not stop after Close")
	}

	_, ok := <-ch
	assert.False(t, ok, "subscriber channel must be closed")
	assert.True(t, port.Closed)
	assert.ErrorIs(t, mux.SendCommand("?"), ErrClosed)
	assert.NoError(t, mux.Close(), "second Close is a no-op")
}

func TestUnsubscribe(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())
	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)
	mux.Unsubscribe(id) // unknown id is ignored
}

func TestSendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NoError(t, mux.SendCommand("TX,AB"))
	require.NoError(t, mux.SendCommand("?\n"))
	assert.Equal(t, "TX,AB\n?\n", port.Written())

	port.WriteError = errors.New("unplugged")
	assert.EqualError(t, mux.SendCommand("?"), "unplugged")

	port.ShortWrite = true
	assert.ErrorIs(t, mux.SendCommand("?"), ErrWriteFailed)
}

func TestInitialise(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	mux.now = func() time.Time { return time.Unix(1760000000, 0) }

	require.NoError(t, mux.Initialise())
	assert.Equal(t, "C=1760000000\n?\n", port.Written())

	port.WriteError = io.ErrClosedPipe
	err := mux.Initialise()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synchronise clock")
}

func TestMockSerialMuxReplaysLines(t *testing.T) {
	mux := NewMockSerialMux([]string{"first", "second"}, time.Millisecond)
	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mux.Monitor(ctx) }()

	assert.Equal(t, "first", recvLine(t, ch))
	assert.Equal(t, "second", recvLine(t, ch))
	assert.Equal(t, "first", recvLine(t, ch))

	require.NoError(t, mux.SendCommand("?"))
	assert.True(t, strings.HasSuffix(mux.port.Written(), "?\n"))
	require.NoError(t, mux.Close())
}
