package serialmux

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

var errPortClosed = errors.New("serial port closed")

// MockSerialPort replays canned board output and logs what the host writes.
type MockSerialPort struct {
	io.Reader
	pw *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	logf("mock <- %s", strings.TrimSpace(string(p)))
	return m.written.Write(p)
}

func (m *MockSerialPort) Close() error {
	return m.pw.Close()
}

// Written returns everything the host has sent so far.
func (m *MockSerialPort) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.String()
}

// NewMockSerialMux returns a mux whose port prints lines in a loop, one every
// interval, until the mux is closed. Used by the gateway's -dev mode.
func NewMockSerialMux(lines []string, interval time.Duration) *SerialMux[*MockSerialPort] {
	r, w := io.Pipe()
	port := &MockSerialPort{Reader: r, pw: w}

	go func() {
		if len(lines) == 0 {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			line := lines[i%len(lines)]
			if !strings.HasSuffix(line, "\n") {
				line += "\n"
			}
			if _, err := w.Write([]byte(line)); err != nil {
				return
			}
			<-ticker.C
		}
	}()

	return NewSerialMux(port)
}

// TestableSerialPort is a SerialPorter with scripted reads and recorded
// writes. Reads block until data is added or the port is closed.
type TestableSerialPort struct {
	mu sync.Mutex

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer
	readCond *sync.Cond
	eof      bool

	// WriteError is returned by the next Write call if set.
	WriteError error
	// ShortWrite makes Write report one byte fewer than it was given.
	ShortWrite bool
	// CloseError is returned by Close if set.
	CloseError error

	Closed     bool
	WriteCalls int
}

func NewTestableSerialPort() *TestableSerialPort {
	t := &TestableSerialPort{}
	t.readCond = sync.NewCond(&t.mu)
	return t
}

func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for !t.Closed && !t.eof && t.readBuf.Len() == 0 {
		t.readCond.Wait()
	}
	if t.readBuf.Len() > 0 {
		return t.readBuf.Read(p)
	}
	if t.Closed {
		return 0, errPortClosed
	}
	return 0, io.EOF
}

func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++
	if t.Closed {
		return 0, errPortClosed
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	n, _ := t.writeBuf.Write(p)
	if t.ShortWrite && n > 0 {
		n--
	}
	return n, nil
}

func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// AddReadData queues bytes for subsequent reads.
func (t *TestableSerialPort) AddReadData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readBuf.WriteString(data)
	t.readCond.Broadcast()
}

// SetEOF makes reads return io.EOF once the queued data is drained.
func (t *TestableSerialPort) SetEOF() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eof = true
	t.readCond.Broadcast()
}

// Written returns all data written to the port.
func (t *TestableSerialPort) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeBuf.String()
}
