// Package serialmux multiplexes the line-oriented USB serial link to the LoRa
// station board: many subscribers receive every line the board prints, and
// any of them may write a command back.
package serialmux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrWriteFailed = errors.New("failed to write to serial port")

// ErrClosed is returned by SendCommand after Close.
var ErrClosed = errors.New("serial mux closed")

// subscriberBuffer is the per-subscriber queue depth. Lines are dropped for a
// subscriber whose queue is full.
const subscriberBuffer = 64

// SerialMuxInterface is implemented by SerialMux and DisabledSerialMux.
type SerialMuxInterface interface {
	// Subscribe returns an ID and a channel that receives every line read
	// from the port.
	Subscribe() (string, chan string)
	Unsubscribe(string)
	// SendCommand writes one newline-terminated command line.
	SendCommand(string) error
	// Monitor reads lines until ctx is done or the port fails.
	Monitor(context.Context) error
	Close() error
	// Initialise brings the board into a known state.
	Initialise() error
	// AttachAdminRoutes serves the board console under /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// SerialMux fans the lines read from one serial port out to subscribers.
type SerialMux[T SerialPorter] struct {
	port T
	now  func() time.Time

	mu     sync.Mutex // guards subs and closed
	subs   map[string]chan string
	closed bool

	writeMu sync.Mutex
}

// NewSerialMux wraps an open port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port: port,
		now:  time.Now,
		subs: make(map[string]chan string),
	}
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string, subscriberBuffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return id, ch
	}
	s.subs[id] = ch
	return id, ch
}

func (s *SerialMux[T]) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

// Initialise syncs the board clock to the host and asks for a status line so
// the gateway learns the board's radio settings at startup.
func (s *SerialMux[T]) Initialise() error {
	if err := s.SendCommand(ClockCommand(s.now())); err != nil {
		return fmt.Errorf("failed to synchronise clock: %w", err)
	}
	if err := s.SendCommand(StatusCommand); err != nil {
		return fmt.Errorf("failed to request status: %w", err)
	}
	return nil
}

// SendCommand writes command followed by a newline. Writes are serialised so
// a TX command is never interleaved with another command.
func (s *SerialMux[T]) SendCommand(command string) error {
	if s.isClosed() {
		return ErrClosed
	}
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	n, err := s.port.Write([]byte(command))
	switch {
	case err != nil:
		return err
	case n != len(command):
		return ErrWriteFailed
	}
	return nil
}

type readResult struct {
	line string
	err  error // set once, on the last result
}

// readLines scans the port until it fails, then reports the error (io.EOF
// at end of input) and closes out.
func (s *SerialMux[T]) readLines(ctx context.Context, out chan<- readResult) {
	defer close(out)
	sc := bufio.NewScanner(s.port)
	for sc.Scan() {
		select {
		case out <- readResult{line: sc.Text()}:
		case <-ctx.Done():
			return
		}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case out <- readResult{err: err}:
	case <-ctx.Done():
	}
}

// Monitor reads lines from the port and hands each one to every subscriber.
// Trailing carriage returns are stripped and blank lines skipped. It returns
// nil when the port reaches EOF or the mux is closed.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	results := make(chan readResult)
	go s.readLines(ctx, results)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-results:
			if !ok {
				return ctx.Err()
			}
			if s.isClosed() {
				return nil
			}
			if r.err != nil {
				if errors.Is(r.err, io.EOF) {
					return nil
				}
				return fmt.Errorf("read serial port: %w", r.err)
			}
			if line := strings.TrimRight(r.line, "\r"); strings.TrimSpace(line) != "" {
				s.publish(line)
			}
		}
	}
}

// publish never blocks; a subscriber with a full queue misses the line.
func (s *SerialMux[T]) publish(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- line:
		default:
		}
	}
}

func (s *SerialMux[T]) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close closes every subscriber channel and then the port. Later calls are
// no-ops.
func (s *SerialMux[T]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, s)
}
