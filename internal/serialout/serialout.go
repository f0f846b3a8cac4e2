// Package serialout streams session output over a serial port as
// newline-delimited JSON, one message per line. Downstream hardware
// (LED signs, data loggers) consumes the stream without speaking HTTP.
package serialout

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/kinetic-data/motion.report/internal/track"
)

// Porter is the minimal serial port surface the sink needs. The
// abstraction enables unit testing without real serial hardware.
type Porter interface {
	io.Writer
	io.Closer
}

// PortOptions describes the serial connection parameters used when
// opening a real serial port.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and applies defaults for any unset
// values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}

	opts.Parity = parity
	return opts, nil
}

// serialMode converts the port options into the serial.Mode structure
// required by go.bug.st/serial when opening a port.
func (o PortOptions) serialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.StopBits(opts.StopBits),
	}
	switch opts.Parity {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// queueDepth is the send buffer depth. A stalled port drops messages
// past this backlog rather than blocking the capture loop.
const queueDepth = 256

// Sink writes observer messages to a serial port as NDJSON. Send never
// blocks: a writer goroutine drains an internal queue, and messages
// beyond the queue depth are dropped and counted.
type Sink struct {
	port  Porter
	queue chan track.Message
	done  chan struct{}

	mu      sync.Mutex
	drops   uint64
	closed  bool
	lastErr error
}

// Open opens the serial device at path and starts the sink.
func Open(path string, opts PortOptions) (*Sink, error) {
	mode, err := opts.serialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return NewSink(port), nil
}

// NewSink starts a sink over an already-open port. The sink takes
// ownership of the port.
func NewSink(port Porter) *Sink {
	s := &Sink{
		port:  port,
		queue: make(chan track.Message, queueDepth),
		done:  make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Send enqueues a message for transmission. Implements track.Observer.
// The lock is held across the enqueue so a concurrent Close cannot
// close the queue between the closed check and the send.
func (s *Sink) Send(m track.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- m:
	default:
		s.drops++
	}
}

// Drops reports how many messages were discarded to a full queue.
func (s *Sink) Drops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

// Err returns the last write error, if any. A write error stops the
// sink from transmitting but Send remains safe to call.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Sink) writeLoop() {
	defer close(s.done)
	for m := range s.queue {
		s.mu.Lock()
		failed := s.lastErr != nil
		s.mu.Unlock()
		if failed {
			continue // drain without writing
		}

		line, err := json.Marshal(m)
		if err != nil {
			continue
		}
		line = append(line, '\n')
		if _, err := s.port.Write(line); err != nil {
			s.mu.Lock()
			s.lastErr = fmt.Errorf("serial write failed: %w", err)
			s.mu.Unlock()
			track.Opsf("serial sink: %v", err)
		}
	}
}

// Close stops accepting messages, flushes the queue, and closes the
// port.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.port.Close()
}
