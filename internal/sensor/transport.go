package sensor

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Transport is the byte-stream link to the sensor.
type Transport interface {
	Write(p []byte) (int, error)
	// ReadWithTimeout fills buf until it is full or timeout elapses and
	// returns the number of bytes received. A timeout is not an error.
	ReadWithTimeout(buf []byte, timeout time.Duration) (int, error)
	Close() error
}

// SerialTransport talks to the sensor over a UART.
type SerialTransport struct {
	port serial.Port
	name string
}

// OpenSerial opens the sensor UART at 8N1.
func OpenSerial(portName string, baudRate int) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("sensor: open %s: %w", portName, err)
	}
	return &SerialTransport{port: port, name: portName}, nil
}

// Write discards any stale input before sending so the next read only sees
// the response to this request.
func (t *SerialTransport) Write(p []byte) (int, error) {
	if err := t.port.ResetInputBuffer(); err != nil {
		return 0, fmt.Errorf("sensor: flush %s: %w", t.name, err)
	}
	n, err := t.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("sensor: write %s: %w", t.name, err)
	}
	return n, nil
}

func (t *SerialTransport) ReadWithTimeout(buf []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	total := 0
	for total < len(buf) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := t.port.SetReadTimeout(remaining); err != nil {
			return total, fmt.Errorf("sensor: set read timeout: %w", err)
		}
		n, err := t.port.Read(buf[total:])
		if err != nil {
			return total, fmt.Errorf("sensor: read %s: %w", t.name, err)
		}
		if n == 0 {
			break
		}
		total += n
	}
	return total, nil
}

func (t *SerialTransport) Close() error {
	return t.port.Close()
}

// SimTransport answers every request with a frame built from a settable
// concentration. It backs the sensor when no UART is configured.
type SimTransport struct {
	mu      sync.Mutex
	pm25    int
	pending []byte
}

func NewSimTransport(pm25 int) *SimTransport {
	return &SimTransport{pm25: pm25}
}

// SetPM25 changes the concentration reported by subsequent requests.
func (s *SimTransport) SetPM25(v int) {
	s.mu.Lock()
	s.pm25 = v
	s.mu.Unlock()
}

func (s *SimTransport) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(p) == len(Command) && [5]byte(p) == Command {
		s.pending = EncodeFrame(s.pm25)
	}
	return len(p), nil
}

func (s *SimTransport) ReadWithTimeout(buf []byte, _ time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(buf, s.pending)
	s.pending = nil
	return n, nil
}

func (s *SimTransport) Close() error { return nil }
