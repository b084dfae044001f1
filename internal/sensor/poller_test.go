package sensor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"purifier-go-home/internal/device"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type scriptedTransport struct {
	writes   [][]byte
	response []byte
	writeErr error
	readErr  error
}

func (s *scriptedTransport) Write(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.writes = append(s.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (s *scriptedTransport) ReadWithTimeout(buf []byte, _ time.Duration) (int, error) {
	if s.readErr != nil {
		return 0, s.readErr
	}
	return copy(buf, s.response), nil
}

func (s *scriptedTransport) Close() error { return nil }

func TestPollSendsCommand(t *testing.T) {
	tr := &scriptedTransport{response: EncodeFrame(120)}
	p := NewPoller(tr, NewSlot(), 0, 0, newTestLogger())

	r := p.Poll()
	if r.PM25 != 120 || r.Level != device.QualityPoor {
		t.Errorf("reading = %+v, want pm25=120 poor", r)
	}
	if len(tr.writes) != 1 || string(tr.writes[0]) != string(Command[:]) {
		t.Errorf("writes = % x", tr.writes)
	}
}

func TestPollFailuresYieldUnknown(t *testing.T) {
	tests := []struct {
		name string
		tr   *scriptedTransport
	}{
		{"write error", &scriptedTransport{writeErr: errors.New("eio")}},
		{"read error", &scriptedTransport{readErr: errors.New("eio")}},
		{"timeout", &scriptedTransport{}},
		{"partial frame", &scriptedTransport{response: EncodeFrame(10)[:12]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPoller(tt.tr, NewSlot(), 0, 0, newTestLogger())
			if r := p.Poll(); r.Level != device.QualityUnknown {
				t.Errorf("reading = %+v, want unknown", r)
			}
		})
	}
}

func TestPollerRunPublishes(t *testing.T) {
	sim := NewSimTransport(8)
	slot := NewSlot()
	p := NewPoller(sim, slot, 10*time.Millisecond, time.Millisecond, newTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go p.Run(ctx)

	r, err := slot.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if r.PM25 != 8 || r.Level != device.QualityGood {
		t.Errorf("reading = %+v", r)
	}

	sim.SetPM25(600)
	deadline := time.After(time.Second)
	for {
		r, err := slot.Wait(ctx)
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if r.Level == device.QualityExtremelyPoor {
			break
		}
		select {
		case <-deadline:
			t.Fatal("never saw updated reading")
		default:
		}
	}
}
