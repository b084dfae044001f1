package sensor

import (
	"context"
	"log/slog"
	"time"

	"purifier-go-home/internal/device"
)

const (
	DefaultPeriod      = time.Second
	DefaultReadTimeout = 100 * time.Millisecond
)

// Poller requests a measurement on a fixed period and publishes each
// decoded reading to a Slot.
type Poller struct {
	transport   Transport
	slot        *Slot
	period      time.Duration
	readTimeout time.Duration
	logger      *slog.Logger
	buf         []byte
}

func NewPoller(t Transport, slot *Slot, period, readTimeout time.Duration, logger *slog.Logger) *Poller {
	if period <= 0 {
		period = DefaultPeriod
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &Poller{
		transport:   t,
		slot:        slot,
		period:      period,
		readTimeout: readTimeout,
		logger:      logger,
		buf:         make([]byte, 32),
	}
}

// Poll performs one request/response cycle. Transport errors and invalid
// frames both produce an Unknown reading.
func (p *Poller) Poll() device.Reading {
	if _, err := p.transport.Write(Command[:]); err != nil {
		p.logger.Warn("sensor request failed", "err", err)
		return device.Reading{Level: device.QualityUnknown}
	}
	n, err := p.transport.ReadWithTimeout(p.buf, p.readTimeout)
	if err != nil {
		p.logger.Warn("sensor read failed", "err", err)
		return device.Reading{Level: device.QualityUnknown}
	}
	pm25, err := Decode(p.buf[:n])
	if err != nil {
		p.logger.Debug("sensor frame rejected", "bytes", n, "err", err)
		return device.Reading{Level: device.QualityUnknown}
	}
	return device.Reading{PM25: pm25, Level: LevelFor(pm25)}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		p.slot.Publish(p.Poll())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
