package coordinator

import (
	"context"

	"purifier-go-home/internal/device"
)

// ReadingSource delivers sensor readings, blocking until one is available.
type ReadingSource interface {
	Wait(ctx context.Context) (device.Reading, error)
}

// RunAutoControl consumes readings until ctx is cancelled. Each reading
// updates the indicator colour, the sensor attributes and the auto
// recommendation.
func (c *Coordinator) RunAutoControl(ctx context.Context, src ReadingSource) {
	for {
		r, err := src.Wait(ctx)
		if err != nil {
			return
		}
		c.HandleReading(r)
	}
}

// HandleReading processes one reading.
func (c *Coordinator) HandleReading(r device.Reading) {
	c.hw.Indicators.SetAirQuality(r.Level)
	c.reportReading(r)
	c.events.Publish(EventAirQuality, r)
	c.OnAirQualityReading(r)
}
