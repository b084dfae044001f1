package coordinator

import (
	"purifier-go-home/internal/device"
	"purifier-go-home/internal/indicator"
	"purifier-go-home/internal/store"
	"purifier-go-home/internal/zcl/clusters"
)

func fanControl(attr uint16) store.Path {
	return store.Path{Endpoint: clusters.EndpointPurifier, Cluster: clusters.FanControlID, Attribute: attr}
}

var (
	pathOnOff      = store.Path{Endpoint: clusters.EndpointPurifier, Cluster: clusters.OnOffID, Attribute: clusters.AttrOnOff}
	pathAirQuality = store.Path{Endpoint: clusters.EndpointSensor, Cluster: clusters.AirQualityID, Attribute: clusters.AttrAirQuality}
	pathPM25       = store.Path{Endpoint: clusters.EndpointSensor, Cluster: clusters.PM25MeasurementID, Attribute: clusters.AttrMeasuredValue}
)

// reportStatic writes the attributes that never change at runtime.
func (c *Coordinator) reportStatic() {
	_ = c.store.Report(fanControl(clusters.AttrFanModeSequence), clusters.FanModeSequenceOffLowMedHighAuto)
	_ = c.store.Report(fanControl(clusters.AttrSpeedMax), clusters.SpeedMax)
}

// publish mirrors the current state to the store, the Auto indicator and
// the event bus. It reads the state fresh so concurrent callers converge
// on the latest values.
func (c *Coordinator) publish() {
	c.reportMu.Lock()
	defer c.reportMu.Unlock()

	s := c.State()

	var setting any = uint8(s.Percentage)
	if s.AutoModeActive {
		setting = nil
	}
	c.report(fanControl(clusters.AttrFanMode), uint8(s.Mode))
	c.report(fanControl(clusters.AttrPercentSetting), setting)
	c.report(fanControl(clusters.AttrSpeedSetting), setting)
	c.report(fanControl(clusters.AttrPercentCurrent), uint8(s.Percentage))
	c.report(fanControl(clusters.AttrSpeedCurrent), uint8(s.Percentage))
	c.report(pathOnOff, s.Mode != device.FanModeOff)

	if s.AutoModeActive {
		c.hw.Indicators.SetOn(indicator.Auto)
	} else {
		c.hw.Indicators.SetOff(indicator.Auto)
	}

	c.events.Publish(EventStateChanged, s)
}

// reportReading mirrors a sensor reading. An Unknown reading reports the
// Unknown level and a null concentration.
func (c *Coordinator) reportReading(r device.Reading) {
	c.report(pathAirQuality, uint8(r.Level))
	if r.Level == device.QualityUnknown {
		c.report(pathPM25, nil)
		return
	}
	c.report(pathPM25, float32(r.PM25))
}

func (c *Coordinator) report(p store.Path, v any) {
	if err := c.store.Report(p, v); err != nil {
		c.logger.Warn("attribute report failed", "path", p.String(), "err", err)
	}
}
