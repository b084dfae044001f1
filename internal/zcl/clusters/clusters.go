// Package clusters defines the clusters exposed by the purifier and the
// endpoints that host them.
package clusters

import "purifier-go-home/internal/zcl"

// Endpoints
const (
	EndpointPurifier uint8 = 1
	EndpointSensor   uint8 = 2
)

// RegisterAll adds every purifier cluster to r.
func RegisterAll(r *zcl.Registry) {
	r.Register(OnOff)           // 0x0006
	r.Register(AirQuality)      // 0x005B
	r.Register(FanControl)      // 0x0202
	r.Register(PM25Measurement) // 0x042A
}

// Layout lists the clusters hosted on each endpoint.
func Layout() map[uint8][]uint16 {
	return map[uint8][]uint16{
		EndpointPurifier: {OnOffID, FanControlID},
		EndpointSensor:   {AirQualityID, PM25MeasurementID},
	}
}
