package clusters

import "purifier-go-home/internal/zcl"

const AirQualityID uint16 = 0x005B

const AttrAirQuality uint16 = 0x0000

var AirQuality = zcl.ClusterDef{
	ID:   AirQualityID,
	Name: "Air Quality",
	Attributes: []zcl.AttributeDef{
		{ID: AttrAirQuality, Name: "AirQuality", Type: zcl.TypeEnum8, Access: zcl.AccessRead | zcl.AccessReport},
	},
}
