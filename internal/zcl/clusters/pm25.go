package clusters

import "purifier-go-home/internal/zcl"

const PM25MeasurementID uint16 = 0x042A

const (
	AttrMeasuredValue    uint16 = 0x0000
	AttrMinMeasuredValue uint16 = 0x0001
	AttrMaxMeasuredValue uint16 = 0x0002
)

var PM25Measurement = zcl.ClusterDef{
	ID:   PM25MeasurementID,
	Name: "PM2.5 Measurement",
	Attributes: []zcl.AttributeDef{
		{ID: AttrMeasuredValue, Name: "MeasuredValue", Type: zcl.TypeFloat32, Access: zcl.AccessRead | zcl.AccessReport, Nullable: true},
		{ID: AttrMinMeasuredValue, Name: "MinMeasuredValue", Type: zcl.TypeFloat32, Access: zcl.AccessRead, Nullable: true},
		{ID: AttrMaxMeasuredValue, Name: "MaxMeasuredValue", Type: zcl.TypeFloat32, Access: zcl.AccessRead, Nullable: true},
	},
}
