package clusters

import "purifier-go-home/internal/zcl"

const FanControlID uint16 = 0x0202

const (
	AttrFanMode         uint16 = 0x0000
	AttrFanModeSequence uint16 = 0x0001
	AttrPercentSetting  uint16 = 0x0002
	AttrPercentCurrent  uint16 = 0x0003
	AttrSpeedMax        uint16 = 0x0004
	AttrSpeedSetting    uint16 = 0x0005
	AttrSpeedCurrent    uint16 = 0x0006
)

// FanModeSequenceOffLowMedHighAuto advertises Off/Low/Medium/High/Auto.
const FanModeSequenceOffLowMedHighAuto uint8 = 2

// SpeedMax is the number of discrete speed steps; speeds map 1:1 to percent.
const SpeedMax uint8 = 100

var FanControl = zcl.ClusterDef{
	ID:   FanControlID,
	Name: "Fan Control",
	Attributes: []zcl.AttributeDef{
		{ID: AttrFanMode, Name: "FanMode", Type: zcl.TypeEnum8, Access: zcl.AccessRead | zcl.AccessWrite | zcl.AccessReport},
		{ID: AttrFanModeSequence, Name: "FanModeSequence", Type: zcl.TypeEnum8, Access: zcl.AccessRead},
		{ID: AttrPercentSetting, Name: "PercentSetting", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessWrite | zcl.AccessReport, Nullable: true},
		{ID: AttrPercentCurrent, Name: "PercentCurrent", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: AttrSpeedMax, Name: "SpeedMax", Type: zcl.TypeUint8, Access: zcl.AccessRead},
		{ID: AttrSpeedSetting, Name: "SpeedSetting", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessWrite | zcl.AccessReport, Nullable: true},
		{ID: AttrSpeedCurrent, Name: "SpeedCurrent", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
	},
}
