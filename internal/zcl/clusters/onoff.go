package clusters

import "purifier-go-home/internal/zcl"

const OnOffID uint16 = 0x0006

const AttrOnOff uint16 = 0x0000

var OnOff = zcl.ClusterDef{
	ID:   OnOffID,
	Name: "On/Off",
	Attributes: []zcl.AttributeDef{
		{ID: AttrOnOff, Name: "OnOff", Type: zcl.TypeBool, Access: zcl.AccessRead | zcl.AccessWrite | zcl.AccessReport},
	},
}
