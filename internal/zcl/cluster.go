package zcl

// Access flags
const (
	AccessRead   uint8 = 0x01
	AccessWrite  uint8 = 0x02
	AccessReport uint8 = 0x04
)

// AttributeDef describes one attribute of a cluster.
type AttributeDef struct {
	ID       uint16 `json:"id"`
	Name     string `json:"name"`
	Type     uint8  `json:"type"`
	Access   uint8  `json:"access"`
	Nullable bool   `json:"nullable,omitempty"`
}

// IsWritable reports whether the attribute accepts authoritative writes
// from the protocol side. Read-only attributes change only through reports.
func (a *AttributeDef) IsWritable() bool {
	return a.Access&AccessWrite != 0
}

// ClusterDef is a cluster together with the attributes the purifier
// implements from it.
type ClusterDef struct {
	ID         uint16         `json:"id"`
	Name       string         `json:"name"`
	Attributes []AttributeDef `json:"attributes,omitempty"`
}

func (c ClusterDef) clone() ClusterDef {
	c.Attributes = append([]AttributeDef(nil), c.Attributes...)
	return c
}
