package store

import "fmt"

// Path addresses one attribute instance.
type Path struct {
	Endpoint  uint8  `json:"endpoint"`
	Cluster   uint16 `json:"cluster"`
	Attribute uint16 `json:"attribute"`
}

func (p Path) String() string {
	return fmt.Sprintf("%d/0x%04X/0x%04X", p.Endpoint, p.Cluster, p.Attribute)
}

// Origin tells whether a change came in as an authoritative write, as a
// locally computed report or from a factory reset.
type Origin string

const (
	OriginUpdate Origin = "update"
	OriginReport Origin = "report"
	OriginReset  Origin = "reset"
)

// Attribute is a snapshot of one stored attribute.
type Attribute struct {
	Path
	Name     string `json:"name"`
	Type     string `json:"type"`
	Writable bool   `json:"writable"`
	Value    any    `json:"value"`
}

// Change describes a committed attribute value.
type Change struct {
	Path   Path   `json:"path"`
	Name   string `json:"name"`
	Value  any    `json:"value"`
	Origin Origin `json:"origin"`
}
