//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"strings"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/fan/purifier_living_room/fan/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// haDiscovery is a generic HA discovery payload.
type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	CommandTopic      string   `json:"command_topic,omitempty"`
	CommandTemplate   string   `json:"command_template,omitempty"`
	AvailabilityTopic string   `json:"availability_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	Options           []string `json:"options,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	Min               int      `json:"min,omitempty"`
	Max               int      `json:"max,omitempty"`
	EntityCategory    string   `json:"entity_category,omitempty"`
	Device            haDevice `json:"device"`

	// fan
	StateValueTemplate        string   `json:"state_value_template,omitempty"`
	PercentageStateTopic      string   `json:"percentage_state_topic,omitempty"`
	PercentageCommandTopic    string   `json:"percentage_command_topic,omitempty"`
	PercentageValueTemplate   string   `json:"percentage_value_template,omitempty"`
	PercentageCommandTemplate string   `json:"percentage_command_template,omitempty"`
	PresetModeStateTopic      string   `json:"preset_mode_state_topic,omitempty"`
	PresetModeCommandTopic    string   `json:"preset_mode_command_topic,omitempty"`
	PresetModeValueTemplate   string   `json:"preset_mode_value_template,omitempty"`
	PresetModeCommandTemplate string   `json:"preset_mode_command_template,omitempty"`
	PresetModes               []string `json:"preset_modes,omitempty"`
}

// presetModes are the fan modes offered to Home Assistant besides on/off.
var presetModes = []string{"low", "medium", "high", "auto"}

var airQualityOptions = []string{"unknown", "good", "fair", "moderate", "poor", "very_poor", "extremely_poor"}

// topicName sanitizes a device name for use in MQTT topics.
func topicName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "purifier"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, name)
}

// nodeIdentifier returns the unique identifier for the HA device registry.
func nodeIdentifier(name string) string {
	return "purifier_" + topicName(name)
}

// buildDiscovery generates the HA discovery messages for the purifier: the
// fan, a display brightness number and the two air-quality sensors.
func buildDiscovery(name, prefix, version string) []discoveryMsg {
	avail := prefix + "/bridge/state"
	stateTopic := prefix + "/" + topicName(name)
	cmdTopic := stateTopic + "/set"
	nodeID := nodeIdentifier(name)

	haDev := haDevice{
		Identifiers:  []string{nodeID},
		Manufacturer: "purifier-go-home",
		Model:        "Air Purifier",
		Name:         name,
		SWVersion:    version,
	}

	fan := haDiscovery{
		Name:                      name,
		UniqueID:                  nodeID + "_fan",
		StateTopic:                stateTopic,
		CommandTopic:              cmdTopic,
		CommandTemplate:           `{"state": "{{ value }}"}`,
		AvailabilityTopic:         avail,
		StateValueTemplate:        "{{ value_json.state }}",
		PayloadOn:                 "ON",
		PayloadOff:                "OFF",
		PercentageStateTopic:      stateTopic,
		PercentageCommandTopic:    cmdTopic,
		PercentageValueTemplate:   "{{ value_json.percentage }}",
		PercentageCommandTemplate: `{"percentage": {{ value }}}`,
		PresetModeStateTopic:      stateTopic,
		PresetModeCommandTopic:    cmdTopic,
		PresetModeValueTemplate:   "{{ value_json.preset_mode }}",
		PresetModeCommandTemplate: `{"preset_mode": "{{ value }}"}`,
		PresetModes:               presetModes,
		Device:                    haDev,
	}

	brightness := haDiscovery{
		Name:              name + " Display Brightness",
		UniqueID:          nodeID + "_brightness",
		StateTopic:        stateTopic,
		CommandTopic:      cmdTopic,
		CommandTemplate:   `{"brightness": {{ value }}}`,
		AvailabilityTopic: avail,
		ValueTemplate:     "{{ value_json.brightness }}",
		Min:               0,
		Max:               3,
		EntityCategory:    "config",
		Device:            haDev,
	}

	pm25 := haDiscovery{
		Name:              name + " PM2.5",
		UniqueID:          nodeID + "_pm25",
		StateTopic:        stateTopic,
		AvailabilityTopic: avail,
		ValueTemplate:     "{{ value_json.pm25 }}",
		UnitOfMeasurement: "µg/m³",
		DeviceClass:       "pm25",
		StateClass:        "measurement",
		Device:            haDev,
	}

	quality := haDiscovery{
		Name:              name + " Air Quality",
		UniqueID:          nodeID + "_air_quality",
		StateTopic:        stateTopic,
		AvailabilityTopic: avail,
		ValueTemplate:     "{{ value_json.air_quality }}",
		DeviceClass:       "enum",
		Options:           airQualityOptions,
		Device:            haDev,
	}

	return []discoveryMsg{
		{Topic: fmt.Sprintf("homeassistant/fan/%s/fan/config", nodeID), Payload: mustJSON(fan)},
		{Topic: fmt.Sprintf("homeassistant/number/%s/brightness/config", nodeID), Payload: mustJSON(brightness)},
		{Topic: fmt.Sprintf("homeassistant/sensor/%s/pm25/config", nodeID), Payload: mustJSON(pm25)},
		{Topic: fmt.Sprintf("homeassistant/sensor/%s/air_quality/config", nodeID), Payload: mustJSON(quality)},
	}
}

// buildRemoveDiscovery generates empty retained messages that remove the
// purifier's entities from HA.
func buildRemoveDiscovery(name string) []discoveryMsg {
	nodeID := nodeIdentifier(name)
	components := []struct{ comp, obj string }{
		{"fan", "fan"},
		{"number", "brightness"},
		{"sensor", "pm25"},
		{"sensor", "air_quality"},
	}
	msgs := make([]discoveryMsg, 0, len(components))
	for _, c := range components {
		msgs = append(msgs, discoveryMsg{
			Topic:   fmt.Sprintf("homeassistant/%s/%s/%s/config", c.comp, nodeID, c.obj),
			Payload: nil, // empty retained = delete
		})
	}
	return msgs
}
