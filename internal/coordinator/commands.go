package coordinator

import (
	"fmt"

	"purifier-go-home/internal/device"
	"purifier-go-home/internal/store"
	"purifier-go-home/internal/zcl/clusters"
)

// Command is a request from the protocol side or another outer surface.
// The concrete types are SetMode, SetPercentage, SetPower and SetBrightness.
type Command interface {
	command()
}

// SetMode selects a fan mode.
type SetMode struct {
	Mode device.FanMode
}

// SetPercentage sets an explicit fan speed.
type SetPercentage struct {
	Percentage int
}

// SetPower turns the purifier on (restoring the remembered setting) or off.
type SetPower struct {
	On bool
}

// SetBrightness sets the display brightness level.
type SetBrightness struct {
	Level int
}

func (SetMode) command()       {}
func (SetPercentage) command() {}
func (SetPower) command()      {}
func (SetBrightness) command() {}

// Execute applies a command exactly as the equivalent user action would.
func (c *Coordinator) Execute(cmd Command) error {
	switch cmd := cmd.(type) {
	case SetMode:
		c.ApplyMode(cmd.Mode)
	case SetPercentage:
		c.ApplyExplicitSpeed(cmd.Percentage)
	case SetPower:
		if cmd.On {
			c.OnPowerRestoreRequest()
		} else {
			c.ApplyMode(device.FanModeOff)
		}
	case SetBrightness:
		c.SetBrightness(cmd.Level)
	default:
		return fmt.Errorf("coordinator: unsupported command %T", cmd)
	}
	return nil
}

// CommandFromAttribute translates an authoritative attribute write into a
// command. ok is false for writes that do not drive the device, including
// a null speed setting.
func CommandFromAttribute(p store.Path, v any) (Command, bool) {
	switch {
	case p.Endpoint == clusters.EndpointPurifier && p.Cluster == clusters.FanControlID:
		switch p.Attribute {
		case clusters.AttrFanMode:
			if m, ok := v.(uint8); ok {
				return SetMode{Mode: device.FanMode(m)}, true
			}
		case clusters.AttrPercentSetting, clusters.AttrSpeedSetting:
			if pct, ok := v.(uint8); ok {
				return SetPercentage{Percentage: int(pct)}, true
			}
		}
	case p.Endpoint == clusters.EndpointPurifier && p.Cluster == clusters.OnOffID && p.Attribute == clusters.AttrOnOff:
		if on, ok := v.(bool); ok {
			return SetPower{On: on}, true
		}
	}
	return nil, false
}

// HandleAttributeUpdate is the store write hook.
func (c *Coordinator) HandleAttributeUpdate(p store.Path, v any) {
	cmd, ok := CommandFromAttribute(p, v)
	if !ok {
		c.logger.Debug("attribute write ignored", "path", p.String(), "value", v)
		return
	}
	c.logger.Info("protocol command", "path", p.String(), "command", fmt.Sprintf("%+v", cmd))
	if err := c.Execute(cmd); err != nil {
		c.logger.Warn("protocol command failed", "err", err)
	}
}
