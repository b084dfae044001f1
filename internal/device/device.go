// Package device holds the domain types shared by the purifier components.
package device

import (
	"fmt"
	"strings"
)

// FanMode follows the FanControl FanModeEnum numbering so values can be
// written to the attribute store without translation.
type FanMode uint8

const (
	FanModeOff    FanMode = 0
	FanModeLow    FanMode = 1
	FanModeMedium FanMode = 2
	FanModeHigh   FanMode = 3
	FanModeOn     FanMode = 4
	FanModeAuto   FanMode = 5
	FanModeSmart  FanMode = 6
)

func (m FanMode) String() string {
	switch m {
	case FanModeOff:
		return "off"
	case FanModeLow:
		return "low"
	case FanModeMedium:
		return "medium"
	case FanModeHigh:
		return "high"
	case FanModeOn:
		return "on"
	case FanModeAuto:
		return "auto"
	case FanModeSmart:
		return "smart"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Normalize folds the protocol aliases onto the five modes the purifier
// implements: On behaves as High and Smart as Auto. Unknown values become Off.
func (m FanMode) Normalize() FanMode {
	switch m {
	case FanModeOff, FanModeLow, FanModeMedium, FanModeHigh, FanModeAuto:
		return m
	case FanModeOn:
		return FanModeHigh
	case FanModeSmart:
		return FanModeAuto
	default:
		return FanModeOff
	}
}

// ParseFanMode accepts a mode name (case-insensitive).
func ParseFanMode(s string) (FanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return FanModeOff, nil
	case "low":
		return FanModeLow, nil
	case "medium":
		return FanModeMedium, nil
	case "high":
		return FanModeHigh, nil
	case "on":
		return FanModeOn, nil
	case "auto":
		return FanModeAuto, nil
	case "smart":
		return FanModeSmart, nil
	}
	return FanModeOff, fmt.Errorf("unknown fan mode %q", s)
}

func (m FanMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *FanMode) UnmarshalText(b []byte) error {
	v, err := ParseFanMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ButtonID identifies one of the three front-panel buttons.
type ButtonID uint8

const (
	ButtonPower ButtonID = iota
	ButtonBrightness
	ButtonMode

	NumButtons = 3
)

func (b ButtonID) String() string {
	switch b {
	case ButtonPower:
		return "power"
	case ButtonBrightness:
		return "brightness"
	case ButtonMode:
		return "mode"
	default:
		return fmt.Sprintf("button(%d)", uint8(b))
	}
}

// ParseButtonID accepts a button name (case-insensitive).
func ParseButtonID(s string) (ButtonID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "power":
		return ButtonPower, nil
	case "brightness":
		return ButtonBrightness, nil
	case "mode":
		return ButtonMode, nil
	}
	return 0, fmt.Errorf("unknown button %q", s)
}

func (b ButtonID) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *ButtonID) UnmarshalText(text []byte) error {
	v, err := ParseButtonID(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ButtonEvent is one classified activation of a button.
type ButtonEvent struct {
	Source    ButtonID `json:"source"`
	LongPress bool     `json:"long_press"`
}

func (e ButtonEvent) String() string {
	if e.LongPress {
		return e.Source.String() + "/long"
	}
	return e.Source.String() + "/short"
}

// QualityLevel follows the AirQuality AirQualityEnum numbering.
type QualityLevel uint8

const (
	QualityUnknown       QualityLevel = 0
	QualityGood          QualityLevel = 1
	QualityFair          QualityLevel = 2
	QualityModerate      QualityLevel = 3
	QualityPoor          QualityLevel = 4
	QualityVeryPoor      QualityLevel = 5
	QualityExtremelyPoor QualityLevel = 6
)

func (q QualityLevel) String() string {
	switch q {
	case QualityUnknown:
		return "unknown"
	case QualityGood:
		return "good"
	case QualityFair:
		return "fair"
	case QualityModerate:
		return "moderate"
	case QualityPoor:
		return "poor"
	case QualityVeryPoor:
		return "very_poor"
	case QualityExtremelyPoor:
		return "extremely_poor"
	default:
		return fmt.Sprintf("quality(%d)", uint8(q))
	}
}

func (q QualityLevel) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// Reading is one decoded air-quality sample. Level is QualityUnknown only
// when the sensor frame could not be decoded.
type Reading struct {
	PM25  int          `json:"pm25"`
	Level QualityLevel `json:"level"`
}

// ClampPercent limits a fan percentage to 0..100.
func ClampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
