package hw

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"purifier-go-home/internal/indicator"
)

const (
	sysfsPWMPath = "/sys/class/pwm"
	sysfsLEDPath = "/sys/class/leds"
)

// SysfsFan drives the fan motor through a sysfs PWM channel.
type SysfsFan struct {
	dir    string
	period int
	logger *slog.Logger
}

// NewSysfsFan configures pwmchip<chip>/pwm<channel> with the given period
// in nanoseconds and enables it at zero duty. root overrides /sys/class/pwm.
func NewSysfsFan(root string, chip, channel, periodNS int, logger *slog.Logger) (*SysfsFan, error) {
	if root == "" {
		root = sysfsPWMPath
	}
	chipDir := filepath.Join(root, fmt.Sprintf("pwmchip%d", chip))
	dir := filepath.Join(chipDir, fmt.Sprintf("pwm%d", channel))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := writeSysfs(filepath.Join(chipDir, "export"), strconv.Itoa(channel)); err != nil {
			return nil, fmt.Errorf("export pwm channel %d: %w", channel, err)
		}
	}
	f := &SysfsFan{dir: dir, period: periodNS, logger: logger}
	if err := writeSysfs(filepath.Join(dir, "period"), strconv.Itoa(periodNS)); err != nil {
		return nil, fmt.Errorf("set pwm period: %w", err)
	}
	if err := writeSysfs(filepath.Join(dir, "duty_cycle"), "0"); err != nil {
		return nil, fmt.Errorf("set pwm duty: %w", err)
	}
	if err := writeSysfs(filepath.Join(dir, "enable"), "1"); err != nil {
		return nil, fmt.Errorf("enable pwm: %w", err)
	}
	return f, nil
}

// SetPercentage sets the duty cycle. Write failures are logged.
func (f *SysfsFan) SetPercentage(p int) {
	duty := f.period * p / 100
	if err := writeSysfs(filepath.Join(f.dir, "duty_cycle"), strconv.Itoa(duty)); err != nil {
		f.logger.Error("fan duty write failed", "err", err)
	}
}

// LEDNames maps the panel LEDs to their /sys/class/leds names. Empty
// entries are skipped.
type LEDNames struct {
	Flags     map[indicator.Flag]string
	Red       string
	Green     string
	Blue      string
	Backlight string
}

// SysfsLEDs implements indicator.Driver with sysfs LEDs.
type SysfsLEDs struct {
	root   string
	names  LEDNames
	max    map[string]int
	logger *slog.Logger
}

// NewSysfsLEDs reads max_brightness for every named LED. root overrides
// /sys/class/leds.
func NewSysfsLEDs(root string, names LEDNames, logger *slog.Logger) (*SysfsLEDs, error) {
	if root == "" {
		root = sysfsLEDPath
	}
	s := &SysfsLEDs{root: root, names: names, max: make(map[string]int), logger: logger}
	all := []string{names.Red, names.Green, names.Blue, names.Backlight}
	for _, n := range names.Flags {
		all = append(all, n)
	}
	for _, n := range all {
		if n == "" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(root, n, "max_brightness"))
		if err != nil {
			return nil, fmt.Errorf("LED %q: %w", n, err)
		}
		v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("LED %q max_brightness: %w", n, err)
		}
		s.max[n] = v
	}
	return s, nil
}

// set writes value scaled from 0..255 to the LED's range.
func (s *SysfsLEDs) set(name string, value uint8) {
	if name == "" {
		return
	}
	v := s.max[name] * int(value) / 255
	if err := writeSysfs(filepath.Join(s.root, name, "brightness"), strconv.Itoa(v)); err != nil {
		s.logger.Error("LED write failed", "led", name, "err", err)
	}
}

func (s *SysfsLEDs) DriveWord(w uint8) {
	for flag, name := range s.names.Flags {
		var v uint8
		if w&uint8(flag) != 0 {
			v = 255
		}
		s.set(name, v)
	}
}

func (s *SysfsLEDs) SetIndicatorBrightness(level uint8) {
	s.set(s.names.Backlight, uint8(uint16(level)*255/indicator.MaxBrightness))
}

func (s *SysfsLEDs) SetRGB(c indicator.RGB) {
	s.set(s.names.Red, c.R)
	s.set(s.names.Green, c.G)
	s.set(s.names.Blue, c.B)
}

func writeSysfs(path, value string) error {
	return os.WriteFile(path, []byte(value), 0644)
}
