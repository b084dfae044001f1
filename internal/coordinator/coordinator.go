package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"purifier-go-home/internal/device"
	"purifier-go-home/internal/indicator"
	"purifier-go-home/internal/store"
	"purifier-go-home/internal/zcl/clusters"
)

// Fan drives the fan motor.
type Fan interface {
	SetPercentage(p int)
}

// Buzzer sounds the acknowledgment beep. Beep must not block.
type Buzzer interface {
	Beep()
}

// Indicators is the front-panel display.
type Indicators interface {
	SetOn(mask indicator.Flag)
	SetOff(mask indicator.Flag)
	SetBrightness(level int)
	SetAirQuality(level device.QualityLevel)
	Flash(ctx context.Context, d time.Duration)
}

// ProtocolLayer is the smart-home stack the device is commissioned into.
type ProtocolLayer interface {
	FactoryReset() error
}

// Hardware bundles the collaborators the coordinator actuates.
type Hardware struct {
	Fan        Fan
	Buzzer     Buzzer
	Indicators Indicators
	Protocol   ProtocolLayer
}

// Calibration holds the fan percentages for each fixed mode and for each
// air-quality level in auto mode.
type Calibration struct {
	Low    int `yaml:"low"`
	Medium int `yaml:"medium"`
	High   int `yaml:"high"`
	// Explicit speeds up to LowHighSplit are shown as Low, above as High.
	LowHighSplit int                          `yaml:"low_high_split"`
	Auto         map[device.QualityLevel]int `yaml:"-"`
	// AutoInitial drives auto mode until the first valid reading arrives.
	AutoInitial int `yaml:"auto_initial"`
}

// DefaultCalibration returns the factory calibration.
func DefaultCalibration() Calibration {
	return Calibration{
		Low:          10,
		Medium:       50,
		High:         100,
		LowHighSplit: 30,
		AutoInitial:  50,
		Auto: map[device.QualityLevel]int{
			device.QualityGood:          10,
			device.QualityFair:          30,
			device.QualityModerate:      50,
			device.QualityPoor:          70,
			device.QualityVeryPoor:      90,
			device.QualityExtremelyPoor: 100,
		},
	}
}

// Percentage returns the fixed percentage for Off, Low, Medium and High.
func (cal Calibration) Percentage(m device.FanMode) int {
	switch m {
	case device.FanModeLow:
		return cal.Low
	case device.FanModeMedium:
		return cal.Medium
	case device.FanModeHigh:
		return cal.High
	default:
		return 0
	}
}

// DeriveMode maps an explicit percentage to the coarse mode shown to users.
func (cal Calibration) DeriveMode(p int) device.FanMode {
	switch {
	case p <= 0:
		return device.FanModeOff
	case p <= cal.LowHighSplit:
		return device.FanModeLow
	default:
		return device.FanModeHigh
	}
}

// Config holds coordinator configuration.
type Config struct {
	Calibration Calibration
	// ResetFlash is how long the warning pattern shows before a factory reset.
	ResetFlash time.Duration
}

// DeviceState is the authoritative fan and display state.
type DeviceState struct {
	Mode                  device.FanMode `json:"mode"`
	Percentage            int            `json:"percentage"`
	Brightness            int            `json:"brightness"`
	PreviousMode          device.FanMode `json:"previous_mode"`
	PreviousPercentage    int            `json:"previous_percentage"`
	CurrentAutoPercentage int            `json:"current_auto_percentage"`
	AutoModeActive        bool           `json:"auto_mode_active"`
}

func defaultState(cal Calibration) DeviceState {
	return DeviceState{
		Mode:                  device.FanModeOff,
		Brightness:            indicator.MaxBrightness,
		PreviousMode:          device.FanModeHigh,
		CurrentAutoPercentage: device.ClampPercent(cal.AutoInitial),
	}
}

// Coordinator reconciles button presses, air-quality readings and
// protocol writes into one fan and display state. All state changes go
// through mu; the fan is driven while mu is held so the motor always
// matches the state. Store reports and events are issued afterwards.
type Coordinator struct {
	mu    sync.Mutex
	state DeviceState

	// reportMu orders mirror updates so the store converges on the latest state.
	reportMu sync.Mutex

	hw        Hardware
	store     store.Store
	events    *EventBus
	cfg       Config
	resetting atomic.Bool
	resetWG   sync.WaitGroup
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a coordinator in the power-on default state and installs
// itself as the store's write hook.
func New(hw Hardware, st store.Store, events *EventBus, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.Calibration.Auto == nil {
		def := DefaultCalibration()
		cfg.Calibration.Auto = def.Auto
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		state:  defaultState(cfg.Calibration),
		hw:     hw,
		store:  st,
		events: events,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	st.OnUpdate(c.HandleAttributeUpdate)
	st.OnChange(func(ch store.Change) {
		events.Publish(EventAttributeReport, ch)
	})
	return c
}

// Start applies the power-on state to the hardware and the store.
func (c *Coordinator) Start() {
	c.mu.Lock()
	c.hw.Fan.SetPercentage(0)
	brightness := c.state.Brightness
	c.mu.Unlock()

	c.hw.Indicators.SetBrightness(brightness)
	c.reportStatic()
	c.publish()
	c.logger.Info("coordinator started", "mode", c.State().Mode.String())
}

// Stop cancels any running reset sequence and waits for it.
func (c *Coordinator) Stop() {
	c.cancel()
	c.resetWG.Wait()
}

// State returns a copy of the current device state.
func (c *Coordinator) State() DeviceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ApplyExplicitSpeed runs the fan at p percent (clamped to 0..100) and
// leaves auto mode. The reported mode is derived from p.
func (c *Coordinator) ApplyExplicitSpeed(p int) {
	c.mu.Lock()
	p = device.ClampPercent(p)
	c.setExplicitLocked(p, c.cfg.Calibration.DeriveMode(p))
	c.mu.Unlock()
	c.publish()
}

// ApplyMode switches to a fan mode. Fixed modes resolve to their
// calibrated percentage; Auto follows the latest air-quality recommendation.
func (c *Coordinator) ApplyMode(m device.FanMode) {
	c.mu.Lock()
	c.applyModeLocked(m.Normalize())
	c.mu.Unlock()
	c.publish()
}

func (c *Coordinator) applyModeLocked(m device.FanMode) {
	if m == device.FanModeAuto {
		p := c.state.CurrentAutoPercentage
		c.hw.Fan.SetPercentage(p)
		c.state.Percentage = p
		c.state.Mode = device.FanModeAuto
		c.state.AutoModeActive = true
		c.state.PreviousMode = device.FanModeAuto
		c.state.PreviousPercentage = 0
		return
	}
	p := device.ClampPercent(c.cfg.Calibration.Percentage(m))
	c.setExplicitLocked(p, m)
}

func (c *Coordinator) setExplicitLocked(p int, mode device.FanMode) {
	c.hw.Fan.SetPercentage(p)
	c.state.AutoModeActive = false
	c.state.Percentage = p
	c.state.Mode = mode
	if p != 0 {
		c.state.PreviousPercentage = p
	}
}

// OnAirQualityReading updates the auto recommendation. The fan follows it
// only while auto mode is active. Unknown readings are ignored.
func (c *Coordinator) OnAirQualityReading(r device.Reading) {
	if r.Level == device.QualityUnknown {
		return
	}
	p, ok := c.cfg.Calibration.Auto[r.Level]
	if !ok {
		return
	}
	p = device.ClampPercent(p)

	c.mu.Lock()
	c.state.CurrentAutoPercentage = p
	active := c.state.AutoModeActive
	if active {
		c.hw.Fan.SetPercentage(p)
		c.state.Percentage = p
	}
	c.mu.Unlock()

	if active {
		c.publish()
	}
}

// OnPowerRestoreRequest turns the fan back on with the remembered setting
// if it is currently off. A nonzero remembered percentage wins over the
// remembered mode.
func (c *Coordinator) OnPowerRestoreRequest() {
	c.mu.Lock()
	if c.state.Mode != device.FanModeOff {
		c.mu.Unlock()
		return
	}
	c.restoreLocked()
	c.mu.Unlock()
	c.publish()
}

func (c *Coordinator) restoreLocked() {
	if c.state.PreviousPercentage == 0 {
		c.applyModeLocked(c.state.PreviousMode)
		return
	}
	p := c.state.PreviousPercentage
	c.setExplicitLocked(p, c.cfg.Calibration.DeriveMode(p))
}

// SetBrightness applies a display brightness level, clamped to 0..3.
func (c *Coordinator) SetBrightness(level int) {
	if level < 0 {
		level = 0
	}
	if level > indicator.MaxBrightness {
		level = indicator.MaxBrightness
	}
	c.mu.Lock()
	c.state.Brightness = level
	c.mu.Unlock()
	c.hw.Indicators.SetBrightness(level)
	c.events.Publish(EventStateChanged, c.State())
}

// nextMode is the Mode button cycle.
func nextMode(m device.FanMode) device.FanMode {
	switch m {
	case device.FanModeHigh:
		return device.FanModeLow
	case device.FanModeLow, device.FanModeMedium:
		return device.FanModeAuto
	default:
		return device.FanModeHigh
	}
}

// OnButtonEvent dispatches one classified press.
func (c *Coordinator) OnButtonEvent(ev device.ButtonEvent) {
	c.events.Publish(EventButton, ev)

	if c.resetting.Load() {
		c.logger.Debug("button ignored during factory reset", "event", ev.String())
		return
	}
	if ev.Source == device.ButtonBrightness && ev.LongPress {
		c.startFactoryReset()
		return
	}

	c.mu.Lock()
	if c.state.Mode == device.FanModeOff {
		if ev.Source == device.ButtonPower && !ev.LongPress {
			c.restoreLocked()
			c.mu.Unlock()
			c.publish()
			return
		}
		c.mu.Unlock()
		return
	}

	// Fan is on: every press is acknowledged.
	c.hw.Buzzer.Beep()

	if c.state.Brightness <= 1 {
		c.state.Brightness = indicator.MaxBrightness
		c.mu.Unlock()
		c.hw.Indicators.SetBrightness(indicator.MaxBrightness)
		c.events.Publish(EventStateChanged, c.State())
		return
	}
	if ev.LongPress {
		c.mu.Unlock()
		return
	}

	switch ev.Source {
	case device.ButtonPower:
		c.applyModeLocked(device.FanModeOff)
		c.mu.Unlock()
		c.publish()
	case device.ButtonBrightness:
		if c.state.Brightness > 1 {
			c.state.Brightness--
		}
		level := c.state.Brightness
		c.mu.Unlock()
		c.hw.Indicators.SetBrightness(level)
		c.events.Publish(EventStateChanged, c.State())
	case device.ButtonMode:
		c.applyModeLocked(nextMode(c.state.Mode))
		c.mu.Unlock()
		c.publish()
	default:
		c.mu.Unlock()
	}
}

// startFactoryReset runs the reset sequence once; further presses are
// ignored until it completes.
func (c *Coordinator) startFactoryReset() {
	if !c.resetting.CompareAndSwap(false, true) {
		return
	}
	c.resetWG.Add(1)
	go func() {
		defer c.resetWG.Done()
		defer c.resetting.Store(false)
		c.factoryReset()
	}()
}

func (c *Coordinator) factoryReset() {
	c.logger.Warn("factory reset requested")

	c.mu.Lock()
	c.state.Brightness = indicator.MaxBrightness
	c.mu.Unlock()
	c.hw.Indicators.SetBrightness(indicator.MaxBrightness)
	c.hw.Buzzer.Beep()
	c.hw.Indicators.Flash(c.ctx, c.cfg.ResetFlash)
	if c.ctx.Err() != nil {
		c.logger.Info("factory reset aborted by shutdown")
		return
	}

	if err := c.hw.Protocol.FactoryReset(); err != nil {
		c.logger.Error("protocol factory reset failed", "err", err)
	}
	c.reportStatic()

	c.mu.Lock()
	c.state = defaultState(c.cfg.Calibration)
	c.hw.Fan.SetPercentage(0)
	c.mu.Unlock()
	c.hw.Indicators.SetBrightness(indicator.MaxBrightness)
	c.publish()

	c.events.Publish(EventFactoryReset, nil)
	c.logger.Info("factory reset complete")
}

// Resetting reports whether a factory reset sequence is running.
func (c *Coordinator) Resetting() bool {
	return c.resetting.Load()
}
