package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"gopkg.in/yaml.v3"

	"purifier-go-home/internal/button"
	"purifier-go-home/internal/coordinator"
	"purifier-go-home/internal/device"
	"purifier-go-home/internal/hw"
	"purifier-go-home/internal/indicator"
	"purifier-go-home/internal/logging"
	"purifier-go-home/internal/metrics"
	"purifier-go-home/internal/sensor"
	"purifier-go-home/internal/store"
	"purifier-go-home/internal/web"
	"purifier-go-home/internal/zcl"
	"purifier-go-home/internal/zcl/clusters"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type Config struct {
	Name   string `yaml:"name"`
	Sensor struct {
		Port         string        `yaml:"port"`
		Baud         int           `yaml:"baud"`
		Period       time.Duration `yaml:"period"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		Simulate     bool          `yaml:"simulate"`
		SimulatePM25 int           `yaml:"simulate_pm25"`
	} `yaml:"sensor"`
	Buttons struct {
		Chip string `yaml:"chip"` // empty: no GPIO buttons, web and automation only
		Pins struct {
			Power      int `yaml:"power"`
			Brightness int `yaml:"brightness"`
			Mode       int `yaml:"mode"`
		} `yaml:"pins"`
		LongPress time.Duration `yaml:"long_press"`
		Debounce  time.Duration `yaml:"debounce"`
		QueueSize int           `yaml:"queue_size"`
	} `yaml:"buttons"`
	Hardware struct {
		Backend string `yaml:"backend"` // "log" or "sysfs"
		PWM     struct {
			Root     string `yaml:"root"`
			Chip     int    `yaml:"chip"`
			Channel  int    `yaml:"channel"`
			PeriodNS int    `yaml:"period_ns"`
		} `yaml:"pwm"`
		LEDs struct {
			Root      string            `yaml:"root"`
			Red       string            `yaml:"red"`
			Green     string            `yaml:"green"`
			Blue      string            `yaml:"blue"`
			Backlight string            `yaml:"backlight"`
			Flags     map[string]string `yaml:"flags"`
		} `yaml:"leds"`
		Buzzer struct {
			Enabled  bool          `yaml:"enabled"`
			Chip     string        `yaml:"chip"`
			Pin      int           `yaml:"pin"`
			Duration time.Duration `yaml:"duration"`
		} `yaml:"buzzer"`
	} `yaml:"hardware"`
	Calibration struct {
		coordinator.Calibration `yaml:",inline"`
		Auto                    map[string]int `yaml:"auto"`
	} `yaml:"calibration"`
	Indicator struct {
		Blink      time.Duration `yaml:"blink"`
		ResetFlash time.Duration `yaml:"reset_flash"`
	} `yaml:"indicator"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
		// EmbeddedListen runs an in-process broker on this address.
		EmbeddedListen string `yaml:"embedded_listen"`
	} `yaml:"mqtt"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	ScriptsDir   string `yaml:"scripts_dir"`
	WatchScripts bool   `yaml:"watch_scripts"`
}

var flagNames = map[string]indicator.Flag{
	"warning": indicator.Warning,
	"wifi":    indicator.Wifi,
	"lock":    indicator.Lock,
	"auto":    indicator.Auto,
	"night":   indicator.Night,
	"heart":   indicator.Heart,
}

var qualityLevels = []device.QualityLevel{
	device.QualityGood,
	device.QualityFair,
	device.QualityModerate,
	device.QualityPoor,
	device.QualityVeryPoor,
	device.QualityExtremelyPoor,
}

func (c *Config) validate() error {
	if !c.Sensor.Simulate && c.Sensor.Port == "" {
		return fmt.Errorf("sensor.port is required unless sensor.simulate is set")
	}
	if c.Sensor.Baud <= 0 {
		return fmt.Errorf("sensor.baud must be positive, got %d", c.Sensor.Baud)
	}
	if c.Buttons.LongPress <= c.Buttons.Debounce {
		return fmt.Errorf("buttons.long_press (%s) must exceed buttons.debounce (%s)", c.Buttons.LongPress, c.Buttons.Debounce)
	}
	if c.Indicator.Blink <= 0 {
		return fmt.Errorf("indicator.blink must be positive")
	}
	switch c.Hardware.Backend {
	case "log", "sysfs":
	default:
		return fmt.Errorf("unknown hardware.backend %q (supported: log, sysfs)", c.Hardware.Backend)
	}
	for name := range c.Hardware.LEDs.Flags {
		if _, ok := flagNames[name]; !ok {
			return fmt.Errorf("unknown indicator flag %q in hardware.leds.flags", name)
		}
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" && c.MQTT.EmbeddedListen == "" {
		return fmt.Errorf("mqtt.broker or mqtt.embedded_listen is required when mqtt is enabled")
	}

	cal := c.Calibration.Calibration
	for name, p := range map[string]int{"low": cal.Low, "medium": cal.Medium, "high": cal.High, "auto_initial": cal.AutoInitial} {
		if p < 0 || p > 100 {
			return fmt.Errorf("calibration.%s must be 0-100, got %d", name, p)
		}
	}
	if cal.LowHighSplit < 0 || cal.LowHighSplit >= 100 {
		return fmt.Errorf("calibration.low_high_split must be 0-99, got %d", cal.LowHighSplit)
	}
	for name, p := range c.Calibration.Auto {
		if !knownQuality(name) {
			return fmt.Errorf("unknown air quality level %q in calibration.auto", name)
		}
		if p < 0 || p > 100 {
			return fmt.Errorf("calibration.auto.%s must be 0-100, got %d", name, p)
		}
	}
	return nil
}

func knownQuality(name string) bool {
	for _, l := range qualityLevels {
		if l.String() == name {
			return true
		}
	}
	return false
}

// calibration merges the configured auto table over the factory one.
func (c *Config) calibration() coordinator.Calibration {
	cal := c.Calibration.Calibration
	cal.Auto = coordinator.DefaultCalibration().Auto
	for _, l := range qualityLevels {
		if p, ok := c.Calibration.Auto[l.String()]; ok {
			cal.Auto[l] = p
		}
	}
	return cal
}

func (c *Config) ledNames() hw.LEDNames {
	names := hw.LEDNames{
		Flags:     make(map[indicator.Flag]string),
		Red:       c.Hardware.LEDs.Red,
		Green:     c.Hardware.LEDs.Green,
		Blue:      c.Hardware.LEDs.Blue,
		Backlight: c.Hardware.LEDs.Backlight,
	}
	for name, led := range c.Hardware.LEDs.Flags {
		if f, ok := flagNames[name]; ok {
			names.Flags[f] = led
		}
	}
	return names
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("purifier-go-home starting", "version", version, "name", cfg.Name)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
	logger.Info("goodbye")
}

// run wires the purifier together and blocks until SIGINT or SIGTERM.
func run(cfg *Config, logger *slog.Logger) error {
	registry := zcl.NewRegistry(logger)
	clusters.RegisterAll(registry)
	st, err := store.NewMemoryStore(registry, clusters.Layout(), logger.With("component", "store"))
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	logger.Info("attribute store ready", "clusters", len(registry.All()))

	outputs, err := createHardware(cfg, logger.With("component", "hw"))
	if err != nil {
		return fmt.Errorf("create hardware: %w", err)
	}
	defer outputs.Close()

	transport, err := openSensor(cfg, logger)
	if err != nil {
		return fmt.Errorf("open sensor: %w", err)
	}
	defer transport.Close()

	queue, err := button.NewQueue(cfg.Buttons.QueueSize)
	if err != nil {
		return fmt.Errorf("create button queue: %w", err)
	}
	classifier := button.NewClassifier(queue, cfg.Buttons.LongPress, cfg.Buttons.Debounce)
	defer classifier.Stop()
	if cfg.Buttons.Chip != "" {
		watcher, err := button.WatchGPIO(cfg.Buttons.Chip, button.Pins{
			device.ButtonPower:      cfg.Buttons.Pins.Power,
			device.ButtonBrightness: cfg.Buttons.Pins.Brightness,
			device.ButtonMode:       cfg.Buttons.Pins.Mode,
		}, classifier)
		if err != nil {
			return fmt.Errorf("watch buttons: %w", err)
		}
		defer watcher.Close()
		logger.Info("watching buttons", "chip", cfg.Buttons.Chip)
	}

	panel := indicator.New(outputs.leds, logger.With("component", "indicator"))
	events := coordinator.NewEventBus(logger)
	coord := coordinator.New(coordinator.Hardware{
		Fan:        outputs.fan,
		Buzzer:     outputs.buzzer,
		Indicators: panel,
		Protocol:   st,
	}, st, events, coordinator.Config{
		Calibration: cfg.calibration(),
		ResetFlash:  cfg.Indicator.ResetFlash,
	}, logger.With("component", "coordinator"))

	slot := sensor.NewSlot()
	poller := sensor.NewPoller(transport, slot, cfg.Sensor.Period, cfg.Sensor.ReadTimeout, logger.With("component", "sensor"))

	collector := metrics.New()
	collector.AddCounterFunc("buttons", "dropped_total", "Button events discarded because the queue was full", queue.Dropped)
	collector.AddCounterFunc("sensor", "overwritten_total", "Readings replaced before the control task consumed them", slot.Overwritten)
	unsubMetrics := collector.Subscribe(events)
	defer unsubMetrics()

	coord.Start()
	defer coord.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, task := range []func(){
		func() { poller.Run(ctx) },
		func() { coord.RunAutoControl(ctx, slot) },
		func() { queue.Run(ctx, coord.OnButtonEvent) },
		func() { panel.Run(ctx, cfg.Indicator.Blink) },
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task()
		}()
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	// Start automation engine (no-op when built with no_automation tag).
	auto, autoWebOpts := initAutomation(coord, events, cfg, logger)
	defer auto.Stop()

	webOpts := []web.ServerOption{
		web.WithName(cfg.Name),
		web.WithVersion(version),
		web.WithStore(st),
		web.WithButtons(queue),
		web.WithMetrics(collector.Handler()),
	}
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, autoWebOpts...)

	webServer, err := web.NewServer(coord, events, logger, webOpts...)
	if err != nil {
		return fmt.Errorf("create web server: %w", err)
	}
	defer webServer.Stop()

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
		}
	}()

	// Start MQTT bridge (no-op when built with no_mqtt tag).
	mqtt := initMQTT(coord, events, panel, cfg, logger)
	defer mqtt.Stop()

	notifySystemd(daemon.SdNotifyReady, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)
	notifySystemd(daemon.SdNotifyStopping, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	return nil
}

// actuators are the fan, buzzer and LED driver for the configured backend.
type actuators struct {
	fan     coordinator.Fan
	buzzer  coordinator.Buzzer
	leds    indicator.Driver
	closers []io.Closer
}

func (a *actuators) Close() {
	for _, c := range a.closers {
		c.Close()
	}
}

func createHardware(cfg *Config, logger *slog.Logger) (*actuators, error) {
	logOnly := hw.NewLogBackend(logger)
	a := &actuators{fan: logOnly, buzzer: logOnly, leds: logOnly}

	if cfg.Hardware.Backend == "sysfs" {
		pwm := cfg.Hardware.PWM
		fan, err := hw.NewSysfsFan(pwm.Root, pwm.Chip, pwm.Channel, pwm.PeriodNS, logger)
		if err != nil {
			return nil, err
		}
		leds, err := hw.NewSysfsLEDs(cfg.Hardware.LEDs.Root, cfg.ledNames(), logger)
		if err != nil {
			return nil, err
		}
		a.fan, a.leds = fan, leds
		logger.Info("using sysfs actuators", "pwmchip", pwm.Chip, "channel", pwm.Channel)
	} else {
		logger.Info("using log-only actuators")
	}

	if bz := cfg.Hardware.Buzzer; bz.Enabled {
		buzzer, err := hw.NewGPIOBuzzer(bz.Chip, bz.Pin, bz.Duration, logger)
		if err != nil {
			return nil, err
		}
		a.buzzer = buzzer
		a.closers = append(a.closers, buzzer)
	}
	return a, nil
}

func openSensor(cfg *Config, logger *slog.Logger) (sensor.Transport, error) {
	if cfg.Sensor.Simulate {
		logger.Info("using simulated sensor", "pm25", cfg.Sensor.SimulatePM25)
		return sensor.NewSimTransport(cfg.Sensor.SimulatePM25), nil
	}
	logger.Info("opening sensor", "port", cfg.Sensor.Port, "baud", cfg.Sensor.Baud)
	return sensor.OpenSerial(cfg.Sensor.Port, cfg.Sensor.Baud)
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Config{}
	cfg.Calibration.Calibration = coordinator.DefaultCalibration()
	cfg.WatchScripts = true
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = "Air Purifier"
	}
	if cfg.Sensor.Baud == 0 {
		cfg.Sensor.Baud = 9600
	}
	if cfg.Sensor.Period == 0 {
		cfg.Sensor.Period = sensor.DefaultPeriod
	}
	if cfg.Sensor.ReadTimeout == 0 {
		cfg.Sensor.ReadTimeout = sensor.DefaultReadTimeout
	}
	if cfg.Buttons.LongPress == 0 {
		cfg.Buttons.LongPress = button.DefaultLongPress
	}
	if cfg.Buttons.Debounce == 0 {
		cfg.Buttons.Debounce = button.DefaultDebounce
	}
	if cfg.Buttons.QueueSize == 0 {
		cfg.Buttons.QueueSize = button.DefaultQueueSize
	}
	if cfg.Hardware.Backend == "" {
		cfg.Hardware.Backend = "log"
	}
	if cfg.Hardware.PWM.PeriodNS == 0 {
		cfg.Hardware.PWM.PeriodNS = 40000 // 25 kHz
	}
	if cfg.Hardware.Buzzer.Duration == 0 {
		cfg.Hardware.Buzzer.Duration = 100 * time.Millisecond
	}
	if cfg.Indicator.Blink == 0 {
		cfg.Indicator.Blink = indicator.DefaultBlinkInterval
	}
	if cfg.Indicator.ResetFlash == 0 {
		cfg.Indicator.ResetFlash = 3 * time.Second
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "purifier"
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "journal":
		if logging.JournalAvailable() {
			handler = logging.NewJournalHandler("purifier", level)
		} else {
			handler = slog.NewTextHandler(os.Stdout, opts)
		}
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// notifySystemd reports service state when running under a Type=notify unit.
func notifySystemd(state string, logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.Warn("sd_notify", "state", state, "err", err)
		return
	}
	if sent {
		logger.Debug("sd_notify", "state", state)
	}
}
