//go:build !no_mqtt

package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"purifier-go-home/internal/coordinator"
	"purifier-go-home/internal/device"
	"purifier-go-home/internal/indicator"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
	DeviceName  string
	Version     string

	// Link, when set, shows broker connectivity on the Wifi indicator.
	Link LinkIndicator
}

// LinkIndicator is the part of the indicator multiplexer the bridge drives.
type LinkIndicator interface {
	SetOn(mask indicator.Flag)
	SetBlink(mask indicator.Flag)
	SetOff(mask indicator.Flag)
}

// Device is the part of the coordinator the bridge drives.
type Device interface {
	Execute(cmd coordinator.Command) error
	State() coordinator.DeviceState
}

// Bridge mirrors the purifier to MQTT with HA autodiscovery and accepts
// commands on <prefix>/<name>/set.
type Bridge struct {
	client  pahomqtt.Client
	dev     Device
	events  *coordinator.EventBus
	prefix  string
	name    string
	version string
	logger  *slog.Logger
	unsub   func()
	link    LinkIndicator

	// pub is swapped out in tests.
	pub func(topic string, payload []byte, retained bool)

	mu    sync.Mutex
	state map[string]any
}

func newBridge(dev Device, events *coordinator.EventBus, cfg Config, logger *slog.Logger) *Bridge {
	b := &Bridge{
		dev:     dev,
		events:  events,
		prefix:  cfg.TopicPrefix,
		name:    cfg.DeviceName,
		version: cfg.Version,
		link:    cfg.Link,
		logger:  logger.With("component", "mqtt"),
		state:   make(map[string]any),
	}
	b.pub = b.clientPublish
	return b
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(dev Device, events *coordinator.EventBus, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := newBridge(dev, events, cfg, logger)

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(nodeIdentifier(cfg.DeviceName)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.setLink(true)
			b.publishBridgeState("online")
			b.publishDiscovery()
			b.subscribeCommands()
			b.syncState()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
			b.setLink(false)
		}).
		SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
			b.setLink(false)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	b.client = client
	b.setLink(false)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		client.Disconnect(0)
		b.clearLink()
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		b.clearLink()
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

// setLink shows the Wifi flag steady while connected and blinking while
// the client is (re)connecting.
func (b *Bridge) setLink(connected bool) {
	if b.link == nil {
		return
	}
	if connected {
		b.link.SetOn(indicator.Wifi)
	} else {
		b.link.SetBlink(indicator.Wifi)
	}
}

func (b *Bridge) clearLink() {
	if b.link != nil {
		b.link.SetOff(indicator.Wifi)
	}
}

// Start subscribes to coordinator events and begins MQTT publishing.
func (b *Bridge) Start() {
	b.unsub = b.events.OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix, "topic", b.stateTopic())
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	if b.client != nil {
		b.client.Disconnect(1000)
	}
	b.clearLink()
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) stateTopic() string {
	return b.prefix + "/" + topicName(b.name)
}

func (b *Bridge) handleEvent(event coordinator.Event) {
	switch event.Type {
	case coordinator.EventStateChanged:
		if s, ok := event.Data.(coordinator.DeviceState); ok {
			b.updateAndPublishState(stateProperties(s))
		}
	case coordinator.EventAirQuality:
		if r, ok := event.Data.(device.Reading); ok {
			b.updateAndPublishState(readingProperties(r))
		}
	case coordinator.EventFactoryReset:
		// Re-announce so HA drops stale entity settings.
		for _, msg := range buildRemoveDiscovery(b.name) {
			b.pub(msg.Topic, msg.Payload, true)
		}
		b.publishDiscovery()
	}
}

// stateProperties maps the device state to the JSON state document.
func stateProperties(s coordinator.DeviceState) map[string]any {
	props := map[string]any{
		"state":      "OFF",
		"percentage": s.Percentage,
		"brightness": s.Brightness,
		"mode":       s.Mode.String(),
		"auto":       s.AutoModeActive,
	}
	if s.Mode != device.FanModeOff {
		props["state"] = "ON"
		props["preset_mode"] = s.Mode.String()
	} else {
		props["preset_mode"] = nil
	}
	return props
}

// readingProperties maps a sensor reading. Unknown readings clear pm25.
func readingProperties(r device.Reading) map[string]any {
	props := map[string]any{
		"air_quality": r.Level.String(),
		"pm25":        r.PM25,
	}
	if r.Level == device.QualityUnknown {
		props["pm25"] = nil
	}
	return props
}

func (b *Bridge) updateAndPublishState(props map[string]any) {
	b.mu.Lock()
	for k, v := range props {
		b.state[k] = v
	}
	payload := mustJSON(b.state)
	b.mu.Unlock()

	b.pub(b.stateTopic(), payload, true)
}

// syncState publishes the full current state, e.g. after a reconnect.
func (b *Bridge) syncState() {
	b.updateAndPublishState(stateProperties(b.dev.State()))
}

func (b *Bridge) publishBridgeState(state string) {
	b.pub(b.prefix+"/bridge/state", []byte(state), true)
}

func (b *Bridge) publishDiscovery() {
	for _, msg := range buildDiscovery(b.name, b.prefix, b.version) {
		b.pub(msg.Topic, msg.Payload, true)
	}
	b.logger.Info("published HA discovery", "name", b.name)
}

func (b *Bridge) subscribeCommands() {
	topic := b.stateTopic() + "/set"
	b.client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleCommand(msg.Payload())
	})
}

func (b *Bridge) handleCommand(payload []byte) {
	cmds, err := parseCommand(payload, b.dev.State())
	if err != nil {
		b.logger.Warn("invalid command", "err", err)
		return
	}
	for _, cmd := range cmds {
		if err := b.dev.Execute(cmd); err != nil {
			b.logger.Warn("command failed", "command", fmt.Sprintf("%+v", cmd), "err", err)
		}
	}
}

// parseCommand translates a JSON command document into coordinator
// commands. Keys are applied in a fixed order: state, preset_mode (or
// mode), percentage, brightness.
func parseCommand(payload []byte, current coordinator.DeviceState) ([]coordinator.Command, error) {
	var cmd map[string]any
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("invalid command JSON: %w", err)
	}

	var out []coordinator.Command
	if state, ok := cmd["state"].(string); ok {
		switch strings.ToUpper(state) {
		case "ON":
			out = append(out, coordinator.SetPower{On: true})
		case "OFF":
			out = append(out, coordinator.SetPower{On: false})
		case "TOGGLE":
			out = append(out, coordinator.SetPower{On: current.Mode == device.FanModeOff})
		default:
			return nil, fmt.Errorf("unknown state %q", state)
		}
	}

	modeKey, ok := cmd["preset_mode"].(string)
	if !ok {
		modeKey, ok = cmd["mode"].(string)
	}
	if ok {
		m, err := device.ParseFanMode(modeKey)
		if err != nil {
			return nil, err
		}
		out = append(out, coordinator.SetMode{Mode: m})
	}

	if pct, ok := toFloat64(cmd["percentage"]); ok {
		out = append(out, coordinator.SetPercentage{Percentage: clampToInt(pct, 0, 100)})
	}
	if level, ok := toFloat64(cmd["brightness"]); ok {
		out = append(out, coordinator.SetBrightness{Level: clampToInt(level, 0, indicator.MaxBrightness)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no recognised keys in command")
	}
	return out, nil
}

func (b *Bridge) clientPublish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

// clampToInt converts v to an int within lo..hi. NaN maps to lo.
func clampToInt(v float64, lo, hi int) int {
	switch {
	case math.IsNaN(v) || v <= float64(lo):
		return lo
	case v >= float64(hi):
		return hi
	}
	return int(v)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	default:
		return 0, false
	}
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
