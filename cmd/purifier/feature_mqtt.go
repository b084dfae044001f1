//go:build !no_mqtt

package main

import (
	"log/slog"
	"net"

	mqttbridge "purifier-go-home/internal/mqtt"

	"purifier-go-home/internal/coordinator"
	"purifier-go-home/internal/indicator"
)

type mqttStopper struct {
	bridge *mqttbridge.Bridge
	broker *mqttbridge.Broker
}

func (m *mqttStopper) Stop() {
	if m.bridge != nil {
		m.bridge.Stop()
	}
	if m.broker != nil {
		m.broker.Stop()
	}
}

func initMQTT(coord *coordinator.Coordinator, events *coordinator.EventBus, panel *indicator.Multiplexer, cfg *Config, logger *slog.Logger) *mqttStopper {
	if !cfg.MQTT.Enabled {
		return &mqttStopper{}
	}
	m := &mqttStopper{}

	brokerURL := cfg.MQTT.Broker
	if cfg.MQTT.EmbeddedListen != "" {
		broker, err := mqttbridge.NewBroker(cfg.MQTT.EmbeddedListen, cfg.MQTT.Username, cfg.MQTT.Password, logger)
		if err == nil {
			err = broker.Start()
		}
		if err != nil {
			logger.Error("embedded mqtt broker", "err", err)
			return m
		}
		m.broker = broker
		if brokerURL == "" {
			brokerURL = localBrokerURL(cfg.MQTT.EmbeddedListen)
		}
	}

	bridge, err := mqttbridge.NewBridge(coord, events, mqttbridge.Config{
		Broker:      brokerURL,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		DeviceName:  cfg.Name,
		Version:     version,
		Link:        panel,
	}, logger)
	if err != nil {
		logger.Error("mqtt bridge", "err", err)
		return m
	}
	bridge.Start()
	m.bridge = bridge
	return m
}

// localBrokerURL turns a listen address into a URL the bridge can dial.
func localBrokerURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "tcp://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "tcp://" + net.JoinHostPort(host, port)
}
