//go:build no_mqtt

package main

import (
	"log/slog"

	"purifier-go-home/internal/coordinator"
	"purifier-go-home/internal/indicator"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *coordinator.Coordinator, _ *coordinator.EventBus, _ *indicator.Multiplexer, _ *Config, _ *slog.Logger) *mqttStopper {
	return &mqttStopper{}
}
