//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"log/slog"
	"sync"

	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// Broker is an in-process MQTT broker for installations without one.
// Home Assistant and the bridge both connect to it.
type Broker struct {
	server *mqttbroker.Server
	addr   string
	logger *slog.Logger
	once   sync.Once
}

// NewBroker creates a broker with a TCP listener on addr. Without a
// username every client is accepted; otherwise only that login is.
func NewBroker(addr, username, password string, logger *slog.Logger) (*Broker, error) {
	logger = logger.With("component", "mqtt-broker")
	server := mqttbroker.New(&mqttbroker.Options{Logger: logger})

	var err error
	if username == "" {
		err = server.AddHook(new(auth.AllowHook), nil)
	} else {
		err = server.AddHook(new(auth.Hook), &auth.Options{
			Ledger: &auth.Ledger{
				Auth: auth.AuthRules{
					{Username: auth.RString(username), Password: auth.RString(password), Allow: true},
				},
			},
		})
	}
	if err != nil {
		return nil, fmt.Errorf("broker auth hook: %w", err)
	}

	if err := server.AddListener(listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})); err != nil {
		return nil, fmt.Errorf("broker listen %s: %w", addr, err)
	}
	return &Broker{server: server, addr: addr, logger: logger}, nil
}

// Start begins accepting clients. It does not block.
func (b *Broker) Start() error {
	if err := b.server.Serve(); err != nil {
		return fmt.Errorf("broker serve: %w", err)
	}
	b.logger.Info("embedded MQTT broker listening", "addr", b.addr)
	return nil
}

// Stop disconnects every client and closes the listener.
func (b *Broker) Stop() {
	b.once.Do(func() {
		if err := b.server.Close(); err != nil {
			b.logger.Warn("broker close", "err", err)
		}
	})
}
