package session

import (
	"fmt"

	"mqtt-session-manager/config"
	"mqtt-session-manager/internal/logger"
	"mqtt-session-manager/internal/transport"
	mqtttransport "mqtt-session-manager/internal/transport/mqtt"
	natstransport "mqtt-session-manager/internal/transport/nats"
)

// defaultFactory builds the transport named by cfg.Transport. Construction
// performs no network I/O; the handle dials on Connect.
func defaultFactory(cfg *config.Config, log *logger.Logger) transport.Factory {
	return func(h transport.Handlers) (transport.Transport, error) {
		switch cfg.Transport {
		case config.TransportMQTT:
			return mqtttransport.New(&cfg.MQTT, log, h)
		case config.TransportNATS:
			return natstransport.New(cfg.NATS, log, h)
		default:
			return nil, fmt.Errorf("unsupported transport type: %s", cfg.Transport)
		}
	}
}
