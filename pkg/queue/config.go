package queue

import (
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config is used to establish a connection with a RabbitMQ server.
type Config struct {
	Scheme   string
	Username string
	Password string
	Host     string
	Port     int
	Vhost    string
}

func getURL(cfg Config) string {
	uri := amqp.URI{
		Scheme:   cfg.Scheme,
		Username: cfg.Username,
		Password: cfg.Password,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Vhost:    cfg.Vhost,
	}

	return uri.String()
}

// Validate rejects configurations that cannot produce a broker URL of
// the form amqp(s)://...
func (cfg Config) Validate() error {
	if cfg.Scheme != "amqp" && cfg.Scheme != "amqps" {
		return fmt.Errorf("broker URL scheme must be amqp or amqps, got %q", cfg.Scheme)
	}

	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("broker host must not be empty")
	}

	return nil
}
