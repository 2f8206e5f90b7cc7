package internal

import (
	"log/slog"

	"github.com/starford/catalyst/internal/notify"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	logger *slog.Logger
	broker *notify.Broker
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger replaces the JSON stderr logger built from app.log_level.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithBroker publishes watcher and sync notifications to b.
func WithBroker(b *notify.Broker) Option {
	return func(a *application) {
		a.broker = b
	}
}
