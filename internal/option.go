package internal

import (
	"log/slog"

	"github.com/starford/journal/internal/clock"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	clock  clock.Clock
	logger *slog.Logger
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithClock overrides the clock that decides which day "today" is.
func WithClock(c clock.Clock) Option {
	return func(a *application) {
		a.clock = c
	}
}

// WithLogger sets the logger. Run installs its own JSON logger when none is given.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, errConfigRequired
	}
	if app.clock == nil {
		app.clock = clock.System{}
	}
	return app, nil
}
