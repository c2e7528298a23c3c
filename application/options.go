package application

import (
	"github.com/felixgeelhaar/adcompliance/domain/event"
	"github.com/felixgeelhaar/adcompliance/domain/middleware"
	"github.com/felixgeelhaar/adcompliance/infrastructure/planner"
)

// Option configures the engine.
type Option func(*EngineConfig)

// WithPlanner sets the planner.
func WithPlanner(p planner.Planner) Option {
	return func(c *EngineConfig) {
		c.Planner = p
	}
}

// WithMaxIterations sets the think-step budget. Zero or less selects
// DefaultMaxIterations.
func WithMaxIterations(n int) Option {
	return func(c *EngineConfig) {
		c.MaxIterations = n
	}
}

// WithMiddleware sets a custom middleware registry.
// If not set, the engine observes and logs every tool call.
func WithMiddleware(m *middleware.Registry) Option {
	return func(c *EngineConfig) {
		c.Middleware = m
	}
}

// WithNotifier sets the stage observer notifier.
func WithNotifier(n *event.Notifier) Option {
	return func(c *EngineConfig) {
		c.Notifier = n
	}
}

// WithIDGenerator sets the run ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *EngineConfig) {
		c.NewID = fn
	}
}

// NewEngineWithOptions creates an engine with functional options.
func NewEngineWithOptions(opts ...Option) (*Engine, error) {
	config := EngineConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	return NewEngine(config)
}
