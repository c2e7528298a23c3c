package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the dotted path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// Unwrap makes every ValidationErrors match ErrInvalidConfig.
func (e ValidationErrors) Unwrap() error {
	return ErrInvalidConfig
}

// Validate checks the configuration and returns nil or ValidationErrors.
func (c *AppConfig) Validate() error {
	var errs ValidationErrors
	add := func(path, msg string) {
		errs = append(errs, ValidationError{Path: path, Message: msg})
	}

	if c.Provider.ChatDeployment == "" {
		add("provider.chat_deployment", "chat deployment is required")
	}
	if c.Provider.EmbeddingDeployment == "" {
		add("provider.embedding_deployment", "embedding deployment is required")
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		add("provider.temperature", "temperature must be within [0, 2]")
	}
	switch c.Provider.Auth {
	case AuthKey, AuthAzureIdentity:
	default:
		add("provider.auth", fmt.Sprintf("invalid auth mode: %s", c.Provider.Auth))
	}
	if c.Provider.BreakerThreshold < 0 {
		add("provider.breaker_threshold", "breaker threshold must be non-negative")
	}

	if c.Agent.MaxIterations <= 0 {
		add("agent.max_iterations", "max_iterations must be positive")
	}
	if c.Agent.Timeout <= 0 {
		add("agent.timeout", "timeout must be positive")
	}

	r := c.Retrieval
	if r.TopK <= 0 {
		add("retrieval.top_k", "top_k must be positive")
	}
	if r.Pause < 0 {
		add("retrieval.pause", "pause must be non-negative")
	}
	if r.Retry.MaxAttempts <= 0 {
		add("retrieval.retry.max_attempts", "max_attempts must be positive")
	}
	if r.Retry.Multiplier < 1 {
		add("retrieval.retry.multiplier", "multiplier must be >= 1")
	}
	if r.Retry.MaxDelay > 0 {
		if r.Retry.InitialDelay > r.Retry.MaxDelay {
			add("retrieval.retry.initial_delay", "initial_delay exceeds max_delay")
		} else if last := r.Retry.LastDelay(); last > r.Retry.MaxDelay.Duration() {
			add("retrieval.retry.max_delay", fmt.Sprintf("backoff reaches %s, above max_delay %s", last, r.Retry.MaxDelay.Duration()))
		}
	}
	switch r.Cache.Backend {
	case CacheMemory, CacheBadger:
	case CacheRedis:
		if r.Cache.Redis.Addr == "" {
			add("retrieval.cache.redis.addr", "addr is required for the redis backend")
		}
	default:
		add("retrieval.cache.backend", fmt.Sprintf("unknown cache backend: %s", r.Cache.Backend))
	}
	if r.Cache.MaxEntries < 0 {
		add("retrieval.cache.max_entries", "max_entries must be non-negative")
	}

	k := c.Knowledge
	switch k.Backend {
	case KnowledgeSQLite:
		if k.DSN == "" {
			add("knowledge.dsn", "dsn is required for the sqlite backend")
		}
	case KnowledgeMemory:
	default:
		add("knowledge.backend", fmt.Sprintf("unknown knowledge backend: %s", k.Backend))
	}
	if k.Collection == "" {
		add("knowledge.collection", "collection is required")
	}
	if k.ChunkSize <= 0 {
		add("knowledge.chunk_size", "chunk_size must be positive")
	}
	if k.ChunkOverlap < 0 || k.ChunkOverlap >= k.ChunkSize {
		add("knowledge.chunk_overlap", "chunk_overlap must be within [0, chunk_size)")
	}

	if c.Output.Dir == "" {
		add("output.dir", "output dir is required")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		add("logging.format", fmt.Sprintf("invalid format: %s", c.Logging.Format))
	}

	switch c.Telemetry.Exporter {
	case ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.Telemetry.Endpoint == "" {
			add("telemetry.endpoint", "endpoint is required for the otlp exporter")
		}
	default:
		add("telemetry.exporter", fmt.Sprintf("unknown exporter: %s", c.Telemetry.Exporter))
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		add("telemetry.sample_rate", "sample_rate must be within [0, 1]")
	}

	for name, p := range c.Pricing {
		if p.Prompt < 0 || p.Completion < 0 || p.Embedding < 0 {
			add("pricing."+name, "prices must be non-negative")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
