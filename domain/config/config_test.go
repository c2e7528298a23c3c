package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Agent.MaxIterations != 30 {
		t.Errorf("MaxIterations = %d, want 30", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.Timeout.Duration() != 300*time.Second {
		t.Errorf("Timeout = %v, want 300s", cfg.Agent.Timeout.Duration())
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("TopK = %d, want 3", cfg.Retrieval.TopK)
	}
	if cfg.Knowledge.Collection != "legislation_PUB" {
		t.Errorf("Collection = %q", cfg.Knowledge.Collection)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantKey string
	}{
		{"zero iterations", func(c *AppConfig) { c.Agent.MaxIterations = 0 }, "agent.max_iterations"},
		{"zero timeout", func(c *AppConfig) { c.Agent.Timeout = 0 }, "agent.timeout"},
		{"bad auth", func(c *AppConfig) { c.Provider.Auth = "token" }, "provider.auth"},
		{"top_k", func(c *AppConfig) { c.Retrieval.TopK = 0 }, "retrieval.top_k"},
		{"backoff above ceiling", func(c *AppConfig) { c.Retrieval.Retry.MaxAttempts = 4 }, "retrieval.retry.max_delay"},
		{"redis without addr", func(c *AppConfig) { c.Retrieval.Cache.Backend = CacheRedis }, "retrieval.cache.redis.addr"},
		{"unknown cache", func(c *AppConfig) { c.Retrieval.Cache.Backend = "memcached" }, "retrieval.cache.backend"},
		{"overlap too large", func(c *AppConfig) { c.Knowledge.ChunkOverlap = 256 }, "knowledge.chunk_overlap"},
		{"otlp without endpoint", func(c *AppConfig) { c.Telemetry.Exporter = ExporterOTLP }, "telemetry.endpoint"},
		{"negative price", func(c *AppConfig) {
			c.Pricing = map[string]PriceConfig{"gpt-4o": {Prompt: -1}}
		}, "pricing.gpt-4o"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("Validate() = %q, want mention of %s", err, tt.wantKey)
			}
		})
	}
}

func TestRetryConfig_LastDelay(t *testing.T) {
	t.Parallel()

	r := Default().Retrieval.Retry
	if got := r.LastDelay(); got != 8*time.Second {
		t.Errorf("LastDelay() = %v, want 8s", got)
	}
	r.MaxAttempts = 1
	if got := r.LastDelay(); got != 0 {
		t.Errorf("LastDelay() single attempt = %v, want 0", got)
	}
}

func TestDuration_JSONAndYAML(t *testing.T) {
	t.Parallel()

	var s struct {
		D Duration `json:"d" yaml:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"1m30s"}`), &s); err != nil {
		t.Fatal(err)
	}
	if s.D.Duration() != 90*time.Second {
		t.Errorf("json D = %v", s.D.Duration())
	}
	data, _ := json.Marshal(s)
	if string(data) != `{"d":"1m30s"}` {
		t.Errorf("Marshal = %s", data)
	}

	if err := yaml.Unmarshal([]byte("d: 500ms\n"), &s); err != nil {
		t.Fatal(err)
	}
	if s.D.Duration() != 500*time.Millisecond {
		t.Errorf("yaml D = %v", s.D.Duration())
	}
	if err := yaml.Unmarshal([]byte("d: soon\n"), &s); err == nil {
		t.Error("expected error for invalid duration")
	}
}
