// Package config provides the application configuration model.
package config

import "time"

// AppConfig is the complete configuration of the analyzer.
type AppConfig struct {
	// Provider configures the model service.
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	// Agent configures the reasoning loop.
	Agent AgentSettings `json:"agent" yaml:"agent"`
	// Retrieval configures legislation retrieval.
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	// Knowledge configures the knowledge store.
	Knowledge KnowledgeConfig `json:"knowledge" yaml:"knowledge"`
	// Output configures where reports are written.
	Output OutputConfig `json:"output" yaml:"output"`
	// Logging configures the logger.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	// Telemetry configures tracing and metrics.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	// Pricing overrides the per-1K-token price table, keyed by model name.
	Pricing map[string]PriceConfig `json:"pricing,omitempty" yaml:"pricing,omitempty"`
}

// Auth modes for the model service.
const (
	AuthKey           = "key"
	AuthAzureIdentity = "azure_identity"
)

// ProviderConfig configures the Azure OpenAI deployments.
type ProviderConfig struct {
	// ChatDeployment is the deployment used for chat and completion.
	ChatDeployment string `json:"chat_deployment" yaml:"chat_deployment"`
	// ChatModel is the model behind the chat deployment, used for pricing.
	ChatModel string `json:"chat_model" yaml:"chat_model"`
	// EmbeddingDeployment is the deployment used for embeddings.
	EmbeddingDeployment string `json:"embedding_deployment" yaml:"embedding_deployment"`
	// Temperature is the sampling temperature.
	Temperature float64 `json:"temperature" yaml:"temperature"`
	// MaxTokens bounds completion length (0 = service default).
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	// Auth is key or azure_identity.
	Auth string `json:"auth" yaml:"auth"`
	// BreakerThreshold is the consecutive failures that open the circuit (0 disables).
	BreakerThreshold int `json:"breaker_threshold,omitempty" yaml:"breaker_threshold,omitempty"`
	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout Duration `json:"breaker_timeout,omitempty" yaml:"breaker_timeout,omitempty"`
}

// AgentSettings configures the reasoning loop.
type AgentSettings struct {
	// MaxIterations bounds think steps per file.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
	// Timeout bounds the wall-clock time of one file's analysis.
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

// RetrievalConfig configures the legislation retriever.
type RetrievalConfig struct {
	// TopK is the number of chunks returned per search.
	TopK int `json:"top_k" yaml:"top_k"`
	// Pause is slept after every uncached search.
	Pause Duration `json:"pause" yaml:"pause"`
	// Retry configures backoff around embed and search.
	Retry RetryConfig `json:"retry" yaml:"retry"`
	// Cache configures the query cache.
	Cache CacheConfig `json:"cache" yaml:"cache"`
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
	// InitialDelay is the first retry delay.
	InitialDelay Duration `json:"initial_delay" yaml:"initial_delay"`
	// MaxDelay is the ceiling any single delay must stay under.
	MaxDelay Duration `json:"max_delay" yaml:"max_delay"`
	// Multiplier is the backoff multiplier.
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheBadger = "badger"
	CacheRedis  = "redis"
)

// CacheConfig selects and configures the retrieval cache backend.
type CacheConfig struct {
	// Backend is memory, badger or redis.
	Backend string `json:"backend" yaml:"backend"`
	// MaxEntries bounds the memory backend (0 = unbounded).
	MaxEntries int `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
	// Redis configures the redis backend.
	Redis RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// RedisConfig configures a redis connection.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
}

// Knowledge backends.
const (
	KnowledgeSQLite = "sqlite"
	KnowledgeMemory = "memory"
)

// KnowledgeConfig configures the knowledge store.
type KnowledgeConfig struct {
	// Backend is sqlite or memory.
	Backend string `json:"backend" yaml:"backend"`
	// DSN is the sqlite database path.
	DSN string `json:"dsn" yaml:"dsn"`
	// Collection is the collection name.
	Collection string `json:"collection" yaml:"collection"`
	// ChunkSize is the indexing chunk size in words.
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`
	// ChunkOverlap is the indexing overlap in words.
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`
}

// OutputConfig configures report persistence.
type OutputConfig struct {
	// Dir is the root output directory.
	Dir string `json:"dir" yaml:"dir"`
	// StatsDir is where token statistics are written (empty disables them).
	StatsDir string `json:"stats_dir" yaml:"stats_dir"`
	// PDFConverter is an external command template with {in} and {out}.
	PDFConverter string `json:"pdf_converter,omitempty" yaml:"pdf_converter,omitempty"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is trace, debug, info, warn or error.
	Level string `json:"level" yaml:"level"`
	// Format is json or console.
	Format string `json:"format" yaml:"format"`
}

// Trace exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// TelemetryConfig configures tracing and metrics.
type TelemetryConfig struct {
	// Exporter is none, stdout or otlp.
	Exporter string `json:"exporter" yaml:"exporter"`
	// Endpoint is the OTLP collector address.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// SampleRate is the trace sampling ratio in [0,1].
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate"`
	// Metrics enables the metrics observer.
	Metrics bool `json:"metrics" yaml:"metrics"`
}

// PriceConfig is the USD price per 1K tokens.
type PriceConfig struct {
	Prompt     float64 `json:"prompt" yaml:"prompt"`
	Completion float64 `json:"completion" yaml:"completion"`
	Embedding  float64 `json:"embedding,omitempty" yaml:"embedding,omitempty"`
}

// Default returns the configuration used when nothing overrides it.
func Default() AppConfig {
	return AppConfig{
		Provider: ProviderConfig{
			ChatDeployment:      "gpt4o",
			ChatModel:           "gpt-4o",
			EmbeddingDeployment: "text-embedding-3-large",
			Temperature:         0.1,
			Auth:                AuthKey,
			BreakerThreshold:    5,
			BreakerTimeout:      Duration(30 * time.Second),
		},
		Agent: AgentSettings{
			MaxIterations: 30,
			Timeout:       Duration(300 * time.Second),
		},
		Retrieval: RetrievalConfig{
			TopK:  3,
			Pause: Duration(2 * time.Second),
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: Duration(4 * time.Second),
				MaxDelay:     Duration(10 * time.Second),
				Multiplier:   2,
			},
			Cache: CacheConfig{Backend: CacheMemory},
		},
		Knowledge: KnowledgeConfig{
			Backend:      KnowledgeSQLite,
			DSN:          "./RAPTOR_db/knowledge.db",
			Collection:   "legislation_PUB",
			ChunkSize:    256,
			ChunkOverlap: 20,
		},
		Output: OutputConfig{
			Dir:      "outputs",
			StatsDir: "stats/tokens",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Exporter:   ExporterNone,
			SampleRate: 1,
		},
	}
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
