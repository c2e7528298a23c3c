package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/felixgeelhaar/adcompliance/domain/cache"
	domainconfig "github.com/felixgeelhaar/adcompliance/domain/config"
	"github.com/felixgeelhaar/adcompliance/domain/event"
	"github.com/felixgeelhaar/adcompliance/domain/knowledge"
	domainmw "github.com/felixgeelhaar/adcompliance/domain/middleware"
	"github.com/felixgeelhaar/adcompliance/domain/model"
	infraconfig "github.com/felixgeelhaar/adcompliance/infrastructure/config"
	"github.com/felixgeelhaar/adcompliance/infrastructure/logging"
	inframw "github.com/felixgeelhaar/adcompliance/infrastructure/middleware"
	modelinfra "github.com/felixgeelhaar/adcompliance/infrastructure/model"
	"github.com/felixgeelhaar/adcompliance/infrastructure/observability"
	"github.com/felixgeelhaar/adcompliance/infrastructure/storage/badger"
	"github.com/felixgeelhaar/adcompliance/infrastructure/storage/memory"
	"github.com/felixgeelhaar/adcompliance/infrastructure/storage/redis"
	"github.com/felixgeelhaar/adcompliance/infrastructure/storage/sqlite"
	"github.com/felixgeelhaar/adcompliance/infrastructure/telemetry"
)

// Backend is a model service able to chat and embed.
type Backend interface {
	model.Model
	model.Embedder
}

// ConnectFunc builds the model backend once configuration and credentials
// are known.
type ConnectFunc func(cfg *domainconfig.AppConfig, creds infraconfig.Credentials) (Backend, error)

func connectAzure(cfg *domainconfig.AppConfig, creds infraconfig.Credentials) (Backend, error) {
	return modelinfra.NewClient(modelinfra.Config{
		Endpoint:            creds.Endpoint,
		APIKey:              creds.APIKey,
		APIVersion:          creds.APIVersion,
		ChatDeployment:      cfg.Provider.ChatDeployment,
		EmbeddingDeployment: cfg.Provider.EmbeddingDeployment,
		Temperature:         cfg.Provider.Temperature,
		MaxTokens:           cfg.Provider.MaxTokens,
		UseIdentity:         cfg.Provider.Auth == domainconfig.AuthAzureIdentity,
		BreakerThreshold:    cfg.Provider.BreakerThreshold,
		BreakerTimeout:      cfg.Provider.BreakerTimeout.Duration(),
	})
}

// session holds everything a command opened; Close releases it.
type session struct {
	cfg     *domainconfig.AppConfig
	backend Backend
	closers []func(context.Context) error
}

// open loads configuration, initializes logging and fails fast on missing
// credentials before anything else is built.
func (a *App) open() (*session, error) {
	if err := infraconfig.LoadDotEnv(a.envFiles...); err != nil {
		return nil, err
	}
	cfg, err := infraconfig.NewLoader().LoadFile(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: a.stderr})

	creds, err := infraconfig.LoadCredentials(cfg.Provider.Auth)
	if err != nil {
		return nil, err
	}
	backend, err := a.connect(cfg, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	return &session{cfg: cfg, backend: backend}, nil
}

func (s *session) onClose(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

// Close runs the closers in reverse order and joins their errors.
func (s *session) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *session) knowledgeStore() (knowledge.Store, error) {
	k := s.cfg.Knowledge
	switch k.Backend {
	case domainconfig.KnowledgeMemory:
		return memory.NewKnowledgeStore(0), nil
	case domainconfig.KnowledgeSQLite, "":
		if dir := filepath.Dir(strings.TrimPrefix(k.DSN, "file:")); dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create knowledge directory: %w", err)
			}
		}
		store, err := sqlite.NewKnowledgeStore(sqlite.DefaultConfig(),
			sqlite.WithDSN(k.DSN),
			sqlite.WithCollection(k.Collection),
		)
		if err != nil {
			return nil, err
		}
		s.onClose(func(context.Context) error { return store.Close() })
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown knowledge backend %q", domainconfig.ErrInvalidConfig, k.Backend)
	}
}

func (s *session) retrievalCache() (cache.Cache, error) {
	c := s.cfg.Retrieval.Cache
	var (
		out cache.Cache
		err error
	)
	switch c.Backend {
	case domainconfig.CacheMemory, "":
		out = memory.NewCache(memory.WithMaxEntries(c.MaxEntries))
	case domainconfig.CacheBadger:
		out, err = badger.NewCache(badger.DefaultConfig(), badger.WithInMemory())
	case domainconfig.CacheRedis:
		opts := []redis.ConfigOption{redis.WithPassword(c.Redis.Password), redis.WithDB(c.Redis.DB)}
		if c.Redis.Addr != "" {
			opts = append(opts, redis.WithAddress(c.Redis.Addr))
		}
		out, err = redis.NewCache(redis.DefaultConfig(), opts...)
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", domainconfig.ErrInvalidConfig, c.Backend)
	}
	if err != nil {
		return nil, err
	}
	s.onClose(func(context.Context) error { return out.Close() })
	return out, nil
}

func (s *session) pricing() modelinfra.Pricing {
	overrides := make(map[string]modelinfra.Price, len(s.cfg.Pricing))
	for name, p := range s.cfg.Pricing {
		overrides[name] = modelinfra.Price{Prompt: p.Prompt, Completion: p.Completion, Embedding: p.Embedding}
	}
	return modelinfra.DefaultPricing().With(overrides)
}

// instrumentation is the observer stack of an analysis.
type instrumentation struct {
	notifier   *event.Notifier
	middleware *domainmw.Registry
	costs      *observability.CostTracker
	metrics    *telemetry.MetricsObserver
	reader     *metric.ManualReader
}

func (s *session) instrument(ctx context.Context) (*instrumentation, error) {
	provider, err := observability.New(ctx, observability.FromAppConfig(s.cfg.Telemetry, Version))
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	s.onClose(provider.Shutdown)

	in := &instrumentation{costs: observability.NewCostTracker(s.pricing())}
	observers := event.Multi{
		observability.NewLogObserver(),
		observability.NewTraceObserver(provider.Tracer()),
		in.costs,
	}
	if s.cfg.Telemetry.Metrics {
		mp, reader := telemetry.NewManualProvider()
		s.onClose(mp.Shutdown)
		cfg := telemetry.DefaultMetricsConfig()
		cfg.Provider = mp
		mo, err := telemetry.NewMetricsObserver(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to set up metrics: %w", err)
		}
		in.metrics = mo
		in.reader = reader
		observers = append(observers, mo)
	}

	in.notifier = event.NewNotifier(observers, func(hook string, stage event.Stage, err error) {
		logging.Warn().
			Add(logging.Str("hook", hook)).
			Add(logging.Stage(stage.Name)).
			Add(logging.RunID(stage.RunID)).
			Add(logging.ErrorField(err)).
			Msg("observer failed")
	})

	tracing := inframw.DefaultTracingConfig()
	tracing.Tracer = provider.Tracer()
	in.middleware = domainmw.NewRegistry().Use(
		inframw.Observe(in.notifier),
		inframw.Tracing(tracing),
		inframw.Logging(inframw.LoggingConfig{}),
		inframw.Validation(),
	)
	return in, nil
}
