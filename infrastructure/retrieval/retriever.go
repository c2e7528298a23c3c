// Package retrieval finds the legislation that applies to an advertisement
// by semantic search over the knowledge store.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/adcompliance/domain/cache"
	"github.com/felixgeelhaar/adcompliance/domain/knowledge"
	"github.com/felixgeelhaar/adcompliance/domain/model"
	"github.com/felixgeelhaar/adcompliance/infrastructure/logging"
	"github.com/felixgeelhaar/adcompliance/infrastructure/resilience"
)

// NoResults is returned in place of legislation when the search matched nothing.
const NoResults = "Aucune législation trouvée."

// ErrEmptyQuery is returned for a blank query.
var ErrEmptyQuery = errors.New("retrieval: empty query")

// Metrics receives one record per Search call.
type Metrics interface {
	RecordRetrieval(ctx context.Context, cached bool, retries int, d time.Duration, err error)
}

// Retrieval is the outcome of one Search.
type Retrieval struct {
	Text    string
	Cached  bool
	Results []knowledge.SearchResult // nil on a cache hit
}

// Stats counts what the retriever did since creation.
type Stats struct {
	Hits     int64
	Misses   int64
	Searches int64 // store queries, retries included
	Retries  int64
	Queries  int64
}

// Retriever caches searches by exact query, retries the embed and search
// step with exponential backoff and pauses after every uncached search.
type Retriever struct {
	store    knowledge.Store
	embedder model.Embedder
	llm      model.Model
	cache    cache.Cache
	topK     int
	pause    time.Duration
	retrier  *resilience.Retrier[[]knowledge.SearchResult]
	metrics  Metrics
	sleep    func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	lastRaw string

	hits     atomic.Int64
	misses   atomic.Int64
	searches atomic.Int64
	queries  atomic.Int64
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithTopK sets how many chunks a search returns.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithPause sets the wait after each uncached search. Zero disables it.
func WithPause(d time.Duration) Option {
	return func(r *Retriever) {
		r.pause = d
	}
}

// WithRetryPolicy replaces the default 3 attempts with 4s/8s backoff.
func WithRetryPolicy(p resilience.RetryPolicy) Option {
	return func(r *Retriever) {
		r.retrier = resilience.NewRetrier[[]knowledge.SearchResult](p)
	}
}

// WithMetrics records every search.
func WithMetrics(m Metrics) Option {
	return func(r *Retriever) {
		r.metrics = m
	}
}

// WithSleep replaces the pause implementation.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Retriever) {
		r.sleep = fn
	}
}

// New creates a Retriever. The cache is owned by the caller.
func New(store knowledge.Store, embedder model.Embedder, llm model.Model, c cache.Cache, opts ...Option) *Retriever {
	r := &Retriever{
		store:    store,
		embedder: embedder,
		llm:      llm,
		cache:    c,
		topK:     3,
		pause:    2 * time.Second,
		retrier:  resilience.NewRetrier[[]knowledge.SearchResult](resilience.DefaultRetryPolicy()),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FormatQuery wraps the advertisement context into the search instruction
// that is embedded.
func FormatQuery(query string) string {
	return "OBJECTIF : Trouver la législation applicable concernant la publicité.\n\n" +
		"CONTEXTE :\n" + query + "\n\n" +
		"RECHERCHER :\n" +
		"- Textes de loi\n" +
		"- Réglementations\n" +
		"- Directives légales\n" +
		"- Obligations légales"
}

// Search returns the legislation text for query. Identical queries are
// answered from the cache without touching the store.
func (r *Retriever) Search(ctx context.Context, query string) (Retrieval, error) {
	if strings.TrimSpace(query) == "" {
		return Retrieval{}, ErrEmptyQuery
	}
	start := time.Now()

	if text, ok, err := r.cache.Get(ctx, query); err != nil {
		logging.Warn().
			Add(logging.Component("retrieval")).
			Add(logging.ErrorField(err)).
			Msg("cache lookup failed")
	} else if ok {
		r.hits.Add(1)
		r.remember(text)
		logging.Debug().
			Add(logging.Component("retrieval")).
			Add(logging.Cached(true)).
			Msg("legislation served from cache")
		r.record(ctx, true, 0, start, nil)
		return Retrieval{Text: text, Cached: true}, nil
	}
	r.misses.Add(1)

	retriesBefore := r.retrier.Retries()
	formatted := FormatQuery(query)
	results, err := r.retrier.Do(ctx, func(ctx context.Context, attempt int) ([]knowledge.SearchResult, error) {
		r.searches.Add(1)
		res, err := r.searchOnce(ctx, formatted)
		if err != nil {
			logging.Warn().
				Add(logging.Component("retrieval")).
				Add(logging.Count("attempt", attempt)).
				Add(logging.ErrorField(err)).
				Msg("legislation search failed")
		}
		return res, err
	})
	retries := int(r.retrier.Retries() - retriesBefore)
	if err != nil {
		r.record(ctx, false, retries, start, err)
		return Retrieval{}, fmt.Errorf("legislation search: %w", err)
	}

	text := JoinResults(results)
	if err := r.cache.Set(ctx, query, text); err != nil {
		logging.Warn().
			Add(logging.Component("retrieval")).
			Add(logging.ErrorField(err)).
			Msg("cache store failed")
	}
	r.remember(text)

	logging.Info().
		Add(logging.Component("retrieval")).
		Add(logging.Count("results", len(results))).
		Add(logging.Count("chars", len(text))).
		Add(logging.Duration(time.Since(start))).
		Msg("legislation retrieved")

	r.record(ctx, false, retries, start, nil)

	if r.pause > 0 {
		if err := r.sleep(ctx, r.pause); err != nil {
			return Retrieval{Text: text, Results: results}, err
		}
	}
	return Retrieval{Text: text, Results: results}, nil
}

func (r *Retriever) searchOnce(ctx context.Context, formatted string) ([]knowledge.SearchResult, error) {
	vectors, _, err := r.embedder.Embed(ctx, []string{formatted})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, model.ErrEmptyResponse
	}
	return r.store.Search(ctx, vectors[0], r.topK)
}

// Query answers text with the model, using the last retrieved legislation
// as context. Without a previous search it searches for text first.
func (r *Retriever) Query(ctx context.Context, text string) (string, error) {
	r.queries.Add(1)

	raw := r.LastRaw()
	if raw == "" {
		res, err := r.Search(ctx, text)
		if err != nil {
			return "", err
		}
		raw = res.Text
	}

	resp, err := r.llm.Complete(ctx, text+"\n\nContexte:\n"+raw)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// LastRaw returns the text of the most recent search.
func (r *Retriever) LastRaw() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRaw
}

// Stats returns counters since creation.
func (r *Retriever) Stats() Stats {
	return Stats{
		Hits:     r.hits.Load(),
		Misses:   r.misses.Load(),
		Searches: r.searches.Load(),
		Retries:  r.retrier.Retries(),
		Queries:  r.queries.Load(),
	}
}

func (r *Retriever) remember(text string) {
	r.mu.Lock()
	r.lastRaw = text
	r.mu.Unlock()
}

func (r *Retriever) record(ctx context.Context, cached bool, retries int, start time.Time, err error) {
	if r.metrics != nil {
		r.metrics.RecordRetrieval(ctx, cached, retries, time.Since(start), err)
	}
}

// JoinResults joins chunk texts with newlines.
func JoinResults(results []knowledge.SearchResult) string {
	if len(results) == 0 {
		return NoResults
	}
	texts := make([]string, 0, len(results))
	for _, res := range results {
		texts = append(texts, res.Text)
	}
	return strings.Join(texts, "\n")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
