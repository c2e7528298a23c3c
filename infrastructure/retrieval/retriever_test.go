package retrieval_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/adcompliance/domain/knowledge"
	"github.com/felixgeelhaar/adcompliance/infrastructure/model"
	"github.com/felixgeelhaar/adcompliance/infrastructure/resilience"
	"github.com/felixgeelhaar/adcompliance/infrastructure/retrieval"
	"github.com/felixgeelhaar/adcompliance/infrastructure/storage/memory"
)

type countingStore struct {
	knowledge.Store
	searches atomic.Int64
}

func (s *countingStore) Search(ctx context.Context, emb []float32, topK int) ([]knowledge.SearchResult, error) {
	s.searches.Add(1)
	return s.Store.Search(ctx, emb, topK)
}

type fixture struct {
	store  *countingStore
	llm    *model.Scripted
	pauses []time.Duration
	r      *retrieval.Retriever
}

func newFixture(t *testing.T, texts []string, opts ...retrieval.Option) *fixture {
	t.Helper()

	ctx := context.Background()
	indexer := model.NewScripted()
	mem := memory.NewKnowledgeStore(0)
	for i, text := range texts {
		vecs, _, err := indexer.Embed(ctx, []string{text})
		if err != nil {
			t.Fatal(err)
		}
		_ = mem.Upsert(ctx, &knowledge.Chunk{ID: fmt.Sprintf("node_%d", i), Text: text, Embedding: vecs[0]})
	}

	llm := model.NewScripted()

	f := &fixture{store: &countingStore{Store: mem}, llm: llm}
	base := []retrieval.Option{
		retrieval.WithSleep(func(_ context.Context, d time.Duration) error {
			f.pauses = append(f.pauses, d)
			return nil
		}),
		retrieval.WithRetryPolicy(resilience.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2}),
	}
	f.r = retrieval.New(f.store, llm, llm, memory.NewCache(), append(base, opts...)...)
	return f
}

func TestSearch_CachesExactQuery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []string{"prix barré réduction", "mentions légales crédit"})
	ctx := context.Background()

	first, err := f.r.Search(ctx, "affiche prix barré")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	second, err := f.r.Search(ctx, "affiche prix barré")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if got := f.store.searches.Load(); got != 1 {
		t.Errorf("store searches = %d, want 1", got)
	}
	if first.Cached || !second.Cached {
		t.Errorf("Cached = %v, %v, want false, true", first.Cached, second.Cached)
	}
	if first.Text != second.Text {
		t.Errorf("cached text = %q, want %q", second.Text, first.Text)
	}
	if len(f.pauses) != 1 || f.pauses[0] != 2*time.Second {
		t.Errorf("pauses = %v, want one 2s pause", f.pauses)
	}

	st := f.r.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Searches != 1 {
		t.Errorf("Stats = %+v, want 1 hit, 1 miss, 1 search", st)
	}
}

func TestSearch_JoinsTopK(t *testing.T) {
	t.Parallel()

	texts := []string{"a prix", "b prix", "c prix", "d prix"}
	f := newFixture(t, texts)

	res, err := f.r.Search(context.Background(), "prix")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Results) != 3 {
		t.Errorf("len(Results) = %d, want 3", len(res.Results))
	}
	if got := strings.Count(res.Text, "\n"); got != 2 {
		t.Errorf("Text has %d newlines, want 2: %q", got, res.Text)
	}
}

func TestSearch_EmptyStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	res, err := f.r.Search(context.Background(), "publicité")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Text != retrieval.NoResults {
		t.Errorf("Text = %q, want %q", res.Text, retrieval.NoResults)
	}
}

func TestSearch_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []string{"texte"})
	transient := errors.New("503 service unavailable")
	f.llm.EmbedErr = func(call int) error {
		if call <= 2 {
			return transient
		}
		return nil
	}

	if _, err := f.r.Search(context.Background(), "texte"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if got := f.llm.EmbedCount(); got != 3 {
		t.Errorf("embed calls = %d, want 3", got)
	}
	if st := f.r.Stats(); st.Retries != 2 || st.Searches != 3 {
		t.Errorf("Stats = %+v, want 2 retries over 3 searches", st)
	}
}

func TestSearch_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []string{"texte"})
	boom := errors.New("connection reset")
	f.llm.EmbedErr = func(int) error { return boom }

	_, err := f.r.Search(context.Background(), "texte")
	if !errors.Is(err, boom) {
		t.Fatalf("Search error = %v, want %v", err, boom)
	}
	if got := f.llm.EmbedCount(); got != 3 {
		t.Errorf("embed calls = %d, want 3", got)
	}
	if len(f.pauses) != 0 {
		t.Errorf("paused after a failed search")
	}

	// failures are not cached
	f.llm.EmbedErr = nil
	res, err := f.r.Search(context.Background(), "texte")
	if err != nil || res.Cached {
		t.Errorf("Search after recovery = %+v, %v, want fresh result", res, err)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	if _, err := f.r.Search(context.Background(), "  "); !errors.Is(err, retrieval.ErrEmptyQuery) {
		t.Errorf("Search error = %v, want %v", err, retrieval.ErrEmptyQuery)
	}
}

func TestSearch_PauseHonorsContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []string{"texte"})
	r := retrieval.New(f.store, f.llm, f.llm, memory.NewCache(), retrieval.WithPause(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Search(ctx, "texte")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Search error = %v, want %v", err, context.DeadlineExceeded)
	}
	if time.Since(start) > time.Second {
		t.Errorf("pause ignored cancellation")
	}
}

func TestQuery_UsesLastRawLegislation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []string{"Article L121-1 pratiques commerciales"})
	ctx := context.Background()

	res, err := f.r.Search(ctx, "pratiques commerciales")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	f.llm.Enqueue(model.Reply{Text: "synthèse"})
	got, err := f.r.Query(ctx, "Analyser la législation")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if got != "synthèse" {
		t.Errorf("Query = %q, want synthèse", got)
	}
	want := "Analyser la législation\n\nContexte:\n" + res.Text
	if f.llm.LastPrompt() != want {
		t.Errorf("prompt = %q, want %q", f.llm.LastPrompt(), want)
	}
}

func TestQuery_SearchesWhenNothingRetrieved(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []string{"Article L112-1 prix"})
	f.llm.Enqueue(model.Reply{Text: "ok"})

	if _, err := f.r.Query(context.Background(), "prix"); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if got := f.store.searches.Load(); got != 1 {
		t.Errorf("store searches = %d, want 1", got)
	}
	if !strings.Contains(f.llm.LastPrompt(), "Article L112-1 prix") {
		t.Errorf("prompt lacks retrieved legislation: %q", f.llm.LastPrompt())
	}
}

func TestFormatQuery(t *testing.T) {
	t.Parallel()

	got := retrieval.FormatQuery("Soldes d'été")
	for _, want := range []string{"OBJECTIF :", "CONTEXTE :\nSoldes d'été\n", "- Obligations légales"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatQuery() missing %q", want)
		}
	}
}
