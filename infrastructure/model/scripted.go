package model

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/felixgeelhaar/adcompliance/domain/model"
)

// ErrScriptExhausted is returned by Scripted when no reply is queued and no
// fallback is set.
var ErrScriptExhausted = errors.New("scripted model has no more replies")

// Scripted is a deterministic model.Model and model.Embedder for tests.
// Replies are served in order; Reply overrides the queue when set.
type Scripted struct {
	mu      sync.Mutex
	replies []Reply
	calls   [][]model.Message
	embeds  [][]string

	// Reply, when set, answers every call the queue does not.
	Reply func(messages []model.Message) (string, error)
	// Usage is reported for every successful call.
	Usage model.Usage
	// Dimension is the embedding size (default 8).
	Dimension int
	// EmbedErr, when set, fails embedding calls.
	EmbedErr func(call int) error
}

// Reply is one queued answer.
type Reply struct {
	Text string
	Err  error
}

// NewScripted creates a scripted model answering with texts in order.
func NewScripted(texts ...string) *Scripted {
	s := &Scripted{}
	for _, t := range texts {
		s.replies = append(s.replies, Reply{Text: t})
	}
	return s
}

// Enqueue appends replies.
func (s *Scripted) Enqueue(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// Name implements model.Model.
func (s *Scripted) Name() string {
	return "scripted"
}

// Chat implements model.Model.
func (s *Scripted) Chat(ctx context.Context, messages []model.Message) (model.Response, error) {
	if err := ctx.Err(); err != nil {
		return model.Response{}, err
	}

	s.mu.Lock()
	s.calls = append(s.calls, messages)
	var next *Reply
	if len(s.replies) > 0 {
		r := s.replies[0]
		s.replies = s.replies[1:]
		next = &r
	}
	fallback := s.Reply
	usage := s.Usage
	s.mu.Unlock()

	switch {
	case next != nil:
		if next.Err != nil {
			return model.Response{}, next.Err
		}
		return model.Response{Text: next.Text, Model: s.Name(), Usage: usage}, nil
	case fallback != nil:
		text, err := fallback(messages)
		if err != nil {
			return model.Response{}, err
		}
		return model.Response{Text: text, Model: s.Name(), Usage: usage}, nil
	default:
		return model.Response{}, ErrScriptExhausted
	}
}

// Complete implements model.Model.
func (s *Scripted) Complete(ctx context.Context, prompt string) (model.Response, error) {
	return s.Chat(ctx, []model.Message{model.UserMessage(model.Text(prompt))})
}

// Embed returns deterministic bag-of-words vectors so that texts sharing
// words are close.
func (s *Scripted) Embed(ctx context.Context, texts []string) ([][]float32, model.Usage, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Usage{}, err
	}
	s.mu.Lock()
	s.embeds = append(s.embeds, texts)
	call := len(s.embeds)
	fail := s.EmbedErr
	dim := s.Dimension
	s.mu.Unlock()

	if fail != nil {
		if err := fail(call); err != nil {
			return nil, model.Usage{}, err
		}
	}
	if dim <= 0 {
		dim = 8
	}

	out := make([][]float32, len(texts))
	var tokens int64
	for i, t := range texts {
		vec := make([]float32, dim)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			vec[h.Sum32()%uint32(dim)]++ // #nosec G115 -- dim is positive
			tokens++
		}
		normalize(vec)
		out[i] = vec
	}
	return out, model.Usage{PromptTokens: tokens, TotalTokens: tokens}, nil
}

// Calls returns the chat conversations received so far.
func (s *Scripted) Calls() [][]model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]model.Message, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of chat calls.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// EmbedCount returns the number of embedding calls.
func (s *Scripted) EmbedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.embeds)
}

// LastPrompt returns the text of the last message of the last chat call.
func (s *Scripted) LastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return ""
	}
	msgs := s.calls[len(s.calls)-1]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].TextContent()
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}
