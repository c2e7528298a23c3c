package model

import (
	"context"

	"github.com/felixgeelhaar/adcompliance/domain/event"
	"github.com/felixgeelhaar/adcompliance/domain/model"
)

// Metered reports the usage of every successful call to a recorder, labeled
// with the stage carried by the call's context.
type Metered struct {
	next           model.Model
	embedder       model.Embedder
	recorder       model.UsageRecorder
	chatModel      string
	embeddingModel string
}

// MeteredOption configures a Metered decorator.
type MeteredOption func(*Metered)

// WithEmbedder also meters embedding calls.
func WithEmbedder(e model.Embedder, modelName string) MeteredOption {
	return func(m *Metered) {
		m.embedder = e
		m.embeddingModel = modelName
	}
}

// WithChatModel sets the model name used for pricing when the service
// reports none.
func WithChatModel(name string) MeteredOption {
	return func(m *Metered) {
		m.chatModel = name
	}
}

// NewMetered wraps next.
func NewMetered(next model.Model, recorder model.UsageRecorder, opts ...MeteredOption) *Metered {
	m := &Metered{next: next, recorder: recorder, chatModel: next.Name()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the wrapped model's name.
func (m *Metered) Name() string {
	return m.next.Name()
}

// Chat implements model.Model.
func (m *Metered) Chat(ctx context.Context, messages []model.Message) (model.Response, error) {
	resp, err := m.next.Chat(ctx, messages)
	if err == nil {
		m.record(ctx, resp.Model, false, resp.Usage)
	}
	return resp, err
}

// Complete implements model.Model.
func (m *Metered) Complete(ctx context.Context, prompt string) (model.Response, error) {
	resp, err := m.next.Complete(ctx, prompt)
	if err == nil {
		m.record(ctx, resp.Model, false, resp.Usage)
	}
	return resp, err
}

// Embed implements model.Embedder. It fails if no embedder was configured.
func (m *Metered) Embed(ctx context.Context, texts []string) ([][]float32, model.Usage, error) {
	if m.embedder == nil {
		return nil, model.Usage{}, model.ErrModelCall
	}
	vecs, usage, err := m.embedder.Embed(ctx, texts)
	if err == nil {
		m.record(ctx, m.embeddingModel, true, usage)
	}
	return vecs, usage, err
}

func (m *Metered) record(ctx context.Context, name string, embedding bool, usage model.Usage) {
	if m.recorder == nil {
		return
	}
	if name == "" && !embedding {
		name = m.chatModel
	}
	stage, _ := event.StageFrom(ctx)
	m.recorder.RecordUsage(ctx, model.UsageRecord{
		RunID:     stage.RunID,
		Stage:     event.StageNameFrom(ctx),
		Model:     name,
		Embedding: embedding,
		Usage:     usage,
	})
}
