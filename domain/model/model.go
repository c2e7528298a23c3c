// Package model defines the language model capability the analysis depends
// on: multimodal chat, plain completion and text embedding.
package model

import (
	"context"
	"encoding/base64"
	"strings"
)

// Role is the author of a chat message.
type Role string

// Chat roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartKind distinguishes message parts.
type PartKind string

// Part kinds.
const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
)

// Part is one piece of message content.
type Part struct {
	Kind     PartKind
	Text     string
	Data     []byte // raw image bytes
	MIMEType string
}

// Text creates a text part.
func Text(s string) Part {
	return Part{Kind: PartText, Text: s}
}

// Image creates an image part from raw bytes.
func Image(data []byte, mimeType string) Part {
	return Part{Kind: PartImage, Data: data, MIMEType: mimeType}
}

// DataURL returns the image as a base64 data URL.
func (p Part) DataURL() string {
	mimeType := p.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Message is a chat message made of ordered parts.
type Message struct {
	Role  Role
	Parts []Part
}

// SystemMessage creates a text-only system message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Parts: []Part{Text(text)}}
}

// UserMessage creates a user message from parts.
func UserMessage(parts ...Part) Message {
	return Message{Role: RoleUser, Parts: parts}
}

// AssistantMessage creates a text-only assistant message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Parts: []Part{Text(text)}}
}

// TextContent concatenates the message's text parts.
func (m Message) TextContent() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Kind == PartText {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// HasImage reports whether the message carries an image part.
func (m Message) HasImage() bool {
	for _, p := range m.Parts {
		if p.Kind == PartImage {
			return true
		}
	}
	return false
}

// Usage is token consumption of one call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Add returns the sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// Response is the result of a chat or completion call.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Model is a chat-capable language model.
type Model interface {
	// Chat sends an ordered conversation and returns the assistant reply.
	Chat(ctx context.Context, messages []Message) (Response, error)

	// Complete sends a single user prompt.
	Complete(ctx context.Context, prompt string) (Response, error)

	// Name identifies the model or deployment.
	Name() string
}

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, Usage, error)
}

// UsageRecord attributes one call's usage to a stage.
type UsageRecord struct {
	RunID     string
	Stage     string
	Model     string
	Embedding bool
	Usage     Usage
}

// UsageRecorder receives usage records.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec UsageRecord)
}
