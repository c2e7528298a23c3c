// Package model adapts Azure OpenAI to the domain model capability and
// provides decorators and test doubles around it.
package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/felixgeelhaar/adcompliance/domain/model"
	"github.com/felixgeelhaar/adcompliance/infrastructure/resilience"
)

// Config configures the Azure OpenAI client.
type Config struct {
	Endpoint   string
	APIKey     string
	APIVersion string

	// ChatDeployment serves Chat and Complete.
	ChatDeployment string
	// EmbeddingDeployment serves Embed.
	EmbeddingDeployment string

	Temperature float64
	MaxTokens   int

	// UseIdentity authenticates with the default Azure credential chain
	// instead of the API key.
	UseIdentity bool
	// Credential overrides the credential used when UseIdentity is set.
	Credential azcore.TokenCredential

	// BreakerThreshold opens the circuit after that many consecutive
	// failures (0 disables).
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// Client implements model.Model and model.Embedder on Azure OpenAI.
type Client struct {
	api     openai.Client
	cfg     Config
	breaker *resilience.Breaker[model.Response]
}

// NewClient builds a client. Extra options are appended after the Azure
// ones, which lets tests point the client at a local server.
func NewClient(cfg Config, extra ...option.RequestOption) (*Client, error) {
	if cfg.ChatDeployment == "" {
		return nil, errors.New("chat deployment is required")
	}

	var opts []option.RequestOption
	if cfg.Endpoint != "" {
		opts = append(opts, azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion))
	}
	if cfg.UseIdentity {
		cred := cfg.Credential
		if cred == nil {
			c, err := azidentity.NewDefaultAzureCredential(nil)
			if err != nil {
				return nil, fmt.Errorf("azure credential: %w", err)
			}
			cred = c
		}
		opts = append(opts, azure.WithTokenCredential(cred))
	} else if cfg.APIKey != "" {
		opts = append(opts, azure.WithAPIKey(cfg.APIKey))
	}
	opts = append(opts, extra...)

	return &Client{
		api:     openai.NewClient(opts...),
		cfg:     cfg,
		breaker: resilience.NewBreaker[model.Response](cfg.BreakerThreshold, cfg.BreakerTimeout),
	}, nil
}

// Name returns the chat deployment name.
func (c *Client) Name() string {
	return c.cfg.ChatDeployment
}

// Complete sends prompt as a single user message.
func (c *Client) Complete(ctx context.Context, prompt string) (model.Response, error) {
	return c.Chat(ctx, []model.Message{model.UserMessage(model.Text(prompt))})
}

// Chat sends the conversation to the chat deployment.
func (c *Client) Chat(ctx context.Context, messages []model.Message) (model.Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.cfg.ChatDeployment),
		Messages:    toChatMessages(messages),
		Temperature: openai.Float(c.cfg.Temperature),
	}
	if c.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.cfg.MaxTokens))
	}

	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (model.Response, error) {
		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			return model.Response{}, mapError(err)
		}
		if len(resp.Choices) == 0 {
			return model.Response{}, fmt.Errorf("%w: %w", model.ErrModelCall, model.ErrEmptyResponse)
		}
		return model.Response{
			Text:  resp.Choices[0].Message.Content,
			Model: resp.Model,
			Usage: model.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		}, nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return model.Response{}, fmt.Errorf("%w: %w", model.ErrModelCall, err)
	}
	return result, err
}

// Embed embeds texts with the embedding deployment.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, model.Usage, error) {
	if len(texts) == 0 {
		return nil, model.Usage{}, nil
	}
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.cfg.EmbeddingDeployment),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, model.Usage{}, mapError(err)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	for i, v := range out {
		if v == nil {
			return nil, model.Usage{}, fmt.Errorf("%w: no embedding for input %d", model.ErrModelCall, i)
		}
	}

	usage := model.Usage{
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	return out, usage, nil
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

func toChatMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(m.TextContent()))
		case model.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.TextContent()))
		default:
			if !m.HasImage() {
				out = append(out, openai.UserMessage(m.TextContent()))
				continue
			}
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Parts))
			for _, p := range m.Parts {
				switch p.Kind {
				case model.PartImage:
					parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
						URL: p.DataURL(),
					}))
				default:
					parts = append(parts, openai.TextContentPart(p.Text))
				}
			}
			out = append(out, openai.UserMessage(parts))
		}
	}
	return out
}

func mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &model.APIError{
			StatusCode: apiErr.StatusCode,
			Type:       apiErr.Type,
			Message:    apiErr.Message,
			Code:       apiErr.Code,
		}
	}
	return fmt.Errorf("%w: %v", model.ErrModelCall, err)
}
