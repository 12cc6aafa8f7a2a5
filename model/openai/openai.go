// Package openai adapts the OpenAI Chat Completions and Embeddings APIs to
// the engine's model and embedding interfaces.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/model"
)

// Options configure the OpenAI chat adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind model.Model.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates an adapter using a client built from the environment.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates an adapter from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 2048,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// WithConfig applies a node-level model.Config to the adapter options.
func WithConfig(cfg model.Config) func(o *Options) {
	return func(o *Options) {
		if cfg.Name != "" {
			o.Model = cfg.Name
		}
		if cfg.Temperature > 0 {
			o.Temperature = cfg.Temperature
		}
		if cfg.MaxTokens > 0 {
			o.MaxCompletionTokens = cfg.MaxTokens
		}
	}
}

func (m *Model) buildParams(msgs []core.Message) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case core.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
}

// Invoke implements model.Model.
func (m *Model) Invoke(ctx context.Context, msgs []core.Message) (string, error) {
	resp, err := m.client.Chat.Completions.New(ctx, m.buildParams(msgs))
	if err != nil {
		return "", core.Transient(fmt.Errorf("openai completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream implements model.Model.
func (m *Model) Stream(ctx context.Context, msgs []core.Message) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		stream := m.client.Chat.Completions.NewStreaming(ctx, m.buildParams(msgs))
		for stream.Next() {
			ck := stream.Current()
			for _, ch := range ck.Choices {
				if ch.Delta.Content == "" {
					continue
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- ch.Delta.Content:
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- core.Transient(fmt.Errorf("openai streaming: %w", err))
		}
	}()
	return out, errCh
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai"}
}

// Embedder wraps the OpenAI Embeddings API for the retrieval layer's vector
// index.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewEmbedder creates an embedder using a client built from the environment.
func NewEmbedder() *Embedder {
	client := openai.NewClient()
	return NewEmbedderFromClient(&client, openai.EmbeddingModelTextEmbedding3Small)
}

// NewEmbedderFromClient creates an embedder from an existing client.
func NewEmbedderFromClient(client *openai.Client, embeddingModel openai.EmbeddingModel) *Embedder {
	if embeddingModel == "" {
		embeddingModel = openai.EmbeddingModelTextEmbedding3Small
	}
	return &Embedder{client: client, model: embeddingModel}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: e.model,
	})
	if err != nil {
		return nil, core.Transient(fmt.Errorf("openai embeddings: %w", err))
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}
	return resp.Data[0].Embedding, nil
}
