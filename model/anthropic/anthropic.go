// Package anthropic adapts the Anthropic Messages API to the engine's model
// interface.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/model"
)

// Options configure the Anthropic adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind model.Model.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates an adapter using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates an adapter from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.3,
		MaxTokens:   2048,
	}
}

// WithConfig applies a node-level model.Config to the adapter options.
func WithConfig(cfg model.Config) func(o *Options) {
	return func(o *Options) {
		if cfg.Name != "" {
			o.Model = anthropic.Model(cfg.Name)
		}
		if cfg.Temperature > 0 {
			o.Temperature = cfg.Temperature
		}
		if cfg.MaxTokens > 0 {
			o.MaxTokens = cfg.MaxTokens
		}
	}
}

func (m *Model) buildParams(msgs []core.Message) anthropic.MessageNewParams {
	var messages []anthropic.MessageParam
	var system []anthropic.TextBlockParam
	for _, msg := range msgs {
		switch msg.Role {
		case core.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    messages,
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if len(system) > 0 {
		params.System = system
	}
	return params
}

// Invoke implements model.Model.
func (m *Model) Invoke(ctx context.Context, msgs []core.Message) (string, error) {
	resp, err := m.client.Messages.New(ctx, m.buildParams(msgs))
	if err != nil {
		return "", core.Transient(fmt.Errorf("anthropic completion: %w", err))
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return text, nil
}

// Stream implements model.Model.
func (m *Model) Stream(ctx context.Context, msgs []core.Message) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		stream := m.client.Messages.NewStreaming(ctx, m.buildParams(msgs))
		for stream.Next() {
			event := stream.Current()
			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := variant.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case out <- delta.Text:
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- core.Transient(fmt.Errorf("anthropic streaming: %w", err))
		}
	}()
	return out, errCh
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic"}
}
