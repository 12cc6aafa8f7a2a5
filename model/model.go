package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fairplaylabs/adviser/core"
)

// Config carries the per-node generation parameters from the configuration
// surface to a provider adapter.
type Config struct {
	Name        string  `json:"name" mapstructure:"name"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int64   `json:"max_tokens" mapstructure:"max_tokens"`
}

// Info describes a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Model is the minimal interface nodes use to drive generation.
type Model interface {
	// Invoke runs a blocking completion and returns the full text.
	Invoke(ctx context.Context, msgs []core.Message) (string, error)

	// Stream runs a streaming completion. Token fragments arrive on the
	// first channel; at most one terminal error arrives on the second. Both
	// channels are closed when generation ends.
	Stream(ctx context.Context, msgs []core.Message) (<-chan string, <-chan error)

	// Info returns metadata about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model for tests and examples. It
// matches canned responses against the last message content, falling back
// to an echo. Safe for concurrent use.
type MockModel struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	err       error
	calls     int
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned completion for a prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times the model was invoked (Invoke and Stream).
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockModel) respond(msgs []core.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("no messages provided")
	}
	last := msgs[len(msgs)-1].Content
	if resp, ok := m.responses[last]; ok {
		return resp, nil
	}
	return "Mock response to: " + last, nil
}

// Invoke implements Model.
func (m *MockModel) Invoke(_ context.Context, msgs []core.Message) (string, error) {
	return m.respond(msgs)
}

// Stream implements Model, emitting the canned response word by word.
func (m *MockModel) Stream(ctx context.Context, msgs []core.Message) (<-chan string, <-chan error) {
	out := make(chan string, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		full, err := m.respond(msgs)
		if err != nil {
			errCh <- err
			return
		}
		words := strings.SplitAfter(full, " ")
		for _, w := range words {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- w:
			}
		}
	}()
	return out, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// Collect drains a Stream call into the final text. Convenience used by
// callers that accept either invocation style.
func Collect(tokens <-chan string, errs <-chan error) (string, error) {
	var b strings.Builder
	for t := range tokens {
		b.WriteString(t)
	}
	if err := <-errs; err != nil {
		return b.String(), err
	}
	return b.String(), nil
}
