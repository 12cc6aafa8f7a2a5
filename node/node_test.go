package node

import (
	"context"
	"strings"
	"sync"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/model"
)

// scriptedModel returns queued responses in order, repeating the last one
// when the queue is exhausted. Used across the node tests to drive exact
// pipeline behavior.
type scriptedModel struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func script(responses ...string) *scriptedModel {
	return &scriptedModel{responses: responses}
}

func (s *scriptedModel) next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", nil
	}
	i := s.calls - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func (s *scriptedModel) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedModel) Invoke(ctx context.Context, msgs []core.Message) (string, error) {
	return s.next()
}

func (s *scriptedModel) Stream(ctx context.Context, msgs []core.Message) (<-chan string, <-chan error) {
	out := make(chan string, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		full, err := s.next()
		if err != nil {
			errCh <- err
			return
		}
		for _, w := range strings.SplitAfter(full, " ") {
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

func (s *scriptedModel) Info() model.Info { return model.Info{Name: "scripted", Provider: "test"} }

func userState(question string) core.RunState {
	return core.RunState{
		ConversationID: "conv-1",
		Messages:       []core.Message{{Role: core.RoleUser, Content: question}},
		Domain:         core.DomainUnknown,
		EmotionalState: core.EmotionNeutral,
	}
}
