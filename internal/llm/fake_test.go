package llm

import (
	"context"
	"fmt"
	"sync"
)

// scriptedProvider replays queued errors first, then queued replies.
type scriptedProvider struct {
	mu sync.Mutex

	name       string
	errs       []error
	replies    []string
	embedErrs  []error
	embeddings [][][]float32

	calls      int
	embedCalls int
	lastPrompt *Prompt
	lastOpts   *RequestOptions
}

func (s *scriptedProvider) Name() string { return s.name }

func (s *scriptedProvider) Complete(_ context.Context, p *Prompt, opts *RequestOptions) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastPrompt = p
	s.lastOpts = opts
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	if len(s.replies) > 0 {
		r := s.replies[0]
		s.replies = s.replies[1:]
		return &Response{Content: r, InputTokens: 3, OutputTokens: 2}, nil
	}
	return nil, fmt.Errorf("scripted: no reply queued")
}

func (s *scriptedProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embedCalls++
	if len(s.embedErrs) > 0 {
		err := s.embedErrs[0]
		s.embedErrs = s.embedErrs[1:]
		return nil, err
	}
	if len(s.embeddings) > 0 {
		e := s.embeddings[0]
		s.embeddings = s.embeddings[1:]
		return e, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}
