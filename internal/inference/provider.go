package inference

import (
	"context"
	"time"
)

// Request is one inference call
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Provider is one inference backend
// ⭐ SSOT: 모든 LLM 호출은 이 인터페이스를 통해서만 수행
type Provider interface {
	Name() string
	// Infer returns the raw response text
	Infer(ctx context.Context, req Request) (string, error)
	// IsAvailable reports whether the provider is configured; no network call
	IsAvailable() bool
}

// describer is implemented by providers that can report their endpoint
type describer interface {
	Model() string
	BaseURL() string
}
