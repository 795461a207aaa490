package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/pkg/config"
	"github.com/wonny/tradepulse/pkg/httputil"
)

// ChatProvider talks to an OpenAI-compatible chat completions endpoint
type ChatProvider struct {
	cfg    config.ProviderConfig
	client *httputil.Client
}

// NewChatProvider creates a provider; retries are the adapter's concern, so
// the client should have retry disabled
func NewChatProvider(cfg config.ProviderConfig, client *httputil.Client) *ChatProvider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ChatProvider{cfg: cfg, client: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Name returns the configured provider name
func (p *ChatProvider) Name() string { return p.cfg.Name }

// Model returns the configured model id
func (p *ChatProvider) Model() string { return p.cfg.Model }

// BaseURL returns the endpoint root
func (p *ChatProvider) BaseURL() string { return p.cfg.BaseURL }

// IsAvailable reports whether key, endpoint and model are set
func (p *ChatProvider) IsAvailable() bool {
	return p.cfg.APIKey != "" && p.cfg.BaseURL != "" && p.cfg.Model != ""
}

// Infer sends the prompt as a single user message
func (p *ChatProvider) Infer(ctx context.Context, req Request) (string, error) {
	body := chatRequest{
		Model:       p.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}

	var parsed chatResponse
	err := p.client.DoJSON(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", body, &parsed, headers)
	if errors.Is(err, httputil.ErrDecode) {
		return "", fmt.Errorf("%s: %w", p.cfg.Name, err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", contracts.ErrProviderUnavailable, p.cfg.Name, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: %s: %s", contracts.ErrProviderUnavailable, p.cfg.Name, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in response", p.cfg.Name)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
