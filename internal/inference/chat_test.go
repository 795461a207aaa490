package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/pkg/config"
	"github.com/wonny/tradepulse/pkg/httputil"
	"github.com/wonny/tradepulse/pkg/logger"
)

func newChat(t *testing.T, handler http.HandlerFunc) *ChatProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewChatProvider(config.ProviderConfig{
		Name:    "llm7",
		APIKey:  "k",
		BaseURL: srv.URL + "/v1/",
		Model:   "gpt-4.1-nano",
	}, httputil.New(logger.NewNop()).DisableRetry())
}

func TestChatProvider_Infer(t *testing.T) {
	p := newChat(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4.1-nano", body.Model)
		assert.Equal(t, 0.3, body.Temperature)
		assert.Equal(t, 1000, body.MaxTokens)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  {\"recommendation\":\"BUY\"}  "}}]}`))
	})

	out, err := p.Infer(context.Background(), Request{Prompt: "analyze", Temperature: 0.3, MaxTokens: 1000})
	require.NoError(t, err)
	assert.Equal(t, `{"recommendation":"BUY"}`, out)
}

func TestChatProvider_Errors(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		wantUnavailable bool
	}{
		{"http error", http.StatusTooManyRequests, `{}`, true},
		{"api error body", http.StatusOK, `{"error":{"message":"bad key"}}`, true},
		{"no choices", http.StatusOK, `{"choices":[]}`, false},
		{"garbage", http.StatusOK, `not json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newChat(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := p.Infer(context.Background(), Request{Prompt: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.wantUnavailable, errors.Is(err, contracts.ErrProviderUnavailable))
		})
	}
}

func TestChatProvider_RespectsContextDeadline(t *testing.T) {
	p := newChat(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Infer(ctx, Request{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrProviderUnavailable))
}

func TestChatProvider_IsAvailable(t *testing.T) {
	client := httputil.New(logger.NewNop())
	assert.False(t, NewChatProvider(config.ProviderConfig{Name: "openai", BaseURL: "https://x", Model: "m"}, client).IsAvailable())
	assert.True(t, NewChatProvider(config.ProviderConfig{Name: "openai", APIKey: "k", BaseURL: "https://x", Model: "m"}, client).IsAvailable())
}
