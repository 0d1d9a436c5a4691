package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterGenerationMetrics()
	os.Exit(m.Run())
}

type verdict struct {
	Analysis string `json:"analysis"`
}

type messagesRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func messagesServer(t *testing.T, status int, text string, got *messagesRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("unexpected api key header: %q", r.Header.Get("X-Api-Key"))
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": text}},
			"usage":       map[string]any{"input_tokens": 200, "output_tokens": 40},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGenerator(t *testing.T, url string) *Generator {
	t.Helper()
	g, err := NewGenerator(Config{APIKey: "test-key", BaseURL: url, Model: "claude-test", Logger: zap.NewNop()})
	require.NoError(t, err)
	return g
}

func TestNewGenerator_Validation(t *testing.T) {
	_, err := NewGenerator(Config{Model: "claude-test"})
	require.Error(t, err)
	_, err = NewGenerator(Config{APIKey: "k"})
	require.Error(t, err)
}

func TestGenerate(t *testing.T) {
	var req messagesRequest
	srv := messagesServer(t, http.StatusOK, `{"analysis":"Leverage fell to 1.2x."}`, &req)

	var out verdict
	res, err := newTestGenerator(t, srv.URL).Generate(context.Background(), domain.GenerationRequest{
		System:    "You are a leverage analyst.",
		User:      "Debt table",
		Shape:     domain.Shape{Name: "analysis_response", Target: &out},
		MaxTokens: 512,
	})
	require.NoError(t, err)

	assert.Equal(t, "Leverage fell to 1.2x.", out.Analysis)
	assert.Equal(t, domain.GenerationResult{PromptTokens: 200, CompletionTokens: 40}, res)

	assert.Equal(t, "claude-test", req.Model)
	assert.Equal(t, 512, req.MaxTokens)
	require.Len(t, req.System, 1)
	assert.True(t, strings.HasPrefix(req.System[0].Text, "You are a leverage analyst."))
	assert.Contains(t, req.System[0].Text, "JSON schema")
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "Debt table", req.Messages[0].Content[0].Text)
}

func TestGenerate_DefaultMaxTokens(t *testing.T) {
	var req messagesRequest
	srv := messagesServer(t, http.StatusOK, `{"analysis":"ok"}`, &req)

	var out verdict
	_, err := newTestGenerator(t, srv.URL).Generate(context.Background(), domain.GenerationRequest{
		Shape: domain.Shape{Name: "analysis_response", Target: &out},
	})
	require.NoError(t, err)
	assert.Equal(t, defaultMaxTokens, req.MaxTokens)
}

func TestGenerate_FencedJSON(t *testing.T) {
	srv := messagesServer(t, http.StatusOK, "```json\n{\"analysis\":\"fenced\"}\n```", nil)

	var out verdict
	_, err := newTestGenerator(t, srv.URL).Generate(context.Background(), domain.GenerationRequest{
		Shape: domain.Shape{Name: "analysis_response", Target: &out},
	})
	require.NoError(t, err)
	assert.Equal(t, "fenced", out.Analysis)
}

func TestGenerate_InvalidResponse(t *testing.T) {
	srv := messagesServer(t, http.StatusOK, "Leverage fell.", nil)

	var out verdict
	res, err := newTestGenerator(t, srv.URL).Generate(context.Background(), domain.GenerationRequest{
		Shape: domain.Shape{Name: "analysis_response", Target: &out},
	})
	require.ErrorIs(t, err, domain.ErrInvalidResponse)
	assert.Equal(t, 200, res.PromptTokens)
}

func TestGenerate_ProviderError(t *testing.T) {
	srv := messagesServer(t, http.StatusTooManyRequests, "", nil)

	var out verdict
	_, err := newTestGenerator(t, srv.URL).Generate(context.Background(), domain.GenerationRequest{
		Shape: domain.Shape{Name: "analysis_response", Target: &out},
	})
	require.ErrorIs(t, err, domain.ErrGenerationProviderError)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
	assert.False(t, errors.Is(err, domain.ErrInvalidResponse))
}

func TestGenerate_ProviderErrorKeepsMessage(t *testing.T) {
	srv := messagesServer(t, http.StatusBadRequest, "", nil)

	var out verdict
	_, err := newTestGenerator(t, srv.URL).Generate(context.Background(), domain.GenerationRequest{
		Shape: domain.Shape{Name: "analysis_response", Target: &out},
	})
	require.ErrorIs(t, err, domain.ErrGenerationProviderError)
	assert.False(t, errors.Is(err, domain.ErrRateLimited))
	assert.Contains(t, err.Error(), "generation API error 400")
	assert.Contains(t, err.Error(), "busy")
}
