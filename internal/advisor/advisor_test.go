package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeCompletions(t *testing.T, answer string, seen *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "llama-3.3-70b-versatile",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": answer},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIAdvisorBuildsPrompt(t *testing.T) {
	var seen openai.ChatCompletionRequest
	srv := fakeCompletions(t, "  Plant maize after 25mm of rain.  ", &seen)

	a, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "llama-3.3-70b-versatile"}, nil, nil)
	require.NoError(t, err)

	got, err := a.Advise(context.Background(), Query{
		Channel:  ChannelUSSD,
		Question: `When to plant ${maize}?`,
		Context: UserContext{
			Location: "Masvingo",
			Season:   "summer",
			History: []Turn{
				{Role: "user", Content: "one"}, {Role: "assistant", Content: "two"},
				{Role: "user", Content: "three"}, {Role: "assistant", Content: "four"},
				{Role: "user", Content: "five"},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Plant maize after 25mm of rain.", got)

	assert.Equal(t, "llama-3.3-70b-versatile", seen.Model)
	assert.Equal(t, 120, seen.MaxTokens)
	require.Len(t, seen.Messages, 6)
	assert.Equal(t, openai.ChatMessageRoleSystem, seen.Messages[0].Role)
	assert.Contains(t, seen.Messages[0].Content, "summer season in Masvingo")
	assert.Equal(t, "two", seen.Messages[1].Content)
	assert.Equal(t, openai.ChatMessageRoleAssistant, seen.Messages[1].Role)
	assert.Equal(t, "When to plant maize?", seen.Messages[5].Content)
}

func TestOpenAIAdvisorEmptyAnswer(t *testing.T) {
	srv := fakeCompletions(t, "   ", nil)
	a, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)

	_, err = a.Advise(context.Background(), Query{Channel: ChannelWeb, Question: "hi"})
	assert.True(t, errors.Is(err, ErrEmptyAnswer))
}

func TestOpenAIAdvisorUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	a, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)
	_, err = a.Advise(context.Background(), Query{Channel: ChannelWeb, Question: "hi"})
	assert.Error(t, err)

	_, err = a.Advise(context.Background(), Query{Channel: ChannelWeb, Question: `"()"`})
	assert.Error(t, err)
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(Config{}, nil, nil)
	assert.Error(t, err)
}

func TestStaticAlwaysFails(t *testing.T) {
	s := NewStatic()
	_, err := s.Advise(context.Background(), Query{Question: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "Give brief growing advice for cotton in Southern Africa", s.Topic("crop_info", UserContext{}, map[string]string{"crop": "cotton"}))
	assert.Empty(t, s.Topic("nope", UserContext{}, nil))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "rm -rf HOME", Sanitize(` rm -rf ${HOME} `))
	assert.Equal(t, "say hi", Sanitize(`say "hi"`))
}

func TestLoadPromptSpec(t *testing.T) {
	spec, err := LoadPromptSpec("")
	require.NoError(t, err)
	sys := spec.System(ChannelWeb, UserContext{Season: "winter", SeasonalCrops: []string{"wheat", "barley", "oats", "peas", "leafy greens", "onions"}})
	assert.Contains(t, sys, "typically good for wheat, barley, oats, peas, leafy greens.")
	assert.Contains(t, sys, "engaged in various types of farming")

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("channels:\n  ussd:\n    system: hi\n"), 0o600))
	_, err = LoadPromptSpec(bad)
	assert.Error(t, err)

	_, err = LoadPromptSpec(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
