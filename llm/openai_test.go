package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatServer(t *testing.T, handler func(w http.ResponseWriter, req map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProviderChat(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, req map[string]any) {
		assert.Equal(t, "gpt-35-turbo", req["model"])
		msgs, _ := req["messages"].([]any)
		assert.Len(t, msgs, 1)
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"[\"a\"]"}}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	})

	p, err := ProviderOpenAI.Model("gpt-3.5").BaseURL(srv.URL).APIKey("sk-test")
	require.NoError(t, err)
	resp, err := p.Chat(context.Background(), []ChatMessage{UserMessage("pick files")})
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, uint32(5), resp.Usage.TotalTokens)
}

func TestOpenAIProviderEmptyChoices(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, _ map[string]any) {
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	})

	p := NewOpenAIProvider("sk-test", srv.URL, "gpt-4", 100, 0.2)
	_, err := p.Chat(context.Background(), []ChatMessage{UserMessage("x")})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

// TestOpenAIUnauthorizedIsAuthErrorWithoutKeyLeak verifies 401 responses are
// classified as authentication failures and never echo the API key.
func TestOpenAIUnauthorizedIsAuthErrorWithoutKeyLeak(t *testing.T) {
	testKey := "sk-test-invalid-key-12345xyz"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(testKey, srv.URL, "gpt-4", 100, 0.2)
	_, err := p.Chat(context.Background(), []ChatMessage{UserMessage("test")})
	require.Error(t, err)
	assert.True(t, IsAuthError(err), "got %v", err)
	assert.NotContains(t, err.Error(), testKey)
	assert.NotContains(t, err.Error(), "Authorization:")
}

func TestClientOverOpenAIServerRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := newChatServer(t, func(w http.ResponseWriter, _ map[string]any) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream unavailable"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"2","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{}"}}]}`))
	})

	p := NewOpenAIProvider("sk-test", srv.URL, "gpt-4", 100, 0.2)
	got, err := NewClient(p, ClientConfig{Sleep: noSleep}).Invoke(context.Background(), "analyze")
	require.NoError(t, err)
	assert.Equal(t, "{}", got)
	assert.Equal(t, 2, calls)
}
