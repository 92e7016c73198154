package llmclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

const openAIReply = `{
  "id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "test-model",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "` + "```json\\n{}\\n```" + `"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
}`

func setupOpenAIClient(t *testing.T, handler http.HandlerFunc) (*OpenAIClient, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	logger, _ := setupTestLogger(t)
	cfg := getValidModelConfig(config.ProviderOpenAI)
	cfg.Endpoint = server.URL + "/v1"
	client, err := NewOpenAIClient(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, &calls
}

func TestOpenAIClient_Invoke_Success(t *testing.T) {
	var captured map[string]interface{}
	var auth string
	client, calls := setupOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = jsoniter.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, openAIReply)
	})

	text, err := client.Invoke(context.Background(), schemas.InvocationRequest{
		Prompt:   "Goal: open the docs",
		ImageURL: "https://img.example/shot.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "```json\n{}\n```", text)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, "Bearer test-api-key", auth)

	require.NotNil(t, captured)
	assert.EqualValues(t, 300, captured["max_tokens"])
	assert.Equal(t, "test-model", captured["model"])

	messages := captured["messages"].([]interface{})
	require.Len(t, messages, 1)
	parts := messages[0].(map[string]interface{})["content"].([]interface{})
	require.Len(t, parts, 2)
	assert.Equal(t, "Goal: open the docs", parts[0].(map[string]interface{})["text"])
	imagePart := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})
	assert.Equal(t, "https://img.example/shot.png", imagePart["url"], "screenshot URL is passed through")
}

func TestOpenAIClient_Invoke_APIError(t *testing.T) {
	client, calls := setupOpenAIClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	})

	text, err := client.Invoke(context.Background(), schemas.InvocationRequest{Prompt: "p", ImageURL: "https://img.example/a.png"})
	assert.Empty(t, text)
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrModelInvocationFailed)
	assert.Contains(t, err.Error(), "Incorrect API key provided")
	assert.EqualValues(t, 1, calls.Load(), "no retry")
}

func TestOpenAIClient_Invoke_NoChoices(t *testing.T) {
	client, _ := setupOpenAIClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[]}`)
	})

	_, err := client.Invoke(context.Background(), schemas.InvocationRequest{Prompt: "p", ImageURL: "https://img.example/a.png"})
	require.Error(t, err)
	kind, _ := schemas.KindOf(err)
	assert.Equal(t, schemas.ErrKindModelInvocation, kind)
}
