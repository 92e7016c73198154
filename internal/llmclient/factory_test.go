package llmclient

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// -- Test Cases: Factory Initialization (NewClient) --

func TestNewClient_SelectsProvider(t *testing.T) {
	logger, _ := setupTestLogger(t)
	ctx := context.Background()

	t.Run("gemini", func(t *testing.T) {
		client, err := NewClient(ctx, getValidModelConfig(config.ProviderGemini), logger)
		require.NoError(t, err)
		t.Cleanup(func() { client.Close() })
		assert.IsType(t, &GeminiClient{}, client)
	})

	t.Run("openai", func(t *testing.T) {
		client, err := NewClient(ctx, getValidModelConfig(config.ProviderOpenAI), logger)
		require.NoError(t, err)
		t.Cleanup(func() { client.Close() })
		assert.IsType(t, &OpenAIClient{}, client)
	})
}

func TestNewClient_UnknownProvider(t *testing.T) {
	client, err := NewClient(context.Background(), getValidModelConfig("anthropic"), nil)
	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown or unsupported LLM provider configured: 'anthropic'")
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	for _, provider := range []config.LLMProvider{config.ProviderGemini, config.ProviderOpenAI} {
		t.Run(string(provider), func(t *testing.T) {
			cfg := getValidModelConfig(provider)
			cfg.APIKey = ""
			client, err := NewClient(context.Background(), cfg, nil)
			assert.Nil(t, client)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "API Key is required")
		})
	}
}

func TestMaxTokensFor(t *testing.T) {
	cfg := config.ModelConfig{MaxTokens: 512}
	assert.Equal(t, 128, maxTokensFor(schemas.InvocationRequest{MaxOutputTokens: 128}, cfg), "request wins")
	assert.Equal(t, 512, maxTokensFor(schemas.InvocationRequest{}, cfg), "config next")
	assert.Equal(t, schemas.DefaultMaxOutputTokens, maxTokensFor(schemas.InvocationRequest{}, config.ModelConfig{}))
}

func TestIsPublicAddr(t *testing.T) {
	cases := map[string]bool{
		"93.184.216.34":    true,
		"2606:4700::1111":  true,
		"127.0.0.1":        false,
		"::1":              false,
		"10.1.2.3":         false,
		"172.16.0.1":       false,
		"192.168.1.1":      false,
		"169.254.169.254":  false,
		"fe80::1":          false,
		"fd00::1":          false,
		"100.64.0.1":       false,
		"0.0.0.0":          false,
		"224.0.0.1":        false,
		"::ffff:127.0.0.1": false,
	}
	for addr, want := range cases {
		assert.Equal(t, want, isPublicAddr(netip.MustParseAddr(addr)), addr)
	}
}

func TestRejectNonPublic(t *testing.T) {
	assert.NoError(t, rejectNonPublic("tcp4", "93.184.216.34:443", nil))
	err := rejectNonPublic("tcp4", "127.0.0.1:8080", nil)
	assert.ErrorIs(t, err, errNonPublicAddress)
	assert.Error(t, rejectNonPublic("tcp4", "no-port", nil))
}

func TestImageMIME(t *testing.T) {
	assert.Equal(t, "image/jpeg", imageMIME("image/jpeg; charset=binary", pngBytes))
	assert.Equal(t, "image/png", imageMIME("application/octet-stream", pngBytes), "sniffed")
	assert.Equal(t, "image/png", imageMIME("", []byte("not an image")), "fallback")
}
