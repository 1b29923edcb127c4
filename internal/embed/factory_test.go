package embed

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UnsupportedProvidersFailFast(t *testing.T) {
	for _, p := range []Provider{ProviderAnthropic, ProviderXAI} {
		_, err := New(ProviderConfig{Provider: p, Model: "whatever"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsupportedProvider))
	}
}

func TestNew_OllamaDefaultsHost(t *testing.T) {
	e, err := New(ProviderConfig{Provider: ProviderOllama, Model: "nomic-embed-text"})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", e.ModelName())
}

func TestNew_SelfHostedRequiresHost(t *testing.T) {
	_, err := New(ProviderConfig{Provider: ProviderLocalAI, Model: "m"})
	require.Error(t, err)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(ProviderConfig{Provider: "carrier-pigeon"})
	require.Error(t, err)
}

func TestTokenLimitFor(t *testing.T) {
	assert.Equal(t, 8191, TokenLimitFor("text-embedding-3-small"))
	assert.Equal(t, 512, TokenLimitFor("mxbai-embed-large"))
	assert.Equal(t, DefaultTokenLimit, TokenLimitFor("some-unknown-model"))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("dial tcp: connection refused")))
	assert.True(t, IsTransient(errors.New("unexpected EOF")))
	assert.True(t, IsTransient(errors.New("502 Bad Gateway")))
	assert.False(t, IsTransient(errors.New("invalid api key")))
	assert.False(t, IsTransient(nil))
}
