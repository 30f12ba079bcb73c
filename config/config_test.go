package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AMADEUS_CLIENT_ID", "AMADEUS_API_KEY", "AMADEUS_CLIENT_SECRET", "AMADEUS_API_SECRET",
		"AMADEUS_ENV", "AMADEUS_BASE_URL", "AMADEUS_RATE_LIMIT", "DEFAULT_CURRENCY",
		"LLM_PROVIDER", "LLM_MAX_REPROMPTS", "GROK_API_KEY", "GROK_BASE_URL", "GROK_MODEL",
		"HUGGINGFACE_API_KEY", "HF_TOKEN", "HF_BASE_URL", "HF_MODEL",
		"GEMINI_API_KEY", "GEMINI_BASE_URL", "GEMINI_MODEL", "FRONTEND_URL", "TRUSTED_PROXIES", "PORT",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := FromEnv()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, "test", cfg.Amadeus.Env)
	assert.True(t, cfg.Amadeus.IsTest())
	assert.Equal(t, amadeusTestURL, cfg.Amadeus.BaseURL)
	assert.Equal(t, ProviderGrok, cfg.DefaultProvider)
	assert.Equal(t, 1, cfg.MaxReprompts)
	assert.Empty(t, cfg.TrustedProxies)
	assert.Equal(t, []string{ProviderGemini, ProviderGrok, ProviderHuggingFace}, cfg.ProviderNames())
}

func TestFromEnv_ProductionAndAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("AMADEUS_ENV", "production")
	t.Setenv("AMADEUS_API_KEY", "id")
	t.Setenv("AMADEUS_API_SECRET", "secret")
	t.Setenv("HF_TOKEN", " 'hf-key' ")
	t.Setenv("FRONTEND_URL", "https://a.example, ,https://b.example")
	t.Setenv("LLM_MAX_REPROMPTS", "-3")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7")

	cfg := FromEnv()
	assert.Equal(t, amadeusProductionURL, cfg.Amadeus.BaseURL)
	assert.Equal(t, "id", cfg.Amadeus.ClientID)
	assert.Equal(t, "secret", cfg.Amadeus.ClientSecret)
	assert.Equal(t, "hf-key", cfg.Providers[ProviderHuggingFace].APIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.FrontendURLs)
	assert.Equal(t, 0, cfg.MaxReprompts)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.7"}, cfg.TrustedProxies)
}

func TestValidate_ReportsAllMissing(t *testing.T) {
	clearEnv(t)

	err := FromEnv().Validate()
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, []string{"AMADEUS_CLIENT_ID", "AMADEUS_CLIENT_SECRET", "GROK_API_KEY"}, cerr.Missing)
	assert.Contains(t, err.Error(), "GROK_API_KEY")
}

func TestValidate_UnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "claude")

	err := FromEnv().Validate()
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, cerr.Message, "claude")
}

func TestValidate_OK(t *testing.T) {
	clearEnv(t)
	t.Setenv("AMADEUS_CLIENT_ID", "id")
	t.Setenv("AMADEUS_CLIENT_SECRET", "secret")
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "g")

	require.NoError(t, FromEnv().Validate())
}

func TestProvider(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()

	p, err := cfg.Provider("")
	require.NoError(t, err)
	assert.Equal(t, ProviderGrok, p.Name)

	p, err = cfg.Provider("HuggingFace")
	require.NoError(t, err)
	assert.Equal(t, "google/gemma-2-2b-it", p.Model)

	_, err = cfg.Provider("nope")
	var cerr *ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}
