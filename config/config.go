package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ProviderGrok        = "grok"
	ProviderHuggingFace = "huggingface"
	ProviderGemini      = "gemini"
)

const (
	amadeusTestURL       = "https://test.api.amadeus.com"
	amadeusProductionURL = "https://api.amadeus.com"
)

// LLMProvider describes one OpenAI-compatible chat endpoint.
type LLMProvider struct {
	Name     string
	Label    string
	BaseURL  string
	Model    string
	APIKey   string
	JSONMode bool // send response_format={"type":"json_object"}
}

type AmadeusConfig struct {
	ClientID     string
	ClientSecret string
	Env          string
	BaseURL      string
	RateLimit    float64
}

// IsTest reports whether requests go to the free self-service sandbox.
func (a AmadeusConfig) IsTest() bool {
	return a.Env == "test"
}

type Config struct {
	Port            string
	GinMode         string
	LogLevel        string
	FrontendURLs    []string
	TrustedProxies  []string
	OTLPEndpoint    string
	DefaultCurrency string

	Amadeus AmadeusConfig

	DefaultProvider string
	MaxReprompts    int
	Providers       map[string]LLMProvider
}

// Load seeds the process environment from .env, .env.local and keys.env
// (later files win) and builds a Config from it.
func Load() (*Config, error) {
	_ = godotenv.Load()
	for _, f := range []string{".env.local", "keys.env"} {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Overload(f); err != nil {
				return nil, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads the configuration without validating it.
func FromEnv() *Config {
	env := strings.ToLower(getEnv("AMADEUS_ENV", "test"))
	baseURL := amadeusProductionURL
	if env == "test" {
		baseURL = amadeusTestURL
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		GinMode:         os.Getenv("GIN_MODE"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		FrontendURLs:    splitList(os.Getenv("FRONTEND_URL")),
		TrustedProxies:  splitList(os.Getenv("TRUSTED_PROXIES")),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
		Amadeus: AmadeusConfig{
			ClientID:     firstEnv("AMADEUS_CLIENT_ID", "AMADEUS_API_KEY"),
			ClientSecret: firstEnv("AMADEUS_CLIENT_SECRET", "AMADEUS_API_SECRET"),
			Env:          env,
			BaseURL:      strings.TrimRight(getEnv("AMADEUS_BASE_URL", baseURL), "/"),
			RateLimit:    getEnvFloat("AMADEUS_RATE_LIMIT", 10),
		},
		DefaultProvider: strings.ToLower(getEnv("LLM_PROVIDER", ProviderGrok)),
		MaxReprompts:    getEnvInt("LLM_MAX_REPROMPTS", 1),
		Providers: map[string]LLMProvider{
			ProviderGrok: {
				Name:     ProviderGrok,
				Label:    "Grok (xAI)",
				BaseURL:  strings.TrimRight(getEnv("GROK_BASE_URL", "https://api.x.ai/v1"), "/"),
				Model:    getEnv("GROK_MODEL", "grok-2-latest"),
				APIKey:   cleanKey(os.Getenv("GROK_API_KEY")),
				JSONMode: true,
			},
			ProviderHuggingFace: {
				Name:    ProviderHuggingFace,
				Label:   "Hugging Face",
				BaseURL: strings.TrimRight(getEnv("HF_BASE_URL", "https://router.huggingface.co/v1"), "/"),
				Model:   getEnv("HF_MODEL", "google/gemma-2-2b-it"),
				APIKey:  cleanKey(firstEnv("HUGGINGFACE_API_KEY", "HF_TOKEN")),
			},
			ProviderGemini: {
				Name:     ProviderGemini,
				Label:    "Google Gemini",
				BaseURL:  strings.TrimRight(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"), "/"),
				Model:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
				APIKey:   cleanKey(os.Getenv("GEMINI_API_KEY")),
				JSONMode: true,
			},
		},
	}
	if cfg.MaxReprompts < 0 {
		cfg.MaxReprompts = 0
	}
	return cfg
}

// Validate reports every missing required variable at once.
func (c *Config) Validate() error {
	var missing []string
	if c.Amadeus.ClientID == "" {
		missing = append(missing, "AMADEUS_CLIENT_ID")
	}
	if c.Amadeus.ClientSecret == "" {
		missing = append(missing, "AMADEUS_CLIENT_SECRET")
	}

	p, ok := c.Providers[c.DefaultProvider]
	if !ok {
		return &ConfigurationError{
			Message: fmt.Sprintf("unknown LLM_PROVIDER %q (want one of %s)", c.DefaultProvider, strings.Join(c.ProviderNames(), ", ")),
		}
	}
	if p.APIKey == "" {
		missing = append(missing, ProviderKeyVar(p.Name))
	}

	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// Provider returns the named provider, or the default one for an empty name.
func (c *Config) Provider(name string) (LLMProvider, error) {
	if name == "" {
		name = c.DefaultProvider
	}
	p, ok := c.Providers[strings.ToLower(name)]
	if !ok {
		return LLMProvider{}, &ConfigurationError{Message: fmt.Sprintf("unknown provider %q", name)}
	}
	return p, nil
}

// ProviderNames returns the provider keys in a stable order.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderKeyVar names the environment variable holding a provider's key.
func ProviderKeyVar(name string) string {
	switch name {
	case ProviderGrok:
		return "GROK_API_KEY"
	case ProviderHuggingFace:
		return "HUGGINGFACE_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	}
	return strings.ToUpper(name) + "_API_KEY"
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// cleanKey strips whitespace and stray quotes copied in from key files.
func cleanKey(s string) string {
	return strings.Trim(strings.TrimSpace(s), `'"`)
}
