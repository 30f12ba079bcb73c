package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/siddharthiitian/Flight-Amedus/tracing"
)

// TokenExpiryMargin is how long before its reported expiry a token stops
// being handed out.
const TokenExpiryMargin = 60 * time.Second

const tokenPath = "/v1/security/oauth2/token"

// TokenManager caches an Amadeus OAuth2 client-credentials bearer token.
type TokenManager struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	limiter      *rate.Limiter
	now          func() time.Time
	log          *zap.Logger

	// mu is held across a refresh so concurrent callers share one token request.
	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type TokenOption func(*TokenManager)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) { m.now = now }
}

// WithLimiter throttles token requests through l.
func WithLimiter(l *rate.Limiter) TokenOption {
	return func(m *TokenManager) { m.limiter = l }
}

func NewTokenManager(baseURL, clientID, clientSecret string, httpClient *http.Client, log *zap.Logger, opts ...TokenOption) *TokenManager {
	m := &TokenManager{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     strings.TrimRight(baseURL, "/") + tokenPath,
		httpClient:   httpClient,
		now:          time.Now,
		log:          log,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Token returns a bearer token valid for at least TokenExpiryMargin, fetching
// a new one only when the cached token is missing or about to expire.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accessToken != "" && m.tokenExpiry.Sub(m.now()) > TokenExpiryMargin {
		return m.accessToken, nil
	}

	token, ttl, err := m.requestToken(ctx)
	if err != nil {
		return "", err
	}
	m.accessToken = token
	m.tokenExpiry = m.now().Add(ttl)
	if ttl <= TokenExpiryMargin {
		m.log.Warn("⚠️ amadeus token lifetime is within the expiry margin, every call will refresh it",
			zap.Duration("expires_in", ttl),
			zap.Duration("margin", TokenExpiryMargin),
		)
	}

	m.log.Debug("amadeus token refreshed", zap.Time("expires_at", m.tokenExpiry))
	return token, nil
}

// Expiry returns the absolute expiry of the cached token (zero if none).
func (m *TokenManager) Expiry() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenExpiry
}

func (m *TokenManager) requestToken(ctx context.Context) (string, time.Duration, error) {
	ctx, span := tracing.Tracer("amadeus").Start(ctx, "TokenManager.requestToken")
	defer span.End()

	fail := func(err *AuthenticationError) (string, time.Duration, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Message)
		return "", 0, err
	}

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return fail(&AuthenticationError{Message: err.Error(), Err: err})
		}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fail(&AuthenticationError{Message: err.Error(), Err: err})
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fail(&AuthenticationError{Message: err.Error(), Err: err})
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(&AuthenticationError{StatusCode: resp.StatusCode, Message: providerMessage(body)})
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fail(&AuthenticationError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to parse token response: %v", err),
			Err:        err,
		})
	}
	if result.AccessToken == "" {
		return fail(&AuthenticationError{StatusCode: resp.StatusCode, Message: "token response has no access_token"})
	}

	return result.AccessToken, time.Duration(result.ExpiresIn) * time.Second, nil
}

// providerMessage pulls a readable message out of an Amadeus error document,
// falling back to the raw body.
func providerMessage(body []byte) string {
	var doc struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Errors           []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &doc); err == nil {
		switch {
		case doc.ErrorDescription != "":
			return doc.ErrorDescription
		case doc.Error != "":
			return doc.Error
		case len(doc.Errors) > 0 && doc.Errors[0].Detail != "":
			return doc.Errors[0].Detail
		case len(doc.Errors) > 0 && doc.Errors[0].Title != "":
			return doc.Errors[0].Title
		}
	}
	return strings.TrimSpace(string(body))
}
