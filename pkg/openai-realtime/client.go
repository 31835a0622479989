package openairealtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	// DefaultWebSocketURL is the default WebSocket endpoint.
	DefaultWebSocketURL = "wss://api.openai.com/v1/realtime"

	// DefaultHTTPURL is the default HTTP endpoint (for WebRTC session creation).
	DefaultHTTPURL = "https://api.openai.com/v1/realtime"
)

// Client talks to the Realtime HTTP endpoints: SDP exchange and ephemeral
// key minting. The SDP exchange authenticates with a short-lived credential,
// so an API key is only needed for minting.
type Client struct {
	config *clientConfig
}

// clientConfig holds the client configuration.
type clientConfig struct {
	apiKey       string
	organization string
	project      string
	wsURL        string
	httpURL      string
	httpClient   *http.Client
}

// Option configures the Client.
type Option func(*clientConfig)

// NewClient creates a new OpenAI Realtime client.
func NewClient(opts ...Option) *Client {
	cfg := &clientConfig{
		wsURL:      DefaultWebSocketURL,
		httpURL:    DefaultHTTPURL,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{config: cfg}
}

// WithAPIKey sets the long-lived API key used to mint ephemeral keys.
//
// The key can be obtained from https://platform.openai.com/api-keys
func WithAPIKey(apiKey string) Option {
	return func(c *clientConfig) {
		c.apiKey = apiKey
	}
}

// WithOrganization sets the organization ID for API requests.
func WithOrganization(orgID string) Option {
	return func(c *clientConfig) {
		c.organization = orgID
	}
}

// WithProject sets the project ID for API requests.
func WithProject(projectID string) Option {
	return func(c *clientConfig) {
		c.project = projectID
	}
}

// WithWebSocketURL sets the WebSocket URL.
func WithWebSocketURL(url string) Option {
	return func(c *clientConfig) {
		if url != "" {
			c.wsURL = url
		}
	}
}

// WithHTTPURL sets the HTTP URL for WebRTC session creation.
func WithHTTPURL(url string) Option {
	return func(c *clientConfig) {
		if url != "" {
			c.httpURL = url
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// EphemeralKey is the response of the session creation API.
type EphemeralKey struct {
	ID           string `json:"id"`
	Object       string `json:"object"`
	Model        string `json:"model"`
	ExpiresAt    int64  `json:"expires_at"`
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// CreateEphemeralKey mints a short-lived client secret for the given model.
// An empty voice selects VoiceAlloy.
func (c *Client) CreateEphemeralKey(ctx context.Context, model, voice string) (*EphemeralKey, error) {
	if c.config.apiKey == "" {
		return nil, &Error{Code: "missing_api_key", Message: "an API key is required to mint ephemeral keys"}
	}
	if model == "" {
		model = DefaultModel
	}
	if voice == "" {
		voice = VoiceAlloy
	}

	jsonBody, err := json.Marshal(map[string]string{
		"model": model,
		"voice": voice,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.httpURL+"/sessions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.config.apiKey)
	req.Header.Set("Content-Type", "application/json")
	c.setAccountHeaders(req.Header)

	resp, err := c.config.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &Error{
			Code:       "session_creation_failed",
			Message:    fmt.Sprintf("failed to create session: %s", string(body)),
			HTTPStatus: resp.StatusCode,
		}
	}

	var key EphemeralKey
	if err := json.NewDecoder(resp.Body).Decode(&key); err != nil {
		return nil, fmt.Errorf("openai-realtime: decode session: %w", err)
	}
	if key.ClientSecret.Value == "" {
		return nil, &Error{Code: "session_creation_failed", Message: "response carries no client secret"}
	}
	return &key, nil
}

// ExchangeSDP posts the local offer and returns the remote answer.
func (c *Client) ExchangeSDP(ctx context.Context, credential, model, offer string) (string, error) {
	endpoint := fmt.Sprintf("%s?model=%s", c.config.httpURL, url.QueryEscape(model))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte(offer)))
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := c.config.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &Error{
			Code:       "sdp_exchange_failed",
			Message:    fmt.Sprintf("failed to exchange SDP: %s", string(body)),
			HTTPStatus: resp.StatusCode,
		}
	}

	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return string(answer), nil
}

func (c *Client) setAccountHeaders(h http.Header) {
	if c.config.organization != "" {
		h.Set("OpenAI-Organization", c.config.organization)
	}
	if c.config.project != "" {
		h.Set("OpenAI-Project", c.config.project)
	}
}
