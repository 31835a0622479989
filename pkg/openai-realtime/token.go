package openairealtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// CredentialSource yields the short-lived credential a session starts with.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// TokenEndpoint fetches the credential from a trusted backend that answers
// GET requests with {"client_secret":{"value":"..."}}.
type TokenEndpoint struct {
	// URL is the token endpoint, e.g. http://localhost:3000/token.
	URL string

	// HTTPClient is used for the request. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// tokenResponse is the body returned by the token endpoint.
type tokenResponse struct {
	ClientSecret struct {
		Value string `json:"value"`
	} `json:"client_secret"`
}

// Credential implements CredentialSource.
func (t *TokenEndpoint) Credential(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return "", err
	}

	httpClient := t.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &Error{
			Code:       "token_fetch_failed",
			Message:    fmt.Sprintf("failed to fetch token: %s", string(body)),
			HTTPStatus: resp.StatusCode,
		}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("openai-realtime: decode token: %w", err)
	}
	if tr.ClientSecret.Value == "" {
		return "", &Error{Code: "token_fetch_failed", Message: "token response carries no client secret"}
	}
	return tr.ClientSecret.Value, nil
}

// EphemeralKeys mints the credential with the client's API key.
type EphemeralKeys struct {
	Client *Client
	Model  string
	Voice  string
}

// Credential implements CredentialSource.
func (k *EphemeralKeys) Credential(ctx context.Context) (string, error) {
	key, err := k.Client.CreateEphemeralKey(ctx, k.Model, k.Voice)
	if err != nil {
		return "", err
	}
	return key.ClientSecret.Value, nil
}

// StaticCredential is a fixed credential, e.g. an API key used directly
// with the WebSocket transport.
type StaticCredential string

// Credential implements CredentialSource.
func (s StaticCredential) Credential(context.Context) (string, error) {
	return string(s), nil
}
