package openairealtime

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/token" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"sess_1","client_secret":{"value":"ek_secret","expires_at":1}}`)
	}))
	defer srv.Close()

	src := &TokenEndpoint{URL: srv.URL + "/token"}
	got, err := src.Credential(context.Background())
	if err != nil {
		t.Fatalf("Credential: %v", err)
	}
	if got != "ek_secret" {
		t.Errorf("Credential = %q", got)
	}
}

func TestTokenEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "boom"},
		{"missing secret", http.StatusOK, `{"client_secret":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := (&TokenEndpoint{URL: srv.URL}).Credential(context.Background())
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if apiErr.Code != "token_fetch_failed" {
				t.Errorf("Code = %q", apiErr.Code)
			}
		})
	}
}

func TestTokenEndpointInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	}))
	defer srv.Close()

	if _, err := (&TokenEndpoint{URL: srv.URL}).Credential(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestStaticCredential(t *testing.T) {
	got, err := StaticCredential("sk-live").Credential(context.Background())
	if err != nil || got != "sk-live" {
		t.Errorf("Credential = %q, %v", got, err)
	}
}
