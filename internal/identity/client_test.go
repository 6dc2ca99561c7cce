package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestVerifyToken_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/v1/tokeninfo" {
			t.Fatalf("path = %s, want /v1/tokeninfo", r.URL.Path)
		}
		if token := r.URL.Query().Get("id_token"); token != "tok-123" {
			t.Fatalf("id_token = %q, want tok-123", token)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"user@example.com"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	email, err := client.VerifyToken(ctx, "tok-123")
	if err != nil {
		t.Fatalf("VerifyToken error: %v", err)
	}
	if email != "user@example.com" {
		t.Fatalf("email = %q, want user@example.com", email)
	}
}

func TestVerifyToken_Rejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := client.VerifyToken(ctx, "bad-token"); err == nil {
		t.Fatalf("expected error for rejected token")
	}
}

func TestVerifyToken_EmptyEmail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	if _, err := client.VerifyToken(context.Background(), "tok"); err == nil {
		t.Fatalf("expected error for response without email")
	}
}

func TestVerifyToken_NotConfigured(t *testing.T) {
	client := NewClient("")

	if _, err := client.VerifyToken(context.Background(), "tok"); err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}
