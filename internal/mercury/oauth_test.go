package mercury

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRefreshTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q, want form encoding", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.PostForm.Get("client_id"); got != "client-1" {
			t.Errorf("client_id = %q, want client-1", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "rt-old" {
			t.Errorf("refresh_token = %q, want rt-old", got)
		}
		if got := r.PostForm.Get("scope"); got != "openid offline_access" {
			t.Errorf("scope = %q, want the configured scope", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-new","refresh_token":"rt-new","expires_in":3600}`))
	}))
	defer server.Close()

	tokens, err := RefreshTokens(context.Background(), server.URL, "client-1", "rt-old", "openid offline_access")
	if err != nil {
		t.Fatalf("RefreshTokens() error = %v", err)
	}
	if tokens.AccessToken != "at-new" || tokens.RefreshToken != "rt-new" || tokens.ExpiresIn != 3600 {
		t.Errorf("tokens = %+v, want at-new/rt-new/3600", tokens)
	}
}

func TestRefreshTokensOmitsEmptyScope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if _, ok := r.PostForm["scope"]; ok {
			t.Error("scope parameter sent despite being empty")
		}
		w.Write([]byte(`{"access_token":"at","expires_in":60}`))
	}))
	defer server.Close()

	if _, err := RefreshTokens(context.Background(), server.URL, "c", "rt", ""); err != nil {
		t.Fatalf("RefreshTokens() error = %v", err)
	}
}

func TestRefreshTokensFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	_, err := RefreshTokens(context.Background(), server.URL, "c", "rt-dead", "")
	var refreshErr *RefreshError
	if !errors.As(err, &refreshErr) {
		t.Fatalf("error = %v, want *RefreshError", err)
	}
	if refreshErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", refreshErr.StatusCode)
	}
}

func TestRefreshTokensMissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"expires_in":3600}`))
	}))
	defer server.Close()

	if _, err := RefreshTokens(context.Background(), server.URL, "c", "rt", ""); err == nil {
		t.Fatal("RefreshTokens() = nil error, want a failure when no access token is returned")
	}
}
