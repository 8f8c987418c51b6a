package mercury

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RefreshTimeout bounds the token endpoint round-trip
const RefreshTimeout = 30 * time.Second

// RefreshTokens exchanges a refresh token for a fresh access token using the
// refresh_token grant. It does not retry; retry policy belongs to the caller.
func RefreshTokens(ctx context.Context, tokenURL, clientID, refreshToken, scope string) (TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {clientID},
		"refresh_token": {refreshToken},
	}
	if scope != "" {
		form.Set("scope", scope)
	}

	ctx, cancel := context.WithTimeout(ctx, RefreshTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("creating refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("reading refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return TokenResponse{}, &RefreshError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var tokens TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return TokenResponse{}, fmt.Errorf("decoding refresh response: %w", err)
	}
	if tokens.AccessToken == "" {
		return TokenResponse{}, fmt.Errorf("token endpoint returned no access token")
	}

	return tokens, nil
}
