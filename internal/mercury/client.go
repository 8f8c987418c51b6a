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

// Client fetches hourly usage data from the Mercury self-service API.
// The access token is looked up per request so a refresh between calls
// takes effect without rebuilding the client.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	getToken        func() string
	subscriptionKey string
}

// NewClient creates a usage API client. getToken supplies the current
// bearer token; subscriptionKey is sent on every request.
func NewClient(baseURL string, getToken func() string, subscriptionKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient:      &http.Client{Timeout: timeout},
		baseURL:         strings.TrimRight(baseURL, "/"),
		getToken:        getToken,
		subscriptionKey: subscriptionKey,
	}
}

// GetHourlyUsage fetches hourly usage for the half-open date range
// [startDate, endDate), both formatted YYYY-MM-DD. A 401 maps to
// AuthExpiredError; any other non-200 maps to APIError.
func (c *Client) GetHourlyUsage(ctx context.Context, customerID, accountID, serviceID, startDate, endDate string) (*UsageResponse, error) {
	endpoint := fmt.Sprintf("%s/customers/%s/accounts/%s/services/electricity/%s/usage",
		c.baseURL,
		url.PathEscape(customerID),
		url.PathEscape(accountID),
		url.PathEscape(serviceID),
	)

	params := url.Values{}
	params.Set("interval", "hourly")
	params.Set("startDate", startDate)
	params.Set("endDate", endDate)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating usage request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.getToken())
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usage request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading usage response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthExpiredError{Body: strings.TrimSpace(string(body))}
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var usage UsageResponse
	if err := json.Unmarshal(body, &usage); err != nil {
		return nil, fmt.Errorf("decoding usage response: %w", err)
	}

	return &usage, nil
}
