// Package kite is a minimal Kite Connect REST client: the profile check used
// to validate a session and the instrument master download.
package kite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"live-tick-excel/internal/models"
)

const apiVersion = "3"

// ErrTokenRejected means the API refused the access token; a new login is needed.
var ErrTokenRejected = errors.New("access token rejected")

// APIError is an error envelope returned by the API.
type APIError struct {
	StatusCode int
	Type       string `json:"error_type"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kite api %d %s: %s", e.StatusCode, e.Type, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusForbidden || e.Type == "TokenException" {
		return ErrTokenRejected
	}
	return nil
}

type Profile struct {
	UserID    string   `json:"user_id"`
	UserName  string   `json:"user_name"`
	Email     string   `json:"email"`
	Broker    string   `json:"broker"`
	Exchanges []string `json:"exchanges"`
}

type Client struct {
	baseURL     string
	apiKey      string
	accessToken string
	httpClient  *http.Client
}

func NewClient(baseURL, apiKey, accessToken string) *Client {
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

// LoginURL is where a user signs in to obtain a fresh access token.
func LoginURL(apiKey string) string {
	return "https://kite.trade/connect/login?v=3&api_key=" + url.QueryEscape(apiKey)
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Kite-Version", apiVersion)
	req.Header.Set("Authorization", "token "+c.apiKey+":"+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return nil, apiErr
}

// Profile returns the signed-in user. It fails with ErrTokenRejected when
// the access token is stale.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	resp, err := c.get(ctx, "/user/profile")
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()

	var envelope struct {
		Status string  `json:"status"`
		Data   Profile `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return envelope.Data, nil
}

// Instruments downloads the full instrument master.
func (c *Client) Instruments(ctx context.Context) ([]models.CatalogInstrument, error) {
	resp, err := c.get(ctx, "/instruments")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return ParseInstruments(resp.Body)
}
