package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/insight-scraper/internal/config"
	"github.com/insight-scraper/internal/logging"
	"github.com/insight-scraper/internal/models"
)

// HTTPClient implements Capability against the upstream scrape service.
// A session token obtained at login authenticates the read endpoints.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	logger     *logging.Logger

	mu    sync.RWMutex
	token string
}

// HTTPClientConfig holds configuration for the upstream client
type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// ProxyURL routes upstream traffic through a proxy when set.
	ProxyURL string
	Logger   *logging.Logger
}

// NewHTTPClient creates a new upstream scrape client
func NewHTTPClient(cfg *HTTPClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	transport := http.DefaultTransport
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		baseURL: cfg.BaseURL,
		headers: map[string]string{
			"User-Agent": "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Accept":     "application/json",
		},
		logger: logger,
	}, nil
}

// NewHTTPClientFromConfig builds the client from application config
func NewHTTPClientFromConfig(cfg *config.Config) (*HTTPClient, error) {
	return NewHTTPClient(&HTTPClientConfig{
		BaseURL:  cfg.Scraper.APIBaseURL,
		Timeout:  cfg.Scraper.RequestTimeout,
		ProxyURL: cfg.Proxy.URL,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login implements Capability
func (c *HTTPClient) Login(ctx context.Context, username, password, email string) error {
	body, err := json.Marshal(loginRequest{
		Username: username,
		Password: password,
		Email:    email,
	})
	if err != nil {
		return fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if lr.Token == "" {
		return fmt.Errorf("login response carried no session token")
	}

	c.mu.Lock()
	c.token = lr.Token
	c.mu.Unlock()
	return nil
}

// Profile implements Capability
func (c *HTTPClient) Profile(ctx context.Context, handle string) (*models.Profile, error) {
	var profile models.Profile
	path := fmt.Sprintf("/profiles/%s", url.PathEscape(handle))
	if err := c.getJSON(ctx, path, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Timeline implements Capability
func (c *HTTPClient) Timeline(ctx context.Context, handle string, limit int) ([]models.Tweet, error) {
	var tweets []models.Tweet
	path := fmt.Sprintf("/profiles/%s/tweets?limit=%s", url.PathEscape(handle), strconv.Itoa(limit))
	if err := c.getJSON(ctx, path, &tweets); err != nil {
		return nil, err
	}
	return tweets, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("upstream returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response for %s: %w", path, err)
	}
	return nil
}

// do performs an HTTP request with the configured headers
func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"duration": duration.String(),
		}).WithError(err).Debug("Upstream request failed")
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration.String(),
	}).Debug("Upstream request completed")
	return resp, nil
}
