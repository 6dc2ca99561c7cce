// Package identity предоставляет клиент внешнего сервиса проверки токенов.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client инкапсулирует HTTP-взаимодействие с сервисом проверки токенов.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type tokenInfo struct {
	Email string `json:"email"`
}

// NewClient создаёт клиент проверки токенов по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// VerifyToken проверяет токен и возвращает подтверждённый email его владельца.
func (c *Client) VerifyToken(ctx context.Context, token string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("identity client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	endpoint := fmt.Sprintf("%s/v1/tokeninfo?id_token=%s", base, url.QueryEscape(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token rejected with status %d", resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if info.Email == "" {
		return "", fmt.Errorf("token has no email claim")
	}

	return info.Email, nil
}
