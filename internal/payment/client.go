// Package payment предоставляет клиент внешнего платёжного провайдера.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultBaseURL = "https://api.stripe.com"

// Client инкапсулирует HTTP-взаимодействие с платёжным провайдером.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// Intent описывает созданное платёжное намерение.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// NewClient создаёт клиент платёжного провайдера. Пустой baseURL означает
// боевой адрес провайдера.
func NewClient(baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// CreateIntent создаёт платёжное намерение на указанную сумму в минорных
// единицах валюты и возвращает client_secret для подтверждения на клиенте.
func (c *Client) CreateIntent(ctx context.Context, amountMinor int64, currency string) (string, error) {
	if c == nil || c.secretKey == "" {
		return "", fmt.Errorf("payment client not configured")
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", currency)
	form.Set("payment_method_types[]", "card")

	endpoint := c.baseURL + "/v1/payment_intents"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if intent.ClientSecret == "" {
		return "", fmt.Errorf("empty client secret in response")
	}

	return intent.ClientSecret, nil
}
