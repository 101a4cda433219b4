// Package telegram is a minimal Bot API client for the reminder side
// channel. Calls go through the circuit breaker and retry policy; a broken
// bot never affects ledger operations.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("telegram")

const defaultBaseURL = "https://api.telegram.org"

// Client talks to the Telegram Bot API.
type Client struct {
	http    *http.Client
	baseURL string
	breaker *gobreaker.CircuitBreaker
	retry   resilience.Config
	logger  *zap.Logger
}

// NewClient creates a Telegram client. baseURL is overridable for tests.
func NewClient(httpClient *http.Client, baseURL string, breaker *gobreaker.CircuitBreaker, retry resilience.Config, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		breaker: breaker,
		retry:   retry,
		logger:  logger,
	}
}

type apiResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

// SendMessage posts a text message to the configured chat.
func (c *Client) SendMessage(ctx context.Context, token, chatID, text string) error {
	ctx, span := tracer.Start(ctx, "Telegram.SendMessage")
	defer span.End()

	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)

	_, err := c.call(ctx, token, "sendMessage", form)
	return err
}

// GetMe verifies the bot token and returns the bot username.
func (c *Client) GetMe(ctx context.Context, token string) (string, error) {
	ctx, span := tracer.Start(ctx, "Telegram.GetMe")
	defer span.End()

	result, err := c.call(ctx, token, "getMe", nil)
	if err != nil {
		return "", err
	}
	var me struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(result, &me); err != nil {
		return "", &domain.ErrExternalService{Service: "telegram", Err: err}
	}
	return me.Username, nil
}

func (c *Client) call(ctx context.Context, token, method string, form url.Values) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, token, method)

	var result json.RawMessage
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.retry, func() error {
			var req *http.Request
			var err error
			if form != nil {
				req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
				if req != nil {
					req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				}
			} else {
				req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			}
			if err != nil {
				return err
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			var body apiResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			if resp.StatusCode != http.StatusOK || !body.OK {
				return fmt.Errorf("telegram %s: status %d", method, resp.StatusCode)
			}
			result = body.Result
			return nil
		})
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &domain.ErrCircuitOpen{Service: "telegram"}
		}
		c.logger.Warn("telegram call failed", zap.String("method", method), zap.Error(err))
		return nil, &domain.ErrExternalService{Service: "telegram", Err: err}
	}
	return result, nil
}
