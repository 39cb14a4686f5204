// Package httpbank is a client for a remote banking ledger exposed over HTTP.
//
// Requests:
//
//	POST {url}/accounts/{account}/withdrawals  {"amount": "250.00", "idempotency_key": "12345-withdrawal"}
//	POST {url}/accounts/{account}/deposits     {"amount": "250.00", "idempotency_key": "12345-deposit"}
//
// A 200 or 201 response carries {"confirmation_id": "..."}. A rejected account (404, 409, 422 and
// other client errors) maps to domain.ErrInvalidAccount; server errors, timeouts, network failures
// and an open circuit breaker map to domain.ErrTransient.
package httpbank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

var _ domain.BankingService = (*Client)(nil)

const maxErrorBody = 4 << 10

// BreakerConfig tunes the circuit breaker guarding the ledger
type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// Config defines how to reach the ledger
type Config struct {
	URL     string
	Timeout time.Duration
	Breaker BreakerConfig
}

type operationRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type operationResponse struct {
	ConfirmationID string `json:"confirmation_id"`
}

// Client implements domain.BankingService over HTTP
type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// New creates a new Client instance
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid bank url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid bank url %q: scheme and host are required", cfg.URL)
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = cfg.Timeout

	c := &Client{
		baseURL: base,
		http:    httpClient,
		logger:  logger.WithGroup("httpbank"),
	}

	consecutive := cfg.Breaker.ConsecutiveFailures
	if consecutive == 0 {
		consecutive = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bank-" + base.Host,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutive
		},
		// A rejected account is an answer from a healthy ledger
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrInvalidAccount)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return c, nil
}

// Withdraw debits account
func (c *Client) Withdraw(ctx context.Context, account string, amount decimal.Decimal, token domain.StepToken) (string, error) {
	return c.do(ctx, account, "withdrawals", amount, token)
}

// Deposit credits account
func (c *Client) Deposit(ctx context.Context, account string, amount decimal.Decimal, token domain.StepToken) (string, error) {
	return c.do(ctx, account, "deposits", amount, token)
}

func (c *Client) do(ctx context.Context, account, operation string, amount decimal.Decimal, token domain.StepToken) (string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, account, operation, amount, token)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: bank unavailable (circuit breaker): %w", domain.ErrTransient, err)
		}
		return "", err
	}
	return result.(string), nil
}

func (c *Client) post(ctx context.Context, account, operation string, amount decimal.Decimal, token domain.StepToken) (string, error) {
	body, err := json.Marshal(operationRequest{Amount: amount, IdempotencyKey: string(token)})
	if err != nil {
		return "", fmt.Errorf("failed to encode %s request: %w", operation, err)
	}

	endpoint := c.baseURL.JoinPath("accounts", account, operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", string(token))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s on %s: %w", domain.ErrTransient, operation, account, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out operationResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("%w: failed to decode %s response: %w", domain.ErrTransient, operation, err)
		}
		if out.ConfirmationID == "" {
			return "", fmt.Errorf("%w: %s response carries no confirmation id", domain.ErrTransient, operation)
		}
		return out.ConfirmationID, nil

	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: %s on %s: %s", domain.ErrTransient, operation, account, describe(resp))

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Our credentials were refused; the bank said nothing about the account
		return "", fmt.Errorf("%w: %s on %s: %s", domain.ErrTransient, operation, account, describe(resp))

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", fmt.Errorf("%s on %s: %s: %w", operation, account, describe(resp), domain.ErrInvalidAccount)

	default:
		return "", fmt.Errorf("%w: %s on %s: %s", domain.ErrTransient, operation, account, describe(resp))
	}
}

func describe(resp *http.Response) string {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if text := strings.TrimSpace(string(msg)); text != "" {
		return resp.Status + ": " + text
	}
	return resp.Status
}
