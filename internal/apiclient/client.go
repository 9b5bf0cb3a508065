// Package apiclient talks to the studybuddy v1 API on behalf of a signed-in
// student.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studybuddy/internal/api/v1/dto"
	"studybuddy/internal/model"
	"studybuddy/internal/service"
	"studybuddy/internal/speech"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// Error is a non-2xx answer from the API.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// readRetryDelay is the pause before the single retry of a failed GET.
var readRetryDelay = 200 * time.Millisecond

// Client calls the v1 API with a student bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	now     func() time.Time
	logger  zerolog.Logger
}

var _ speech.Meter = (*Client)(nil)

func New(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
		logger:  logger.With().Str("component", "APIClient").Logger(),
	}
}

// Subscription returns the caller's entitlement dashboard.
func (c *Client) Subscription(ctx context.Context) (*dto.SubscriptionResponseDTO, error) {
	var out dto.SubscriptionResponseDTO
	if err := c.get(ctx, "/v1/subscription", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DailyUsage returns today's counters without consuming anything.
func (c *Client) DailyUsage(ctx context.Context) (*service.DailyUsageSummary, error) {
	var out service.DailyUsageSummary
	if err := c.get(ctx, "/v1/usage", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckUsage consumes one chat or image unit if the plan allows it.
func (c *Client) CheckUsage(ctx context.Context, usageType model.UsageType) (*service.UsageResult, error) {
	var out service.UsageResult
	body := dto.UsageCheckRequestDTO{UsageType: string(usageType)}
	if err := c.post(ctx, "/v1/usage/check", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestUpgrade files an upgrade request. An empty plan means pro.
func (c *Client) RequestUpgrade(ctx context.Context, plan string) error {
	return c.post(ctx, "/v1/upgrade-requests", dto.UpgradeRequestCreateDTO{RequestedPlan: plan}, nil)
}

// IncrementTTS debits premium voice characters.
func (c *Client) IncrementTTS(ctx context.Context, chars int) (*service.TTSDecision, error) {
	var out service.TTSDecision
	if err := c.post(ctx, "/v1/tts/increment", dto.TTSIncrementRequestDTO{CharacterCount: chars}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Entitlement reads the premium voice standing for the speech selector.
func (c *Client) Entitlement(ctx context.Context) (speech.Entitlement, error) {
	resp, err := c.Subscription(ctx)
	if err != nil {
		return speech.Entitlement{}, err
	}
	sub := resp.Subscription
	expired := sub.EndDate != nil && sub.EndDate.Before(c.now())
	return speech.Entitlement{
		Plan:      sub.Plan,
		Eligible:  sub.Plan == model.PlanPro && sub.IsActive && !expired && sub.TTSRemaining > 0,
		Remaining: sub.TTSRemaining,
	}, nil
}

// Debit charges premium voice characters for the speech selector.
func (c *Client) Debit(ctx context.Context, chars int) (bool, int, error) {
	d, err := c.IncrementTTS(ctx, chars)
	if err != nil {
		return false, 0, err
	}
	return d.UsePremium, d.TTSRemaining, nil
}

// get is retried once on network errors and 5xx answers.
func (c *Client) get(ctx context.Context, path string, out any) error {
	b := retry.WithMaxRetries(1, retry.NewConstant(readRetryDelay))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, nil, out)
		if retryable(err) {
			c.logger.Debug().Err(err).Str("path", path).Msg("Retrying read")
			return retry.RetryableError(err)
		}
		return err
	})
}

// post is never retried.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode >= 300 {
		var e dto.ErrorResponseDTO
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &Error{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return true
}
