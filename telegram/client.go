package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// Bot API limits outbound messages to roughly 30 per second overall.
const defaultSendRate = 25

// Client is a minimal Bot API client: just the handful of methods the
// moderation engine needs. Outbound side effects are rate limited; the
// underlying HTTP client retries on connection errors and 5xx.
type Client struct {
	// BaseURL is the API origin, overridable for tests.
	BaseURL string
	Logger  *slog.Logger

	token   string
	httpc   *http.Client
	limiter *rate.Limiter
}

type leveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l leveledSlog) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debug(msg, keysAndValues...)
}

// robustHTTPClient generates an HTTP client with decent general-purpose
// defaults around timeouts and retries. The returned client has the stdlib
// http.Client interface, but has Hashicorp retryablehttp logic internally.
func robustHTTPClient(logger *slog.Logger) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{logger})
	client := retryClient.StandardClient()
	// long-poll requests need headroom beyond the poll timeout
	client.Timeout = 60 * time.Second
	return client
}

func NewClient(token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: "https://api.telegram.org",
		Logger:  logger,
		token:   token,
		httpc:   robustHTTPClient(logger),
		limiter: rate.NewLimiter(rate.Limit(defaultSendRate), defaultSendRate),
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	var body bytes.Buffer
	if params != nil {
		if err := json.NewEncoder(&body).Encode(params); err != nil {
			return fmt.Errorf("encoding %s params: %w", method, err)
		}
	}
	u := fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("bot api %s: %w", method, err)
	}
	defer resp.Body.Close()

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return fmt.Errorf("bot api %s: decoding response: %w", method, err)
	}
	if !ar.OK {
		return fmt.Errorf("bot api %s: %s (code %d)", method, ar.Description, ar.ErrorCode)
	}
	if result != nil {
		if err := json.Unmarshal(ar.Result, result); err != nil {
			return fmt.Errorf("bot api %s: decoding result: %w", method, err)
		}
	}
	return nil
}

// send wraps call with the outbound rate limiter, for side-effecting
// methods only (polling is exempt).
func (c *Client) send(ctx context.Context, method string, params any, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.call(ctx, method, params, result)
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, "getMe", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUpdates long-polls for updates with IDs greater than or equal to
// offset. A zero timeout makes the call return immediately.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// DeleteWebhook clears any configured webhook, optionally discarding
// updates that queued up while the service was down.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": dropPending}, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.send(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64) error {
	return c.send(ctx, "banChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, nil)
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.send(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	}, nil)
}

func (c *Client) SendPoll(ctx context.Context, chatID int64, question string, options []string, anonymous bool) error {
	return c.send(ctx, "sendPoll", map[string]any{
		"chat_id":      chatID,
		"question":     question,
		"options":      options,
		"is_anonymous": anonymous,
	}, nil)
}
