package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"tubebatch/internal/queue"
	"tubebatch/pkg/httputil"
)

const (
	telegramBaseURL = "https://api.telegram.org/bot"
	defaultTimeout  = 30 * time.Second
)

var ErrMissingChat = errors.New("telegram chat id is required")

type TelegramOptions struct {
	// BaseURL replaces https://api.telegram.org/bot<token>.
	BaseURL string
	Retry   httputil.RetryConfig
	Logger  *slog.Logger
}

type Telegram struct {
	chatID  int64
	baseURL string
	client  *httputil.RetryClient
	logger  *slog.Logger
}

var _ Notifier = (*Telegram)(nil)

func NewTelegram(token string, chatID int64, opts TelegramOptions) (*Telegram, error) {
	if chatID == 0 {
		return nil, ErrMissingChat
	}
	base := opts.BaseURL
	if base == "" {
		base = telegramBaseURL + token
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		chatID:  chatID,
		baseURL: base,
		client:  httputil.NewRetryClient(&http.Client{Timeout: defaultTimeout}, opts.Retry),
		logger:  logger,
	}, nil
}

func (t *Telegram) RunFinished(ctx context.Context, summary *queue.Summary) error {
	if summary == nil {
		return nil
	}
	if err := t.SendMessage(ctx, FormatSummary(summary)); err != nil {
		return fmt.Errorf("failed to notify run %s: %w", summary.RunID, err)
	}
	t.logger.Debug("Run summary sent", "run_id", summary.RunID, "chat_id", t.chatID)
	return nil
}

func (t *Telegram) SendMessage(ctx context.Context, text string) error {
	payload := map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	}
	return t.postJSON(ctx, "/sendMessage", payload)
}

func (t *Telegram) postJSON(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed: %s - %s", resp.Status, string(respBody))
	}

	var result struct {
		Ok          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(respBody, &result); err == nil && !result.Ok {
		return fmt.Errorf("telegram error: %s", result.Description)
	}
	return nil
}
