package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// BotClient is a minimal Telegram Bot API client implementing TelegramAPI.
type BotClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// Compile-time interface check.
var _ TelegramAPI = (*BotClient)(nil) //nolint:gochecknoglobals // compile-time check

// BotClientOption configures optional BotClient parameters.
type BotClientOption func(*BotClient)

// WithBaseURL overrides the API endpoint, for tests.
func WithBaseURL(u string) BotClientOption {
	return func(c *BotClient) { c.baseURL = u }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) BotClientOption {
	return func(c *BotClient) { c.httpClient = hc }
}

// NewBotClient creates a BotClient for the given bot token.
func NewBotClient(token string, opts ...BotClientOption) *BotClient {
	c := &BotClient{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// SendMessage calls the Bot API sendMessage method.
func (c *BotClient) SendMessage(ctx context.Context, chatID, text string) (string, error) {
	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return "", fmt.Errorf("telegram.BotClient.SendMessage: marshal: %w", err)
	}

	url := c.baseURL + "/bot" + c.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("telegram.BotClient.SendMessage: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("telegram.BotClient.SendMessage: %w", err)
	}
	defer resp.Body.Close()

	var body sendMessageResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr != nil {
		return "", fmt.Errorf("telegram.BotClient.SendMessage: decode: %w", decodeErr)
	}

	if !body.OK {
		return "", fmt.Errorf("telegram.BotClient.SendMessage: api: %s (http %d)", body.Description, resp.StatusCode)
	}

	return strconv.FormatInt(body.Result.MessageID, 10), nil
}
