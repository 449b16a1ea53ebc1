package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// Client talks to the Telegram Bot API.
type Client struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Bot API client. The HTTP client timeout is sized for
// long-poll calls; pass the getUpdates timeout so the two stay consistent.
func NewClient(token string, pollTimeout time.Duration) *Client {
	return &Client{
		Token:   token,
		BaseURL: defaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: pollTimeout + 10*time.Second,
		},
	}
}

// apiResponse is the Bot API envelope around every method result.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// GetUpdates long-polls the getUpdates method starting at offset. A zero
// timeout makes the call return immediately; otherwise the server holds the
// request open until an update arrives or the timeout elapses, so an empty
// result is a normal outcome. Calling again with an unchanged offset re-fetches
// the same updates.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration, allowed []UpdateType) ([]Update, error) {
	u, err := url.Parse(fmt.Sprintf("%s/bot%s/getUpdates", c.BaseURL, c.Token))
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	q.Set("offset", strconv.FormatInt(offset, 10))
	if timeout > 0 {
		q.Set("timeout", strconv.Itoa(int(timeout/time.Second)))
	}
	if len(allowed) > 0 {
		names := make([]string, 0, len(allowed))
		for _, t := range allowed {
			names = append(names, t.apiName())
		}
		data, err := json.Marshal(names)
		if err != nil {
			return nil, fmt.Errorf("marshal allowed_updates: %w", err)
		}
		q.Set("allowed_updates", string(data))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return nil, fmt.Errorf("unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if !api.OK {
		return nil, fmt.Errorf("bot API error (code %d): %s", api.ErrorCode, api.Description)
	}

	// Decode each update twice: once into raw bytes that travel to
	// consumers untouched, once into the typed shape used for routing.
	var raws []json.RawMessage
	if err := json.Unmarshal(api.Result, &raws); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}

	updates := make([]Update, 0, len(raws))
	for _, raw := range raws {
		var upd Update
		if err := json.Unmarshal(raw, &upd); err != nil {
			return nil, fmt.Errorf("unmarshal update: %w", err)
		}
		upd.Raw = raw
		updates = append(updates, upd)
	}

	return updates, nil
}

// SendMessage sends a plain text message. Used by reference consumers, not by
// the routing fabric itself.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := struct {
		ChatID int64  `json:"chat_id"`
		Text   string `json:"text"`
	}{ChatID: chatID, Text: text}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.BaseURL, c.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var api apiResponse
	if err := json.Unmarshal(respBody, &api); err != nil {
		return fmt.Errorf("unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if !api.OK {
		return fmt.Errorf("bot API error (code %d): %s", api.ErrorCode, api.Description)
	}
	return nil
}
