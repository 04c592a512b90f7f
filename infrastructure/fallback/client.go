// Package fallback is the request/response path of the chat API, used when
// no live channel is open.
package fallback

import (
	"bkalan/domain"
	"bkalan/errors"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	messagesPath = "/api/chat/messages"
	sendPath     = "/api/chat/send"
)

type Client struct {
	log     *slog.Logger
	baseURL string
	http    *http.Client
}

// NewClient bounds every call with timeout so a hung request cannot leave a
// session waiting forever.
func NewClient(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	return &Client{
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchAll returns the server history, oldest first.
func (c *Client) FetchAll(ctx context.Context) ([]domain.ChatMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+messagesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrFetchFailure, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrFetchFailure, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w %d", errors.ErrFetchFailure, errors.ErrUnexpectedCode, resp.StatusCode)
	}
	var messages []domain.ChatMessage
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("%w: decode history: %v", errors.ErrFetchFailure, err)
	}
	for i := range messages {
		messages[i].Kind = domain.KindUser
	}
	return messages, nil
}

// Send posts one message. Any transport failure or non-2xx answer is an
// ErrDeliveryUncertain.
func (c *Client) Send(ctx context.Context, message domain.ChatMessage) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDeliveryUncertain, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDeliveryUncertain, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %w %d", errors.ErrDeliveryUncertain, errors.ErrUnexpectedCode, resp.StatusCode)
	}
	return nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
