// Package sms sends text messages through the configured bulk-SMS HTTP
// gateway. The dispatcher only sees the Send surface; provider details stay
// behind this client.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wawire/rentpulse-backend/pkg/config"
	"github.com/wawire/rentpulse-backend/pkg/logger"
)

var (
	errBaseURLRequired = errors.New("sms base url is required")
	errAPIKeyRequired  = errors.New("sms api key is required")
)

// Client posts messages to the bulk-SMS gateway.
type Client struct {
	cfg  config.SMSConfig
	http *http.Client
	logg *logger.Logger
}

// NewClient validates the SMS configuration and returns a ready client.
func NewClient(ctx context.Context, cfg config.SMSConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errBaseURLRequired
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errAPIKeyRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logg != nil {
		logg.Info(ctx, "sms client initialized")
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}, nil
}

type sendRequest struct {
	Username string `json:"username"`
	To       string `json:"to"`
	From     string `json:"from,omitempty"`
	Message  string `json:"message"`
}

type sendResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Send delivers one message to one phone number.
func (c *Client) Send(ctx context.Context, phone, message string) error {
	if strings.TrimSpace(phone) == "" {
		return errors.New("phone number is required")
	}
	if strings.TrimSpace(message) == "" {
		return errors.New("message is required")
	}

	body, err := json.Marshal(sendRequest{
		Username: c.cfg.Username,
		To:       phone,
		From:     c.cfg.SenderID,
		Message:  message,
	})
	if err != nil {
		return fmt.Errorf("marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/messaging", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apiKey", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode sms response: %w", err)
	}
	if out.Status != "" && !strings.EqualFold(out.Status, "success") && !strings.EqualFold(out.Status, "sent") {
		return fmt.Errorf("sms gateway rejected message: %s", out.Message)
	}
	return nil
}
