// Package mpesa wraps the Safaricom Daraja HTTP API. No maintained Go SDK
// exists for Daraja, so the wrapper follows the same shape as the other
// external-service clients in pkg/: config in, validated client out,
// context-aware calls.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wawire/rentpulse-backend/pkg/config"
	"github.com/wawire/rentpulse-backend/pkg/logger"
)

const (
	tokenPath       = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath     = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath    = "/mpesa/stkpushquery/v1/query"
	b2cPath         = "/mpesa/b2c/v1/paymentrequest"
	timestampLayout = "20060102150405"

	// The gateway invalidates tokens after an hour; refresh a little early.
	tokenSlack = 2 * time.Minute
)

var (
	errConsumerKeyRequired = errors.New("mpesa consumer key is required")
	errShortCodeRequired   = errors.New("mpesa short code is required")
	errPasskeyRequired     = errors.New("mpesa passkey is required")
)

// Client talks to the Daraja API with cached OAuth credentials.
type Client struct {
	cfg  config.MpesaConfig
	http *http.Client
	logg *logger.Logger
	now  func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient validates the Daraja configuration and returns a ready client.
func NewClient(ctx context.Context, cfg config.MpesaConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ConsumerKey) == "" || strings.TrimSpace(cfg.ConsumerSecret) == "" {
		return nil, errConsumerKeyRequired
	}
	if strings.TrimSpace(cfg.ShortCode) == "" {
		return nil, errShortCodeRequired
	}
	if strings.TrimSpace(cfg.Passkey) == "" {
		return nil, errPasskeyRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("mpesa client initialized (%s)", cfg.BaseURL))
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		logg: logg,
		now:  time.Now,
	}, nil
}

// InitiatePushPayment asks the gateway to prompt the customer's device.
func (c *Client) InitiatePushPayment(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	timestamp := c.now().Format(timestampLayout)
	payload := map[string]string{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            req.Amount,
		"PartyA":            req.PhoneNumber,
		"PartyB":            c.cfg.ShortCode,
		"PhoneNumber":       req.PhoneNumber,
		"CallBackURL":       c.cfg.CallbackBaseURL + "/api/v1/webhooks/mpesa/stkpush/callback",
		"AccountReference":  req.AccountReference,
		"TransactionDesc":   req.Description,
	}

	var out STKPushResponse
	if err := c.post(ctx, stkPushPath, payload, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		return &out, fmt.Errorf("stk push rejected: %s %s", out.ResponseCode, out.ResponseDescription)
	}
	return &out, nil
}

// QueryStatus polls the gateway for the outcome of an earlier push request.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*STKQueryResult, error) {
	if checkoutRequestID == "" {
		return nil, errors.New("checkout request id is required")
	}
	timestamp := c.now().Format(timestampLayout)
	payload := map[string]string{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}

	var raw stkQueryResponse
	if err := c.post(ctx, stkQueryPath, payload, &raw); err != nil {
		return nil, err
	}

	code, err := strconv.Atoi(strings.TrimSpace(raw.ResultCode))
	if err != nil {
		return nil, fmt.Errorf("unparseable result code %q: %w", raw.ResultCode, err)
	}
	return &STKQueryResult{
		MerchantRequestID: raw.MerchantRequestID,
		CheckoutRequestID: raw.CheckoutRequestID,
		ResultCode:        code,
		ResultDescription: raw.ResultDesc,
	}, nil
}

// InitiateDisbursement sends money out via B2C (e.g. a deposit refund).
func (c *Client) InitiateDisbursement(ctx context.Context, req DisbursementRequest) (*DisbursementResponse, error) {
	payload := map[string]string{
		"InitiatorName":      c.cfg.InitiatorName,
		"SecurityCredential": c.cfg.SecurityCredential,
		"CommandID":          "BusinessPayment",
		"Amount":             req.Amount,
		"PartyA":             c.cfg.ShortCode,
		"PartyB":             req.PhoneNumber,
		"Remarks":            req.Remarks,
		"Occasion":           req.Occasion,
		"QueueTimeOutURL":    c.cfg.CallbackBaseURL + "/api/v1/webhooks/mpesa/disbursement/timeout",
		"ResultURL":          c.cfg.CallbackBaseURL + "/api/v1/webhooks/mpesa/disbursement/result",
	}

	var out DisbursementResponse
	if err := c.post(ctx, b2cPath, payload, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		return &out, fmt.Errorf("disbursement rejected: %s %s", out.ResponseCode, out.ResponseDescription)
	}
	return &out, nil
}

func (c *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry.Add(-tokenSlack)) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("empty access token from gateway")
	}

	ttl := 3600
	if parsed, err := strconv.Atoi(tok.ExpiresIn); err == nil && parsed > 0 {
		ttl = parsed
	}
	c.accessToken = tok.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(ttl) * time.Second)
	return c.accessToken, nil
}
