// Package mpesa is the Daraja (Lipa Na M-Pesa Online) gateway client.
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

	"go.uber.org/zap"

	"scan2pay-service/config"
	"scan2pay-service/internal/provider"
)

const (
	tokenPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	timestampLayout = "20060102150405"

	// Refresh a little before the gateway expires the token.
	tokenExpiryMargin = time.Minute
	defaultTokenTTL   = 3599 * time.Second

	// Returned by the query endpoint while the prompt is still open on the phone.
	errCodeStillProcessing = "500.001.1001"
)

// APIError is a non-200 response from the gateway.
type APIError struct {
	StatusCode int
	RequestID  string `json:"requestId"`
	Code       string `json:"errorCode"`
	Message    string `json:"errorMessage"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mpesa api error: status %d code %s: %s", e.StatusCode, e.Code, e.Message)
}

type Client struct {
	cfg        config.MpesaConfig
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

var _ provider.Gateway = (*Client)(nil)

func NewClient(cfg config.MpesaConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

func (c *Client) Name() string { return "mpesa" }

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode      string    `json:"ResponseCode"`
	CheckoutRequestID string    `json:"CheckoutRequestID"`
	ResultCode        resultInt `json:"ResultCode"`
	ResultDesc        string    `json:"ResultDesc"`
}

// resultInt decodes result codes sent either as numbers or as quoted strings.
type resultInt struct {
	v *int
}

func (r *resultInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid result code %q", s)
	}
	r.v = &n
	return nil
}

// Push sends an STK push prompt to the customer's phone.
func (c *Client) Push(ctx context.Context, req *provider.PushRequest) (*provider.PushResponse, error) {
	amount, whole := req.Amount.WholeUnits()
	if !whole || amount <= 0 {
		return nil, fmt.Errorf("stk push amount must be a positive whole number, got %s", req.Amount)
	}

	timestamp := c.now().Format(timestampLayout)
	body := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   c.cfg.TransactionType,
		Amount:            amount,
		PartyA:            req.PhoneNumber,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       req.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   req.Description,
	}

	var resp stkPushResponse
	if err := c.do(ctx, stkPushPath, body, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug("stk push sent",
		zap.String("checkout_request_id", resp.CheckoutRequestID),
		zap.String("response_code", resp.ResponseCode))

	return &provider.PushResponse{
		CorrelationID:       resp.CheckoutRequestID,
		MerchantRequestID:   resp.MerchantRequestID,
		ResponseCode:        resp.ResponseCode,
		ResponseDescription: resp.ResponseDescription,
		CustomerMessage:     resp.CustomerMessage,
	}, nil
}

// Query asks for the outcome of an STK push. A prompt that is still open
// yields a result without a code rather than an error.
func (c *Client) Query(ctx context.Context, correlationID string) (*provider.QueryResult, error) {
	timestamp := c.now().Format(timestampLayout)
	body := stkQueryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: correlationID,
	}

	var resp stkQueryResponse
	if err := c.do(ctx, stkQueryPath, body, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == errCodeStillProcessing {
			return &provider.QueryResult{CorrelationID: correlationID, ResultDesc: apiErr.Message}, nil
		}
		return nil, err
	}

	return &provider.QueryResult{
		CorrelationID: correlationID,
		ResultCode:    resp.ResultCode.v,
		ResultDesc:    resp.ResultDesc,
	}, nil
}

func (c *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
}

// accessToken returns the cached OAuth token, fetching a new one when absent or
// close to expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return "", err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("failed to get access token: status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode access token: %w", err)
	}
	if result.AccessToken == "" {
		return "", errors.New("gateway returned an empty access token")
	}

	ttl := defaultTokenTTL
	if secs, err := strconv.Atoi(result.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	if ttl > tokenExpiryMargin {
		ttl -= tokenExpiryMargin
	}

	c.token = result.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	c.logger.Debug("mpesa access token refreshed", zap.Duration("ttl", ttl))
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}

// do posts payload to path and decodes a 200 response into out. A 401 drops
// the cached token and retries once with a fresh one.
func (c *Client) do(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("mpesa request %s: %w", path, err)
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("read mpesa response: %w", readErr)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			c.logger.Warn("mpesa token rejected, refreshing", zap.String("path", path))
			c.invalidateToken()
			continue
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := &APIError{StatusCode: resp.StatusCode}
			if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
				apiErr.Message = strings.TrimSpace(string(body))
			}
			return apiErr
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	}
}
