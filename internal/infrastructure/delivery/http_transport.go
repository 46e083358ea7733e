package delivery

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
)

// Webhook headers sent with every HTTP delivery
const (
	HeaderMessageID      = "X-Message-ID"
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderMessageType    = "X-Hub-Message-Type"
	HeaderSource         = "X-Hub-Source"
	HeaderTimestamp      = "X-Hub-Timestamp"

	// settingHeaderPrefix marks connector settings copied into request headers,
	// e.g. "header.X-Api-Key"
	settingHeaderPrefix = "header."
	maxErrorBody        = 512
)

// HTTPTransport posts JSON payloads to webhook endpoints
type HTTPTransport struct {
	client        *http.Client
	signingHeader string
	userAgent     string
	now           func() time.Time
}

// HTTPOption configures an HTTPTransport
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) { t.client = c }
}

// WithSigningHeader sets the header carrying the HMAC signature
func WithSigningHeader(name string) HTTPOption {
	return func(t *HTTPTransport) { t.signingHeader = name }
}

// WithUserAgent sets the User-Agent of outbound requests
func WithUserAgent(ua string) HTTPOption {
	return func(t *HTTPTransport) { t.userAgent = ua }
}

// WithHTTPClock replaces the clock used for signature timestamps
func WithHTTPClock(now func() time.Time) HTTPOption {
	return func(t *HTTPTransport) { t.now = now }
}

// NewHTTPTransport creates a webhook transport
func NewHTTPTransport(opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		client:        &http.Client{},
		signingHeader: "X-Hub-Signature",
		userAgent:     "integration-hub/1.0",
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send posts the delivery payload to the connector endpoint. 2xx succeeds;
// 408, 429, 5xx and network failures are retryable; other statuses are
// permanent rejections.
func (t *HTTPTransport) Send(ctx context.Context, connector *integration.Connector, msg *integration.IntegrationMessage) (*integration.DeliveryReceipt, error) {
	body, err := encodePayload(msg)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(connector.Setting("method", http.MethodPost))
	req, err := http.NewRequestWithContext(ctx, method, connector.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, integration.NewPermanentDeliveryError(0, fmt.Errorf("build request: %w", err))
	}
	t.applyHeaders(req, connector)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderMessageID, msg.MessageID)
	req.Header.Set(HeaderIdempotencyKey, msg.IdempotencyKey)
	req.Header.Set(HeaderMessageType, msg.DeliveryType())
	req.Header.Set(HeaderSource, msg.SourceConnector)
	if connector.SigningSecret != "" {
		ts := strconv.FormatInt(t.now().Unix(), 10)
		req.Header.Set(HeaderTimestamp, ts)
		req.Header.Set(t.signingHeader, "sha256="+Sign(connector.SigningSecret, ts, body))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, integration.NewRetryableDeliveryError(0, err)
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &integration.DeliveryReceipt{
			StatusCode: resp.StatusCode,
			Reference:  resp.Header.Get("Location"),
		}, nil
	}
	return nil, classifyStatus(resp.StatusCode, errors.New(responseError(resp, snippet)))
}

// Probe checks the endpoint answers. A settings["health_url"] overrides the
// delivery endpoint. Endpoints rejecting HEAD are probed with GET.
func (t *HTTPTransport) Probe(ctx context.Context, connector *integration.Connector) error {
	target := connector.Setting("health_url", connector.Endpoint)
	status, err := t.probe(ctx, http.MethodHead, target, connector)
	if err == nil && status == http.StatusMethodNotAllowed {
		status, err = t.probe(ctx, http.MethodGet, target, connector)
	}
	if err != nil {
		return err
	}
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("health probe returned status %d", status)
	}
	return nil
}

func (t *HTTPTransport) probe(ctx context.Context, method, target string, connector *integration.Connector) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, fmt.Errorf("build probe request: %w", err)
	}
	t.applyHeaders(req, connector)
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("health probe failed: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func (t *HTTPTransport) applyHeaders(req *http.Request, connector *integration.Connector) {
	req.Header.Set("User-Agent", t.userAgent)
	for key, value := range connector.Settings {
		if name, ok := strings.CutPrefix(key, settingHeaderPrefix); ok && name != "" {
			req.Header.Set(name, value)
		}
	}
}

// Sign returns the hex HMAC-SHA256 of "timestamp.body" under secret
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a "sha256=<hex>" signature in constant time
func VerifySignature(secret, timestamp string, body []byte, signature string) bool {
	got, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return false
	}
	return hmac.Equal([]byte(got), []byte(Sign(secret, timestamp, body)))
}

func classifyStatus(status int, err error) error {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return integration.NewRetryableDeliveryError(status, err)
	default:
		return integration.NewPermanentDeliveryError(status, err)
	}
}

func responseError(resp *http.Response, snippet []byte) string {
	text := strings.TrimSpace(string(snippet))
	if text == "" {
		return resp.Status
	}
	return resp.Status + ": " + text
}
