package omise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	omisego "github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"

	"github.com/baanhub/baanhub-backend/pkg/config"
	"github.com/baanhub/baanhub-backend/pkg/logger"
)

const (
	defaultBaseURL       = "https://api.omise.co"
	apiVersion           = "2019-05-29"
	defaultClientTimeout = 15 * time.Second
)

var (
	errPublicKeyRequired = errors.New("omise public key is required")
	errSecretKeyRequired = errors.New("omise secret key is required")
)

// Client wraps the omise-go SDK. The SDK picks the public or secret key per
// operation; responses are kept raw so callers can snapshot the full object.
type Client struct {
	api           *omisego.Client
	baseURL       string
	webhookSecret string
	logger        *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client the SDK sends requests with.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.api.Client = client
		}
	}
}

// WithBaseURL points the client at another API host, e.g. a local stub.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithLogger enables request/response logging.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logger = logg
	}
}

// NewClient validates the configured keys and builds the client.
func NewClient(cfg config.OmiseConfig, opts ...Option) (*Client, error) {
	publicKey := strings.TrimSpace(cfg.PublicKey)
	if publicKey == "" {
		return nil, errPublicKeyRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}

	api, err := omisego.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("create omise client: %w", err)
	}
	api.APIVersion = apiVersion

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	api.Client = &http.Client{Timeout: timeout}

	client := &Client{
		api:           api,
		baseURL:       defaultBaseURL,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
	}
	WithBaseURL(cfg.BaseURL)(client)

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.baseURL != defaultBaseURL {
		target, err := url.Parse(client.baseURL)
		if err != nil || target.Host == "" {
			return nil, fmt.Errorf("invalid omise base url %q", client.baseURL)
		}
		redirected := *client.api.Client
		redirected.Transport = &hostRewriter{target: target, next: redirected.Transport}
		client.api.Client = &redirected
	}
	return client, nil
}

// SigningSecret returns the webhook signing secret; empty when unset.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// CreateCharge creates a charge against a card token, source or customer.
func (c *Client) CreateCharge(ctx context.Context, params ChargeParams) (*Charge, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, "/charges", params.operation())
	if err != nil {
		return nil, err
	}
	var charge Charge
	if err := json.Unmarshal(raw, &charge); err != nil {
		return nil, fmt.Errorf("decode omise charge: %w", err)
	}
	charge.Raw = raw
	return &charge, nil
}

// CreateSource creates an asynchronous payment source (PromptPay QR, wallets).
func (c *Client) CreateSource(ctx context.Context, params SourceParams) (*Source, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, "/sources", params.operation())
	if err != nil {
		return nil, err
	}
	var source Source
	if err := json.Unmarshal(raw, &source); err != nil {
		return nil, fmt.Errorf("decode omise source: %w", err)
	}
	source.Raw = raw
	return &source, nil
}

func (c *Client) do(ctx context.Context, path string, op any) (json.RawMessage, error) {
	// The SDK keeps the context on the client, so each call runs on a copy.
	call := *c.api
	call.WithContext(ctx)

	c.log(ctx, "request", path, nil)
	var raw json.RawMessage
	var err error
	switch typed := op.(type) {
	case *operations.CreateCharge:
		err = call.Do(&raw, typed)
	case *operations.CreateSource:
		err = call.Do(&raw, typed)
	default:
		return nil, fmt.Errorf("unsupported omise operation %T", op)
	}
	if err != nil {
		mapped := mapError(path, err)
		fields := map[string]any{"error": err.Error()}
		var apiErr *APIError
		if errors.As(mapped, &apiErr) {
			fields["status"] = apiErr.StatusCode
			fields["omise_code"] = apiErr.Code
		}
		c.log(ctx, "error", path, fields)
		return nil, mapped
	}
	c.log(ctx, "response", path, nil)
	return raw, nil
}

func mapError(path string, err error) error {
	var sdkErr *omisego.Error
	if errors.As(err, &sdkErr) {
		apiErr := &APIError{
			StatusCode: sdkErr.StatusCode,
			Location:   sdkErr.Location,
			Code:       sdkErr.Code,
			Message:    strings.TrimSpace(sdkErr.Message),
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(sdkErr.StatusCode)
		}
		return apiErr
	}
	return &TransportError{Op: path, Err: err}
}

func (c *Client) log(ctx context.Context, phase, path string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	merged := map[string]any{"omise_phase": phase, "omise_path": path}
	for k, v := range fields {
		merged[k] = v
	}
	c.logger.Debug(c.logger.WithFields(ctx, merged), "omise api call")
}

// hostRewriter sends SDK requests to a configured host instead of the
// hard-wired Omise endpoints.
type hostRewriter struct {
	target *url.URL
	next   http.RoundTripper
}

func (h *hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = h.target.Scheme
	out.URL.Host = h.target.Host
	out.URL.Path = strings.TrimRight(h.target.Path, "/") + req.URL.Path
	out.Host = h.target.Host

	next := h.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(out)
}
