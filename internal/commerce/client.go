package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/courtside-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/courtside-storefront/pkg/errors"
	"github.com/angelmondragon/courtside-storefront/pkg/logger"
	"github.com/angelmondragon/courtside-storefront/pkg/metrics"
	"github.com/sethvargo/go-retry"
)

const (
	accessTokenHeader           = "X-Shopify-Storefront-Access-Token"
	defaultAttemptTimeout       = 12 * time.Second
	responseBodyReadLimit int64 = 4 << 20
	errorBodyLogLimit           = 512
)

var errAccessTokenRequired = stdErrors.New("storefront access token is required")

// Client is the only component that talks to the remote storefront API.
type Client struct {
	httpClient     *http.Client
	endpoint       string
	accessToken    string
	policy         RetryPolicy
	attemptTimeout time.Duration
	logg           *logger.Logger
	metrics        *metrics.SyncMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.policy = policy.normalized()
	}
}

// WithAttemptTimeout bounds each individual attempt, not the whole retried call.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

func WithMetrics(m *metrics.SyncMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds a storefront client for a GraphQL endpoint.
func NewClient(endpoint, accessToken string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, stdErrors.New("storefront endpoint is required")
	}
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}

	client := &Client{
		httpClient:     &http.Client{},
		endpoint:       endpoint,
		accessToken:    token,
		policy:         DefaultRetryPolicy(),
		attemptTimeout: defaultAttemptTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewFromConfig wires the client from the commerce configuration section.
func NewFromConfig(cfg config.CommerceConfig, logg *logger.Logger, m *metrics.SyncMetrics) (*Client, error) {
	return NewClient(cfg.Endpoint(), cfg.AccessToken,
		WithAttemptTimeout(cfg.RequestTimeout),
		WithRetryPolicy(RetryPolicy{
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
		}),
		WithLogger(logg),
		WithMetrics(m),
	)
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// Execute runs a GraphQL document and decodes its data into out. Transport
// failures are retried per the client's RetryPolicy; every other failure is
// returned after the first attempt.
func (c *Client) Execute(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "storefront client not configured")
	}
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal storefront request")
	}

	ctx = c.logg.WithField(ctx, "storefront_op", operation)
	start := time.Now()
	attempt := 0
	err = retry.Do(ctx, c.policy.backoff(), func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			c.metrics.IncRetry(operation)
			c.logg.Warn(c.logg.WithField(ctx, "attempt", attempt), "storefront.retry")
		}
		return c.attempt(ctx, operation, payload, out)
	})
	if err != nil && pkgerrors.As(err) == nil {
		// retry.Do surfaces ctx errors untyped when the caller gives up.
		err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("storefront %s interrupted", operation))
	}

	c.metrics.ObserveRemoteCall(operation, outcomeOf(err), time.Since(start))
	if err != nil {
		c.logg.Error(c.logg.WithField(ctx, "attempts", attempt), "storefront.failed", err)
		return err
	}
	c.logg.Debug(c.logg.WithField(ctx, "attempts", attempt), "storefront.ok")
	return nil
}

func (c *Client) attempt(ctx context.Context, operation string, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build storefront request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(accessTokenHeader, c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transient(pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("execute storefront %s", operation)))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return transient(pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read storefront %s response", operation)))
	}

	var envelope graphQLResponse
	structured := json.Unmarshal(body, &envelope) == nil && (len(envelope.Errors) > 0 || len(envelope.Data) > 0)

	if resp.StatusCode == http.StatusNotFound {
		return sessionNotFound()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if structured && len(envelope.Errors) > 0 {
			return graphQLFailure(operation, envelope.Errors)
		}
		statusErr := fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, errorBodyLogLimit))
		wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, statusErr, fmt.Sprintf("storefront %s failed", operation))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return wrapped
		}
		return transient(wrapped)
	}
	if !structured {
		return transient(pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("unstructured body: %s", truncate(body, errorBodyLogLimit)), fmt.Sprintf("decode storefront %s response", operation)))
	}
	if len(envelope.Errors) > 0 {
		return graphQLFailure(operation, envelope.Errors)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode storefront %s data", operation))
	}
	return nil
}

// graphQLFailure maps top-level GraphQL errors. Throttling and server faults
// are transient; anything else means the request itself is wrong.
func graphQLFailure(operation string, errs []graphQLError) error {
	messages := make([]string, 0, len(errs))
	retryable := false
	for _, e := range errs {
		messages = append(messages, e.Message)
		switch e.Extensions.Code {
		case "THROTTLED", "INTERNAL_SERVER_ERROR":
			retryable = true
		}
	}
	err := pkgerrors.Wrap(pkgerrors.CodeDependency, stdErrors.New(strings.Join(messages, "; ")), fmt.Sprintf("storefront %s returned errors", operation))
	if retryable {
		return transient(err)
	}
	return err
}

func transient(err error) error {
	return retry.RetryableError(err)
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeCartRejected:
		return "rejected"
	case pkgerrors.CodeNotFound:
		return "not_found"
	case pkgerrors.CodeDependency:
		return "transport"
	default:
		return "error"
	}
}

func truncate(body []byte, limit int) string {
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
