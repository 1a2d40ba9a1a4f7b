// Package apiclient is the HTTP client for the check-in REST endpoints used by
// the check-in flow.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bailbond/checkin-service/internal/cache"
	"bailbond/checkin-service/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultCacheTTL = 30 * time.Second
	defaultTimeout  = 30 * time.Second
	maxErrorBody    = 64 << 10
)

type Config struct {
	BaseURL      string
	SessionToken string
	HTTPClient   *http.Client
	Cache        cache.Cache
	CacheTTL     time.Duration
}

type Client struct {
	baseURL      *url.URL
	sessionToken string
	http         *http.Client
	cache        cache.Cache
	cacheTTL     time.Duration
	newRequestID func() string
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	message := e.Message
	if message == "" {
		message = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, message)
}

// UserMessage is the server-provided message suitable for display. It is
// empty when the response carried no error envelope.
func (e *APIError) UserMessage() string {
	return e.Message
}

type errorEnvelope struct {
	RequestID string `json:"request_id"`
	Error     struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	queryCache := cfg.Cache
	if queryCache == nil {
		queryCache = cache.NewMemoryCache(0)
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	return &Client{
		baseURL:      base,
		sessionToken: strings.TrimSpace(cfg.SessionToken),
		http:         httpClient,
		cache:        queryCache,
		cacheTTL:     ttl,
		newRequestID: uuid.NewString,
	}, nil
}

// ListClientCheckIns returns the client's check-ins, newest first. Results are
// cached under the "clients/{id}/check-ins" query key.
func (c *Client) ListClientCheckIns(ctx context.Context, clientID int64) ([]models.CheckIn, error) {
	key := clientCheckInsKey(clientID)
	if c.cacheTTL > 0 {
		if raw, err := c.cache.Get(ctx, key); err == nil {
			var cached []models.CheckIn
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/api/clients/"+strconv.FormatInt(clientID, 10)+"/check-ins", nil)
	if err != nil {
		return nil, err
	}
	var checkIns []models.CheckIn
	if err := c.do(req, &checkIns); err != nil {
		return nil, err
	}
	if checkIns == nil {
		checkIns = []models.CheckIn{}
	}

	if c.cacheTTL > 0 {
		if raw, err := json.Marshal(checkIns); err == nil {
			_ = c.cache.Set(ctx, key, raw, c.cacheTTL)
		}
	}
	return checkIns, nil
}

// SubmitCheckIn posts one check-in attempt. Each call carries a fresh
// X-Request-ID, so only a transport-level replay of the same request is
// deduplicated by the server.
func (c *Client) SubmitCheckIn(ctx context.Context, submission models.CheckInSubmission) (models.CheckIn, error) {
	body, err := json.Marshal(submission)
	if err != nil {
		return models.CheckIn{}, fmt.Errorf("encode submission: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/check-ins", bytes.NewReader(body))
	if err != nil {
		return models.CheckIn{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", c.newRequestID())

	var checkIn models.CheckIn
	if err := c.do(req, &checkIn); err != nil {
		return models.CheckIn{}, err
	}
	return checkIn, nil
}

// Invalidate drops cached queries.
func (c *Client) Invalidate(ctx context.Context, keys ...string) error {
	return c.cache.Delete(ctx, keys...)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	endpoint := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil {
		var envelope errorEnvelope
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
			apiErr.RequestID = envelope.RequestID
		}
	}
	return apiErr
}

func clientCheckInsKey(clientID int64) string {
	return "clients/" + strconv.FormatInt(clientID, 10) + "/check-ins"
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
