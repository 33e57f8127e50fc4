package template

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/opennode/waldur-core-sub000/internal/platform"
)

// ValidationError is an API rejection of a provision request. It is never
// retried.
type ValidationError struct {
	ResourceType string
	StatusCode   int
	Details      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s provision rejected (%d): %s", e.ResourceType, e.StatusCode, e.Details)
}

// Response is what the API returned for a created or fetched resource.
type Response struct {
	URL   string          `json:"url"`
	State string          `json:"state"`
	Body  json.RawMessage `json:"body"`
}

func newResponse(body []byte) Response {
	return Response{
		URL:   gjson.GetBytes(body, "url").String(),
		State: gjson.GetBytes(body, "state").String(),
		Body:  json.RawMessage(body),
	}
}

// Provisioner creates resources through the public API.
type Provisioner interface {
	Provision(ctx context.Context, resourceType string, options map[string]any) (Response, error)
	Get(ctx context.Context, url string) (Response, error)
}

// HTTPProvisioner talks to the conductor API over HTTP.
type HTTPProvisioner struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxElapsed time.Duration
	logger     zerolog.Logger
}

func NewHTTPProvisioner(baseURL, token string, httpClient *http.Client, logger zerolog.Logger) *HTTPProvisioner {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPProvisioner{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		maxElapsed: time.Minute,
		logger:     logger.With().Str("component", "template-provisioner").Logger(),
	}
}

// WithMaxElapsed bounds retries of a single call.
func (p *HTTPProvisioner) WithMaxElapsed(d time.Duration) *HTTPProvisioner {
	p.maxElapsed = d
	return p
}

// CollectionURL is the endpoint that provisions resources of one type.
func (p *HTTPProvisioner) CollectionURL(resourceType string) string {
	return fmt.Sprintf("%s/api/v1/%ss", p.baseURL, resourceType)
}

func (p *HTTPProvisioner) Provision(ctx context.Context, resourceType string, options map[string]any) (Response, error) {
	payload, err := json.Marshal(options)
	if err != nil {
		return Response{}, fmt.Errorf("encode %s options: %w", resourceType, err)
	}
	body, err := p.do(ctx, resourceType, http.MethodPost, p.CollectionURL(resourceType), payload)
	if err != nil {
		return Response{}, err
	}
	return newResponse(body), nil
}

func (p *HTTPProvisioner) Get(ctx context.Context, url string) (Response, error) {
	body, err := p.do(ctx, "", http.MethodGet, url, nil)
	if err != nil {
		return Response{}, err
	}
	resp := newResponse(body)
	if resp.URL == "" {
		resp.URL = url
	}
	return resp, nil
}

// do sends one call. Throttled and refused calls are retried for every
// method; server errors and broken transports only for idempotent ones, so
// a create is never sent twice.
func (p *HTTPProvisioner) do(ctx context.Context, resourceType, method, url string, payload []byte) ([]byte, error) {
	var out []byte
	attempt := 0
	operation := func() error {
		attempt++
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if p.token != "" {
			req.Header.Set("Authorization", "Token "+p.token)
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			err = fmt.Errorf("%s %s: %w", method, url, err)
			if !platform.Replayable(method, 0, err) {
				return backoff.Permanent(err)
			}
			p.logger.Debug().Err(err).Int("attempt", attempt).Msg("transport error, retrying")
			return err
		}
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			err = fmt.Errorf("read %s %s: %w", method, url, err)
			if !platform.Idempotent(method) {
				return backoff.Permanent(err)
			}
			return err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			err := fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode)
			if !platform.Replayable(method, resp.StatusCode, nil) {
				return backoff.Permanent(err)
			}
			p.logger.Debug().Str("url", url).Int("status", resp.StatusCode).Int("attempt", attempt).Msg("retryable response")
			return err
		case resp.StatusCode >= 400 && method == http.MethodPost:
			return backoff.Permanent(&ValidationError{
				ResourceType: resourceType,
				StatusCode:   resp.StatusCode,
				Details:      strings.TrimSpace(string(respBody)),
			})
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(respBody))))
		}
		out = respBody
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = p.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

// IsValidation reports whether err is an API rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
