package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/homeauto/cosmo-monitor/internal/history"
)

// datetimeLayout is the format input_datetime.set_datetime expects.
const datetimeLayout = "2006-01-02 15:04:05"

// maxBody caps response reads; a day of history for one entity is well below it.
const maxBody = 16 << 20

// #region client-struct
// Client is a rate-limited Home Assistant REST client.
type Client struct {
	baseURL  string
	token    string
	client   *http.Client
	limiter  *rate.Limiter
	loc      *time.Location
	backoffs []time.Duration
	log      *slog.Logger
}

// Options tunes a Client. Zero values pick the defaults.
type Options struct {
	RateInterval time.Duration  // minimum spacing between requests; default 250ms
	Timeout      time.Duration  // per request; default 30s
	Location     *time.Location // zone for input_datetime values; default time.Local
	Logger       *slog.Logger
}
// #endregion client-struct

// #region constructor
// NewClient creates a client for the instance at baseURL, authenticating
// with a long-lived access token.
func NewClient(baseURL, token string, opts Options) *Client {
	if opts.RateInterval <= 0 {
		opts.RateInterval = 250 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL:  baseURL,
		token:    token,
		client:   &http.Client{Timeout: opts.Timeout},
		limiter:  rate.NewLimiter(rate.Every(opts.RateInterval), 1),
		loc:      opts.Location,
		backoffs: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		log:      opts.Logger,
	}
}

// Available returns true if an access token is configured.
func (c *Client) Available() bool {
	return c.token != ""
}
// #endregion constructor

// #region history
// History fetches the recorder history of one entity between start and end.
// Home Assistant includes the state in effect at start as the first row.
func (c *Client) History(ctx context.Context, entityID string, start, end time.Time) ([][]State, error) {
	q := url.Values{}
	q.Set("filter_entity_id", entityID)
	q.Set("end_time", end.UTC().Format(time.RFC3339Nano))
	path := "/api/history/period/" + url.PathEscape(start.UTC().Format(time.RFC3339Nano)) + "?" + q.Encode()

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var sets [][]State
	if err := json.Unmarshal(body, &sets); err != nil {
		return nil, fmt.Errorf("parse history for %s: %w", entityID, err)
	}
	return sets, nil
}

// GetHistory implements history.SampleSource.
func (c *Client) GetHistory(ctx context.Context, entityID string, start, end time.Time) ([][]history.Sample, error) {
	sets, err := c.History(ctx, entityID, start, end)
	if err != nil {
		return nil, err
	}
	return Samples(sets), nil
}
// #endregion history

// #region states
// GetState returns the current state of an entity.
func (c *Client) GetState(ctx context.Context, entityID string) (State, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return State{}, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
		}
		return State{}, err
	}
	var s State
	if err := json.Unmarshal(body, &s); err != nil {
		return State{}, fmt.Errorf("parse state for %s: %w", entityID, err)
	}
	return s, nil
}

// SetDatetime sets an input_datetime helper to t, rendered in the client's zone.
func (c *Client) SetDatetime(ctx context.Context, entityID string, t time.Time) error {
	payload, err := json.Marshal(setDatetimeRequest{
		EntityID: entityID,
		Datetime: t.In(c.loc).Format(datetimeLayout),
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if _, err := c.do(ctx, http.MethodPost, "/api/services/input_datetime/set_datetime", payload); err != nil {
		return err
	}
	c.log.Info("set datetime", "entity", entityID, "datetime", t.In(c.loc).Format(datetimeLayout))
	return nil
}
// #endregion states

// #region transport
// do executes a request with retry logic for transient errors.
// Retries up to 3 times on HTTP 429 or 5xx with exponential backoff (1s, 2s, 4s).
// Honors the Retry-After header on 429 responses.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	maxRetries := len(c.backoffs)
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if err := c.wait(ctx, attempt, 0); err != nil {
				return nil, err
			}
			continue
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			if err := c.wait(ctx, attempt, 0); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		statusErr := &StatusError{Code: resp.StatusCode, Endpoint: method + " " + req.URL.Path, Body: string(respBody)}

		// Retry on 429 (rate limited) or 5xx (server error).
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = statusErr
			c.log.Warn("home assistant transient error", "endpoint", statusErr.Endpoint, "status", resp.StatusCode, "attempt", attempt+1)
			var retryAfter time.Duration
			if resp.StatusCode == http.StatusTooManyRequests {
				retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			}
			if err := c.wait(ctx, attempt, retryAfter); err != nil {
				return nil, err
			}
			continue
		}

		// Non-retryable error (e.g. 400, 401, 404).
		return nil, statusErr
	}

	return nil, fmt.Errorf("home assistant request failed after %d retries: %w", maxRetries, lastErr)
}

// wait sleeps before the next attempt. override, when positive, replaces the backoff.
func (c *Client) wait(ctx context.Context, attempt int, override time.Duration) error {
	if attempt >= len(c.backoffs) {
		return nil
	}
	delay := c.backoffs[attempt]
	if override > 0 {
		delay = override
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func parseRetryAfter(v string) time.Duration {
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return 0
	}
	delay := time.Duration(seconds) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}
// #endregion transport
