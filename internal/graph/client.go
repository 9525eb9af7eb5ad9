package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// DefaultBaseURL is the Graph API v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Retry and backoff constants.
const (
	DefaultMaxRetries = 5
	baseBackoff       = 2 * time.Second
	maxBackoff        = 60 * time.Second
	defaultUserAgent  = "contactsync/0.1"
)

// BackoffDelay returns the wait before retry number attempt (0-based):
// 2s, 4s, 8s, ... capped at 60s.
func BackoffDelay(attempt int) time.Duration {
	d := baseBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}

	return d
}

// Client is an HTTP client for the Microsoft Graph API.
// It handles request construction, authentication through the run Session,
// retry with exponential backoff, and error classification.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	logger     *slog.Logger
	userAgent  string
	maxRetries int

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Graph API client bound to one run Session.
// baseURL is typically DefaultBaseURL.
func NewClient(baseURL string, httpClient *http.Client, session *Session, logger *slog.Logger, userAgent string) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		session:    session,
		logger:     logger,
		userAgent:  userAgent,
		maxRetries: DefaultMaxRetries,
		sleepFunc:  timeSleep,
	}
}

// SetMaxRetries overrides the default attempt budget used by Do.
func (c *Client) SetMaxRetries(n int) {
	if n > 0 {
		c.maxRetries = n
	}
}

// Session returns the run state this client reports into.
func (c *Client) Session() *Session {
	return c.session
}

// Do executes an HTTP request against the Graph API with the client's
// default attempt budget. The caller closes the response body on success.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	return c.DoWithRetries(ctx, method, path, body, c.maxRetries)
}

// DoWithRetries executes a request making at most maxRetries attempts.
// 429, 503 and 504 responses mark the session throttled and are retried with
// BackoffDelay; once the budget is spent a *ThrottledError is returned. Any
// other non-2xx status returns a *GraphError immediately. Transport errors
// are retried on the same schedule. Bodies must implement io.Seeker to be
// replayed across attempts.
func (c *Client) DoWithRetries(
	ctx context.Context, method, path string, body io.Reader, maxRetries int,
) (*http.Response, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	url := c.baseURL + path

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := rewindBody(body); err != nil {
				return nil, fmt.Errorf("graph: rewinding request body: %w", err)
			}
		}

		last := attempt+1 >= maxRetries

		resp, err := c.doOnce(ctx, method, url, body)
		if err != nil {
			if errors.Is(err, ErrTokenAcquisition) {
				return nil, err
			}

			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("graph: request canceled: %w", ctx.Err())
			}

			if last {
				return nil, fmt.Errorf("graph: %s %s failed after %d attempts: %w", method, path, attempt+1, err)
			}

			backoff := BackoffDelay(attempt)
			c.logger.Warn("retrying after network error",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()),
			)

			if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
				return nil, fmt.Errorf("graph: request canceled: %w", sleepErr)
			}

			continue
		}

		// 2xx: success.
		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		// Read and close body for error responses.
		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if IsRetryable(resp.StatusCode) {
			c.session.MarkThrottled()

			if last {
				c.logger.Error("request still throttled after retries",
					slog.String("method", method),
					slog.String("path", path),
					slog.Int("status", resp.StatusCode),
					slog.Int("attempts", attempt+1),
				)

				return nil, &ThrottledError{
					Method:     method,
					Path:       path,
					StatusCode: resp.StatusCode,
					Attempts:   attempt + 1,
				}
			}

			backoff := retryDelay(resp, attempt)
			c.logger.Warn("retrying after throttling response",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("graph: request canceled: %w", err)
			}

			continue
		}

		return nil, NewGraphError(resp.StatusCode, resp.Header.Get("request-id"), string(errBody))
	}
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	tok, err := c.session.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", c.userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// getJSON issues a GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.sendJSON(ctx, http.MethodGet, path, nil, out)
}

// sendJSON marshals in (when non-nil), issues the request, and decodes the
// response into out (when non-nil).
func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader

	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("graph: encoding %s %s body: %w", method, path, err)
		}

		body = bytes.NewReader(data)
	}

	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("graph: decoding %s %s response: %w", method, path, err)
	}

	return nil
}

// retryDelay returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used, capped
// at the maximum backoff.
func retryDelay(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return min(time.Duration(seconds)*time.Second, maxBackoff)
			}
		}
	}

	return BackoffDelay(attempt)
}

// rewindBody seeks a replayable body back to its start. Nil bodies are a no-op.
func rewindBody(body io.Reader) error {
	if body == nil {
		return nil
	}

	seeker, ok := body.(io.Seeker)
	if !ok {
		return errors.New("body is not seekable")
	}

	_, err := seeker.Seek(0, io.SeekStart)

	return err
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
