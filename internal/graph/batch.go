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
)

// MaxBatchSize is the Graph JSON batching limit on requests per $batch call.
const MaxBatchSize = 20

// Request is one logical API call that can be sent on its own or as part
// of a $batch envelope.
type Request struct {
	ID     string // correlation id, unique within one batch
	Method string
	Path   string // relative to the API version root, e.g. /users/{id}/contacts
	Body   any    // JSON-encoded when non-nil
}

// Response is the outcome of one Request. Err is nil for 2xx statuses.
type Response struct {
	ID     string
	Status int
	Err    error
}

type batchRequestEntry struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    any               `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type batchRequestBody struct {
	Requests []batchRequestEntry `json:"requests"`
}

type batchResponseEntry struct {
	ID      string            `json:"id"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

type batchResponseBody struct {
	Responses []batchResponseEntry `json:"responses"`
}

// Send executes one Request through the retrying executor and returns its
// HTTP status. The response body is discarded.
func (c *Client) Send(ctx context.Context, req Request) (int, error) {
	var body io.Reader

	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return 0, fmt.Errorf("graph: encoding %s %s body: %w", req.Method, req.Path, err)
		}

		body = bytes.NewReader(data)
	}

	resp, err := c.Do(ctx, req.Method, req.Path, body)
	if err != nil {
		return statusOf(err), err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// Batch submits up to MaxBatchSize requests in one $batch round trip and
// returns one Response per request, in request order. An error means the
// envelope itself failed (rejected, unreadable, or not correlatable); per
// request failures are reported in Response.Err instead.
func (c *Client) Batch(ctx context.Context, reqs []Request) ([]Response, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	if len(reqs) > MaxBatchSize {
		return nil, fmt.Errorf("graph: batch of %d requests exceeds limit of %d", len(reqs), MaxBatchSize)
	}

	envelope := batchRequestBody{Requests: make([]batchRequestEntry, 0, len(reqs))}
	seen := make(map[string]bool, len(reqs))

	for _, r := range reqs {
		if r.ID == "" || seen[r.ID] {
			return nil, fmt.Errorf("graph: batch request id %q is empty or duplicated", r.ID)
		}

		seen[r.ID] = true

		entry := batchRequestEntry{ID: r.ID, Method: r.Method, URL: r.Path}
		if r.Body != nil {
			entry.Body = r.Body
			entry.Headers = map[string]string{"Content-Type": "application/json"}
		}

		envelope.Requests = append(envelope.Requests, entry)
	}

	var out batchResponseBody
	if err := c.sendJSON(ctx, http.MethodPost, "/$batch", envelope, &out); err != nil {
		return nil, err
	}

	byID := make(map[string]batchResponseEntry, len(out.Responses))
	for _, r := range out.Responses {
		byID[r.ID] = r
	}

	results := make([]Response, 0, len(reqs))
	throttled := 0

	for _, r := range reqs {
		sub, ok := byID[r.ID]
		if !ok {
			return nil, fmt.Errorf("graph: batch response missing id %q", r.ID)
		}

		res := Response{ID: r.ID, Status: sub.Status}

		if sub.Status < http.StatusOK || sub.Status >= http.StatusMultipleChoices {
			if IsRetryable(sub.Status) {
				c.session.MarkThrottled()
				throttled++
			}

			res.Err = NewGraphError(sub.Status, sub.Headers["request-id"], string(sub.Body))
		}

		results = append(results, res)
	}

	c.logger.Debug("batch completed",
		slog.Int("requests", len(reqs)),
		slog.Int("throttled", throttled),
	)

	return results, nil
}

// statusOf extracts the HTTP status carried by an executor error, or 0.
func statusOf(err error) int {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.StatusCode
	}

	var te *ThrottledError
	if errors.As(err, &te) {
		return te.StatusCode
	}

	return 0
}
