package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// listPageSize is the $top value for directory and contact listings.
// Graph caps /users at 999 and contacts at 1000.
const listPageSize = 999

// pageResponse mirrors the OData collection envelope returned by every
// Graph list endpoint.
type pageResponse[R any] struct {
	Value    []R    `json:"value"`
	NextLink string `json:"@odata.nextLink"` //nolint:tagliatelle // OData annotation key
}

// Pager walks a Graph collection one page at a time by following
// @odata.nextLink. It is lazy, finite, and non-restartable: once the last
// page has been returned, Next keeps reporting done.
type Pager[T, R any] struct {
	client  *Client
	next    string
	convert func(*R) T
	page    int
	done    bool
}

// newPager creates a Pager starting at path. convert normalizes one raw
// response element.
func newPager[T, R any](c *Client, path string, convert func(*R) T) *Pager[T, R] {
	return &Pager[T, R]{
		client:  c,
		next:    path,
		convert: convert,
	}
}

// Next fetches the next page. It returns more=false once the collection is
// exhausted; items is nil in that case.
func (p *Pager[T, R]) Next(ctx context.Context) (items []T, more bool, err error) {
	if p.done {
		return nil, false, nil
	}

	var pr pageResponse[R]
	if err := p.client.getJSON(ctx, p.next, &pr); err != nil {
		p.done = true
		return nil, false, err
	}

	p.page++

	items = make([]T, 0, len(pr.Value))
	for i := range pr.Value {
		items = append(items, p.convert(&pr.Value[i]))
	}

	p.client.logger.Debug("fetched page",
		slog.Int("page", p.page),
		slog.Int("count", len(items)),
		slog.Bool("has_next_link", pr.NextLink != ""),
	)

	if pr.NextLink == "" {
		p.done = true
		p.next = ""

		return items, true, nil
	}

	nextPath, err := p.client.stripBaseURL(pr.NextLink)
	if err != nil {
		p.done = true
		return nil, false, err
	}

	p.next = nextPath

	return items, true, nil
}

// Pages reports how many pages have been fetched so far.
func (p *Pager[T, R]) Pages() int {
	return p.page
}

// ListAll drains a Pager into one ordered slice.
func ListAll[T, R any](ctx context.Context, p *Pager[T, R]) ([]T, error) {
	var all []T

	for {
		items, more, err := p.Next(ctx)
		if err != nil {
			return nil, err
		}

		if !more {
			return all, nil
		}

		all = append(all, items...)
	}
}

// stripBaseURL removes the client's base URL prefix from a full URL,
// returning the path + query string for use with Do().
// Returns an error if the URL doesn't start with the expected base.
func (c *Client) stripBaseURL(fullURL string) (string, error) {
	if !strings.HasPrefix(fullURL, c.baseURL) {
		return "", fmt.Errorf("graph: nextLink URL %q does not match base URL %q", fullURL, c.baseURL)
	}

	return fullURL[len(c.baseURL):], nil
}
