package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	propbooks "github.com/propbooks/propbooks-go"
)

// crud serves a standard resource rooted at base ("/tenants/"). Services
// embed it and add their action routes on top; the promoted methods satisfy
// the cache's Resource contract. The server answers 405 for any verb a
// resource does not support, which surfaces as a normal *APIError.
type crud[T any] struct {
	c    *Client
	base string
}

func (r crud[T]) item(id string) string { return r.base + id + "/" }

func (r crud[T]) List(ctx context.Context, q propbooks.Query) ([]T, int, error) {
	return doList[T](ctx, r.c, r.base, q)
}

func (r crud[T]) Get(ctx context.Context, id string) (T, error) {
	return doGet[T](ctx, r.c, r.item(id))
}

func (r crud[T]) Create(ctx context.Context, v T) (T, error) {
	return doCreate[T](ctx, r.c, r.base, v)
}

func (r crud[T]) Update(ctx context.Context, id string, v T) (T, error) {
	return doUpdate[T](ctx, r.c, r.item(id), v)
}

func (r crud[T]) Delete(ctx context.Context, id string) error {
	return doDelete(ctx, r.c, r.item(id))
}

// The shared request plumbing lives in package-level generic helpers
// because methods cannot introduce their own type parameters.

func doList[T any](ctx context.Context, c *Client, path string, q propbooks.Query) ([]T, int, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, queryParams(q), nil, &raw); err != nil {
		return nil, 0, err
	}
	page, err := decodePage[T](raw)
	if err != nil {
		return nil, 0, err
	}
	return page.Results, page.Count, nil
}

func doGet[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	err := c.do(ctx, http.MethodGet, path, nil, nil, &out)
	return out, err
}

func doCreate[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPost, path, nil, body, &out)
	return out, err
}

func doUpdate[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPatch, path, nil, body, &out)
	return out, err
}

func doDelete(ctx context.Context, c *Client, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// doAction POSTs to a detail action route ("/leases/{id}/terminate/") and
// decodes the updated record or action result.
func doAction[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPost, path, nil, body, &out)
	return out, err
}

// queryParams maps a cache query onto the server's list parameters. Sort
// maps to the server's "ordering" param; page/page_size go out only for
// paged queries so unpaged lists come back whole.
func queryParams(q propbooks.Query) map[string]string {
	p := make(map[string]string, len(q.Filters)+4)
	for k, v := range q.Filters {
		p[k] = v
	}
	if q.Search != "" {
		p["search"] = q.Search
	}
	if q.Sort != "" {
		p["ordering"] = q.Sort
	}
	if q.Paged() {
		page := q.Page
		if page < 1 {
			page = 1
		}
		p["page"] = strconv.Itoa(page)
		p["page_size"] = strconv.Itoa(q.PageSize)
	}
	return p
}
