// Package ods is a client for Opendatasoft "explore v2.1" portals
// (data.economie.gouv.fr). It covers the two endpoints the pipeline needs:
// free-text catalog search and paginated record retrieval.
package ods

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultDomain is the MEFSIN open-data portal hosting the state budget.
const DefaultDomain = "https://data.economie.gouv.fr"

// CatalogDataset is one catalog search hit.
type CatalogDataset struct {
	DatasetID string
	Title     string
}

// UnmarshalJSON accepts both catalog shapes seen in the wild: title at the
// top level, or nested under dataset.metas.
func (d *CatalogDataset) UnmarshalJSON(b []byte) error {
	var raw struct {
		DatasetID string `json:"dataset_id"`
		Title     string `json:"title"`
		Dataset   struct {
			Metas struct {
				Title string `json:"title"`
			} `json:"metas"`
		} `json:"dataset"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.DatasetID = raw.DatasetID
	d.Title = raw.Title
	if d.Title == "" {
		d.Title = raw.Dataset.Metas.Title
	}
	return nil
}

// Record is one dataset row. Some portal versions wrap rows in a "record"
// envelope, some nest values under "fields", some return them flat; all
// three end up in Fields.
type Record struct {
	ID     string
	Fields map[string]any
}

// UnmarshalJSON unwraps the record envelope when present.
func (r *Record) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID     string         `json:"id"`
		Fields map[string]any `json:"fields"`
		Record *struct {
			ID     string         `json:"id"`
			Fields map[string]any `json:"fields"`
		} `json:"record"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch {
	case raw.Record != nil:
		r.ID = raw.Record.ID
		r.Fields = raw.Record.Fields
	case raw.Fields != nil:
		r.ID = raw.ID
		r.Fields = raw.Fields
	default:
		var flat map[string]any
		if err := json.Unmarshal(b, &flat); err != nil {
			return err
		}
		r.ID = raw.ID
		delete(flat, "id")
		r.Fields = flat
	}
	return nil
}

// PageOptions filter one records request.
type PageOptions struct {
	Select  string
	Where   string
	OrderBy string
	Limit   int
	Offset  int
}

// RecordOption configures a record fetch.
type RecordOption func(*recordOpts)

type recordOpts struct {
	selectExpr string
	where      string
	orderBy    string
	limit      int
}

// WithSelect sets the select expression.
func WithSelect(expr string) RecordOption {
	return func(o *recordOpts) { o.selectExpr = expr }
}

// WithWhere sets the server-side filter expression.
func WithWhere(expr string) RecordOption {
	return func(o *recordOpts) { o.where = expr }
}

// WithOrderBy sets the sort expression.
func WithOrderBy(expr string) RecordOption {
	return func(o *recordOpts) { o.orderBy = expr }
}

// WithLimit overrides the per-page row limit for this fetch.
func WithLimit(n int) RecordOption {
	return func(o *recordOpts) {
		if n > 0 {
			o.limit = n
		}
	}
}

// Client defines the portal operations used by the pipeline.
type Client interface {
	// SearchCatalog performs a free-text dataset search.
	SearchCatalog(ctx context.Context, search string) ([]CatalogDataset, error)

	// FetchRecords retrieves a single page of records.
	FetchRecords(ctx context.Context, dataset string, page PageOptions) ([]Record, error)

	// FetchAllRecords retrieves every record of a dataset via offset
	// pagination, pausing between pages. The first short page terminates
	// the sequence; any non-2xx response aborts the whole fetch.
	FetchAllRecords(ctx context.Context, dataset string, opts ...RecordOption) ([]Record, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithPause sets the pause between page requests. Zero disables throttling
// (tests); providers rate-limit by client, so production keeps a pause.
func WithPause(d time.Duration) Option {
	return func(c *httpClient) { c.pause = d }
}

// WithPageSize sets the default pagination page size.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

type httpClient struct {
	domain   string
	pause    time.Duration
	pageSize int
	http     *http.Client
}

// NewClient creates a portal client for the given domain.
func NewClient(domain string, opts ...Option) Client {
	c := &httpClient{
		domain:   strings.TrimRight(domain, "/"),
		pause:    120 * time.Millisecond,
		pageSize: 100,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SearchCatalog(ctx context.Context, search string) ([]CatalogDataset, error) {
	q := url.Values{}
	q.Set("search", search)
	q.Set("limit", "100")

	var resp struct {
		Results []CatalogDataset `json:"results"`
	}
	if err := c.getJSON(ctx, "/api/explore/v2.1/catalog/datasets", q, &resp); err != nil {
		return nil, eris.Wrap(err, "ods: catalog search")
	}
	return resp.Results, nil
}

func (c *httpClient) FetchRecords(ctx context.Context, dataset string, page PageOptions) ([]Record, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(page.Limit))
	q.Set("offset", fmt.Sprint(page.Offset))
	if page.Select != "" {
		q.Set("select", page.Select)
	}
	if page.Where != "" {
		q.Set("where", page.Where)
	}
	if page.OrderBy != "" {
		q.Set("order_by", page.OrderBy)
	}

	path := "/api/explore/v2.1/catalog/datasets/" + url.PathEscape(dataset) + "/records"
	var resp struct {
		Results []Record `json:"results"`
	}
	if err := c.getJSON(ctx, path, q, &resp); err != nil {
		return nil, eris.Wrapf(err, "ods: fetch records %s", dataset)
	}
	return resp.Results, nil
}

func (c *httpClient) FetchAllRecords(ctx context.Context, dataset string, opts ...RecordOption) ([]Record, error) {
	o := recordOpts{limit: c.pageSize}
	for _, opt := range opts {
		opt(&o)
	}

	every := rate.Inf
	if c.pause > 0 {
		every = rate.Every(c.pause)
	}
	limiter := rate.NewLimiter(every, 1)

	var all []Record
	for offset := 0; ; offset += o.limit {
		if err := limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "ods: pagination pause")
		}

		page, err := c.FetchRecords(ctx, dataset, PageOptions{
			Select:  o.selectExpr,
			Where:   o.where,
			OrderBy: o.orderBy,
			Limit:   o.limit,
			Offset:  offset,
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < o.limit {
			return all, nil
		}
	}
}

func (c *httpClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.domain + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Errorf("unexpected status %d from %s", resp.StatusCode, u)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
