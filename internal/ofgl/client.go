// Package ofgl is a minimal client for the OFGL local-finances portal,
// which still runs the legacy Opendatasoft records/1.0 search API.
package ofgl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultDomain is the OFGL portal.
const DefaultDomain = "https://data.ofgl.fr"

// Datasets the pipeline pulls per year. Ids are stable on this portal.
const (
	DatasetCommunes     = "ofgl-base-communes"
	DatasetDepartements = "ofgl-base-departements"
	DatasetRegions      = "ofgl-base-regions"
)

// Client defines the OFGL search operation.
type Client interface {
	// Search fetches up to rows records of a dataset refined to one year.
	Search(ctx context.Context, dataset string, year, rows int) ([]map[string]any, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	domain string
	http   *http.Client
}

// NewClient creates an OFGL client for the given domain.
func NewClient(domain string, opts ...Option) Client {
	c := &httpClient{
		domain: strings.TrimRight(domain, "/"),
		http:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, dataset string, year, rows int) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("dataset", dataset)
	q.Set("rows", strconv.Itoa(rows))
	q.Set("refine.annee", strconv.Itoa(year))

	u := c.domain + "/api/records/1.0/search/?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ofgl: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "ofgl: search %s", dataset)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, eris.Errorf("ofgl: unexpected status %d from %s", resp.StatusCode, u)
	}

	var payload struct {
		Records []struct {
			Fields map[string]any `json:"fields"`
		} `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, eris.Wrap(err, "ofgl: decode response")
	}

	out := make([]map[string]any, 0, len(payload.Records))
	for _, r := range payload.Records {
		out = append(out, r.Fields)
	}
	return out, nil
}
