package ods

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRecordsServer serves total synthetic records honoring limit/offset.
func newRecordsServer(t *testing.T, total int, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		var results []map[string]any
		for i := offset; i < offset+limit && i < total; i++ {
			results = append(results, map[string]any{
				"fields": map[string]any{"seq": i},
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
}

func TestFetchAllRecordsPagination(t *testing.T) {
	var requests atomic.Int32
	srv := newRecordsServer(t, 250, &requests)
	defer srv.Close()

	c := NewClient(srv.URL, WithPause(0))
	recs, err := c.FetchAllRecords(context.Background(), "ds")
	require.NoError(t, err)

	assert.Len(t, recs, 250)
	assert.Equal(t, int32(3), requests.Load(), "two full pages plus the short page")
	for i, r := range recs {
		assert.Equal(t, float64(i), r.Fields["seq"], "original order, no duplicates")
	}
}

func TestFetchAllRecordsExactMultiple(t *testing.T) {
	// 200 records at page size 100: the third request returns zero rows
	// and terminates; this extra request is expected.
	var requests atomic.Int32
	srv := newRecordsServer(t, 200, &requests)
	defer srv.Close()

	c := NewClient(srv.URL, WithPause(0))
	recs, err := c.FetchAllRecords(context.Background(), "ds")
	require.NoError(t, err)

	assert.Len(t, recs, 200)
	assert.Equal(t, int32(3), requests.Load())
}

func TestFetchAllRecordsLimitOverride(t *testing.T) {
	// WithPageSize sets the client default; WithLimit overrides one fetch.
	var requests atomic.Int32
	srv := newRecordsServer(t, 9, &requests)
	defer srv.Close()

	c := NewClient(srv.URL, WithPause(0), WithPageSize(3))
	recs, err := c.FetchAllRecords(context.Background(), "ds", WithLimit(5))
	require.NoError(t, err)

	assert.Len(t, recs, 9)
	assert.Equal(t, int32(2), requests.Load(), "one full page of five plus the short page")
}

func TestFetchAllRecordsEmptyDataset(t *testing.T) {
	var requests atomic.Int32
	srv := newRecordsServer(t, 0, &requests)
	defer srv.Close()

	c := NewClient(srv.URL, WithPause(0))
	recs, err := c.FetchAllRecords(context.Background(), "ds")
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, int32(1), requests.Load())
}

func TestFetchAllRecordsAbortsOnError(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 2 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		results := make([]map[string]any, 100)
		for i := range results {
			results[i] = map[string]any{"fields": map[string]any{"seq": i}}
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithPause(0))
	_, err := c.FetchAllRecords(context.Background(), "ds")
	require.Error(t, err, "a failed page fails the whole fetch")
	assert.Contains(t, err.Error(), "502")
}

func TestFetchRecordsPassesFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "annee = 2025", q.Get("where"))
		assert.Equal(t, "cp", q.Get("select"))
		assert.Equal(t, "cp desc", q.Get("order_by"))
		assert.Equal(t, "/api/explore/v2.1/catalog/datasets/plf25-depenses/records", r.URL.Path)
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithPause(0))
	_, err := c.FetchAllRecords(context.Background(), "plf25-depenses",
		WithWhere("annee = 2025"), WithSelect("cp"), WithOrderBy("cp desc"))
	require.NoError(t, err)
}

func TestRecordUnmarshalShapes(t *testing.T) {
	var recs []Record
	payload := `[
		{"id":"a","fields":{"cp":1}},
		{"record":{"id":"b","fields":{"cp":2}}},
		{"id":"c","cp":3}
	]`
	require.NoError(t, json.Unmarshal([]byte(payload), &recs))

	assert.Equal(t, float64(1), recs[0].Fields["cp"])
	assert.Equal(t, "b", recs[1].ID)
	assert.Equal(t, float64(2), recs[1].Fields["cp"])
	assert.Equal(t, float64(3), recs[2].Fields["cp"], "flat rows become fields")
	assert.NotContains(t, recs[2].Fields, "id")
}

func TestSearchCatalogTitleShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025 depenses destination", r.URL.Query().Get("search"))
		fmt.Fprint(w, `{"results":[
			{"dataset_id":"plf25-depenses","title":"PLF 2025 Depenses"},
			{"dataset_id":"lfi24-budget","dataset":{"metas":{"title":"LFI 2024"}}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	results, err := c.SearchCatalog(context.Background(), "2025 depenses destination")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "PLF 2025 Depenses", results[0].Title)
	assert.Equal(t, "LFI 2024", results[1].Title, "nested metas title")
}

func TestSearchCatalogError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.SearchCatalog(context.Background(), "x")
	require.Error(t, err)
}
