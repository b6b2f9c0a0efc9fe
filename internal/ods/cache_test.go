package ods

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCacheAvoidsRefetch(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"fields": map[string]any{"cp": 1}}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithPause(0))
	cache := NewRecordCache()

	first, err := cache.FetchAllRecords(context.Background(), c, "ds")
	require.NoError(t, err)
	second, err := cache.FetchAllRecords(context.Background(), c, "ds")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), requests.Load())
}

func TestRecordCacheKeyedByFilter(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithPause(0))
	cache := NewRecordCache()

	_, err := cache.FetchAllRecords(context.Background(), c, "ds", WithWhere("annee = 2024"))
	require.NoError(t, err)
	_, err = cache.FetchAllRecords(context.Background(), c, "ds", WithWhere("annee = 2025"))
	require.NoError(t, err)

	assert.Equal(t, int32(2), requests.Load(), "different filters are distinct entries")
}

func TestRecordCacheDoesNotCacheErrors(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithPause(0))
	cache := NewRecordCache()

	_, err := cache.FetchAllRecords(context.Background(), c, "ds")
	require.Error(t, err)
	_, err = cache.FetchAllRecords(context.Background(), c, "ds")
	require.NoError(t, err, "a failed fetch is retried on the next call")
}
