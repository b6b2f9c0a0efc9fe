package ods

import (
	"context"
	"strconv"
	"sync"
)

// RecordCache memoizes full dataset fetches for the lifetime of one pipeline
// run, so tracks sharing a dataset do not pull it twice. It must not outlive
// the run: dataset ids are reassigned across budget cycles.
type RecordCache struct {
	mu      sync.Mutex
	entries map[string][]Record
}

// NewRecordCache creates an empty cache.
func NewRecordCache() *RecordCache {
	return &RecordCache{entries: make(map[string][]Record)}
}

// FetchAllRecords returns cached records for the dataset/filter combination
// or fetches them through the client. Failed fetches are not cached.
func (rc *RecordCache) FetchAllRecords(ctx context.Context, c Client, dataset string, opts ...RecordOption) ([]Record, error) {
	o := recordOpts{}
	for _, opt := range opts {
		opt(&o)
	}
	key := dataset + "|" + o.selectExpr + "|" + o.where + "|" + o.orderBy + "|" + strconv.Itoa(o.limit)

	rc.mu.Lock()
	cached, ok := rc.entries[key]
	rc.mu.Unlock()
	if ok {
		return cached, nil
	}

	recs, err := c.FetchAllRecords(ctx, dataset, opts...)
	if err != nil {
		return nil, err
	}

	rc.mu.Lock()
	rc.entries[key] = recs
	rc.mu.Unlock()
	return recs, nil
}
