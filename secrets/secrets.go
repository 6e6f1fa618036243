package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

// ErrNotFound is returned when a parameter does not exist in the store.
var ErrNotFound = errors.New("secret parameter not found")

// Source resolves named configuration secrets from an external store.
type Source interface {
	Get(ctx context.Context, name string) (string, error)
}

const parameterPartition = "param"

// TableSource reads parameters from a key-value table. Each entity lives in
// one partition with the parameter name as row key and a single Value column.
type TableSource struct {
	table *aztables.Client
}

// NewTableSource creates a TableSource from the given connection string.
func NewTableSource(connStr, table string) (*TableSource, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &TableSource{table: svc.NewClient(table)}, nil
}

// Get resolves a parameter value. The value itself is never logged here.
func (s *TableSource) Get(ctx context.Context, name string) (string, error) {
	ent, err := s.table.GetEntity(ctx, parameterPartition, name, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return "", ErrNotFound
		}
		return "", err
	}
	var raw struct {
		Value string `json:"Value"`
	}
	if err := json.Unmarshal(ent.Value, &raw); err != nil {
		return "", err
	}
	if raw.Value == "" {
		return "", ErrNotFound
	}
	return raw.Value, nil
}

// StaticSource serves parameters from a fixed map, for local runs and tests.
type StaticSource map[string]string

func (s StaticSource) Get(_ context.Context, name string) (string, error) {
	value, ok := s[name]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

type cachedValue struct {
	value     string
	expiresAt time.Time
}

// Cached decorates a Source with a per-name TTL cache. Secret resolution sits
// on the hot path of every authorized request, so lookups must not hit the
// store each time. A zero TTL disables caching.
type Cached struct {
	src     Source
	ttl     time.Duration
	entries sync.Map

	now func() time.Time
}

// NewCached wraps src with the given TTL.
func NewCached(src Source, ttl time.Duration) *Cached {
	return &Cached{src: src, ttl: ttl, now: time.Now}
}

func (c *Cached) Get(ctx context.Context, name string) (string, error) {
	if c.ttl > 0 {
		if cached, ok := c.entries.Load(name); ok {
			entry := cached.(cachedValue)
			if c.now().Before(entry.expiresAt) {
				return entry.value, nil
			}
			c.entries.Delete(name)
		}
	}

	value, err := c.src.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if c.ttl > 0 {
		c.entries.Store(name, cachedValue{value: value, expiresAt: c.now().Add(c.ttl)})
	}
	return value, nil
}
