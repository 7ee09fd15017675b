// Package cache provides an executor.Executor decorator that memoizes
// search results.
//
// Requests are keyed by a 128-bit xxh3 hash of their msgpack encoding, with
// the query id left out, so two searches that differ only in id share an
// entry. Results are held as zstd-compressed Arrow IPC and evicted in LRU
// order once the byte capacity is reached, or dropped after the TTL.
// Concurrent misses on one key run the backend once.
package cache

import (
	"container/list"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"

	"github.com/hugr-lab/doris-vector-go/executor"
	"github.com/hugr-lab/doris-vector-go/internal/msgpack"
	"github.com/hugr-lab/doris-vector-go/internal/serialize"
)

// DefaultCapacity is the byte capacity used when Config.Capacity is 0.
const DefaultCapacity int64 = 64 << 20

// ErrNoExecutor is returned when Config.Executor is nil.
var ErrNoExecutor = errors.New("cache: executor is required")

// Config contains configuration for the caching executor.
type Config struct {
	// Executor runs requests that miss the cache.
	// REQUIRED: MUST be non-nil.
	Executor executor.Executor

	// Capacity bounds the compressed size of all entries in bytes.
	// Results larger than Capacity are returned but not cached.
	// OPTIONAL: Uses DefaultCapacity if 0.
	Capacity int64

	// TTL is how long an entry stays valid.
	// OPTIONAL: If 0, entries only leave by eviction.
	TTL time.Duration

	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	Bytes     int64
}

type entry struct {
	key     xxh3.Uint128
	payload []byte
	expires time.Time
}

// Executor is a caching executor.Executor.
// Safe for concurrent use.
type Executor struct {
	next     executor.Executor
	codec    *serialize.Codec
	capacity int64
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	size      int64
	items     map[xxh3.Uint128]*list.Element
	evictList *list.List

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

var _ executor.Executor = (*Executor)(nil)

// New wraps config.Executor with a result cache.
// Caller must call Close() when done.
func New(config Config) (*Executor, error) {
	if config.Executor == nil {
		return nil, ErrNoExecutor
	}
	if config.Capacity < 0 || config.TTL < 0 {
		return nil, fmt.Errorf("cache: capacity and ttl must not be negative")
	}

	codec, err := serialize.NewCodec(config.Allocator)
	if err != nil {
		return nil, err
	}

	capacity := config.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		next:      config.Executor,
		codec:     codec,
		capacity:  capacity,
		ttl:       config.TTL,
		logger:    logger,
		now:       time.Now,
		items:     make(map[xxh3.Uint128]*list.Element),
		evictList: list.New(),
	}, nil
}

// Key returns the cache key of req.
func Key(req executor.Request) (xxh3.Uint128, error) {
	data, err := msgpack.EncodeRequest(req)
	if err != nil {
		return xxh3.Uint128{}, err
	}
	return xxh3.Hash128(data), nil
}

// Execute implements executor.Executor.
func (c *Executor) Execute(ctx context.Context, req executor.Request) (array.RecordReader, error) {
	key, err := Key(req)
	if err != nil {
		c.logger.Warn("Request not cacheable", "query_id", req.QueryID, "error", err)
		return c.next.Execute(ctx, req)
	}

	if payload, ok := c.get(key); ok {
		c.hits.Add(1)
		c.logger.Debug("Cache hit", "query_id", req.QueryID, "key", keyString(key))
		return c.reader(payload)
	}
	c.misses.Add(1)

	// The backend call outlives any single waiter; each waiter honors its own ctx.
	ch := c.group.DoChan(keyString(key), func() (any, error) {
		return c.fill(context.WithoutCancel(ctx), key, req)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("Cache miss shared with in-flight request", "query_id", req.QueryID)
		}
		return c.reader(res.Val.([]byte))
	}
}

// fill runs req on the backend and stores the encoded result.
func (c *Executor) fill(ctx context.Context, key xxh3.Uint128, req executor.Request) ([]byte, error) {
	rdr, err := c.next.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if rdr == nil {
		return nil, fmt.Errorf("executor returned no result")
	}
	defer rdr.Release()

	var records []arrow.Record
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := rdr.Err(); err != nil {
		return nil, err
	}

	payload, err := c.codec.Encode(rdr.Schema(), records)
	if err != nil {
		return nil, err
	}
	c.set(key, payload)
	return payload, nil
}

func (c *Executor) reader(payload []byte) (array.RecordReader, error) {
	schema, records, err := c.codec.Decode(payload)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()
	return array.NewRecordReader(schema, records)
}

func (c *Executor) get(key xxh3.Uint128) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*entry)
	if !ent.expires.IsZero() && !c.now().Before(ent.expires) {
		c.removeElement(el)
		return nil, false
	}
	c.evictList.MoveToFront(el)
	return ent.payload, true
}

func (c *Executor) set(key xxh3.Uint128, payload []byte) {
	size := int64(len(payload))
	if size > c.capacity {
		c.logger.Debug("Result too large to cache", "key", keyString(key), "bytes", size)
		return
	}

	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
	for c.size+size > c.capacity {
		el := c.evictList.Back()
		if el == nil {
			break
		}
		c.removeElement(el)
		c.evictions.Add(1)
	}

	c.items[key] = c.evictList.PushFront(&entry{key: key, payload: payload, expires: expires})
	c.size += size
}

func (c *Executor) removeElement(el *list.Element) {
	ent := c.evictList.Remove(el).(*entry)
	delete(c.items, ent.key)
	c.size -= int64(len(ent.payload))
}

// Purge drops every entry.
func (c *Executor) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[xxh3.Uint128]*list.Element)
	c.evictList.Init()
	c.size = 0
}

// Stats returns current counters.
func (c *Executor) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   len(c.items),
		Bytes:     c.size,
	}
}

// Close releases the codec and closes the wrapped executor if it is an
// io.Closer.
func (c *Executor) Close() error {
	var errs []error
	if err := c.codec.Close(); err != nil {
		errs = append(errs, err)
	}
	if closer, ok := c.next.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func keyString(key xxh3.Uint128) string {
	b := key.Bytes()
	return hex.EncodeToString(b[:])
}
