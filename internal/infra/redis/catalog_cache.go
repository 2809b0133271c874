package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"lms-ranking-service/internal/domain"
)

// CourseLoader fetches course content from a backing store (e.g., Postgres).
type CourseLoader interface {
	LoadCourse(ctx context.Context, courseID string) (domain.Course, error)
}

// CatalogCache caches course documents in Redis (one JSON value per course)
// and falls back to a loader on cache miss. Courses are stored as:
//
//	SET catalog:course:{courseID} {json} EX ttl
//
// The cached document includes the quiz answer keys; this cache is internal
// to the service and never leaves through a learner-facing response without
// projection.
type CatalogCache struct {
	client *redis.Client
	loader CourseLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewCatalogCache(client *redis.Client, loader CourseLoader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) GetCourse(ctx context.Context, courseID string) (domain.Course, error) {
	key := c.courseKey(courseID)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return unmarshalCourse(raw)
	}
	if !errors.Is(err, redis.Nil) {
		// Cache unavailable: serve from the loader rather than failing reads.
		return c.loader.LoadCourse(ctx, courseID)
	}

	result, err, _ := c.sf.Do(courseID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		raw, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return unmarshalCourse(raw)
		}

		course, err := c.loader.LoadCourse(ctx, courseID)
		if err != nil {
			return domain.Course{}, err
		}

		payload, err := json.Marshal(course)
		if err != nil {
			return domain.Course{}, fmt.Errorf("marshal course: %w", err)
		}
		_ = c.client.Set(ctx, key, payload, c.ttlWithJitter()).Err()
		return course, nil
	})
	if err != nil {
		return domain.Course{}, err
	}
	return result.(domain.Course), nil
}

func (c *CatalogCache) courseKey(courseID string) string {
	return "catalog:course:" + courseID
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func unmarshalCourse(raw []byte) (domain.Course, error) {
	var course domain.Course
	if err := json.Unmarshal(raw, &course); err != nil {
		return domain.Course{}, fmt.Errorf("unmarshal course: %w", err)
	}
	return course, nil
}
