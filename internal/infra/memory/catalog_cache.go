package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"lms-ranking-service/internal/domain"
)

// CourseLoader fetches course content from a backing store (e.g., Postgres).
type CourseLoader interface {
	LoadCourse(ctx context.Context, courseID string) (domain.Course, error)
}

// CatalogCache caches courses with TTL to avoid repeated catalog hits. The
// catalog is read-only for this service, so a stale-for-TTL copy is safe.
type CatalogCache struct {
	loader CourseLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedCourse
}

type cachedCourse struct {
	course    domain.Course
	expiresAt time.Time
}

func NewCatalogCache(loader CourseLoader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedCourse),
	}
}

func (c *CatalogCache) GetCourse(ctx context.Context, courseID string) (domain.Course, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[courseID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.course, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(courseID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[courseID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.course, nil
		}
		c.mu.RUnlock()

		course, err := c.loader.LoadCourse(ctx, courseID)
		if err != nil {
			return domain.Course{}, err
		}

		c.mu.Lock()
		c.cache[courseID] = cachedCourse{
			course:    course,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return course, nil
	})
	if err != nil {
		return domain.Course{}, err
	}
	return result.(domain.Course), nil
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticCourseLoader is a loader backed by an in-memory map (useful for
// tests/demos).
type StaticCourseLoader struct {
	courses map[string]domain.Course
}

func NewStaticCourseLoader(courses map[string]domain.Course) *StaticCourseLoader {
	return &StaticCourseLoader{courses: courses}
}

func (l *StaticCourseLoader) LoadCourse(_ context.Context, courseID string) (domain.Course, error) {
	if course, ok := l.courses[courseID]; ok {
		return course, nil
	}
	return domain.Course{}, domain.ErrCourseNotFound
}
