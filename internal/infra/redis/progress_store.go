package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"lms-ranking-service/internal/domain"
)

// maxTxRetries bounds optimistic-lock retries when concurrent writers touch
// the same progress record.
const maxTxRetries = 5

// ProgressStore is a Redis-backed implementation of app.ProgressStore.
// Layout:
//
//	progress:{courseID}:{userID}  JSON progress record
//	course:{courseID}:users       SET enrollment index (course -> users)
//	progress:courses              SET of course ids with any enrollment
//
// Enrollment creates the record and its index entries inside one WATCH/MULTI
// transaction, so both sides of the membership are written or neither is.
// Completion and attempt appends are read-modify-write under WATCH, which
// closes the torn-set race at the storage layer.
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func (s *ProgressStore) Create(ctx context.Context, p domain.Progress) error {
	key := s.recordKey(p.UserID, p.CourseID)
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	txn := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return domain.ErrAlreadyEnrolled
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.SAdd(ctx, s.courseUsersKey(p.CourseID), p.UserID)
			pipe.SAdd(ctx, s.coursesKey(), p.CourseID)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, domain.ErrAlreadyEnrolled) {
			return domain.ErrAlreadyEnrolled
		}
		return fmt.Errorf("create progress: %w", err)
	}
	// Another writer kept winning the key; the record exists now.
	return domain.ErrAlreadyEnrolled
}

func (s *ProgressStore) Get(ctx context.Context, userID, courseID string) (domain.Progress, error) {
	raw, err := s.client.Get(ctx, s.recordKey(userID, courseID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Progress{}, domain.ErrNotEnrolled
	}
	if err != nil {
		return domain.Progress{}, fmt.Errorf("get progress: %w", err)
	}
	return unmarshalProgress(raw)
}

func (s *ProgressStore) AddCompletedModule(ctx context.Context, userID, courseID, moduleID string, at time.Time) (domain.Progress, error) {
	return s.update(ctx, userID, courseID, func(record *domain.Progress) {
		if !record.Completed(moduleID) {
			record.CompletedModules = append(record.CompletedModules, moduleID)
		}
		record.CurrentModuleID = moduleID
		record.LastAccessedAt = at
	})
}

func (s *ProgressStore) AppendAttempt(ctx context.Context, userID, courseID string, attempt domain.Attempt, at time.Time) (domain.Progress, error) {
	return s.update(ctx, userID, courseID, func(record *domain.Progress) {
		record.Attempts = append(record.Attempts, attempt)
		record.LastAccessedAt = at
	})
}

// update applies fn to the stored record inside a WATCH/MULTI transaction,
// retrying a bounded number of times when a concurrent writer invalidates
// the watched key.
func (s *ProgressStore) update(ctx context.Context, userID, courseID string, fn func(*domain.Progress)) (domain.Progress, error) {
	key := s.recordKey(userID, courseID)
	var updated domain.Progress

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotEnrolled
		}
		if err != nil {
			return err
		}
		record, err := unmarshalProgress(raw)
		if err != nil {
			return err
		}
		fn(&record)
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal progress: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err == nil {
			updated = record
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, domain.ErrNotEnrolled) {
			return domain.Progress{}, domain.ErrNotEnrolled
		}
		return domain.Progress{}, fmt.Errorf("update progress: %w", err)
	}
	return domain.Progress{}, fmt.Errorf("update progress: transaction contention on %s", key)
}

func (s *ProgressStore) ListByCourse(ctx context.Context, courseID string) ([]domain.Progress, error) {
	userIDs, err := s.client.SMembers(ctx, s.courseUsersKey(courseID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list course users: %w", err)
	}
	sort.Strings(userIDs)
	if len(userIDs) == 0 {
		return []domain.Progress{}, nil
	}

	keys := make([]string, len(userIDs))
	for i, userID := range userIDs {
		keys[i] = s.recordKey(userID, courseID)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load progress records: %w", err)
	}

	out := make([]domain.Progress, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Index member without a record: a racing enroll whose record
			// read we lost; skip rather than fail the whole scan.
			continue
		}
		record, err := unmarshalProgress([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *ProgressStore) ListAll(ctx context.Context) ([]domain.Progress, error) {
	courseIDs, err := s.client.SMembers(ctx, s.coursesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	sort.Strings(courseIDs)

	out := []domain.Progress{}
	for _, courseID := range courseIDs {
		records, err := s.ListByCourse(ctx, courseID)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

func (s *ProgressStore) recordKey(userID, courseID string) string {
	return "progress:" + courseID + ":" + userID
}

func (s *ProgressStore) courseUsersKey(courseID string) string {
	return "course:" + courseID + ":users"
}

func (s *ProgressStore) coursesKey() string {
	return "progress:courses"
}

func unmarshalProgress(raw []byte) (domain.Progress, error) {
	var record domain.Progress
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.Progress{}, fmt.Errorf("unmarshal progress: %w", err)
	}
	return record, nil
}
