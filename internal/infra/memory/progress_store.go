package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"lms-ranking-service/internal/domain"
)

type progressKey struct {
	userID   string
	courseID string
}

// ProgressStore is an in-memory implementation of app.ProgressStore. A
// single mutex makes every mutation atomic: record insert and enrollment
// index update happen under one critical section, and completed-module adds
// are read-modify-write inside the lock.
type ProgressStore struct {
	mu       sync.RWMutex
	records  map[progressKey]*domain.Progress
	byCourse map[string]map[string]struct{}
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		records:  make(map[progressKey]*domain.Progress),
		byCourse: make(map[string]map[string]struct{}),
	}
}

func (s *ProgressStore) Create(_ context.Context, p domain.Progress) error {
	key := progressKey{userID: p.UserID, courseID: p.CourseID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; ok {
		return domain.ErrAlreadyEnrolled
	}
	record := p.Clone()
	s.records[key] = &record
	if s.byCourse[p.CourseID] == nil {
		s.byCourse[p.CourseID] = make(map[string]struct{})
	}
	s.byCourse[p.CourseID][p.UserID] = struct{}{}
	return nil
}

func (s *ProgressStore) Get(_ context.Context, userID, courseID string) (domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[progressKey{userID: userID, courseID: courseID}]
	if !ok {
		return domain.Progress{}, domain.ErrNotEnrolled
	}
	return record.Clone(), nil
}

func (s *ProgressStore) AddCompletedModule(_ context.Context, userID, courseID, moduleID string, at time.Time) (domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[progressKey{userID: userID, courseID: courseID}]
	if !ok {
		return domain.Progress{}, domain.ErrNotEnrolled
	}
	if !record.Completed(moduleID) {
		record.CompletedModules = append(record.CompletedModules, moduleID)
	}
	record.CurrentModuleID = moduleID
	record.LastAccessedAt = at
	return record.Clone(), nil
}

func (s *ProgressStore) AppendAttempt(_ context.Context, userID, courseID string, attempt domain.Attempt, at time.Time) (domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[progressKey{userID: userID, courseID: courseID}]
	if !ok {
		return domain.Progress{}, domain.ErrNotEnrolled
	}
	attempt.Answers = append([]domain.AnswerRecord(nil), attempt.Answers...)
	record.Attempts = append(record.Attempts, attempt)
	record.LastAccessedAt = at
	return record.Clone(), nil
}

func (s *ProgressStore) ListByCourse(_ context.Context, courseID string) ([]domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userIDs := make([]string, 0, len(s.byCourse[courseID]))
	for userID := range s.byCourse[courseID] {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	out := make([]domain.Progress, 0, len(userIDs))
	for _, userID := range userIDs {
		if record, ok := s.records[progressKey{userID: userID, courseID: courseID}]; ok {
			out = append(out, record.Clone())
		}
	}
	return out, nil
}

func (s *ProgressStore) ListAll(_ context.Context) ([]domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Progress, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CourseID != out[j].CourseID {
			return out[i].CourseID < out[j].CourseID
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}
