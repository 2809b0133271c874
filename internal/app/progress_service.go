package app

import (
	"context"
	"time"

	"lms-ranking-service/internal/domain"
)

// CatalogRepository loads read-only course content (from cache/backing store).
type CatalogRepository interface {
	GetCourse(ctx context.Context, courseID string) (domain.Course, error)
}

// UserDirectory is the read-only view of the identity subsystem.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// ProgressStore is the durable mapping from (user, course) to a progress
// record. Mutating operations are atomic at the store: concurrent calls must
// never produce a duplicate enrollment or a torn completed-module set.
type ProgressStore interface {
	// Create inserts a fresh record and registers the user in the course's
	// enrollment index, both or neither. Returns domain.ErrAlreadyEnrolled
	// when a record already exists.
	Create(ctx context.Context, p domain.Progress) error
	// Get returns a snapshot, or domain.ErrNotEnrolled.
	Get(ctx context.Context, userID, courseID string) (domain.Progress, error)
	// AddCompletedModule adds moduleID to the completed set if absent and
	// stamps the access time. Idempotent. Returns the updated snapshot.
	AddCompletedModule(ctx context.Context, userID, courseID, moduleID string, at time.Time) (domain.Progress, error)
	// AppendAttempt appends an immutable attempt record. Returns the updated
	// snapshot.
	AppendAttempt(ctx context.Context, userID, courseID string, attempt domain.Attempt, at time.Time) (domain.Progress, error)
	// ListByCourse returns snapshots for every user enrolled in the course.
	ListByCourse(ctx context.Context, courseID string) ([]domain.Progress, error)
	// ListAll returns snapshots for every enrollment in the store.
	ListAll(ctx context.Context) ([]domain.Progress, error)
}

// ProgressService is the enrollment and module-completion state machine.
type ProgressService struct {
	catalog  CatalogRepository
	users    UserDirectory
	progress ProgressStore
	feed     *LeaderboardFeed
	now      func() time.Time
}

func NewProgressService(catalog CatalogRepository, users UserDirectory, progress ProgressStore, feed *LeaderboardFeed) *ProgressService {
	return &ProgressService{
		catalog:  catalog,
		users:    users,
		progress: progress,
		feed:     feed,
		now:      time.Now,
	}
}

// NewProgressServiceWithClock is test-only for deterministic timestamps.
func NewProgressServiceWithClock(catalog CatalogRepository, users UserDirectory, progress ProgressStore, feed *LeaderboardFeed, now func() time.Time) *ProgressService {
	s := NewProgressService(catalog, users, progress, feed)
	s.now = now
	return s
}

// Enroll creates an empty progress record for (user, course). The store
// insert is the compare-and-set: a second concurrent enroll loses and gets
// domain.ErrAlreadyEnrolled.
func (s *ProgressService) Enroll(ctx context.Context, userID, courseID string) error {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return err
	}
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}

	record := domain.Progress{
		UserID:           userID,
		CourseID:         courseID,
		CompletedModules: []string{},
		Attempts:         []domain.Attempt{},
		LastAccessedAt:   s.now(),
	}
	if len(course.Modules) > 0 {
		record.CurrentModuleID = course.Modules[0].ID
	}
	if err := s.progress.Create(ctx, record); err != nil {
		return err
	}
	s.feed.Publish(ctx, courseID)
	return nil
}

// MarkModuleComplete records completion of a module. Repeat calls with the
// same arguments are no-ops that still refresh the access time.
func (s *ProgressService) MarkModuleComplete(ctx context.Context, userID, courseID, moduleID string) (domain.ProgressView, error) {
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return domain.ProgressView{}, err
	}
	if !course.HasModule(moduleID) {
		return domain.ProgressView{}, domain.ErrModuleNotInCourse
	}

	record, err := s.progress.AddCompletedModule(ctx, userID, courseID, moduleID, s.now())
	if err != nil {
		return domain.ProgressView{}, err
	}
	s.feed.Publish(ctx, courseID)
	return progressView(course, record), nil
}

// GetProgress returns the record plus its computed percentage. A missing
// enrollment is an error, never a zeroed success.
func (s *ProgressService) GetProgress(ctx context.Context, userID, courseID string) (domain.ProgressView, error) {
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return domain.ProgressView{}, err
	}
	record, err := s.progress.Get(ctx, userID, courseID)
	if err != nil {
		return domain.ProgressView{}, err
	}
	return progressView(course, record), nil
}

func progressView(course domain.Course, record domain.Progress) domain.ProgressView {
	return domain.ProgressView{
		Progress:           record,
		ProgressPercentage: ProgressPercentage(len(record.CompletedModules), len(course.Modules)),
		TotalModules:       len(course.Modules),
		CompletedModules:   len(record.CompletedModules),
	}
}
