package app

import (
	"context"
	"sort"
	"time"

	"lms-ranking-service/internal/domain"
)

// DefaultLeaderboardLimit caps a global leaderboard page when the caller
// does not ask for a specific size.
const DefaultLeaderboardLimit = 100

// windowRadius is how many neighbors UserWindow returns on each side.
const windowRadius = 5

// RankingService builds total orders over users from current progress data.
// Every query is a synchronous, read-only scan-and-sort; it may observe a
// slightly stale view during concurrent writes, which is acceptable for a
// leaderboard, but each user appears exactly once.
type RankingService struct {
	catalog  CatalogRepository
	users    UserDirectory
	progress ProgressStore
	now      func() time.Time
}

func NewRankingService(catalog CatalogRepository, users UserDirectory, progress ProgressStore) *RankingService {
	return &RankingService{
		catalog:  catalog,
		users:    users,
		progress: progress,
		now:      time.Now,
	}
}

// NewRankingServiceWithClock is test-only for deterministic timestamps.
func NewRankingServiceWithClock(catalog CatalogRepository, users UserDirectory, progress ProgressStore, now func() time.Time) *RankingService {
	s := NewRankingService(catalog, users, progress)
	s.now = now
	return s
}

// GlobalLeaderboard ranks every known user by accumulated quiz points,
// descending, ties broken by ascending user id.
func (s *RankingService) GlobalLeaderboard(ctx context.Context, limit int) (domain.Leaderboard, error) {
	entries, err := s.globalEntries(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: s.now()}, nil
}

// CourseLeaderboard ranks users enrolled in the course by the blended 0-100
// course score.
func (s *RankingService) CourseLeaderboard(ctx context.Context, courseID string) (domain.Leaderboard, error) {
	entries, err := s.courseEntries(ctx, courseID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{CourseID: courseID, Entries: entries, UpdatedAt: s.now()}, nil
}

// UserWindow locates the user in the full ordering (global when courseID is
// empty) and returns up to windowRadius neighbors on each side, clamped at
// both ends. Each entry keeps its absolute rank.
func (s *RankingService) UserWindow(ctx context.Context, userID, courseID string) (domain.RankWindow, error) {
	var (
		entries []domain.LeaderboardEntry
		err     error
	)
	if courseID == "" {
		entries, err = s.globalEntries(ctx)
	} else {
		entries, err = s.courseEntries(ctx, courseID)
	}
	if err != nil {
		return domain.RankWindow{}, err
	}

	idx := -1
	for i := range entries {
		if entries[i].UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.RankWindow{}, domain.ErrNotRanked
	}

	start := idx - windowRadius
	if start < 0 {
		start = 0
	}
	end := idx + windowRadius + 1
	if end > len(entries) {
		end = len(entries)
	}

	return domain.RankWindow{
		UserRank:   idx + 1,
		TotalUsers: len(entries),
		Neighbors:  append([]domain.LeaderboardEntry(nil), entries[start:end]...),
	}, nil
}

func (s *RankingService) globalEntries(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.progress.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string][]domain.Progress, len(users))
	for _, record := range records {
		byUser[record.UserID] = append(byUser[record.UserID], record)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(users))
	for _, user := range users {
		userRecords := byUser[user.ID]
		completed := 0
		for _, record := range userRecords {
			completed += len(record.CompletedModules)
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:           user.ID,
			Name:             user.Name,
			Score:            GlobalScore(userRecords),
			CompletedModules: completed,
		})
	}
	rankEntries(entries)
	return entries, nil
}

func (s *RankingService) courseEntries(ctx context.Context, courseID string) ([]domain.LeaderboardEntry, error) {
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	records, err := s.progress.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, user := range users {
		names[user.ID] = user.Name
	}

	entries := make([]domain.LeaderboardEntry, 0, len(records))
	for _, record := range records {
		average := QuizAverage(record)
		pct := ProgressPercentage(len(record.CompletedModules), len(course.Modules))
		entries = append(entries, domain.LeaderboardEntry{
			UserID:           record.UserID,
			Name:             names[record.UserID],
			Score:            CourseScore(average, pct),
			AverageScore:     average,
			CompletedModules: len(record.CompletedModules),
		})
	}
	rankEntries(entries)
	return entries, nil
}

// rankEntries sorts in place by score descending with a deterministic
// tie-break on ascending user id, then assigns 1-based ranks.
func rankEntries(entries []domain.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
