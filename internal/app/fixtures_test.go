package app_test

import (
	"time"

	"lms-ranking-service/internal/app"
	"lms-ranking-service/internal/domain"
	"lms-ranking-service/internal/infra/memory"
)

var testClock = func() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

type testEnv struct {
	store    *memory.ProgressStore
	progress *app.ProgressService
	quizzes  *app.QuizService
	rankings *app.RankingService
	feed     *app.LeaderboardFeed
}

// newTestEnv wires the services against in-memory infrastructure: one course
// with four modules, the first carrying a two-question quiz.
func newTestEnv() *testEnv {
	catalog := memory.NewCatalogCache(memory.NewStaticCourseLoader(map[string]domain.Course{
		"course-1": testCourse(),
	}), 5*time.Minute)
	users := memory.NewUserDirectory([]domain.User{
		{ID: "u1", Name: "Alice", Role: domain.RoleStudent},
		{ID: "u2", Name: "Bob", Role: domain.RoleStudent},
		{ID: "u3", Name: "Carol", Role: domain.RoleStudent},
		{ID: "u4", Name: "Dave", Role: domain.RoleStudent},
	})
	store := memory.NewProgressStore()

	rankings := app.NewRankingServiceWithClock(catalog, users, store, testClock)
	feed := app.NewLeaderboardFeed(rankings)
	grader := app.NewGraderWithClock(30*time.Second, testClock, sequentialIDs())

	return &testEnv{
		store:    store,
		progress: app.NewProgressServiceWithClock(catalog, users, store, feed, testClock),
		quizzes:  app.NewQuizService(catalog, store, grader, feed),
		rankings: rankings,
		feed:     feed,
	}
}

func testCourse() domain.Course {
	return domain.Course{
		ID:    "course-1",
		Title: "Distributed Systems",
		Modules: []domain.Module{
			{
				ID:    "mod-1",
				Title: "Consensus",
				Order: 0,
				Quiz: &domain.Quiz{
					ID:               "quiz-1",
					TimeLimitMinutes: 10,
					PassingScore:     70,
					Questions: []domain.Question{
						{
							ID:   "q1",
							Text: "Quorum size for 5 nodes?",
							Choices: []domain.Choice{
								{ID: "a", Text: "2"},
								{ID: "b", Text: "3", Correct: true},
							},
						},
						{
							ID:   "q2",
							Text: "Does Raft elect a leader?",
							Choices: []domain.Choice{
								{ID: "a", Text: "yes", Correct: true},
								{ID: "b", Text: "no"},
							},
						},
					},
				},
			},
			{ID: "mod-2", Title: "Replication", Order: 1},
			{ID: "mod-3", Title: "Sharding", Order: 2},
			{ID: "mod-4", Title: "Caching", Order: 3},
		},
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "attempt-" + string(rune('a'+n-1))
	}
}
