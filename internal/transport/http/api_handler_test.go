package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"lms-ranking-service/internal/app"
	"lms-ranking-service/internal/domain"
	"lms-ranking-service/internal/infra/memory"
)

type testServer struct {
	*httptest.Server
	feed *app.LeaderboardFeed
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	catalog := memory.NewCatalogCache(memory.NewStaticCourseLoader(map[string]domain.Course{
		"course-1": testCourse(),
	}), time.Minute)
	users := memory.NewUserDirectory([]domain.User{
		{ID: "u1", Name: "Alice", Role: domain.RoleStudent},
		{ID: "u2", Name: "Bob", Role: domain.RoleStudent},
	})
	store := memory.NewProgressStore()

	rankings := app.NewRankingService(catalog, users, store)
	feed := app.NewLeaderboardFeed(rankings)
	progress := app.NewProgressService(catalog, users, store, feed)
	quizzes := app.NewQuizService(catalog, store, app.NewGrader(30*time.Second), feed)

	api := NewAPI(progress, quizzes, rankings)
	r := chi.NewRouter()
	r.Route("/api", api.Routes)
	r.Get("/ws/leaderboard", NewWSHandler(feed).ServeWS)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &testServer{Server: server, feed: feed}
}

func testCourse() domain.Course {
	return domain.Course{
		ID:    "course-1",
		Title: "Networks",
		Modules: []domain.Module{
			{
				ID:    "mod-1",
				Title: "Transport",
				Quiz: &domain.Quiz{
					ID:               "quiz-1",
					TimeLimitMinutes: 10,
					PassingScore:     50,
					Questions: []domain.Question{
						{
							ID:   "q1",
							Text: "TCP is?",
							Choices: []domain.Choice{
								{ID: "a", Text: "connectionless"},
								{ID: "b", Text: "connection-oriented", Correct: true},
							},
						},
						{
							ID:   "q2",
							Text: "UDP guarantees order?",
							Choices: []domain.Choice{
								{ID: "a", Text: "yes"},
								{ID: "b", Text: "no", Correct: true},
							},
						},
					},
				},
			},
			{ID: "mod-2", Title: "Routing"},
		},
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestEnrollCompleteSubmitFlow(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/courses/course-1/enroll", map[string]string{"userId": "u1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enroll status: %d", resp.StatusCode)
	}
	var enrolled map[string]string
	decodeBody(t, resp, &enrolled)
	if enrolled["status"] != "enrolled" {
		t.Fatalf("unexpected enroll body: %v", enrolled)
	}

	resp = postJSON(t, server.URL+"/api/courses/course-1/modules/mod-1/complete", map[string]string{"userId": "u1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status: %d", resp.StatusCode)
	}
	var completed struct {
		CompletedModules   []string `json:"completedModules"`
		ProgressPercentage float64  `json:"progressPercentage"`
	}
	decodeBody(t, resp, &completed)
	if len(completed.CompletedModules) != 1 || completed.ProgressPercentage != 50 {
		t.Fatalf("unexpected completion body: %+v", completed)
	}

	resp = postJSON(t, server.URL+"/api/courses/course-1/modules/mod-1/quiz/submit", map[string]any{
		"userId": "u1",
		"answers": []map[string]string{
			{"questionId": "q1", "choiceId": "b"},
			{"questionId": "q2", "choiceId": "a"},
		},
		"elapsedSeconds": 90,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status: %d", resp.StatusCode)
	}
	var graded struct {
		Score          float64                 `json:"score"`
		TotalQuestions int                     `json:"totalQuestions"`
		TimedOut       bool                    `json:"timedOut"`
		PerQuestion    []domain.GradedQuestion `json:"perQuestion"`
	}
	decodeBody(t, resp, &graded)
	if graded.Score != 50 || graded.TotalQuestions != 2 || graded.TimedOut {
		t.Fatalf("unexpected grade body: %+v", graded)
	}
	if len(graded.PerQuestion) != 2 || !graded.PerQuestion[0].Correct || graded.PerQuestion[1].Correct {
		t.Fatalf("unexpected per-question: %+v", graded.PerQuestion)
	}
}

func TestEnrollConflictAndErrors(t *testing.T) {
	server := newTestServer(t)

	if resp := postJSON(t, server.URL+"/api/courses/course-1/enroll", map[string]string{"userId": "u1"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("enroll status: %d", resp.StatusCode)
	}
	if resp := postJSON(t, server.URL+"/api/courses/course-1/enroll", map[string]string{"userId": "u1"}); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate enroll, got %d", resp.StatusCode)
	}
	if resp := postJSON(t, server.URL+"/api/courses/course-ghost/enroll", map[string]string{"userId": "u1"}); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on unknown course, got %d", resp.StatusCode)
	}
	if resp := postJSON(t, server.URL+"/api/courses/course-1/modules/mod-99/complete", map[string]string{"userId": "u1"}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on foreign module, got %d", resp.StatusCode)
	}

	resp, err := http.Get(server.URL + "/api/courses/course-1/progress?userId=u2")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for not enrolled, got %d", resp.StatusCode)
	}

	if resp := postJSON(t, server.URL+"/api/courses/course-1/modules/mod-1/quiz/submit", map[string]any{
		"userId":  "u1",
		"answers": []map[string]string{{"questionId": "q999", "choiceId": "a"}},
	}); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on invalid submission, got %d", resp.StatusCode)
	}
}

func TestLeaderboardEndpoints(t *testing.T) {
	server := newTestServer(t)

	for _, userID := range []string{"u1", "u2"} {
		if resp := postJSON(t, server.URL+"/api/courses/course-1/enroll", map[string]string{"userId": userID}); resp.StatusCode != http.StatusOK {
			t.Fatalf("enroll %s: %d", userID, resp.StatusCode)
		}
	}
	if resp := postJSON(t, server.URL+"/api/courses/course-1/modules/mod-1/quiz/submit", map[string]any{
		"userId": "u2",
		"answers": []map[string]string{
			{"questionId": "q1", "choiceId": "b"},
			{"questionId": "q2", "choiceId": "b"},
		},
	}); resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: %d", resp.StatusCode)
	}

	resp, err := http.Get(server.URL + "/api/courses/course-1/leaderboard")
	if err != nil {
		t.Fatalf("course leaderboard: %v", err)
	}
	var lb domain.Leaderboard
	decodeBody(t, resp, &lb)
	if len(lb.Entries) != 2 || lb.Entries[0].UserID != "u2" || lb.Entries[0].Rank != 1 {
		t.Fatalf("expected u2 leading, got %+v", lb.Entries)
	}

	resp, err = http.Get(server.URL + "/api/leaderboard?limit=1")
	if err != nil {
		t.Fatalf("global leaderboard: %v", err)
	}
	decodeBody(t, resp, &lb)
	if len(lb.Entries) != 1 {
		t.Fatalf("expected limit respected, got %d entries", len(lb.Entries))
	}

	resp, err = http.Get(server.URL + "/api/rankings/window?userId=u1&courseId=course-1")
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	var window domain.RankWindow
	decodeBody(t, resp, &window)
	if window.UserRank != 2 || window.TotalUsers != 2 || len(window.Neighbors) != 2 {
		t.Fatalf("unexpected window: %+v", window)
	}

	resp, err = http.Get(server.URL + "/api/rankings/window?userId=ghost")
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unranked user, got %d", resp.StatusCode)
	}
}
