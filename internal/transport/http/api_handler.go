package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lms-ranking-service/internal/app"
	"lms-ranking-service/internal/domain"
)

// API exposes the progress, grading, and ranking use cases over REST. The
// authenticated principal arrives as an explicit userId on every request;
// no session state lives in this service.
type API struct {
	progress *app.ProgressService
	quizzes  *app.QuizService
	rankings *app.RankingService
}

func NewAPI(progress *app.ProgressService, quizzes *app.QuizService, rankings *app.RankingService) *API {
	return &API{progress: progress, quizzes: quizzes, rankings: rankings}
}

// Routes mounts all REST endpoints on r.
func (a *API) Routes(r chi.Router) {
	r.Route("/courses/{courseID}", func(cr chi.Router) {
		cr.Post("/enroll", a.handleEnroll)
		cr.Get("/progress", a.handleGetProgress)
		cr.Get("/leaderboard", a.handleCourseLeaderboard)
		cr.Route("/modules/{moduleID}", func(mr chi.Router) {
			mr.Post("/complete", a.handleCompleteModule)
			mr.Get("/quiz", a.handleGetQuiz)
			mr.Post("/quiz/submit", a.handleSubmitQuiz)
		})
	})
	r.Get("/leaderboard", a.handleGlobalLeaderboard)
	r.Get("/rankings/window", a.handleUserWindow)
}

type principalPayload struct {
	UserID string `json:"userId"`
}

func (a *API) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req principalPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeBadRequest(w, "userId required")
		return
	}
	if err := a.progress.Enroll(r.Context(), req.UserID, chi.URLParam(r, "courseID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "enrolled"})
}

func (a *API) handleCompleteModule(w http.ResponseWriter, r *http.Request) {
	var req principalPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeBadRequest(w, "userId required")
		return
	}
	view, err := a.progress.MarkModuleComplete(r.Context(), req.UserID, chi.URLParam(r, "courseID"), chi.URLParam(r, "moduleID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"completedModules":   view.Progress.CompletedModules,
		"progressPercentage": view.ProgressPercentage,
		"currentModuleId":    view.Progress.CurrentModuleID,
	})
}

func (a *API) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeBadRequest(w, "userId required")
		return
	}
	view, err := a.progress.GetProgress(r.Context(), userID, chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeBadRequest(w, "userId required")
		return
	}
	quiz, err := a.quizzes.GetModuleQuiz(r.Context(), userID, chi.URLParam(r, "courseID"), chi.URLParam(r, "moduleID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

type submitPayload struct {
	UserID         string                    `json:"userId"`
	Answers        []domain.AnswerSubmission `json:"answers"`
	ElapsedSeconds int                       `json:"elapsedSeconds"`
}

func (a *API) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeBadRequest(w, "userId and answers required")
		return
	}
	result, err := a.quizzes.Submit(r.Context(), req.UserID, chi.URLParam(r, "courseID"), chi.URLParam(r, "moduleID"), domain.QuizSubmission{
		Answers:        req.Answers,
		ElapsedSeconds: req.ElapsedSeconds,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"score":          result.Score,
		"totalQuestions": result.TotalQuestions,
		"correctCount":   result.CorrectCount,
		"timedOut":       result.TimedOut,
		"passed":         result.Passed,
		"perQuestion":    result.Questions,
	})
}

func (a *API) handleGlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	lb, err := a.rankings.GlobalLeaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (a *API) handleCourseLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := a.rankings.CourseLeaderboard(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (a *API) handleUserWindow(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeBadRequest(w, "userId required")
		return
	}
	window, err := a.rankings.UserWindow(r.Context(), userID, r.URL.Query().Get("courseId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, window)
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Message: msg})
}

// writeError maps domain sentinels onto status codes. Unexpected errors are
// the only 500s; expected conditions always carry their own message.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCourseNotFound),
		errors.Is(err, domain.ErrModuleNotFound),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNotRanked),
		errors.Is(err, domain.ErrNotEnrolled):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrAlreadyEnrolled):
		writeJSON(w, http.StatusConflict, errorResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrModuleNotInCourse):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidSubmission):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
	}
}
