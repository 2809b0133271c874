package app

import (
	"context"

	"lms-ranking-service/internal/domain"
)

// QuizService wires the catalog, grader, and progress store into the quiz
// submission use case. Submissions race freely: attempts are append-only and
// the quiz definition is read-only input, so no lock is held here.
type QuizService struct {
	catalog  CatalogRepository
	progress ProgressStore
	grader   *Grader
	feed     *LeaderboardFeed
}

func NewQuizService(catalog CatalogRepository, progress ProgressStore, grader *Grader, feed *LeaderboardFeed) *QuizService {
	return &QuizService{catalog: catalog, progress: progress, grader: grader, feed: feed}
}

// GetModuleQuiz returns the learner projection of a module's quiz: correct
// choice markers stripped, explanations withheld. Requires enrollment so the
// answer key can never be probed through an unenrolled fetch.
func (s *QuizService) GetModuleQuiz(ctx context.Context, userID, courseID, moduleID string) (domain.Quiz, error) {
	quiz, err := s.moduleQuiz(ctx, courseID, moduleID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if _, err := s.progress.Get(ctx, userID, courseID); err != nil {
		return domain.Quiz{}, err
	}
	return quiz.LearnerView(), nil
}

// Submit grades a submission against the module's quiz and appends the
// resulting attempt to the user's progress record. Re-attempts are allowed;
// every attempt is retained.
func (s *QuizService) Submit(ctx context.Context, userID, courseID, moduleID string, sub domain.QuizSubmission) (domain.GradeResult, error) {
	quiz, err := s.moduleQuiz(ctx, courseID, moduleID)
	if err != nil {
		return domain.GradeResult{}, err
	}
	if _, err := s.progress.Get(ctx, userID, courseID); err != nil {
		return domain.GradeResult{}, err
	}

	result, err := s.grader.Grade(quiz, userID, moduleID, sub)
	if err != nil {
		return domain.GradeResult{}, err
	}

	if _, err := s.progress.AppendAttempt(ctx, userID, courseID, result.Attempt, result.Attempt.FinishedAt); err != nil {
		return domain.GradeResult{}, err
	}
	s.feed.Publish(ctx, courseID)
	return result, nil
}

func (s *QuizService) moduleQuiz(ctx context.Context, courseID, moduleID string) (domain.Quiz, error) {
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return domain.Quiz{}, err
	}
	module, ok := course.ModuleByID(moduleID)
	if !ok {
		return domain.Quiz{}, domain.ErrModuleNotInCourse
	}
	if module.Quiz == nil {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return *module.Quiz, nil
}
