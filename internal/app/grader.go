package app

import (
	"time"

	"github.com/google/uuid"

	"lms-ranking-service/internal/domain"
)

// DefaultGraceSeconds is the slack allowed past a quiz time limit before an
// attempt is flagged as timed out. Auto-submitted attempts routinely arrive a
// few seconds late.
const DefaultGraceSeconds = 30

// Grader turns a submission plus a trusted quiz definition into a scored
// result and an immutable attempt record. It is stateless and never mutates
// the quiz it grades against.
type Grader struct {
	grace time.Duration
	now   func() time.Time
	newID func() string
}

func NewGrader(grace time.Duration) *Grader {
	if grace < 0 {
		grace = DefaultGraceSeconds * time.Second
	}
	return &Grader{
		grace: grace,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// NewGraderWithClock is test-only for deterministic timestamps and ids.
func NewGraderWithClock(grace time.Duration, now func() time.Time, newID func() string) *Grader {
	g := NewGrader(grace)
	g.now = now
	g.newID = newID
	return g
}

// Grade scores a submission against the quiz. Unanswered questions count as
// incorrect; they are normal input, not a fault. A submitted question id that
// does not exist in the quiz is ErrInvalidSubmission. Matching is by stable
// choice id, never by position, so shuffled delivery does not affect grading.
func (g *Grader) Grade(quiz domain.Quiz, userID, moduleID string, sub domain.QuizSubmission) (domain.GradeResult, error) {
	selected := make(map[string]string, len(sub.Answers))
	for _, answer := range sub.Answers {
		if !hasQuestion(quiz, answer.QuestionID) {
			return domain.GradeResult{}, domain.ErrInvalidSubmission
		}
		selected[answer.QuestionID] = answer.ChoiceID
	}

	var (
		correctCount   int
		pointsEarned   int
		pointsPossible int
		answers        = make([]domain.AnswerRecord, 0, len(quiz.Questions))
	)
	for _, question := range quiz.Questions {
		correctChoice := question.CorrectChoice()
		chosen := selected[question.ID]
		correct := chosen != "" && chosen == correctChoice

		points := question.PointValue()
		pointsPossible += points
		if correct {
			correctCount++
			pointsEarned += points
		}
		answers = append(answers, domain.AnswerRecord{
			QuestionID:       question.ID,
			SelectedChoiceID: chosen,
			CorrectChoiceID:  correctChoice,
			Correct:          correct,
		})
	}

	score := 0.0
	if pointsPossible > 0 {
		score = 100 * float64(pointsEarned) / float64(pointsPossible)
	}

	finished := g.now()
	elapsed := time.Duration(sub.ElapsedSeconds) * time.Second
	attempt := domain.Attempt{
		ID:             g.newID(),
		UserID:         userID,
		QuizID:         quiz.ID,
		ModuleID:       moduleID,
		Score:          score,
		PointsEarned:   pointsEarned,
		PointsPossible: pointsPossible,
		Answers:        answers,
		StartedAt:      finished.Add(-elapsed),
		FinishedAt:     finished,
		Completed:      true,
		TimedOut:       g.timedOut(quiz, elapsed),
	}

	return domain.GradeResult{
		Score:          score,
		TotalQuestions: len(quiz.Questions),
		CorrectCount:   correctCount,
		PointsEarned:   pointsEarned,
		PointsPossible: pointsPossible,
		TimedOut:       attempt.TimedOut,
		Passed:         score >= float64(quiz.PassingScore),
		Questions:      gradedQuestions(quiz, answers, attempt.Completed),
		Attempt:        attempt,
	}, nil
}

// timedOut reports whether elapsed exceeds the quiz time limit plus grace.
// Timed-out submissions are still scored; the flag is a recorded fact, not a
// rejection.
func (g *Grader) timedOut(quiz domain.Quiz, elapsed time.Duration) bool {
	if quiz.TimeLimitMinutes <= 0 {
		return false
	}
	limit := time.Duration(quiz.TimeLimitMinutes) * time.Minute
	return elapsed > limit+g.grace
}

// gradedQuestions builds the learner-facing per-question outcome. The answer
// key is only projected into the result once the attempt is complete, so a
// partially graded preview can never leak correct choices.
func gradedQuestions(quiz domain.Quiz, answers []domain.AnswerRecord, completed bool) []domain.GradedQuestion {
	out := make([]domain.GradedQuestion, 0, len(answers))
	for i, record := range answers {
		question := quiz.Questions[i]
		graded := domain.GradedQuestion{
			QuestionID:     record.QuestionID,
			Text:           question.Text,
			SelectedChoice: record.SelectedChoiceID,
			SelectedText:   choiceText(question, record.SelectedChoiceID),
			Correct:        record.Correct,
		}
		if completed {
			graded.CorrectChoice = record.CorrectChoiceID
			graded.CorrectText = choiceText(question, record.CorrectChoiceID)
		}
		out = append(out, graded)
	}
	return out
}

func choiceText(q domain.Question, choiceID string) string {
	for _, choice := range q.Choices {
		if choice.ID == choiceID {
			return choice.Text
		}
	}
	return ""
}

func hasQuestion(quiz domain.Quiz, questionID string) bool {
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == questionID {
			return true
		}
	}
	return false
}
