package domain

import "time"

// Role classifies users; only students appear in rankings but the
// directory serves every role.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// User is the read-only identity view this service needs. Identity is owned
// by the auth subsystem; we never mutate it.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Choice represents a possible answer for a question.
type Choice struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct choice.
type Question struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Choices     []Choice `json:"choices"`
	Points      int      `json:"points"` // defaults to 1 if zero
	Explanation string   `json:"explanation,omitempty"`
}

// Quiz is a validated quiz definition attached to a module. The authoring
// subsystem guarantees at least one question, at least two choices per
// question, and exactly one correct choice; the grader trusts that.
type Quiz struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Questions        []Question `json:"questions"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"`
	PassingScore     int        `json:"passingScore"`
}

// LearnerView returns a copy of the quiz safe to send to a student:
// correct-choice markers and explanations are stripped. The authoritative
// record is never mutated.
func (q Quiz) LearnerView() Quiz {
	view := q
	view.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		stripped := question
		stripped.Explanation = ""
		stripped.Choices = make([]Choice, len(question.Choices))
		for j, choice := range question.Choices {
			choice.Correct = false
			stripped.Choices[j] = choice
		}
		view.Questions[i] = stripped
	}
	return view
}

// CorrectChoice returns the designated correct choice id for a question.
func (q Question) CorrectChoice() string {
	for _, choice := range q.Choices {
		if choice.Correct {
			return choice.ID
		}
	}
	return ""
}

// PointValue returns the question's weight; unset weights count as 1.
func (q Question) PointValue() int {
	if q.Points > 0 {
		return q.Points
	}
	return 1
}

// Module is one unit of a course, optionally carrying a quiz.
type Module struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
	Quiz  *Quiz  `json:"quiz,omitempty"`
}

// Course is the read-only catalog entry for one course.
type Course struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Modules []Module `json:"modules"`
}

// ModuleByID finds a module within the course.
func (c Course) ModuleByID(moduleID string) (Module, bool) {
	for _, m := range c.Modules {
		if m.ID == moduleID {
			return m, true
		}
	}
	return Module{}, false
}

// HasModule reports whether moduleID belongs to the course.
func (c Course) HasModule(moduleID string) bool {
	_, ok := c.ModuleByID(moduleID)
	return ok
}

// AnswerRecord is one graded answer inside an attempt. CorrectChoiceID is
// part of the immutable record; learner-facing projections decide whether
// to expose it.
type AnswerRecord struct {
	QuestionID       string `json:"questionId"`
	SelectedChoiceID string `json:"selectedChoiceId"`
	CorrectChoiceID  string `json:"correctChoiceId"`
	Correct          bool   `json:"correct"`
}

// Attempt is the immutable record of one grading event. Attempts are
// append-only; best and latest scores are derived from the list, never
// collapsed at write time.
type Attempt struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	QuizID         string         `json:"quizId"`
	ModuleID       string         `json:"moduleId"`
	Score          float64        `json:"score"` // 0..100
	PointsEarned   int            `json:"pointsEarned"`
	PointsPossible int            `json:"pointsPossible"`
	Answers        []AnswerRecord `json:"answers"`
	StartedAt      time.Time      `json:"startedAt"`
	FinishedAt     time.Time      `json:"finishedAt"`
	Completed      bool           `json:"completed"`
	TimedOut       bool           `json:"timedOut"`
}

// Progress is the per-(user, course) record owned by the progress tracker.
// CompletedModules has set semantics: no duplicates, insertion order kept.
type Progress struct {
	UserID           string    `json:"userId"`
	CourseID         string    `json:"courseId"`
	CompletedModules []string  `json:"completedModules"`
	Attempts         []Attempt `json:"attempts"`
	CurrentModuleID  string    `json:"currentModuleId,omitempty"`
	LastAccessedAt   time.Time `json:"lastAccessedAt"`
}

// Completed reports whether moduleID is in the completed set.
func (p Progress) Completed(moduleID string) bool {
	for _, id := range p.CompletedModules {
		if id == moduleID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stores can hand out snapshots without
// exposing their internal record to callers.
func (p Progress) Clone() Progress {
	out := p
	out.CompletedModules = append([]string(nil), p.CompletedModules...)
	out.Attempts = make([]Attempt, len(p.Attempts))
	for i, a := range p.Attempts {
		a.Answers = append([]AnswerRecord(nil), a.Answers...)
		out.Attempts[i] = a
	}
	return out
}

// ProgressView is a progress snapshot plus its derived percentage.
type ProgressView struct {
	Progress           Progress `json:"progress"`
	ProgressPercentage float64  `json:"progressPercentage"`
	TotalModules       int      `json:"totalModules"`
	CompletedModules   int      `json:"completedModules"`
}

// AnswerSubmission is one (question, chosen choice) pair from the client.
type AnswerSubmission struct {
	QuestionID string `json:"questionId"`
	ChoiceID   string `json:"choiceId"`
}

// QuizSubmission is a full submission for one module quiz.
type QuizSubmission struct {
	Answers        []AnswerSubmission `json:"answers"`
	ElapsedSeconds int                `json:"elapsedSeconds"`
}

// GradedQuestion is the learner-facing outcome for a single question.
type GradedQuestion struct {
	QuestionID     string `json:"questionId"`
	Text           string `json:"text"`
	SelectedChoice string `json:"selectedChoiceId"`
	SelectedText   string `json:"selectedText,omitempty"`
	CorrectChoice  string `json:"correctChoiceId,omitempty"`
	CorrectText    string `json:"correctText,omitempty"`
	Correct        bool   `json:"correct"`
}

// GradeResult is the outcome of grading one submission.
type GradeResult struct {
	Score          float64          `json:"score"`
	TotalQuestions int              `json:"totalQuestions"`
	CorrectCount   int              `json:"correctCount"`
	PointsEarned   int              `json:"pointsEarned"`
	PointsPossible int              `json:"pointsPossible"`
	TimedOut       bool             `json:"timedOut"`
	Passed         bool             `json:"passed"`
	Questions      []GradedQuestion `json:"questions"`
	Attempt        Attempt          `json:"-"`
}

// LeaderboardEntry is a derived ranking row; never persisted.
type LeaderboardEntry struct {
	Rank             int     `json:"rank"`
	UserID           string  `json:"userId"`
	Name             string  `json:"name"`
	Score            float64 `json:"totalScore"`
	AverageScore     float64 `json:"averageScore,omitempty"`
	CompletedModules int     `json:"completedModules,omitempty"`
}

// Leaderboard is an ordered scoreboard, global when CourseID is empty.
type Leaderboard struct {
	CourseID  string             `json:"courseId,omitempty"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// RankWindow is the bounded slice of a ranking around one user. Ranks are
// absolute positions in the full ordering, not window-relative.
type RankWindow struct {
	UserRank   int                `json:"userRank"`
	TotalUsers int                `json:"totalUsers"`
	Neighbors  []LeaderboardEntry `json:"neighbors"`
}
