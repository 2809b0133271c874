package app

import "lms-ranking-service/internal/domain"

// Comparable scores are always re-derived from progress and attempt records
// at read time. Nothing in this file is ever persisted, which is what keeps
// leaderboards from drifting away from the underlying data.
//
// Two distinct scales exist on purpose:
//   - CourseScore is a 0-100 blend used for course-scoped rankings.
//   - GlobalScore is an accumulating points sum used for the global ranking.
// They are not interchangeable and must never be sorted against each other.

const (
	quizWeight     = 0.7
	progressWeight = 0.3
)

// ProgressPercentage returns 100 * completed / total, or 0 for an empty
// course. Never NaN, always within [0, 100].
func ProgressPercentage(completed, totalModules int) float64 {
	if totalModules <= 0 {
		return 0
	}
	pct := 100 * float64(completed) / float64(totalModules)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// QuizAverage returns the mean raw score (0-100) across all attempts in the
// record, 0 when there are none.
func QuizAverage(p domain.Progress) float64 {
	if len(p.Attempts) == 0 {
		return 0
	}
	var sum float64
	for _, a := range p.Attempts {
		sum += a.Score
	}
	return sum / float64(len(p.Attempts))
}

// CourseScore blends quiz performance (70%) with module completion (30%),
// both on a 0-100 scale.
func CourseScore(quizAverage, progressPct float64) float64 {
	return quizWeight*quizAverage + progressWeight*progressPct
}

// GlobalScore sums raw quiz points earned across all of a user's progress
// records. Unlike CourseScore this accumulates without bound.
func GlobalScore(records []domain.Progress) float64 {
	var total float64
	for _, p := range records {
		for _, a := range p.Attempts {
			total += float64(a.PointsEarned)
		}
	}
	return total
}
