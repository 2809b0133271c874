package domain

import "errors"

var (
	// ErrCourseNotFound indicates the referenced course does not exist.
	ErrCourseNotFound = errors.New("course not found")
	// ErrModuleNotFound indicates the referenced module does not exist.
	ErrModuleNotFound = errors.New("module not found")
	// ErrQuizNotFound indicates the module has no quiz attached.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrUserNotFound indicates the referenced user is unknown to the directory.
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadyEnrolled is returned when enroll is called twice for the same user and course.
	ErrAlreadyEnrolled = errors.New("already enrolled in course")
	// ErrNotEnrolled is returned for progress operations on a user with no enrollment.
	ErrNotEnrolled = errors.New("not enrolled in course")
	// ErrModuleNotInCourse is returned when a module id does not belong to the stated course.
	ErrModuleNotInCourse = errors.New("module does not belong to course")
	// ErrInvalidSubmission indicates a submission references a question outside the quiz.
	ErrInvalidSubmission = errors.New("submission references unknown question")
	// ErrNotRanked is returned when a windowed ranking is requested for a user absent from the ranking set.
	ErrNotRanked = errors.New("user not present in ranking")
)
