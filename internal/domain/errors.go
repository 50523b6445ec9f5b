package domain

import "errors"

var (
	// ErrInvalidQuestionFormat is returned when a question payload cannot be parsed.
	ErrInvalidQuestionFormat = errors.New("invalid question format")
	// ErrQuestionsNotFound indicates no question set is stored for a slug.
	ErrQuestionsNotFound = errors.New("questions not found")
	// ErrStorageUnavailable wraps persistence failures; stores log it and report absence.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrResultUnavailable wraps external result lookup failures.
	ErrResultUnavailable = errors.New("external result unavailable")
	// ErrInvariant marks a ledger/question set desync. It indicates a defect.
	ErrInvariant = errors.New("quiz invariant violated")

	// ErrInputLocked is returned when checking an answer that is already correct.
	ErrInputLocked = errors.New("answer input is locked")
	// ErrNotAnswered is returned when moving forward before the gate opened.
	ErrNotAnswered = errors.New("current question not answered")
	// ErrNoPrevious is returned when moving back from the first question.
	ErrNoPrevious = errors.New("already at first question")
	// ErrSummaryShown is returned for question operations while the summary is shown.
	ErrSummaryShown = errors.New("summary already shown")
	// ErrReadOnly is returned once an external result froze the quiz.
	ErrReadOnly = errors.New("quiz is read-only")
)
