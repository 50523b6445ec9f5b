package domain

import (
	"strings"
	"time"
)

// Question is a single prompt with its expected free-text answer.
type Question struct {
	Text   string `json:"question"`
	Answer string `json:"answer"` // trimmed and lowercased
}

// QuestionSet is the ordered, immutable list of questions for one session.
type QuestionSet []Question

// Len returns the number of questions.
func (s QuestionSet) Len() int { return len(s) }

// Equal reports whether both sets hold the same questions in the same order.
func (s QuestionSet) Equal(other QuestionSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// PageIdentity scopes persisted progress and external results to one page.
type PageIdentity struct {
	Path string
	Slug string
}

const (
	// DefaultPath is used when the hosting page did not report a location.
	DefaultPath = "/"
	// DefaultSlug is the slug of DefaultPath.
	DefaultSlug = "default"

	storageNamespace = "confetti-quiz:progress:"
)

// NewPageIdentity derives the identity from a location path. The slug is the last
// non-empty path segment.
func NewPageIdentity(path string) PageIdentity {
	path = strings.TrimSpace(path)
	if path == "" {
		return PageIdentity{Path: DefaultPath, Slug: DefaultSlug}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	slug := DefaultSlug
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if seg := strings.TrimSpace(segments[i]); seg != "" {
			slug = seg
			break
		}
	}
	return PageIdentity{Path: path, Slug: slug}
}

// StorageKey is the namespaced key progress snapshots are stored under.
func (p PageIdentity) StorageKey() string {
	return storageNamespace + p.Path
}

// Snapshot is the persisted unit of quiz progress.
type Snapshot struct {
	Questions    QuestionSet
	Answers      map[int]string
	Correct      map[int]bool
	CurrentIndex int
	SummaryShown bool
	Score        int
	Percentage   int
	SavedAt      time.Time
}

// ExternalResult is an authoritative result recorded outside the local ledger.
type ExternalResult struct {
	Score      int  `json:"score"`
	Percentage int  `json:"percentage"`
	Total      int  `json:"total"`
	Finished   bool `json:"finished"`
}

// Phase is the controller state.
type Phase int

const (
	PhaseAnswering Phase = iota // waiting for an answer to the current question
	PhaseAnswered               // current question answered correctly, input locked
	PhaseSummary                // summary shown
)

func (p Phase) String() string {
	switch p {
	case PhaseAnswering:
		return "answering"
	case PhaseAnswered:
		return "answered"
	case PhaseSummary:
		return "summary"
	}
	return "unknown"
}

// Feedback is the message shown after an answer was checked.
type Feedback struct {
	Correct bool   `json:"correct"`
	Text    string `json:"text"`
}

// SummarySource tells where the summary numbers came from.
type SummarySource string

const (
	SourceLocal    SummarySource = "local"
	SourceExternal SummarySource = "external"
)

// SummaryItem is one row of the final summary.
type SummaryItem struct {
	Number     int    `json:"number"`
	Question   string `json:"question"`
	UserAnswer string `json:"userAnswer"`
	Expected   string `json:"expected"`
	Answered   bool   `json:"answered"`
	Correct    bool   `json:"correct"`
}

// Summary is the final result view.
type Summary struct {
	Score      int           `json:"score"`
	Total      int           `json:"total"`
	Percentage int           `json:"percentage"`
	Perfect    bool          `json:"perfect"`
	Source     SummarySource `json:"source"`
	Items      []SummaryItem `json:"items"`
}

// View is an immutable render model of the controller.
type View struct {
	Phase       Phase     `json:"-"`
	PhaseName   string    `json:"phase"`
	Index       int       `json:"index"`
	Number      int       `json:"number"`
	Total       int       `json:"total"`
	Question    string    `json:"question"`
	Input       string    `json:"input"`
	InputLocked bool      `json:"inputLocked"`
	Feedback    *Feedback `json:"feedback,omitempty"`
	CanPrevious bool      `json:"canPrevious"`
	CanNext     bool      `json:"canNext"`
	IsLast      bool      `json:"isLast"`
	NextLabel   string    `json:"nextLabel"`
	Progress    float64   `json:"progress"`
	ReadOnly    bool      `json:"readOnly"`
	Summary     *Summary  `json:"summary,omitempty"`
}

// ResultStatus is the result part of a progress event.
type ResultStatus struct {
	Score      int  `json:"score"`
	Percentage int  `json:"percentage"`
	Finished   bool `json:"finished"`
}

// ProgressEvent is the outbound notification for hosting pages.
type ProgressEvent struct {
	ID         string       `json:"id"`
	Slug       string       `json:"slug"`
	Result     ResultStatus `json:"result"`
	OccurredAt time.Time    `json:"occurredAt"`
}
