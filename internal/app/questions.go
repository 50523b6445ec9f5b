package app

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"confetti-quiz/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var defaultQuestions = domain.QuestionSet{
	{Text: "Apa nama planet terbesar di tata surya kita?", Answer: "jupiter"},
}

// DefaultQuestions returns the built-in fallback set. It always holds one question.
func DefaultQuestions() domain.QuestionSet {
	return append(domain.QuestionSet(nil), defaultQuestions...)
}

// NormalizeAnswer trims and lowercases free-text answers before comparison.
func NormalizeAnswer(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

type rawQuestion struct {
	Question json.RawMessage `json:"question"`
	Answer   json.RawMessage `json:"answer"`
}

// ParseQuestions decodes a JSON array of {question, answer} records. Records missing
// either field after trimming are dropped, so the result may be empty.
func ParseQuestions(payload string) (domain.QuestionSet, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrInvalidQuestionFormat)
	}
	var raw []rawQuestion
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidQuestionFormat, err)
	}
	return sanitizeQuestions(raw), nil
}

func sanitizeQuestions(raw []rawQuestion) domain.QuestionSet {
	set := make(domain.QuestionSet, 0, len(raw))
	for _, item := range raw {
		text := strings.TrimSpace(scalarText(item.Question))
		answer := NormalizeAnswer(scalarText(item.Answer))
		if text == "" || answer == "" {
			continue
		}
		set = append(set, domain.Question{Text: text, Answer: answer})
	}
	return set
}

// scalarText accepts JSON strings and numbers; anything else is treated as missing.
func scalarText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// SelectQuestions returns the first input that is non-empty and parses to at least one
// valid question. Inputs are alternate spellings of the same payload.
func SelectQuestions(inputs ...string) (domain.QuestionSet, bool) {
	for _, input := range inputs {
		if strings.TrimSpace(input) == "" {
			continue
		}
		set, err := ParseQuestions(input)
		if err != nil {
			log.Printf("questions: ignoring payload: %v", err)
			continue
		}
		if len(set) > 0 {
			return set, true
		}
	}
	return nil, false
}

// LoadQuestions is SelectQuestions with the default set as fallback.
func LoadQuestions(inputs ...string) domain.QuestionSet {
	if set, ok := SelectQuestions(inputs...); ok {
		return set
	}
	return DefaultQuestions()
}

// NormalizeQuestions trims question text, normalizes answers and drops incomplete entries.
// Loaders backed by stores other than the JSON payload path use it before caching.
func NormalizeQuestions(set domain.QuestionSet) domain.QuestionSet {
	out := make(domain.QuestionSet, 0, len(set))
	for _, q := range set {
		text := strings.TrimSpace(q.Text)
		answer := NormalizeAnswer(q.Answer)
		if text == "" || answer == "" {
			continue
		}
		out = append(out, domain.Question{Text: text, Answer: answer})
	}
	return out
}

// ValidQuestionSet reports whether every question is already normalized and non-empty.
func ValidQuestionSet(set domain.QuestionSet) bool {
	if len(set) == 0 {
		return false
	}
	for _, q := range set {
		if strings.TrimSpace(q.Text) == "" || NormalizeAnswer(q.Answer) == "" {
			return false
		}
	}
	return true
}
