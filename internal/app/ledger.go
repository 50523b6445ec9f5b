package app

import "math"

// Ledger records the user's answer and its correctness per question index.
// An index is answered iff it has an entry in both maps.
type Ledger struct {
	answers map[int]string
	correct map[int]bool
}

func NewLedger() *Ledger {
	return &Ledger{
		answers: make(map[int]string),
		correct: make(map[int]bool),
	}
}

// ledgerFromMaps rebuilds a ledger from persisted maps, keeping only indices in
// [0, total) that carry an answer.
func ledgerFromMaps(answers map[int]string, correct map[int]bool, total int) *Ledger {
	l := NewLedger()
	for i, answer := range answers {
		if i < 0 || i >= total {
			continue
		}
		l.Record(i, answer, correct[i])
	}
	return l
}

// Record sets both entries for index i and leaves every other index untouched.
func (l *Ledger) Record(i int, answer string, correct bool) {
	l.answers[i] = answer
	l.correct[i] = correct
}

func (l *Ledger) IsAnswered(i int) bool {
	_, ok := l.answers[i]
	return ok
}

func (l *Ledger) Answer(i int) (string, bool) {
	answer, ok := l.answers[i]
	return answer, ok
}

// IsCorrect reports whether index i was answered correctly.
func (l *Ledger) IsCorrect(i int) bool {
	return l.correct[i]
}

// Score counts correct answers.
func (l *Ledger) Score() int {
	score := 0
	for _, ok := range l.correct {
		if ok {
			score++
		}
	}
	return score
}

// Percentage is round(100*score/total), 0 for an empty quiz.
func (l *Ledger) Percentage(total int) int {
	return percentage(l.Score(), total)
}

func percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(score) / float64(total)))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func (l *Ledger) Reset() {
	l.answers = make(map[int]string)
	l.correct = make(map[int]bool)
}

// Answers returns a copy of the recorded answers.
func (l *Ledger) Answers() map[int]string {
	out := make(map[int]string, len(l.answers))
	for i, a := range l.answers {
		out[i] = a
	}
	return out
}

// Correctness returns a copy of the correctness entries.
func (l *Ledger) Correctness() map[int]bool {
	out := make(map[int]bool, len(l.correct))
	for i, c := range l.correct {
		out[i] = c
	}
	return out
}
