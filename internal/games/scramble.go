package games

import (
	"errors"
	"math/rand"
	"strings"
)

// ScrambleStatus is the state of a word scramble.
type ScrambleStatus string

const (
	ScrambleLoading ScrambleStatus = "loading"
	ScramblePlaying ScrambleStatus = "playing"
	ScrambleWon     ScrambleStatus = "won"
)

var (
	ErrNotPlaying  = errors.New("scramble is not being played")
	ErrUnknownWord = errors.New("word is not in the bank")
)

// Word is one tile of the scramble.
type Word struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Scramble is the "rebuild the quote" game. The bank holds the shuffled
// words, Order the words picked so far.
type Scramble struct {
	ID        string         `json:"id"`
	Status    ScrambleStatus `json:"status"`
	Bank      []Word         `json:"bank"`
	Order     []Word         `json:"order"`
	HintShown bool           `json:"hintShown"`

	target string
	hint   string
	rng    *rand.Rand
}

// NewScramble starts a game on target. Without a target it stays loading.
func NewScramble(id string, rng *rand.Rand, target, hint string) *Scramble {
	s := &Scramble{ID: id, Status: ScrambleLoading, target: target, hint: hint, rng: rng}
	if strings.TrimSpace(target) != "" {
		s.deal()
	}
	return s
}

func (s *Scramble) deal() {
	fields := strings.Fields(s.target)
	s.Bank = make([]Word, len(fields))
	for i, w := range fields {
		s.Bank[i] = Word{ID: i, Text: w}
	}
	s.rng.Shuffle(len(s.Bank), func(i, j int) { s.Bank[i], s.Bank[j] = s.Bank[j], s.Bank[i] })
	s.Order = []Word{}
	s.Status = ScramblePlaying
}

// Normalize lowercases s and drops periods, commas and exclamation marks.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(".", "", ",", "", "!", "").Replace(s)
	return strings.TrimSpace(s)
}

// Pick moves a word from the bank to the built sentence. Once the bank is
// empty the sentence is compared with the target; won reports the single
// transition into ScrambleWon.
func (s *Scramble) Pick(wordID int) (won bool, err error) {
	if s.Status != ScramblePlaying {
		return false, ErrNotPlaying
	}
	idx := -1
	for i, w := range s.Bank {
		if w.ID == wordID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, ErrUnknownWord
	}

	s.Order = append(s.Order, s.Bank[idx])
	s.Bank = append(s.Bank[:idx:idx], s.Bank[idx+1:]...)

	if len(s.Bank) > 0 {
		return false, nil
	}
	if Normalize(s.Sentence()) == Normalize(s.target) {
		s.Status = ScrambleWon
		return true, nil
	}
	return false, nil
}

// Sentence is the sentence built so far.
func (s *Scramble) Sentence() string {
	parts := make([]string, len(s.Order))
	for i, w := range s.Order {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// Reset reshuffles every word back into the bank. A won game is final.
func (s *Scramble) Reset() error {
	if s.Status != ScramblePlaying {
		return ErrNotPlaying
	}
	s.deal()
	s.HintShown = false
	return nil
}

// RevealHint shows and returns the hint.
func (s *Scramble) RevealHint() string {
	s.HintShown = true
	return s.hint
}

// Hint returns the hint once revealed.
func (s *Scramble) Hint() string {
	if !s.HintShown {
		return ""
	}
	return s.hint
}

// Target is the phrase to rebuild; it is only exposed after a win.
func (s *Scramble) Target() string {
	if s.Status != ScrambleWon {
		return ""
	}
	return s.target
}
