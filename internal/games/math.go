package games

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Difficulty of a math round.
type Difficulty string

const (
	Relajado Difficulty = "Relajado"
	Activo   Difficulty = "Activo"
	Pro      Difficulty = "Pro"
)

// Operation of a math round.
type Operation string

const (
	Add      Operation = "+"
	Subtract Operation = "-"
	Multiply Operation = "*"
	Divide   Operation = "/"
)

// RoundLength is the number of questions per round.
const RoundLength = 5

var (
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrRoundFinished     = errors.New("round already finished")
)

// ParseDifficulty validates a difficulty name.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(s); d {
	case Relajado, Activo, Pro:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDifficulty, s)
}

// ParseOperation validates an operation symbol. The display symbols ×
// and ÷ are accepted too.
func ParseOperation(s string) (Operation, error) {
	switch s {
	case "+", "-", "*", "/":
		return Operation(s), nil
	case "×", "x":
		return Multiply, nil
	case "÷":
		return Divide, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
}

// operandRange returns the exclusive upper bound and offset of operands.
func operandRange(d Difficulty, op Operation) (max, offset int) {
	switch op {
	case Multiply:
		return pick(d, 10, 15, 20), 2
	case Divide:
		return pick(d, 10, 12, 15), 2
	default:
		return pick(d, 12, 50, 100), 1
	}
}

func pick(d Difficulty, relajado, activo, pro int) int {
	switch d {
	case Activo:
		return activo
	case Pro:
		return pro
	default:
		return relajado
	}
}

// Problem is one arithmetic question.
type Problem struct {
	A      int       `json:"a"`
	B      int       `json:"b"`
	Op     Operation `json:"op"`
	answer int
}

// NewProblem draws a problem. Subtractions never go negative and
// divisions are always exact.
func NewProblem(rng *rand.Rand, d Difficulty, op Operation) Problem {
	max, offset := operandRange(d, op)
	a := rng.Intn(max) + offset
	b := rng.Intn(max) + offset

	p := Problem{Op: op}
	switch op {
	case Subtract:
		if a < b {
			a, b = b, a
		}
		p.answer = a - b
	case Multiply:
		p.answer = a * b
	case Divide:
		p.answer = rng.Intn(10) + 1
		a = b * p.answer
	default:
		p.answer = a + b
	}
	p.A, p.B = a, b
	return p
}

// Answer is the expected result.
func (p Problem) Answer() int { return p.answer }

// Check reports whether answer is exactly the expected result.
func (p Problem) Check(answer int) bool {
	return answer == p.answer
}

// CheckInput checks a typed answer. Input that is not an integer is wrong.
func (p Problem) CheckInput(input string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return false
	}
	return p.Check(n)
}

// Round is a run of RoundLength problems.
type Round struct {
	ID         string     `json:"id"`
	Difficulty Difficulty `json:"difficulty"`
	Operation  Operation  `json:"operation"`
	Current    Problem    `json:"current"`
	Question   int        `json:"question"`
	Correct    int        `json:"correct"`
	Finished   bool       `json:"finished"`

	rng *rand.Rand
}

// NewRound starts a round at question 1.
func NewRound(id string, rng *rand.Rand, d Difficulty, op Operation) *Round {
	return &Round{
		ID:         id,
		Difficulty: d,
		Operation:  op,
		Current:    NewProblem(rng, d, op),
		Question:   1,
		rng:        rng,
	}
}

// AnswerResult reports the outcome of one answer.
type AnswerResult struct {
	Correct  bool `json:"correct"`
	Expected int  `json:"expected"`
	Finished bool `json:"finished"`
}

// Answer checks input against the current problem and moves on.
func (r *Round) Answer(input string) (AnswerResult, error) {
	if r.Finished {
		return AnswerResult{}, ErrRoundFinished
	}
	res := AnswerResult{
		Correct:  r.Current.CheckInput(input),
		Expected: r.Current.Answer(),
	}
	if res.Correct {
		r.Correct++
	}
	if r.Question >= RoundLength {
		r.Finished = true
		res.Finished = true
		return res, nil
	}
	r.Question++
	r.Current = NewProblem(r.rng, r.Difficulty, r.Operation)
	return res, nil
}
