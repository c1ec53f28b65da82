package games

import (
	"context"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"calma/backend/ai"
	"calma/backend/internal/catalog"
	"calma/backend/internal/profile"
	"calma/backend/internal/store"
	"calma/backend/pkg/cache"
	"calma/backend/pkg/logger"
)

type mockCoach struct {
	mock.Mock
}

func (m *mockCoach) MotivationalQuote(ctx context.Context) ai.Quote {
	return m.Called(ctx).Get(0).(ai.Quote)
}

func (m *mockCoach) ReframingScenario(ctx context.Context) string {
	return m.Called(ctx).String(0)
}

func (m *mockCoach) EvaluateReframing(ctx context.Context, negative, positive string) ai.Reframe {
	return m.Called(ctx, negative, positive).Get(0).(ai.Reframe)
}

func (m *mockCoach) MathFeedback(ctx context.Context, correct, total int, difficulty string) string {
	return m.Called(ctx, correct, total, difficulty).String(0)
}

func newTestService(t *testing.T, coach Coach) (*Service, *profile.Service) {
	t.Helper()
	repo := profile.NewRepository(store.NewMemory(), "profile", logger.Discard())
	now := func() time.Time { return time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC) }
	profiles := profile.NewService(repo, catalog.Default(), nil, logger.Discard(), profile.Options{Now: now})
	sessions := cache.New(cache.Options{})
	t.Cleanup(sessions.Close)
	return NewService(coach, profiles, catalog.Default(), sessions, logger.Discard(), Options{Seed: 42}), profiles
}

func TestProblemsStayInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, d := range []Difficulty{Relajado, Activo, Pro} {
		for i := 0; i < 500; i++ {
			sub := NewProblem(rng, d, Subtract)
			assert.GreaterOrEqual(t, sub.A, sub.B)
			assert.GreaterOrEqual(t, sub.Answer(), 0)

			div := NewProblem(rng, d, Divide)
			require.NotZero(t, div.B)
			assert.Equal(t, 0, div.A%div.B)
			assert.Equal(t, div.A/div.B, div.Answer())
			assert.True(t, div.Answer() >= 1 && div.Answer() <= 10)

			mul := NewProblem(rng, d, Multiply)
			assert.GreaterOrEqual(t, mul.A, 2)
			assert.Equal(t, mul.A*mul.B, mul.Answer())

			add := NewProblem(rng, d, Add)
			assert.GreaterOrEqual(t, add.A, 1)
			assert.Equal(t, add.A+add.B, add.Answer())
		}
	}

	max, _ := operandRange(Pro, Add)
	assert.Equal(t, 100, max)
	max, offset := operandRange(Relajado, Multiply)
	assert.Equal(t, 10, max)
	assert.Equal(t, 2, offset)
}

func TestCheckExactAnswer(t *testing.T) {
	p := Problem{A: 6, B: 6, Op: Subtract, answer: 0}
	assert.True(t, p.Check(0))
	assert.False(t, p.Check(1))
	assert.True(t, p.CheckInput(" 0 "))
	assert.False(t, p.CheckInput(""))
	assert.False(t, p.CheckInput("cero"))
}

func TestParseDifficultyAndOperation(t *testing.T) {
	d, err := ParseDifficulty("Pro")
	require.NoError(t, err)
	assert.Equal(t, Pro, d)
	_, err = ParseDifficulty("Experto")
	assert.ErrorIs(t, err, ErrUnknownDifficulty)

	op, err := ParseOperation("×")
	require.NoError(t, err)
	assert.Equal(t, Multiply, op)
	op, err = ParseOperation("÷")
	require.NoError(t, err)
	assert.Equal(t, Divide, op)
	_, err = ParseOperation("%")
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestRoundEndsAfterFiveQuestions(t *testing.T) {
	r := NewRound("r1", rand.New(rand.NewSource(1)), Activo, Add)
	for i := 1; i <= RoundLength; i++ {
		assert.Equal(t, i, r.Question)
		res, err := r.Answer(strconv.Itoa(r.Current.Answer()))
		require.NoError(t, err)
		assert.True(t, res.Correct)
		assert.Equal(t, i == RoundLength, res.Finished)
	}
	assert.Equal(t, RoundLength, r.Correct)

	_, err := r.Answer("1")
	assert.ErrorIs(t, err, ErrRoundFinished)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "cree en ti", Normalize("Cree en ti."))
	assert.Equal(t, "¡hola mundo", Normalize("  ¡Hola, mundo!  "))
}

func TestScrambleWrongOrderThenReset(t *testing.T) {
	g := NewScramble("g1", rand.New(rand.NewSource(3)), "Cree en ti.", "Confianza")
	require.Equal(t, ScramblePlaying, g.Status)
	require.Len(t, g.Bank, 3)

	for _, id := range []int{2, 1, 0} {
		won, err := g.Pick(id)
		require.NoError(t, err)
		assert.False(t, won)
	}
	assert.Empty(t, g.Bank)
	assert.Equal(t, ScramblePlaying, g.Status)
	assert.Equal(t, "ti. en Cree", g.Sentence())
	assert.Empty(t, g.Target())

	require.NoError(t, g.Reset())
	assert.Len(t, g.Bank, 3)
	assert.Empty(t, g.Order)

	_, err := g.Pick(9)
	assert.ErrorIs(t, err, ErrUnknownWord)

	assert.Empty(t, g.Hint())
	assert.Equal(t, "Confianza", g.RevealHint())
	assert.Equal(t, "Confianza", g.Hint())
}

func TestScrambleWithoutQuoteStaysLoading(t *testing.T) {
	g := NewScramble("g1", rand.New(rand.NewSource(3)), "  ", "")
	assert.Equal(t, ScrambleLoading, g.Status)
	_, err := g.Pick(0)
	assert.ErrorIs(t, err, ErrNotPlaying)
}

func TestScrambleWinAwardsThirtyOnce(t *testing.T) {
	coach := new(mockCoach)
	coach.On("MotivationalQuote", mock.Anything).Return(ai.Quote{Quote: "Cree en ti.", Hint: "Confianza"})
	svc, profiles := newTestService(t, coach)
	ctx := context.Background()

	game, err := svc.StartScramble(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, ScramblePlaying, game.Status)

	var last ScrambleView
	for id := 0; id < 3; id++ {
		last, err = svc.PickWord(ctx, "p1", game.ID, id)
		require.NoError(t, err)
	}
	assert.True(t, last.Won)
	assert.Equal(t, ScrambleWon, last.Status)
	assert.Equal(t, 30, last.Points)
	assert.Equal(t, "Cree en ti.", last.Target)
	require.NotNil(t, last.Award)

	_, err = svc.PickWord(ctx, "p1", game.ID, 0)
	assert.ErrorIs(t, err, ErrNotPlaying)
	_, err = svc.ResetScramble(ctx, "p1", game.ID)
	assert.ErrorIs(t, err, ErrNotPlaying)

	p, err := profiles.Progress(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 30, p.Points)
	assert.Equal(t, 1, p.Activity.ScrambleWins)
	coach.AssertExpectations(t)
}

func TestScrambleUnknownGame(t *testing.T) {
	svc, _ := newTestService(t, new(mockCoach))
	_, err := svc.PickWord(context.Background(), "p1", "missing", 0)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestMathRoundSettlesPoints(t *testing.T) {
	coach := new(mockCoach)
	coach.On("MathFeedback", mock.Anything, 4, RoundLength, "Relajado").Return("¡Bien!")
	svc, profiles := newTestService(t, coach)
	ctx := context.Background()

	round, err := svc.StartMath(ctx, "p1", Relajado, Add)
	require.NoError(t, err)

	var res MathAnswer
	for i := 0; i < RoundLength; i++ {
		input := strconv.Itoa(round.Current.Answer())
		if i == 0 {
			input = "no"
		}
		res, err = svc.AnswerMath(ctx, "p1", round.ID, input)
		require.NoError(t, err)
		round = res.Round
	}

	assert.True(t, res.Finished)
	assert.Equal(t, 40, res.Points)
	assert.Equal(t, "¡Bien!", res.Feedback)
	require.NotNil(t, res.Award)
	assert.Contains(t, res.Award.Unlocked, "math_master")

	_, err = svc.AnswerMath(ctx, "p1", round.ID, "1")
	assert.ErrorIs(t, err, ErrGameNotFound)

	p, err := profiles.Progress(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 40, p.Points)
	assert.Equal(t, 1, p.Activity.MathRounds)
}

func TestReframeScoring(t *testing.T) {
	assert.Equal(t, 0, ReframePoints(6, 7, 5))
	assert.Equal(t, 35, ReframePoints(7, 7, 5))
	assert.Equal(t, 50, ReframePoints(10, 7, 5))
}

func TestEvaluateReframe(t *testing.T) {
	coach := new(mockCoach)
	coach.On("EvaluateReframing", mock.Anything, "Soy malo", "Estoy aprendiendo").
		Return(ai.Reframe{Score: 8, Feedback: "Muy bien"})
	coach.On("EvaluateReframing", mock.Anything, "Soy malo", "Da igual").
		Return(ai.Reframe{Score: 3, Feedback: "Sigue intentando"})
	svc, profiles := newTestService(t, coach)
	ctx := context.Background()

	low, err := svc.EvaluateReframe(ctx, "p1", "Soy malo", "Da igual")
	require.NoError(t, err)
	assert.Zero(t, low.Points)
	assert.Nil(t, low.Award)

	high, err := svc.EvaluateReframe(ctx, "p1", "Soy malo", "Estoy aprendiendo")
	require.NoError(t, err)
	assert.Equal(t, 40, high.Points)
	require.NotNil(t, high.Award)

	_, err = svc.EvaluateReframe(ctx, "p1", "Soy malo", "   ")
	assert.ErrorIs(t, err, ErrEmptyReframe)

	p, err := profiles.Progress(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 40, p.Points)
	assert.Equal(t, 1, p.Activity.Reframes)
}
