// Package games runs the mini games: math rounds, the quote scramble and
// the reframing exercise. Rounds in progress live in a cache keyed by
// profile; finished games settle their points through the profile ledger.
package games

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"calma/backend/ai"
	"calma/backend/internal/catalog"
	"calma/backend/internal/profile"
	"calma/backend/internal/progress"
	"calma/backend/pkg/cache"
	"calma/backend/pkg/logger"
)

var (
	// ErrGameNotFound is returned for unknown or expired game ids.
	ErrGameNotFound = errors.New("game not found")
	// ErrEmptyReframe is returned when the positive thought is blank.
	ErrEmptyReframe = errors.New("reframe must not be empty")
)

// Coach is the AI side of the games.
type Coach interface {
	MotivationalQuote(ctx context.Context) ai.Quote
	ReframingScenario(ctx context.Context) string
	EvaluateReframing(ctx context.Context, negative, positive string) ai.Reframe
	MathFeedback(ctx context.Context, correct, total int, difficulty string) string
}

// Ledger settles finished activities.
type Ledger interface {
	CompleteActivity(ctx context.Context, profileID, kind string, points int, reason string) (profile.Award, error)
}

// Service coordinates game sessions.
type Service struct {
	coach    Coach
	ledger   Ledger
	rewards  catalog.Rewards
	sessions *cache.Cache
	ttl      time.Duration
	log      *logger.Logger

	mu  sync.Mutex // guards rng and every live game
	rng *rand.Rand
}

// Options tunes the service.
type Options struct {
	// SessionTTL bounds how long an idle game is kept.
	SessionTTL time.Duration
	// Seed seeds the problem and shuffle generator; zero uses the clock.
	Seed int64
}

// NewService creates the service.
func NewService(coach Coach, ledger Ledger, cat *catalog.Catalog, sessions *cache.Cache, log *logger.Logger, opts Options) *Service {
	if log == nil {
		log = logger.Discard()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return &Service{
		coach:    coach,
		ledger:   ledger,
		rewards:  cat.Rewards,
		sessions: sessions,
		ttl:      opts.SessionTTL,
		log:      log,
		rng:      rand.New(rand.NewSource(opts.Seed)),
	}
}

func sessionKey(kind, profileID, id string) string {
	return kind + ":" + profileID + ":" + id
}

func (s *Service) store(kind, profileID, id string, game any) {
	s.sessions.SetWithExpiration(sessionKey(kind, profileID, id), game, s.ttl)
}

func (s *Service) drop(kind, profileID, id string) {
	s.sessions.Delete(sessionKey(kind, profileID, id))
}

func load[T any](s *Service, kind, profileID, id string) (T, error) {
	var zero T
	v, ok := s.sessions.Get(sessionKey(kind, profileID, id))
	if !ok {
		return zero, ErrGameNotFound
	}
	g, ok := v.(T)
	if !ok {
		return zero, ErrGameNotFound
	}
	return g, nil
}

// MathAnswer is the result of answering a math question.
type MathAnswer struct {
	AnswerResult
	Round    *Round         `json:"round"`
	Feedback string         `json:"feedback,omitempty"`
	Points   int            `json:"points"`
	Award    *profile.Award `json:"award,omitempty"`
}

// StartMath opens a round.
func (s *Service) StartMath(ctx context.Context, profileID string, d Difficulty, op Operation) (*Round, error) {
	if profileID == "" {
		return nil, profile.ErrMissingProfile
	}
	s.mu.Lock()
	r := NewRound(uuid.NewString(), s.rng, d, op)
	snapshot := *r
	s.mu.Unlock()

	s.store("math", profileID, r.ID, r)
	return &snapshot, nil
}

// AnswerMath answers the current question of a round. The last answer
// settles the round: correct answers earn points, the activity is marked
// and the coach comments the result.
func (s *Service) AnswerMath(ctx context.Context, profileID, roundID, input string) (MathAnswer, error) {
	r, err := load[*Round](s, "math", profileID, roundID)
	if err != nil {
		return MathAnswer{}, err
	}

	s.mu.Lock()
	res, err := r.Answer(input)
	snapshot := *r
	s.mu.Unlock()
	if err != nil {
		return MathAnswer{}, err
	}

	out := MathAnswer{AnswerResult: res, Round: &snapshot}
	if !res.Finished {
		return out, nil
	}
	s.drop("math", profileID, roundID)

	out.Points = snapshot.Correct * s.rewards.MathCorrect
	award, err := s.ledger.CompleteActivity(ctx, profileID, progress.ActivityMath, out.Points, profile.ReasonMath)
	if err != nil {
		return MathAnswer{}, err
	}
	out.Award = &award
	out.Feedback = s.coach.MathFeedback(ctx, snapshot.Correct, RoundLength, string(snapshot.Difficulty))
	return out, nil
}

// ScrambleView is the client view of a scramble.
type ScrambleView struct {
	Scramble
	Sentence string         `json:"sentence"`
	Hint     string         `json:"hint,omitempty"`
	Target   string         `json:"target,omitempty"`
	Won      bool           `json:"won"`
	Points   int            `json:"points"`
	Award    *profile.Award `json:"award,omitempty"`
}

func viewOf(g *Scramble) ScrambleView {
	v := ScrambleView{
		Scramble: *g,
		Sentence: g.Sentence(),
		Hint:     g.Hint(),
		Target:   g.Target(),
	}
	v.Bank = append([]Word(nil), g.Bank...)
	v.Order = append([]Word(nil), g.Order...)
	return v
}

// StartScramble fetches a quote and deals it.
func (s *Service) StartScramble(ctx context.Context, profileID string) (ScrambleView, error) {
	if profileID == "" {
		return ScrambleView{}, profile.ErrMissingProfile
	}
	q := s.coach.MotivationalQuote(ctx)

	s.mu.Lock()
	g := NewScramble(uuid.NewString(), s.rng, q.Quote, q.Hint)
	v := viewOf(g)
	s.mu.Unlock()

	s.store("scramble", profileID, g.ID, g)
	return v, nil
}

// Scramble returns the current state of a game.
func (s *Service) Scramble(ctx context.Context, profileID, gameID string) (ScrambleView, error) {
	g, err := load[*Scramble](s, "scramble", profileID, gameID)
	if err != nil {
		return ScrambleView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return viewOf(g), nil
}

// PickWord moves a word into the sentence. Completing the quote awards
// the win bonus exactly once.
func (s *Service) PickWord(ctx context.Context, profileID, gameID string, wordID int) (ScrambleView, error) {
	g, err := load[*Scramble](s, "scramble", profileID, gameID)
	if err != nil {
		return ScrambleView{}, err
	}

	s.mu.Lock()
	won, err := g.Pick(wordID)
	v := viewOf(g)
	s.mu.Unlock()
	if err != nil {
		return ScrambleView{}, err
	}
	if !won {
		return v, nil
	}

	v.Won = true
	v.Points = s.rewards.ScrambleWin
	award, err := s.ledger.CompleteActivity(ctx, profileID, progress.ActivityScramble, v.Points, profile.ReasonScramble)
	if err != nil {
		return ScrambleView{}, err
	}
	v.Award = &award
	s.log.Info("Scramble won", "profile_id", profileID, "game_id", gameID)
	return v, nil
}

// ResetScramble puts every word back into the bank.
func (s *Service) ResetScramble(ctx context.Context, profileID, gameID string) (ScrambleView, error) {
	g, err := load[*Scramble](s, "scramble", profileID, gameID)
	if err != nil {
		return ScrambleView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := g.Reset(); err != nil {
		return ScrambleView{}, err
	}
	return viewOf(g), nil
}

// RevealHint shows the hint of a game.
func (s *Service) RevealHint(ctx context.Context, profileID, gameID string) (ScrambleView, error) {
	g, err := load[*Scramble](s, "scramble", profileID, gameID)
	if err != nil {
		return ScrambleView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g.RevealHint()
	return viewOf(g), nil
}

// ReframeScenario returns a new negative thought to reframe.
func (s *Service) ReframeScenario(ctx context.Context) string {
	return s.coach.ReframingScenario(ctx)
}

// ReframeResult is the scored reframe.
type ReframeResult struct {
	ai.Reframe
	Points int            `json:"points"`
	Award  *profile.Award `json:"award,omitempty"`
}

// EvaluateReframe scores the positive version of negative. A high score
// earns score times the multiplier and counts as a finished reframe.
func (s *Service) EvaluateReframe(ctx context.Context, profileID, negative, positive string) (ReframeResult, error) {
	if profileID == "" {
		return ReframeResult{}, profile.ErrMissingProfile
	}
	if strings.TrimSpace(positive) == "" {
		return ReframeResult{}, ErrEmptyReframe
	}

	r := s.coach.EvaluateReframing(ctx, negative, positive)
	res := ReframeResult{
		Reframe: r,
		Points:  ReframePoints(r.Score, s.rewards.ReframeThreshold, s.rewards.ReframeMultiplier),
	}
	if res.Points == 0 {
		return res, nil
	}
	award, err := s.ledger.CompleteActivity(ctx, profileID, progress.ActivityReframe, res.Points, profile.ReasonReframe)
	if err != nil {
		return ReframeResult{}, err
	}
	res.Award = &award
	return res, nil
}
