// Package profile owns a profile's name, progress ledger and mood history,
// and applies the reward rules whenever one of them changes.
package profile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"calma/backend/internal/catalog"
	"calma/backend/internal/progress"
	"calma/backend/pkg/logger"
	"calma/backend/shared/observability"
)

var (
	// ErrMissingProfile is returned when no profile id was supplied.
	ErrMissingProfile = errors.New("profile id is required")
	// ErrEmptyName is returned when onboarding sends a blank name.
	ErrEmptyName = errors.New("name must not be empty")
	// ErrEmptyMood is returned when a mood entry has no mood.
	ErrEmptyMood = errors.New("mood must not be empty")
)

// Reward reasons reported with awarded points.
const (
	ReasonMoodLog      = "mood_log"
	ReasonMath         = "math"
	ReasonScramble     = "scramble"
	ReasonReframe      = "reframe"
	ReasonArtStroke    = "art_stroke"
	ReasonArtTransform = "art_transform"
)

// Options tunes the service.
type Options struct {
	HistoryLimit     int
	TranscriptWindow int
	Now              func() time.Time
}

// Award is the ledger after a mutation plus the badges it unlocked.
type Award struct {
	Progress progress.Progress `json:"progress"`
	Unlocked []string          `json:"unlocked"`
}

// MoodResult is returned by SaveMood.
type MoodResult struct {
	Entry progress.MoodLog `json:"entry"`
	Award
}

// Service applies profile operations. Mutations of one profile are
// serialized; different profiles proceed independently.
type Service struct {
	repo    *Repository
	cat     *catalog.Catalog
	log     *logger.Logger
	metrics *observability.Instruments
	opts    Options

	locks sync.Map // profile id -> *sync.Mutex
}

// NewService creates the service.
func NewService(repo *Repository, cat *catalog.Catalog, metrics *observability.Instruments, log *logger.Logger, opts Options) *Service {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.TranscriptWindow <= 0 {
		opts.TranscriptWindow = 40
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{repo: repo, cat: cat, log: log, metrics: metrics, opts: opts}
}

func (s *Service) lock(profileID string) func() {
	m, _ := s.locks.LoadOrStore(profileID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Name returns the display name, "" before onboarding.
func (s *Service) Name(ctx context.Context, profileID string) (string, error) {
	if profileID == "" {
		return "", ErrMissingProfile
	}
	return s.repo.Name(ctx, profileID)
}

// SetName completes onboarding.
func (s *Service) SetName(ctx context.Context, profileID, name string) error {
	if profileID == "" {
		return ErrMissingProfile
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	return s.repo.SaveName(ctx, profileID, name)
}

// Progress returns the ledger.
func (s *Service) Progress(ctx context.Context, profileID string) (progress.Progress, error) {
	if profileID == "" {
		return progress.Progress{}, ErrMissingProfile
	}
	return s.repo.Progress(ctx, profileID, s.opts.Now())
}

// Badges returns every catalog badge with its unlocked flag.
func (s *Service) Badges(ctx context.Context, profileID string) ([]progress.BadgeView, error) {
	p, err := s.Progress(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return progress.Badges(s.cat, p), nil
}

// AddPoints awards n points for reason.
func (s *Service) AddPoints(ctx context.Context, profileID string, n int, reason string) (Award, error) {
	if n < 0 {
		return Award{}, progress.ErrNegativePoints
	}
	award, err := s.mutate(ctx, profileID, func(p *progress.Progress) error {
		return p.AddPoints(n)
	})
	if err != nil {
		return Award{}, err
	}
	s.metrics.PointsAwarded(ctx, reason, n)
	return award, nil
}

// CompleteActivity records a finished feature and awards its points in a
// single write.
func (s *Service) CompleteActivity(ctx context.Context, profileID, kind string, points int, reason string) (Award, error) {
	if points < 0 {
		return Award{}, progress.ErrNegativePoints
	}
	award, err := s.mutate(ctx, profileID, func(p *progress.Progress) error {
		if err := p.MarkActivity(kind); err != nil {
			return err
		}
		return p.AddPoints(points)
	})
	if err != nil {
		return Award{}, err
	}
	s.metrics.PointsAwarded(ctx, reason, points)
	return award, nil
}

// MarkActivity records a finished feature without points.
func (s *Service) MarkActivity(ctx context.Context, profileID, kind string) (Award, error) {
	return s.CompleteActivity(ctx, profileID, kind, 0, kind)
}

// RecordLogin updates the streak for a visit now.
func (s *Service) RecordLogin(ctx context.Context, profileID string) (Award, error) {
	now := s.opts.Now()
	return s.mutate(ctx, profileID, func(p *progress.Progress) error {
		p.RecordLogin(now)
		return nil
	})
}

// AppendTranscript persists conversation lines inside the ledger, keeping
// the recent window only.
func (s *Service) AppendTranscript(ctx context.Context, profileID string, entries ...progress.TranscriptEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := s.mutate(ctx, profileID, func(p *progress.Progress) error {
		p.AppendTranscript(s.opts.TranscriptWindow, entries...)
		return nil
	})
	return err
}

// SaveMood prepends a journal entry, awards the mood reward and evaluates
// badges.
func (s *Service) SaveMood(ctx context.Context, profileID, mood, thought string) (MoodResult, error) {
	if profileID == "" {
		return MoodResult{}, ErrMissingProfile
	}
	mood = strings.TrimSpace(mood)
	if mood == "" {
		return MoodResult{}, ErrEmptyMood
	}
	unlock := s.lock(profileID)
	defer unlock()

	now := s.opts.Now()
	entry := progress.MoodLog{
		ID:        uuid.NewString(),
		Timestamp: now,
		Mood:      mood,
		Emoji:     s.cat.MoodEmoji(mood),
		Thought:   strings.TrimSpace(thought),
	}

	history, err := s.repo.History(ctx, profileID)
	if err != nil {
		return MoodResult{}, err
	}
	history = progress.PrependMood(history, entry, s.opts.HistoryLimit)
	if err := s.repo.SaveHistory(ctx, profileID, history); err != nil {
		return MoodResult{}, err
	}

	p, err := s.repo.Progress(ctx, profileID, now)
	if err != nil {
		return MoodResult{}, err
	}
	points := s.cat.Rewards.MoodLog
	if err := p.AddPoints(points); err != nil {
		return MoodResult{}, err
	}

	award, err := s.settle(ctx, profileID, p, len(history))
	if err != nil {
		return MoodResult{}, err
	}
	s.metrics.PointsAwarded(ctx, ReasonMoodLog, points)
	return MoodResult{Entry: entry, Award: award}, nil
}

// History returns the mood history, newest first.
func (s *Service) History(ctx context.Context, profileID string) ([]progress.MoodLog, error) {
	if profileID == "" {
		return nil, ErrMissingProfile
	}
	return s.repo.History(ctx, profileID)
}

// MoodStats summarises the history.
func (s *Service) MoodStats(ctx context.Context, profileID string) (progress.MoodStats, error) {
	history, err := s.History(ctx, profileID)
	if err != nil {
		return progress.MoodStats{}, err
	}
	return progress.Stats(history), nil
}

// Reset forgets the profile entirely.
func (s *Service) Reset(ctx context.Context, profileID string) error {
	if profileID == "" {
		return ErrMissingProfile
	}
	unlock := s.lock(profileID)
	defer unlock()
	return s.repo.Delete(ctx, profileID)
}

// mutate loads the ledger, applies fn, evaluates badges and saves.
func (s *Service) mutate(ctx context.Context, profileID string, fn func(*progress.Progress) error) (Award, error) {
	if profileID == "" {
		return Award{}, ErrMissingProfile
	}
	unlock := s.lock(profileID)
	defer unlock()

	p, err := s.repo.Progress(ctx, profileID, s.opts.Now())
	if err != nil {
		return Award{}, err
	}
	if err := fn(&p); err != nil {
		return Award{}, err
	}
	history, err := s.repo.History(ctx, profileID)
	if err != nil {
		return Award{}, err
	}
	return s.settle(ctx, profileID, p, len(history))
}

// settle unlocks newly satisfied badges and persists the ledger.
func (s *Service) settle(ctx context.Context, profileID string, p progress.Progress, moodCount int) (Award, error) {
	unlocked := progress.EvaluateBadges(s.cat, progress.State{Progress: p, MoodCount: moodCount})
	for _, id := range unlocked {
		p.Unlock(id)
		s.log.WithProfileID(profileID).Info("badge unlocked", "badge", id)
	}
	if err := s.repo.SaveProgress(ctx, profileID, p); err != nil {
		return Award{}, err
	}
	if unlocked == nil {
		unlocked = []string{}
	}
	return Award{Progress: p, Unlocked: unlocked}, nil
}
