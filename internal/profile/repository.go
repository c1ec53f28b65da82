package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"calma/backend/internal/progress"
	"calma/backend/internal/store"
	"calma/backend/pkg/logger"
)

// Keys of the three independent entries kept per profile.
const (
	KeyName        = "calma_name"
	KeyProgress    = "calma_progress"
	KeyMoodHistory = "calma_mood_history"
)

// Repository reads and writes the entries of a profile. Each entry is
// serialized on its own; a missing or unreadable entry loads as its default.
type Repository struct {
	kv     store.KV
	prefix string
	log    *logger.Logger
}

// NewRepository creates a repository that namespaces keys under prefix.
func NewRepository(kv store.KV, prefix string, log *logger.Logger) *Repository {
	if prefix == "" {
		prefix = "profile"
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Repository{kv: kv, prefix: prefix, log: log}
}

func (r *Repository) key(profileID, name string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, profileID, name)
}

// Name returns the display name, or "" when onboarding never happened.
func (r *Repository) Name(ctx context.Context, profileID string) (string, error) {
	v, ok, err := r.kv.Get(ctx, r.key(profileID, KeyName))
	if err != nil || !ok {
		return "", err
	}
	return v, nil
}

// SaveName stores the display name.
func (r *Repository) SaveName(ctx context.Context, profileID, name string) error {
	return r.kv.Set(ctx, r.key(profileID, KeyName), name)
}

// Progress loads the ledger, defaulting to a fresh one stamped with now.
func (r *Repository) Progress(ctx context.Context, profileID string, now time.Time) (progress.Progress, error) {
	p := progress.Default(now)
	found, err := r.loadJSON(ctx, r.key(profileID, KeyProgress), &p)
	if err != nil {
		return progress.Progress{}, err
	}
	if !found {
		return progress.Default(now), nil
	}
	if p.Badges == nil {
		p.Badges = []string{}
	}
	return p, nil
}

// SaveProgress writes the ledger.
func (r *Repository) SaveProgress(ctx context.Context, profileID string, p progress.Progress) error {
	return r.saveJSON(ctx, r.key(profileID, KeyProgress), p)
}

// History loads the mood history, newest first.
func (r *Repository) History(ctx context.Context, profileID string) ([]progress.MoodLog, error) {
	var history []progress.MoodLog
	found, err := r.loadJSON(ctx, r.key(profileID, KeyMoodHistory), &history)
	if err != nil {
		return nil, err
	}
	if !found || history == nil {
		return []progress.MoodLog{}, nil
	}
	return history, nil
}

// SaveHistory writes the mood history.
func (r *Repository) SaveHistory(ctx context.Context, profileID string, history []progress.MoodLog) error {
	return r.saveJSON(ctx, r.key(profileID, KeyMoodHistory), history)
}

// Delete removes every entry of the profile.
func (r *Repository) Delete(ctx context.Context, profileID string) error {
	return r.kv.Delete(ctx,
		r.key(profileID, KeyName),
		r.key(profileID, KeyProgress),
		r.key(profileID, KeyMoodHistory),
	)
}

// loadJSON decodes key into dst. Corrupt entries are logged and treated as
// missing.
func (r *Repository) loadJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := r.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		r.log.Warn("discarding unreadable entry", "key", key, "error", err.Error())
		return false, nil
	}
	return true, nil
}

func (r *Repository) saveJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := r.kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
