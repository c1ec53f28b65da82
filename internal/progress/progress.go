// Package progress holds the reward ledger: points, badges, login streak,
// activity counters and the mood history rules. Everything here is pure;
// persistence lives in the profile package.
package progress

import (
	"errors"
	"time"
)

// ErrNegativePoints is returned when a reward would decrease the total.
var ErrNegativePoints = errors.New("points must not be negative")

// Activity kinds recorded for badge evaluation.
const (
	ActivityMath     = "math"
	ActivityArt      = "art"
	ActivityScramble = "scramble"
	ActivityReframe  = "reframe"
)

// Activity counts completed features.
type Activity struct {
	MathRounds    int `json:"mathRounds,omitempty"`
	ArtTransforms int `json:"artTransforms,omitempty"`
	ScrambleWins  int `json:"scrambleWins,omitempty"`
	Reframes      int `json:"reframes,omitempty"`
}

// TranscriptEntry is one persisted line of a conversation.
type TranscriptEntry struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Progress is the persisted ledger of a profile.
type Progress struct {
	Points     int               `json:"points"`
	Badges     []string          `json:"badges"`
	Streak     int               `json:"streak"`
	LastLogin  time.Time         `json:"lastLogin"`
	Activity   Activity          `json:"activity"`
	Transcript []TranscriptEntry `json:"transcript,omitempty"`
}

// Default is the ledger of a profile that never saved anything.
func Default(now time.Time) Progress {
	return Progress{
		Badges:    []string{},
		Streak:    1,
		LastLogin: now,
	}
}

// AddPoints adds n to the total. n must be non-negative.
func (p *Progress) AddPoints(n int) error {
	if n < 0 {
		return ErrNegativePoints
	}
	p.Points += n
	return nil
}

// HasBadge reports whether id is unlocked.
func (p *Progress) HasBadge(id string) bool {
	for _, b := range p.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// Unlock adds id to the badge set. It returns false when id was already there.
func (p *Progress) Unlock(id string) bool {
	if p.HasBadge(id) {
		return false
	}
	p.Badges = append(p.Badges, id)
	return true
}

// MarkActivity bumps the counter of a completed feature.
func (p *Progress) MarkActivity(kind string) error {
	switch kind {
	case ActivityMath:
		p.Activity.MathRounds++
	case ActivityArt:
		p.Activity.ArtTransforms++
	case ActivityScramble:
		p.Activity.ScrambleWins++
	case ActivityReframe:
		p.Activity.Reframes++
	default:
		return errors.New("unknown activity " + kind)
	}
	return nil
}

// RecordLogin updates the streak for a visit at now. A visit on the same
// calendar day changes nothing, the following day extends the streak and a
// longer gap restarts it at 1. It reports whether the ledger changed.
func (p *Progress) RecordLogin(now time.Time) bool {
	if p.Streak < 1 {
		p.Streak = 1
	}
	if p.LastLogin.IsZero() {
		p.LastLogin = now
		return true
	}

	last := dayOf(p.LastLogin.In(now.Location()))
	today := dayOf(now)
	switch {
	case !today.After(last):
		return false
	case last.AddDate(0, 0, 1).Equal(today):
		p.Streak++
	default:
		p.Streak = 1
	}
	p.LastLogin = now
	return true
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AppendTranscript appends entries and keeps only the newest window entries.
// A window below 1 keeps everything.
func (p *Progress) AppendTranscript(window int, entries ...TranscriptEntry) {
	p.Transcript = append(p.Transcript, entries...)
	if window > 0 && len(p.Transcript) > window {
		p.Transcript = append([]TranscriptEntry(nil), p.Transcript[len(p.Transcript)-window:]...)
	}
}
