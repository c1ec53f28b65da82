// Package catalog holds the static content of the app: moods, badges,
// reward amounts and breathing cues. The data ships embedded as YAML.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embedded []byte

// Mood is one selectable mood in the journal.
type Mood struct {
	Name  string `yaml:"name" json:"name"`
	Emoji string `yaml:"emoji" json:"emoji"`
}

// Badge describes an unlockable badge.
type Badge struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Emoji       string `yaml:"emoji" json:"emoji"`
	Description string `yaml:"description" json:"description"`
}

// Rewards lists the points granted per activity.
type Rewards struct {
	MoodLog           int `yaml:"mood_log"`
	MathCorrect       int `yaml:"math_correct"`
	ScrambleWin       int `yaml:"scramble_win"`
	ReframeThreshold  int `yaml:"reframe_threshold"`
	ReframeMultiplier int `yaml:"reframe_multiplier"`
	ArtStroke         int `yaml:"art_stroke"`
	ArtTransform      int `yaml:"art_transform"`
}

// Breathing holds the timing and spoken cues of the breathing exercise.
type Breathing struct {
	PhaseSeconds   int    `yaml:"phase_seconds"`
	AllowedBreaths []int  `yaml:"allowed_breaths"`
	Intro          string `yaml:"intro"`
	Inhale         string `yaml:"inhale"`
	Exhale         string `yaml:"exhale"`
	Done           string `yaml:"done"`
}

// Catalog is the parsed content file.
type Catalog struct {
	Moods     []Mood    `yaml:"moods"`
	Badges    []Badge   `yaml:"badges"`
	Rewards   Rewards   `yaml:"rewards"`
	Breathing Breathing `yaml:"breathing"`
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog. The embedded file is validated by
// tests, so a parse failure here is a build defect and panics.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embedded)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded content is invalid: %v", err))
		}
		defaultCat = c
	})
	return defaultCat
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if len(c.Moods) == 0 {
		return nil, fmt.Errorf("catalog has no moods")
	}
	seen := make(map[string]bool, len(c.Badges))
	for _, b := range c.Badges {
		if b.ID == "" {
			return nil, fmt.Errorf("catalog badge without id")
		}
		if seen[b.ID] {
			return nil, fmt.Errorf("duplicate badge id %q", b.ID)
		}
		seen[b.ID] = true
	}
	if c.Breathing.PhaseSeconds <= 0 {
		return nil, fmt.Errorf("breathing phase_seconds must be positive")
	}
	return &c, nil
}

// MoodEmoji returns the emoji for a mood name, or a sparkle for unknown moods.
func (c *Catalog) MoodEmoji(name string) string {
	for _, m := range c.Moods {
		if m.Name == name {
			return m.Emoji
		}
	}
	return "✨"
}

// Badge looks up a badge by id.
func (c *Catalog) Badge(id string) (Badge, bool) {
	for _, b := range c.Badges {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

// BreathsAllowed reports whether n is a selectable breath count.
func (c *Catalog) BreathsAllowed(n int) bool {
	for _, allowed := range c.Breathing.AllowedBreaths {
		if n == allowed {
			return true
		}
	}
	return false
}
