package progress

import "calma/backend/internal/catalog"

// Badge ids.
const (
	BadgeFirstMood  = "first_mood"
	BadgePoints150  = "point_150"
	BadgeMathMaster = "math_master"
	BadgeArtLover   = "art_lover"
	BadgeStreak3    = "streak_3"
)

// State is everything the badge predicates look at.
type State struct {
	Progress  Progress
	MoodCount int
}

var rules = map[string]func(State) bool{
	BadgeFirstMood:  func(s State) bool { return s.MoodCount >= 1 },
	BadgePoints150:  func(s State) bool { return s.Progress.Points >= 150 },
	BadgeMathMaster: func(s State) bool { return s.Progress.Activity.MathRounds >= 1 },
	BadgeArtLover:   func(s State) bool { return s.Progress.Activity.ArtTransforms >= 1 },
	BadgeStreak3:    func(s State) bool { return s.Progress.Streak >= 3 },
}

// EvaluateBadges returns the ids whose predicate holds and that are not yet
// unlocked, in catalog order. It does not modify s.
func EvaluateBadges(cat *catalog.Catalog, s State) []string {
	var unlocked []string
	for _, b := range cat.Badges {
		rule, ok := rules[b.ID]
		if !ok || s.Progress.HasBadge(b.ID) {
			continue
		}
		if rule(s) {
			unlocked = append(unlocked, b.ID)
		}
	}
	return unlocked
}

// BadgeView is a catalog badge with its unlocked flag.
type BadgeView struct {
	catalog.Badge
	Unlocked bool `json:"unlocked"`
}

// Badges lists every catalog badge marked against p.
func Badges(cat *catalog.Catalog, p Progress) []BadgeView {
	out := make([]BadgeView, 0, len(cat.Badges))
	for _, b := range cat.Badges {
		out = append(out, BadgeView{Badge: b, Unlocked: p.HasBadge(b.ID)})
	}
	return out
}
