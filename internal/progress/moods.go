package progress

import "time"

// MoodLog is one journal entry.
type MoodLog struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Mood      string    `json:"mood"`
	Emoji     string    `json:"emoji"`
	Thought   string    `json:"thought,omitempty"`
}

// PrependMood puts entry first and trims history to limit entries.
func PrependMood(history []MoodLog, entry MoodLog, limit int) []MoodLog {
	out := make([]MoodLog, 0, len(history)+1)
	out = append(out, entry)
	out = append(out, history...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MoodCount is how often a mood appears in the history.
type MoodCount struct {
	Mood  string `json:"mood"`
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// MoodStats summarises a history.
type MoodStats struct {
	Total    int         `json:"total"`
	Dominant *MoodCount  `json:"dominant,omitempty"`
	Counts   []MoodCount `json:"counts"`
}

// Stats counts moods in order of first appearance. The dominant mood is the
// most frequent one; ties go to the mood seen first, which is the most recent.
func Stats(history []MoodLog) MoodStats {
	stats := MoodStats{Total: len(history), Counts: []MoodCount{}}
	index := make(map[string]int)
	for _, log := range history {
		i, ok := index[log.Mood]
		if !ok {
			i = len(stats.Counts)
			index[log.Mood] = i
			stats.Counts = append(stats.Counts, MoodCount{Mood: log.Mood, Emoji: log.Emoji})
		}
		stats.Counts[i].Count++
	}
	for i := range stats.Counts {
		if stats.Dominant == nil || stats.Counts[i].Count > stats.Dominant.Count {
			c := stats.Counts[i]
			stats.Dominant = &c
		}
	}
	return stats
}
