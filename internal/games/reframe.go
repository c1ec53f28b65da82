package games

// ReframePoints is the reward for a reframe scored score: score times
// multiplier once the score reaches threshold, otherwise nothing.
func ReframePoints(score, threshold, multiplier int) int {
	if score < threshold {
		return 0
	}
	return score * multiplier
}
