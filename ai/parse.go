package ai

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strings"
)

// Quote is a motivational phrase with a one word hint.
type Quote struct {
	Quote string `json:"quote"`
	Hint  string `json:"hint"`
}

// Reframe is the model's score of a reframed thought.
type Reframe struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Explanation is a topic explained in four labelled sections.
type Explanation struct {
	Summary string `json:"summary"`
	Simple  string `json:"simple"`
	Detail  string `json:"detail"`
	Analogy string `json:"analogy"`
	Content string `json:"content"`
}

// Defaults used when a model answer is empty or unusable.
var (
	EmptyQuote   = Quote{Quote: "Cree en ti.", Hint: "Confianza"}
	DefaultQuote = Quote{Quote: "Hoy es un buen día.", Hint: "Optimismo"}

	EmptyReframe   = Reframe{Score: 5, Feedback: "Bien"}
	DefaultReframe = Reframe{Score: 5, Feedback: "Interesante."}
)

// Explanation section markers in answer order.
const (
	SectionSummary = "RESUMEN_MAGICO"
	SectionSimple  = "EXPLICACION_SIMPLE"
	SectionDetail  = "DETALLE_JOVEN"
	SectionAnalogy = "ANALOGIA"
)

var (
	fenceRe  = regexp.MustCompile("```(?:json)?")
	markerRe = regexp.MustCompile(`[A-Z_]+:`)
)

// CleanJSON strips markdown code fences around a JSON answer.
func CleanJSON(text string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
}

// ParseQuote decodes a quote answer. Empty input yields EmptyQuote.
func ParseQuote(raw string) (Quote, error) {
	cleaned := CleanJSON(raw)
	if cleaned == "" {
		return EmptyQuote, nil
	}
	var q Quote
	if err := json.Unmarshal([]byte(cleaned), &q); err != nil {
		return DefaultQuote, &ParseError{What: "quote", Raw: raw, Err: err}
	}
	q.Quote = strings.TrimSpace(q.Quote)
	q.Hint = strings.TrimSpace(q.Hint)
	if q.Quote == "" {
		return DefaultQuote, &ParseError{What: "quote", Raw: raw, Err: errors.New("missing quote")}
	}
	return q, nil
}

// ParseReframe decodes a reframe evaluation. The score is rounded and
// clamped to 0..10. Empty input yields EmptyReframe.
func ParseReframe(raw string) (Reframe, error) {
	cleaned := CleanJSON(raw)
	if cleaned == "" {
		return EmptyReframe, nil
	}
	var body struct {
		Score    *json.Number `json:"score"`
		Feedback string       `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(cleaned), &body); err != nil {
		return DefaultReframe, &ParseError{What: "reframe", Raw: raw, Err: err}
	}
	if body.Score == nil {
		return DefaultReframe, &ParseError{What: "reframe", Raw: raw, Err: errors.New("missing score")}
	}
	f, err := body.Score.Float64()
	if err != nil {
		return DefaultReframe, &ParseError{What: "reframe", Raw: raw, Err: err}
	}
	score := int(math.Round(math.Max(0, math.Min(10, f))))
	return Reframe{Score: score, Feedback: strings.TrimSpace(body.Feedback)}, nil
}

// ParseExplanation splits an answer into its labelled sections. An answer
// without a single section marker is a ParseError; the raw text is still
// returned as Content.
func ParseExplanation(raw string) (Explanation, error) {
	e := Explanation{
		Summary: section(raw, SectionSummary),
		Simple:  section(raw, SectionSimple),
		Detail:  section(raw, SectionDetail),
		Analogy: section(raw, SectionAnalogy),
		Content: raw,
	}
	if e.Summary == "" && e.Simple == "" && e.Detail == "" && e.Analogy == "" {
		return e, &ParseError{What: "explanation", Raw: raw, Err: errors.New("no sections")}
	}
	return e, nil
}

// section returns the text after "NAME:" up to the next marker.
func section(raw, name string) string {
	_, after, ok := strings.Cut(raw, name+":")
	if !ok {
		return ""
	}
	if loc := markerRe.FindStringIndex(after); loc != nil {
		after = after[:loc[0]]
	}
	return strings.TrimSpace(after)
}

// StripSectionMarkers removes the "NAME:" labels so the text reads well
// when spoken.
func StripSectionMarkers(text string) string {
	return strings.TrimSpace(markerRe.ReplaceAllString(text, ""))
}
