package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanJSON("  {\"a\":1} "))
}

func TestParseQuote(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Quote
		wantErr bool
	}{
		{"valid", `{"quote":"Brilla hoy.","hint":"Luz"}`, Quote{"Brilla hoy.", "Luz"}, false},
		{"fenced", "```json\n{\"quote\":\"Brilla.\",\"hint\":\"Sol\"}\n```", Quote{"Brilla.", "Sol"}, false},
		{"empty", "", EmptyQuote, false},
		{"malformed", `quote: hola`, DefaultQuote, true},
		{"missing quote", `{"hint":"x"}`, DefaultQuote, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuote(tt.raw)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				var perr *ParseError
				assert.ErrorAs(t, err, &perr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseReframe(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Reframe
		wantErr bool
	}{
		{"valid", `{"score":8,"feedback":"¡Súper!"}`, Reframe{8, "¡Súper!"}, false},
		{"float score", `{"score":7.6,"feedback":"ok"}`, Reframe{8, "ok"}, false},
		{"clamped high", `{"score":15,"feedback":"wow"}`, Reframe{10, "wow"}, false},
		{"clamped low", `{"score":-3,"feedback":"mmm"}`, Reframe{0, "mmm"}, false},
		{"empty", "  ", EmptyReframe, false},
		{"missing score", `{"feedback":"x"}`, DefaultReframe, true},
		{"garbage", `not json`, DefaultReframe, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReframe(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestParseExplanationWithoutSections(t *testing.T) {
	exp, err := ParseExplanation("solo texto libre")
	assert.Error(t, err)
	assert.Equal(t, "solo texto libre", exp.Content)
}

func TestStripSectionMarkers(t *testing.T) {
	got := StripSectionMarkers("RESUMEN_MAGICO: Hola. ANALOGIA: Mundo.")
	assert.Equal(t, "Hola.  Mundo.", got)
}

func TestRateLimitedMatching(t *testing.T) {
	assert.True(t, IsRateLimited(&RemoteError{Op: "x", RateLimited: true}))
	assert.False(t, IsRateLimited(&RemoteError{Op: "x"}))
}
