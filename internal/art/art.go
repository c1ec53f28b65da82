// Package art covers the drawing features: the mandala mirror and the AI
// image transform.
package art

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"calma/backend/ai"
	"calma/backend/internal/catalog"
	"calma/backend/internal/profile"
	"calma/backend/internal/progress"
	"calma/backend/pkg/logger"
)

// Symmetry bounds of the mandala.
const (
	DefaultSymmetry = 8
	MaxSymmetry     = 36
)

var (
	ErrInvalidSymmetry = errors.New("symmetry must be between 1 and 36")
	ErrMissingImage    = errors.New("image and prompt are required")
	// ErrTransformFailed is returned when the AI could not edit the image.
	ErrTransformFailed = errors.New("image could not be transformed")
)

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Mirror returns the symmetry rotational copies of p around center, the
// first being p itself.
func Mirror(p, center Point, symmetry int) ([]Point, error) {
	if symmetry < 1 || symmetry > MaxSymmetry {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSymmetry, symmetry)
	}
	rx, ry := p.X-center.X, p.Y-center.Y
	step := 2 * math.Pi / float64(symmetry)

	out := make([]Point, symmetry)
	for i := range out {
		sin, cos := math.Sincos(float64(i) * step)
		out[i] = Point{
			X: center.X + rx*cos - ry*sin,
			Y: center.Y + rx*sin + ry*cos,
		}
	}
	return out, nil
}

// Editor edits images.
type Editor interface {
	EditArtImage(ctx context.Context, img ai.Image, prompt string) (ai.Image, bool)
}

// Ledger settles art rewards.
type Ledger interface {
	AddPoints(ctx context.Context, profileID string, n int, reason string) (profile.Award, error)
	CompleteActivity(ctx context.Context, profileID, kind string, points int, reason string) (profile.Award, error)
}

// Studio applies art rewards.
type Studio struct {
	editor  Editor
	ledger  Ledger
	rewards catalog.Rewards
	log     *logger.Logger
}

// NewStudio creates a studio.
func NewStudio(editor Editor, ledger Ledger, cat *catalog.Catalog, log *logger.Logger) *Studio {
	if log == nil {
		log = logger.Discard()
	}
	return &Studio{editor: editor, ledger: ledger, rewards: cat.Rewards, log: log}
}

// Stroke records a finished mandala stroke.
func (s *Studio) Stroke(ctx context.Context, profileID string) (profile.Award, error) {
	return s.ledger.AddPoints(ctx, profileID, s.rewards.ArtStroke, profile.ReasonArtStroke)
}

// Transformed is a successful transform.
type Transformed struct {
	Image ai.Image      `json:"image"`
	Award profile.Award `json:"award"`
}

// Transform edits img following prompt. Only a successful edit is rewarded.
func (s *Studio) Transform(ctx context.Context, profileID string, img ai.Image, prompt string) (Transformed, error) {
	if profileID == "" {
		return Transformed{}, profile.ErrMissingProfile
	}
	if len(img.Data) == 0 || strings.TrimSpace(prompt) == "" {
		return Transformed{}, ErrMissingImage
	}
	if img.MIMEType == "" {
		img.MIMEType = "image/png"
	}

	out, ok := s.editor.EditArtImage(ctx, img, prompt)
	if !ok {
		return Transformed{}, ErrTransformFailed
	}
	award, err := s.ledger.CompleteActivity(ctx, profileID, progress.ActivityArt, s.rewards.ArtTransform, profile.ReasonArtTransform)
	if err != nil {
		return Transformed{}, err
	}
	s.log.Info("Art transformed", "profile_id", profileID, "bytes", len(out.Data))
	return Transformed{Image: out, Award: award}, nil
}
