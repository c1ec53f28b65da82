package api

import (
	"github.com/gin-gonic/gin"

	"calma/backend/ai"
	"calma/backend/internal/art"
)

// ArtHandler serves the mandala and image transform routes.
type ArtHandler struct {
	studio *art.Studio
}

// NewArtHandler creates the handler.
func NewArtHandler(studio *art.Studio) *ArtHandler {
	return &ArtHandler{studio: studio}
}

// RegisterRoutes mounts the handler on rg.
func (h *ArtHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/art")
	{
		g.POST("/strokes", h.Stroke)
		g.POST("/transform", h.Transform)
		g.POST("/mirror", h.Mirror)
	}
}

// Stroke rewards a finished mandala stroke.
func (h *ArtHandler) Stroke(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	award, err := h.studio.Stroke(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, award)
}

type transformRequest struct {
	Image    []byte `json:"image"`
	MIMEType string `json:"mimeType"`
	Prompt   string `json:"prompt"`
}

// Transform edits an uploaded drawing. The image is base64 in JSON.
func (h *ArtHandler) Transform(c *gin.Context) {
	id, found := profileID(c)
	if !found {
		return
	}
	var req transformRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.studio.Transform(c.Request.Context(), id,
		ai.Image{Data: req.Image, MIMEType: req.MIMEType}, req.Prompt)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

type mirrorRequest struct {
	Point    art.Point `json:"point"`
	Center   art.Point `json:"center"`
	Symmetry int       `json:"symmetry"`
}

// Mirror returns the rotational copies of a point.
func (h *ArtHandler) Mirror(c *gin.Context) {
	var req mirrorRequest
	if !bind(c, &req) {
		return
	}
	if req.Symmetry == 0 {
		req.Symmetry = art.DefaultSymmetry
	}
	points, err := art.Mirror(req.Point, req.Center, req.Symmetry)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"points": points})
}
