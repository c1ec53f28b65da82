// Package api holds the HTTP handlers of the /api/v1 surface. Every
// request is scoped to the profile named by the X-Profile-ID header.
package api

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"calma/backend/ai"
	"calma/backend/internal/art"
	"calma/backend/internal/games"
	"calma/backend/internal/profile"
	"calma/backend/internal/progress"
	"calma/backend/pkg/errors"
	"calma/backend/pkg/logger"
)

// profileID reads the caller's profile. It aborts with 400 when missing.
func profileID(c *gin.Context) (string, bool) {
	id := c.GetHeader(logger.ProfileHeader)
	if id == "" {
		id = c.Query("profileId")
	}
	if id == "" {
		c.Error(errors.NewBadRequestError(errors.CodeBadRequest, "X-Profile-ID header is required"))
		c.Abort()
		return "", false
	}
	return id, true
}

// bind decodes the JSON body into dst, reporting a 400 on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.Error(errors.BadRequestWithDetails(errors.CodeBadRequest, "Invalid request body", err.Error()))
		c.Abort()
		return false
	}
	return true
}

// fail maps a domain error to its HTTP form and aborts.
func fail(c *gin.Context, err error) {
	c.Error(toAppError(err))
	c.Abort()
}

func toAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	badRequest := []error{
		profile.ErrMissingProfile, profile.ErrEmptyName, profile.ErrEmptyMood,
		progress.ErrNegativePoints,
		games.ErrUnknownDifficulty, games.ErrUnknownOperation, games.ErrEmptyReframe,
		games.ErrUnknownWord,
		art.ErrInvalidSymmetry, art.ErrMissingImage,
	}
	for _, target := range badRequest {
		if stderrors.Is(err, target) {
			return errors.NewBadRequestError(errors.CodeBadRequest, err.Error()).WithCause(err)
		}
	}

	switch {
	case stderrors.Is(err, games.ErrGameNotFound):
		return errors.NewNotFoundError(errors.CodeNotFound, err.Error()).WithCause(err)
	case stderrors.Is(err, games.ErrRoundFinished), stderrors.Is(err, games.ErrNotPlaying):
		return errors.NewConflictError(errors.CodeConflict, err.Error()).WithCause(err)
	case ai.IsRateLimited(err):
		return errors.NewTooManyRequestsError(errors.CodeRateLimited, ai.FallbackExplanationError).WithCause(err)
	case stderrors.Is(err, art.ErrTransformFailed):
		return errors.NewBadGatewayError(errors.CodeRemoteService, "No pude procesar la imagen esta vez.").WithCause(err)
	}

	var remote *ai.RemoteError
	if stderrors.As(err, &remote) {
		return errors.NewBadGatewayError(errors.CodeRemoteService, ai.FallbackExplanationError).WithCause(err)
	}
	return errors.FromError(err)
}

func ok(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}

// today is the calendar day used to key daily content.
func today(now time.Time) string {
	return now.Format("2006-01-02")
}
