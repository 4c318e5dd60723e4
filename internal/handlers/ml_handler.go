package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/mlclient"
)

// ModelStatusGetter reads the training status of a user's model.
type ModelStatusGetter interface {
	GetModelStatus(ctx context.Context, userID string) (*mlclient.ModelStatus, error)
}

// MLHandler exposes read-only ML service information.
type MLHandler struct {
	ml ModelStatusGetter
}

// NewMLHandler creates a new MLHandler.
func NewMLHandler(ml ModelStatusGetter) *MLHandler {
	return &MLHandler{ml: ml}
}

// GetModelStatus handles the model status lookup
// @Summary     Get personal model status
// @Description Report when the user's personal categorization model was last retrained
// @Tags        ml
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} mlclient.ModelStatus "Model status"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     502 {object} ErrorResponse "Categorization service unavailable"
// @Router      /ml/status [get]
func (h *MLHandler) GetModelStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	status, err := h.ml.GetModelStatus(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrUpstream, err))
		return
	}

	c.JSON(http.StatusOK, status)
}
