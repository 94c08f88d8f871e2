// Package handler exposes the HTTP surface: the chat platform webhook plus
// the operational health, readiness, and metrics endpoints.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/schoolbot/internal/bot"
	"github.com/noah-isme/schoolbot/internal/chat"
	apperrors "github.com/noah-isme/schoolbot/pkg/errors"
	"github.com/noah-isme/schoolbot/pkg/response"
)

// UpdateHandler receives webhook updates and hands them to the router.
type UpdateHandler struct {
	router *bot.Router
}

// NewUpdateHandler constructs an UpdateHandler.
func NewUpdateHandler(router *bot.Router) *UpdateHandler {
	return &UpdateHandler{router: router}
}

// Handle decodes one update and processes it. The webhook always answers 200
// for well-formed payloads; user-facing errors are delivered over chat, and a
// non-2xx here would only make the platform redeliver the same update.
func (h *UpdateHandler) Handle(c *gin.Context) {
	var update chat.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "malformed update"))
		return
	}
	h.router.HandleUpdate(c.Request.Context(), &update)
	c.Status(http.StatusOK)
}
