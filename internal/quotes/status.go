package quotes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fasodevis/fasodevis-backend/internal/auth"
	"github.com/fasodevis/fasodevis-backend/pkg/models"
	"github.com/fasodevis/fasodevis-backend/pkg/utils"
	"github.com/fasodevis/fasodevis-backend/pkg/validation"
)

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft sent accepted refused expired"`
}

// @Summary      Change quote status
// @Description  Any transition is permitted so the artisan can always fix a mistake. sent_at is stamped once, on the first draft -> sent move, and never touched again.
// @Tags         quotes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string         true  "quote id (uuid)"
// @Param        payload  body  StatusRequest  true  "Target status"
// @Success      200  {object}  models.Quote
// @Failure      404  {object}  models.ErrorResponse
// @Router       /quotes/{id}/status [post]
func (h *Handler) ChangeStatus(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	q, err := h.load(userID, c.Params("id"), false)
	if err != nil {
		return err
	}

	var in StatusRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	oldStatus := q.Status
	newStatus := models.QuoteStatus(in.Status)

	updates := map[string]any{"status": newStatus}
	if oldStatus == models.QuoteDraft && newStatus == models.QuoteSent && q.SentAt == nil {
		now := time.Now()
		updates["sent_at"] = now
		q.SentAt = &now
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		return tx.Model(q).Updates(updates).Error
	})
	if err != nil {
		return fiber.ErrInternalServerError
	}
	q.Status = newStatus

	if oldStatus != newStatus {
		actor, _ := uuid.Parse(userID)
		utils.LogQuoteHistory(c.Context(), h.db, q.ID, actor, "status_change", oldStatus, newStatus)
	}
	return c.JSON(q)
}
