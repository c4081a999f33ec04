package quotes

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/fasodevis/fasodevis-backend/internal/auth"
	"github.com/fasodevis/fasodevis-backend/internal/limits"
	"github.com/fasodevis/fasodevis-backend/pkg/models"
)

// @Summary      Export quote as PDF
// @Description  Renders the quote with the house template. Free accounts get a watermark footer on every page.
// @Tags         quotes
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id  path  string  true  "quote id (uuid)"
// @Success      200  {file}    binary
// @Failure      404  {object}  models.ErrorResponse
// @Router       /quotes/{id}/pdf [get]
func (h *Handler) ExportPDF(c *fiber.Ctx) error {
	var u models.User
	if err := h.db.First(&u, "id = ?", auth.MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	q, err := h.load(u.ID.String(), c.Params("id"), true)
	if err != nil {
		return err
	}
	sortItems(q.Items)

	watermark := limits.EffectivePlan(&u, h.limits.Now()) == models.PlanFree
	buf, renderErr := h.renderer.Render(&u, q, watermark)
	if renderErr != nil {
		return fiber.ErrInternalServerError
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.pdf"`, q.Number))
	return c.Send(buf)
}
