package quotes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fasodevis/fasodevis-backend/internal/parser"
	"github.com/fasodevis/fasodevis-backend/pkg/validation"
)

type ParseRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
}

// @Summary      Parse dictated line items
// @Description  Turns free-form French text (one line per item) into structured line items. Lines the parser cannot fully read come back flagged for completion instead of being dropped.
// @Tags         quotes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  ParseRequest  true  "Raw dictated text"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /quotes/parse [post]
func (h *Handler) Parse(c *fiber.Ctx) error {
	var in ParseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	items := parser.ParseLines(in.Text)
	return c.JSON(fiber.Map{"items": items})
}
