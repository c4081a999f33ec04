package limits

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/fasodevis/fasodevis-backend/internal/auth"
	"github.com/fasodevis/fasodevis-backend/pkg/models"
)

type Handler struct {
	db      *gorm.DB
	checker *Checker
}

func NewHandler(db *gorm.DB, ch *Checker) *Handler {
	return &Handler{db: db, checker: ch}
}

type usageEntry struct {
	Current int64  `json:"current"`
	Limit   *int64 `json:"limit"` // null means unlimited
	Allowed bool   `json:"allowed"`
}

// @Summary      Plan usage overview
// @Description  Current counts against the plan ceilings, so the app can grey out creation buttons before a 403
// @Tags         limits
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /limits [get]
func (h *Handler) Overview(c *fiber.Ctx) error {
	var u models.User
	if err := h.db.First(&u, "id = ?", auth.MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	usage := fiber.Map{}
	for _, res := range []Resource{ResourceQuotes, ResourceClients, ResourceCatalog} {
		r, err := h.checker.Check(c.Context(), &u, res)
		if err != nil {
			return fiber.ErrInternalServerError
		}
		usage[string(res)] = usageEntry{Current: r.Current, Limit: r.Limit, Allowed: r.Allowed}
	}

	return c.JSON(fiber.Map{
		"plan":            EffectivePlan(&u, h.checker.Now()),
		"plan_expires_at": u.PlanExpiresAt,
		"usage":           usage,
	})
}
