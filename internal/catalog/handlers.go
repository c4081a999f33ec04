package catalog

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fasodevis/fasodevis-backend/internal/auth"
	"github.com/fasodevis/fasodevis-backend/internal/limits"
	"github.com/fasodevis/fasodevis-backend/internal/parser"
	"github.com/fasodevis/fasodevis-backend/internal/pricing"
	"github.com/fasodevis/fasodevis-backend/pkg/models"
	"github.com/fasodevis/fasodevis-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

type UpsertItemRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	Description string `json:"description" validate:"omitempty,max=1000"`
	UnitPrice   string `json:"unit_price" validate:"required,max=20"`
	Unit        string `json:"unit" validate:"omitempty,max=20"`
	Category    string `json:"category" validate:"omitempty,max=60"`
	IsTemplate  bool   `json:"is_template"`
}

type CatalogItemView struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Unit        string          `json:"unit"`
	Category    string          `json:"category"`
	IsTemplate  bool            `json:"is_template"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Handler struct {
	db     *gorm.DB
	limits *limits.Checker
}

func NewHandler(db *gorm.DB, lc *limits.Checker) *Handler {
	return &Handler{db: db, limits: lc}
}

func parsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "10"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 50 {
		size = 10
	}
	return
}

/* =============================== Create ================================= */

// @Summary      Create catalogue item
// @Description  Create a reusable service entry, subject to the plan ceiling
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  UpsertItemRequest  true  "Item payload"
// @Success      201  {object}  CatalogItemView
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse  "plan limit reached"
// @Router       /catalog [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var u models.User
	if err := h.db.First(&u, "id = ?", auth.MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	var in UpsertItemRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	price := pricing.ParseAmount(in.UnitPrice)
	if price.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "unit_price must be >= 0")
	}

	check, err := h.limits.Check(c.Context(), &u, limits.ResourceCatalog)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if !check.Allowed {
		return fiber.NewError(fiber.StatusForbidden, check.Message)
	}

	it := models.CatalogItem{
		UserID:      u.ID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		UnitPrice:   price,
		Unit:        parser.NormalizeUnit(in.Unit),
		Category:    strings.TrimSpace(in.Category),
		IsTemplate:  in.IsTemplate,
	}
	if err := h.db.Create(&it).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.Status(fiber.StatusCreated).JSON(toView(it))
}

/* ================================ List ================================== */

// @Summary      List catalogue items
// @Description  Paginated list, optional category filter and name search
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Param        category  query string false "category"
// @Param        q         query string false "search on name"
// @Success      200  {object}  map[string]any
// @Router       /catalog [get]
func (h *Handler) List(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	page, size := parsePage(c)
	category := strings.TrimSpace(c.Query("category"))
	search := strings.TrimSpace(c.Query("q"))

	q := h.db.Model(&models.CatalogItem{}).Where("user_id = ?", userID)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if search != "" {
		q = q.Where("name LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	var rows []models.CatalogItem
	if err := q.Order("name ASC").
		Offset((page - 1) * size).Limit(size).
		Find(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	items := make([]CatalogItemView, 0, len(rows))
	for _, it := range rows {
		items = append(items, toView(it))
	}

	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total,
		"pages": int(math.Ceil(float64(total) / float64(size))),
		"items": items,
	})
}

/* ================================= Get ================================== */

// @Summary      Catalogue item detail
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "item id (uuid)"
// @Success      200  {object}  CatalogItemView
// @Failure      404  {object}  models.ErrorResponse
// @Router       /catalog/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	it, err := h.find(auth.MustUserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toView(*it))
}

/* ================================ Update ================================ */

// @Summary      Update catalogue item
// @Description  Edits never rewrite quote lines copied from this item
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string             true  "item id (uuid)"
// @Param        payload  body  UpsertItemRequest  true  "Item payload"
// @Success      200  {object}  CatalogItemView
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /catalog/{id} [put]
func (h *Handler) Update(c *fiber.Ctx) error {
	it, err := h.find(auth.MustUserID(c), c.Params("id"))
	if err != nil {
		return err
	}

	var in UpsertItemRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	price := pricing.ParseAmount(in.UnitPrice)
	if price.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "unit_price must be >= 0")
	}

	if err := h.db.Model(it).Updates(map[string]any{
		"name":        strings.TrimSpace(in.Name),
		"description": strings.TrimSpace(in.Description),
		"unit_price":  price,
		"unit":        parser.NormalizeUnit(in.Unit),
		"category":    strings.TrimSpace(in.Category),
		"is_template": in.IsTemplate,
	}).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(toView(*it))
}

/* ================================ Delete ================================ */

// @Summary      Delete catalogue item
// @Description  Historical quote lines keep their copied values
// @Tags         catalog
// @Security     BearerAuth
// @Param        id  path  string  true  "item id (uuid)"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Router       /catalog/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	it, err := h.find(auth.MustUserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	if err := h.db.Delete(it).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.SendStatus(fiber.StatusNoContent)
}

/* =============================== Helpers ================================ */

func (h *Handler) find(userID, id string) (*models.CatalogItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid item id")
	}
	var it models.CatalogItem
	if err := h.db.Where("id = ? AND user_id = ?", id, userID).First(&it).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.ErrNotFound
		}
		return nil, fiber.ErrInternalServerError
	}
	return &it, nil
}

func toView(it models.CatalogItem) CatalogItemView {
	return CatalogItemView{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		UnitPrice:   it.UnitPrice,
		Unit:        it.Unit,
		Category:    it.Category,
		IsTemplate:  it.IsTemplate,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
}
