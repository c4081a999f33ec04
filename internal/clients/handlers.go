package clients

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fasodevis/fasodevis-backend/internal/auth"
	"github.com/fasodevis/fasodevis-backend/internal/limits"
	"github.com/fasodevis/fasodevis-backend/pkg/models"
	"github.com/fasodevis/fasodevis-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

type UpsertClientRequest struct {
	FullName string `json:"full_name" validate:"required,min=2,max=120"`
	Phone    string `json:"phone" validate:"required,phone"`
	Email    string `json:"email" validate:"omitempty,email,max=120"`
	Address  string `json:"address" validate:"omitempty,max=300"`
	Notes    string `json:"notes" validate:"omitempty,max=2000"`
}

type ClientItem struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
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

func (h *Handler) owned(c *fiber.Ctx) (*models.User, error) {
	var u models.User
	if err := h.db.First(&u, "id = ?", auth.MustUserID(c)).Error; err != nil {
		return nil, fiber.ErrUnauthorized
	}
	return &u, nil
}

/* =============================== Create ================================= */

// @Summary      Create client
// @Description  Create a client, subject to the plan ceiling
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  UpsertClientRequest  true  "Client payload"
// @Success      201  {object}  ClientItem
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse  "plan limit reached"
// @Router       /clients [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	u, err := h.owned(c)
	if err != nil {
		return err
	}

	var in UpsertClientRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	check, err := h.limits.Check(c.Context(), u, limits.ResourceClients)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if !check.Allowed {
		return fiber.NewError(fiber.StatusForbidden, check.Message)
	}

	cl := models.Client{
		UserID:   u.ID,
		FullName: strings.TrimSpace(in.FullName),
		Phone:    strings.TrimSpace(in.Phone),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Address:  strings.TrimSpace(in.Address),
		Notes:    strings.TrimSpace(in.Notes),
	}
	if err := h.db.Create(&cl).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.Status(fiber.StatusCreated).JSON(toItem(cl))
}

/* ================================ List ================================== */

// @Summary      List clients
// @Description  Paginated list of the caller's clients, optional name/phone search
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Param        q         query string false "search on name or phone"
// @Success      200  {object}  map[string]any
// @Router       /clients [get]
func (h *Handler) List(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	page, size := parsePage(c)
	search := strings.TrimSpace(c.Query("q"))

	q := h.db.Model(&models.Client{}).Where("user_id = ?", userID)
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("full_name LIKE ? OR phone LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	var rows []models.Client
	if err := q.Order("full_name ASC").
		Offset((page - 1) * size).Limit(size).
		Find(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	items := make([]ClientItem, 0, len(rows))
	for _, cl := range rows {
		items = append(items, toItem(cl))
	}

	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total,
		"pages": int(math.Ceil(float64(total) / float64(size))),
		"items": items,
	})
}

/* ================================= Get ================================== */

// @Summary      Client detail
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "client id (uuid)"
// @Success      200  {object}  ClientItem
// @Failure      404  {object}  models.ErrorResponse
// @Router       /clients/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	cl, err := h.find(userID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toItem(*cl))
}

/* ================================ Update ================================ */

// @Summary      Update client
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string               true  "client id (uuid)"
// @Param        payload  body  UpsertClientRequest  true  "Client payload"
// @Success      200  {object}  ClientItem
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /clients/{id} [put]
func (h *Handler) Update(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	cl, err := h.find(userID, c.Params("id"))
	if err != nil {
		return err
	}

	var in UpsertClientRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	if err := h.db.Model(cl).Updates(map[string]any{
		"full_name": strings.TrimSpace(in.FullName),
		"phone":     strings.TrimSpace(in.Phone),
		"email":     strings.ToLower(strings.TrimSpace(in.Email)),
		"address":   strings.TrimSpace(in.Address),
		"notes":     strings.TrimSpace(in.Notes),
	}).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(toItem(*cl))
}

/* ================================ Delete ================================ */

// @Summary      Delete client
// @Description  Refused while quotes still reference the client
// @Tags         clients
// @Security     BearerAuth
// @Param        id  path  string  true  "client id (uuid)"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "client has quotes"
// @Router       /clients/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	cl, err := h.find(userID, c.Params("id"))
	if err != nil {
		return err
	}

	var cnt int64
	if err := h.db.Model(&models.Quote{}).
		Where("client_id = ?", cl.ID).
		Count(&cnt).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if cnt > 0 {
		return fiber.NewError(fiber.StatusConflict, "client has quotes and cannot be deleted")
	}

	if err := h.db.Delete(cl).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.SendStatus(fiber.StatusNoContent)
}

/* =============================== Helpers ================================ */

func (h *Handler) find(userID, id string) (*models.Client, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid client id")
	}
	var cl models.Client
	if err := h.db.Where("id = ? AND user_id = ?", id, userID).First(&cl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.ErrNotFound
		}
		return nil, fiber.ErrInternalServerError
	}
	return &cl, nil
}

func toItem(cl models.Client) ClientItem {
	return ClientItem{
		ID:        cl.ID,
		FullName:  cl.FullName,
		Phone:     cl.Phone,
		Email:     cl.Email,
		Address:   cl.Address,
		Notes:     cl.Notes,
		CreatedAt: cl.CreatedAt,
		UpdatedAt: cl.UpdatedAt,
	}
}
