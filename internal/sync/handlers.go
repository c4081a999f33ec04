// Package sync replays batches of mutations queued while the app was
// offline. Operations apply strictly in the order they were enqueued,
// each in its own transaction, and a failed operation never blocks the
// rest of the batch: the client gets a per-operation verdict and decides
// what to retry.
package sync

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/fasodevis/fasodevis-backend/internal/auth"
	"github.com/fasodevis/fasodevis-backend/internal/limits"
	"github.com/fasodevis/fasodevis-backend/internal/parser"
	"github.com/fasodevis/fasodevis-backend/internal/pricing"
	"github.com/fasodevis/fasodevis-backend/pkg/models"
	"github.com/fasodevis/fasodevis-backend/pkg/validation"
)

type Operation struct {
	Op         string          `json:"op" validate:"required,oneof=create update delete"`
	Collection string          `json:"collection" validate:"required,max=30"`
	EntityID   string          `json:"entity_id" validate:"omitempty,uuid4"`
	Payload    json.RawMessage `json:"payload"`
}

type BatchRequest struct {
	Operations []Operation `json:"operations" validate:"required,min=1,max=200,dive"`
}

type OpResult struct {
	Index    int    `json:"index"`
	OK       bool   `json:"ok"`
	EntityID string `json:"entity_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Handler struct {
	db     *gorm.DB
	limits *limits.Checker
}

func NewHandler(db *gorm.DB, lc *limits.Checker) *Handler {
	return &Handler{db: db, limits: lc}
}

// @Summary      Replay offline mutations
// @Description  Applies queued operations FIFO. Last write wins; a failed operation is reported and the batch continues.
// @Tags         sync
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  BatchRequest  true  "Ordered operations"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /sync [post]
func (h *Handler) Apply(c *fiber.Ctx) error {
	var u models.User
	if err := h.db.First(&u, "id = ?", auth.MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	var in BatchRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	results := make([]OpResult, 0, len(in.Operations))
	failed := 0
	for i, op := range in.Operations {
		res := OpResult{Index: i}
		id, err := h.applyOne(c, &u, op)
		if err != nil {
			res.Error = err.Error()
			failed++
		} else {
			res.OK = true
			res.EntityID = id
		}
		results = append(results, res)
	}

	return c.JSON(fiber.Map{
		"applied": len(in.Operations) - failed,
		"failed":  failed,
		"results": results,
	})
}

func (h *Handler) applyOne(c *fiber.Ctx, u *models.User, op Operation) (string, error) {
	switch op.Collection {
	case "clients":
		return h.applyClient(c, u, op)
	case "catalog":
		return h.applyCatalog(c, u, op)
	case "quotes":
		return h.applyQuoteStatus(c, u, op)
	default:
		return "", errors.New("unsupported collection: " + op.Collection)
	}
}

/* ============================== Clients ================================= */

type clientPayload struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	Notes    string `json:"notes"`
}

func (h *Handler) applyClient(c *fiber.Ctx, u *models.User, op Operation) (string, error) {
	switch op.Op {
	case "create":
		var p clientPayload
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return "", errors.New("invalid client payload")
		}
		if strings.TrimSpace(p.FullName) == "" || strings.TrimSpace(p.Phone) == "" {
			return "", errors.New("full_name and phone are required")
		}
		check, err := h.limits.Check(c.Context(), u, limits.ResourceClients)
		if err != nil {
			return "", errors.New("limit check failed")
		}
		if !check.Allowed {
			return "", errors.New(check.Message)
		}
		cl := models.Client{
			UserID: u.ID, FullName: strings.TrimSpace(p.FullName),
			Phone: strings.TrimSpace(p.Phone), Email: strings.TrimSpace(p.Email),
			Address: strings.TrimSpace(p.Address), Notes: p.Notes,
		}
		if err := h.db.Create(&cl).Error; err != nil {
			return "", errors.New("create failed")
		}
		return cl.ID.String(), nil

	case "update":
		var p clientPayload
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return "", errors.New("invalid client payload")
		}
		var cl models.Client
		if err := h.db.Where("id = ? AND user_id = ?", op.EntityID, u.ID).First(&cl).Error; err != nil {
			return "", errors.New("client not found")
		}
		err := h.db.Model(&cl).Updates(map[string]any{
			"full_name": strings.TrimSpace(p.FullName),
			"phone":     strings.TrimSpace(p.Phone),
			"email":     strings.TrimSpace(p.Email),
			"address":   strings.TrimSpace(p.Address),
			"notes":     p.Notes,
		}).Error
		if err != nil {
			return "", errors.New("update failed")
		}
		return cl.ID.String(), nil

	case "delete":
		var n int64
		if err := h.db.Model(&models.Quote{}).
			Where("client_id = ? AND user_id = ?", op.EntityID, u.ID).
			Count(&n).Error; err != nil {
			return "", errors.New("delete failed")
		}
		if n > 0 {
			return "", errors.New("client has quotes and cannot be deleted")
		}
		res := h.db.Where("id = ? AND user_id = ?", op.EntityID, u.ID).Delete(&models.Client{})
		if res.Error != nil || res.RowsAffected == 0 {
			return "", errors.New("client not found")
		}
		return op.EntityID, nil
	}
	return "", errors.New("unsupported op")
}

/* ============================== Catalog ================================= */

type catalogPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	UnitPrice   string `json:"unit_price"`
	Category    string `json:"category"`
	IsTemplate  bool   `json:"is_template"`
}

func (h *Handler) applyCatalog(c *fiber.Ctx, u *models.User, op Operation) (string, error) {
	switch op.Op {
	case "create", "update":
		var p catalogPayload
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return "", errors.New("invalid catalog payload")
		}
		if strings.TrimSpace(p.Name) == "" {
			return "", errors.New("name is required")
		}
		price := pricing.ParseAmount(p.UnitPrice)
		if price.IsNegative() {
			return "", errors.New("unit_price must be >= 0")
		}
		fields := map[string]any{
			"name":        strings.TrimSpace(p.Name),
			"description": strings.TrimSpace(p.Description),
			"unit":        parser.NormalizeUnit(p.Unit),
			"unit_price":  price,
			"category":    strings.TrimSpace(p.Category),
			"is_template": p.IsTemplate,
		}

		if op.Op == "create" {
			check, err := h.limits.Check(c.Context(), u, limits.ResourceCatalog)
			if err != nil {
				return "", errors.New("limit check failed")
			}
			if !check.Allowed {
				return "", errors.New(check.Message)
			}
			item := models.CatalogItem{
				UserID: u.ID, Name: fields["name"].(string),
				Description: fields["description"].(string),
				Unit:        fields["unit"].(string), UnitPrice: price,
				Category: fields["category"].(string), IsTemplate: p.IsTemplate,
			}
			if err := h.db.Create(&item).Error; err != nil {
				return "", errors.New("create failed")
			}
			return item.ID.String(), nil
		}

		var item models.CatalogItem
		if err := h.db.Where("id = ? AND user_id = ?", op.EntityID, u.ID).First(&item).Error; err != nil {
			return "", errors.New("catalog item not found")
		}
		if err := h.db.Model(&item).Updates(fields).Error; err != nil {
			return "", errors.New("update failed")
		}
		return item.ID.String(), nil

	case "delete":
		res := h.db.Where("id = ? AND user_id = ?", op.EntityID, u.ID).Delete(&models.CatalogItem{})
		if res.Error != nil || res.RowsAffected == 0 {
			return "", errors.New("catalog item not found")
		}
		return op.EntityID, nil
	}
	return "", errors.New("unsupported op")
}

/* =========================== Quote status =============================== */

type quoteStatusPayload struct {
	Status string `json:"status"`
}

// Offline quote edits are limited to status moves: creating documents
// offline would need client-side number allocation, which cannot stay
// gap-free across devices. The client keeps drafts locally instead.
func (h *Handler) applyQuoteStatus(c *fiber.Ctx, u *models.User, op Operation) (string, error) {
	if op.Op != "update" {
		return "", errors.New("quotes only support status updates offline")
	}
	var p quoteStatusPayload
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return "", errors.New("invalid quote payload")
	}
	newStatus := models.QuoteStatus(p.Status)
	switch newStatus {
	case models.QuoteDraft, models.QuoteSent, models.QuoteAccepted, models.QuoteRefused, models.QuoteExpired:
	default:
		return "", errors.New("invalid status")
	}

	var q models.Quote
	if err := h.db.Where("id = ? AND user_id = ?", op.EntityID, u.ID).First(&q).Error; err != nil {
		return "", errors.New("quote not found")
	}

	updates := map[string]any{"status": newStatus}
	if q.Status == models.QuoteDraft && newStatus == models.QuoteSent && q.SentAt == nil {
		updates["sent_at"] = time.Now()
	}
	if err := h.db.Model(&q).Updates(updates).Error; err != nil {
		return "", errors.New("update failed")
	}
	return q.ID.String(), nil
}
