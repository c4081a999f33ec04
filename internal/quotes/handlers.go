package quotes

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fasodevis/fasodevis-backend/internal/auth"
	"github.com/fasodevis/fasodevis-backend/internal/limits"
	"github.com/fasodevis/fasodevis-backend/internal/pdf"
	"github.com/fasodevis/fasodevis-backend/internal/pricing"
	"github.com/fasodevis/fasodevis-backend/pkg/models"
	"github.com/fasodevis/fasodevis-backend/pkg/sanitize"
	"github.com/fasodevis/fasodevis-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

type ItemInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=1000"`
	Quantity    string `json:"quantity" validate:"required,max=20"`
	Unit        string `json:"unit" validate:"omitempty,max=20"`
	UnitPrice   string `json:"unit_price" validate:"required,max=20"`
}

type UpsertQuoteRequest struct {
	ClientID      string      `json:"client_id" validate:"required,uuid4"`
	DocumentType  string      `json:"document_type" validate:"omitempty,oneof=devis facture"`
	IssueDate     string      `json:"issue_date" validate:"omitempty"`  // YYYY-MM-DD, defaults to today
	ValidUntil    string      `json:"valid_until" validate:"omitempty"` // YYYY-MM-DD
	DiscountType  string      `json:"discount_type" validate:"omitempty,oneof=none percent fixed"`
	DiscountValue string      `json:"discount_value" validate:"omitempty,max=20"`
	TaxRate       string      `json:"tax_rate" validate:"omitempty,max=10"`
	PaymentTerms  string      `json:"payment_terms" validate:"omitempty,max=500"`
	Notes         string      `json:"notes" validate:"omitempty,max=2000"`
	Items         []ItemInput `json:"items" validate:"required,min=1,max=100,dive"`
}

type QuoteListItem struct {
	ID           uuid.UUID           `json:"id"`
	Number       string              `json:"number"`
	DocumentType models.DocumentType `json:"document_type"`
	Status       models.QuoteStatus  `json:"status"`
	ClientName   string              `json:"client_name"`
	IssueDate    time.Time           `json:"issue_date"`
	Total        decimal.Decimal     `json:"total"`
	NotesPreview string              `json:"notes_preview,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

type Handler struct {
	db       *gorm.DB
	limits   *limits.Checker
	renderer *pdf.Renderer
}

func NewHandler(db *gorm.DB, lc *limits.Checker, r *pdf.Renderer) *Handler {
	return &Handler{db: db, limits: lc, renderer: r}
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

// @Summary      Create quote
// @Description  Create a devis/facture with its line items; totals are derived server-side and the number allocated transactionally
// @Tags         quotes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  UpsertQuoteRequest  true  "Quote payload"
// @Success      201  {object}  models.Quote
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse  "monthly plan limit reached"
// @Failure      404  {object}  models.ErrorResponse  "unknown client"
// @Router       /quotes [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var u models.User
	if err := h.db.First(&u, "id = ?", auth.MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	var in UpsertQuoteRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	// Client must exist and belong to the caller
	var cl models.Client
	if err := h.db.Where("id = ? AND user_id = ?", in.ClientID, u.ID).First(&cl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	check, err := h.limits.Check(c.Context(), &u, limits.ResourceQuotes)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if !check.Allowed {
		return fiber.NewError(fiber.StatusForbidden, check.Message)
	}

	docType := models.DocDevis
	if in.DocumentType == string(models.DocFacture) {
		docType = models.DocFacture
	}

	issueDate := time.Now()
	if in.IssueDate != "" {
		t, err := time.Parse("2006-01-02", in.IssueDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid issue_date (YYYY-MM-DD)")
		}
		issueDate = t
	}
	var validUntil *time.Time
	if in.ValidUntil != "" {
		t, err := time.Parse("2006-01-02", in.ValidUntil)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid valid_until (YYYY-MM-DD)")
		}
		validUntil = &t
	}

	dt := discountType(in.DiscountType)
	discount := maxZero(pricing.ParseAmount(in.DiscountValue))
	tax := taxRate(in, &u)
	items, res, err := buildItems(in, dt, discount, tax)
	if err != nil {
		return err
	}

	terms := strings.TrimSpace(in.PaymentTerms)
	if terms == "" {
		terms = u.DefaultPaymentTerms
	}

	q := models.Quote{
		UserID:         u.ID,
		ClientID:       cl.ID,
		DocumentType:   docType,
		Status:         models.QuoteDraft,
		IssueDate:      issueDate,
		ValidUntil:     validUntil,
		Subtotal:       res.Subtotal,
		DiscountType:   dt,
		DiscountValue:  discount,
		DiscountAmount: res.DiscountAmount,
		TaxRate:        tax,
		TaxAmount:      res.TaxAmount,
		Total:          res.Total,
		PaymentTerms:   terms,
		Notes:          strings.TrimSpace(in.Notes),
	}

	// Header, items, and counter bump are one transaction: a failure in
	// any of them leaves no orphaned header behind.
	err = h.db.Transaction(func(tx *gorm.DB) error {
		number, err := allocateNumber(tx, u.ID, docType, issueDate)
		if err != nil {
			return err
		}
		q.Number = number
		if err := tx.Create(&q).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].QuoteID = q.ID
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return fiber.ErrInternalServerError
	}

	q.Items = items
	return c.Status(fiber.StatusCreated).JSON(q)
}

/* ================================ List ================================== */

// @Summary      List quotes
// @Description  Paginated list with status/type/client filters
// @Tags         quotes
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Param        status    query string false "draft|sent|accepted|refused|expired"
// @Param        type      query string false "devis|facture"
// @Param        client_id query string false "client id (uuid)"
// @Success      200  {object}  map[string]any
// @Router       /quotes [get]
func (h *Handler) List(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	page, size := parsePage(c)

	q := h.db.Model(&models.Quote{}).Where("quotes.user_id = ?", userID)

	if st := strings.TrimSpace(c.Query("status")); st != "" {
		switch models.QuoteStatus(st) {
		case models.QuoteDraft, models.QuoteSent, models.QuoteAccepted, models.QuoteRefused, models.QuoteExpired:
			q = q.Where("quotes.status = ?", st)
		default:
			return fiber.NewError(fiber.StatusBadRequest, "invalid status filter")
		}
	}
	if dt := strings.TrimSpace(c.Query("type")); dt != "" {
		switch models.DocumentType(dt) {
		case models.DocDevis, models.DocFacture:
			q = q.Where("quotes.document_type = ?", dt)
		default:
			return fiber.NewError(fiber.StatusBadRequest, "invalid type filter")
		}
	}
	if cid := strings.TrimSpace(c.Query("client_id")); cid != "" {
		if _, err := uuid.Parse(cid); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid client_id filter")
		}
		q = q.Where("quotes.client_id = ?", cid)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	var rows []models.Quote
	if err := q.Preload("Client").
		Order("quotes.created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	items := make([]QuoteListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, QuoteListItem{
			ID:           row.ID,
			Number:       row.Number,
			DocumentType: row.DocumentType,
			Status:       row.Status,
			ClientName:   row.Client.FullName,
			IssueDate:    row.IssueDate,
			Total:        row.Total,
			NotesPreview: sanitize.Summary(row.Notes, 120),
			CreatedAt:    row.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total,
		"pages": int(math.Ceil(float64(total) / float64(size))),
		"items": items,
	})
}

/* ================================= Get ================================== */

// @Summary      Quote detail
// @Description  Quote with its client and ordered line items
// @Tags         quotes
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "quote id (uuid)"
// @Success      200  {object}  models.Quote
// @Failure      404  {object}  models.ErrorResponse
// @Router       /quotes/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	q, err := h.load(auth.MustUserID(c), c.Params("id"), true)
	if err != nil {
		return err
	}
	return c.JSON(q)
}

/* ================================ Update ================================ */

// @Summary      Update quote
// @Description  Replace the quote fields and line items; totals are recomputed
// @Tags         quotes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string              true  "quote id (uuid)"
// @Param        payload  body  UpsertQuoteRequest  true  "Quote payload"
// @Success      200  {object}  models.Quote
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /quotes/{id} [put]
func (h *Handler) Update(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	var u models.User
	if err := h.db.First(&u, "id = ?", userID).Error; err != nil {
		return fiber.ErrUnauthorized
	}
	q, err := h.load(userID, c.Params("id"), false)
	if err != nil {
		return err
	}

	var in UpsertQuoteRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	// The client may be changed, but only to another of the caller's own
	var cl models.Client
	if err := h.db.Where("id = ? AND user_id = ?", in.ClientID, userID).First(&cl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	var validUntil *time.Time
	if in.ValidUntil != "" {
		t, err := time.Parse("2006-01-02", in.ValidUntil)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid valid_until (YYYY-MM-DD)")
		}
		validUntil = &t
	}
	issueDate := q.IssueDate
	if in.IssueDate != "" {
		t, err := time.Parse("2006-01-02", in.IssueDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid issue_date (YYYY-MM-DD)")
		}
		issueDate = t
	}

	dt := discountType(in.DiscountType)
	discount := maxZero(pricing.ParseAmount(in.DiscountValue))
	tax := taxRate(in, &u)
	items, res, err := buildItems(in, dt, discount, tax)
	if err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quote_id = ?", q.ID).Delete(&models.QuoteItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].QuoteID = q.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		return tx.Model(q).Updates(map[string]any{
			"client_id":       cl.ID,
			"issue_date":      issueDate,
			"valid_until":     validUntil,
			"subtotal":        res.Subtotal,
			"discount_type":   dt,
			"discount_value":  discount,
			"discount_amount": res.DiscountAmount,
			"tax_rate":        tax,
			"tax_amount":      res.TaxAmount,
			"total":           res.Total,
			"payment_terms":   strings.TrimSpace(in.PaymentTerms),
			"notes":           strings.TrimSpace(in.Notes),
		}).Error
	})
	if err != nil {
		return fiber.ErrInternalServerError
	}

	q.Items = items
	return c.JSON(q)
}

/* ================================ Delete ================================ */

// @Summary      Delete quote
// @Description  Deletes the quote and cascades to its line items
// @Tags         quotes
// @Security     BearerAuth
// @Param        id  path  string  true  "quote id (uuid)"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Router       /quotes/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	q, err := h.load(auth.MustUserID(c), c.Params("id"), false)
	if err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quote_id = ?", q.ID).Delete(&models.QuoteItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(q).Error
	})
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.SendStatus(fiber.StatusNoContent)
}

/* =============================== Helpers ================================ */

// load fetches an owned quote, optionally with client and ordered items.
func (h *Handler) load(userID, id string, full bool) (*models.Quote, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid quote id")
	}
	dbq := h.db.Where("id = ? AND user_id = ?", id, userID)
	if full {
		dbq = dbq.
			Preload("Client").
			Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
	}
	var q models.Quote
	if err := dbq.First(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.ErrNotFound
		}
		return nil, fiber.ErrInternalServerError
	}
	if full && q.Items == nil {
		q.Items = []models.QuoteItem{}
	}
	return &q, nil
}

// buildItems converts the request lines into models and runs the pricing
// engine over them. Position follows input order.
func buildItems(in UpsertQuoteRequest, dt models.DiscountType, discount, tax decimal.Decimal) ([]models.QuoteItem, pricing.Result, error) {
	items := make([]models.QuoteItem, 0, len(in.Items))
	engineItems := make([]pricing.Item, 0, len(in.Items))

	for i, it := range in.Items {
		qty := pricing.ParseAmount(it.Quantity)
		price := pricing.ParseAmount(it.UnitPrice)
		if qty.IsNegative() || price.IsNegative() {
			return nil, pricing.Result{}, fiber.NewError(fiber.StatusBadRequest, "quantity and unit_price must be >= 0")
		}
		unit := strings.TrimSpace(it.Unit)
		if unit == "" {
			unit = "forfait"
		}
		items = append(items, models.QuoteItem{
			Name:        strings.TrimSpace(it.Name),
			Description: strings.TrimSpace(it.Description),
			Quantity:    qty,
			Unit:        unit,
			UnitPrice:   price,
			Amount:      qty.Mul(price),
			Position:    i,
		})
		engineItems = append(engineItems, pricing.Item{Quantity: qty, UnitPrice: price})
	}

	res := pricing.Compute(engineItems, dt, discount, tax)
	return items, res, nil
}

func discountType(s string) models.DiscountType {
	switch models.DiscountType(s) {
	case models.DiscountPercent:
		return models.DiscountPercent
	case models.DiscountFixed:
		return models.DiscountFixed
	default:
		return models.DiscountNone
	}
}

// taxRate resolves the effective VAT rate: an omitted field means "use
// my profile default", never "no tax".
func taxRate(in UpsertQuoteRequest, u *models.User) decimal.Decimal {
	if strings.TrimSpace(in.TaxRate) == "" {
		return u.DefaultTaxRate
	}
	return maxZero(pricing.ParseAmount(in.TaxRate))
}

func maxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// sortItems orders line items by explicit position; used by the PDF
// export path where items may arrive unordered.
func sortItems(items []models.QuoteItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
}
