package profile

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fasodevis/fasodevis-backend/internal/auth"
	"github.com/fasodevis/fasodevis-backend/internal/storage"
	"github.com/fasodevis/fasodevis-backend/pkg/models"
	"github.com/fasodevis/fasodevis-backend/pkg/validation"
)

type Handler struct {
	db *gorm.DB
	sb *storage.Supabase
}

func NewHandler(db *gorm.DB, sb *storage.Supabase) *Handler {
	return &Handler{db: db, sb: sb}
}

type ProfileResponse struct {
	ID                  string          `json:"id"`
	Email               string          `json:"email"`
	Name                string          `json:"name"`
	Phone               string          `json:"phone"`
	BusinessName        string          `json:"business_name"`
	BusinessAddress     string          `json:"business_address"`
	TaxID               string          `json:"tax_id"`
	ServiceLabel        string          `json:"service_label"`
	LogoURL             string          `json:"logo_url"`
	SignatureURL        string          `json:"signature_url"`
	DefaultPaymentTerms string          `json:"default_payment_terms"`
	DefaultTaxRate      decimal.Decimal `json:"default_tax_rate"`
	Plan                models.Plan     `json:"plan"`
}

type UpdateProfileRequest struct {
	Name                string `json:"name" validate:"required,max=100"`
	Phone               string `json:"phone" validate:"omitempty,phone"`
	BusinessName        string `json:"business_name" validate:"omitempty,max=150"`
	BusinessAddress     string `json:"business_address" validate:"omitempty,max=300"`
	TaxID               string `json:"tax_id" validate:"omitempty,taxid"`
	ServiceLabel        string `json:"service_label" validate:"omitempty,max=150"`
	DefaultPaymentTerms string `json:"default_payment_terms" validate:"omitempty,max=500"`
	DefaultTaxRate      string `json:"default_tax_rate" validate:"omitempty,max=10"`
}

func toResponse(u *models.User) ProfileResponse {
	return ProfileResponse{
		ID:                  u.ID.String(),
		Email:               u.Email,
		Name:                u.Name,
		Phone:               u.Phone,
		BusinessName:        u.BusinessName,
		BusinessAddress:     u.BusinessAddress,
		TaxID:               u.TaxID,
		ServiceLabel:        u.ServiceLabel,
		LogoURL:             u.LogoURL,
		SignatureURL:        u.SignatureURL,
		DefaultPaymentTerms: u.DefaultPaymentTerms,
		DefaultTaxRate:      u.DefaultTaxRate,
		Plan:                u.Plan,
	}
}

// @Summary      Get my profile
// @Tags         profile
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  ProfileResponse
// @Router       /profile [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	var u models.User
	if err := h.db.First(&u, "id = ?", auth.MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}
	return c.JSON(toResponse(&u))
}

// @Summary      Update my profile
// @Description  Business identity and the defaults applied to new documents
// @Tags         profile
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  UpdateProfileRequest  true  "Profile fields"
// @Success      200  {object}  ProfileResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /profile [put]
func (h *Handler) Update(c *fiber.Ctx) error {
	var u models.User
	if err := h.db.First(&u, "id = ?", auth.MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	var in UpdateProfileRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	taxRate := u.DefaultTaxRate
	if strings.TrimSpace(in.DefaultTaxRate) != "" {
		parsed, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(in.DefaultTaxRate), ",", "."))
		if err != nil || parsed.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "invalid default_tax_rate")
		}
		taxRate = parsed
	}

	err := h.db.Model(&u).Updates(map[string]any{
		"name":                  strings.TrimSpace(in.Name),
		"phone":                 strings.TrimSpace(in.Phone),
		"business_name":         strings.TrimSpace(in.BusinessName),
		"business_address":      strings.TrimSpace(in.BusinessAddress),
		"tax_id":                strings.TrimSpace(in.TaxID),
		"service_label":         strings.TrimSpace(in.ServiceLabel),
		"default_payment_terms": strings.TrimSpace(in.DefaultPaymentTerms),
		"default_tax_rate":      taxRate,
	}).Error
	if err != nil {
		return fiber.ErrInternalServerError
	}

	if err := h.db.First(&u, "id = ?", u.ID).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(toResponse(&u))
}

// @Summary      Upload logo
// @Description  PNG/JPEG shown in the PDF header; re-uploading replaces the previous asset
// @Tags         profile
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "PNG or JPEG (max 2MB)"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  models.ErrorResponse
// @Router       /profile/logo [post]
func (h *Handler) UploadLogo(c *fiber.Ctx) error {
	return h.uploadAsset(c, "logo")
}

// @Summary      Upload signature
// @Description  PNG/JPEG stamped in the PDF signature block
// @Tags         profile
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "PNG or JPEG (max 2MB)"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  models.ErrorResponse
// @Router       /profile/signature [post]
func (h *Handler) UploadSignature(c *fiber.Ctx) error {
	return h.uploadAsset(c, "signature")
}

func (h *Handler) uploadAsset(c *fiber.Ctx, kind string) error {
	var u models.User
	if err := h.db.First(&u, "id = ?", auth.MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required (use key: file)")
	}
	if fh.Size <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "empty file")
	}
	if fh.Size > 2*1024*1024 {
		return fiber.NewError(fiber.StatusBadRequest, "max 2MB per image")
	}

	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(fh.Filename))
	}
	var ext string
	switch ct {
	case "image/png":
		ext = ".png"
	case "image/jpeg":
		ext = ".jpg"
	default:
		return fiber.NewError(fiber.StatusBadRequest, "only PNG or JPEG are allowed")
	}

	f, err := fh.Open()
	if err != nil {
		return fiber.ErrInternalServerError
	}
	defer f.Close()

	key := h.sb.MakeProfileKey(u.ID.String(), kind, ext)
	if err := h.sb.Upload(key, f, ct, fh.Size); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "storage upload failed")
	}
	url := h.sb.PublicURL(key)

	// A replaced asset under another extension would otherwise linger
	updates := map[string]any{}
	switch kind {
	case "logo":
		if u.LogoKey != "" && u.LogoKey != key {
			_ = h.sb.Delete(u.LogoKey)
		}
		updates["logo_key"] = key
		updates["logo_url"] = url
	case "signature":
		if u.SignatureKey != "" && u.SignatureKey != key {
			_ = h.sb.Delete(u.SignatureKey)
		}
		updates["signature_key"] = key
		updates["signature_url"] = url
	}
	if err := h.db.Model(&u).Updates(updates).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"key": key, "url": url})
}
