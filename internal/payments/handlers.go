package payments

import (
	"errors"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/fasodevis/fasodevis-backend/internal/auth"
	"github.com/fasodevis/fasodevis-backend/pkg/models"
)

type Handler struct {
	db       *gorm.DB
	provider Provider
	cinetpay *cinetPayProvider // only set when PAYMENT_PROVIDER=cinetpay
}

func NewHandler(db *gorm.DB, p Provider) *Handler {
	h := &Handler{db: db, provider: p}
	if cp, ok := p.(*cinetPayProvider); ok {
		h.cinetpay = cp
	}
	return h
}

type CheckoutRequest struct {
	SuccessURL string `json:"success_url" validate:"omitempty,url,max=500"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url,max=500"`
}

/* ========== Checkout: pay an invoice ========== */

// @Summary      Open checkout for an invoice
// @Description  Creates a pending payment for the quote total and a hosted provider checkout. The payment only becomes succeeded through the provider webhook.
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        quoteID  path  string           true   "quote id (uuid)"
// @Param        payload  body  CheckoutRequest  false  "redirect URLs"
// @Success      201  {object}  map[string]any
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "zero total or already paid"
// @Router       /checkout/quotes/{quoteID} [post]
func (h *Handler) CreateQuoteCheckout(c *fiber.Ctx) error {
	var u models.User
	if err := h.db.First(&u, "id = ?", auth.MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	quoteID, err := uuid.Parse(c.Params("quoteID"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid quote id")
	}

	var q models.Quote
	if err := h.db.Where("id = ? AND user_id = ?", quoteID, u.ID).First(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if !q.Total.IsPositive() {
		return fiber.NewError(fiber.StatusConflict, "quote total is zero")
	}

	var paid int64
	if err := h.db.Model(&models.Payment{}).
		Where("quote_id = ? AND status = ?", q.ID, models.PaySucceeded).
		Count(&paid).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if paid > 0 {
		return fiber.NewError(fiber.StatusConflict, "quote already paid")
	}

	var in CheckoutRequest
	_ = c.BodyParser(&in)

	pay := models.Payment{
		UserID:     u.ID,
		QuoteID:    &q.ID,
		Provider:   h.provider.Name(),
		Amount:     q.Total,
		Currency:   "XOF",
		Purpose:    models.PurposeInvoice,
		Status:     models.PayPending,
		SuccessURL: defaultURL(in.SuccessURL, "CHECKOUT_SUCCESS_URL"),
		CancelURL:  defaultURL(in.CancelURL, "CHECKOUT_CANCEL_URL"),
	}
	return h.openCheckout(c, &u, &pay, checkoutDescription(&pay, q.Number))
}

/* ========== Checkout: pro subscription ========== */

// @Summary      Open checkout for the Pro upgrade
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CheckoutRequest  false  "redirect URLs"
// @Success      201  {object}  map[string]any
// @Failure      409  {object}  models.ErrorResponse  "already on pro"
// @Router       /checkout/subscription [post]
func (h *Handler) CreateSubscriptionCheckout(c *fiber.Ctx) error {
	var u models.User
	if err := h.db.First(&u, "id = ?", auth.MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}
	if u.Plan == models.PlanPro && (u.PlanExpiresAt == nil || u.PlanExpiresAt.After(time.Now())) {
		return fiber.NewError(fiber.StatusConflict, "already on the pro plan")
	}

	var in CheckoutRequest
	_ = c.BodyParser(&in)

	pay := models.Payment{
		UserID:     u.ID,
		Provider:   h.provider.Name(),
		Amount:     proPlanPrice(),
		Currency:   "XOF",
		Purpose:    models.PurposeSubscription,
		Status:     models.PayPending,
		SuccessURL: defaultURL(in.SuccessURL, "CHECKOUT_SUCCESS_URL"),
		CancelURL:  defaultURL(in.CancelURL, "CHECKOUT_CANCEL_URL"),
	}
	return h.openCheckout(c, &u, &pay, checkoutDescription(&pay, ""))
}

func (h *Handler) openCheckout(c *fiber.Ctx, u *models.User, pay *models.Payment, desc string) error {
	if err := h.db.Create(pay).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	sess, err := h.provider.CreateCheckout(c.Context(), CheckoutInput{
		Payment: pay, User: u, Description: desc,
	})
	if err != nil {
		// The pending row stays behind for audit; nothing was charged
		_ = h.db.Model(pay).Update("status", models.PayFailed).Error
		return fiber.NewError(fiber.StatusBadGateway, "payment provider unavailable")
	}

	sid := sess.ID
	if err := h.db.Model(pay).Update("provider_session_id", &sid).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"payment_id":   pay.ID,
		"provider":     h.provider.Name(),
		"redirect_url": sess.URL,
	})
}

/* ========== List ========== */

// @Summary      List my payments
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /payments [get]
func (h *Handler) List(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	size, _ := strconv.Atoi(c.Query("pageSize", "10"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 50 {
		size = 10
	}

	q := h.db.Model(&models.Payment{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	var rows []models.Payment
	if err := q.Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total,
		"pages": int(math.Ceil(float64(total) / float64(size))),
		"items": rows,
	})
}

/* ========== Stripe webhook ========== */

// @Summary      Stripe webhook
// @Description  Signature-verified event sink; this is the only path that marks stripe payments succeeded
// @Tags         payments
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /payments/webhook/stripe [post]
func (h *Handler) StripeWebhook(c *fiber.Ctx) error {
	ev, err := parseStripeEvent(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid signature")
	}

	switch ev.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		s, err := sessionFromEvent(ev)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return h.settleStripeSession(c, s)

	case stripe.EventTypeCustomerSubscriptionDeleted:
		sub, err := subscriptionFromEvent(ev)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := h.db.Model(&models.User{}).
			Where("stripe_subscription_id = ?", sub.ID).
			Updates(map[string]any{
				"plan":                models.PlanFree,
				"subscription_status": string(sub.Status),
			}).Error; err != nil {
			return fiber.ErrInternalServerError
		}
		return c.JSON(fiber.Map{"ok": true})

	default:
		// Unhandled event types are acknowledged so Stripe stops retrying
		return c.JSON(fiber.Map{"ok": true, "ignored": string(ev.Type)})
	}
}

func (h *Handler) settleStripeSession(c *fiber.Ctx, s *stripe.CheckoutSession) error {
	if s.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		s.Status != stripe.CheckoutSessionStatusComplete {
		return c.JSON(fiber.Map{"ok": true, "ignored": "session not paid"})
	}

	pid, err := uuid.Parse(s.ClientReferenceID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing client_reference_id")
	}

	extra := map[string]any{}
	if s.Customer != nil {
		extra["stripe_customer_id"] = s.Customer.ID
	}
	if s.Subscription != nil {
		extra["stripe_subscription_id"] = s.Subscription.ID
		extra["subscription_status"] = "active"
	}
	if err := h.settle(c, pid, extra); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}

/* ========== CinetPay notify ========== */

// @Summary      CinetPay notify callback
// @Description  The callback body is untrusted; settlement is confirmed with a server-to-server payment/check call
// @Tags         payments
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /payments/webhook/cinetpay [post]
func (h *Handler) CinetPayNotify(c *fiber.Ctx) error {
	if h.cinetpay == nil {
		return fiber.ErrNotFound
	}

	transID := c.FormValue("cpm_trans_id")
	if transID == "" {
		transID = c.Query("cpm_trans_id")
	}
	pid, err := uuid.Parse(transID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid cpm_trans_id")
	}

	accepted, err := h.cinetpay.CheckTransaction(c.Context(), transID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "cinetpay check failed")
	}
	if !accepted {
		if err := h.db.Model(&models.Payment{}).
			Where("id = ? AND status = ?", pid, models.PayPending).
			Update("status", models.PayFailed).Error; err != nil {
			return fiber.ErrInternalServerError
		}
		return c.JSON(fiber.Map{"ok": true, "status": "refused"})
	}
	if err := h.settle(c, pid, nil); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}

/* ========== Mock complete (dev only) ========== */

type mockCompleteReq struct {
	PaymentID string `json:"payment_id"`
}

// MockComplete settles a mock payment. Gated to dev and guarded by a
// shared secret header so it can never leak into a real deployment.
func (h *Handler) MockComplete(c *fiber.Ctx) error {
	if os.Getenv("APP_ENV") != "dev" || os.Getenv("PAYMENT_PROVIDER") == "stripe" || os.Getenv("PAYMENT_PROVIDER") == "cinetpay" {
		return fiber.ErrNotFound
	}
	if c.Get("X-Dev-Secret") == "" || c.Get("X-Dev-Secret") != os.Getenv("DEV_PAYMENT_SECRET") {
		return fiber.NewError(fiber.StatusUnauthorized, "missing/invalid X-Dev-Secret")
	}

	var in mockCompleteReq
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	pid, err := uuid.Parse(in.PaymentID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payment id")
	}
	if err := h.settle(c, pid, nil); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}

/* ========== Settlement ========== */

// settle flips a pending payment to succeeded and applies its side
// effects: an invoice payment marks its quote accepted, a subscription
// payment upgrades the user's plan. Idempotent: a payment already
// succeeded is a no-op.
func (h *Handler) settle(c *fiber.Ctx, paymentID uuid.UUID, userExtra map[string]any) error {
	return h.db.Transaction(func(tx *gorm.DB) error {
		var pay models.Payment
		if err := tx.First(&pay, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.ErrNotFound
			}
			return fiber.ErrInternalServerError
		}
		if pay.Status == models.PaySucceeded {
			return nil
		}

		if err := tx.Model(&pay).Update("status", models.PaySucceeded).Error; err != nil {
			return fiber.ErrInternalServerError
		}

		switch pay.Purpose {
		case models.PurposeInvoice:
			if pay.QuoteID != nil {
				if err := tx.Model(&models.Quote{}).
					Where("id = ? AND status <> ?", *pay.QuoteID, models.QuoteAccepted).
					Update("status", models.QuoteAccepted).Error; err != nil {
					return fiber.ErrInternalServerError
				}
			}

		case models.PurposeSubscription:
			updates := map[string]any{
				"plan":                models.PlanPro,
				"subscription_status": "active",
			}
			// Non-recurring providers grant a 30-day window; Stripe keeps
			// the plan open until its subscription ends.
			if _, recurring := userExtra["stripe_subscription_id"]; !recurring {
				updates["plan_expires_at"] = time.Now().AddDate(0, 0, 30)
			} else {
				updates["plan_expires_at"] = nil
			}
			for k, v := range userExtra {
				updates[k] = v
			}
			if err := tx.Model(&models.User{}).
				Where("id = ?", pay.UserID).
				Updates(updates).Error; err != nil {
				return fiber.ErrInternalServerError
			}
		}
		return nil
	})
}

/* ========== Helpers ========== */

func defaultURL(v, envKey string) string {
	if v != "" {
		return v
	}
	return os.Getenv(envKey)
}

// proPlanPrice reads the monthly pro price in whole FCFA.
func proPlanPrice() decimal.Decimal {
	if v := os.Getenv("PRO_PLAN_PRICE_FCFA"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return decimal.NewFromInt(n)
		}
	}
	return decimal.NewFromInt(5000)
}
