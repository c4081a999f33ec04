package payments

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fasodevis/fasodevis-backend/pkg/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Quote{}, &models.Payment{}))
	return db
}

func seed(t *testing.T, db *gorm.DB) (*models.User, *models.Quote) {
	t.Helper()
	u := &models.User{
		Email: fmt.Sprintf("u+%s@test.local", uuid.NewString()),
		Name:  "Moussa", PasswordHash: "x", Plan: models.PlanFree,
	}
	require.NoError(t, db.Create(u).Error)
	q := &models.Quote{
		UserID: u.ID, ClientID: uuid.New(),
		Number: "FAC-2025-0001", DocumentType: models.DocFacture,
		Status: models.QuoteSent, Total: decimal.NewFromInt(21240),
		Subtotal: decimal.NewFromInt(21240),
	}
	require.NoError(t, db.Create(q).Error)
	return u, q
}

func newTestApp(db *gorm.DB, userID uuid.UUID) *fiber.App {
	h := NewHandler(db, newMockProvider())
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID.String())
		return c.Next()
	})
	app.Post("/api/checkout/quotes/:quoteID", h.CreateQuoteCheckout)
	app.Post("/api/checkout/subscription", h.CreateSubscriptionCheckout)
	app.Post("/api/payments/mock/complete", h.MockComplete)
	app.Get("/api/payments", h.List)
	return app
}

func devEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "dev")
	t.Setenv("PAYMENT_PROVIDER", "mock")
	t.Setenv("DEV_PAYMENT_SECRET", "sesame")
}

func Test_QuoteCheckout_ThenMockSettle(t *testing.T) {
	devEnv(t)
	db := openTestDB(t)
	u, q := seed(t, db)
	app := newTestApp(db, u.ID)

	req := httptest.NewRequest("POST", "/api/checkout/quotes/"+q.ID.String(), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)

	var out struct {
		PaymentID   uuid.UUID `json:"payment_id"`
		Provider    string    `json:"provider"`
		RedirectURL string    `json:"redirect_url"`
	}
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "mock", out.Provider)
	assert.NotEmpty(t, out.RedirectURL)

	// settle through the dev endpoint
	body := `{"payment_id":"` + out.PaymentID.String() + `"}`
	req = httptest.NewRequest("POST", "/api/payments/mock/complete", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Dev-Secret", "sesame")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var pay models.Payment
	require.NoError(t, db.First(&pay, "id = ?", out.PaymentID).Error)
	assert.Equal(t, models.PaySucceeded, pay.Status)

	var after models.Quote
	require.NoError(t, db.First(&after, "id = ?", q.ID).Error)
	assert.Equal(t, models.QuoteAccepted, after.Status)

	// replay is a no-op
	req = httptest.NewRequest("POST", "/api/payments/mock/complete", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Dev-Secret", "sesame")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func Test_QuoteCheckout_RejectsDoublePay(t *testing.T) {
	devEnv(t)
	db := openTestDB(t)
	u, q := seed(t, db)
	app := newTestApp(db, u.ID)

	qid := q.ID
	require.NoError(t, db.Create(&models.Payment{
		UserID: u.ID, QuoteID: &qid, Provider: "mock",
		Amount: q.Total, Currency: "XOF",
		Purpose: models.PurposeInvoice, Status: models.PaySucceeded,
	}).Error)

	req := httptest.NewRequest("POST", "/api/checkout/quotes/"+q.ID.String(), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)
}

func Test_SubscriptionCheckout_SettleUpgradesPlan(t *testing.T) {
	devEnv(t)
	db := openTestDB(t)
	u, _ := seed(t, db)
	app := newTestApp(db, u.ID)

	req := httptest.NewRequest("POST", "/api/checkout/subscription", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)

	var out struct {
		PaymentID uuid.UUID `json:"payment_id"`
	}
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &out))

	body := `{"payment_id":"` + out.PaymentID.String() + `"}`
	req = httptest.NewRequest("POST", "/api/payments/mock/complete", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Dev-Secret", "sesame")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var after models.User
	require.NoError(t, db.First(&after, "id = ?", u.ID).Error)
	assert.Equal(t, models.PlanPro, after.Plan)
	require.NotNil(t, after.PlanExpiresAt)
}

func Test_MockComplete_RequiresDevSecret(t *testing.T) {
	devEnv(t)
	db := openTestDB(t)
	u, _ := seed(t, db)
	app := newTestApp(db, u.ID)

	req := httptest.NewRequest("POST", "/api/payments/mock/complete", strings.NewReader(`{"payment_id":"`+uuid.NewString()+`"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}
