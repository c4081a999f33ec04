package sync

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

	"github.com/fasodevis/fasodevis-backend/internal/limits"
	"github.com/fasodevis/fasodevis-backend/pkg/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Client{}, &models.CatalogItem{},
		&models.Quote{}, &models.QuoteItem{},
	))
	return db
}

func newTestApp(db *gorm.DB, userID uuid.UUID) *fiber.App {
	h := NewHandler(db, limits.NewChecker(db))
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID.String())
		return c.Next()
	})
	app.Post("/api/sync", h.Apply)
	return app
}

func postBatch(t *testing.T, app *fiber.App, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/sync", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

type batchOut struct {
	Applied int        `json:"applied"`
	Failed  int        `json:"failed"`
	Results []OpResult `json:"results"`
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	u := &models.User{
		Email: fmt.Sprintf("u+%s@test.local", uuid.NewString()),
		Name:  "Moussa", PasswordHash: "x", Plan: models.PlanFree,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func Test_Apply_FIFOWithPerOpResults(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db)
	app := newTestApp(db, u.ID)

	body := `{"operations": [
		{"op": "create", "collection": "clients", "payload": {"full_name": "Awa Traoré", "phone": "+226 70 00 00 00"}},
		{"op": "create", "collection": "catalog", "payload": {"name": "Peinture", "unit": "m2", "unit_price": "2500"}},
		{"op": "create", "collection": "unknown", "payload": {}}
	]}`
	code, raw := postBatch(t, app, body)
	require.Equal(t, 200, code, string(raw))

	var out batchOut
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 2, out.Applied)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.Results, 3)
	assert.True(t, out.Results[0].OK)
	assert.True(t, out.Results[1].OK)
	assert.False(t, out.Results[2].OK)
	assert.Contains(t, out.Results[2].Error, "unsupported collection")

	// unit aliases are normalized on the way in
	var item models.CatalogItem
	require.NoError(t, db.First(&item, "user_id = ?", u.ID).Error)
	assert.Equal(t, "m²", item.Unit)
}

func Test_Apply_FailureDoesNotBlockLaterOps(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db)
	app := newTestApp(db, u.ID)

	body := `{"operations": [
		{"op": "update", "collection": "clients", "entity_id": "` + uuid.NewString() + `", "payload": {"full_name": "X", "phone": "Y"}},
		{"op": "create", "collection": "clients", "payload": {"full_name": "Issa Kaboré", "phone": "+226 70 11 11 11"}}
	]}`
	code, raw := postBatch(t, app, body)
	require.Equal(t, 200, code)

	var out batchOut
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.False(t, out.Results[0].OK)
	assert.True(t, out.Results[1].OK)

	var n int64
	require.NoError(t, db.Model(&models.Client{}).Where("user_id = ?", u.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func Test_Apply_QuoteStatusStampsSentAt(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db)
	app := newTestApp(db, u.ID)

	q := &models.Quote{
		UserID: u.ID, ClientID: uuid.New(), Number: "DEV-2025-0001",
		Status: models.QuoteDraft, Subtotal: decimal.Zero, Total: decimal.Zero,
	}
	require.NoError(t, db.Create(q).Error)

	body := `{"operations": [
		{"op": "update", "collection": "quotes", "entity_id": "` + q.ID.String() + `", "payload": {"status": "sent"}}
	]}`
	code, raw := postBatch(t, app, body)
	require.Equal(t, 200, code, string(raw))

	var after models.Quote
	require.NoError(t, db.First(&after, "id = ?", q.ID).Error)
	assert.Equal(t, models.QuoteSent, after.Status)
	require.NotNil(t, after.SentAt)
}

func Test_Apply_RespectsFreemiumCeiling(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db)
	app := newTestApp(db, u.ID)

	ops := make([]string, 0, 11)
	for i := 0; i < 11; i++ {
		ops = append(ops, fmt.Sprintf(
			`{"op": "create", "collection": "clients", "payload": {"full_name": "Client %d", "phone": "+226 70 00 00 %02d"}}`, i, i))
	}
	code, raw := postBatch(t, app, `{"operations": [`+strings.Join(ops, ",")+`]}`)
	require.Equal(t, 200, code)

	var out batchOut
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 10, out.Applied)
	assert.Equal(t, 1, out.Failed)
}
