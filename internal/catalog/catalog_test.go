package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
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
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.CatalogItem{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, plan models.Plan) *models.User {
	t.Helper()
	u := &models.User{
		Email: fmt.Sprintf("u+%s@test.local", uuid.NewString()),
		Name:  "Moussa", PasswordHash: "x", Plan: plan,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func newTestApp(db *gorm.DB, userID uuid.UUID) *fiber.App {
	h := NewHandler(db, limits.NewChecker(db))
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID.String())
		return c.Next()
	})
	app.Post("/api/catalog", h.Create)
	app.Get("/api/catalog", h.List)
	app.Get("/api/catalog/:id", h.Get)
	app.Put("/api/catalog/:id", h.Update)
	app.Delete("/api/catalog/:id", h.Delete)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func Test_Create_NormalizesUnitAndParsesPrice(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, models.PlanPro)
	app := newTestApp(db, u.ID)

	code, raw := doJSON(t, app, "POST", "/api/catalog",
		`{"name": "Carrelage sol", "unit_price": "4 500", "unit": "m2", "category": "carrelage"}`)
	require.Equal(t, 201, code, string(raw))

	var view CatalogItemView
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.Equal(t, "m²", view.Unit)
	assert.Equal(t, "4500", view.UnitPrice.String())
}

func Test_Create_RejectsNegativePrice(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, models.PlanPro)
	app := newTestApp(db, u.ID)

	code, _ := doJSON(t, app, "POST", "/api/catalog",
		`{"name": "Erreur", "unit_price": "-100"}`)
	assert.Equal(t, 400, code)
}

func Test_Create_FreeCeilingAtTwentyItems(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, models.PlanFree)
	app := newTestApp(db, u.ID)

	for i := 0; i < 20; i++ {
		body := fmt.Sprintf(`{"name": "Prestation %02d", "unit_price": "1000"}`, i)
		code, raw := doJSON(t, app, "POST", "/api/catalog", body)
		require.Equal(t, 201, code, string(raw))
	}
	code, raw := doJSON(t, app, "POST", "/api/catalog", `{"name": "Une de trop", "unit_price": "1000"}`)
	assert.Equal(t, 403, code, string(raw))
}

func Test_List_FiltersByCategory(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, models.PlanPro)
	app := newTestApp(db, u.ID)

	for _, item := range []string{
		`{"name": "Pose carrelage", "unit_price": "4500", "category": "carrelage"}`,
		`{"name": "Peinture murale", "unit_price": "2000", "category": "peinture"}`,
	} {
		code, _ := doJSON(t, app, "POST", "/api/catalog", item)
		require.Equal(t, 201, code)
	}

	code, raw := doJSON(t, app, "GET", "/api/catalog?category=peinture", "")
	require.Equal(t, 200, code)
	var page struct {
		Total int64             `json:"total"`
		Items []CatalogItemView `json:"items"`
	}
	require.NoError(t, json.Unmarshal(raw, &page))
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, "Peinture murale", page.Items[0].Name)
}

func Test_Update_NormalizesUnit(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, models.PlanPro)
	app := newTestApp(db, u.ID)

	code, raw := doJSON(t, app, "POST", "/api/catalog",
		`{"name": "Main d'oeuvre", "unit_price": "15000", "unit": "jour"}`)
	require.Equal(t, 201, code)
	var view CatalogItemView
	require.NoError(t, json.Unmarshal(raw, &view))

	code, raw = doJSON(t, app, "PUT", "/api/catalog/"+view.ID.String(),
		`{"name": "Main d'oeuvre", "unit_price": "2 500", "unit": "h"}`)
	require.Equal(t, 200, code, string(raw))

	var it models.CatalogItem
	require.NoError(t, db.First(&it, "id = ?", view.ID).Error)
	assert.Equal(t, "heure", it.Unit)
	assert.Equal(t, "2500", it.UnitPrice.String())
}

func Test_Delete_ScopedToOwner(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, models.PlanPro)
	stranger := seedUser(t, db, models.PlanPro)

	it := models.CatalogItem{UserID: owner.ID, Name: "Pose carrelage"}
	require.NoError(t, db.Create(&it).Error)

	app := newTestApp(db, stranger.ID)
	code, _ := doJSON(t, app, "DELETE", "/api/catalog/"+it.ID.String(), "")
	assert.Equal(t, 404, code)

	app = newTestApp(db, owner.ID)
	code, _ = doJSON(t, app, "DELETE", "/api/catalog/"+it.ID.String(), "")
	assert.Equal(t, 204, code)
	require.ErrorIs(t, db.First(&models.CatalogItem{}, "id = ?", it.ID).Error, gorm.ErrRecordNotFound)
}
