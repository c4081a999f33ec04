package limits

import (
	"context"
	"fmt"
	"testing"
	"time"

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
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Client{}, &models.CatalogItem{},
		&models.Quote{}, &models.QuoteItem{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, plan models.Plan) *models.User {
	t.Helper()
	u := &models.User{
		Email: fmt.Sprintf("u+%s@test.local", uuid.NewString()),
		Name:  "Test", PasswordHash: "x", Plan: plan,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedQuote(t *testing.T, db *gorm.DB, userID uuid.UUID, createdAt time.Time) {
	t.Helper()
	q := &models.Quote{
		UserID: userID, ClientID: uuid.New(),
		Number: fmt.Sprintf("DEV-%s", uuid.NewString()[:8]),
		Status: models.QuoteDraft, IssueDate: createdAt,
		Subtotal: decimal.Zero, Total: decimal.Zero,
	}
	require.NoError(t, db.Create(q).Error)
	require.NoError(t, db.Model(q).Update("created_at", createdAt).Error)
}

func TestCheck_FreeQuoteCeilingBoundary(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, models.PlanFree)

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ch := NewChecker(db)
	ch.now = func() time.Time { return now }

	// 4 quotes this month: still allowed
	for i := 0; i < 4; i++ {
		seedQuote(t, db, u.ID, now.AddDate(0, 0, -i))
	}
	res, err := ch.Check(context.Background(), u, ResourceQuotes)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.EqualValues(t, 4, res.Current)
	require.NotNil(t, res.Limit)
	assert.EqualValues(t, 5, *res.Limit)

	// 5th quote: at the ceiling, the 6th is denied
	seedQuote(t, db, u.ID, now)
	res, err = ch.Check(context.Background(), u, ResourceQuotes)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.EqualValues(t, 5, res.Current)
	assert.NotEmpty(t, res.Message)
}

func TestCheck_QuotesCountResetsEachCalendarMonth(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, models.PlanFree)

	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	ch := NewChecker(db)
	ch.now = func() time.Time { return now }

	// Last month's quotes do not count against June.
	for i := 0; i < 5; i++ {
		seedQuote(t, db, u.ID, time.Date(2025, 5, 20+i, 0, 0, 0, 0, time.UTC))
	}
	res, err := ch.Check(context.Background(), u, ResourceQuotes)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.EqualValues(t, 0, res.Current)
}

func TestCheck_ProIsUnlimited(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, models.PlanPro)

	now := time.Now()
	ch := NewChecker(db)
	ch.now = func() time.Time { return now }

	for i := 0; i < 30; i++ {
		seedQuote(t, db, u.ID, now)
	}
	res, err := ch.Check(context.Background(), u, ResourceQuotes)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Nil(t, res.Limit)
	assert.EqualValues(t, 30, res.Current)
}

func TestCheck_ExpiredProCountsAsFree(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, models.PlanPro)
	expired := time.Now().Add(-24 * time.Hour)
	u.PlanExpiresAt = &expired

	ch := NewChecker(db)
	for i := 0; i < 10; i++ {
		require.NoError(t, db.Create(&models.Client{UserID: u.ID, FullName: "C", Phone: "70000000"}).Error)
	}
	res, err := ch.Check(context.Background(), u, ResourceClients)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	require.NotNil(t, res.Limit)
	assert.EqualValues(t, 10, *res.Limit)
}

func TestEffectivePlan(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.Equal(t, models.PlanFree, EffectivePlan(&models.User{Plan: models.PlanFree}, now))
	assert.Equal(t, models.PlanPro, EffectivePlan(&models.User{Plan: models.PlanPro}, now))
	assert.Equal(t, models.PlanPro, EffectivePlan(&models.User{Plan: models.PlanPro, PlanExpiresAt: &future}, now))
	assert.Equal(t, models.PlanFree, EffectivePlan(&models.User{Plan: models.PlanPro, PlanExpiresAt: &past}, now))
}
