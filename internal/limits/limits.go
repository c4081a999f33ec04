// Package limits implements the freemium ceilings: how many quotes per
// calendar month, clients, and catalogue items a plan allows. It only
// answers the question — enforcement happens at the call sites, before a
// write is attempted. The check is read-then-compare with no locking, so
// two concurrent creations can transiently exceed a ceiling by one; the
// ceilings are soft limits and that is acceptable.
package limits

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fasodevis/fasodevis-backend/pkg/models"
)

// Resource identifies a limited resource kind.
type Resource string

const (
	ResourceQuotes  Resource = "quotes"  // counted per calendar month
	ResourceClients Resource = "clients" // total
	ResourceCatalog Resource = "catalog" // total
)

// Free-plan ceilings. Pro is unlimited on all three.
const (
	FreeQuotesPerMonth = 5
	FreeClients        = 10
	FreeCatalogItems   = 20
)

var freeCeilings = map[Resource]int64{
	ResourceQuotes:  FreeQuotesPerMonth,
	ResourceClients: FreeClients,
	ResourceCatalog: FreeCatalogItems,
}

var denialMessages = map[Resource]string{
	ResourceQuotes:  "Limite de %d devis par mois atteinte. Passez au plan Pro pour continuer.",
	ResourceClients: "Limite de %d clients atteinte. Passez au plan Pro pour continuer.",
	ResourceCatalog: "Limite de %d prestations au catalogue atteinte. Passez au plan Pro pour continuer.",
}

// Result is the outcome of a limit check. Limit is nil when the plan has
// no ceiling for the resource.
type Result struct {
	Allowed bool   `json:"allowed"`
	Current int64  `json:"current"`
	Limit   *int64 `json:"limit"`
	Message string `json:"message,omitempty"`
}

// EffectivePlan resolves the plan actually in force: a pro plan past its
// expiry counts as free.
func EffectivePlan(u *models.User, now time.Time) models.Plan {
	if u.Plan == models.PlanPro {
		if u.PlanExpiresAt == nil || u.PlanExpiresAt.After(now) {
			return models.PlanPro
		}
	}
	return models.PlanFree
}

// Checker answers limit questions against current row counts.
type Checker struct {
	db  *gorm.DB
	now func() time.Time
}

func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db, now: time.Now}
}

// Now exposes the checker clock so callers resolve plans against the
// same instant the counts use.
func (ch *Checker) Now() time.Time { return ch.now() }

// Check reports whether the user may create one more of the given
// resource under their effective plan.
func (ch *Checker) Check(ctx context.Context, u *models.User, res Resource) (Result, error) {
	now := ch.now()

	current, err := ch.count(ctx, u.ID, res, now)
	if err != nil {
		return Result{}, err
	}

	if EffectivePlan(u, now) == models.PlanPro {
		return Result{Allowed: true, Current: current, Limit: nil}, nil
	}

	limit := freeCeilings[res]
	r := Result{Current: current, Limit: &limit}
	if current >= limit {
		r.Message = fmt.Sprintf(denialMessages[res], limit)
		return r, nil
	}
	r.Allowed = true
	return r, nil
}

func (ch *Checker) count(ctx context.Context, userID uuid.UUID, res Resource, now time.Time) (int64, error) {
	q := ch.db.WithContext(ctx)
	var n int64
	var err error
	switch res {
	case ResourceQuotes:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		err = q.Model(&models.Quote{}).
			Where("user_id = ? AND created_at >= ?", userID, monthStart).
			Count(&n).Error
	case ResourceClients:
		err = q.Model(&models.Client{}).Where("user_id = ?", userID).Count(&n).Error
	case ResourceCatalog:
		err = q.Model(&models.CatalogItem{}).Where("user_id = ?", userID).Count(&n).Error
	default:
		return 0, fmt.Errorf("unknown resource %q", res)
	}
	return n, err
}
