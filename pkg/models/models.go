package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

/* =============================== Enums ================================== */

// Plan is the subscription tier of an artisan account.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// DocumentType distinguishes a quote ("devis") from an invoice ("facture").
// Both share the same data model.
type DocumentType string

const (
	DocDevis   DocumentType = "devis"
	DocFacture DocumentType = "facture"
)

// QuoteStatus defines lifecycle states for a quote/invoice.
type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRefused  QuoteStatus = "refused"
	QuoteExpired  QuoteStatus = "expired"
)

// DiscountType selects how Quote.DiscountValue is interpreted.
type DiscountType string

const (
	DiscountNone    DiscountType = "none"
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// PayStatus defines lifecycle states for a payment.
// Only a provider webhook moves a payment out of "pending".
type PayStatus string

const (
	PayPending   PayStatus = "pending"
	PaySucceeded PayStatus = "succeeded"
	PayFailed    PayStatus = "failed"
	PayCanceled  PayStatus = "canceled"
)

// PayPurpose distinguishes a one-time invoice payment from a pro upgrade.
type PayPurpose string

const (
	PurposeInvoice      PayPurpose = "invoice"
	PurposeSubscription PayPurpose = "subscription"
)

/* =============================== Entities =============================== */

// User is an artisan account. Business identity, assets, and plan fields
// drive PDF rendering (header block, watermark) and the freemium limits.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Name         string    `gorm:"not null"`
	Phone        string

	// Business identity shown on documents
	BusinessName    string
	BusinessAddress string
	TaxID           string
	ServiceLabel    string // short activity description under the document title

	// Storage asset references (public URLs into object storage)
	LogoKey      string
	LogoURL      string
	SignatureKey string
	SignatureURL string

	// Defaults applied to new quotes
	DefaultPaymentTerms string
	DefaultTaxRate      decimal.Decimal `gorm:"type:numeric(6,2);default:0"`

	// Subscription
	Plan                 Plan `gorm:"type:varchar(10);default:'free'"`
	PlanExpiresAt        *time.Time
	StripeCustomerID     *string `gorm:"uniqueIndex:ux_users_stripe_customer_filled"`
	StripeSubscriptionID *string
	SubscriptionStatus   string
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Client is a customer of one artisan. Referenced (not owned) by quotes.
type Client struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	FullName  string    `gorm:"not null"`
	Phone     string    `gorm:"not null"`
	Email     string
	Address   string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CatalogItem is a reusable service/product entry. A quote line may be
// seeded from one at creation time but the values are copied, never
// referenced: later edits here must not rewrite historical documents.
type CatalogItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Name        string    `gorm:"not null"`
	Description string
	UnitPrice   decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Unit        string          `gorm:"not null;default:'forfait'"`
	Category    string
	IsTemplate  bool `gorm:"default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Quote is a devis or facture. All monetary *Amount/Total columns are
// derived by the pricing engine and never accepted from request bodies.
type Quote struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID    `gorm:"type:uuid;not null;index;uniqueIndex:ux_quotes_user_number"`
	ClientID     uuid.UUID    `gorm:"type:uuid;not null;index"`
	DocumentType DocumentType `gorm:"type:varchar(10);not null;default:'devis'"`
	Number       string       `gorm:"not null;uniqueIndex:ux_quotes_user_number"`
	Status       QuoteStatus  `gorm:"type:varchar(10);not null;default:'draft'"`

	IssueDate  time.Time `gorm:"not null"`
	ValidUntil *time.Time

	Subtotal       decimal.Decimal `gorm:"type:numeric(14,2);default:0"`
	DiscountType   DiscountType    `gorm:"type:varchar(10);default:'none'"`
	DiscountValue  decimal.Decimal `gorm:"type:numeric(14,2);default:0"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(14,2);default:0"`
	TaxRate        decimal.Decimal `gorm:"type:numeric(6,2);default:0"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric(14,2);default:0"`
	Total          decimal.Decimal `gorm:"type:numeric(14,2);default:0"`

	PaymentTerms string
	Notes        string
	SentAt       *time.Time // stamped once, on the first draft -> sent transition

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	Items  []QuoteItem `gorm:"constraint:OnDelete:CASCADE"`
	Client Client      `gorm:"foreignKey:ClientID;references:ID"`
}

// QuoteItem is one priced row of a quote. Position is explicit and defines
// both screen and PDF row order.
type QuoteItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	QuoteID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Name        string    `gorm:"not null"`
	Description string
	Quantity    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Unit        string          `gorm:"not null;default:'forfait'"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null"` // quantity x unit price, derived
	Position    int             `gorm:"not null;default:0"`
	CreatedAt   time.Time
}

// QuoteCounter backs per-user sequential numbering, one row per
// (user, document type, year). LastSeq is the last allocated sequence,
// bumped atomically in the same transaction that inserts the quote.
type QuoteCounter struct {
	UserID       uuid.UUID    `gorm:"type:uuid;primaryKey"`
	DocumentType DocumentType `gorm:"type:varchar(10);primaryKey"`
	Year         int          `gorm:"primaryKey"`
	LastSeq      int          `gorm:"not null;default:0"`
}

// Payment is a checkout attempt, either for a client invoice or for a pro
// subscription upgrade (QuoteID nil). Status is mutated by provider
// webhooks only.
type Payment struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;index"`
	QuoteID           *uuid.UUID `gorm:"type:uuid;index"`
	Provider          string     `gorm:"type:varchar(20);not null"`
	ProviderSessionID *string    `gorm:"uniqueIndex:ux_payments_session_filled"`
	ProviderRef       *string
	Amount            decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency          string          `gorm:"type:varchar(3);not null;default:'XOF'"`
	Purpose           PayPurpose      `gorm:"type:varchar(15);not null"`
	Status            PayStatus       `gorm:"type:varchar(10);default:'pending'"`
	SuccessURL        string
	CancelURL         string
	Metadata          string `gorm:"type:text"` // provider metadata echo, JSON
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// QuoteHistory is an audit log entry for quote status transitions.
type QuoteHistory struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey"`
	QuoteID   uuid.UUID   `gorm:"type:uuid;not null;index"`
	ActorID   uuid.UUID   `gorm:"type:uuid;not null;index"`
	Action    string      `gorm:"type:varchar(50);not null"` // e.g. created, status_changed, paid
	OldStatus QuoteStatus `gorm:"type:varchar(10)"`
	NewStatus QuoteStatus `gorm:"type:varchar(10)"`
	CreatedAt time.Time   `gorm:"autoCreateTime"`
}

/* ============================= GORM hooks =============================== */

// IDs are assigned client-side so the models also work on databases without
// gen_random_uuid (the SQLite stores used by tests and the offline queue).

func (u *User) BeforeCreate(*gorm.DB) error         { ensureID(&u.ID); return nil }
func (c *Client) BeforeCreate(*gorm.DB) error       { ensureID(&c.ID); return nil }
func (ci *CatalogItem) BeforeCreate(*gorm.DB) error { ensureID(&ci.ID); return nil }
func (q *Quote) BeforeCreate(*gorm.DB) error        { ensureID(&q.ID); return nil }
func (it *QuoteItem) BeforeCreate(*gorm.DB) error   { ensureID(&it.ID); return nil }
func (p *Payment) BeforeCreate(*gorm.DB) error      { ensureID(&p.ID); return nil }
func (h *QuoteHistory) BeforeCreate(*gorm.DB) error { ensureID(&h.ID); return nil }

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
