package pdf

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/johnfercher/go-tree/node"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasodevis/fasodevis-backend/pkg/models"
)

func sampleQuote() (*models.User, *models.Quote) {
	u := &models.User{
		Name:         "Moussa Ouédraogo",
		BusinessName: "Ouédraogo Bâtiment",
		Phone:        "+226 70 11 22 33",
	}
	valid := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	q := &models.Quote{
		Number:       "DEV-2025-0042",
		DocumentType: models.DocDevis,
		Status:       models.QuoteDraft,
		IssueDate:    time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		ValidUntil:   &valid,
		Client:       models.Client{FullName: "Awa Traoré", Phone: "+226 70 00 00 00"},
		Items: []models.QuoteItem{
			{Name: "Peinture salon", Quantity: decimal.NewFromInt(4), Unit: "m²", UnitPrice: decimal.NewFromInt(2500), Amount: decimal.NewFromInt(10000), Position: 0},
			{Name: "Main d'œuvre", Quantity: decimal.NewFromInt(1), Unit: "forfait", UnitPrice: decimal.NewFromInt(10000), Amount: decimal.NewFromInt(10000), Position: 1},
		},
		Subtotal:       decimal.NewFromInt(20000),
		DiscountType:   models.DiscountPercent,
		DiscountValue:  decimal.NewFromInt(10),
		DiscountAmount: decimal.NewFromInt(2000),
		TaxRate:        decimal.NewFromInt(18),
		TaxAmount:      decimal.NewFromInt(3240),
		Total:          decimal.NewFromInt(21240),
		PaymentTerms:   "Acompte de 50% à la commande",
		Notes:          "Travaux sous 15 jours",
	}
	return u, q
}

func TestRender_ProducesPDF(t *testing.T) {
	u, q := sampleQuote()
	buf, err := NewRenderer().Render(u, q, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(buf), "%PDF"), "missing pdf magic")
}

func TestRender_WatermarkedVariant(t *testing.T) {
	u, q := sampleQuote()

	plain, err := NewRenderer().Render(u, q, false)
	require.NoError(t, err)
	marked, err := NewRenderer().Render(u, q, true)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(marked), "%PDF"))
	assert.NotEqual(t, plain, marked, "watermark must alter the output")
}

func TestRender_BadImageURLIsIgnored(t *testing.T) {
	u, q := sampleQuote()
	u.LogoURL = "http://127.0.0.1:1/definitely-down/logo.png"
	u.SignatureURL = "http://127.0.0.1:1/definitely-down/sig.png"

	buf, err := NewRenderer().Render(u, q, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(buf), "%PDF"))
}

func TestRender_InvoiceTitleUsesFacture(t *testing.T) {
	assert.Equal(t, "FACTURE", docTitle(models.DocFacture))
	assert.Equal(t, "DEVIS", docTitle(models.DocDevis))
}

// collectTexts walks the composed document tree and gathers every text
// component value.
func collectTexts(n *node.Node[core.Structure]) []string {
	var out []string
	if s, ok := n.GetData().Value.(string); ok {
		out = append(out, s)
	}
	for _, next := range n.GetNexts() {
		out = append(out, collectTexts(next)...)
	}
	return out
}

func TestCompose_LogoKeepsIdentityBlock(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer srv.Close()

	u, q := sampleQuote()
	u.LogoURL = srv.URL + "/logo.png"

	m, err := NewRenderer().compose(u, q, false)
	require.NoError(t, err)
	require.Equal(t, 1, hits, "logo must be fetched")

	texts := collectTexts(m.GetStructure())
	assert.Contains(t, texts, "Ouédraogo Bâtiment", "business name stays next to the logo")
	assert.Contains(t, texts, contactLine(u), "contact details stay next to the logo")
}

func TestCompose_SignatureBlockOnlyWhenConfigured(t *testing.T) {
	u, q := sampleQuote()

	m, err := NewRenderer().compose(u, q, false)
	require.NoError(t, err)
	assert.NotContains(t, collectTexts(m.GetStructure()), "Signature")

	// configured but unreachable: the labelled signing space still appears
	u.SignatureURL = "http://127.0.0.1:1/definitely-down/sig.png"
	m, err = NewRenderer().compose(u, q, false)
	require.NoError(t, err)
	assert.Contains(t, collectTexts(m.GetStructure()), "Signature")
}
