// Package pdf renders devis and factures with the fixed house template.
//
// A4 layout:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Nom de l'entreprise + logo  │  DEVIS N° + dates    │
//	│  ───────────────────────────────────────────────────────── │
//	│  CLIENT: Nom / Téléphone / Adresse                          │
//	│  ───────────────────────────────────────────────────────── │
//	│  TABLE: Désignation | Qté | Unité | P.U. | Montant          │
//	│  ───────────────────────────────────────────────────────── │
//	│  TOTAUX: Sous-total / Remise / TVA / TOTAL                  │
//	│  Conditions de paiement + Notes + Signature                 │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/fasodevis/fasodevis-backend/pkg/models"
	"github.com/fasodevis/fasodevis-backend/pkg/money"
)

var (
	colorPrimary = &props.Color{Red: 31, Green: 78, Blue: 121}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
	colorStripe  = &props.Color{Red: 240, Green: 244, Blue: 248}
	colorDanger  = &props.Color{Red: 180, Green: 40, Blue: 40}
)

// Renderer builds quote documents. Logo and signature images are fetched
// over HTTP at render time and silently omitted when unavailable, so a
// broken image URL never blocks an export.
type Renderer struct {
	httpClient *http.Client
}

func NewRenderer() *Renderer {
	return &Renderer{httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// Render produces the PDF bytes for a quote. The quote must carry its
// client and line items (ordered by position). watermark adds the free
// plan footer mark on every page.
func (r *Renderer) Render(u *models.User, q *models.Quote, watermark bool) ([]byte, error) {
	m, err := r.compose(u, q, watermark)
	if err != nil {
		return nil, err
	}
	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generate document: %w", err)
	}
	return doc.GetBytes(), nil
}

// compose assembles the document tree without generating bytes.
func (r *Renderer) compose(u *models.User, q *models.Quote, watermark bool) (core.Maroto, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithPageNumber().
		WithTitle(docTitle(q.DocumentType)+" "+q.Number, true).
		WithAuthor(businessName(u), true).
		Build()

	m := maroto.New(cfg)

	if err := m.RegisterFooter(r.footerRow(watermark)); err != nil {
		return nil, fmt.Errorf("pdf: register footer: %w", err)
	}

	m.AddRows(r.headerRow(u, q)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(clientRow(&q.Client))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, itemRow := range tableItemRows(q.Items) {
		m.AddRows(itemRow)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRows(q)...)

	if terms := strings.TrimSpace(q.PaymentTerms); terms != "" {
		m.AddRows(textBlock("Conditions de paiement", terms)...)
	}
	if notes := strings.TrimSpace(q.Notes); notes != "" {
		m.AddRows(textBlock("Notes", notes)...)
	}

	m.AddRows(r.signatureRow(u)...)

	return m, nil
}

/* ============================== Sections =============================== */

func (r *Renderer) headerRow(u *models.User, q *models.Quote) []core.Row {
	identity := []core.Component{
		text.New(businessName(u), props.Text{
			Style: fontstyle.Bold, Size: 14, Color: colorPrimary, Top: 1,
		}),
		text.New(contactLine(u), props.Text{Size: 8, Top: 9, Color: colorGray}),
	}
	// A logo narrows the identity column but never replaces it
	left := []core.Col{col.New(7).Add(identity...)}
	if img, ext, ok := r.fetchImage(u.LogoURL); ok {
		left = []core.Col{
			col.New(2).Add(image.NewFromBytes(img, ext, props.Rect{Percent: 90, Center: true})),
			col.New(5).Add(identity...),
		}
	}

	rightParts := []core.Component{
		text.New(docTitle(q.DocumentType), props.Text{
			Style: fontstyle.Bold, Size: 12, Align: align.Right,
			Color: colorPrimary, Top: 1,
		}),
	}
	if u.ServiceLabel != "" {
		rightParts = append(rightParts, text.New(u.ServiceLabel, props.Text{
			Size: 7, Align: align.Right, Top: 7, Color: colorGray,
		}))
	}
	rightParts = append(rightParts,
		text.New("N° "+q.Number, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 10,
		}),
		text.New("Date : "+q.IssueDate.Format("02/01/2006"), props.Text{
			Size: 8, Align: align.Right, Top: 16, Color: colorGray,
		}),
	)
	right := col.New(5).Add(rightParts...)

	rows := []core.Row{row.New(22).Add(append(left, right)...)}
	if q.ValidUntil != nil {
		// Devis are valid until; factures are due by
		label := "Valable jusqu'au "
		if q.DocumentType == models.DocFacture {
			label = "À régler avant le "
		}
		rows = append(rows, row.New(5).Add(
			col.New(12).Add(text.New(
				label+q.ValidUntil.Format("02/01/2006"),
				props.Text{Size: 8, Align: align.Right, Color: colorGray},
			)),
		))
	}
	return rows
}

func clientRow(cl *models.Client) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("CLIENT", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(cl.FullName, props.Text{Style: fontstyle.Bold, Size: 10, Top: 6}),
			text.New(fmt.Sprintf("Tél : %s   |   Email : %s   |   Adresse : %s",
				nonEmpty(cl.Phone, "—"),
				nonEmpty(cl.Email, "—"),
				nonEmpty(cl.Address, "—"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Désignation", 5, align.Left),
		h("Qté", 1, align.Center),
		h("Unité", 2, align.Center),
		h("P.U. (FCFA)", 2, align.Right),
		h("Montant (FCFA)", 2, align.Right),
	).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

// tableItemRows renders one row per line item with alternating shading.
func tableItemRows(items []models.QuoteItem) []core.Row {
	result := make([]core.Row, 0, len(items))
	for i, it := range items {
		name := it.Name
		if it.Description != "" {
			name += " — " + it.Description
		}
		itemRow := row.New(7).Add(
			col.New(5).Add(text.New(name, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(1).Add(text.New(it.Quantity.String(), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(2).Add(text.New(it.Unit, props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(2).Add(text.New(money.Format(it.UnitPrice), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(money.Format(it.Amount), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		)
		if i%2 == 1 {
			itemRow = itemRow.WithStyle(&props.Cell{BackgroundColor: colorStripe})
		}
		result = append(result, itemRow)
	}
	return result
}

// totalsRows shows the derivation order the client sees on paper:
// subtotal, then the discount when there is one, then the tax when there
// is one, then the grand total.
func totalsRows(q *models.Quote) []core.Row {
	label := func(s string, c *props.Color) core.Col {
		return col.New(3).Add(text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Color: c,
		}))
	}
	value := func(s string, c *props.Color) core.Col {
		return col.New(3).Add(text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1, Color: c}))
	}

	rows := []core.Row{
		row.New(6).Add(col.New(6), label("Sous-total :", nil), value(money.FormatFCFA(q.Subtotal), nil)),
	}
	if q.DiscountAmount.IsPositive() {
		discountLabel := "Remise :"
		if q.DiscountType == models.DiscountPercent {
			discountLabel = fmt.Sprintf("Remise (%s%%) :", q.DiscountValue.String())
		}
		rows = append(rows, row.New(6).Add(
			col.New(6),
			label(discountLabel, colorDanger),
			value("-"+money.FormatFCFA(q.DiscountAmount), colorDanger),
		))
	}
	if q.TaxAmount.IsPositive() {
		rows = append(rows, row.New(6).Add(
			col.New(6),
			label(fmt.Sprintf("TVA (%s%%) :", q.TaxRate.String()), nil),
			value(money.FormatFCFA(q.TaxAmount), nil),
		))
	}
	rows = append(rows, row.New(8).Add(
		col.New(6),
		col.New(3).Add(text.New("TOTAL :", props.Text{
			Style: fontstyle.Bold, Size: 11, Align: align.Right,
			Color: colorPrimary, Right: 2, Top: 1,
		})),
		col.New(3).Add(text.New(money.FormatFCFA(q.Total), props.Text{
			Style: fontstyle.Bold, Size: 11, Align: align.Right,
			Color: colorPrimary, Right: 1, Top: 1,
		})),
	))
	return rows
}

func textBlock(title, body string) []core.Row {
	return []core.Row{
		row.New(2),
		row.New(5).Add(col.New(12).Add(text.New(title, props.Text{
			Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
		}))),
		row.New(8).Add(col.New(12).Add(text.New(body, props.Text{
			Size: 8, Color: colorGray, Top: 1,
		}))),
	}
}

// signatureRow appears only when the artisan configured a signature
// asset. A configured but unreachable image falls back to the labelled
// signing space.
func (r *Renderer) signatureRow(u *models.User) []core.Row {
	if u.SignatureURL == "" {
		return nil
	}
	sigCol := col.New(4).Add(text.New("Signature", props.Text{
		Size: 8, Color: colorGray, Top: 2,
	}))
	if img, ext, ok := r.fetchImage(u.SignatureURL); ok {
		sigCol = col.New(4).Add(
			text.New("Signature", props.Text{Size: 8, Color: colorGray}),
			image.NewFromBytes(img, ext, props.Rect{Percent: 70, Top: 5}),
		)
	}
	return []core.Row{
		row.New(4),
		row.New(24).Add(col.New(8), sigCol),
	}
}

func (r *Renderer) footerRow(watermark bool) core.Row {
	if !watermark {
		return row.New(6).Add(
			col.New(12).Add(text.New("Merci de votre confiance.", props.Text{
				Size: 7, Align: align.Center, Color: colorGray, Top: 1,
			})),
		)
	}
	return row.New(6).Add(
		col.New(12).Add(text.New("Document généré avec FasoDevis — version gratuite", props.Text{
			Size: 7, Align: align.Center, Color: colorGray, Top: 1,
		})),
	)
}

/* =============================== Helpers ================================ */

func docTitle(dt models.DocumentType) string {
	if dt == models.DocFacture {
		return "FACTURE"
	}
	return "DEVIS"
}

func businessName(u *models.User) string {
	if u.BusinessName != "" {
		return u.BusinessName
	}
	return u.Name
}

func contactLine(u *models.User) string {
	parts := []string{}
	if u.Phone != "" {
		parts = append(parts, "Tél : "+u.Phone)
	}
	if u.Email != "" {
		parts = append(parts, u.Email)
	}
	if u.BusinessAddress != "" {
		parts = append(parts, u.BusinessAddress)
	}
	if u.TaxID != "" {
		parts = append(parts, "IFU : "+u.TaxID)
	}
	return strings.Join(parts, "   |   ")
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// fetchImage downloads an image and guesses its maroto extension from the
// response content type. Any failure means "no image".
func (r *Renderer) fetchImage(url string) ([]byte, extension.Type, bool) {
	if url == "" {
		return nil, "", false
	}
	resp, err := r.httpClient.Get(url)
	if err != nil {
		return nil, "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil || len(body) == 0 {
		return nil, "", false
	}

	switch {
	case strings.Contains(resp.Header.Get("Content-Type"), "png"):
		return body, extension.Png, true
	case strings.Contains(resp.Header.Get("Content-Type"), "jpeg"),
		strings.Contains(resp.Header.Get("Content-Type"), "jpg"):
		return body, extension.Jpg, true
	default:
		return nil, "", false
	}
}
