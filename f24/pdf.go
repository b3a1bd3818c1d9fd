/*
pdf.go - gofpdf renderer for the assembled F24 document

ARTIFACT NAMING:
  F24_IMU_{paymentType}_{timestamp}_{token}.pdf
  The token is the first 8 hex chars of a random UUID, so two
  generations in the same second cannot collide.
*/
package f24

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
)

// Generator renders assembled documents into an output directory.
type Generator struct {
	OutputDir string
	Log       *zap.Logger
}

// NewGenerator returns a Generator writing under outputDir.
func NewGenerator(outputDir string, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{OutputDir: outputDir, Log: log}
}

// Filename returns the artifact name for a document.
func Filename(doc Document) string {
	token := uuid.NewString()[:8]
	return fmt.Sprintf("F24_IMU_%s_%s_%s.pdf", doc.PaymentType, doc.GeneratedAt.Format("20060102_150405"), token)
}

// Generate renders the document and writes the PDF. It returns the full
// path of the written artifact. A write failure surfaces as
// ErrRenderingFailed; it is never swallowed.
func (g *Generator) Generate(doc Document) (string, error) {
	if err := os.MkdirAll(g.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderingFailed, err)
	}

	path := filepath.Join(g.OutputDir, Filename(doc))

	pdf := render(doc)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderingFailed, err)
	}

	g.Log.Info("f24 generated",
		zap.String("path", path),
		zap.String("payment_type", doc.PaymentType),
		zap.String("amount", doc.Amount().StringFixed(2)))
	return path, nil
}

// =============================================================================
// LAYOUT
// =============================================================================

const (
	pageMargin = 20.0
	contentW   = 170.0 // A4 width minus margins
	labelW     = 60.0
)

func render(doc Document) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Title
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 10, tr("MODELLO F24 - PAGAMENTO IMU"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	paymentDesc := "SECONDO ACCONTO/SALDO"
	if doc.PaymentType == "primo" {
		paymentDesc = "PRIMO ACCONTO"
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, tr(fmt.Sprintf("%s IMU %d", paymentDesc, doc.Year)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	sectionTitle(pdf, tr, "DATI DEL CONTRIBUENTE")
	table(pdf, tr, []Row{
		{Label: "Codice Fiscale:", Value: doc.Taxpayer.CodiceFiscale},
		{Label: "Cognome e Nome:", Value: doc.Taxpayer.NomeCompleto},
		{Label: "Indirizzo:", Value: doc.Taxpayer.Indirizzo},
		{Label: "Comune:", Value: doc.Taxpayer.Comune},
		{Label: "CAP:", Value: doc.Taxpayer.CAP},
		{Label: "Provincia:", Value: doc.Taxpayer.Provincia},
	})

	sectionTitle(pdf, tr, "DATI DELL'IMMOBILE")
	table(pdf, tr, []Row{
		{Label: "Indirizzo:", Value: doc.Property.Indirizzo},
		{Label: "Comune:", Value: doc.Property.Comune},
		{Label: "Categoria Catastale:", Value: doc.Property.CategoriaCatastale},
		{Label: "Rendita Catastale:", Value: doc.Property.Rendita},
		{Label: "Quota di possesso:", Value: doc.Property.Quota},
	})

	sectionTitle(pdf, tr, "CALCOLO DELL'IMPOSTA")
	table(pdf, tr, doc.Calculation)

	sectionTitle(pdf, tr, "SEZIONE ERARIO")
	erarioTable(pdf, tr, doc.Erario)

	sectionTitle(pdf, tr, "ISTRUZIONI PER IL PAGAMENTO")
	pdf.SetFont("Helvetica", "", 9)
	for _, line := range doc.Instructions {
		pdf.CellFormat(contentW, 5, tr(line), "", 1, "L", false, 0, "")
	}

	// Footer
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(contentW, 5,
		tr("Documento generato automaticamente da CasaViva il "+doc.GeneratedAt.Format("02/01/2006 15:04")),
		"", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	return pdf
}

func sectionTitle(pdf *gofpdf.Fpdf, tr func(string) string, title string) {
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 7, tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func table(pdf *gofpdf.Fpdf, tr func(string) string, rows []Row) {
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		pdf.SetFillColor(230, 230, 230)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(labelW, 6, tr(row.Label), "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(contentW-labelW, 6, tr(row.Value), "1", 1, "L", false, 0, "")
	}
}

func erarioTable(pdf *gofpdf.Fpdf, tr func(string) string, e Erario) {
	headers := []string{"Codice Tributo", "Anno di Riferimento", "Scadenza", "Importi a Debito", "Importi a Credito"}
	widths := []float64{30, 35, 30, 40, 35}

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 6, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	amount := "EUR " + e.ImportoDebito.StringFixed(2)
	pdf.SetFont("Helvetica", "", 8)
	cells := []string{e.CodiceTributo, fmt.Sprintf("%d", e.AnnoRiferimento), e.ScadenzaPagamento, amount, ""}
	for i, c := range cells {
		align := "C"
		if i >= 3 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 6, tr(c), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(230, 230, 230)
	totals := []string{"Totale", "", "", amount, "EUR 0,00"}
	for i, c := range totals {
		align := "C"
		if i >= 3 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 6, tr(c), "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)
}
