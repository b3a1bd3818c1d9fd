/*
Package f24 assembles and renders the F24 payment form for IMU.

PURPOSE:
  Maps an IMU calculation result plus taxpayer and property facts onto
  the structured sections of the standard F24 form, then renders the
  document as a PDF artifact. This is a formatting layer: it performs no
  numeric computation of its own and must reproduce the calculator's
  amounts unchanged.

SECTIONS (document.go):
  1. Contribuente  - taxpayer identity
  2. Immobile      - property identity
  3. Calcolo       - tax calculation breakdown
  4. Erario        - payment section with tax code 3944
  5. Istruzioni    - payment instructions
  6. Footer        - generation stamp

The installment amount is selected by the payment type ("primo" or
"secondo"); anything else is rejected before rendering.

SEE ALSO:
  - pdf.go: The gofpdf renderer and artifact naming
*/
package f24

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/casaviva/expense-engine/imu"
)

// TaxCodeIMU is the F24 tax code (codice tributo) for IMU.
const TaxCodeIMU = "3944"

var (
	// ErrRenderingFailed is returned when the artifact cannot be written.
	ErrRenderingFailed = errors.New("f24 rendering failed")

	// ErrUnknownPaymentType wraps imu.ErrInvalidInput so the HTTP layer
	// maps it to a client error like any other bad input.
	ErrUnknownPaymentType = fmt.Errorf("unknown payment type: %w", imu.ErrInvalidInput)
)

// Taxpayer holds the contribuente identity block.
type Taxpayer struct {
	CodiceFiscale string `json:"codice_fiscale"`
	NomeCompleto  string `json:"nome_completo"`
	Indirizzo     string `json:"indirizzo"`
	Comune        string `json:"comune"`
	CAP           string `json:"cap"`
	Provincia     string `json:"provincia"`
}

// Property holds the immobile identity block, extracted from the asset's
// free-form details.
type Property struct {
	Indirizzo          string
	Comune             string
	CategoriaCatastale string
	Rendita            string
	Quota              string
}

// Row is one label/value line in a section table.
type Row struct {
	Label string
	Value string
}

// Erario is the payment section of the form.
type Erario struct {
	CodiceTributo    string
	AnnoRiferimento  int
	ImportoDebito    decimal.Decimal
	ScadenzaPagamento string
}

// Document is the fully assembled form, ready for rendering.
type Document struct {
	PaymentType  string // "primo" or "secondo"
	Year         int
	Taxpayer     Taxpayer
	Property     Property
	Calculation  []Row
	Erario       Erario
	Instructions []string
	GeneratedAt  time.Time
}

// Amount returns the installment this form pays.
func (d Document) Amount() decimal.Decimal { return d.Erario.ImportoDebito }

// =============================================================================
// ASSEMBLY
// =============================================================================

// Build assembles a Document from the calculator's output. paymentType
// selects which installment the form pays; the amounts are carried over
// from the calculation unchanged.
func Build(taxpayer Taxpayer, details map[string]any, calc imu.Result, paymentType string, now time.Time) (Document, error) {
	amount, ok := calc.Installment(paymentType)
	if !ok {
		return Document{}, fmt.Errorf("%w: %q", ErrUnknownPaymentType, paymentType)
	}
	deadline, _ := imu.Deadline(paymentType)

	installmentLabel := "Secondo"
	if paymentType == "primo" {
		installmentLabel = "Primo"
	}

	return Document{
		PaymentType: paymentType,
		Year:        now.Year(),
		Taxpayer:    taxpayer,
		Property:    propertyFromDetails(details),
		Calculation: []Row{
			{Label: "Base Imponibile:", Value: euro(calc.BaseImponibile)},
			{Label: "Aliquota:", Value: calc.Aliquota.StringFixed(2) + "%"},
			{Label: "Imposta Lorda:", Value: euro(calc.ImuLordo.Round(2))},
			{Label: "Detrazione:", Value: euro(calc.Detrazione)},
			{Label: "Imposta Netta Annua:", Value: euro(calc.ImuNetto.Round(2))},
			{Label: fmt.Sprintf("Importo %s Acconto:", installmentLabel), Value: euro(amount)},
		},
		Erario: Erario{
			CodiceTributo:    TaxCodeIMU,
			AnnoRiferimento:  now.Year(),
			ImportoDebito:    amount,
			ScadenzaPagamento: deadline,
		},
		Instructions: []string{
			"1. Compilare tutti i campi richiesti",
			"2. Il codice tributo per l'IMU e' " + TaxCodeIMU,
			"3. Il pagamento deve essere effettuato entro il 16 giugno (primo acconto) o 16 dicembre (secondo acconto/saldo)",
			"4. E' possibile pagare presso banche, poste, tabaccherie abilitate o online",
			"5. Conservare la ricevuta di pagamento",
			"6. Per informazioni consultare il sito del comune di riferimento",
		},
		GeneratedAt: now,
	}, nil
}

func propertyFromDetails(details map[string]any) Property {
	p := Property{Quota: "100%"}
	if v, ok := details["indirizzo"].(string); ok {
		p.Indirizzo = v
	}
	if v, ok := details["comune"].(string); ok {
		p.Comune = v
	}
	if v, ok := details["categoria_catastale"].(string); ok {
		p.CategoriaCatastale = v
	}
	switch v := details["rendita"].(type) {
	case string:
		p.Rendita = "EUR " + v
	case float64:
		p.Rendita = "EUR " + decimal.NewFromFloat(v).StringFixed(2)
	}
	if v, ok := details["quota"].(string); ok && v != "" {
		p.Quota = v
	}
	return p
}

func euro(d decimal.Decimal) string {
	return "EUR " + d.StringFixed(2)
}
