/*
Package imu computes the Italian municipal property tax (IMU).

PURPOSE:
  Pure, deterministic computation of the annual IMU amount and its two
  installments from cadastral facts. No I/O, no state beyond the injected
  RateTable: safe for concurrent use from any number of callers.

PIPELINE (calculator.go):
  1. base imponibile = round2(rendita x coefficient x 160)       [rounded]
  2. aliquota        = override, or 0.4% prima casa / 0.86% else
  3. imu lordo       = base x (aliquota / 100)                   [NOT rounded]
  4. detrazione      = 200.00 if prima casa, else 0
  5. imu netto       = max(lordo - detrazione, 0)
  6. primo acconto   = round2(netto / 2)                         [rounded]
  7. secondo acconto = netto - primo                             [exact complement]

ROUNDING DISCIPLINE:
  All money values are shopspring decimals, never float64. Rounding is
  half-up to two places and happens ONLY at steps 1 and 6. The second
  installment is deliberately the unrounded complement so that
  primo + secondo == netto holds exactly; downstream ledgers depend on
  that invariant.

SEE ALSO:
  - rates.go: RateTable, categories, RateProvider
  - errors.go: ErrInvalidInput
*/
package imu

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Fixed legal deadlines for the two installments (day/month).
const (
	ScadenzaPrimo   = "16/06"
	ScadenzaSecondo = "16/12"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// =============================================================================
// RESULT
// =============================================================================

// Result is the full output of an annual IMU calculation. Field names are
// a wire contract: the F24 assembler and the notification text bind to
// the JSON names and must not drift.
type Result struct {
	BaseImponibile  decimal.Decimal `json:"base_imponibile"`
	Aliquota        decimal.Decimal `json:"aliquota"`
	ImuLordo        decimal.Decimal `json:"imu_lordo"`
	Detrazione      decimal.Decimal `json:"detrazione"`
	ImuNetto        decimal.Decimal `json:"imu_netto"`
	PrimoAcconto    decimal.Decimal `json:"primo_acconto"`
	SecondoAcconto  decimal.Decimal `json:"secondo_acconto"`
	ScadenzaPrimo   string          `json:"scadenza_primo"`
	ScadenzaSecondo string          `json:"scadenza_secondo"`
}

// Installment returns the amount for "primo" or "secondo". The boolean is
// false for any other payment type.
func (r Result) Installment(paymentType string) (decimal.Decimal, bool) {
	switch paymentType {
	case "primo":
		return r.PrimoAcconto, true
	case "secondo":
		return r.SecondoAcconto, true
	}
	return decimal.Zero, false
}

// Deadline returns the legal deadline label for "primo" or "secondo".
func Deadline(paymentType string) (string, bool) {
	switch paymentType {
	case "primo":
		return ScadenzaPrimo, true
	case "secondo":
		return ScadenzaSecondo, true
	}
	return "", false
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Input collects the parameters of one annual calculation.
type Input struct {
	Rendita   decimal.Decimal
	Categoria string

	// Aliquota overrides the default rate when non-nil (percentage).
	Aliquota *decimal.Decimal

	PrimaCasa bool

	// Detrazione overrides the table's primary-residence deduction when
	// non-nil. Ignored unless PrimaCasa.
	Detrazione *decimal.Decimal
}

// Calculator computes IMU amounts against an injected rate table.
type Calculator struct {
	rates *RateTable
}

// NewCalculator returns a calculator over the given table, or the
// national defaults when table is nil.
func NewCalculator(table *RateTable) *Calculator {
	if table == nil {
		table = DefaultRateTable()
	}
	return &Calculator{rates: table}
}

// Rates exposes the table the calculator was built with.
func (c *Calculator) Rates() *RateTable { return c.rates }

// ValidCategory reports whether categoria is a defined cadastral category.
func (c *Calculator) ValidCategory(categoria string) bool {
	return c.rates.ValidCategory(categoria)
}

// ComputeTaxableBase returns the base imponibile: the cadastral income
// revalued by the category coefficient and multiplied by 160, rounded
// half-up to two places. Unknown categories use the default coefficient.
func (c *Calculator) ComputeTaxableBase(rendita decimal.Decimal, categoria string) decimal.Decimal {
	base := rendita.Mul(c.rates.Coefficient(categoria)).Mul(c.rates.Multiplier)
	return base.Round(2)
}

// ComputeAnnual runs the full pipeline documented in the package header.
// It has no failure path: input validation belongs to the caller (see
// ComputeForProperty).
func (c *Calculator) ComputeAnnual(in Input) Result {
	base := c.ComputeTaxableBase(in.Rendita, in.Categoria)

	aliquota := c.defaultRate(in.PrimaCasa)
	if in.Aliquota != nil {
		aliquota = *in.Aliquota
	}

	// Gross tax stays at full precision; rounding here would leak cents
	// into the installment split.
	lordo := base.Mul(aliquota.Div(hundred))

	detrazione := decimal.Zero
	if in.PrimaCasa {
		detrazione = c.rates.Detrazione
		if in.Detrazione != nil {
			detrazione = *in.Detrazione
		}
	}

	netto := lordo.Sub(detrazione)
	if netto.IsNegative() {
		netto = decimal.Zero
	}

	primo := netto.Div(two).Round(2)
	// The second installment absorbs any half-cent remainder so that
	// primo + secondo == netto exactly.
	secondo := netto.Sub(primo)

	return Result{
		BaseImponibile:  base,
		Aliquota:        aliquota,
		ImuLordo:        lordo,
		Detrazione:      detrazione,
		ImuNetto:        netto,
		PrimoAcconto:    primo,
		SecondoAcconto:  secondo,
		ScadenzaPrimo:   ScadenzaPrimo,
		ScadenzaSecondo: ScadenzaSecondo,
	}
}

func (c *Calculator) defaultRate(primaCasa bool) decimal.Decimal {
	if primaCasa {
		return c.rates.Rates.PrimaCasa
	}
	return c.rates.Rates.AltriImmobili
}

// =============================================================================
// FREE-FORM PROPERTY DETAILS
// =============================================================================

// ComputeForProperty extracts the calculation input from a free-form
// property-details record (the asset's details JSON) and delegates to
// ComputeAnnual.
//
// Recognized keys: "rendita" (decimal string or number, required > 0),
// "categoria_catastale" (defaults to "A/2"), "prima_casa" (bool),
// "aliquota" (optional override).
func (c *Calculator) ComputeForProperty(details map[string]any) (Result, error) {
	rendita, err := parseDecimal(details["rendita"])
	if err != nil {
		return Result{}, &InvalidInputError{Field: "rendita", Value: details["rendita"], Reason: "not a number"}
	}
	if !rendita.IsPositive() {
		return Result{}, &InvalidInputError{Field: "rendita", Value: rendita.String(), Reason: "must be greater than 0"}
	}

	categoria := "A/2"
	if v, ok := details["categoria_catastale"].(string); ok && v != "" {
		categoria = v
	}

	primaCasa := false
	if v, ok := details["prima_casa"].(bool); ok {
		primaCasa = v
	}

	var aliquota *decimal.Decimal
	if raw, ok := details["aliquota"]; ok && raw != nil {
		d, err := parseDecimal(raw)
		if err != nil {
			return Result{}, &InvalidInputError{Field: "aliquota", Value: raw, Reason: "not a number"}
		}
		aliquota = &d
	}

	return c.ComputeAnnual(Input{
		Rendita:   rendita,
		Categoria: categoria,
		Aliquota:  aliquota,
		PrimaCasa: primaCasa,
	}), nil
}

// parseDecimal accepts the value shapes that survive a JSON round trip of
// the free-form details record.
func parseDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return t, nil
	case string:
		return decimal.NewFromString(t)
	case json.Number:
		return decimal.NewFromString(t.String())
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	default:
		return decimal.Zero, &InvalidInputError{Field: "rendita", Value: v, Reason: "unsupported type"}
	}
}
