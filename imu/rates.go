/*
rates.go - Cadastral coefficient table and IMU tax rates

PURPOSE:
  Static fiscal data for the IMU computation: the revaluation coefficient
  per cadastral category, the default tax rates per property use, and the
  primary-residence deduction. Bundled into a RateTable value that is
  injected into the Calculator instead of living in package globals, so a
  future per-year or per-municipality table can be swapped in without
  touching the arithmetic.

LEGAL BACKGROUND (2024 rules):
  base imponibile = rendita catastale x 1.05 (revaluation) x 160 (multiplier)
  aliquota        = 0.4% prima casa, 0.86% altri immobili (municipal default)
  detrazione      = EUR 200.00 flat for the primary residence

MUNICIPALITY OVERRIDES:
  Municipalities may deliberate different rates. RateProvider is the
  extension point for a real lookup; StaticRateProvider returns the
  national defaults for every comune.

SEE ALSO:
  - calculator.go: The arithmetic that consumes this table
*/
package imu

import "github.com/shopspring/decimal"

// =============================================================================
// TAX RATES
// =============================================================================

// TaxRateSet holds the three default percentage rates by property use.
type TaxRateSet struct {
	PrimaCasa        decimal.Decimal // primary residence
	AltriImmobili    decimal.Decimal // any other property
	FabbricatiRurali decimal.Decimal // rural buildings
}

// RateTable is the complete rule set for one tax year.
type RateTable struct {
	// Coefficients maps cadastral category (e.g. "A/2") to its
	// revaluation coefficient.
	Coefficients map[string]decimal.Decimal

	// DefaultCoefficient is applied when a category is not in the table.
	// The upstream data is free form, so unknown categories fall back
	// rather than fail; ValidCategory lets strict callers reject first.
	DefaultCoefficient decimal.Decimal

	// Multiplier is the legal cadastral multiplier for buildings.
	Multiplier decimal.Decimal

	// Rates are the default aliquote, overridable per calculation.
	Rates TaxRateSet

	// Detrazione is the flat primary-residence deduction.
	Detrazione decimal.Decimal
}

// DefaultRateTable returns the 2024 national table.
func DefaultRateTable() *RateTable {
	coeff := decimal.NewFromFloat(1.05)
	coefficients := make(map[string]decimal.Decimal, len(categoryDescriptions))
	for categoria := range categoryDescriptions {
		coefficients[categoria] = coeff
	}

	return &RateTable{
		Coefficients:       coefficients,
		DefaultCoefficient: coeff,
		Multiplier:         decimal.NewFromInt(160),
		Rates: TaxRateSet{
			PrimaCasa:        decimal.NewFromFloat(0.4),
			AltriImmobili:    decimal.NewFromFloat(0.86),
			FabbricatiRurali: decimal.NewFromFloat(0.1),
		},
		Detrazione: decimal.NewFromInt(200),
	}
}

// Coefficient returns the revaluation coefficient for a category,
// falling back to the default for unknown categories.
func (rt *RateTable) Coefficient(categoria string) decimal.Decimal {
	if c, ok := rt.Coefficients[categoria]; ok {
		return c
	}
	return rt.DefaultCoefficient
}

// ValidCategory reports whether the category is in the table.
func (rt *RateTable) ValidCategory(categoria string) bool {
	_, ok := rt.Coefficients[categoria]
	return ok
}

// =============================================================================
// CADASTRAL CATEGORIES
// =============================================================================

var categoryDescriptions = map[string]string{
	"A/1":  "Abitazioni di tipo signorile",
	"A/2":  "Abitazioni di tipo civile",
	"A/3":  "Abitazioni di tipo economico",
	"A/4":  "Abitazioni di tipo popolare",
	"A/5":  "Abitazioni di tipo ultrapopolare",
	"A/6":  "Abitazioni di tipo rurale",
	"A/7":  "Abitazioni in villini",
	"A/8":  "Abitazioni in ville",
	"A/9":  "Castelli, palazzi di eminenti pregi artistici",
	"A/10": "Uffici e studi privati",
	"A/11": "Abitazioni ed alloggi tipici dei luoghi",
	"B/1":  "Collegi e convitti, educandati, ricoveri, orfanotrofi",
	"B/2":  "Case di cura ed ospedali",
	"B/3":  "Prigioni e riformatori",
	"B/4":  "Uffici pubblici",
	"B/5":  "Scuole, laboratori scientifici",
	"B/6":  "Biblioteche, pinacoteche, musei, gallerie",
	"B/7":  "Cappelle ed oratori non destinati all'esercizio pubblico",
	"B/8":  "Magazzini sotterranei per depositi di derrate",
	"C/1":  "Negozi e botteghe",
	"C/2":  "Magazzini e locali di deposito",
	"C/3":  "Laboratori per arti e mestieri",
	"C/4":  "Fabbricati e locali per esercizi sportivi",
	"C/5":  "Stabilimenti balneari e di acque curative",
	"C/6":  "Stalle, scuderie, rimesse, autorimesse",
	"C/7":  "Tettoie chiuse od aperte",
	"D/1":  "Opifici",
	"D/2":  "Alberghi e pensioni",
	"D/3":  "Teatri, cinematografi, sale per concerti",
	"D/4":  "Case di cura private",
	"D/5":  "Istituti di credito, cambio e assicurazione",
	"D/6":  "Fabbricati e locali per esercizi sportivi",
	"D/7":  "Fabbricati costruiti per le speciali esigenze industriali",
	"D/8":  "Fabbricati costruiti per le speciali esigenze commerciali",
	"D/9":  "Edifici galleggianti o sospesi",
	"D/10": "Fabbricati per funzioni produttive connesse alle attivita agricole",
}

// Categories returns the defined cadastral categories with their
// Italian descriptions.
func Categories() map[string]string {
	out := make(map[string]string, len(categoryDescriptions))
	for k, v := range categoryDescriptions {
		out[k] = v
	}
	return out
}

// =============================================================================
// RATE PROVIDER - Municipality lookup extension point
// =============================================================================

// MunicipalityInfo is what a rate lookup returns for one comune.
type MunicipalityInfo struct {
	Comune                   string          `json:"comune"`
	AliquotaPrimaCasa        decimal.Decimal `json:"aliquota_prima_casa"`
	AliquotaAltriImmobili    decimal.Decimal `json:"aliquota_altri_immobili"`
	DetrazionePrimaCasa      decimal.Decimal `json:"detrazione_prima_casa"`
	MaggiorazioneDisponibile bool            `json:"maggiorazione_disponibile"`
	Scadenze                 []string        `json:"scadenze"`
}

// RateProvider resolves municipality-specific rates. A real
// implementation would query the national deliberation registry; the
// static one returns the table defaults regardless of comune.
type RateProvider interface {
	RatesFor(comune string) MunicipalityInfo
}

// StaticRateProvider serves the defaults of a RateTable for every comune.
type StaticRateProvider struct {
	Table *RateTable
}

func NewStaticRateProvider(table *RateTable) *StaticRateProvider {
	if table == nil {
		table = DefaultRateTable()
	}
	return &StaticRateProvider{Table: table}
}

func (p *StaticRateProvider) RatesFor(comune string) MunicipalityInfo {
	return MunicipalityInfo{
		Comune:                   comune,
		AliquotaPrimaCasa:        p.Table.Rates.PrimaCasa,
		AliquotaAltriImmobili:    p.Table.Rates.AltriImmobili,
		DetrazionePrimaCasa:      p.Table.Detrazione,
		MaggiorazioneDisponibile: true,
		Scadenze:                 []string{ScadenzaPrimo, ScadenzaSecondo},
	}
}
