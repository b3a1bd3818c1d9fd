/*
handlers_test.go - HTTP tests for the REST API

Tests for:
- Asset CRUD and automation toggles
- IMU calculation endpoint (values, validation)
- F24 generation end to end (PDF on disk + document row)
- Reminder listing/deletion
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casaviva/expense-engine/api"
	"github.com/casaviva/expense-engine/f24"
	"github.com/casaviva/expense-engine/imu"
	"github.com/casaviva/expense-engine/store/sqlite"
)

type testEnv struct {
	store     *sqlite.Store
	router    http.Handler
	staticDir string
}

func newTestEnv(t *testing.T) *testEnv {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	staticDir := t.TempDir()
	calc := imu.NewCalculator(nil)
	gen := f24.NewGenerator(filepath.Join(staticDir, "f24"), zap.NewNop())
	h := api.NewHandler(store, calc, gen, nil, zap.NewNop())

	return &testEnv{
		store:     store,
		router:    api.NewRouter(h, staticDir),
		staticDir: staticDir,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func seedProperty(t *testing.T, e *testEnv, id string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, e.store.SaveAsset(context.Background(), sqlite.Asset{
		ID:   id,
		Type: sqlite.AssetTypeProperty,
		Name: "Casa Roma",
		Details: map[string]any{
			"rendita":             "1000.00",
			"categoria_catastale": "A/2",
			"indirizzo":           "Via Appia 10",
			"comune":              "Roma",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

// =============================================================================
// ASSETS
// =============================================================================

func TestCreateAndGetAsset(t *testing.T) {
	e := newTestEnv(t)

	// GIVEN: a create request without an explicit ID
	rec := e.do(t, http.MethodPost, "/api/assets", map[string]any{
		"type": "property",
		"name": "Casa Milano",
		"details": map[string]any{
			"rendita": "850.00",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created api.AssetDTO
	decodeData(t, rec, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "property", created.Type)

	// WHEN: fetching it back
	rec = e.do(t, http.MethodGet, "/api/assets/"+created.ID, nil)

	// THEN: the stored details round-trip
	require.Equal(t, http.StatusOK, rec.Code)
	var got api.AssetDTO
	decodeData(t, rec, &got)
	assert.Equal(t, "Casa Milano", got.Name)
	assert.Equal(t, "850.00", got.Details["rendita"])
}

func TestCreateAsset_Validation(t *testing.T) {
	e := newTestEnv(t)

	// Unknown asset type
	rec := e.do(t, http.MethodPost, "/api/assets", map[string]any{
		"type": "boat",
		"name": "Barca",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing name
	rec = e.do(t, http.MethodPost, "/api/assets", map[string]any{
		"type": "vehicle",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAsset_NotFound(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/assets/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAsset(t *testing.T) {
	e := newTestEnv(t)
	seedProperty(t, e, "prop-1")

	rec := e.do(t, http.MethodDelete, "/api/assets/prop-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/assets/prop-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// AUTOMATION
// =============================================================================

func TestAutomation_DefaultsOff(t *testing.T) {
	e := newTestEnv(t)
	seedProperty(t, e, "prop-1")

	rec := e.do(t, http.MethodGet, "/api/assets/prop-1/automation", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var auto api.AutomationDTO
	decodeData(t, rec, &auto)
	assert.False(t, auto.IMUCalc)
	assert.False(t, auto.F24Gen)
	assert.False(t, auto.Reminders)
}

func TestAutomation_RoundTrip(t *testing.T) {
	e := newTestEnv(t)
	seedProperty(t, e, "prop-1")

	rec := e.do(t, http.MethodPut, "/api/assets/prop-1/automation", map[string]any{
		"imu_calc":  true,
		"reminders": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/assets/prop-1/automation", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var auto api.AutomationDTO
	decodeData(t, rec, &auto)
	assert.True(t, auto.IMUCalc)
	assert.False(t, auto.F24Gen)
	assert.True(t, auto.Reminders)
}

func TestAutomation_AssetNotFound(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPut, "/api/assets/nope/automation", map[string]any{"imu_calc": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// IMU
// =============================================================================

func TestCalculateIMU(t *testing.T) {
	e := newTestEnv(t)

	// GIVEN: a standard A/2 property with rendita 1000
	rec := e.do(t, http.MethodPost, "/api/imu/calculate", map[string]any{
		"rendita_catastale":   "1000.00",
		"categoria_catastale": "A/2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: the ordinary-rate annual calculation comes back
	var result imu.Result
	decodeData(t, rec, &result)
	assert.True(t, result.BaseImponibile.Equal(decimal.RequireFromString("168000.00")), result.BaseImponibile.String())
	assert.True(t, result.ImuNetto.Equal(decimal.RequireFromString("1444.80")), result.ImuNetto.String())
	assert.True(t, result.PrimoAcconto.Equal(decimal.RequireFromString("722.40")))
	assert.True(t, result.SecondoAcconto.Equal(decimal.RequireFromString("722.40")))
	assert.Equal(t, imu.ScadenzaPrimo, result.ScadenzaPrimo)
}

func TestCalculateIMU_PrimaCasa(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/imu/calculate", map[string]any{
		"rendita_catastale":   "1000.00",
		"categoria_catastale": "A/2",
		"prima_casa":          true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result imu.Result
	decodeData(t, rec, &result)
	// 0.4% of 168000 minus the 200 deduction
	assert.True(t, result.ImuNetto.Equal(decimal.RequireFromString("472.00")), result.ImuNetto.String())
}

func TestCalculateIMU_Validation(t *testing.T) {
	e := newTestEnv(t)

	cases := []map[string]any{
		{},                                    // rendita missing
		{"rendita_catastale": "abc"},          // not a number
		{"rendita_catastale": "-5"},           // negative
		{"rendita_catastale": "0"},            // zero
		{"rendita_catastale": "1000", "categoria_catastale": "Z/9"}, // unknown category
		{"rendita_catastale": "1000", "aliquota": "-1"},             // negative rate
	}
	for _, body := range cases {
		rec := e.do(t, http.MethodPost, "/api/imu/calculate", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %v", body)
	}
}

func TestListCategories(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/imu/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cats []struct {
		Codice      string `json:"codice"`
		Descrizione string `json:"descrizione"`
	}
	decodeData(t, rec, &cats)
	require.NotEmpty(t, cats)

	// Sorted by code, and the common residential category is present.
	found := false
	for i, c := range cats {
		if i > 0 {
			assert.LessOrEqual(t, cats[i-1].Codice, c.Codice)
		}
		if c.Codice == "A/2" {
			found = true
			assert.NotEmpty(t, c.Descrizione)
		}
	}
	assert.True(t, found, "A/2 missing from categories")
}

func TestGetComune(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/imu/comuni/Roma", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var info imu.MunicipalityInfo
	decodeData(t, rec, &info)
	assert.Equal(t, "Roma", info.Comune)
	assert.Equal(t, []string{imu.ScadenzaPrimo, imu.ScadenzaSecondo}, info.Scadenze)
}

// =============================================================================
// F24
// =============================================================================

func TestGenerateF24(t *testing.T) {
	e := newTestEnv(t)
	seedProperty(t, e, "prop-1")

	// WHEN: requesting the first installment form
	rec := e.do(t, http.MethodPost, "/api/f24/generate", map[string]any{
		"asset_id":     "prop-1",
		"payment_type": "primo",
		"taxpayer": map[string]any{
			"codice_fiscale": "RSSMRA80A01H501U",
			"nome_completo":  "Mario Rossi",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out api.F24GeneratedDTO
	decodeData(t, rec, &out)
	assert.True(t, strings.HasPrefix(out.FileURL, "/static/f24/F24_IMU_primo_"), out.FileURL)
	assert.Equal(t, "722.40", out.Amount)
	assert.Equal(t, imu.ScadenzaPrimo, out.Scadenza)

	// THEN: the PDF exists on disk
	info, err := os.Stat(filepath.Join(e.staticDir, "f24", out.FileName))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// AND: a document row points at the served URL
	docs, err := e.store.ListDocumentsByAsset(context.Background(), "prop-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, out.FileURL, docs[0].FileURL)
	assert.Equal(t, "f24_imu", docs[0].FileType)
}

func TestGenerateF24_AssetNotFound(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/f24/generate", map[string]any{
		"asset_id":     "missing",
		"payment_type": "primo",
		"taxpayer": map[string]any{
			"codice_fiscale": "RSSMRA80A01H501U",
			"nome_completo":  "Mario Rossi",
		},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateF24_RejectsVehicle(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now().UTC()
	require.NoError(t, e.store.SaveAsset(context.Background(), sqlite.Asset{
		ID:        "car-1",
		Type:      sqlite.AssetTypeVehicle,
		Name:      "Fiat Panda",
		CreatedAt: now,
		UpdatedAt: now,
	}))

	rec := e.do(t, http.MethodPost, "/api/f24/generate", map[string]any{
		"asset_id":     "car-1",
		"payment_type": "primo",
		"taxpayer": map[string]any{
			"codice_fiscale": "RSSMRA80A01H501U",
			"nome_completo":  "Mario Rossi",
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateF24_InvalidPaymentType(t *testing.T) {
	e := newTestEnv(t)
	seedProperty(t, e, "prop-1")

	rec := e.do(t, http.MethodPost, "/api/f24/generate", map[string]any{
		"asset_id":     "prop-1",
		"payment_type": "terzo",
		"taxpayer": map[string]any{
			"codice_fiscale": "RSSMRA80A01H501U",
			"nome_completo":  "Mario Rossi",
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REMINDERS / HEALTH
// =============================================================================

func TestDeleteReminder_NotFound(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodDelete, "/api/reminders/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
