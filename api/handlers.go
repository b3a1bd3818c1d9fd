/*
handlers.go - HTTP API handlers for the household expense backend

PURPOSE:
  Exposes the IMU calculator, F24 generator and reminder data via REST
  API. Handles HTTP request/response, JSON serialization, and delegates
  to domain logic.

ENDPOINTS:
  Assets:
    GET    /api/assets                   List all assets
    POST   /api/assets                   Create asset
    GET    /api/assets/{id}              Get asset details
    DELETE /api/assets/{id}              Delete asset (cascades)
    GET    /api/assets/{id}/automation   Get automation toggles
    PUT    /api/assets/{id}/automation   Update automation toggles
    GET    /api/assets/{id}/reminders    Reminders for one asset
    GET    /api/assets/{id}/documents    Generated documents for one asset

  IMU:
    POST   /api/imu/calculate            Standalone IMU calculation
    GET    /api/imu/categories           Cadastral categories
    GET    /api/imu/comuni/{comune}      Per-comune rates and deadlines

  F24:
    POST   /api/f24/generate             Build and render an F24 PDF

  Reminders:
    GET    /api/reminders                List all reminders
    DELETE /api/reminders/{id}           Delete a reminder

  Health:
    GET    /api/health                   Liveness probe

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator on request DTOs)
  3. Call domain logic (imu, f24, store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input (imu.ErrInvalidInput)
  - 404: Resource not found
  - 500: Internal errors (including f24.ErrRenderingFailed)

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: Background jobs sharing the same store
  - server.go: Router setup and middleware
*/
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/casaviva/expense-engine/f24"
	"github.com/casaviva/expense-engine/imu"
	"github.com/casaviva/expense-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Calculator *imu.Calculator
	Rates      imu.RateProvider
	Generator  *f24.Generator
	Log        *zap.Logger

	validate *validator.Validate
}

// NewHandler wires a handler over the given collaborators. A nil rate
// provider falls back to the static national defaults.
func NewHandler(store *sqlite.Store, calc *imu.Calculator, gen *f24.Generator, rates imu.RateProvider, log *zap.Logger) *Handler {
	if calc == nil {
		calc = imu.NewCalculator(nil)
	}
	if rates == nil {
		rates = imu.NewStaticRateProvider(calc.Rates())
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store:      store,
		Calculator: calc,
		Rates:      rates,
		Generator:  gen,
		Log:        log,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// ASSET HANDLERS
// =============================================================================

// ListAssets returns all assets.
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.Store.ListAssets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assets", err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: toAssetDTOs(assets)})
}

// GetAsset returns a single asset.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	asset, err := h.Store.GetAsset(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get asset", err)
		return
	}
	if asset == nil {
		writeError(w, http.StatusNotFound, "Asset not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: toAssetDTO(*asset)})
}

// CreateAsset creates or replaces an asset.
func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req CreateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	asset := sqlite.Asset{
		ID:        req.ID,
		Type:      req.Type,
		Name:      req.Name,
		Details:   req.Details,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Store.SaveAsset(r.Context(), asset); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create asset", err)
		return
	}

	h.Log.Info("asset created", zap.String("id", asset.ID), zap.String("type", asset.Type))
	writeJSON(w, http.StatusCreated, Response{Success: true, Message: "Asset created", Data: toAssetDTO(asset)})
}

// DeleteAsset removes an asset and its dependent rows.
func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteAsset(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Asset not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete asset", err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Asset deleted"})
}

// GetAssetReminders returns the reminders attached to one asset.
func (h *Handler) GetAssetReminders(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	reminders, err := h.Store.ListRemindersByAsset(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list reminders", err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: toReminderDTOs(reminders)})
}

// GetAssetDocuments returns the generated documents for one asset.
func (h *Handler) GetAssetDocuments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	docs, err := h.Store.ListDocumentsByAsset(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list documents", err)
		return
	}
	dtos := make([]DocumentDTO, len(docs))
	for i, d := range docs {
		dtos[i] = toDocumentDTO(d)
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: dtos})
}

// =============================================================================
// AUTOMATION HANDLERS
// =============================================================================

// GetAutomation returns the automation toggles for an asset.
func (h *Handler) GetAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	asset, err := h.Store.GetAsset(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get asset", err)
		return
	}
	if asset == nil {
		writeError(w, http.StatusNotFound, "Asset not found", nil)
		return
	}

	auto, err := h.Store.GetAutomation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get automation", err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: AutomationDTO{
		AssetID:   id,
		IMUCalc:   auto.IMUCalc,
		F24Gen:    auto.F24Gen,
		Reminders: auto.Reminders,
	}})
}

// UpdateAutomation replaces the automation toggles for an asset.
func (h *Handler) UpdateAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	asset, err := h.Store.GetAsset(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get asset", err)
		return
	}
	if asset == nil {
		writeError(w, http.StatusNotFound, "Asset not found", nil)
		return
	}

	var req AutomationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	auto := sqlite.Automation{
		AssetID:   id,
		IMUCalc:   req.IMUCalc,
		F24Gen:    req.F24Gen,
		Reminders: req.Reminders,
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.Store.SaveAutomation(r.Context(), auto); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save automation", err)
		return
	}

	h.Log.Info("automation updated",
		zap.String("asset_id", id),
		zap.Bool("imu_calc", auto.IMUCalc),
		zap.Bool("f24_gen", auto.F24Gen),
		zap.Bool("reminders", auto.Reminders))
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Automation updated", Data: AutomationDTO{
		AssetID:   id,
		IMUCalc:   auto.IMUCalc,
		F24Gen:    auto.F24Gen,
		Reminders: auto.Reminders,
	}})
}

// =============================================================================
// IMU HANDLERS
// =============================================================================

// CalculateIMU runs a standalone annual IMU calculation.
func (h *Handler) CalculateIMU(w http.ResponseWriter, r *http.Request) {
	var req IMUCalculationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	rendita, err := decimal.NewFromString(req.Rendita)
	if err != nil || !rendita.IsPositive() {
		writeError(w, http.StatusBadRequest, "rendita_catastale must be a positive number", err)
		return
	}
	if req.Categoria != "" && !h.Calculator.ValidCategory(req.Categoria) {
		writeError(w, http.StatusBadRequest, "Unknown categoria_catastale: "+req.Categoria, nil)
		return
	}

	in := imu.Input{
		Rendita:   rendita,
		Categoria: req.Categoria,
		PrimaCasa: req.PrimaCasa,
	}
	if req.Aliquota != nil {
		aliquota, err := decimal.NewFromString(*req.Aliquota)
		if err != nil || aliquota.IsNegative() {
			writeError(w, http.StatusBadRequest, "aliquota must be a non-negative number", err)
			return
		}
		in.Aliquota = &aliquota
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: h.Calculator.ComputeAnnual(in)})
}

// ListCategories returns the cadastral categories, sorted by code.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	byCode := imu.Categories()
	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	type categoryDTO struct {
		Codice      string `json:"codice"`
		Descrizione string `json:"descrizione"`
	}
	dtos := make([]categoryDTO, len(codes))
	for i, code := range codes {
		dtos[i] = categoryDTO{Codice: code, Descrizione: byCode[code]}
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: dtos})
}

// GetComune returns the IMU parameters for one municipality.
func (h *Handler) GetComune(w http.ResponseWriter, r *http.Request) {
	comune := chi.URLParam(r, "comune")
	if comune == "" {
		writeError(w, http.StatusBadRequest, "comune is required", nil)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: h.Rates.RatesFor(comune)})
}

// =============================================================================
// F24 HANDLERS
// =============================================================================

// GenerateF24 computes the IMU installment for a property asset and
// renders the corresponding F24 form to the static directory.
func (h *Handler) GenerateF24(w http.ResponseWriter, r *http.Request) {
	var req F24GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	asset, err := h.Store.GetAsset(r.Context(), req.AssetID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get asset", err)
		return
	}
	if asset == nil {
		writeError(w, http.StatusNotFound, "Asset not found", nil)
		return
	}
	if asset.Type != sqlite.AssetTypeProperty {
		writeError(w, http.StatusBadRequest, "F24 generation requires a property asset", nil)
		return
	}

	calc, err := h.Calculator.ComputeForProperty(asset.Details)
	if err != nil {
		if imu.IsInvalidInput(err) {
			writeError(w, http.StatusBadRequest, "Invalid property data", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "IMU calculation failed", err)
		return
	}

	taxpayer := f24.Taxpayer{
		CodiceFiscale: req.Taxpayer.CodiceFiscale,
		NomeCompleto:  req.Taxpayer.NomeCompleto,
		Indirizzo:     req.Taxpayer.Indirizzo,
		Comune:        req.Taxpayer.Comune,
		CAP:           req.Taxpayer.CAP,
		Provincia:     req.Taxpayer.Provincia,
	}
	doc, err := f24.Build(taxpayer, asset.Details, calc, req.PaymentType, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to build F24", err)
		return
	}

	path, err := h.Generator.Generate(doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render F24 PDF", err)
		return
	}
	// The generator writes into the static f24 dir; the returned path's
	// base is the only source of the randomized filename.
	fileName := filepath.Base(path)
	fileURL := "/static/f24/" + fileName

	record := sqlite.Document{
		ID:        uuid.NewString(),
		AssetID:   asset.ID,
		FileURL:   fileURL,
		FileType:  "f24_imu",
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.SaveDocument(r.Context(), record); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record document", err)
		return
	}

	h.Log.Info("f24 requested",
		zap.String("asset_id", asset.ID),
		zap.String("payment_type", req.PaymentType),
		zap.String("file", fileName))
	writeJSON(w, http.StatusCreated, Response{Success: true, Message: "F24 generated", Data: F24GeneratedDTO{
		FileURL:     fileURL,
		FileName:    fileName,
		PaymentType: doc.PaymentType,
		Amount:      doc.Amount().StringFixed(2),
		Scadenza:    doc.Erario.ScadenzaPagamento,
	}})
}

// =============================================================================
// REMINDER HANDLERS
// =============================================================================

// ListReminders returns every reminder in the system.
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.Store.ListReminders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list reminders", err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: toReminderDTOs(reminders)})
}

// DeleteReminder removes a reminder by ID.
func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteReminder(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Reminder not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete reminder", err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Reminder deleted"})
}

// =============================================================================
// HEALTH
// =============================================================================

// Health is the liveness probe. Reports degraded when the database
// does not answer.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, db := "ok", "ok"
	code := http.StatusOK
	if err := h.Store.Ping(r.Context()); err != nil {
		status, db = "degraded", err.Error()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{
		"status":   status,
		"database": db,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
