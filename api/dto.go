/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Assets:
    AssetDTO, CreateAssetRequest

  Automation:
    AutomationDTO, AutomationRequest

  IMU:
    IMUCalculationRequest (results and comune info come back as the
    imu package types, which carry their own JSON tags)

  F24:
    F24GenerateRequest, TaxpayerRequest, F24GeneratedDTO

  Reminders:
    ReminderDTO

VALIDATION:
  Request types carry go-playground/validator struct tags. Handlers run
  the validator before touching the store, so malformed input never
  reaches the domain packages.

SEE ALSO:
  - handlers.go: Uses these types
  - imu/calculator.go: IMU result payload returned verbatim
*/
package api

import (
	"time"

	"github.com/casaviva/expense-engine/reminder"
	"github.com/casaviva/expense-engine/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// Response is the standard envelope for all API responses.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// AssetDTO represents an asset in API responses.
type AssetDTO struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	Details   map[string]any `json:"details"`
	CreatedAt string         `json:"created_at,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}

// CreateAssetRequest is the request to create or replace an asset.
type CreateAssetRequest struct {
	ID      string         `json:"id"`
	Type    string         `json:"type" validate:"required,oneof=property vehicle"`
	Name    string         `json:"name" validate:"required"`
	Details map[string]any `json:"details"`
}

// AutomationDTO represents the automation toggles of an asset.
type AutomationDTO struct {
	AssetID   string `json:"asset_id"`
	IMUCalc   bool   `json:"imu_calc"`
	F24Gen    bool   `json:"f24_gen"`
	Reminders bool   `json:"reminders"`
}

// AutomationRequest is the request to update automation toggles.
type AutomationRequest struct {
	IMUCalc   bool `json:"imu_calc"`
	F24Gen    bool `json:"f24_gen"`
	Reminders bool `json:"reminders"`
}

// IMUCalculationRequest is the request for a standalone IMU calculation.
type IMUCalculationRequest struct {
	Rendita   string  `json:"rendita_catastale" validate:"required"`
	Categoria string  `json:"categoria_catastale"`
	PrimaCasa bool    `json:"prima_casa"`
	Aliquota  *string `json:"aliquota,omitempty"`
}

// TaxpayerRequest is the taxpayer block of an F24 generation request.
type TaxpayerRequest struct {
	CodiceFiscale string `json:"codice_fiscale" validate:"required"`
	NomeCompleto  string `json:"nome_completo" validate:"required"`
	Indirizzo     string `json:"indirizzo"`
	Comune        string `json:"comune"`
	CAP           string `json:"cap"`
	Provincia     string `json:"provincia"`
}

// F24GenerateRequest is the request to generate an F24 payment form.
type F24GenerateRequest struct {
	AssetID     string          `json:"asset_id" validate:"required"`
	PaymentType string          `json:"payment_type" validate:"required,oneof=primo secondo"`
	Taxpayer    TaxpayerRequest `json:"taxpayer" validate:"required"`
}

// F24GeneratedDTO is the response after generating an F24 form.
type F24GeneratedDTO struct {
	FileURL     string `json:"file_url"`
	FileName    string `json:"file_name"`
	PaymentType string `json:"payment_type"`
	Amount      string `json:"amount"`
	Scadenza    string `json:"scadenza"`
}

// ReminderDTO represents a scheduled reminder.
type ReminderDTO struct {
	ID       string `json:"id"`
	AssetID  string `json:"asset_id"`
	Type     string `json:"type"`
	Date     string `json:"date"`
	Message  string `json:"message"`
	Notified bool   `json:"notified"`
}

// DocumentDTO represents a generated document attached to an asset.
type DocumentDTO struct {
	ID        string `json:"id"`
	AssetID   string `json:"asset_id"`
	FileURL   string `json:"file_url"`
	FileType  string `json:"file_type"`
	CreatedAt string `json:"created_at,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toAssetDTO(a sqlite.Asset) AssetDTO {
	return AssetDTO{
		ID:        a.ID,
		Type:      a.Type,
		Name:      a.Name,
		Details:   a.Details,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.Format(time.RFC3339),
	}
}

func toAssetDTOs(assets []sqlite.Asset) []AssetDTO {
	dtos := make([]AssetDTO, len(assets))
	for i, a := range assets {
		dtos[i] = toAssetDTO(a)
	}
	return dtos
}

func toReminderDTO(r reminder.Reminder) ReminderDTO {
	return ReminderDTO{
		ID:       r.ID,
		AssetID:  r.AssetID,
		Type:     string(r.Type),
		Date:     r.Date.Format("2006-01-02"),
		Message:  r.Message,
		Notified: r.Notified,
	}
}

func toReminderDTOs(rs []reminder.Reminder) []ReminderDTO {
	dtos := make([]ReminderDTO, len(rs))
	for i, r := range rs {
		dtos[i] = toReminderDTO(r)
	}
	return dtos
}

func toDocumentDTO(d sqlite.Document) DocumentDTO {
	return DocumentDTO{
		ID:        d.ID,
		AssetID:   d.AssetID,
		FileURL:   d.FileURL,
		FileType:  d.FileType,
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
	}
}
