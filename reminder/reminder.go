/*
Package reminder defines the reminder entity and the date policy that
drives the scheduled jobs.

PURPOSE:
  A Reminder is the persisted intent to notify a user ahead of a legal
  deadline. This package owns the closed set of reminder types, the
  due-date arithmetic (notify 15 days before the deadline) and the
  localized message text. Persistence and dispatch live elsewhere: the
  store deduplicates on (asset_id, type, date) and the scheduler flips
  Notified after a dispatch attempt.

DATE POLICY:
  IMU:      due June 16 / December 16, reminder 15 days earlier.
  Vehicles: due date read from the asset details, reminder 15 days earlier.
  Dates are day-granular and normalized to UTC midnight so the dedup key
  compares cleanly.
*/
package reminder

import (
	"fmt"
	"time"
)

// LeadTime is how far ahead of the legal deadline the reminder fires.
const LeadTime = 15 * 24 * time.Hour

// Type is the closed set of reminder kinds this backend produces.
type Type string

const (
	TypeIMU           Type = "imu"
	TypeBollo         Type = "bollo"
	TypeAssicurazione Type = "assicurazione"
	TypeRevisione     Type = "revisione"
)

// Valid reports whether t is a known reminder type.
func (t Type) Valid() bool {
	switch t {
	case TypeIMU, TypeBollo, TypeAssicurazione, TypeRevisione:
		return true
	}
	return false
}

// Reminder is the persisted entity.
type Reminder struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"asset_id"`
	Type      Type      `json:"type"`
	Date      time.Time `json:"date"` // notify date, not the legal deadline
	Message   string    `json:"message"`
	Notified  bool      `json:"notified"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// DATE POLICY
// =============================================================================

// Day normalizes a time to UTC midnight. Reminder dates are day-granular;
// the dedup key depends on this normalization.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IMUDueDate returns the legal IMU deadline for the given year:
// June 16 for the first installment, December 16 for the second.
func IMUDueDate(year int, firstPayment bool) time.Time {
	month := time.December
	if firstPayment {
		month = time.June
	}
	return time.Date(year, month, 16, 0, 0, 0, 0, time.UTC)
}

// NotifyDate returns the day the reminder should fire for a deadline.
func NotifyDate(dueDate time.Time) time.Time {
	return Day(dueDate.Add(-LeadTime))
}

// =============================================================================
// MESSAGES
// =============================================================================

// IMUMessage builds the localized reminder text for an IMU installment.
func IMUMessage(assetName string, firstPayment bool) string {
	installment := "secondo"
	if firstPayment {
		installment = "primo"
	}
	return fmt.Sprintf("Promemoria pagamento IMU %s acconto per %s", installment, assetName)
}

var vehicleLabels = map[Type]string{
	TypeBollo:         "bollo auto",
	TypeAssicurazione: "assicurazione",
	TypeRevisione:     "revisione",
}

// VehicleMessage builds the localized reminder text for a vehicle deadline.
func VehicleMessage(assetName string, t Type, dueDate time.Time) string {
	label, ok := vehicleLabels[t]
	if !ok {
		label = string(t)
	}
	return fmt.Sprintf("Promemoria %s per %s in scadenza il %s", label, assetName, dueDate.Format("02/01/2006"))
}
