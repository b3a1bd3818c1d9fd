package reminder_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/casaviva/expense-engine/reminder"
)

func TestIMUDueDate(t *testing.T) {
	first := reminder.IMUDueDate(2025, true)
	assert.Equal(t, time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC), first)

	second := reminder.IMUDueDate(2025, false)
	assert.Equal(t, time.Date(2025, time.December, 16, 0, 0, 0, 0, time.UTC), second)
}

func TestNotifyDate_FifteenDaysBefore(t *testing.T) {
	due := time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), reminder.NotifyDate(due))

	// Crossing a month boundary
	due = time.Date(2025, time.December, 16, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), reminder.NotifyDate(due))
}

func TestNotifyDate_NormalizesToMidnightUTC(t *testing.T) {
	due := time.Date(2025, time.June, 16, 14, 30, 0, 0, time.FixedZone("CET", 3600))
	got := reminder.NotifyDate(due)
	assert.Equal(t, 0, got.Hour())
	assert.Equal(t, time.UTC, got.Location())
}

func TestTypeValid(t *testing.T) {
	assert.True(t, reminder.TypeIMU.Valid())
	assert.True(t, reminder.TypeBollo.Valid())
	assert.False(t, reminder.Type("bolletta").Valid())
}

func TestIMUMessage(t *testing.T) {
	assert.Equal(t,
		"Promemoria pagamento IMU primo acconto per Casa al mare",
		reminder.IMUMessage("Casa al mare", true))
	assert.Equal(t,
		"Promemoria pagamento IMU secondo acconto per Casa al mare",
		reminder.IMUMessage("Casa al mare", false))
}

func TestVehicleMessage(t *testing.T) {
	due := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t,
		"Promemoria bollo auto per Panda in scadenza il 10/03/2025",
		reminder.VehicleMessage("Panda", reminder.TypeBollo, due))
}
