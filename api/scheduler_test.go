/*
scheduler_test.go - Tests for the background reminder jobs

Tests for:
- IMU reminder creation (month gate, dedup across ticks)
- Vehicle reminder creation from detail dates
- Due-reminder dispatch and at-most-once marking
*/
package api_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casaviva/expense-engine/api"
	"github.com/casaviva/expense-engine/notify"
	"github.com/casaviva/expense-engine/reminder"
	"github.com/casaviva/expense-engine/store/sqlite"
)

func newTestScheduler(t *testing.T, now time.Time) (*api.ReminderScheduler, *sqlite.Store, *notify.Recorder) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rec := &notify.Recorder{}
	rs := api.NewReminderScheduler(store, nil, rec, zap.NewNop())
	rs.Now = func() time.Time { return now }
	return rs, store, rec
}

func seedAutomatedProperty(t *testing.T, store *sqlite.Store, id string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.SaveAsset(ctx, sqlite.Asset{
		ID:   id,
		Type: sqlite.AssetTypeProperty,
		Name: "Casa Roma",
		Details: map[string]any{
			"rendita":             "1000.00",
			"categoria_catastale": "A/2",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}))
	require.NoError(t, store.SaveAutomation(ctx, sqlite.Automation{
		AssetID:   id,
		IMUCalc:   true,
		Reminders: true,
		UpdatedAt: now,
	}))
}

func TestScheduler_IMUReminder_June(t *testing.T) {
	// GIVEN: an automated property and a clock set to June 1
	june1 := time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)
	rs, store, rec := newTestScheduler(t, june1)
	seedAutomatedProperty(t, store, "prop-1")

	// WHEN: the tick runs
	rs.RunNow()

	// THEN: one reminder exists, dated June 1 (deadline minus 15 days),
	// and since that is today it was dispatched and marked in the same tick
	reminders, err := store.ListRemindersByAsset(context.Background(), "prop-1")
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	r := reminders[0]
	assert.Equal(t, reminder.TypeIMU, r.Type)
	assert.Equal(t, time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC), r.Date)
	assert.Contains(t, r.Message, "primo acconto")
	assert.True(t, r.Notified)

	require.Len(t, rec.Sent, 1)
	assert.Equal(t, "Promemoria IMU", rec.Sent[0].Title)
	assert.Equal(t, "722.40", rec.Sent[0].Data["amount"])
}

func TestScheduler_IMUReminder_DedupAcrossTicks(t *testing.T) {
	june1 := time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)
	rs, store, rec := newTestScheduler(t, june1)
	seedAutomatedProperty(t, store, "prop-1")

	rs.RunNow()
	rs.RunNow()
	rs.RunNow()

	reminders, err := store.ListRemindersByAsset(context.Background(), "prop-1")
	require.NoError(t, err)
	assert.Len(t, reminders, 1)
	assert.Len(t, rec.Sent, 1)
}

func TestScheduler_IMUReminder_December(t *testing.T) {
	dec3 := time.Date(2026, time.December, 3, 9, 0, 0, 0, time.UTC)
	rs, store, _ := newTestScheduler(t, dec3)
	seedAutomatedProperty(t, store, "prop-1")

	rs.RunNow()

	reminders, err := store.ListRemindersByAsset(context.Background(), "prop-1")
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC), reminders[0].Date)
	assert.Contains(t, reminders[0].Message, "secondo acconto")
}

func TestScheduler_IMUReminder_MonthGate(t *testing.T) {
	march := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	rs, store, rec := newTestScheduler(t, march)
	seedAutomatedProperty(t, store, "prop-1")

	rs.RunNow()

	reminders, err := store.ListReminders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reminders)
	assert.Empty(t, rec.Sent)
}

func TestScheduler_IMUReminder_SkipsUnautomated(t *testing.T) {
	june1 := time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)
	rs, store, _ := newTestScheduler(t, june1)

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.SaveAsset(ctx, sqlite.Asset{
		ID: "prop-plain", Type: sqlite.AssetTypeProperty, Name: "Casa",
		CreatedAt: now, UpdatedAt: now,
	}))

	rs.RunNow()

	reminders, err := store.ListReminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, reminders)
}

func TestScheduler_VehicleReminders(t *testing.T) {
	// GIVEN: an automated vehicle with a bollo deadline four months out
	march := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	rs, store, rec := newTestScheduler(t, march)

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.SaveAsset(ctx, sqlite.Asset{
		ID:   "car-1",
		Type: sqlite.AssetTypeVehicle,
		Name: "Fiat Panda",
		Details: map[string]any{
			"bollo_scadenza":  "2026-07-31",
			"targa":           "AB123CD",
			"data_non_valida": 42, // non-string values are ignored
		},
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.SaveAutomation(ctx, sqlite.Automation{
		AssetID: "car-1", Reminders: true, UpdatedAt: now,
	}))

	// WHEN: two ticks run
	rs.RunNow()
	rs.RunNow()

	// THEN: exactly one bollo reminder, 15 days before the deadline,
	// not yet dispatched
	reminders, err := store.ListRemindersByAsset(ctx, "car-1")
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	r := reminders[0]
	assert.Equal(t, reminder.TypeBollo, r.Type)
	assert.Equal(t, time.Date(2026, time.July, 16, 0, 0, 0, 0, time.UTC), r.Date)
	assert.False(t, r.Notified)
	assert.Empty(t, rec.Sent)
}

func TestScheduler_VehicleReminders_SkipsPastDeadline(t *testing.T) {
	march := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	rs, store, _ := newTestScheduler(t, march)

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.SaveAsset(ctx, sqlite.Asset{
		ID:   "car-1",
		Type: sqlite.AssetTypeVehicle,
		Name: "Fiat Panda",
		Details: map[string]any{
			"revisione_scadenza": "2025-12-01",
		},
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.SaveAutomation(ctx, sqlite.Automation{
		AssetID: "car-1", Reminders: true, UpdatedAt: now,
	}))

	rs.RunNow()

	reminders, err := store.ListRemindersByAsset(ctx, "car-1")
	require.NoError(t, err)
	assert.Empty(t, reminders)
}

func TestScheduler_DispatchMarksEvenOnFailure(t *testing.T) {
	// GIVEN: a due reminder and a notifier that always fails
	march := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	rs, store, rec := newTestScheduler(t, march)
	rec.Err = errors.New("push gateway down")

	ctx := context.Background()
	seedAutomatedProperty(t, store, "prop-1")
	created, err := store.CreateReminderIfAbsent(ctx, reminder.Reminder{
		ID:      "rem-1",
		AssetID: "prop-1",
		Type:    reminder.TypeBollo,
		Date:    time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC),
		Message: "Promemoria bollo auto per Fiat Panda in scadenza il 24/03/2026",
	})
	require.NoError(t, err)
	require.True(t, created)

	// WHEN: two ticks run
	rs.RunNow()
	rs.RunNow()

	// THEN: the dispatch was attempted once and the row never fires again
	assert.Len(t, rec.Sent, 1)
	reminders, err := store.ListRemindersByAsset(ctx, "prop-1")
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.True(t, reminders[0].Notified)
}

func TestScheduler_DisabledDoesNotStart(t *testing.T) {
	march := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	rs, _, _ := newTestScheduler(t, march)
	rs.Enabled = false

	// Start must return without spawning the ticker; Stop on a
	// never-started scheduler is a no-op.
	rs.Start()
	rs.Stop()
}
