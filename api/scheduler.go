/*
scheduler.go - Background reminder scheduler

PURPOSE:
  Periodically creates payment reminders for automated assets and
  dispatches the ones that have come due.

JOBS (every tick, in order):
  1. checkIMUReminders:     In June and December only, creates the IMU
                            installment reminder (deadline minus 15 days)
                            for every property with imu_calc automation.
  2. checkVehicleReminders: Creates bollo/assicurazione/revisione
                            reminders from vehicle detail dates for every
                            vehicle with reminders automation.
  3. checkDueReminders:     Dispatches reminders whose notify date has
                            arrived and marks them notified. A reminder
                            is marked even when dispatch fails, so a row
                            never fires twice.

DEDUPLICATION:
  Creation goes through Store.CreateReminderIfAbsent, a single
  INSERT OR IGNORE against the (asset_id, reminder_type, notify_date)
  unique index. Re-running a tick is a no-op.

CONFIGURATION:
  - CheckInterval: How often to tick (default: 24 hours)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewReminderScheduler(store, calc, notifier, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - reminder/reminder.go: Deadline and notify-date policy
  - store/sqlite/sqlite.go: Unique index backing the dedup
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/casaviva/expense-engine/imu"
	"github.com/casaviva/expense-engine/notify"
	"github.com/casaviva/expense-engine/reminder"
	"github.com/casaviva/expense-engine/sentryx"
	"github.com/casaviva/expense-engine/store/sqlite"
)

// Detail keys holding vehicle deadline dates (YYYY-MM-DD).
var vehicleDeadlineKeys = map[string]reminder.Type{
	"bollo_scadenza":         reminder.TypeBollo,
	"assicurazione_scadenza": reminder.TypeAssicurazione,
	"revisione_scadenza":     reminder.TypeRevisione,
}

// ReminderScheduler runs the reminder jobs on a fixed interval.
type ReminderScheduler struct {
	Store         *sqlite.Store
	Calculator    *imu.Calculator
	Notifier      notify.Notifier
	Log           *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	// Now is the clock used by the jobs. Overridable in tests.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex

	// tickMu serializes ticks so a slow run is skipped, not stacked.
	tickMu sync.Mutex
}

// NewReminderScheduler creates a new scheduler.
func NewReminderScheduler(store *sqlite.Store, calc *imu.Calculator, notifier notify.Notifier, log *zap.Logger) *ReminderScheduler {
	if calc == nil {
		calc = imu.NewCalculator(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReminderScheduler{
		Store:         store,
		Calculator:    calc,
		Notifier:      notifier,
		Log:           log,
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *ReminderScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Log.Info("scheduler disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	rs.Log.Info("scheduler started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler.
func (rs *ReminderScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.Log.Info("scheduler stopped")
	}
}

func (rs *ReminderScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunNow()

	for {
		select {
		case <-rs.ticker.C:
			rs.RunNow()
		case <-rs.stop:
			return
		}
	}
}

// RunNow executes one full tick (for testing/admin). If a previous
// tick is still in flight the call is a no-op.
func (rs *ReminderScheduler) RunNow() {
	if !rs.tickMu.TryLock() {
		rs.Log.Warn("previous scheduler tick still running, skipping")
		return
	}
	defer rs.tickMu.Unlock()

	ctx := context.Background()
	now := rs.Now().UTC()

	rs.checkIMUReminders(ctx, now)
	rs.checkVehicleReminders(ctx, now)
	rs.checkDueReminders(ctx, now)
}

// =============================================================================
// REMINDER CREATION
// =============================================================================

// checkIMUReminders creates the installment reminders for automated
// properties. The month check here is the only gate: June covers the
// first installment, December the second.
func (rs *ReminderScheduler) checkIMUReminders(ctx context.Context, now time.Time) {
	var first bool
	switch now.Month() {
	case time.June:
		first = true
	case time.December:
		first = false
	default:
		return
	}

	assets, err := rs.Store.ListAssetsWithIMUAutomation(ctx)
	if err != nil {
		rs.Log.Error("listing automated properties failed", zap.Error(err))
		sentryx.CaptureError(err, map[string]string{"job": "imu_reminders"})
		return
	}

	due := reminder.IMUDueDate(now.Year(), first)
	notifyDate := reminder.NotifyDate(due)
	created := 0

	for _, asset := range assets {
		r := reminder.Reminder{
			ID:        uuid.NewString(),
			AssetID:   asset.ID,
			Type:      reminder.TypeIMU,
			Date:      notifyDate,
			Message:   reminder.IMUMessage(asset.Name, first),
			CreatedAt: now,
		}
		ok, err := rs.Store.CreateReminderIfAbsent(ctx, r)
		if err != nil {
			rs.Log.Error("creating imu reminder failed",
				zap.String("asset_id", asset.ID), zap.Error(err))
			sentryx.CaptureError(err, map[string]string{"job": "imu_reminders", "asset_id": asset.ID})
			continue
		}
		if ok {
			created++
		}
	}

	if created > 0 {
		rs.Log.Info("imu reminders created",
			zap.Int("count", created),
			zap.Time("notify_date", notifyDate))
	}
}

// checkVehicleReminders creates reminders from the deadline dates kept
// in vehicle details. Unparseable or past dates are skipped.
func (rs *ReminderScheduler) checkVehicleReminders(ctx context.Context, now time.Time) {
	vehicles, err := rs.Store.ListVehiclesWithReminderAutomation(ctx)
	if err != nil {
		rs.Log.Error("listing automated vehicles failed", zap.Error(err))
		sentryx.CaptureError(err, map[string]string{"job": "vehicle_reminders"})
		return
	}

	created := 0
	for _, v := range vehicles {
		for key, typ := range vehicleDeadlineKeys {
			raw, ok := v.Details[key].(string)
			if !ok || raw == "" {
				continue
			}
			due, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
			if err != nil {
				rs.Log.Warn("unparseable vehicle deadline",
					zap.String("asset_id", v.ID),
					zap.String("key", key),
					zap.String("value", raw))
				continue
			}
			if due.Before(reminder.Day(now)) {
				continue
			}

			r := reminder.Reminder{
				ID:        uuid.NewString(),
				AssetID:   v.ID,
				Type:      typ,
				Date:      reminder.NotifyDate(due),
				Message:   reminder.VehicleMessage(v.Name, typ, due),
				CreatedAt: now,
			}
			ok2, err := rs.Store.CreateReminderIfAbsent(ctx, r)
			if err != nil {
				rs.Log.Error("creating vehicle reminder failed",
					zap.String("asset_id", v.ID), zap.Error(err))
				sentryx.CaptureError(err, map[string]string{"job": "vehicle_reminders", "asset_id": v.ID})
				continue
			}
			if ok2 {
				created++
			}
		}
	}

	if created > 0 {
		rs.Log.Info("vehicle reminders created", zap.Int("count", created))
	}
}

// =============================================================================
// REMINDER DISPATCH
// =============================================================================

// checkDueReminders sends every unnotified reminder whose notify date
// is tomorrow or earlier, then marks it. Marking happens even when the
// dispatch fails: a reminder fires at most once.
func (rs *ReminderScheduler) checkDueReminders(ctx context.Context, now time.Time) {
	cutoff := reminder.Day(now).AddDate(0, 0, 1)
	due, err := rs.Store.ListDueReminders(ctx, cutoff)
	if err != nil {
		rs.Log.Error("listing due reminders failed", zap.Error(err))
		sentryx.CaptureError(err, map[string]string{"job": "due_reminders"})
		return
	}

	for _, r := range due {
		msg, err := rs.buildMessage(ctx, r)
		if err != nil {
			rs.Log.Error("building notification failed",
				zap.String("reminder_id", r.ID), zap.Error(err))
		} else if err := rs.Notifier.Send(ctx, msg); err != nil {
			rs.Log.Error("dispatch failed",
				zap.String("reminder_id", r.ID), zap.Error(err))
			sentryx.CaptureError(err, map[string]string{"job": "due_reminders", "reminder_id": r.ID})
		}

		if err := rs.Store.MarkNotified(ctx, r.ID); err != nil {
			rs.Log.Error("marking reminder notified failed",
				zap.String("reminder_id", r.ID), zap.Error(err))
			sentryx.CaptureError(err, map[string]string{"job": "due_reminders", "reminder_id": r.ID})
		}
	}

	if len(due) > 0 {
		rs.Log.Info("due reminders dispatched", zap.Int("count", len(due)))
	}
}

// buildMessage assembles the push payload for one reminder. The device
// token and, for IMU, the installment amount come from the asset row.
func (rs *ReminderScheduler) buildMessage(ctx context.Context, r reminder.Reminder) (notify.Message, error) {
	asset, err := rs.Store.GetAsset(ctx, r.AssetID)
	if err != nil {
		return notify.Message{}, err
	}

	var name string
	var token string
	var details map[string]any
	if asset != nil {
		name = asset.Name
		details = asset.Details
		if t, ok := asset.Details["push_token"].(string); ok {
			token = t
		}
	}

	dueDate := r.Date.AddDate(0, 0, 15).Format("02/01/2006")

	if r.Type == reminder.TypeIMU {
		first := r.Date.Month() <= time.June
		deadline := imu.ScadenzaSecondo
		if first {
			deadline = imu.ScadenzaPrimo
		}
		amount := decimal.Zero
		if details != nil {
			if result, err := rs.Calculator.ComputeForProperty(details); err == nil {
				if inst, ok := result.Installment(installmentName(first)); ok {
					amount = inst
				}
			}
		}
		return notify.IMUReminder(token, name, deadline, amount), nil
	}

	return notify.VehicleReminder(token, name, string(r.Type), dueDate), nil
}

func installmentName(first bool) string {
	if first {
		return "primo"
	}
	return "secondo"
}
