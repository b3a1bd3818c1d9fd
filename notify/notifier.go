/*
Package notify is the push-notification boundary.

PURPOSE:
  The scheduler hands fully-built messages to a Notifier and records the
  outcome; delivery transport (FCM, APNs, whatever sits behind the
  interface) is an external collaborator and out of scope here. The
  payload shape (token, title, body, data) is a wire contract shared with
  the mobile client.

DELIVERY SEMANTICS:
  Best effort, at most once. A failed dispatch is reported back as a
  count and logged by the caller; it is never retried here and never
  rolls back the reminder's notified flag.
*/
package notify

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Message is one push notification.
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Result reports a dispatch outcome per batch.
type Result struct {
	Success int
	Failure int
}

// Notifier delivers messages to devices.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	SendBulk(ctx context.Context, msgs []Message) Result
}

// =============================================================================
// PAYLOAD BUILDERS
// =============================================================================

// IMUReminder builds the push payload for an IMU installment reminder.
func IMUReminder(token, assetName, dueDate string, amount decimal.Decimal) Message {
	return Message{
		Token: token,
		Title: "Promemoria IMU",
		Body:  fmt.Sprintf("Pagamento IMU per %s in scadenza il %s. Importo: EUR %s", assetName, dueDate, amount.StringFixed(2)),
		Data: map[string]string{
			"type":       "imu_reminder",
			"asset_name": assetName,
			"due_date":   dueDate,
			"amount":     amount.StringFixed(2),
		},
	}
}

// VehicleReminder builds the push payload for a vehicle deadline reminder.
func VehicleReminder(token, vehicleName, reminderType, dueDate string) Message {
	titles := map[string]string{
		"bollo":         "Promemoria Bollo Auto",
		"assicurazione": "Promemoria Assicurazione",
		"revisione":     "Promemoria Revisione",
	}
	title, ok := titles[reminderType]
	if !ok {
		title = "Promemoria Veicolo"
	}
	return Message{
		Token: token,
		Title: title,
		Body:  fmt.Sprintf("%s per %s in scadenza il %s", reminderType, vehicleName, dueDate),
		Data: map[string]string{
			"type":         reminderType + "_reminder",
			"vehicle_name": vehicleName,
			"due_date":     dueDate,
		},
	}
}

// =============================================================================
// IMPLEMENTATIONS
// =============================================================================

// LogNotifier writes notifications to the log instead of delivering them.
// Used when no push credentials are configured.
type LogNotifier struct {
	Log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{Log: log}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.Log.Info("notification (log only)",
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
		zap.Any("data", msg.Data))
	return nil
}

func (n *LogNotifier) SendBulk(ctx context.Context, msgs []Message) Result {
	for _, m := range msgs {
		_ = n.Send(ctx, m)
	}
	return Result{Success: len(msgs)}
}

// Recorder captures messages for tests.
type Recorder struct {
	Sent []Message
	Err  error // returned from Send when non-nil
}

func (r *Recorder) Send(ctx context.Context, msg Message) error {
	r.Sent = append(r.Sent, msg)
	return r.Err
}

func (r *Recorder) SendBulk(ctx context.Context, msgs []Message) Result {
	res := Result{}
	for _, m := range msgs {
		if err := r.Send(ctx, m); err != nil {
			res.Failure++
			continue
		}
		res.Success++
	}
	return res
}
