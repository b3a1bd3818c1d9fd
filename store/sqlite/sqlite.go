/*
Package sqlite provides the SQLite-backed persistence layer.

PURPOSE:
  Implements storage for assets, per-asset automation flags, reminders
  and generated documents. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  assets:      Properties and vehicles with a free-form details record
  automations: Per-asset automation switches (imu_calc, f24_gen, reminders)
  reminders:   Scheduled notifications, deduplicated by key
  documents:   Generated artifacts (F24 PDFs) linked to an asset

DEDUPLICATION:
  idx_unique_reminder_key enforces at most one reminder per
  (asset_id, type, date). CreateReminderIfAbsent is an INSERT OR IGNORE
  against that index, so the existence check and the insert are a single
  atomic statement even under overlapping scheduler runs.

WAL MODE:
  SQLite is opened with WAL and foreign keys on, matching how the rest
  of the system expects concurrent readers during a scheduler sweep.

USAGE:
  store, err := sqlite.New("./data/casa.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/casaviva/expense-engine/reminder"
)

// Store implements all persistence for the backend.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Assets (properties and vehicles)
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		asset_type TEXT NOT NULL,
		name TEXT NOT NULL,
		details_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assets_type ON assets(asset_type);

	-- Automation switches, one row per asset
	CREATE TABLE IF NOT EXISTS automations (
		asset_id TEXT PRIMARY KEY REFERENCES assets(id) ON DELETE CASCADE,
		imu_calc INTEGER NOT NULL DEFAULT 0,
		f24_gen INTEGER NOT NULL DEFAULT 0,
		reminders INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	-- Reminders
	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
		reminder_type TEXT NOT NULL,
		notify_date TEXT NOT NULL,
		message TEXT NOT NULL,
		notified INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: at most one reminder per (asset, type, date).
	-- The scheduler's existence-check-and-insert rides on this index,
	-- so overlapping job runs cannot create duplicates.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_reminder_key
		ON reminders(asset_id, reminder_type, notify_date);

	CREATE INDEX IF NOT EXISTS idx_reminders_due
		ON reminders(notified, notify_date);

	-- Generated documents
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
		file_url TEXT NOT NULL,
		file_type TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_asset ON documents(asset_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD TYPES
// =============================================================================

// Asset types this backend knows about.
const (
	AssetTypeProperty = "property"
	AssetTypeVehicle  = "vehicle"
)

// Asset is a property or vehicle record. Details is the free-form
// attribute record (rendita, categoria_catastale, bollo_scadenza, ...).
type Asset struct {
	ID        string
	Type      string
	Name      string
	Details   map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Automation holds the per-asset automation switches.
type Automation struct {
	AssetID   string
	IMUCalc   bool
	F24Gen    bool
	Reminders bool
	UpdatedAt time.Time
}

// Document records a generated artifact.
type Document struct {
	ID        string
	AssetID   string
	FileURL   string
	FileType  string
	CreatedAt time.Time
}

// =============================================================================
// ASSETS
// =============================================================================

// SaveAsset inserts or replaces an asset.
func (s *Store) SaveAsset(ctx context.Context, a Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	details, err := json.Marshal(a.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal asset details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO assets (id, asset_type, name, details_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.Name, string(details),
		a.CreatedAt.Format(time.RFC3339), a.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save asset: %w", err)
	}
	return nil
}

// GetAsset returns an asset by ID, or nil if not found.
func (s *Store) GetAsset(ctx context.Context, id string) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, asset_type, name, details_json, created_at, updated_at
		FROM assets WHERE id = ?`, id)

	a, err := scanAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &a, nil
}

// ListAssets returns all assets ordered by creation time.
func (s *Store) ListAssets(ctx context.Context) ([]Asset, error) {
	return s.queryAssets(ctx, `
		SELECT id, asset_type, name, details_json, created_at, updated_at
		FROM assets ORDER BY created_at`)
}

// DeleteAsset removes an asset and, via cascade, its automations,
// reminders and documents.
func (s *Store) DeleteAsset(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListAssetsWithIMUAutomation returns property assets whose imu_calc
// automation is enabled. This is the IMU job's selection query.
func (s *Store) ListAssetsWithIMUAutomation(ctx context.Context) ([]Asset, error) {
	return s.queryAssets(ctx, `
		SELECT a.id, a.asset_type, a.name, a.details_json, a.created_at, a.updated_at
		FROM assets a
		JOIN automations au ON au.asset_id = a.id
		WHERE a.asset_type = ? AND au.imu_calc = 1
		ORDER BY a.created_at`, AssetTypeProperty)
}

// ListVehiclesWithReminderAutomation returns vehicle assets whose
// reminders automation is enabled.
func (s *Store) ListVehiclesWithReminderAutomation(ctx context.Context) ([]Asset, error) {
	return s.queryAssets(ctx, `
		SELECT a.id, a.asset_type, a.name, a.details_json, a.created_at, a.updated_at
		FROM assets a
		JOIN automations au ON au.asset_id = a.id
		WHERE a.asset_type = ? AND au.reminders = 1
		ORDER BY a.created_at`, AssetTypeVehicle)
}

func (s *Store) queryAssets(ctx context.Context, query string, args ...any) ([]Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (Asset, error) {
	var a Asset
	var details, createdAt, updatedAt string

	if err := row.Scan(&a.ID, &a.Type, &a.Name, &details, &createdAt, &updatedAt); err != nil {
		return Asset{}, err
	}

	if details != "" && details != "null" {
		if err := json.Unmarshal([]byte(details), &a.Details); err != nil {
			return Asset{}, err
		}
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return a, nil
}

// =============================================================================
// AUTOMATIONS
// =============================================================================

// SaveAutomation inserts or replaces the automation switches for an asset.
func (s *Store) SaveAutomation(ctx context.Context, a Automation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO automations (asset_id, imu_calc, f24_gen, reminders, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.AssetID, boolToInt(a.IMUCalc), boolToInt(a.F24Gen), boolToInt(a.Reminders),
		a.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save automation: %w", err)
	}
	return nil
}

// GetAutomation returns an asset's switches, or all-off defaults when no
// row exists yet.
func (s *Store) GetAutomation(ctx context.Context, assetID string) (Automation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT asset_id, imu_calc, f24_gen, reminders, updated_at
		FROM automations WHERE asset_id = ?`, assetID)

	var a Automation
	var imuCalc, f24Gen, reminders int
	var updatedAt string
	err := row.Scan(&a.AssetID, &imuCalc, &f24Gen, &reminders, &updatedAt)
	if err == sql.ErrNoRows {
		return Automation{AssetID: assetID}, nil
	}
	if err != nil {
		return Automation{}, fmt.Errorf("failed to get automation: %w", err)
	}

	a.IMUCalc = imuCalc == 1
	a.F24Gen = f24Gen == 1
	a.Reminders = reminders == 1
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// =============================================================================
// REMINDERS
// =============================================================================

// CreateReminderIfAbsent inserts a reminder unless one already exists for
// the same (asset_id, type, date) key. Returns true when a row was
// inserted. The check and insert are one atomic statement, riding on
// idx_unique_reminder_key.
func (s *Store) CreateReminderIfAbsent(ctx context.Context, r reminder.Reminder) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO reminders (id, asset_id, reminder_type, notify_date, message, notified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AssetID, string(r.Type), r.Date.Format(time.RFC3339),
		r.Message, boolToInt(r.Notified), r.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("failed to create reminder: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to create reminder: %w", err)
	}
	return n > 0, nil
}

// ListReminders returns all reminders ordered by notify date.
func (s *Store) ListReminders(ctx context.Context) ([]reminder.Reminder, error) {
	return s.queryReminders(ctx, `
		SELECT id, asset_id, reminder_type, notify_date, message, notified, created_at
		FROM reminders ORDER BY notify_date`)
}

// ListRemindersByAsset returns one asset's reminders.
func (s *Store) ListRemindersByAsset(ctx context.Context, assetID string) ([]reminder.Reminder, error) {
	return s.queryReminders(ctx, `
		SELECT id, asset_id, reminder_type, notify_date, message, notified, created_at
		FROM reminders WHERE asset_id = ? ORDER BY notify_date`, assetID)
}

// ListDueReminders returns un-notified reminders with a notify date at or
// before the cutoff. This is the daily sweep's selection query.
func (s *Store) ListDueReminders(ctx context.Context, cutoff time.Time) ([]reminder.Reminder, error) {
	return s.queryReminders(ctx, `
		SELECT id, asset_id, reminder_type, notify_date, message, notified, created_at
		FROM reminders
		WHERE notified = 0 AND notify_date <= ?
		ORDER BY notify_date`, cutoff.Format(time.RFC3339))
}

// MarkNotified flips a reminder's notified flag. The flip is one-way:
// a dispatch attempt marks the reminder regardless of delivery outcome.
func (s *Store) MarkNotified(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE reminders SET notified = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder notified: %w", err)
	}
	return nil
}

// DeleteReminder removes a reminder by ID.
func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) queryReminders(ctx context.Context, query string, args ...any) ([]reminder.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []reminder.Reminder
	for rows.Next() {
		var r reminder.Reminder
		var rType, notifyDate, createdAt string
		var notified int

		if err := rows.Scan(&r.ID, &r.AssetID, &rType, &notifyDate, &r.Message, &notified, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}

		r.Type = reminder.Type(rType)
		r.Notified = notified == 1
		r.Date, _ = time.Parse(time.RFC3339, notifyDate)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// SaveDocument records a generated artifact.
func (s *Store) SaveDocument(ctx context.Context, d Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, asset_id, file_url, file_type, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.AssetID, d.FileURL, d.FileType, d.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// ListDocumentsByAsset returns an asset's generated documents,
// newest first.
func (s *Store) ListDocumentsByAsset(ctx context.Context, assetID string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_id, file_url, file_type, created_at
		FROM documents WHERE asset_id = ? ORDER BY created_at DESC`, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var createdAt string
		if err := rows.Scan(&d.ID, &d.AssetID, &d.FileURL, &d.FileType, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset wipes all data. For tests and development only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"documents", "reminders", "automations", "assets"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}
