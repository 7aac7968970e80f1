package store

import (
	"database/sql"

	"github.com/jeena-krishna/system-monitor/internal/errors"
	"github.com/jeena-krishna/system-monitor/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS snapshots (
	       timestamp        INTEGER PRIMARY KEY,
	       cpu_total_pct    REAL NOT NULL,
	       mem_used_pct     REAL NOT NULL,
	       mem_used_bytes   INTEGER NOT NULL,
	       mem_total_bytes  INTEGER NOT NULL,
	       cpu_json         TEXT NOT NULL,
	       mem_json         TEXT NOT NULL,
	       disks_json       TEXT NOT NULL,
	       battery_json     TEXT,
	       network_json     TEXT NOT NULL,
	       processes_json   TEXT NOT NULL,
	       unavailable_json TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS alerts (
	       id              TEXT PRIMARY KEY,
	       kind            TEXT NOT NULL,
	       entity          TEXT NOT NULL,
	       severity        TEXT NOT NULL,
	       value           REAL NOT NULL,
	       threshold       REAL NOT NULL,
	       message         TEXT NOT NULL,
	       triggered_at    INTEGER NOT NULL,
	       acknowledged    INTEGER NOT NULL DEFAULT 0,
	       acknowledged_at INTEGER,
	       resolved_at     INTEGER
	   );
	   CREATE INDEX IF NOT EXISTS idx_alerts_open
	       ON alerts (kind, entity, severity) WHERE resolved_at IS NULL;
	   CREATE INDEX IF NOT EXISTS idx_alerts_triggered
	       ON alerts (triggered_at);`

	insertSnapshotSQL = `
    INSERT INTO snapshots (
        timestamp,
        cpu_total_pct, mem_used_pct, mem_used_bytes, mem_total_bytes,
        cpu_json, mem_json, disks_json, battery_json,
        network_json, processes_json, unavailable_json
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectSnapshotColumns = `
    timestamp, cpu_json, mem_json, disks_json, battery_json,
    network_json, processes_json, unavailable_json`
)

// InitSchema creates the schema and records its version.
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.Exec(`
        INSERT OR IGNORE INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Debug().
		Int("version", SchemaVersion).
		Msg("Schema initialized")

	return nil
}

// GetSchemaVersion returns the current schema version, 0 when the
// database is fresh.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	var version int
	err := db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		// A fresh database has no schema_versions table yet.
		var exists bool
		checkErr := db.QueryRow(`
            SELECT EXISTS (
                SELECT 1 FROM sqlite_master
                WHERE type='table' AND name='schema_versions'
            )
        `).Scan(&exists)
		if checkErr == nil && !exists {
			return 0, nil
		}
		return 0, errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	return version, nil
}
