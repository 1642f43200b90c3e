// store.go - Sqlite Cache fuer berechnete Normen
// Enthaelt: Store, Open, Close, Schema-Initialisierung und Migrationen
//
// Normen haengen nur vom Inhalt der Datei ab. Der Schluessel ist daher
// (Datei-Digest, Base-Name, Metrik) und nicht der Pfad.

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite-Treiber registrieren
)

// currentSchemaVersion wird bei Schema-Aenderungen erhoeht
const currentSchemaVersion = 2

// ErrClosed wird nach Close zurueckgegeben
var ErrClosed = errors.New("store closed")

// Store umhuellt die SQLite-Verbindung.
// SQLite serialisiert Schreiber selbst, im WAL-Modus blockieren Leser nicht.
type Store struct {
	conn *sql.DB
	path string
}

// Open oeffnet (oder erstellt) die Datenbank unter path
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verbindung testen
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	slog.Debug("stats cache opened", "path", path)
	return s, nil
}

// Path gibt den Pfad der Datenbank zurueck
func (s *Store) Path() string {
	return s.path
}

// Close schliesst die Datenbankverbindung
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	_, _ = s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	return s.conn.Close()
}

func (s *Store) init() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		schema_version INTEGER NOT NULL DEFAULT %d
	);

	INSERT OR IGNORE INTO settings (id) VALUES (1);

	CREATE TABLE IF NOT EXISTS norms (
		digest TEXT NOT NULL,
		base_name TEXT NOT NULL,
		metric TEXT NOT NULL,
		value REAL NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (digest, base_name, metric)
	);

	CREATE TABLE IF NOT EXISTS files (
		digest TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		last_seen TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`, currentSchemaVersion)

	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return s.migrate()
}

func (s *Store) schemaVersion() (int, error) {
	var version int
	if err := s.conn.QueryRow("SELECT schema_version FROM settings WHERE id = 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return version, nil
}

// migrate fuehrt Schema-Migrationen durch
func (s *Store) migrate() error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
	}

	for version < currentSchemaVersion {
		switch version {
		case 1:
			// Version 1 kannte keine files Tabelle; sie wird oben angelegt
			if _, err := s.conn.Exec("UPDATE settings SET schema_version = 2"); err != nil {
				return fmt.Errorf("migrate v1 to v2: %w", err)
			}
			version = 2
		default:
			return fmt.Errorf("unknown schema version %d", version)
		}
	}

	return nil
}
