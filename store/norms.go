// norms.go - Lesen und Schreiben gecachter Normen
// Enthaelt: Get, Put, Touch, Forget, Files

package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Get liefert die gecachten Werte fuer digest und baseName.
// ok ist nur true wenn alle angefragten metrics vorhanden sind.
func (s *Store) Get(ctx context.Context, digest, baseName string, metrics []string) (map[string]float64, bool, error) {
	if s == nil || s.conn == nil {
		return nil, false, ErrClosed
	}
	if len(metrics) == 0 {
		return nil, false, nil
	}

	metrics = slices.Compact(slices.Sorted(slices.Values(metrics)))

	args := make([]any, 0, len(metrics)+2)
	args = append(args, digest, baseName)
	for _, m := range metrics {
		args = append(args, m)
	}

	query := fmt.Sprintf(
		"SELECT metric, value FROM norms WHERE digest = ? AND base_name = ? AND metric IN (%s)",
		strings.TrimSuffix(strings.Repeat("?,", len(metrics)), ","),
	)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("query norms: %w", err)
	}
	defer rows.Close()

	values := make(map[string]float64, len(metrics))
	for rows.Next() {
		var metric string
		var value float64
		if err := rows.Scan(&metric, &value); err != nil {
			return nil, false, fmt.Errorf("scan norm: %w", err)
		}
		values[metric] = value
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate norms: %w", err)
	}

	if len(values) != len(metrics) {
		return nil, false, nil
	}
	return values, true, nil
}

// Put speichert values fuer digest und baseName; vorhandene Werte werden ersetzt
func (s *Store) Put(ctx context.Context, digest, baseName string, values map[string]float64) error {
	if s == nil || s.conn == nil {
		return ErrClosed
	}
	if len(values) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO norms (digest, base_name, metric, value) VALUES (?, ?, ?, ?)
		ON CONFLICT(digest, base_name, metric) DO UPDATE SET value = excluded.value, created_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, metric := range slices.Sorted(maps.Keys(values)) {
		if _, err := stmt.ExecContext(ctx, digest, baseName, metric, values[metric]); err != nil {
			return fmt.Errorf("insert norm %s: %w", metric, err)
		}
	}

	return tx.Commit()
}

// File ist ein bekannter Datei-Digest
type File struct {
	Digest   string
	Name     string
	Size     int64
	LastSeen time.Time
	Norms    int
}

// Touch merkt sich digest mit Name und Groesse
func (s *Store) Touch(ctx context.Context, digest, name string, size int64) error {
	if s == nil || s.conn == nil {
		return ErrClosed
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO files (digest, name, size) VALUES (?, ?, ?)
		ON CONFLICT(digest) DO UPDATE SET name = excluded.name, size = excluded.size, last_seen = CURRENT_TIMESTAMP
	`, digest, name, size)
	if err != nil {
		return fmt.Errorf("touch file: %w", err)
	}
	return nil
}

// Files listet alle bekannten Dateien, zuletzt gesehene zuerst
func (s *Store) Files(ctx context.Context) ([]File, error) {
	if s == nil || s.conn == nil {
		return nil, ErrClosed
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT f.digest, f.name, f.size, datetime(f.last_seen), COUNT(n.metric)
		FROM files f
		LEFT JOIN norms n ON n.digest = f.digest
		GROUP BY f.digest, f.name, f.size, f.last_seen
		ORDER BY f.last_seen DESC, f.name
	`)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		var lastSeen string
		if err := rows.Scan(&f.Digest, &f.Name, &f.Size, &lastSeen, &f.Norms); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}

		f.LastSeen, _ = time.Parse(time.DateTime, lastSeen)
		files = append(files, f)
	}

	return files, rows.Err()
}

// Forget loescht alle Eintraege zu digest
func (s *Store) Forget(ctx context.Context, digest string) error {
	if s == nil || s.conn == nil {
		return ErrClosed
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM norms WHERE digest = ?", digest); err != nil {
		return fmt.Errorf("delete norms: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE digest = ?", digest); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}

	return tx.Commit()
}
