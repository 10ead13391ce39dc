package store

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/reservd/internal/model"
	"github.com/md-rashed-zaman/reservd/libs/db"
)

// PGStore keeps the snapshots in Postgres. The contract stays get-all /
// put-all: a save replaces the whole document inside one transaction, which
// is what makes a put atomic for the crash case (the engine still serializes
// all writers).
type PGStore struct {
	pool *db.Pool
}

func OpenPGStore(ctx context.Context, pool *db.Pool) (*PGStore, error) {
	s := &PGStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS slots (
			date TEXT NOT NULL,
			slot_time TEXT NOT NULL,
			name TEXT NOT NULL,
			service TEXT NOT NULL,
			status TEXT NOT NULL,
			hold_key TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (date, slot_time)
		);
		CREATE TABLE IF NOT EXISTS holds (
			slot_key TEXT PRIMARY KEY,
			hold_id TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS confirmed_markers (
			slot_key TEXT PRIMARY KEY
		);
	`)
	if err != nil {
		return unavailable("ensure schema", err)
	}
	return nil
}

func (s *PGStore) LoadSlots(ctx context.Context) ([]model.Slot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date, slot_time, name, service, status, hold_key, created_at
		FROM slots
		ORDER BY date, slot_time
	`)
	if err != nil {
		return nil, unavailable("select slots", err)
	}
	defer rows.Close()

	slots := []model.Slot{}
	for rows.Next() {
		var sl model.Slot
		var createdAt time.Time
		if err := rows.Scan(&sl.Date, &sl.Time, &sl.Name, &sl.Service, &sl.Status, &sl.HoldKey, &createdAt); err != nil {
			return nil, unavailable("scan slot", err)
		}
		sl.CreatedAt = createdAt.UTC()
		slots = append(slots, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("select slots", err)
	}
	return slots, nil
}

func (s *PGStore) SaveSlots(ctx context.Context, slots []model.Slot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM slots`); err != nil {
		return unavailable("replace slots", err)
	}
	for _, sl := range slots {
		if _, err := tx.Exec(ctx, `
			INSERT INTO slots (date, slot_time, name, service, status, hold_key, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, sl.Date, sl.Time, sl.Name, sl.Service, sl.Status, sl.HoldKey, sl.CreatedAt); err != nil {
			return unavailable("insert slot", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit slots", err)
	}
	return nil
}

func (s *PGStore) LoadHolds(ctx context.Context) (model.HoldDocument, error) {
	doc := model.NewHoldDocument()

	rows, err := s.pool.Query(ctx, `SELECT slot_key, hold_id, created_at FROM holds`)
	if err != nil {
		return model.HoldDocument{}, unavailable("select holds", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var h model.Hold
		if err := rows.Scan(&key, &h.ID, &h.CreatedAt); err != nil {
			return model.HoldDocument{}, unavailable("scan hold", err)
		}
		doc.Holds[key] = h
	}
	if err := rows.Err(); err != nil {
		return model.HoldDocument{}, unavailable("select holds", err)
	}

	markerRows, err := s.pool.Query(ctx, `SELECT slot_key FROM confirmed_markers`)
	if err != nil {
		return model.HoldDocument{}, unavailable("select markers", err)
	}
	defer markerRows.Close()
	for markerRows.Next() {
		var key string
		if err := markerRows.Scan(&key); err != nil {
			return model.HoldDocument{}, unavailable("scan marker", err)
		}
		doc.Confirmed[key] = true
	}
	if err := markerRows.Err(); err != nil {
		return model.HoldDocument{}, unavailable("select markers", err)
	}
	return doc, nil
}

func (s *PGStore) SaveHolds(ctx context.Context, doc model.HoldDocument) error {
	doc.Normalize()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM holds`); err != nil {
		return unavailable("replace holds", err)
	}
	for key, h := range doc.Holds {
		if _, err := tx.Exec(ctx, `
			INSERT INTO holds (slot_key, hold_id, created_at) VALUES ($1, $2, $3)
		`, key, h.ID, h.CreatedAt); err != nil {
			return unavailable("insert hold", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM confirmed_markers`); err != nil {
		return unavailable("replace markers", err)
	}
	for key := range doc.Confirmed {
		if _, err := tx.Exec(ctx, `
			INSERT INTO confirmed_markers (slot_key) VALUES ($1)
		`, key); err != nil {
			return unavailable("insert marker", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit holds", err)
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
