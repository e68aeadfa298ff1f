package store

import (
	"database/sql"
	"time"
)

// Shot is one accepted shoot trigger with the cursor position it fired at.
type Shot struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	FiredAt   time.Time `json:"fired_at"`
}

// ShotRepository provides access to fired shots.
type ShotRepository struct {
	db *sql.DB
}

// Shots returns the shot repository for this store.
func (s *Store) Shots() *ShotRepository {
	return &ShotRepository{db: s.db}
}

// Record stores a shot and bumps the session's shot counter.
func (r *ShotRepository) Record(sessionID string, x, y float64, firedAt time.Time) (*Shot, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE sessions SET shots = shots + 1 WHERE id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	if err := expectRow(result); err != nil {
		return nil, err
	}

	shot := &Shot{SessionID: sessionID, X: x, Y: y, FiredAt: firedAt.UTC()}

	result, err = tx.Exec(
		`INSERT INTO shots (session_id, x, y, fired_at) VALUES (?, ?, ?, ?)`,
		shot.SessionID, shot.X, shot.Y, shot.FiredAt,
	)
	if err != nil {
		return nil, err
	}

	if shot.ID, err = result.LastInsertId(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return shot, nil
}

// ListBySession returns the shots of a session in firing order.
func (r *ShotRepository) ListBySession(sessionID string) ([]*Shot, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, x, y, fired_at FROM shots
		 WHERE session_id = ? ORDER BY fired_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shots := []*Shot{}
	for rows.Next() {
		s := &Shot{}
		if err := rows.Scan(&s.ID, &s.SessionID, &s.X, &s.Y, &s.FiredAt); err != nil {
			return nil, err
		}
		shots = append(shots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return shots, nil
}
