package store

import (
	"database/sql"
	"time"
)

// Prediction is a decided gesture recorded during a session.
type Prediction struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Seq        uint64    `json:"seq"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	KeyCode    string    `json:"key_code"`
	FPS        float64   `json:"fps"`
	CreatedAt  time.Time `json:"created_at"`
}

// PredictionRepository provides access to recorded predictions.
type PredictionRepository struct {
	db *sql.DB
}

// Predictions returns the prediction repository for this store.
func (s *Store) Predictions() *PredictionRepository {
	return &PredictionRepository{db: s.db}
}

// Create inserts p and fills in its ID.
func (r *PredictionRepository) Create(p *Prediction) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.CreatedAt = p.CreatedAt.UTC()

	result, err := r.db.Exec(
		`INSERT INTO predictions (session_id, seq, label, confidence, key_code, fps, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.SessionID, int64(p.Seq), p.Label, p.Confidence, p.KeyCode, p.FPS, p.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id

	return nil
}

// ListBySession retrieves a session's predictions in sequence order.
func (r *PredictionRepository) ListBySession(sessionID string) ([]*Prediction, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, seq, label, confidence, key_code, fps, created_at
		 FROM predictions WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var predictions []*Prediction
	for rows.Next() {
		p := &Prediction{}
		var seq int64
		if err := rows.Scan(&p.ID, &p.SessionID, &seq, &p.Label, &p.Confidence, &p.KeyCode, &p.FPS, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Seq = uint64(seq)
		predictions = append(predictions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return predictions, nil
}

// CountBySession returns the number of predictions in a session.
func (r *PredictionRepository) CountBySession(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM predictions WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
