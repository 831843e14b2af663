package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
)

// Run is the audit record of one deliberation. It carries counts and agent
// ids only; transcript content is never persisted.
type Run struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Analysts      json.RawMessage `json:"analysts"`
	Synthesizer   string          `json:"synthesizer,omitempty"`
	Attachments   int             `json:"attachments"`
	CritiqueCount int             `json:"critique_count"`
	DegradedCount int             `json:"degraded_count"`
	Synthesized   bool            `json:"synthesized"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

const runColumns = `id, status, analysts, synthesizer, attachments, critique_count, degraded_count, synthesized, started_at, completed_at`

func scanRun(sc scanner) (*Run, error) {
	r := &Run{}
	var analysts string
	var synthesizer sql.NullString
	err := sc.Scan(&r.ID, &r.Status, &analysts, &synthesizer, &r.Attachments, &r.CritiqueCount, &r.DegradedCount, &r.Synthesized, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	r.Analysts = json.RawMessage(analysts)
	r.Synthesizer = synthesizer.String
	return r, nil
}

func (s *Store) SaveRun(r *Run) error {
	if r.Status == "" {
		r.Status = RunStatusRunning
	}
	if len(r.Analysts) == 0 {
		r.Analysts = json.RawMessage("[]")
	}
	_, err := s.db.Exec(`
		INSERT INTO deliberation_runs (id, status, analysts, synthesizer, attachments, critique_count, degraded_count, synthesized)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			critique_count = excluded.critique_count,
			degraded_count = excluded.degraded_count,
			synthesized = excluded.synthesized,
			completed_at = CASE WHEN excluded.status = 'completed' THEN CURRENT_TIMESTAMP ELSE completed_at END`,
		r.ID, r.Status, string(r.Analysts), r.Synthesizer, r.Attachments, r.CritiqueCount, r.DegradedCount, r.Synthesized)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *Store) CompleteRun(id string, critiques, degraded int, synthesized bool) error {
	_, err := s.db.Exec(`
		UPDATE deliberation_runs
		SET status = ?, critique_count = ?, degraded_count = ?, synthesized = ?,
		    completed_at = CURRENT_TIMESTAMP
		WHERE id = ?`, RunStatusCompleted, critiques, degraded, synthesized, id)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM deliberation_runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM deliberation_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// FailRunning marks runs left in the running state by a previous process as
// abandoned. Deliberations do not survive restarts.
func (s *Store) FailRunning() (int64, error) {
	res, err := s.db.Exec(`
		UPDATE deliberation_runs SET status = 'abandoned', completed_at = CURRENT_TIMESTAMP
		WHERE status = ?`, RunStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("fail running runs: %w", err)
	}
	return res.RowsAffected()
}
