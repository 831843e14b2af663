package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Agent is the persisted view of a council member. Instructions stay in the
// config file and are never written to the database.
type Agent struct {
	ID          string    `json:"id"`
	Position    int       `json:"position"`
	Name        string    `json:"name"`
	Role        string    `json:"role,omitempty"`
	Description string    `json:"description,omitempty"`
	Model       string    `json:"model,omitempty"`
	Synthesizer bool      `json:"synthesizer"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const agentColumns = `id, position, name, role, description, model, synthesizer, created_at, updated_at`

func scanAgent(sc scanner) (*Agent, error) {
	a := &Agent{}
	var role, description, model sql.NullString
	if err := sc.Scan(&a.ID, &a.Position, &a.Name, &role, &description, &model, &a.Synthesizer, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Role = role.String
	a.Description = description.String
	a.Model = model.String
	return a, nil
}

func (s *Store) SaveAgent(a *Agent) error {
	_, err := s.db.Exec(`
		INSERT INTO agents (id, position, name, role, description, model, synthesizer, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			position = excluded.position,
			name = excluded.name,
			role = excluded.role,
			description = excluded.description,
			model = excluded.model,
			synthesizer = excluded.synthesizer,
			updated_at = CURRENT_TIMESTAMP`,
		a.ID, a.Position, a.Name, a.Role, a.Description, a.Model, a.Synthesizer)
	if err != nil {
		return fmt.Errorf("save agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(id string) (*Agent, error) {
	row := s.db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (s *Store) ListAgents() ([]Agent, error) {
	rows, err := s.db.Query(`SELECT ` + agentColumns + ` FROM agents ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

func (s *Store) DeleteAgentsNotIn(ids []string) error {
	if len(ids) == 0 {
		_, err := s.db.Exec(`DELETE FROM agents`)
		return err
	}
	query := `DELETE FROM agents WHERE id NOT IN (`
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i] = id
	}
	query += ")"
	_, err := s.db.Exec(query, args...)
	return err
}
