package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one provisioning or teardown invocation.
type Run struct {
	ID         string
	Kind       string
	Mode       string
	Policy     string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// RunCommand is one audited external command.
type RunCommand struct {
	Seq      int
	Argv     []string
	ExitCode int
}

// BeginRun records the start of a run and returns its id.
func (d *DB) BeginRun(kind, mode, policy string) (string, error) {
	id := uuid.NewString()
	_, err := d.conn.Exec(`
		INSERT INTO runs (id, kind, mode, policy, status)
		VALUES (?, ?, ?, ?, 'running')
	`, id, kind, mode, policy)
	if err != nil {
		return "", fmt.Errorf("failed to record run start: %w", err)
	}
	return id, nil
}

// FinishRun marks a run terminal with the given status.
func (d *DB) FinishRun(runID, status string) error {
	_, err := d.conn.Exec(`
		UPDATE runs SET status = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?
	`, status, runID)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// RecordCommand appends one attempted command to the run's audit trail.
func (d *DB) RecordCommand(runID string, seq int, argv []string, exitCode int) error {
	b, err := json.Marshal(argv)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
		INSERT INTO commands (run_id, seq, argv, exit_code)
		VALUES (?, ?, ?, ?)
	`, runID, seq, string(b), exitCode)
	if err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}
	return nil
}

// GetRunCommands returns a run's attempted commands in execution order.
func (d *DB) GetRunCommands(runID string) ([]*RunCommand, error) {
	rows, err := d.conn.Query(`
		SELECT seq, argv, exit_code FROM commands
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run commands: %w", err)
	}
	defer rows.Close()

	var cmds []*RunCommand
	for rows.Next() {
		var c RunCommand
		var argvJSON string
		if err := rows.Scan(&c.Seq, &argvJSON, &c.ExitCode); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(argvJSON), &c.Argv); err != nil {
			return nil, err
		}
		cmds = append(cmds, &c)
	}
	return cmds, rows.Err()
}

// GetRun returns one run by id.
func (d *DB) GetRun(runID string) (*Run, error) {
	var r Run
	var finished *time.Time
	err := d.conn.QueryRow(`
		SELECT id, kind, mode, policy, status, started_at, finished_at
		FROM runs WHERE id = ?
	`, runID).Scan(&r.ID, &r.Kind, &r.Mode, &r.Policy, &r.Status, &r.StartedAt, &finished)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	r.FinishedAt = finished
	return &r, nil
}
