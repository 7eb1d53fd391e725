package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// StageRuns returns the run of every stage for an item in pipeline order.
// Stages that never ran are reported idle.
func (s *Store) StageRuns(ctx context.Context, itemID int64) ([]StageRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, stage, status, output, attempts, started_at, finished_at
         FROM stage_runs WHERE item_id = ?`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query stage runs: %w", err)
	}
	defer rows.Close()

	recorded := make(map[string]StageRun)
	for rows.Next() {
		run, err := scanStageRun(rows)
		if err != nil {
			return nil, err
		}
		recorded[run.Stage] = run
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	runs := make([]StageRun, 0, len(steps))
	for _, stage := range StageKeys() {
		run, ok := recorded[stage]
		if !ok {
			run = StageRun{ItemID: itemID, Stage: stage, Status: StageIdle}
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// StageRun returns the run of one stage, idle when it never ran.
func (s *Store) StageRun(ctx context.Context, itemID int64, stage string) (StageRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT item_id, stage, status, output, attempts, started_at, finished_at
         FROM stage_runs WHERE item_id = ? AND stage = ?`, itemID, stage)
	run, err := scanStageRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StageRun{ItemID: itemID, Stage: stage, Status: StageIdle}, nil
	}
	if err != nil {
		return StageRun{}, fmt.Errorf("get stage run: %w", err)
	}
	return run, nil
}

// SetStageRun upserts the run of one stage.
func (s *Store) SetStageRun(ctx context.Context, run StageRun) error {
	if run.Stage == "" {
		return errors.New("stage run without stage")
	}
	if run.Status == "" {
		run.Status = StageIdle
	}
	if _, err := s.exec(ctx,
		`INSERT INTO stage_runs (item_id, stage, status, output, attempts, started_at, finished_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(item_id, stage) DO UPDATE SET
             status = excluded.status,
             output = excluded.output,
             attempts = excluded.attempts,
             started_at = excluded.started_at,
             finished_at = excluded.finished_at`,
		run.ItemID,
		run.Stage,
		string(run.Status),
		nullableString(run.Output),
		run.Attempts,
		nullableTime(run.StartedAt),
		nullableTime(run.FinishedAt),
	); err != nil {
		return fmt.Errorf("set stage run %s: %w", run.Stage, err)
	}
	return nil
}

// ResetStageRuns forgets every stage run of an item.
func (s *Store) ResetStageRuns(ctx context.Context, itemID int64) error {
	if _, err := s.exec(ctx, `DELETE FROM stage_runs WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("reset stage runs: %w", err)
	}
	return nil
}

// ResetRunningStages marks runs left running by a crashed process as errors.
func (s *Store) ResetRunningStages(ctx context.Context, message string) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE stage_runs SET status = ?, output = ? WHERE status = ?`,
		string(StageError), message, string(StageRunning))
	if err != nil {
		return 0, fmt.Errorf("reset running stages: %w", err)
	}
	return res.RowsAffected()
}

func scanStageRun(scanner rowScanner) (StageRun, error) {
	var (
		run         StageRun
		status      string
		output      sql.NullString
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(&run.ItemID, &run.Stage, &status, &output, &run.Attempts, &startedRaw, &finishedRaw); err != nil {
		return StageRun{}, err
	}
	run.Status = StageStatus(status)
	run.Output = output.String
	run.StartedAt = parseNullableTime(startedRaw)
	run.FinishedAt = parseNullableTime(finishedRaw)
	return run, nil
}
