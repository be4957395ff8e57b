package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kingscribe/chancery/model"
)

// PgProgressStore is a PostgreSQL-backed ProgressStore using pgx/v5.
// The current-step and all-steps maps live in JSON columns, matching
// the persisted currentStepDataJson/allStepsDataJson contract.
type PgProgressStore struct {
	pool *pgxpool.Pool
}

// NewPgProgressStore creates a new PostgreSQL progress store.
func NewPgProgressStore(pool *pgxpool.Pool) *PgProgressStore {
	return &PgProgressStore{pool: pool}
}

// Create persists a new progress record.
func (s *PgProgressStore) Create(ctx context.Context, p model.SubmissionProgress) error {
	currentJSON, allJSON, err := encodeStepData(p)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO submission_progress (
			id, form_configuration_id, user_id, entity_type_name, entity_id,
			current_step_index, current_step_data, all_steps_data,
			status, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.FormConfigurationID, p.UserID, p.EntityTypeName, p.EntityID,
		p.CurrentStepIndex, currentJSON, allJSON,
		p.Status, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	return nil
}

// GetByID retrieves a progress record.
func (s *PgProgressStore) GetByID(ctx context.Context, id string) (model.SubmissionProgress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, form_configuration_id, user_id, entity_type_name, entity_id,
		       current_step_index, current_step_data, all_steps_data,
		       status, version, created_at, updated_at
		FROM submission_progress
		WHERE id = $1`,
		id,
	)
	p, err := scanProgress(row)
	if err == pgx.ErrNoRows {
		return model.SubmissionProgress{}, model.NewNotFoundError(
			fmt.Sprintf("progress %q not found", id),
		)
	}
	return p, err
}

// Update persists an updated record with optimistic locking.
func (s *PgProgressStore) Update(ctx context.Context, p model.SubmissionProgress) error {
	currentJSON, allJSON, err := encodeStepData(p)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE submission_progress SET
			current_step_index = $1,
			current_step_data = $2,
			all_steps_data = $3,
			status = $4,
			version = $5,
			updated_at = $6
		WHERE id = $7 AND version = $8`,
		p.CurrentStepIndex, currentJSON, allJSON,
		p.Status, p.Version+1, time.Now().UTC(),
		p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewConflictError(
			fmt.Sprintf("progress %q version conflict (expected %d)", p.ID, p.Version),
		)
	}
	return nil
}

// FindByUser lists a user's non-terminal progress records, most
// recently updated first.
func (s *PgProgressStore) FindByUser(ctx context.Context, userID, entityType string) ([]model.SubmissionProgress, error) {
	query := `SELECT id, form_configuration_id, user_id, entity_type_name, entity_id,
	                 current_step_index, current_step_data, all_steps_data,
	                 status, version, created_at, updated_at
	          FROM submission_progress
	          WHERE user_id = $1 AND status IN ($2, $3)`
	args := []any{userID, model.ProgressInProgress, model.ProgressPaused}
	if entityType != "" {
		query += ` AND lower(entity_type_name) = lower($4)`
		args = append(args, entityType)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var result []model.SubmissionProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Delete removes a progress record.
func (s *PgProgressStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM submission_progress WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(
			fmt.Sprintf("progress %q not found", id),
		)
	}
	return nil
}

func encodeStepData(p model.SubmissionProgress) (current, all []byte, err error) {
	current, err = json.Marshal(p.CurrentStepData)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal current step data: %w", err)
	}
	all, err = json.Marshal(p.AllStepsData)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal all steps data: %w", err)
	}
	return current, all, nil
}

// HealthCheck verifies database connectivity for the readiness endpoint.
func (s *PgProgressStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanProgress(row pgx.Row) (model.SubmissionProgress, error) {
	var p model.SubmissionProgress
	var currentJSON, allJSON []byte

	err := row.Scan(
		&p.ID, &p.FormConfigurationID, &p.UserID, &p.EntityTypeName, &p.EntityID,
		&p.CurrentStepIndex, &currentJSON, &allJSON,
		&p.Status, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return model.SubmissionProgress{}, err
	}
	if err != nil {
		return model.SubmissionProgress{}, fmt.Errorf("scan progress: %w", err)
	}

	if currentJSON != nil {
		if err := json.Unmarshal(currentJSON, &p.CurrentStepData); err != nil {
			return model.SubmissionProgress{}, fmt.Errorf("unmarshal current step data: %w", err)
		}
	}
	if allJSON != nil {
		if err := json.Unmarshal(allJSON, &p.AllStepsData); err != nil {
			return model.SubmissionProgress{}, fmt.Errorf("unmarshal all steps data: %w", err)
		}
	}
	return p, nil
}
