package configstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kingscribe/chancery/model"
)

// PgFormStore is a PostgreSQL-backed FormStore using pgx/v5. Step order
// and the step tree are stored as JSON columns; the typed document is
// reconstituted on read so interpreters never see the string form.
type PgFormStore struct {
	pool *pgxpool.Pool
}

// NewPgFormStore creates a new PostgreSQL form configuration store.
func NewPgFormStore(pool *pgxpool.Pool) *PgFormStore {
	return &PgFormStore{pool: pool}
}

const formSelectColumns = `id, entity_name, configuration_name, description,
	       is_default, is_active, step_order, steps`

// GetByID retrieves a configuration by ID.
func (s *PgFormStore) GetByID(ctx context.Context, id string) (model.FormConfiguration, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+formSelectColumns+`
		FROM form_configurations
		WHERE id = $1`,
		id,
	)
	cfg, err := scanFormConfiguration(row)
	if err == pgx.ErrNoRows {
		return model.FormConfiguration{}, model.NewNotFoundError(
			fmt.Sprintf("form configuration %q not found", id),
		)
	}
	return cfg, err
}

// GetDefault retrieves the default configuration for an entity type.
func (s *PgFormStore) GetDefault(ctx context.Context, entityType string) (model.FormConfiguration, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+formSelectColumns+`
		FROM form_configurations
		WHERE is_default AND lower(entity_name) = lower($1)`,
		entityType,
	)
	cfg, err := scanFormConfiguration(row)
	if err == pgx.ErrNoRows {
		return model.FormConfiguration{}, model.NewNotFoundError(
			fmt.Sprintf("no default form configuration for entity type %q", entityType),
		)
	}
	return cfg, err
}

// GetAll lists configurations for an entity type, sorted by name.
func (s *PgFormStore) GetAll(ctx context.Context, entityType string) ([]model.FormConfiguration, error) {
	query := `SELECT ` + formSelectColumns + `
	          FROM form_configurations`
	var args []any
	if entityType != "" {
		query += ` WHERE lower(entity_name) = lower($1)`
		args = append(args, entityType)
	}
	query += ` ORDER BY configuration_name ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query form configurations: %w", err)
	}
	defer rows.Close()

	var result []model.FormConfiguration
	for rows.Next() {
		cfg, err := scanFormConfiguration(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, cfg)
	}
	return result, rows.Err()
}

// Create inserts a new document.
func (s *PgFormStore) Create(ctx context.Context, cfg model.FormConfiguration) error {
	stepOrderJSON, stepsJSON, err := encodeFormDocument(cfg)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO form_configurations (
			id, entity_name, configuration_name, description,
			is_default, is_active, step_order, steps
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		cfg.ID, cfg.EntityName, cfg.ConfigurationName, cfg.Description,
		cfg.IsDefault, cfg.IsActive, stepOrderJSON, stepsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert form configuration: %w", err)
	}
	return nil
}

// Update replaces a document wholesale.
func (s *PgFormStore) Update(ctx context.Context, cfg model.FormConfiguration) error {
	stepOrderJSON, stepsJSON, err := encodeFormDocument(cfg)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE form_configurations SET
			entity_name = $1,
			configuration_name = $2,
			description = $3,
			is_default = $4,
			is_active = $5,
			step_order = $6,
			steps = $7
		WHERE id = $8`,
		cfg.EntityName, cfg.ConfigurationName, cfg.Description,
		cfg.IsDefault, cfg.IsActive, stepOrderJSON, stepsJSON,
		cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("update form configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(
			fmt.Sprintf("form configuration %q not found", cfg.ID),
		)
	}
	return nil
}

// Delete removes a document.
func (s *PgFormStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM form_configurations WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete form configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(
			fmt.Sprintf("form configuration %q not found", id),
		)
	}
	return nil
}

// ListEntityTypes returns the distinct entity types, sorted.
func (s *PgFormStore) ListEntityTypes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT entity_name FROM form_configurations ORDER BY entity_name`)
	if err != nil {
		return nil, fmt.Errorf("query entity types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan entity type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// HealthCheck verifies database connectivity for the readiness endpoint.
func (s *PgFormStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func encodeFormDocument(cfg model.FormConfiguration) (stepOrder, steps []byte, err error) {
	stepOrder, err = json.Marshal(cfg.StepOrder)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal step order: %w", err)
	}
	steps, err = json.Marshal(cfg.Steps)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal steps: %w", err)
	}
	return stepOrder, steps, nil
}

func scanFormConfiguration(row pgx.Row) (model.FormConfiguration, error) {
	var cfg model.FormConfiguration
	var stepOrderJSON, stepsJSON []byte

	err := row.Scan(
		&cfg.ID, &cfg.EntityName, &cfg.ConfigurationName, &cfg.Description,
		&cfg.IsDefault, &cfg.IsActive, &stepOrderJSON, &stepsJSON,
	)
	if err == pgx.ErrNoRows {
		return model.FormConfiguration{}, err
	}
	if err != nil {
		return model.FormConfiguration{}, fmt.Errorf("scan form configuration: %w", err)
	}

	if stepOrderJSON != nil {
		if err := json.Unmarshal(stepOrderJSON, &cfg.StepOrder); err != nil {
			// Malformed order JSON degrades to declaration order.
			cfg.StepOrder = nil
		}
	}
	if stepsJSON != nil {
		if err := json.Unmarshal(stepsJSON, &cfg.Steps); err != nil {
			return model.FormConfiguration{}, fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	return cfg, nil
}

// PgDisplayStore is a PostgreSQL-backed DisplayStore using pgx/v5.
type PgDisplayStore struct {
	pool *pgxpool.Pool
}

// NewPgDisplayStore creates a new PostgreSQL display configuration
// store.
func NewPgDisplayStore(pool *pgxpool.Pool) *PgDisplayStore {
	return &PgDisplayStore{pool: pool}
}

const displaySelectColumns = `id, configuration_guid, name, entity_type_name,
	       is_default, is_draft, description, section_order, sections`

// GetByID retrieves a configuration by ID.
func (s *PgDisplayStore) GetByID(ctx context.Context, id string) (model.DisplayConfiguration, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+displaySelectColumns+`
		FROM display_configurations
		WHERE id = $1`,
		id,
	)
	cfg, err := scanDisplayConfiguration(row)
	if err == pgx.ErrNoRows {
		return model.DisplayConfiguration{}, model.NewNotFoundError(
			fmt.Sprintf("display configuration %q not found", id),
		)
	}
	return cfg, err
}

// GetDefault retrieves the default configuration for an entity type.
func (s *PgDisplayStore) GetDefault(ctx context.Context, entityType string) (model.DisplayConfiguration, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+displaySelectColumns+`
		FROM display_configurations
		WHERE is_default AND lower(entity_type_name) = lower($1)`,
		entityType,
	)
	cfg, err := scanDisplayConfiguration(row)
	if err == pgx.ErrNoRows {
		return model.DisplayConfiguration{}, model.NewNotFoundError(
			fmt.Sprintf("no default display configuration for entity type %q", entityType),
		)
	}
	return cfg, err
}

// GetAll lists configurations for an entity type, sorted by name.
func (s *PgDisplayStore) GetAll(ctx context.Context, entityType string) ([]model.DisplayConfiguration, error) {
	query := `SELECT ` + displaySelectColumns + `
	          FROM display_configurations`
	var args []any
	if entityType != "" {
		query += ` WHERE lower(entity_type_name) = lower($1)`
		args = append(args, entityType)
	}
	query += ` ORDER BY name ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query display configurations: %w", err)
	}
	defer rows.Close()

	var result []model.DisplayConfiguration
	for rows.Next() {
		cfg, err := scanDisplayConfiguration(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, cfg)
	}
	return result, rows.Err()
}

// Create inserts a new document.
func (s *PgDisplayStore) Create(ctx context.Context, cfg model.DisplayConfiguration) error {
	sectionOrderJSON, sectionsJSON, err := encodeDisplayDocument(cfg)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO display_configurations (
			id, configuration_guid, name, entity_type_name,
			is_default, is_draft, description, section_order, sections
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		cfg.ID, cfg.ConfigurationGUID, cfg.Name, cfg.EntityTypeName,
		cfg.IsDefault, cfg.IsDraft, cfg.Description, sectionOrderJSON, sectionsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert display configuration: %w", err)
	}
	return nil
}

// Update replaces a document wholesale.
func (s *PgDisplayStore) Update(ctx context.Context, cfg model.DisplayConfiguration) error {
	sectionOrderJSON, sectionsJSON, err := encodeDisplayDocument(cfg)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE display_configurations SET
			configuration_guid = $1,
			name = $2,
			entity_type_name = $3,
			is_default = $4,
			is_draft = $5,
			description = $6,
			section_order = $7,
			sections = $8
		WHERE id = $9`,
		cfg.ConfigurationGUID, cfg.Name, cfg.EntityTypeName,
		cfg.IsDefault, cfg.IsDraft, cfg.Description, sectionOrderJSON, sectionsJSON,
		cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("update display configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(
			fmt.Sprintf("display configuration %q not found", cfg.ID),
		)
	}
	return nil
}

// Delete removes a document.
func (s *PgDisplayStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM display_configurations WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete display configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(
			fmt.Sprintf("display configuration %q not found", id),
		)
	}
	return nil
}

// ListEntityTypes returns the distinct entity types, sorted.
func (s *PgDisplayStore) ListEntityTypes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT entity_type_name FROM display_configurations ORDER BY entity_type_name`)
	if err != nil {
		return nil, fmt.Errorf("query entity types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan entity type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func encodeDisplayDocument(cfg model.DisplayConfiguration) (sectionOrder, sections []byte, err error) {
	sectionOrder, err = json.Marshal(cfg.SectionOrder)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal section order: %w", err)
	}
	sections, err = json.Marshal(cfg.Sections)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal sections: %w", err)
	}
	return sectionOrder, sections, nil
}

func scanDisplayConfiguration(row pgx.Row) (model.DisplayConfiguration, error) {
	var cfg model.DisplayConfiguration
	var sectionOrderJSON, sectionsJSON []byte

	err := row.Scan(
		&cfg.ID, &cfg.ConfigurationGUID, &cfg.Name, &cfg.EntityTypeName,
		&cfg.IsDefault, &cfg.IsDraft, &cfg.Description, &sectionOrderJSON, &sectionsJSON,
	)
	if err == pgx.ErrNoRows {
		return model.DisplayConfiguration{}, err
	}
	if err != nil {
		return model.DisplayConfiguration{}, fmt.Errorf("scan display configuration: %w", err)
	}

	if sectionOrderJSON != nil {
		if err := json.Unmarshal(sectionOrderJSON, &cfg.SectionOrder); err != nil {
			cfg.SectionOrder = nil
		}
	}
	if sectionsJSON != nil {
		if err := json.Unmarshal(sectionsJSON, &cfg.Sections); err != nil {
			return model.DisplayConfiguration{}, fmt.Errorf("unmarshal sections: %w", err)
		}
	}
	return cfg, nil
}
