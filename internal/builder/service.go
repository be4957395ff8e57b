// Package builder manages form and display configuration documents:
// CRUD with the single-default handshake, reusable template listings,
// and copy/link reuse resolution. Saves are full document replaces.
package builder

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingscribe/chancery/internal/configstore"
	"github.com/kingscribe/chancery/model"
)

// FormService manages form configurations.
type FormService struct {
	store configstore.FormStore
	reuse ReuseClient
	meta  MetadataSource
	log   *zap.Logger
}

// NewFormService creates a form configuration service. Templates are
// resolved against the same store the service persists to; meta may be
// nil, which disables compatibility checks on linked templates.
func NewFormService(store configstore.FormStore, meta MetadataSource, log *zap.Logger) *FormService {
	return &FormService{
		store: store,
		reuse: NewStoreReuseClient(store, nil),
		meta:  meta,
		log:   log,
	}
}

// List returns configurations for an entity type, or all of them when
// entityType is empty.
func (s *FormService) List(ctx context.Context, entityType string) ([]model.FormConfiguration, error) {
	return s.store.GetAll(ctx, entityType)
}

// Get returns one configuration by id.
func (s *FormService) Get(ctx context.Context, id string) (model.FormConfiguration, error) {
	return s.store.GetByID(ctx, id)
}

// GetDefault returns the default configuration for an entity type.
func (s *FormService) GetDefault(ctx context.Context, entityType string) (model.FormConfiguration, error) {
	return s.store.GetDefault(ctx, entityType)
}

// EntityTypes lists the entity types that have configurations.
func (s *FormService) EntityTypes(ctx context.Context) ([]string, error) {
	return s.store.ListEntityTypes(ctx)
}

// Create persists a new configuration. Saving with isDefault set while
// another configuration holds the default slot requires confirmDefault;
// confirming demotes the incumbent first.
func (s *FormService) Create(ctx context.Context, cfg model.FormConfiguration, confirmDefault bool) (model.FormConfiguration, error) {
	if err := validateFormConfiguration(&cfg); err != nil {
		return model.FormConfiguration{}, err
	}
	assignFormIdentifiers(&cfg)
	refreshFormCompatibility(ctx, s.meta, &cfg)

	if cfg.IsDefault {
		if err := s.demoteDefault(ctx, &cfg, confirmDefault); err != nil {
			return model.FormConfiguration{}, err
		}
	}
	if err := s.store.Create(ctx, cfg); err != nil {
		return model.FormConfiguration{}, err
	}
	return cfg, nil
}

// Update replaces a configuration wholesale with the same default
// handshake as Create. Last write wins; there is no concurrency token
// on configuration documents.
func (s *FormService) Update(ctx context.Context, cfg model.FormConfiguration, confirmDefault bool) (model.FormConfiguration, error) {
	if cfg.ID == "" {
		return model.FormConfiguration{}, model.NewBadRequestError("configuration id is required")
	}
	if err := validateFormConfiguration(&cfg); err != nil {
		return model.FormConfiguration{}, err
	}
	assignFormIdentifiers(&cfg)
	refreshFormCompatibility(ctx, s.meta, &cfg)

	if cfg.IsDefault {
		if err := s.demoteDefault(ctx, &cfg, confirmDefault); err != nil {
			return model.FormConfiguration{}, err
		}
	}
	if err := s.store.Update(ctx, cfg); err != nil {
		return model.FormConfiguration{}, err
	}
	return cfg, nil
}

// Delete removes a configuration.
func (s *FormService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// ListReusableSteps returns steps marked reusable across all
// configurations, the template pool for the builder's attach pickers.
func (s *FormService) ListReusableSteps(ctx context.Context) ([]model.FormStep, error) {
	configs, err := s.store.GetAll(ctx, "")
	if err != nil {
		return nil, err
	}
	var steps []model.FormStep
	for _, cfg := range configs {
		for _, step := range cfg.Steps {
			if step.IsReusable {
				steps = append(steps, step)
			}
		}
	}
	return steps, nil
}

// ListReusableFields returns fields marked reusable across all
// configurations.
func (s *FormService) ListReusableFields(ctx context.Context) ([]model.FormField, error) {
	configs, err := s.store.GetAll(ctx, "")
	if err != nil {
		return nil, err
	}
	var fields []model.FormField
	for _, cfg := range configs {
		for _, step := range cfg.Steps {
			for _, f := range step.Fields {
				if f.IsReusable {
					fields = append(fields, f)
				}
			}
		}
	}
	return fields, nil
}

func (s *FormService) demoteDefault(ctx context.Context, cfg *model.FormConfiguration, confirm bool) error {
	current, err := s.store.GetDefault(ctx, cfg.EntityName)
	if err != nil {
		if env, ok := err.(*model.ErrorEnvelope); ok && env.Code == model.ErrNotFound {
			return nil
		}
		return err
	}
	if current.ID == cfg.ID {
		return nil
	}
	if !confirm {
		return model.NewDefaultExistsError(cfg.EntityName, current.ConfigurationName)
	}

	current.IsDefault = false
	if err := s.store.Update(ctx, current); err != nil {
		return err
	}
	s.log.Info("demoted default form configuration",
		zap.String("entity_type", cfg.EntityName),
		zap.String("configuration_id", current.ID))
	return nil
}

func validateFormConfiguration(cfg *model.FormConfiguration) error {
	var details []model.FieldError
	if strings.TrimSpace(cfg.EntityName) == "" {
		details = append(details, model.FieldError{Field: "entityName", Code: "required", Message: "entityName is required"})
	}
	if strings.TrimSpace(cfg.ConfigurationName) == "" {
		details = append(details, model.FieldError{Field: "configurationName", Code: "required", Message: "configurationName is required"})
	}
	if len(details) > 0 {
		return model.NewValidationError(details)
	}
	return nil
}

// assignFormIdentifiers fills missing ids on the document tree so every
// step, field, and validation is addressable.
func assignFormIdentifiers(cfg *model.FormConfiguration) {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	for i := range cfg.Steps {
		step := &cfg.Steps[i]
		if step.ID == "" {
			step.ID = uuid.New().String()
		}
		for j := range step.Fields {
			field := &step.Fields[j]
			if field.ID == "" {
				field.ID = uuid.New().String()
			}
			for k := range field.Validations {
				if field.Validations[k].ID == "" {
					field.Validations[k].ID = uuid.New().String()
				}
			}
		}
	}
}

// DisplayService manages display configurations with the same policies
// as FormService.
type DisplayService struct {
	store configstore.DisplayStore
	reuse ReuseClient
	meta  MetadataSource
	log   *zap.Logger
}

// NewDisplayService creates a display configuration service.
func NewDisplayService(store configstore.DisplayStore, meta MetadataSource, log *zap.Logger) *DisplayService {
	return &DisplayService{
		store: store,
		reuse: NewStoreReuseClient(nil, store),
		meta:  meta,
		log:   log,
	}
}

// List returns configurations for an entity type, or all of them when
// entityType is empty.
func (s *DisplayService) List(ctx context.Context, entityType string) ([]model.DisplayConfiguration, error) {
	return s.store.GetAll(ctx, entityType)
}

// Get returns one configuration by id.
func (s *DisplayService) Get(ctx context.Context, id string) (model.DisplayConfiguration, error) {
	return s.store.GetByID(ctx, id)
}

// GetDefault returns the default configuration for an entity type.
func (s *DisplayService) GetDefault(ctx context.Context, entityType string) (model.DisplayConfiguration, error) {
	return s.store.GetDefault(ctx, entityType)
}

// Create persists a new configuration with the default handshake.
func (s *DisplayService) Create(ctx context.Context, cfg model.DisplayConfiguration, confirmDefault bool) (model.DisplayConfiguration, error) {
	if err := validateDisplayConfiguration(&cfg); err != nil {
		return model.DisplayConfiguration{}, err
	}
	assignDisplayIdentifiers(&cfg)
	refreshDisplayCompatibility(ctx, s.meta, &cfg)

	if cfg.IsDefault {
		if err := s.demoteDefault(ctx, &cfg, confirmDefault); err != nil {
			return model.DisplayConfiguration{}, err
		}
	}
	if err := s.store.Create(ctx, cfg); err != nil {
		return model.DisplayConfiguration{}, err
	}
	return cfg, nil
}

// Update replaces a configuration wholesale with the default handshake.
func (s *DisplayService) Update(ctx context.Context, cfg model.DisplayConfiguration, confirmDefault bool) (model.DisplayConfiguration, error) {
	if cfg.ID == "" {
		return model.DisplayConfiguration{}, model.NewBadRequestError("configuration id is required")
	}
	if err := validateDisplayConfiguration(&cfg); err != nil {
		return model.DisplayConfiguration{}, err
	}
	assignDisplayIdentifiers(&cfg)
	refreshDisplayCompatibility(ctx, s.meta, &cfg)

	if cfg.IsDefault {
		if err := s.demoteDefault(ctx, &cfg, confirmDefault); err != nil {
			return model.DisplayConfiguration{}, err
		}
	}
	if err := s.store.Update(ctx, cfg); err != nil {
		return model.DisplayConfiguration{}, err
	}
	return cfg, nil
}

// Delete removes a configuration.
func (s *DisplayService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// ListReusableSections returns sections marked reusable across all
// configurations, including nested sub-sections.
func (s *DisplayService) ListReusableSections(ctx context.Context) ([]model.DisplaySection, error) {
	configs, err := s.store.GetAll(ctx, "")
	if err != nil {
		return nil, err
	}
	var sections []model.DisplaySection
	for _, cfg := range configs {
		collectReusableSections(cfg.Sections, &sections)
	}
	return sections, nil
}

func collectReusableSections(in []model.DisplaySection, out *[]model.DisplaySection) {
	for _, section := range in {
		if section.IsReusable {
			*out = append(*out, section)
		}
		collectReusableSections(section.SubSections, out)
	}
}

func (s *DisplayService) demoteDefault(ctx context.Context, cfg *model.DisplayConfiguration, confirm bool) error {
	current, err := s.store.GetDefault(ctx, cfg.EntityTypeName)
	if err != nil {
		if env, ok := err.(*model.ErrorEnvelope); ok && env.Code == model.ErrNotFound {
			return nil
		}
		return err
	}
	if current.ID == cfg.ID {
		return nil
	}
	if !confirm {
		return model.NewDefaultExistsError(cfg.EntityTypeName, current.Name)
	}

	current.IsDefault = false
	if err := s.store.Update(ctx, current); err != nil {
		return err
	}
	s.log.Info("demoted default display configuration",
		zap.String("entity_type", cfg.EntityTypeName),
		zap.String("configuration_id", current.ID))
	return nil
}

func validateDisplayConfiguration(cfg *model.DisplayConfiguration) error {
	var details []model.FieldError
	if strings.TrimSpace(cfg.EntityTypeName) == "" {
		details = append(details, model.FieldError{Field: "entityTypeName", Code: "required", Message: "entityTypeName is required"})
	}
	if strings.TrimSpace(cfg.Name) == "" {
		details = append(details, model.FieldError{Field: "name", Code: "required", Message: "name is required"})
	}
	if len(details) > 0 {
		return model.NewValidationError(details)
	}
	return nil
}

func assignDisplayIdentifiers(cfg *model.DisplayConfiguration) {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.ConfigurationGUID == "" {
		cfg.ConfigurationGUID = uuid.New().String()
	}
	assignSectionIdentifiers(cfg.Sections)
}

func assignSectionIdentifiers(sections []model.DisplaySection) {
	for i := range sections {
		section := &sections[i]
		if section.ID == "" {
			section.ID = uuid.New().String()
		}
		if section.SectionGUID == "" {
			section.SectionGUID = uuid.New().String()
		}
		for j := range section.Fields {
			field := &section.Fields[j]
			if field.ID == "" {
				field.ID = uuid.New().String()
			}
			if field.FieldGUID == "" {
				field.FieldGUID = uuid.New().String()
			}
		}
		assignSectionIdentifiers(section.SubSections)
	}
}
