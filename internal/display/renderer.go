// Package display resolves display configurations against entity data:
// ordered sections and fields, related-entity navigation, collection
// templates, hot edit of scalar fields, and action-button dispatch.
package display

import (
	"fmt"

	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kingscribe/chancery/internal/configstore"
	"github.com/kingscribe/chancery/internal/entity"
	"github.com/kingscribe/chancery/internal/naming"
	"github.com/kingscribe/chancery/model"
)

// Renderer loads a display configuration and entity data and produces a
// fully resolved view. Configurations are read-only here; only the
// builder mutates them.
type Renderer struct {
	configs  configstore.DisplayStore
	registry *entity.Registry
	hints    RecoveryHints
	log      *zap.Logger
}

// NewRenderer creates a display renderer.
func NewRenderer(configs configstore.DisplayStore, registry *entity.Registry, hints RecoveryHints, log *zap.Logger) *Renderer {
	return &Renderer{configs: configs, registry: registry, hints: hints, log: log}
}

// View is the resolved rendering of one entity under one configuration.
type View struct {
	ConfigurationID string        `json:"configurationId"`
	EntityTypeName  string        `json:"entityTypeName"`
	EntityID        string        `json:"entityId"`
	Sections        []SectionView `json:"sections"`
}

// SectionView is one resolved section. For collection sections Items
// carries one entry per array element and Fields is empty.
type SectionView struct {
	ID                  string                   `json:"id"`
	Name                string                   `json:"name"`
	Description         string                   `json:"description,omitempty"`
	IsCollection        bool                     `json:"isCollection,omitempty"`
	Fields              []FieldView              `json:"fields,omitempty"`
	Items               []ItemView               `json:"items,omitempty"`
	Actions             []model.ActionDescriptor `json:"actions,omitempty"`
	CompatibilityIssues []string                 `json:"compatibilityIssues,omitempty"`

	// Error marks a section that could not be resolved, e.g. a collection
	// section without an item template. The rest of the view still renders.
	Error string `json:"error,omitempty"`
}

// ItemView is one rendered element of a collection section.
type ItemView struct {
	EntityID string                   `json:"entityId,omitempty"`
	Fields   []FieldView              `json:"fields"`
	Actions  []model.ActionDescriptor `json:"actions,omitempty"`
}

// FieldView is one resolved display value. Value is the formatted
// string; Raw carries the unformatted value for editable fields.
type FieldView struct {
	ID        string `json:"id"`
	Label     string `json:"label,omitempty"`
	FieldName string `json:"fieldName,omitempty"`
	FieldType string `json:"fieldType,omitempty"`
	Value     string `json:"value"`
	Raw       any    `json:"raw,omitempty"`
	Editable  bool   `json:"editable,omitempty"`

	CompatibilityIssues []string `json:"compatibilityIssues,omitempty"`
}

// Render fetches the configuration and the entity and resolves the
// view. Both fetches must succeed; there is no partial render.
func (r *Renderer) Render(ctx context.Context, rctx *model.RequestContext, entityType, entityID, configurationID string) (*View, error) {
	repo, err := r.registry.Repository(entityType)
	if err != nil {
		return nil, err
	}

	var cfg model.DisplayConfiguration
	var entityData map[string]any

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if configurationID != "" {
			cfg, err = r.configs.GetByID(gctx, configurationID)
		} else {
			cfg, err = r.configs.GetDefault(gctx, entityType)
		}
		return err
	})
	g.Go(func() error {
		var err error
		entityData, err = repo.GetByID(gctx, rctx, entityID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f := newFormatter(rctx)
	view := &View{
		ConfigurationID: cfg.ID,
		EntityTypeName:  r.registry.CanonicalName(entityType),
		EntityID:        entityID,
	}
	for _, section := range orderedSections(&cfg) {
		view.Sections = append(view.Sections, r.renderSection(&section, entityType, entityData, f))
	}
	return view, nil
}

func (r *Renderer) renderSection(section *model.DisplaySection, rootType string, root map[string]any, f *formatter) SectionView {
	out := SectionView{
		ID:           section.ID,
		Name:         section.SectionName,
		Description:  section.Description,
		IsCollection: section.IsCollection,
	}
	if section.HasCompatibilityIssues {
		out.CompatibilityIssues = section.CompatibilityIssues
	}

	// The section's data source: a navigation property of the root entity
	// when dedicated, the root entity itself otherwise.
	source := any(root)
	if section.RelatedEntityPropertyName != "" {
		source, _ = naming.Lookup(root, section.RelatedEntityPropertyName)
	}

	actionType := rootType
	if section.RelatedEntityTypeName != "" {
		actionType = section.RelatedEntityTypeName
	}

	if section.IsCollection {
		r.renderCollection(&out, section, actionType, root, source, f)
		return out
	}

	sourceMap, _ := source.(map[string]any)
	for _, field := range orderedFields(section.FieldOrder, section.Fields) {
		out.Fields = append(out.Fields, r.renderField(&field, root, sourceMap, f))
	}
	out.Actions = Buttons(section.ActionButtons, ButtonContext{
		EntityType: actionType,
		EntityID:   objectID(sourceMap),
		HasEntity:  sourceMap != nil,
	})
	return out
}

func (r *Renderer) renderCollection(out *SectionView, section *model.DisplaySection, actionType string, root map[string]any, source any, f *formatter) {
	if len(section.SubSections) == 0 {
		out.Error = "collection section has no item template"
		return
	}
	template := section.SubSections[0]

	items, ok := source.([]any)
	if !ok {
		// Not an array renders the no-items state, never a crash.
		if source != nil {
			r.log.Warn("collection section source is not an array",
				zap.String("section", section.SectionName))
		}
	}

	fields := orderedFields(template.FieldOrder, template.Fields)
	for _, item := range items {
		itemMap, _ := item.(map[string]any)
		iv := ItemView{EntityID: objectID(itemMap)}
		for _, field := range fields {
			iv.Fields = append(iv.Fields, r.renderField(&field, root, itemMap, f))
		}
		iv.Actions = Buttons(section.ActionButtons, ButtonContext{
			EntityType:  actionType,
			EntityID:    iv.EntityID,
			IsItemLevel: true,
			HasEntity:   itemMap != nil,
		})
		out.Items = append(out.Items, iv)
	}

	out.Actions = Buttons(section.ActionButtons, ButtonContext{
		EntityType:   actionType,
		IsCollection: true,
	})
}

// renderField resolves one field's value. A field-level related-entity
// dedication navigates from the root entity, not the section's source.
func (r *Renderer) renderField(field *model.DisplayField, root, source map[string]any, f *formatter) FieldView {
	resolved := source
	if field.RelatedEntityPropertyName != "" {
		v, _ := naming.Lookup(root, field.RelatedEntityPropertyName)
		resolved, _ = v.(map[string]any)
	}

	var raw any
	switch {
	case field.TemplateText != "":
		raw = interpolate(field.TemplateText, resolved, f)
	case field.FieldName != "":
		raw, _ = naming.PathLookup(resolved, field.FieldName)
	}

	out := FieldView{
		ID:        field.ID,
		Label:     field.Label,
		FieldName: field.FieldName,
		FieldType: field.FieldType,
		Value:     f.Format(raw, field.FieldType),
		Editable:  Editable(field),
	}
	if out.Editable {
		out.Raw = raw
	}
	if field.HasCompatibilityIssues {
		out.CompatibilityIssues = field.CompatibilityIssues
	}
	return out
}

// Remove deletes an entity, converting a referential conflict into a
// REFERENCE_CONFLICT envelope carrying entity-type-specific recovery
// actions.
func (r *Renderer) Remove(ctx context.Context, rctx *model.RequestContext, entityType, entityID string) error {
	repo, err := r.registry.Repository(entityType)
	if err != nil {
		return err
	}
	err = repo.Delete(ctx, rctx, entityID)
	if err == nil {
		return nil
	}
	env, ok := err.(*model.ErrorEnvelope)
	if !ok || env.Code != model.ErrConflict {
		return err
	}
	return model.NewReferenceConflictError(
		fmt.Sprintf("%s %q cannot be removed while other records depend on it", entityType, entityID),
		r.hints.For(r.registry.CanonicalName(entityType), entityID),
	)
}

// orderedSections applies the sectionOrder guid list, dropping unknown
// identifiers and falling back to declaration order when absent.
func orderedSections(cfg *model.DisplayConfiguration) []model.DisplaySection {
	if len(cfg.SectionOrder) == 0 {
		return cfg.Sections
	}
	byID := make(map[string]model.DisplaySection, len(cfg.Sections))
	for _, s := range cfg.Sections {
		byID[s.SectionGUID] = s
		byID[s.ID] = s
	}
	ordered := make([]model.DisplaySection, 0, len(cfg.Sections))
	for _, id := range cfg.SectionOrder {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered
}

func orderedFields(order []string, fields []model.DisplayField) []model.DisplayField {
	if len(order) == 0 {
		return fields
	}
	byID := make(map[string]model.DisplayField, len(fields))
	for _, f := range fields {
		byID[f.FieldGUID] = f
		byID[f.ID] = f
	}
	ordered := make([]model.DisplayField, 0, len(fields))
	for _, id := range order {
		if f, ok := byID[id]; ok {
			ordered = append(ordered, f)
		}
	}
	return ordered
}

func objectID(m map[string]any) string {
	if m == nil {
		return ""
	}
	v, ok := naming.Lookup(m, "id")
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
