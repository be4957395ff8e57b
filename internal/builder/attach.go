package builder

import (
	"context"
	"fmt"

	"github.com/kingscribe/chancery/internal/configstore"
	"github.com/kingscribe/chancery/model"
)

// StoreReuseClient resolves reusable templates against the local
// configuration store. It is the authoritative ReuseClient here: link
// tracking lives in the same store the templates come from.
type StoreReuseClient struct {
	forms    configstore.FormStore
	displays configstore.DisplayStore
}

// NewStoreReuseClient creates a reuse client over the configuration
// stores. Either store may be nil when only one document kind is served.
func NewStoreReuseClient(forms configstore.FormStore, displays configstore.DisplayStore) *StoreReuseClient {
	return &StoreReuseClient{forms: forms, displays: displays}
}

// AddReusableField resolves a field template and returns a linked
// instance with fresh identifiers.
func (c *StoreReuseClient) AddReusableField(ctx context.Context, _ *model.RequestContext, _ string, req AttachRequest) (model.FormField, error) {
	tpl, err := c.findFieldTemplate(ctx, req.SourceID)
	if err != nil {
		return model.FormField{}, err
	}
	out := CopyField(tpl)
	out.IsLinkedToSource = req.LinkMode == LinkModeLink
	return out, nil
}

// AddReusableStep resolves a step template and returns a copy with
// provenance recorded.
func (c *StoreReuseClient) AddReusableStep(ctx context.Context, _ *model.RequestContext, _ string, req AttachRequest) (model.FormStep, error) {
	tpl, err := c.findStepTemplate(ctx, req.SourceID)
	if err != nil {
		return model.FormStep{}, err
	}
	return CopyStep(tpl), nil
}

// AddReusableSection resolves a display section template and returns a
// linked instance with fresh identifiers.
func (c *StoreReuseClient) AddReusableSection(ctx context.Context, _ *model.RequestContext, _ string, req AttachRequest) (model.DisplaySection, error) {
	tpl, err := c.findSectionTemplate(ctx, req.SourceID)
	if err != nil {
		return model.DisplaySection{}, err
	}
	out := CopySection(tpl)
	out.IsLinkedToSource = req.LinkMode == LinkModeLink
	return out, nil
}

func (c *StoreReuseClient) findFieldTemplate(ctx context.Context, id string) (model.FormField, error) {
	if c.forms == nil {
		return model.FormField{}, model.NewNotFoundError("no form template source configured")
	}
	configs, err := c.forms.GetAll(ctx, "")
	if err != nil {
		return model.FormField{}, err
	}
	for _, cfg := range configs {
		for _, step := range cfg.Steps {
			for _, f := range step.Fields {
				if f.IsReusable && f.ID == id {
					return f, nil
				}
			}
		}
	}
	return model.FormField{}, model.NewNotFoundError(fmt.Sprintf("reusable field %q not found", id))
}

func (c *StoreReuseClient) findStepTemplate(ctx context.Context, id string) (model.FormStep, error) {
	if c.forms == nil {
		return model.FormStep{}, model.NewNotFoundError("no form template source configured")
	}
	configs, err := c.forms.GetAll(ctx, "")
	if err != nil {
		return model.FormStep{}, err
	}
	for _, cfg := range configs {
		for _, step := range cfg.Steps {
			if step.IsReusable && step.ID == id {
				return step, nil
			}
		}
	}
	return model.FormStep{}, model.NewNotFoundError(fmt.Sprintf("reusable step %q not found", id))
}

func (c *StoreReuseClient) findSectionTemplate(ctx context.Context, id string) (model.DisplaySection, error) {
	if c.displays == nil {
		return model.DisplaySection{}, model.NewNotFoundError("no display template source configured")
	}
	configs, err := c.displays.GetAll(ctx, "")
	if err != nil {
		return model.DisplaySection{}, err
	}
	for _, cfg := range configs {
		if found, ok := findReusableSection(cfg.Sections, id); ok {
			return found, nil
		}
	}
	return model.DisplaySection{}, model.NewNotFoundError(fmt.Sprintf("reusable section %q not found", id))
}

func findReusableSection(sections []model.DisplaySection, id string) (model.DisplaySection, bool) {
	for _, section := range sections {
		if section.IsReusable && section.ID == id {
			return section, true
		}
		if found, ok := findReusableSection(section.SubSections, id); ok {
			return found, true
		}
	}
	return model.DisplaySection{}, false
}

// AttachReusableField attaches a field template to a step of a persisted
// configuration and saves the updated document.
func (s *FormService) AttachReusableField(ctx context.Context, rctx *model.RequestContext, configID, stepID string, req AttachRequest) (model.FormConfiguration, error) {
	cfg, err := s.store.GetByID(ctx, configID)
	if err != nil {
		return model.FormConfiguration{}, err
	}

	stepIdx := -1
	for i := range cfg.Steps {
		if cfg.Steps[i].ID == stepID {
			stepIdx = i
			break
		}
	}
	if stepIdx < 0 {
		return model.FormConfiguration{}, model.NewNotFoundError(fmt.Sprintf("step %q not found in configuration %q", stepID, configID))
	}

	if req.LinkMode != LinkModeCopy && req.LinkMode != LinkModeLink {
		return model.FormConfiguration{}, model.NewBadRequestError(fmt.Sprintf("linkMode %q is not supported", req.LinkMode))
	}
	attached, err := s.reuse.AddReusableField(ctx, rctx, stepID, req)
	if err != nil {
		return model.FormConfiguration{}, err
	}

	step := &cfg.Steps[stepIdx]
	step.Fields = append(step.Fields, attached)
	if len(step.FieldOrder) > 0 {
		step.FieldOrder = append(step.FieldOrder, attached.ID)
	}
	refreshFormCompatibility(ctx, s.meta, &cfg)

	if err := s.store.Update(ctx, cfg); err != nil {
		return model.FormConfiguration{}, err
	}
	return cfg, nil
}

// AttachReusableStep attaches a step template to a persisted
// configuration and saves the updated document.
func (s *FormService) AttachReusableStep(ctx context.Context, rctx *model.RequestContext, configID string, req AttachRequest) (model.FormConfiguration, error) {
	cfg, err := s.store.GetByID(ctx, configID)
	if err != nil {
		return model.FormConfiguration{}, err
	}

	if req.LinkMode != LinkModeCopy && req.LinkMode != LinkModeLink {
		return model.FormConfiguration{}, model.NewBadRequestError(fmt.Sprintf("linkMode %q is not supported", req.LinkMode))
	}
	attached, err := s.reuse.AddReusableStep(ctx, rctx, configID, req)
	if err != nil {
		return model.FormConfiguration{}, err
	}

	attached.Order = len(cfg.Steps)
	cfg.Steps = append(cfg.Steps, attached)
	if len(cfg.StepOrder) > 0 {
		cfg.StepOrder = append(cfg.StepOrder, attached.ID)
	}
	refreshFormCompatibility(ctx, s.meta, &cfg)

	if err := s.store.Update(ctx, cfg); err != nil {
		return model.FormConfiguration{}, err
	}
	return cfg, nil
}

// AttachReusableSection attaches a display section template to a
// persisted configuration and saves the updated document.
func (s *DisplayService) AttachReusableSection(ctx context.Context, rctx *model.RequestContext, configID string, req AttachRequest) (model.DisplayConfiguration, error) {
	cfg, err := s.store.GetByID(ctx, configID)
	if err != nil {
		return model.DisplayConfiguration{}, err
	}

	if req.LinkMode != LinkModeCopy && req.LinkMode != LinkModeLink {
		return model.DisplayConfiguration{}, model.NewBadRequestError(fmt.Sprintf("linkMode %q is not supported", req.LinkMode))
	}
	attached, err := s.reuse.AddReusableSection(ctx, rctx, configID, req)
	if err != nil {
		return model.DisplayConfiguration{}, err
	}

	cfg.Sections = append(cfg.Sections, attached)
	if len(cfg.SectionOrder) > 0 {
		cfg.SectionOrder = append(cfg.SectionOrder, attached.ID)
	}
	refreshDisplayCompatibility(ctx, s.meta, &cfg)

	if err := s.store.Update(ctx, cfg); err != nil {
		return model.DisplayConfiguration{}, err
	}
	return cfg, nil
}
