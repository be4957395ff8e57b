package builder

import (
	"context"

	"github.com/google/uuid"

	"github.com/kingscribe/chancery/model"
)

// Link modes for attaching a reusable template.
const (
	LinkModeCopy = "Copy"
	LinkModeLink = "Link"
)

// AttachRequest is the wire payload for the backend's reusable-attach
// endpoints.
type AttachRequest struct {
	SourceID string `json:"sourceId"`
	LinkMode string `json:"linkMode"`
}

// ReuseClient resolves a reusable template into an attachable instance.
// Compatibility checks happen after attach, against the target
// configuration's entity metadata.
type ReuseClient interface {
	AddReusableField(ctx context.Context, rctx *model.RequestContext, parentStepID string, req AttachRequest) (model.FormField, error)
	AddReusableStep(ctx context.Context, rctx *model.RequestContext, parentConfigurationID string, req AttachRequest) (model.FormStep, error)
	AddReusableSection(ctx context.Context, rctx *model.RequestContext, parentConfigurationID string, req AttachRequest) (model.DisplaySection, error)
}

// CopyField deep-clones a field template as an independent copy: fresh
// identifiers, provenance recorded, compatibility markers cleared.
func CopyField(tpl model.FormField) model.FormField {
	out := tpl
	out.ID = uuid.New().String()
	out.SourceFieldID = tpl.ID
	out.IsLinkedToSource = false
	out.HasCompatibilityIssues = false
	out.CompatibilityIssues = nil

	out.Validations = make([]model.FieldValidation, len(tpl.Validations))
	for i, v := range tpl.Validations {
		out.Validations[i] = v
		out.Validations[i].ID = uuid.New().String()
	}
	if tpl.DependencyCondition != nil {
		cond := *tpl.DependencyCondition
		cond.Conditions = append([]model.DependencyCondition(nil), tpl.DependencyCondition.Conditions...)
		out.DependencyCondition = &cond
	}
	return out
}

// CopyStep deep-clones a step template, copying every field and
// remapping the field order onto the new field ids.
func CopyStep(tpl model.FormStep) model.FormStep {
	out := tpl
	out.ID = uuid.New().String()
	out.SourceStepID = tpl.ID
	out.IsReusable = tpl.IsReusable

	idMap := make(map[string]string, len(tpl.Fields))
	out.Fields = make([]model.FormField, len(tpl.Fields))
	for i, f := range tpl.Fields {
		copied := CopyField(f)
		idMap[f.ID] = copied.ID
		out.Fields[i] = copied
	}
	out.FieldOrder = remapOrder(tpl.FieldOrder, idMap)

	out.Conditions = make([]model.StepCondition, len(tpl.Conditions))
	for i, c := range tpl.Conditions {
		out.Conditions[i] = c
		out.Conditions[i].ID = uuid.New().String()
		out.Conditions[i].Conditions.Conditions = append([]model.DependencyCondition(nil), c.Conditions.Conditions...)
	}
	return out
}

// CopyDisplayField deep-clones a display field template.
func CopyDisplayField(tpl model.DisplayField) model.DisplayField {
	out := tpl
	out.ID = uuid.New().String()
	out.FieldGUID = uuid.New().String()
	out.SourceFieldID = tpl.ID
	out.IsLinkedToSource = false
	out.HasCompatibilityIssues = false
	out.CompatibilityIssues = nil
	return out
}

// CopySection deep-clones a section template including nested fields
// and sub-sections, remapping order lists onto the fresh identifiers.
func CopySection(tpl model.DisplaySection) model.DisplaySection {
	out := tpl
	out.ID = uuid.New().String()
	out.SectionGUID = uuid.New().String()
	out.SourceSectionID = tpl.ID
	out.IsLinkedToSource = false
	out.HasCompatibilityIssues = false
	out.CompatibilityIssues = nil
	out.ParentSectionID = ""

	idMap := make(map[string]string, len(tpl.Fields))
	out.Fields = make([]model.DisplayField, len(tpl.Fields))
	for i, f := range tpl.Fields {
		copied := CopyDisplayField(f)
		idMap[f.ID] = copied.ID
		idMap[f.FieldGUID] = copied.FieldGUID
		out.Fields[i] = copied
	}
	out.FieldOrder = remapOrder(tpl.FieldOrder, idMap)

	out.SubSections = make([]model.DisplaySection, len(tpl.SubSections))
	for i, sub := range tpl.SubSections {
		out.SubSections[i] = CopySection(sub)
	}
	return out
}

// LinkField attaches a field template in Link mode. An unpersisted
// parent cannot be linked server-side yet, so it falls back to a local
// copy flagged as linked; the flag survives until the parent is saved.
func LinkField(ctx context.Context, rctx *model.RequestContext, client ReuseClient, parentStepID string, tpl model.FormField, parentPersisted bool) (model.FormField, error) {
	if !parentPersisted {
		out := CopyField(tpl)
		out.IsLinkedToSource = true
		return out, nil
	}
	return client.AddReusableField(ctx, rctx, parentStepID, AttachRequest{
		SourceID: tpl.ID,
		LinkMode: LinkModeLink,
	})
}

// LinkStep attaches a step template in Link mode with the same
// unpersisted-parent fallback as LinkField.
func LinkStep(ctx context.Context, rctx *model.RequestContext, client ReuseClient, parentConfigurationID string, tpl model.FormStep, parentPersisted bool) (model.FormStep, error) {
	if !parentPersisted {
		// Steps carry no linked flag of their own; provenance lives in
		// SourceStepID, which CopyStep already records.
		return CopyStep(tpl), nil
	}
	return client.AddReusableStep(ctx, rctx, parentConfigurationID, AttachRequest{
		SourceID: tpl.ID,
		LinkMode: LinkModeLink,
	})
}

// LinkSection attaches a display section template in Link mode with the
// same unpersisted-parent fallback.
func LinkSection(ctx context.Context, rctx *model.RequestContext, client ReuseClient, parentConfigurationID string, tpl model.DisplaySection, parentPersisted bool) (model.DisplaySection, error) {
	if !parentPersisted {
		out := CopySection(tpl)
		out.IsLinkedToSource = true
		return out, nil
	}
	return client.AddReusableSection(ctx, rctx, parentConfigurationID, AttachRequest{
		SourceID: tpl.ID,
		LinkMode: LinkModeLink,
	})
}

func remapOrder(order []string, idMap map[string]string) []string {
	if len(order) == 0 {
		return nil
	}
	out := make([]string, 0, len(order))
	for _, id := range order {
		if mapped, ok := idMap[id]; ok {
			out = append(out, mapped)
		}
	}
	return out
}
