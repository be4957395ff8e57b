// Package wizard drives multi-step form sessions: loading a form
// configuration, collecting step data, gating navigation on conditions,
// and submitting the normalized payload to the content backend on the
// final step.
package wizard

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingscribe/chancery/internal/condition"
	"github.com/kingscribe/chancery/internal/configstore"
	"github.com/kingscribe/chancery/internal/entity"
	"github.com/kingscribe/chancery/internal/normalize"
	"github.com/kingscribe/chancery/model"
)

// Engine manages the lifecycle of wizard sessions.
type Engine struct {
	forms      configstore.FormStore
	progress   ProgressStore
	registry   *entity.Registry
	metadata   entity.MetadataProvider
	evaluator  *condition.Evaluator
	normalizer *normalize.Normalizer
	log        *zap.Logger

	// inflight guards each session against overlapping mutations. A
	// second Next/Previous/Save for the same session fails with CONFLICT
	// instead of racing the first.
	mu       sync.Mutex
	inflight map[string]bool
}

// NewEngine creates a new wizard engine.
func NewEngine(
	forms configstore.FormStore,
	progress ProgressStore,
	registry *entity.Registry,
	metadata entity.MetadataProvider,
	log *zap.Logger,
) *Engine {
	return &Engine{
		forms:      forms,
		progress:   progress,
		registry:   registry,
		metadata:   metadata,
		evaluator:  condition.NewEvaluator(log),
		normalizer: normalize.NewNormalizer(log),
		log:        log,
		inflight:   make(map[string]bool),
	}
}

// StartInput selects the load mode: ProgressID resumes an existing
// session, EntityID (with EntityTypeName) edits an existing entity, and
// EntityTypeName alone starts fresh.
type StartInput struct {
	EntityTypeName string `json:"entityTypeName,omitempty"`
	EntityID       string `json:"entityId,omitempty"`
	ProgressID     string `json:"progressId,omitempty"`
}

// FieldView is one field with its visibility and effective requiredness
// resolved against the session's data.
type FieldView struct {
	model.FormField
	Visible  bool `json:"visible"`
	Required bool `json:"required"`
}

// StepView describes the session's current step for rendering.
type StepView struct {
	ProgressID          string         `json:"progressId"`
	FormConfigurationID string         `json:"formConfigurationId"`
	EntityTypeName      string         `json:"entityTypeName"`
	EntityID            string         `json:"entityId,omitempty"`
	Status              string         `json:"status"`
	StepIndex           int            `json:"stepIndex"`
	StepCount           int            `json:"stepCount"`
	StepName            string         `json:"stepName"`
	Title               string         `json:"title,omitempty"`
	Description         string         `json:"description,omitempty"`
	Fields              []FieldView    `json:"fields"`
	Data                map[string]any `json:"data"`
}

// NextResult is the outcome of forward navigation: either the next
// step's view or, past the last step, the completed submission.
type NextResult struct {
	Completed bool           `json:"completed"`
	Step      *StepView      `json:"step,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Entity    map[string]any `json:"entity,omitempty"`
	Progress  model.ProgressSummary `json:"progress"`
}

// Start opens a session in one of the three load modes and persists the
// initial progress record.
func (e *Engine) Start(ctx context.Context, rctx *model.RequestContext, input StartInput) (*StepView, error) {
	switch {
	case input.ProgressID != "":
		return e.resume(ctx, rctx, input.ProgressID)
	case input.EntityID != "":
		if input.EntityTypeName == "" {
			return nil, model.NewBadRequestError("entityTypeName is required when editing an entity")
		}
		return e.startEdit(ctx, rctx, input.EntityTypeName, input.EntityID)
	case input.EntityTypeName != "":
		return e.startFresh(ctx, rctx, input.EntityTypeName)
	default:
		return nil, model.NewBadRequestError("provide a progressId, an entity to edit, or an entity type")
	}
}

// resume restores a persisted session. Every visited step map is
// re-normalized so each declared field is present; persisted JSON is
// never trusted to be complete.
func (e *Engine) resume(ctx context.Context, rctx *model.RequestContext, progressID string) (*StepView, error) {
	progress, cfg, err := e.loadSession(ctx, rctx, progressID)
	if err != nil {
		return nil, err
	}

	steps := cfg.OrderedSteps()
	for key, data := range progress.AllStepsData {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(steps) {
			continue
		}
		progress.AllStepsData[key] = normalize.StepData(&steps[idx], data)
	}
	if progress.CurrentStepIndex >= 0 && progress.CurrentStepIndex < len(steps) {
		progress.CurrentStepData = normalize.StepData(&steps[progress.CurrentStepIndex], progress.CurrentStepData)
	}
	progress.Status = model.ProgressInProgress

	if err := e.progress.Update(ctx, progress); err != nil {
		return nil, err
	}
	progress.Version++
	return e.stepView(&cfg, &progress), nil
}

// startEdit opens a session over an existing entity, seeding every
// step's data from the entity via case-insensitive field lookup.
func (e *Engine) startEdit(ctx context.Context, rctx *model.RequestContext, entityType, entityID string) (*StepView, error) {
	cfg, err := e.forms.GetDefault(ctx, entityType)
	if err != nil {
		return nil, err
	}

	repo, err := e.registry.Repository(entityType)
	if err != nil {
		return nil, err
	}
	entityData, err := repo.GetByID(ctx, rctx, entityID)
	if err != nil {
		return nil, err
	}

	steps := cfg.OrderedSteps()
	all := make(map[string]map[string]any, len(steps))
	for i := range steps {
		all[strconv.Itoa(i)] = normalize.StepData(&steps[i], entityData)
	}

	progress := e.newProgress(rctx, cfg, entityType)
	progress.EntityID = entityID
	progress.AllStepsData = all
	progress.CurrentStepData = cloneStep(all["0"])

	if err := e.progress.Create(ctx, progress); err != nil {
		return nil, err
	}
	return e.stepView(&cfg, &progress), nil
}

// startFresh opens a session with step 0 at defaults. Later steps are
// normalized lazily on first visit.
func (e *Engine) startFresh(ctx context.Context, rctx *model.RequestContext, entityType string) (*StepView, error) {
	cfg, err := e.forms.GetDefault(ctx, entityType)
	if err != nil {
		return nil, err
	}

	steps := cfg.OrderedSteps()
	if len(steps) == 0 {
		return nil, model.NewBadRequestError(
			fmt.Sprintf("configuration %q has no steps", cfg.ID),
		)
	}

	progress := e.newProgress(rctx, cfg, entityType)
	progress.CurrentStepData = normalize.StepData(&steps[0], nil)

	if err := e.progress.Create(ctx, progress); err != nil {
		return nil, err
	}
	return e.stepView(&cfg, &progress), nil
}

func (e *Engine) newProgress(rctx *model.RequestContext, cfg model.FormConfiguration, entityType string) model.SubmissionProgress {
	now := time.Now().UTC()
	return model.SubmissionProgress{
		ID:                  uuid.New().String(),
		FormConfigurationID: cfg.ID,
		UserID:              rctx.SubjectID,
		EntityTypeName:      entityType,
		CurrentStepIndex:    0,
		AllStepsData:        make(map[string]map[string]any),
		Status:              model.ProgressInProgress,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Get returns the current step view without mutating the session.
func (e *Engine) Get(ctx context.Context, rctx *model.RequestContext, progressID string) (*StepView, error) {
	progress, cfg, err := e.loadSession(ctx, rctx, progressID)
	if err != nil {
		return nil, err
	}
	return e.stepView(&cfg, &progress), nil
}

// ListDrafts returns the caller's resumable sessions, optionally
// filtered by entity type.
func (e *Engine) ListDrafts(ctx context.Context, rctx *model.RequestContext, entityType string) ([]model.ProgressSummary, error) {
	records, err := e.progress.FindByUser(ctx, rctx.SubjectID, entityType)
	if err != nil {
		return nil, err
	}
	summaries := make([]model.ProgressSummary, 0, len(records))
	for i := range records {
		summaries = append(summaries, records[i].Summary())
	}
	return summaries, nil
}

// Next validates the current step, checks its completion conditions,
// commits the step data, and advances to the next reachable step. Past
// the last reachable step it submits the normalized payload to the
// backend.
//
// Forward navigation is atomic: if persistence fails, the stored index
// and committed data are untouched.
func (e *Engine) Next(ctx context.Context, rctx *model.RequestContext, progressID string, stepData map[string]any) (*NextResult, error) {
	release, err := e.acquire(progressID)
	if err != nil {
		return nil, err
	}
	defer release()

	progress, cfg, err := e.loadSession(ctx, rctx, progressID)
	if err != nil {
		return nil, err
	}
	steps := cfg.OrderedSteps()
	if progress.CurrentStepIndex >= len(steps) {
		return nil, model.NewInternalError()
	}
	step := &steps[progress.CurrentStepIndex]

	if stepData != nil {
		progress.CurrentStepData = stepData
	}

	// 1. Validate visible required fields. Condition-hidden fields are
	// skipped but keep their stored values.
	if details := e.validateStep(step, progress.CurrentStepData, progress.AllStepsData); len(details) > 0 {
		return nil, model.NewValidationError(details)
	}

	// 2. Evaluate active completion conditions against the would-be
	// committed state.
	committed := normalize.StepData(step, progress.CurrentStepData)
	merged := mergeAll(progress.AllStepsData, progress.CurrentStepIndex, committed)
	for _, sc := range step.Conditions {
		if sc.ConditionType != model.StepConditionCompletion || !sc.IsActive {
			continue
		}
		if !e.evaluator.Evaluate(&sc.Conditions, committed, merged) {
			return nil, model.NewStepConditionError(sc.ErrorMessage)
		}
	}

	progress.AllStepsData = merged

	// 3. Find the next reachable step. Steps whose active Entry
	// conditions fail are skipped, their fields never validated.
	nextIdx := progress.CurrentStepIndex + 1
	for nextIdx < len(steps) && !e.stepReachable(&steps[nextIdx], merged[strconv.Itoa(nextIdx)], merged) {
		nextIdx++
	}

	// Past the last reachable step: flatten, normalize, submit.
	if nextIdx >= len(steps) {
		return e.complete(ctx, rctx, &cfg, progress, committed)
	}

	// 4. Advance: seed the next step from any prior visit, persist
	// before the caller sees the new index.
	nextStep := &steps[nextIdx]
	progress.CurrentStepIndex = nextIdx
	progress.CurrentStepData = normalize.StepData(nextStep, merged[strconv.Itoa(nextIdx)])
	progress.Status = model.ProgressInProgress

	if err := e.progress.Update(ctx, progress); err != nil {
		return nil, err
	}
	progress.Version++

	return &NextResult{
		Step:     e.stepView(&cfg, &progress),
		Progress: progress.Summary(),
	}, nil
}

// complete runs the final submission: persist the terminal status,
// normalize the flattened data, then create or update the entity. The
// terminal marker is written before anything reaches the backend, so a
// failed persist surfaces as a recoverable save error while the session
// is still resumable and no entity exists. A failed submit reopens the
// session for retry.
func (e *Engine) complete(
	ctx context.Context,
	rctx *model.RequestContext,
	cfg *model.FormConfiguration,
	progress model.SubmissionProgress,
	committed map[string]any,
) (*NextResult, error) {
	flat := flatten(progress.AllStepsData)

	var meta *model.EntityMetadata
	if m, err := e.metadata.GetEntityMetadata(ctx, progress.EntityTypeName); err == nil {
		meta = &m
	}

	payload := e.normalizer.Normalize(normalize.Input{
		EntityTypeName: progress.EntityTypeName,
		Configuration:  cfg,
		RawValue:       flat,
		Metadata:       meta,
	})

	repo, err := e.registry.Repository(progress.EntityTypeName)
	if err != nil {
		return nil, err
	}

	progress.CurrentStepData = committed
	progress.Status = model.ProgressCompleted
	if err := e.progress.Update(ctx, progress); err != nil {
		return nil, err
	}
	progress.Version++

	var saved map[string]any
	if progress.EntityID != "" {
		payload["id"] = progress.EntityID
		saved, err = repo.Update(ctx, rctx, payload)
	} else {
		saved, err = repo.Create(ctx, rctx, payload)
	}
	if err != nil {
		// The backend saw nothing; reopen the session so the submission
		// can be retried.
		progress.Status = model.ProgressInProgress
		if revertErr := e.progress.Update(ctx, progress); revertErr != nil {
			e.log.Warn("failed to reopen session after submit failure",
				zap.String("progress_id", progress.ID),
				zap.Error(revertErr))
		}
		return nil, err
	}

	return &NextResult{
		Completed: true,
		Payload:   payload,
		Entity:    saved,
		Progress:  progress.Summary(),
	}, nil
}

// Previous commits the current step without validation and moves back
// one step, reseeding from the target's stored data.
func (e *Engine) Previous(ctx context.Context, rctx *model.RequestContext, progressID string, stepData map[string]any) (*StepView, error) {
	release, err := e.acquire(progressID)
	if err != nil {
		return nil, err
	}
	defer release()

	progress, cfg, err := e.loadSession(ctx, rctx, progressID)
	if err != nil {
		return nil, err
	}
	if progress.CurrentStepIndex == 0 {
		return nil, model.NewBadRequestError("already on the first step")
	}
	steps := cfg.OrderedSteps()
	step := &steps[progress.CurrentStepIndex]

	if stepData != nil {
		progress.CurrentStepData = stepData
	}

	committed := normalize.StepData(step, progress.CurrentStepData)
	progress.AllStepsData = mergeAll(progress.AllStepsData, progress.CurrentStepIndex, committed)

	// Walk back over Entry-gated steps that are not reachable; step 0 is
	// always a valid landing point.
	prevIdx := progress.CurrentStepIndex - 1
	for prevIdx > 0 && !e.stepReachable(&steps[prevIdx], progress.AllStepsData[strconv.Itoa(prevIdx)], progress.AllStepsData) {
		prevIdx--
	}
	prevStep := &steps[prevIdx]
	progress.CurrentStepIndex = prevIdx
	progress.CurrentStepData = normalize.StepData(prevStep, progress.AllStepsData[strconv.Itoa(prevIdx)])

	if err := e.progress.Update(ctx, progress); err != nil {
		return nil, err
	}
	progress.Version++
	return e.stepView(&cfg, &progress), nil
}

// SaveDraft persists the session with status Paused without validation
// or index changes.
func (e *Engine) SaveDraft(ctx context.Context, rctx *model.RequestContext, progressID string, stepData map[string]any) (model.ProgressSummary, error) {
	release, err := e.acquire(progressID)
	if err != nil {
		return model.ProgressSummary{}, err
	}
	defer release()

	progress, cfg, err := e.loadSession(ctx, rctx, progressID)
	if err != nil {
		return model.ProgressSummary{}, err
	}
	steps := cfg.OrderedSteps()
	step := &steps[progress.CurrentStepIndex]

	if stepData != nil {
		progress.CurrentStepData = stepData
	}
	committed := normalize.StepData(step, progress.CurrentStepData)
	progress.CurrentStepData = committed
	progress.AllStepsData = mergeAll(progress.AllStepsData, progress.CurrentStepIndex, committed)
	progress.Status = model.ProgressPaused

	if err := e.progress.Update(ctx, progress); err != nil {
		return model.ProgressSummary{}, err
	}
	progress.Version++
	return progress.Summary(), nil
}

// Abandon terminalizes a session so it stops appearing in draft lists.
func (e *Engine) Abandon(ctx context.Context, rctx *model.RequestContext, progressID string) (model.ProgressSummary, error) {
	release, err := e.acquire(progressID)
	if err != nil {
		return model.ProgressSummary{}, err
	}
	defer release()

	progress, _, err := e.loadSession(ctx, rctx, progressID)
	if err != nil {
		return model.ProgressSummary{}, err
	}
	progress.Status = model.ProgressAbandoned

	if err := e.progress.Update(ctx, progress); err != nil {
		return model.ProgressSummary{}, err
	}
	progress.Version++
	return progress.Summary(), nil
}

// stepReachable evaluates a step's active Entry conditions against the
// session data. An unreachable step is skipped during navigation.
func (e *Engine) stepReachable(step *model.FormStep, current map[string]any, all map[string]map[string]any) bool {
	for _, sc := range step.Conditions {
		if sc.ConditionType != model.StepConditionEntry || !sc.IsActive {
			continue
		}
		if !e.evaluator.Evaluate(&sc.Conditions, current, all) {
			return false
		}
	}
	return true
}

// loadSession fetches a progress record and its configuration, checking
// ownership and liveness.
func (e *Engine) loadSession(ctx context.Context, rctx *model.RequestContext, progressID string) (model.SubmissionProgress, model.FormConfiguration, error) {
	progress, err := e.progress.GetByID(ctx, progressID)
	if err != nil {
		return model.SubmissionProgress{}, model.FormConfiguration{}, err
	}
	if progress.UserID != rctx.SubjectID {
		return model.SubmissionProgress{}, model.FormConfiguration{}, model.NewForbiddenError(
			"progress belongs to a different user",
		)
	}
	if progress.Terminal() {
		return model.SubmissionProgress{}, model.FormConfiguration{}, model.NewSessionNotActiveError(
			fmt.Sprintf("session is %s", strings.ToLower(progress.Status)),
		)
	}

	cfg, err := e.forms.GetByID(ctx, progress.FormConfigurationID)
	if err != nil {
		return model.SubmissionProgress{}, model.FormConfiguration{}, err
	}
	return progress, cfg, nil
}

// validateStep collects required-field errors for visible fields.
func (e *Engine) validateStep(step *model.FormStep, current map[string]any, all map[string]map[string]any) []model.FieldError {
	var details []model.FieldError
	for _, f := range step.OrderedFields() {
		if f.FieldName == "" {
			continue
		}
		if !e.evaluator.Evaluate(f.DependencyCondition, current, all) {
			continue
		}
		if !fieldRequired(f) {
			continue
		}
		if isBlank(current[f.FieldName]) {
			details = append(details, model.FieldError{
				Field:   f.FieldName,
				Code:    "required",
				Message: fmt.Sprintf("%s is required", fieldLabel(f)),
			})
		}
	}
	return details
}

func (e *Engine) stepView(cfg *model.FormConfiguration, progress *model.SubmissionProgress) *StepView {
	steps := cfg.OrderedSteps()
	idx := progress.CurrentStepIndex
	if idx < 0 || idx >= len(steps) {
		idx = 0
	}
	step := steps[idx]

	fields := step.OrderedFields()
	views := make([]FieldView, 0, len(fields))
	for _, f := range fields {
		visible := e.evaluator.Evaluate(f.DependencyCondition, progress.CurrentStepData, progress.AllStepsData)
		views = append(views, FieldView{
			FormField: f,
			Visible:   visible,
			Required:  visible && fieldRequired(f),
		})
	}

	return &StepView{
		ProgressID:          progress.ID,
		FormConfigurationID: cfg.ID,
		EntityTypeName:      progress.EntityTypeName,
		EntityID:            progress.EntityID,
		Status:              progress.Status,
		StepIndex:           idx,
		StepCount:           len(steps),
		StepName:            step.StepName,
		Title:               step.Title,
		Description:         step.Description,
		Fields:              views,
		Data:                progress.CurrentStepData,
	}
}

// acquire takes the per-session mutation guard.
func (e *Engine) acquire(progressID string) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[progressID] {
		return nil, model.NewConflictError("another operation is in progress for this session")
	}
	e.inflight[progressID] = true
	return func() {
		e.mu.Lock()
		delete(e.inflight, progressID)
		e.mu.Unlock()
	}, nil
}

// fieldRequired honors the IsRequired flag and active Required
// validations; other validation types are authoring placeholders.
func fieldRequired(f model.FormField) bool {
	if f.IsRequired {
		return true
	}
	for _, v := range f.Validations {
		if v.IsActive && strings.EqualFold(v.ValidationType, "Required") {
			return true
		}
	}
	return false
}

func fieldLabel(f model.FormField) string {
	if f.Label != "" {
		return f.Label
	}
	return f.FieldName
}

// isBlank mirrors the condition evaluator's emptiness rule: nil and the
// empty string only.
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// mergeAll returns a copy of all with the given step's committed data
// set. Callers mutate the copy, never the stored maps.
func mergeAll(all map[string]map[string]any, idx int, committed map[string]any) map[string]map[string]any {
	merged := make(map[string]map[string]any, len(all)+1)
	for k, v := range all {
		merged[k] = v
	}
	merged[strconv.Itoa(idx)] = committed
	return merged
}

// flatten folds all step maps into one, ascending step order, later
// steps overriding duplicate keys.
func flatten(all map[string]map[string]any) map[string]any {
	indices := make([]int, 0, len(all))
	for k := range all {
		if idx, err := strconv.Atoi(k); err == nil {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)

	flat := make(map[string]any)
	for _, idx := range indices {
		for k, v := range all[strconv.Itoa(idx)] {
			flat[k] = v
		}
	}
	return flat
}

func cloneStep(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
