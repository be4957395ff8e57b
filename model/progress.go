package model

import "time"

// Submission progress statuses.
const (
	ProgressInProgress = "InProgress"
	ProgressPaused     = "Paused"
	ProgressCompleted  = "Completed"
	ProgressAbandoned  = "Abandoned"
)

// SubmissionProgress records a user's position in a form wizard session.
//
// Invariant: AllStepsData for any step index the user has visited contains
// an entry for every field defined on that step, with defaults or nil
// filled in. Partial maps are never persisted; this is what makes resume
// after reload safe.
type SubmissionProgress struct {
	ID                  string         `json:"id"`
	FormConfigurationID string         `json:"formConfigurationId"`
	UserID              string         `json:"userId"`
	EntityTypeName      string         `json:"entityTypeName"`

	// EntityID is set when the session edits an existing entity.
	EntityID string `json:"entityId,omitempty"`

	CurrentStepIndex int            `json:"currentStepIndex"`
	CurrentStepData  map[string]any `json:"currentStepData,omitempty"`

	// AllStepsData is keyed by stringified step index, matching the
	// persisted allStepsDataJson contract.
	AllStepsData map[string]map[string]any `json:"allStepsData,omitempty"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Version supports optimistic locking in the progress store.
	Version int `json:"version"`
}

// Terminal reports whether the session can no longer be mutated.
func (p *SubmissionProgress) Terminal() bool {
	return p.Status == ProgressCompleted || p.Status == ProgressAbandoned
}

// ProgressSummary is the lightweight listing form of a progress record,
// used for "resume a draft" pickers.
type ProgressSummary struct {
	ID                  string    `json:"id"`
	FormConfigurationID string    `json:"formConfigurationId"`
	EntityTypeName      string    `json:"entityTypeName"`
	EntityID            string    `json:"entityId,omitempty"`
	CurrentStepIndex    int       `json:"currentStepIndex"`
	Status              string    `json:"status"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Summary projects the full record into its listing form.
func (p *SubmissionProgress) Summary() ProgressSummary {
	return ProgressSummary{
		ID:                  p.ID,
		FormConfigurationID: p.FormConfigurationID,
		EntityTypeName:      p.EntityTypeName,
		EntityID:            p.EntityID,
		CurrentStepIndex:    p.CurrentStepIndex,
		Status:              p.Status,
		UpdatedAt:           p.UpdatedAt,
	}
}
