package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arklim/record-registry/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string                   `json:"error"`
	TraceID string                   `json:"trace_id,omitempty"`
	Issues  []domain.ValidationIssue `json:"issues,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports per-dependency readiness.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DraftWriteRequest carries a draft payload from the client.
type DraftWriteRequest struct {
	Data map[string]any `json:"data" binding:"required"`
}

// ParentPayload is the embedded parent view.
type ParentPayload struct {
	ID        uuid.UUID `json:"id"`
	PID       string    `json:"pid"`
	PIDStatus string    `json:"pid_status"`
	Revision  int64     `json:"revision"`
}

// FilesPayload is the files manifest view.
type FilesPayload struct {
	Enabled        bool                        `json:"enabled"`
	Locked         bool                        `json:"locked"`
	DefaultPreview *string                     `json:"default_preview,omitempty"`
	Entries        map[string]domain.FileEntry `json:"entries,omitempty"`
}

// DraftPayload is the API view of a draft.
type DraftPayload struct {
	ID            uuid.UUID                `json:"id"`
	ParentID      uuid.UUID                `json:"parent_id"`
	Index         *int                     `json:"index,omitempty"`
	PID           string                   `json:"pid"`
	PIDStatus     string                   `json:"pid_status"`
	Revision      int64                    `json:"revision"`
	ForkVersionID *int64                   `json:"fork_version_id,omitempty"`
	ExpiresAt     *time.Time               `json:"expires_at,omitempty"`
	Data          map[string]any           `json:"data"`
	Files         FilesPayload             `json:"files"`
	MediaFiles    FilesPayload             `json:"media_files"`
	Parent        *ParentPayload           `json:"parent,omitempty"`
	Issues        []domain.ValidationIssue `json:"issues,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// RecordPayload is the API view of a published record.
type RecordPayload struct {
	ID         uuid.UUID      `json:"id"`
	ParentID   uuid.UUID      `json:"parent_id"`
	Index      int            `json:"index"`
	PID        string         `json:"pid"`
	PIDStatus  string         `json:"pid_status"`
	Revision   int64          `json:"revision"`
	Data       map[string]any `json:"data"`
	Files      FilesPayload   `json:"files"`
	MediaFiles FilesPayload   `json:"media_files"`
	Parent     *ParentPayload `json:"parent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ListResponse wraps a result page.
type ListResponse[T any] struct {
	Hits  []T `json:"hits"`
	Total int `json:"total"`
}

// CleanupResponse reports a cleanup sweep.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

func filesPayload(st domain.FilesState) FilesPayload {
	return FilesPayload{
		Enabled:        st.Enabled,
		Locked:         st.Locked,
		DefaultPreview: st.DefaultPreview,
		Entries:        st.Entries,
	}
}

func parentPayload(parent *domain.Parent) *ParentPayload {
	if parent == nil {
		return nil
	}
	return &ParentPayload{
		ID:        parent.ID,
		PID:       parent.PID,
		PIDStatus: string(parent.PIDStatus),
		Revision:  parent.Revision,
	}
}

func draftPayload(draft *domain.Draft, issues []domain.ValidationIssue) DraftPayload {
	return DraftPayload{
		ID:            draft.ID,
		ParentID:      draft.ParentID,
		Index:         draft.Index,
		PID:           draft.PID,
		PIDStatus:     string(draft.PIDStatus),
		Revision:      draft.Revision,
		ForkVersionID: draft.ForkVersionID,
		ExpiresAt:     draft.ExpiresAt,
		Data:          draft.Data,
		Files:         filesPayload(draft.Files),
		MediaFiles:    filesPayload(draft.MediaFiles),
		Parent:        parentPayload(draft.Parent),
		Issues:        issues,
		CreatedAt:     draft.CreatedAt,
		UpdatedAt:     draft.UpdatedAt,
	}
}

func recordPayload(record *domain.Record) RecordPayload {
	return RecordPayload{
		ID:         record.ID,
		ParentID:   record.ParentID,
		Index:      record.Index,
		PID:        record.PID,
		PIDStatus:  string(record.PIDStatus),
		Revision:   record.Revision,
		Data:       record.Data,
		Files:      filesPayload(record.Files),
		MediaFiles: filesPayload(record.MediaFiles),
		Parent:     parentPayload(record.Parent),
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}
