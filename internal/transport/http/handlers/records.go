package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/usecase"
)

const (
	userIDHeader    = "X-User-ID"
	userRolesHeader = "X-User-Roles"
)

// RecordHandler exposes the draft/record lifecycle over HTTP.
type RecordHandler struct {
	records *usecase.RecordService
}

// NewRecordHandler constructs the handler.
func NewRecordHandler(records *usecase.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

// RegisterRoutes wires the lifecycle endpoints onto the group.
func (h *RecordHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/records", h.CreateDraft)
	r.GET("/records", h.SearchRecords)
	r.GET("/records/:id", h.ReadRecord)
	r.GET("/records/:id/latest", h.ReadLatest)
	r.GET("/records/:id/versions", h.SearchVersions)
	r.POST("/records/:id/versions", h.NewVersion)
	r.GET("/records/:id/draft", h.ReadDraft)
	r.POST("/records/:id/draft", h.EditRecord)
	r.PUT("/records/:id/draft", h.UpdateDraft)
	r.DELETE("/records/:id/draft", h.DeleteDraft)
	r.POST("/records/:id/draft/actions/publish", h.PublishDraft)
	r.POST("/records/:id/draft/actions/files-import", h.ImportFiles)
	r.GET("/user/records", h.SearchDrafts)
}

// CreateDraft creates a new item as a draft of its first version.
func (h *RecordHandler) CreateDraft(c *gin.Context) {
	var req DraftWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid draft payload"))
		return
	}

	draft, report, err := h.records.Create(c.Request.Context(), identityFromRequest(c), req.Data)
	if err != nil {
		h.respondError(c, err, "failed to create draft")
		return
	}

	c.JSON(http.StatusCreated, draftPayload(draft, report.Issues))
}

// UpdateDraft overwrites the draft payload with soft validation.
func (h *RecordHandler) UpdateDraft(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req DraftWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid draft payload"))
		return
	}

	draft, report, err := h.records.UpdateDraft(c.Request.Context(), identityFromRequest(c), id, req.Data, expectedRevision(c))
	if err != nil {
		h.respondError(c, err, "failed to update draft")
		return
	}

	c.JSON(http.StatusOK, draftPayload(draft, report.Issues))
}

// EditRecord resolves or creates the editable draft of a published record.
func (h *RecordHandler) EditRecord(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	draft, err := h.records.Edit(c.Request.Context(), identityFromRequest(c), id)
	if err != nil {
		h.respondError(c, err, "failed to edit record")
		return
	}

	c.JSON(http.StatusCreated, draftPayload(draft, nil))
}

// PublishDraft turns the draft into its published record.
func (h *RecordHandler) PublishDraft(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	record, err := h.records.Publish(c.Request.Context(), identityFromRequest(c), id, expectedRevision(c))
	if err != nil {
		h.respondError(c, err, "failed to publish draft")
		return
	}

	c.JSON(http.StatusAccepted, recordPayload(record))
}

// NewVersion creates or returns the draft for the next version.
func (h *RecordHandler) NewVersion(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	draft, err := h.records.NewVersion(c.Request.Context(), identityFromRequest(c), id)
	if err != nil {
		h.respondError(c, err, "failed to create new version")
		return
	}

	c.JSON(http.StatusCreated, draftPayload(draft, nil))
}

// DeleteDraft discards the draft.
func (h *RecordHandler) DeleteDraft(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.records.DeleteDraft(c.Request.Context(), identityFromRequest(c), id, expectedRevision(c)); err != nil {
		h.respondError(c, err, "failed to delete draft")
		return
	}

	c.Status(http.StatusNoContent)
}

// ReadRecord resolves a published record.
func (h *RecordHandler) ReadRecord(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	record, err := h.records.Read(c.Request.Context(), identityFromRequest(c), id)
	if err != nil {
		h.respondError(c, err, "failed to read record")
		return
	}

	c.JSON(http.StatusOK, recordPayload(record))
}

// ReadLatest resolves any identifier in the lineage to its latest published
// version.
func (h *RecordHandler) ReadLatest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	record, err := h.records.ReadLatest(c.Request.Context(), identityFromRequest(c), id)
	if err != nil {
		h.respondError(c, err, "failed to read latest version")
		return
	}

	c.JSON(http.StatusOK, recordPayload(record))
}

// ReadDraft resolves an active draft.
func (h *RecordHandler) ReadDraft(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	draft, err := h.records.ReadDraft(c.Request.Context(), identityFromRequest(c), id)
	if err != nil {
		h.respondError(c, err, "failed to read draft")
		return
	}

	c.JSON(http.StatusOK, draftPayload(draft, nil))
}

// ImportFiles copies files from the latest published version into the draft.
func (h *RecordHandler) ImportFiles(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	draft, err := h.records.ImportFiles(c.Request.Context(), identityFromRequest(c), id)
	if err != nil {
		h.respondError(c, err, "failed to import files")
		return
	}

	c.JSON(http.StatusOK, draftPayload(draft, nil))
}

// SearchVersions lists the published versions of a lineage. The identifier
// may name the parent or any of its records.
func (h *RecordHandler) SearchVersions(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	identity := identityFromRequest(c)

	parentID := id
	if record, err := h.records.Read(c.Request.Context(), identity, id); err == nil {
		parentID = record.ParentID
	}

	records, err := h.records.SearchVersions(c.Request.Context(), identity, parentID)
	if err != nil {
		h.respondError(c, err, "failed to list versions")
		return
	}

	c.JSON(http.StatusOK, recordList(records))
}

// SearchRecords lists published records.
func (h *RecordHandler) SearchRecords(c *gin.Context) {
	limit, offset := pagination(c)
	records, err := h.records.Search(c.Request.Context(), identityFromRequest(c), limit, offset)
	if err != nil {
		h.respondError(c, err, "failed to list records")
		return
	}

	c.JSON(http.StatusOK, recordList(records))
}

// SearchDrafts lists the caller's active drafts.
func (h *RecordHandler) SearchDrafts(c *gin.Context) {
	limit, offset := pagination(c)
	drafts, err := h.records.SearchDrafts(c.Request.Context(), identityFromRequest(c), limit, offset)
	if err != nil {
		h.respondError(c, err, "failed to list drafts")
		return
	}

	hits := make([]DraftPayload, 0, len(drafts))
	for i := range drafts {
		hits = append(hits, draftPayload(&drafts[i], nil))
	}
	c.JSON(http.StatusOK, ListResponse[DraftPayload]{Hits: hits, Total: len(hits)})
}

func (h *RecordHandler) respondError(c *gin.Context, err error, fallback string) {
	var vErr *usecase.ValidationError
	if errors.As(err, &vErr) {
		resp := NewErrorResponse(c, "validation failed")
		resp.Issues = vErr.Report.Issues
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	respondMappedError(c, err, fallback)
}

func recordList(records []domain.Record) ListResponse[RecordPayload] {
	hits := make([]RecordPayload, 0, len(records))
	for i := range records {
		hits = append(hits, recordPayload(&records[i]))
	}
	return ListResponse[RecordPayload]{Hits: hits, Total: len(hits)}
}

func identityFromRequest(c *gin.Context) domain.Identity {
	identity := domain.Identity{ID: c.GetHeader(userIDHeader)}
	if roles := c.GetHeader(userRolesHeader); roles != "" {
		for _, role := range strings.Split(roles, ",") {
			if trimmed := strings.TrimSpace(role); trimmed != "" {
				identity.Roles = append(identity.Roles, trimmed)
			}
		}
	}
	return identity
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid identifier"))
		return uuid.Nil, false
	}
	return id, true
}

// expectedRevision reads the optional If-Match concurrency guard.
func expectedRevision(c *gin.Context) *int64 {
	raw := strings.Trim(c.GetHeader("If-Match"), `"`)
	if raw == "" {
		return nil
	}
	revision, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &revision
}

func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("size", "25"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 25
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}
