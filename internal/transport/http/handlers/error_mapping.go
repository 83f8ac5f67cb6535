package handlers

import (
	"errors"
	"net/http"

	"github.com/arklim/record-registry/internal/repository"
	"github.com/arklim/record-registry/internal/usecase"
	"github.com/gin-gonic/gin"
)

type errorCase struct {
	err     error
	status  int
	message string
}

// errorCases maps the service and repository sentinels to HTTP responses.
// Order matters: revision mismatch must resolve before the generic
// already-exists conflict.
var errorCases = []errorCase{
	{usecase.ErrPermissionDenied, http.StatusForbidden, "insufficient permissions"},
	{usecase.ErrNoPublishedVersion, http.StatusNotFound, "no published version"},
	{usecase.ErrStorageLocked, http.StatusConflict, "files are locked"},
	{usecase.ErrFileStateInvalid, http.StatusBadRequest, "invalid files state"},
	{repository.ErrRevisionMismatch, http.StatusConflict, "revision conflict"},
	{repository.ErrAlreadyExists, http.StatusConflict, "already exists"},
	{repository.ErrNotFound, http.StatusNotFound, "not found"},
}

// respondMappedError resolves err against the sentinel table, falling back to
// an internal error with the given message.
func respondMappedError(c *gin.Context, err error, fallback string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range errorCases {
		if errors.Is(err, cs.err) {
			c.JSON(cs.status, NewErrorResponse(c, cs.message))
			return
		}
	}

	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, fallback))
}
