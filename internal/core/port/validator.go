package port

import (
	"context"

	"github.com/arklim/record-registry/internal/core/domain"
)

// MetadataValidator validates payload data. It always returns best-effort
// clean data alongside the report; the caller decides whether a non-empty
// report is fatal (publish) or merely reported (draft saves).
type MetadataValidator interface {
	Validate(ctx context.Context, data map[string]any) (map[string]any, domain.ValidationReport, error)
}
