package port

import (
	"context"

	"github.com/google/uuid"
)

// PIDProvider mints and registers persistent identifiers with the external
// identifier authority. Status transitions (new, reserved, registered) are
// tracked on the owning entity rows.
type PIDProvider interface {
	Mint(ctx context.Context, entityID uuid.UUID, data map[string]any) (string, error)
	Register(ctx context.Context, pid string) error
	Delete(ctx context.Context, pid string) error
}
