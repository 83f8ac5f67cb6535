package pid

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"github.com/arklim/record-registry/internal/core/port"
)

const (
	pidAlphabet = "0123456789abcdefghjkmnpqrstvwxyz"
	pidLength   = 10
)

// LocalProvider mints short random identifiers without an external authority.
// Register and Delete only track state, which is enough for deployments that
// resolve identifiers through this service itself.
type LocalProvider struct {
	mu     sync.Mutex
	minted map[string]uuid.UUID
}

// NewLocalProvider constructs the in-process identifier provider.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{minted: make(map[string]uuid.UUID)}
}

// Mint generates a new identifier bound to the entity.
func (p *LocalProvider) Mint(_ context.Context, entityID uuid.UUID, _ map[string]any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for attempt := 0; attempt < 10; attempt++ {
		value, err := randomPID()
		if err != nil {
			return "", err
		}
		if _, taken := p.minted[value]; taken {
			continue
		}
		p.minted[value] = entityID
		return value, nil
	}
	return "", fmt.Errorf("mint pid: alphabet exhausted")
}

// Register marks an identifier as resolvable. Unknown identifiers are
// adopted, which keeps the provider usable after a restart.
func (p *LocalProvider) Register(_ context.Context, pid string) error {
	if pid == "" {
		return fmt.Errorf("register pid: empty identifier")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, known := p.minted[pid]; !known {
		p.minted[pid] = uuid.Nil
	}
	return nil
}

// Delete retires an identifier.
func (p *LocalProvider) Delete(_ context.Context, pid string) error {
	if pid == "" {
		return fmt.Errorf("delete pid: empty identifier")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.minted, pid)
	return nil
}

func randomPID() (string, error) {
	buf := make([]byte, pidLength)
	max := big.NewInt(int64(len(pidAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("mint pid: %w", err)
		}
		buf[i] = pidAlphabet[n.Int64()]
	}
	return string(buf[:5]) + "-" + string(buf[5:]), nil
}

var _ port.PIDProvider = (*LocalProvider)(nil)
