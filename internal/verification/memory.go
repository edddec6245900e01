package verification

import (
	"context"
	"sync"

	"github.com/antonminaichev/linkcard/internal/types/verification"
)

// MemoryRepository keeps sessions in process memory. It only serializes
// writers inside one process.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]verification.Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]verification.Session)}
}

func (r *MemoryRepository) Get(ctx context.Context, number string) (verification.Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[number]
	return s, ok, nil
}

func (r *MemoryRepository) CompareAndSwap(ctx context.Context, next verification.Session, expected int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[next.Number].Version != expected {
		return false, nil
	}
	next.Version = expected + 1
	r.sessions[next.Number] = next
	return true, nil
}
