package rules

import (
	"context"
	"errors"
	"sync"
)

// DefaultStorageKey is the well-known key the serialized rule collection lives under
const DefaultStorageKey = "ruleweave_rules"

// ErrStorageUnavailable is returned by a Storage that has no persistent medium.
// The RuleStore treats it as "no rules yet" on read and drops writes.
var ErrStorageUnavailable = errors.New("rule storage unavailable")

// Storage is a capability over a single serialized blob.
// Read returns a nil slice (and no error) when nothing has been written yet.
type Storage interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, blob []byte) error
}

// MemoryStorage keeps the blob in process memory
// Thread-safe for concurrent access
type MemoryStorage struct {
	blob []byte
	mu   sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Read returns a copy of the stored blob
func (s *MemoryStorage) Read(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.blob == nil {
		return nil, nil
	}
	out := make([]byte, len(s.blob))
	copy(out, s.blob)
	return out, nil
}

// Write replaces the stored blob with a copy of blob
func (s *MemoryStorage) Write(_ context.Context, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blob = make([]byte, len(blob))
	copy(s.blob, blob)
	return nil
}

// UnavailableStorage stands in for an execution context without persistent storage
type UnavailableStorage struct{}

func (UnavailableStorage) Read(context.Context) ([]byte, error) {
	return nil, ErrStorageUnavailable
}

func (UnavailableStorage) Write(context.Context, []byte) error {
	return ErrStorageUnavailable
}
