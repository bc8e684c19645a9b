package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/liamcoop/ruleweave/internal/logger"
)

var (
	// ErrRuleNotFound signals that no rule with the requested ID exists
	ErrRuleNotFound = errors.New("rule not found")

	// ErrVersionNotFound signals a version index outside the rule's history
	ErrVersionNotFound = errors.New("rule version not found")

	// ErrCorruptCollection is returned when the persisted blob cannot be decoded
	ErrCorruptCollection = errors.New("stored rule collection is corrupt")
)

// RuleStore manages the persisted rule collection and its version history
type RuleStore interface {
	// List every stored rule in persisted order
	ListAll(ctx context.Context) ([]*Rule, error)

	// Get a rule by ID
	Get(ctx context.Context, id string) (*Rule, error)

	// Save creates or updates a rule, appending a version when the code changed
	Save(ctx context.Context, input RuleInput) (*Rule, error)

	// Delete a rule and its whole history
	Delete(ctx context.Context, id string) error

	// Revert appends a new version restoring the code of versions[versionIndex]
	Revert(ctx context.Context, id string, versionIndex int) (*Rule, error)
}

// BlobRuleStore implements RuleStore as a full read-modify-write over one
// serialized blob. It keeps no cache between calls; the mutex only serializes
// callers within this process.
type BlobRuleStore struct {
	storage Storage
	now     func() time.Time
	newID   func() string
	mu      sync.Mutex
}

// StoreOption customizes a BlobRuleStore
type StoreOption func(*BlobRuleStore)

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) StoreOption {
	return func(s *BlobRuleStore) {
		s.now = now
	}
}

// WithIDGenerator overrides how IDs are minted for new rules
func WithIDGenerator(newID func() string) StoreOption {
	return func(s *BlobRuleStore) {
		s.newID = newID
	}
}

// NewBlobRuleStore creates a rule store on top of the given storage
func NewBlobRuleStore(storage Storage, opts ...StoreOption) *BlobRuleStore {
	s := &BlobRuleStore{
		storage: storage,
		now:     time.Now,
		newID:   NewRuleID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRuleID mints a time-ordered rule identifier
func NewRuleID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "rule_" + uuid.NewString()
	}
	return "rule_" + id.String()
}

// ListAll returns every stored rule. Unavailable or empty storage yields an empty slice.
func (s *BlobRuleStore) ListAll(ctx context.Context) ([]*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Rule, len(collection))
	for i, r := range collection {
		out[i] = r.clone()
	}
	return out, nil
}

// Get retrieves a rule by ID, returning ErrRuleNotFound for unknown IDs
func (s *BlobRuleStore) Get(ctx context.Context, id string) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(collection, id)
	if idx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return collection[idx].clone(), nil
}

// Save inserts a new rule or updates an existing one.
// A new version is appended only when RuleCode differs from the stored code.
func (s *BlobRuleStore) Save(ctx context.Context, input RuleInput) (*Rule, error) {
	// Stored text must survive a JSON round trip unchanged
	input.Name = strings.ToValidUTF8(input.Name, "\uFFFD")
	input.NaturalLanguage = strings.ToValidUTF8(input.NaturalLanguage, "\uFFFD")
	input.RuleCode = strings.ToValidUTF8(input.RuleCode, "\uFFFD")

	s.mu.Lock()
	defer s.mu.Unlock()

	collection, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	id := input.ID
	if id == "" {
		id = s.newID()
	}

	var saved *Rule
	if idx := indexOf(collection, id); idx != -1 {
		saved = collection[idx].clone()
		saved.Name = input.Name
		saved.NaturalLanguage = input.NaturalLanguage
		saved.UpdatedAt = now
		if saved.RuleCode != input.RuleCode || len(saved.Versions) == 0 {
			saved.RuleCode = input.RuleCode
			saved.Versions = append(saved.Versions, Version{RuleCode: input.RuleCode, Timestamp: now})
		}
		collection[idx] = saved
		logger.Debug("rule updated", "rule_id", id, "versions", len(saved.Versions))
	} else {
		saved = &Rule{
			ID:              id,
			Name:            input.Name,
			NaturalLanguage: input.NaturalLanguage,
			RuleCode:        input.RuleCode,
			CreatedAt:       now,
			UpdatedAt:       now,
			Versions:        []Version{{RuleCode: input.RuleCode, Timestamp: now}},
		}
		collection = append(collection, saved)
		logger.Debug("rule created", "rule_id", id)
	}

	if err := s.persist(ctx, collection); err != nil {
		return nil, err
	}
	return saved.clone(), nil
}

// Delete removes a rule. Deleting an unknown ID is a no-op and leaves storage untouched.
func (s *BlobRuleStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, err := s.load(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(collection, id)
	if idx == -1 {
		return nil
	}

	remaining := make([]*Rule, 0, len(collection)-1)
	remaining = append(remaining, collection[:idx]...)
	remaining = append(remaining, collection[idx+1:]...)

	if err := s.persist(ctx, remaining); err != nil {
		return err
	}
	logger.Debug("rule deleted", "rule_id", id)
	return nil
}

// Revert restores the code of an earlier version by appending a reversion
// version. History is never rewound.
func (s *BlobRuleStore) Revert(ctx context.Context, id string, versionIndex int) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(collection, id)
	if idx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	rule := collection[idx].clone()
	if versionIndex < 0 || versionIndex >= len(rule.Versions) {
		return nil, fmt.Errorf("%w: rule %s has no version %d", ErrVersionNotFound, id, versionIndex)
	}

	now := s.now()
	target := rule.Versions[versionIndex]
	from := versionIndex
	rule.RuleCode = target.RuleCode
	rule.UpdatedAt = now
	rule.Versions = append(rule.Versions, Version{
		RuleCode:            target.RuleCode,
		Timestamp:           now,
		IsReversion:         true,
		RevertedFromVersion: &from,
	})
	collection[idx] = rule

	if err := s.persist(ctx, collection); err != nil {
		return nil, err
	}
	logger.Debug("rule reverted", "rule_id", id, "from_version", versionIndex)
	return rule.clone(), nil
}

func (s *BlobRuleStore) load(ctx context.Context) ([]*Rule, error) {
	blob, err := s.storage.Read(ctx)
	if errors.Is(err, ErrStorageUnavailable) {
		logger.Debug("rule storage unavailable, treating collection as empty")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rule collection: %w", err)
	}
	if len(blob) == 0 {
		return nil, nil
	}

	var collection []*Rule
	if err := json.Unmarshal(blob, &collection); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCollection, err)
	}
	for i, r := range collection {
		if r == nil {
			return nil, fmt.Errorf("%w: null entry at index %d", ErrCorruptCollection, i)
		}
	}
	return collection, nil
}

func (s *BlobRuleStore) persist(ctx context.Context, collection []*Rule) error {
	if collection == nil {
		collection = []*Rule{}
	}
	blob, err := json.Marshal(collection)
	if err != nil {
		return fmt.Errorf("failed to encode rule collection: %w", err)
	}

	err = s.storage.Write(ctx, blob)
	if errors.Is(err, ErrStorageUnavailable) {
		logger.DroppedWrites.Add(1)
		logger.Warn("rule storage unavailable, dropping write", "rules", len(collection))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to write rule collection: %w", err)
	}
	return nil
}

func indexOf(collection []*Rule, id string) int {
	for i, r := range collection {
		if r.ID == id {
			return i
		}
	}
	return -1
}
