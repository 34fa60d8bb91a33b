package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
)

// Ensure DraftStore implements the interface.
var _ driven.DraftStore = (*DraftStore)(nil)

// DraftStore is an in-memory implementation of driven.DraftStore.
type DraftStore struct {
	mu        sync.RWMutex
	snapshots map[string][]driven.DraftSnapshot
	latest    map[string]*domain.ProtocolDraft
}

// NewDraftStore creates a new in-memory draft store.
func NewDraftStore() *DraftStore {
	return &DraftStore{
		snapshots: make(map[string][]driven.DraftSnapshot),
		latest:    make(map[string]*domain.ProtocolDraft),
	}
}

// SaveSnapshot records a deep copy of draft.
func (s *DraftStore) SaveSnapshot(_ context.Context, runID string, stage domain.Stage, draft *domain.ProtocolDraft) error {
	if draft == nil {
		return domain.ErrInvalidInput
	}
	snap := draft.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.ID] = append(s.snapshots[snap.ID], driven.DraftSnapshot{RunID: runID, Stage: stage, Draft: snap})
	s.latest[snap.ProtocolID] = snap
	return nil
}

// ListSnapshots returns a draft's snapshots in save order.
func (s *DraftStore) ListSnapshots(_ context.Context, draftID string) ([]driven.DraftSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.snapshots[draftID]
	out := make([]driven.DraftSnapshot, len(snaps))
	for i, snap := range snaps {
		out[i] = driven.DraftSnapshot{RunID: snap.RunID, Stage: snap.Stage, Draft: snap.Draft.Clone()}
	}
	return out, nil
}

// Latest returns the most recent snapshot for a protocol.
func (s *DraftStore) Latest(_ context.Context, protocolID string) (*domain.ProtocolDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	draft, ok := s.latest[protocolID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return draft.Clone(), nil
}
