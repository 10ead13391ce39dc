package store

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/reservd/internal/model"
)

// MemStore is an in-process snapshot store for tests and ephemeral runs.
// Documents are deep-copied on the way in and out so callers never share
// state with the store.
type MemStore struct {
	mu    sync.Mutex
	slots []model.Slot
	holds model.HoldDocument
}

func NewMemStore() *MemStore {
	return &MemStore{holds: model.NewHoldDocument()}
}

func (s *MemStore) LoadSlots(_ context.Context) ([]model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Slot, len(s.slots))
	copy(out, s.slots)
	return out, nil
}

func (s *MemStore) SaveSlots(_ context.Context, slots []model.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = make([]model.Slot, len(slots))
	copy(s.slots, slots)
	return nil
}

func (s *MemStore) LoadHolds(_ context.Context) (model.HoldDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyHoldDocument(s.holds), nil
}

func (s *MemStore) SaveHolds(_ context.Context, doc model.HoldDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holds = copyHoldDocument(doc)
	return nil
}

func (s *MemStore) Ping(_ context.Context) error {
	return nil
}

func copyHoldDocument(doc model.HoldDocument) model.HoldDocument {
	out := model.NewHoldDocument()
	for k, v := range doc.Holds {
		out.Holds[k] = v
	}
	for k, v := range doc.Confirmed {
		out.Confirmed[k] = v
	}
	return out
}
