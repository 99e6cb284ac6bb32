package memory

import (
	"context"
	"sync"

	"stonkminer/internal/agent"
	"stonkminer/internal/storage"
)

// AgentStateStore is an in-memory implementation of storage.AgentStateStore.
// Every saved snapshot is retained in order.
type AgentStateStore struct {
	mu        sync.RWMutex
	snapshots map[string][]*agent.State // keyed by agent key
}

// NewAgentStateStore creates a new in-memory agent state store.
func NewAgentStateStore() *AgentStateStore {
	return &AgentStateStore{
		snapshots: make(map[string][]*agent.State),
	}
}

// Load returns the latest snapshot of key. Returns ErrNotFound if none saved.
func (s *AgentStateStore) Load(_ context.Context, key string) (*agent.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.snapshots[key]
	if len(snaps) == 0 {
		return nil, storage.ErrNotFound
	}
	return snaps[len(snaps)-1].Clone(), nil
}

// Save stores a copy of st.
func (s *AgentStateStore) Save(_ context.Context, st *agent.State) error {
	if st == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[st.Key()] = append(s.snapshots[st.Key()], st.Clone())
	return nil
}

// Snapshots returns copies of every saved state of key, oldest first.
func (s *AgentStateStore) Snapshots(key string) []*agent.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*agent.State, 0, len(s.snapshots[key]))
	for _, st := range s.snapshots[key] {
		out = append(out, st.Clone())
	}
	return out
}

var _ storage.AgentStateStore = (*AgentStateStore)(nil)
