// Package file persists agent state as one YAML document per agent.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"stonkminer/internal/agent"
	"stonkminer/internal/genome"
	"stonkminer/internal/storage"
)

// AgentStateStoreOptions configures an AgentStateStore.
type AgentStateStoreOptions struct {
	// Dir holds the state files. Defaults to "output".
	Dir     string
	Catalog *genome.Catalog
	Logger  *zap.Logger
}

// AgentStateStore implements storage.AgentStateStore on the filesystem.
type AgentStateStore struct {
	dir     string
	catalog *genome.Catalog
	logger  *zap.Logger
}

// NewAgentStateStore creates a file-backed state store.
func NewAgentStateStore(opts AgentStateStoreOptions) *AgentStateStore {
	if opts.Dir == "" {
		opts.Dir = "output"
	}
	if opts.Catalog == nil {
		opts.Catalog = genome.DefaultCatalog()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &AgentStateStore{dir: opts.Dir, catalog: opts.Catalog, logger: opts.Logger}
}

// Compile-time interface check.
var _ storage.AgentStateStore = (*AgentStateStore)(nil)

// Path returns the file holding key.
func (s *AgentStateStore) Path(key string) string {
	return filepath.Join(s.dir, key+"-state.yml")
}

// Load reads the state stored under key. Fields missing from the file keep
// their defaults.
func (s *AgentStateStore) Load(_ context.Context, key string) (*agent.State, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read state %s: %w", key, err)
	}

	doc := defaultDoc()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", storage.ErrCorruptState, key, err)
	}

	return decodeState(s.catalog, key, doc)
}

// Save writes the state through a temp file and rename so readers never see
// a partial document.
func (s *AgentStateStore) Save(_ context.Context, st *agent.State) error {
	if st == nil || st.Genome == nil {
		return storage.ErrInvalidInput
	}

	data, err := yaml.Marshal(encodeState(st))
	if err != nil {
		return fmt.Errorf("encode state %s: %w", st.Key(), err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state %s: %w", st.Key(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync state %s: %w", st.Key(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state %s: %w", st.Key(), err)
	}

	if err := os.Rename(tmpName, s.Path(st.Key())); err != nil {
		return fmt.Errorf("rename state %s: %w", st.Key(), err)
	}

	s.logger.Debug("state saved", zap.String("key", st.Key()), zap.Stringer("phase", st.Phase))
	return nil
}
