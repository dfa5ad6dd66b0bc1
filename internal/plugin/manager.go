package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ayusman/posepad/internal/log"
)

// ManifestName is the file each plugin directory must contain.
const ManifestName = "plugin.json"

var (
	// ErrPluginNotFound is returned when a requested plugin cannot be found.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrInvalidManifest is returned for manifests without a name or executable.
	ErrInvalidManifest = errors.New("invalid plugin manifest")
)

// Manager keeps the set of plugins found under one directory.
type Manager struct {
	dir string

	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewManager creates a Manager rooted at dir. Nothing is read until Discover.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:     dir,
		plugins: make(map[string]*Plugin),
	}
}

// Discover rescans the plugin directory, replacing the known set. Every
// immediate subdirectory holding a manifest is a plugin; broken manifests are
// logged and skipped. A missing directory yields an empty set.
func (m *Manager) Discover() error {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		entries, err = nil, nil
	}
	if err != nil {
		return fmt.Errorf("read plugin dir: %w", err)
	}

	found := make(map[string]*Plugin, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p, err := load(filepath.Join(m.dir, entry.Name()))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			log.Warn("skipping plugin", "dir", entry.Name(), "error", err)
			continue
		}
		found[p.Manifest.Name] = p
		log.Debug("discovered plugin", "name", p.Manifest.Name, "version", p.Manifest.Version, "actions", p.Manifest.Actions)
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()
	return nil
}

// load reads the manifest in dir.
func load(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if manifest.Name == "" || manifest.Executable == "" {
		return nil, fmt.Errorf("%w: name and executable are required", ErrInvalidManifest)
	}

	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, manifest.Executable),
	}, nil
}

// Get returns the plugin with the given manifest name.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.plugins[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}

// List returns the known plugins ordered by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	out := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, p)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.Name < out[j].Manifest.Name })
	return out
}

// PluginDir returns the directory Discover scans.
func (m *Manager) PluginDir() string {
	return m.dir
}
