package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kamal-hamza/autostart/internal/core/domain"
)

// ManifestName is the metadata file kept next to the templates
const ManifestName = ".manifest.json"

// AssetManifest stores metadata of imported templates in a JSON file
type AssetManifest struct {
	path   string
	mu     sync.RWMutex
	cache  map[string]domain.TemplateAsset
	loaded bool
}

func NewAssetManifest(dir string) *AssetManifest {
	return &AssetManifest{
		path:  filepath.Join(dir, ManifestName),
		cache: make(map[string]domain.TemplateAsset),
	}
}

// Load reads the manifest from disk
func (m *AssetManifest) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

func (m *AssetManifest) loadLocked() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.loaded = true
			return nil
		}
		return err
	}

	cache := make(map[string]domain.TemplateAsset)
	if err := json.Unmarshal(data, &cache); err != nil {
		return fmt.Errorf("failed to parse %s: %w", ManifestName, err)
	}
	m.cache = cache
	m.loaded = true
	return nil
}

// Put records an asset and persists the manifest
func (m *AssetManifest) Put(asset domain.TemplateAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		if err := m.loadLocked(); err != nil {
			return err
		}
	}

	m.cache[asset.Filename] = asset
	return m.flushLocked()
}

// flushLocked writes cache to disk
func (m *AssetManifest) flushLocked() error {
	data, err := json.MarshalIndent(m.cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0644)
}

// Get returns the metadata recorded for filename
func (m *AssetManifest) Get(filename string) (*domain.TemplateAsset, error) {
	m.mu.Lock()
	if !m.loaded {
		if err := m.loadLocked(); err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}
	asset, ok := m.cache[filename]
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, filename)
	}
	return &asset, nil
}
