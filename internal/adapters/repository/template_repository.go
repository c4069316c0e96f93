package repository

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/pkg/vision"
)

// TemplateRepository implements the TemplateRepository port using the file system.
// Decoded templates are cached until invalidated.
type TemplateRepository struct {
	dir      string
	manifest *AssetManifest

	mu    sync.RWMutex
	cache map[string]*vision.Gray
}

// NewTemplateRepository creates a new file-based template repository
func NewTemplateRepository(dir string) *TemplateRepository {
	return &TemplateRepository{
		dir:      dir,
		manifest: NewAssetManifest(dir),
		cache:    make(map[string]*vision.Gray),
	}
}

// Dir returns the templates directory
func (r *TemplateRepository) Dir() string {
	return r.dir
}

func (r *TemplateRepository) path(name string) string {
	return filepath.Join(r.dir, filepath.Base(name))
}

// Exists checks if a template file is on disk
func (r *TemplateRepository) Exists(name string) bool {
	info, err := os.Stat(r.path(name))
	return err == nil && !info.IsDir()
}

// Load decodes a template, serving repeated loads from the cache
func (r *TemplateRepository) Load(name string) (*vision.Gray, error) {
	r.mu.RLock()
	g, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return g, nil
	}

	g, err := vision.Load(r.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, name)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTemplate, err)
	}

	r.mu.Lock()
	r.cache[name] = g
	r.mu.Unlock()

	return g, nil
}

// List returns the .png files present in the directory
func (r *TemplateRepository) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTemplatesDirEmpty, r.dir)
		}
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	return names, nil
}

// Import writes content under name. It returns false when the file on disk
// already has identical content.
func (r *TemplateRepository) Import(ctx context.Context, name, originalName string, content io.Reader) (*domain.TemplateAsset, bool, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read template source: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || format != "png" {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrInvalidTemplate, originalName)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	asset := domain.TemplateAsset{
		Filename:     name,
		OriginalName: filepath.Base(originalName),
		Hash:         hash,
		Width:        cfg.Width,
		Height:       cfg.Height,
		Size:         int64(len(data)),
		ImportedAt:   time.Now(),
	}

	dest := r.path(name)
	if existing, err := fileHash(dest); err == nil && existing == hash {
		if prev, err := r.manifest.Get(name); err == nil {
			return prev, false, nil
		}
		return &asset, false, r.manifest.Put(asset)
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return nil, false, fmt.Errorf("failed to create templates directory: %w", err)
	}

	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return nil, false, fmt.Errorf("failed to write template: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return nil, false, fmt.Errorf("failed to write template: %w", err)
	}

	r.Invalidate(name)

	if err := r.manifest.Put(asset); err != nil {
		return &asset, true, fmt.Errorf("template saved but metadata failed: %w", err)
	}

	return &asset, true, nil
}

// Asset returns metadata recorded by Import
func (r *TemplateRepository) Asset(ctx context.Context, name string) (*domain.TemplateAsset, error) {
	return r.manifest.Get(name)
}

// Invalidate drops a cached template
func (r *TemplateRepository) Invalidate(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, name)
}

// Reset drops every cached template
func (r *TemplateRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*vision.Gray)
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
