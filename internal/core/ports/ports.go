package ports

import (
	"context"
	"image"
	"io"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/pkg/vision"
)

// Emulator defines the port for driving emulator instances
type Emulator interface {
	// IsAvailable reports whether the emulator control binary can be run
	IsAvailable() bool

	// ListInstances returns every known instance
	ListInstances(ctx context.Context) ([]domain.Instance, error)

	// Screenshot captures the current screen of an instance
	Screenshot(ctx context.Context, index int) (image.Image, error)

	// Tap sends a touch at device coordinates
	Tap(ctx context.Context, index int, x, y int) error

	// Start boots an instance
	Start(ctx context.Context, index int) error

	// Stop shuts an instance down
	Stop(ctx context.Context, index int) error
}

// TemplateRepository defines the port for template image storage
type TemplateRepository interface {
	// Dir returns the directory templates live in
	Dir() string

	// Exists checks if a template file is on disk
	Exists(name string) bool

	// Load returns the decoded template, cached until invalidated
	Load(name string) (*vision.Gray, error)

	// List returns the .png files present in the directory
	List(ctx context.Context) ([]string, error)

	// Import writes content under a catalog name and records its metadata
	Import(ctx context.Context, name, originalName string, content io.Reader) (*domain.TemplateAsset, bool, error)

	// Asset returns metadata recorded for an imported template
	Asset(ctx context.Context, name string) (*domain.TemplateAsset, error)

	// Invalidate drops a cached template
	Invalidate(name string)

	// Reset drops every cached template
	Reset()
}

// HistoryRepository defines the port for launch history persistence
type HistoryRepository interface {
	// Save records a finished launch
	Save(ctx context.Context, record domain.LaunchRecord) error

	// List returns launches newest first; empty instance means all
	List(ctx context.Context, instance string, limit int) ([]domain.LaunchRecord, error)

	// Summaries aggregates launches per instance
	Summaries(ctx context.Context) ([]domain.InstanceSummary, error)
}

// Notifier defines the port for announcing finished launches
type Notifier interface {
	Notify(ctx context.Context, record domain.LaunchRecord) error
}
