// Package server exposes the launcher over HTTP.
package server

import (
	"context"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/core/ports"
	"github.com/kamal-hamza/autostart/internal/core/services"
	"github.com/kamal-hamza/autostart/internal/logger"
)

// Launcher is the part of the task manager the handlers drive
type Launcher interface {
	Start(ctx context.Context, name string, maxRetries int, onComplete services.CompletionFunc) (domain.TaskSnapshot, error)
	Stop(name string) error
	Status(name string) (domain.TaskSnapshot, bool)
	Snapshots() []domain.TaskSnapshot
	Info() services.ModuleInfo
}

// TemplateChecker reports template completeness
type TemplateChecker interface {
	Check(ctx context.Context) (*domain.CheckReport, error)
}

type Handler struct {
	launcher  Launcher
	history   ports.HistoryRepository
	templates TemplateChecker

	log *logger.Logger
}

// NewHandler wires the handlers; history may be nil when the database is unavailable
func NewHandler(launcher Launcher, history ports.HistoryRepository, templates TemplateChecker, log *logger.Logger) *Handler {
	log.Debug().Msg("http handler created")
	return &Handler{
		launcher:  launcher,
		history:   history,
		templates: templates,
		log:       log,
	}
}
