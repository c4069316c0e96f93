package services

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/core/ports"
)

// ReadmeName is the guide written into the templates directory
const ReadmeName = "README.md"

//go:embed readme.md.tmpl
var readmeSource string

var readmeTemplate = template.Must(template.New("readme").Parse(readmeSource))

type TemplateService struct {
	repo ports.TemplateRepository
}

func NewTemplateService(repo ports.TemplateRepository) *TemplateService {
	return &TemplateService{repo: repo}
}

// Dir returns the templates directory
func (s *TemplateService) Dir() string {
	return s.repo.Dir()
}

// RenderReadme returns the README listing every catalog file by category
func RenderReadme() (string, error) {
	groups := domain.Groups()
	view := make([]struct {
		Title string
		Files []string
	}, len(groups))
	for i, g := range groups {
		view[i].Title = g.Title
		view[i].Files = g.Files
	}

	var buf bytes.Buffer
	if err := readmeTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render readme: %w", err)
	}
	return buf.String(), nil
}

// Setup creates the templates directory and (re)writes its README
func (s *TemplateService) Setup(ctx context.Context) (string, error) {
	dir := s.repo.Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create templates directory: %w", err)
	}

	readme, err := RenderReadme()
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(filepath.Join(dir, ReadmeName), []byte(readme), 0644); err != nil {
		return "", fmt.Errorf("failed to write readme: %w", err)
	}

	return dir, nil
}

// Check reports which catalog files are present, missing or unreadable
func (s *TemplateService) Check(ctx context.Context) (*domain.CheckReport, error) {
	present, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &domain.CheckReport{Dir: s.repo.Dir()}
	for _, spec := range domain.Specs() {
		entry := domain.TemplateCheck{
			Filename:   spec.Filename,
			Categories: spec.Categories,
			State:      domain.TemplateMissing,
		}

		if s.repo.Exists(spec.Filename) {
			s.repo.Invalidate(spec.Filename)
			g, err := s.repo.Load(spec.Filename)
			if err != nil {
				entry.State = domain.TemplateInvalid
				entry.Error = err.Error()
			} else {
				entry.State = domain.TemplatePresent
				entry.Width, entry.Height = g.Width, g.Height
			}
		}

		report.Entries = append(report.Entries, entry)
	}

	for _, name := range present {
		if !domain.IsKnownTemplate(name) {
			report.Extra = append(report.Extra, name)
		}
	}

	return report, nil
}

type AddTemplateRequest struct {
	Name       string // catalog filename
	SourcePath string
}

type AddTemplateResponse struct {
	Asset   *domain.TemplateAsset
	Changed bool
	Path    string
}

// Add imports a PNG under a catalog filename
func (s *TemplateService) Add(ctx context.Context, req AddTemplateRequest) (*AddTemplateResponse, error) {
	name := req.Name
	if filepath.Ext(name) == "" {
		name += ".png"
	}
	if !domain.IsKnownTemplate(name) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTemplate, req.Name)
	}

	src, err := os.Open(req.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	asset, changed, err := s.repo.Import(ctx, name, req.SourcePath, src)
	if err != nil {
		return nil, err
	}

	return &AddTemplateResponse{
		Asset:   asset,
		Changed: changed,
		Path:    filepath.Join(s.repo.Dir(), name),
	}, nil
}

// Refresh drops cached copies of changed files and re-checks the directory
func (s *TemplateService) Refresh(ctx context.Context, changed []string) (*domain.CheckReport, error) {
	for _, name := range changed {
		s.repo.Invalidate(name)
	}
	return s.Check(ctx)
}
