package services

import (
	"errors"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/core/ports"
	"github.com/kamal-hamza/autostart/internal/logger"
	"github.com/kamal-hamza/autostart/pkg/vision"
)

// Detector classifies screenshots by matching catalog templates
type Detector struct {
	templates ports.TemplateRepository
	matcher   *vision.Matcher
	log       *logger.Logger
}

// NewDetector creates a detector with the given acceptance threshold
func NewDetector(templates ports.TemplateRepository, threshold float64, log *logger.Logger) *Detector {
	return &Detector{
		templates: templates,
		matcher:   vision.NewMatcher(threshold),
		log:       log,
	}
}

// Threshold returns the minimum score counted as a match
func (d *Detector) Threshold() float64 {
	return d.matcher.Threshold
}

// Detect returns the game state shown on screen.
// World indicators win over main menu indicators.
func (d *Detector) Detect(screen *vision.Gray) domain.GameState {
	if screen == nil {
		return domain.StateUnknown
	}
	if _, _, ok := d.FindAny(screen, domain.Files(domain.CategoryGameWorld)); ok {
		return domain.StateInGame
	}
	if _, _, ok := d.FindAny(screen, domain.Files(domain.CategoryMainMenu)); ok {
		return domain.StateMainMenu
	}
	return domain.StateUnknown
}

// FindAny returns the first template in names that matches, in order.
// Templates missing from disk are skipped.
func (d *Detector) FindAny(screen *vision.Gray, names []string) (string, vision.Match, bool) {
	for _, name := range names {
		if m, ok := d.Find(screen, name); ok {
			return name, m, true
		}
	}
	return "", vision.Match{}, false
}

// Find matches a single template against the screen
func (d *Detector) Find(screen *vision.Gray, name string) (vision.Match, bool) {
	tmpl, err := d.templates.Load(name)
	if err != nil {
		if !errors.Is(err, domain.ErrTemplateNotFound) {
			d.log.Debug().Err(err).Str("template", name).Msg("skipping unreadable template")
		}
		return vision.Match{}, false
	}

	m, ok := d.matcher.Find(screen, tmpl)
	if ok {
		d.log.Debug().Str("template", name).Float64("score", m.Score).Int("x", m.X).Int("y", m.Y).Msg("template matched")
	}
	return m, ok
}

// Best returns the best placement of a template whatever its score
func (d *Detector) Best(screen *vision.Gray, name string) (vision.Match, error) {
	tmpl, err := d.templates.Load(name)
	if err != nil {
		return vision.Match{}, err
	}

	m, ok := d.matcher.Best(screen, tmpl)
	if !ok {
		return vision.Match{}, errTemplateTooLarge
	}
	return m, nil
}

// Locate scores an arbitrary template with the same matcher the launcher uses.
// ok is false when the template does not fit inside the screen.
func (d *Detector) Locate(screen, tmpl *vision.Gray) (vision.Match, bool) {
	return d.matcher.Best(screen, tmpl)
}

var errTemplateTooLarge = errors.New("template is larger than the screenshot")
