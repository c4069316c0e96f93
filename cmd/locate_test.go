package cmd

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/kamal-hamza/autostart/pkg/vision"
)

func TestSaveCapture_RoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.SetRGBA(1, 2, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	path := filepath.Join(t.TempDir(), "cache", "Farm-1.png")
	if err := saveCapture(path, img); err != nil {
		t.Fatalf("saveCapture failed: %v", err)
	}

	// A file path is accepted as a template without touching the repository
	g, err := loadLocateTemplate(path)
	if err != nil {
		t.Fatalf("loadLocateTemplate failed: %v", err)
	}
	if g.Width != 4 || g.Height != 3 {
		t.Errorf("expected 4x3, got %dx%d", g.Width, g.Height)
	}
	if g.At(1, 2) < 254 {
		t.Errorf("expected white pixel, got %v", g.At(1, 2))
	}

	match, ok := vision.NewMatcher(0.9).Find(g, g)
	if !ok || match.X != 0 || match.Y != 0 {
		t.Errorf("expected a capture to match itself at the origin, got %+v", match)
	}
}
