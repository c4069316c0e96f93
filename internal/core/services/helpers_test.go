package services

import (
	"hash/fnv"
	"image"
	"image/color"
	"math/rand"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/core/ports/mocks"
	"github.com/kamal-hamza/autostart/pkg/vision"
)

const (
	patternSide = 12
	screenSide  = 120
)

// pattern returns a deterministic noise patch for a template name
func pattern(name string) *image.Gray {
	h := fnv.New64a()
	h.Write([]byte(name))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	img := image.NewGray(image.Rect(0, 0, patternSide, patternSide))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

// slot returns where the n-th pasted template goes on a test screen
func slot(n int) image.Point {
	perRow := screenSide / (patternSide * 2)
	return image.Pt((n%perRow)*patternSide*2+4, (n/perRow)*patternSide*2+4)
}

// screenWith draws a flat screen with the named templates pasted on it
func screenWith(names ...string) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, screenSide, screenSide))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	for n, name := range names {
		p := pattern(name)
		at := slot(n)
		for y := 0; y < patternSide; y++ {
			for x := 0; x < patternSide; x++ {
				img.SetGray(at.X+x, at.Y+y, color.Gray{Y: p.GrayAt(x, y).Y})
			}
		}
	}
	return img
}

// centerOf is where a tap on the n-th pasted template lands
func centerOf(n int) image.Point {
	at := slot(n)
	return image.Pt(at.X+patternSide/2, at.Y+patternSide/2)
}

// catalogTemplates registers every catalog file in a mock repository
func catalogTemplates() *mocks.MockTemplateRepository {
	repo := mocks.NewMockTemplateRepository()
	for _, name := range domain.AllFiles() {
		repo.Put(name, vision.FromImage(pattern(name)))
	}
	return repo
}
