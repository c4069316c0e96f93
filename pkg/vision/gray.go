// Package vision finds template images inside screenshots.
//
// Images are reduced to single-channel luminance planes and compared with the
// normalized correlation coefficient, the same score OpenCV reports for
// TM_CCOEFF_NORMED. Scores range from -1 to 1; identical content scores 1.
package vision

import (
	"fmt"
	"image"
	_ "image/png"
	"io"
	"os"
)

// Gray is a luminance plane with values in [0, 255]
type Gray struct {
	Width  int
	Height int
	Pix    []float32
}

// NewGray allocates a zeroed plane
func NewGray(width, height int) *Gray {
	return &Gray{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

// At returns the value at (x, y)
func (g *Gray) At(x, y int) float32 {
	return g.Pix[y*g.Width+x]
}

// Set stores v at (x, y)
func (g *Gray) Set(x, y int, v float32) {
	g.Pix[y*g.Width+x] = v
}

// Bounds returns the plane size as a rectangle anchored at the origin
func (g *Gray) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

// SubPlane copies the rectangle r out of g
func (g *Gray) SubPlane(r image.Rectangle) *Gray {
	r = r.Intersect(g.Bounds())
	out := NewGray(r.Dx(), r.Dy())
	for y := 0; y < out.Height; y++ {
		copy(out.Pix[y*out.Width:(y+1)*out.Width], g.Pix[(r.Min.Y+y)*g.Width+r.Min.X:])
	}
	return out
}

// FromImage converts any image to a luminance plane (ITU-R BT.601 weights)
func FromImage(img image.Image) *Gray {
	b := img.Bounds()
	g := NewGray(b.Dx(), b.Dy())

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			r, gr, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			lum := 0.299*float32(r>>8) + 0.587*float32(gr>>8) + 0.114*float32(bl>>8)
			g.Pix[y*g.Width+x] = lum
		}
	}

	return g
}

// Decode reads an encoded image (PNG) and converts it to a plane
func Decode(r io.Reader) (*Gray, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), nil
}

// Load decodes the image file at path
func Load(path string) (*Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Downscale box-averages factor x factor blocks; trailing partial blocks are dropped
func (g *Gray) Downscale(factor int) *Gray {
	if factor <= 1 {
		return g
	}

	out := NewGray(g.Width/factor, g.Height/factor)
	area := float32(factor * factor)

	for oy := 0; oy < out.Height; oy++ {
		for ox := 0; ox < out.Width; ox++ {
			var sum float32
			for dy := 0; dy < factor; dy++ {
				row := (oy*factor + dy) * g.Width
				for dx := 0; dx < factor; dx++ {
					sum += g.Pix[row+ox*factor+dx]
				}
			}
			out.Pix[oy*out.Width+ox] = sum / area
		}
	}

	return out
}
