package cmd

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/gdamore/tcell/v2"
)

// halfBlock draws two vertical pixels per terminal cell
const halfBlock = '▀'

// cellColors is the pair of pixels one terminal cell shows
type cellColors struct {
	Top    color.RGBA
	Bottom color.RGBA
	// HasBottom is false on the last row of an odd-height image
	HasBottom bool
}

// halfBlockGrid scales img to fit cols x rows cells, two pixels per cell vertically
func halfBlockGrid(img image.Image, cols, rows int) [][]cellColors {
	b := img.Bounds()
	if b.Empty() || cols <= 0 || rows <= 0 {
		return nil
	}

	scale := float64(cols) / float64(b.Dx())
	if s := float64(rows*2) / float64(b.Dy()); s < scale {
		scale = s
	}

	outW := max(1, int(float64(b.Dx())*scale))
	outH := max(1, int(float64(b.Dy())*scale))

	sample := func(x, y int) color.RGBA {
		sx := min(b.Min.X+int((float64(x)+0.5)/scale), b.Max.X-1)
		sy := min(b.Min.Y+int((float64(y)+0.5)/scale), b.Max.Y-1)
		return color.RGBAModel.Convert(img.At(sx, sy)).(color.RGBA)
	}

	grid := make([][]cellColors, (outH+1)/2)
	for cy := range grid {
		grid[cy] = make([]cellColors, outW)
		for x := 0; x < outW; x++ {
			cell := cellColors{Top: sample(x, cy*2)}
			if cy*2+1 < outH {
				cell.Bottom = sample(x, cy*2+1)
				cell.HasBottom = true
			}
			grid[cy][x] = cell
		}
	}
	return grid
}

func tcellColor(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

// ImageView shows one image full screen until a key is pressed
type ImageView struct {
	title  string
	img    image.Image
	screen tcell.Screen
}

// NewImageView decodes the image at path and prepares a terminal screen
func NewImageView(path string) (*ImageView, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &ImageView{
		title:  fmt.Sprintf("%s  %dx%d  (q to quit)", filepath.Base(path), b.Dx(), b.Dy()),
		img:    img,
		screen: screen,
	}, nil
}

// Run draws the image and blocks until q, Esc or Ctrl+C
func (v *ImageView) Run() error {
	defer v.screen.Fini()

	v.render()
	for {
		switch ev := v.screen.PollEvent().(type) {
		case *tcell.EventResize:
			v.screen.Sync()
			v.render()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				return nil
			}
		case nil:
			return nil
		}
	}
}

func (v *ImageView) render() {
	v.screen.Clear()
	width, height := v.screen.Size()

	titleStyle := tcell.StyleDefault.Bold(true).Foreground(tcell.ColorPurple)
	for i, r := range []rune(v.title) {
		if i >= width {
			break
		}
		v.screen.SetContent(i, 0, r, nil, titleStyle)
	}

	grid := halfBlockGrid(v.img, width, height-2)
	for y, row := range grid {
		for x, cell := range row {
			style := tcell.StyleDefault.Foreground(tcellColor(cell.Top))
			if cell.HasBottom {
				style = style.Background(tcellColor(cell.Bottom))
			}
			v.screen.SetContent(x, y+2, halfBlock, nil, style)
		}
	}

	v.screen.Show()
}
