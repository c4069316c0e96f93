package cmd

import (
	"image"
	"image/color"
	"testing"
)

func TestHalfBlockGrid_PairsRows(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 3))
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	for x := 0; x < 2; x++ {
		img.SetRGBA(x, 0, red)
		img.SetRGBA(x, 1, blue)
		img.SetRGBA(x, 2, green)
	}

	grid := halfBlockGrid(img, 2, 2)

	if len(grid) != 2 {
		t.Fatalf("expected 2 cell rows for 3 pixel rows, got %d", len(grid))
	}
	if len(grid[0]) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(grid[0]))
	}

	first := grid[0][0]
	if first.Top != red || first.Bottom != blue || !first.HasBottom {
		t.Errorf("unexpected first cell: %+v", first)
	}

	last := grid[1][1]
	if last.Top != green || last.HasBottom {
		t.Errorf("odd last row should have no bottom pixel: %+v", last)
	}
}

func TestHalfBlockGrid_ScalesToFit(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 40))

	grid := halfBlockGrid(img, 50, 100)

	// Width is the limiting side: 100px into 50 cols halves the image
	if len(grid[0]) != 50 {
		t.Errorf("expected 50 columns, got %d", len(grid[0]))
	}
	if len(grid) != 10 {
		t.Errorf("expected 10 rows (20px / 2), got %d", len(grid))
	}
}

func TestHalfBlockGrid_Empty(t *testing.T) {
	if grid := halfBlockGrid(image.NewRGBA(image.Rect(0, 0, 0, 0)), 10, 10); grid != nil {
		t.Error("expected nil grid for empty image")
	}
	if grid := halfBlockGrid(image.NewRGBA(image.Rect(0, 0, 4, 4)), 0, 10); grid != nil {
		t.Error("expected nil grid for zero columns")
	}
}
