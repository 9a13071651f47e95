// Package overlay draws the pointer and click markers of a recorded session
// onto its frames.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/v0xg/bookcheck/internal/browser"
)

// CursorSize is the height of the cursor sprite
const CursorSize = 18

var (
	outline = color.RGBA{0, 0, 0, 255}
	fill    = color.RGBA{255, 255, 255, 255}
	ripple  = color.RGBA{66, 133, 244, 255}
)

// Apply returns the frames' images with each frame's cursor drawn in.
func Apply(frames []browser.Frame) []image.Image {
	out := make([]image.Image, len(frames))
	for i, f := range frames {
		out[i] = drawCursorOnFrame(f.Image, f.Cursor)
	}
	return out
}

func drawCursorOnFrame(frame image.Image, pos browser.CursorPosition) image.Image {
	bounds := frame.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, frame, bounds.Min, draw.Src)

	if pos.Click {
		drawClickRipple(result, pos.X, pos.Y)
	}
	switch pos.State {
	case browser.CursorText:
		drawIBeam(result, pos.X, pos.Y)
	default:
		drawArrow(result, pos.X, pos.Y)
	}
	return result
}

// drawArrow draws an arrow with its tip at (x, y).
func drawArrow(img *image.RGBA, x, y int) {
	for dy := 0; dy <= 16; dy++ {
		for dx := 0; dx < 13; dx++ {
			if insideArrow(dx, dy) {
				setPixelSafe(img, x+dx, y+dy, fill)
			}
		}
	}

	points := []image.Point{{0, 0}, {0, 16}, {4, 12}, {7, 18}, {10, 17}, {7, 11}, {12, 11}}
	for i, p1 := range points {
		p2 := points[(i+1)%len(points)]
		drawLine(img, x+p1.X, y+p1.Y, x+p2.X, y+p2.Y, outline)
	}
}

func insideArrow(dx, dy int) bool {
	if dy <= 11 {
		return dx <= dy*12/16
	}
	return dy <= 16 && dx <= 4
}

// drawIBeam draws a text cursor centered on (x, y).
func drawIBeam(img *image.RGBA, x, y int) {
	half := CursorSize / 2
	for _, dx := range []int{-1, 1} {
		drawLine(img, x+dx, y-half, x+dx, y+half, fill)
	}
	drawLine(img, x, y-half, x, y+half, outline)
	drawLine(img, x-3, y-half, x+3, y-half, outline)
	drawLine(img, x-3, y+half, x+3, y+half, outline)
}

// drawClickRipple rings the click point.
func drawClickRipple(img *image.RGBA, x, y int) {
	for _, radius := range []float64{10, 15} {
		for angle := 0.0; angle < 360; angle++ {
			rad := angle * math.Pi / 180
			px := x + int(math.Round(radius*math.Cos(rad)))
			py := y + int(math.Round(radius*math.Sin(rad)))
			setPixelSafe(img, px, py, ripple)
			setPixelSafe(img, px+1, py, ripple)
		}
	}
}

// drawLine uses Bresenham's algorithm.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		setPixelSafe(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func setPixelSafe(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{x, y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
