// Package gifgen encodes recorded session frames as an animated GIF.
package gifgen

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"sort"

	"github.com/nfnt/resize"
)

// ErrNoFrames is returned when there is nothing to encode.
var ErrNoFrames = errors.New("no frames to encode")

// Options configures GIF generation
type Options struct {
	// FPS sets how long each step is shown. Frames are taken per action, not
	// per tick, so a low rate keeps each step readable.
	FPS int
	// MaxWidth caps the output width; narrower frames are not upscaled.
	MaxWidth uint
	// HoldLast is how many hundredths of a second the failing frame stays up.
	HoldLast int
}

func (o *Options) defaults() {
	if o.FPS <= 0 {
		o.FPS = 2
	}
	if o.MaxWidth == 0 {
		o.MaxWidth = 800
	}
	if o.HoldLast == 0 {
		o.HoldLast = 300
	}
}

// Encode writes frames to w as a looping GIF.
func Encode(w io.Writer, frames []image.Image, opts Options) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	opts.defaults()

	// Delay is in 100ths of a second
	delay := max(100/opts.FPS, 1)

	bounds := frames[0].Bounds()
	width := opts.MaxWidth
	if uint(bounds.Dx()) < width {
		width = uint(bounds.Dx())
	}
	height := uint(float64(width) * float64(bounds.Dy()) / float64(bounds.Dx()))

	resized := make([]image.Image, len(frames))
	for i, frame := range frames {
		resized[i] = resize.Resize(width, height, frame, resize.Lanczos3)
	}
	palette := generatePalette(resized)

	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0,
	}
	for i, frame := range resized {
		paletted := image.NewPaletted(frame.Bounds(), palette)
		draw.FloydSteinberg.Draw(paletted, frame.Bounds(), frame, frame.Bounds().Min)
		g.Image[i] = paletted
		g.Delay[i] = delay
	}
	g.Delay[len(g.Delay)-1] = opts.HoldLast

	return gif.EncodeAll(w, g)
}

// WriteFile encodes frames into path and returns the file size.
func WriteFile(path string, frames []image.Image, opts Options) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := Encode(f, frames, opts); err != nil {
		return 0, fmt.Errorf("encode %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// generatePalette picks the 255 most frequent colors across all frames plus a
// transparent entry, so the page and overlay colors survive quantization.
func generatePalette(frames []image.Image) color.Palette {
	counts := make(map[color.RGBA]int)

	const step = 4
	for _, img := range frames {
		b := img.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y += step {
			for x := b.Min.X; x < b.Max.X; x += step {
				r, g, bl, a := img.At(x, y).RGBA()
				counts[color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: uint8(a >> 8)}]++
			}
		}
	}

	colors := make([]color.RGBA, 0, len(counts))
	for c := range counts {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		if counts[colors[i]] != counts[colors[j]] {
			return counts[colors[i]] > counts[colors[j]]
		}
		// Stable order for equal counts.
		a, b := colors[i], colors[j]
		if a.R != b.R {
			return a.R < b.R
		}
		if a.G != b.G {
			return a.G < b.G
		}
		return a.B < b.B
	})

	palette := make(color.Palette, 0, 256)
	palette = append(palette, color.RGBA{0, 0, 0, 0})
	for _, c := range colors {
		if len(palette) == 256 {
			break
		}
		palette = append(palette, c)
	}
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}
	return palette
}
