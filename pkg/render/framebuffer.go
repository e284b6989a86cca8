// Package render draws scene graphs with a software rasterizer into a
// framebuffer that can be shown on a terminal or saved as PNG.
package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
)

// Framebuffer is a 2D array of pixels.
// Terminal output packs two rows per cell with half-block characters, so
// Height is usually twice the terminal row count.
type Framebuffer struct {
	Width  int
	Height int
	Pixels []color.RGBA // Row-major pixel data
}

// NewFramebuffer creates a new framebuffer with the given dimensions.
func NewFramebuffer(width, height int) *Framebuffer {
	return &Framebuffer{
		Width:  width,
		Height: height,
		Pixels: make([]color.RGBA, width*height),
	}
}

// Clear fills the framebuffer with a solid color.
func (fb *Framebuffer) Clear(c color.RGBA) {
	for i := range fb.Pixels {
		fb.Pixels[i] = c
	}
}

// SetPixel sets a pixel at (x, y) to the given color.
// Bounds checking is performed.
func (fb *Framebuffer) SetPixel(x, y int, c color.RGBA) {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return
	}
	fb.Pixels[y*fb.Width+x] = c
}

// BlendPixel composites c over the existing pixel with the given opacity.
func (fb *Framebuffer) BlendPixel(x, y int, c color.RGBA, alpha float64) {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return
	}
	if alpha >= 1 {
		fb.Pixels[y*fb.Width+x] = c
		return
	}
	if alpha <= 0 {
		return
	}
	dst := &fb.Pixels[y*fb.Width+x]
	mix := func(s, d uint8) uint8 {
		return uint8(float64(s)*alpha + float64(d)*(1-alpha) + 0.5)
	}
	dst.R = mix(c.R, dst.R)
	dst.G = mix(c.G, dst.G)
	dst.B = mix(c.B, dst.B)
	dst.A = 255
}

// GetPixel returns the color at (x, y).
// Returns transparent black if out of bounds.
func (fb *Framebuffer) GetPixel(x, y int) color.RGBA {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return color.RGBA{}
	}
	return fb.Pixels[y*fb.Width+x]
}

// DrawLine draws a line from (x0, y0) to (x1, y1) using Bresenham's algorithm.
func (fb *Framebuffer) DrawLine(x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		fb.SetPixel(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ToImage converts the framebuffer to a standard Go image.RGBA.
func (fb *Framebuffer) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	for y := 0; y < fb.Height; y++ {
		copy(img.Pix[y*img.Stride:], rgbaBytes(fb.Pixels[y*fb.Width:(y+1)*fb.Width]))
	}
	return img
}

func rgbaBytes(row []color.RGBA) []byte {
	out := make([]byte, 0, len(row)*4)
	for _, c := range row {
		out = append(out, c.R, c.G, c.B, c.A)
	}
	return out
}

// EncodePNG writes the framebuffer to w as PNG.
func (fb *Framebuffer) EncodePNG(w io.Writer) error {
	return png.Encode(w, fb.ToImage())
}

// SavePNG saves the framebuffer as a PNG file.
func (fb *Framebuffer) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fb.EncodePNG(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
