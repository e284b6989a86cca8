package render

import (
	"image/color"
	"io"

	uv "github.com/charmbracelet/ultraviolet"
)

// Draw converts the framebuffer to terminal cells and draws them on the
// screen. Each cell shows two pixel rows: the upper half block takes the
// top row as foreground and the bottom row as background.
func (fb *Framebuffer) Draw(scr uv.Screen, area uv.Rectangle) {
	for row := area.Min.Y; row < area.Max.Y; row++ {
		topY := (row - area.Min.Y) * 2
		botY := topY + 1
		if topY >= fb.Height {
			break
		}
		for col := area.Min.X; col < area.Max.X; col++ {
			x := col - area.Min.X
			if x >= fb.Width {
				break
			}
			scr.SetCell(col, row, &uv.Cell{
				Content: "▀",
				Width:   1,
				Style: uv.Style{
					Fg: rgbaToColor(fb.GetPixel(x, topY)),
					Bg: rgbaToColor(fb.GetPixel(x, botY)),
				},
			})
		}
	}
}

// rgbaToColor converts color.RGBA to Go's color.Color interface.
func rgbaToColor(c color.RGBA) color.Color {
	if c.A == 0 {
		return nil // Transparent = no color
	}
	return c
}

// BellPlayer plays the click sound by ringing the terminal bell.
type BellPlayer struct {
	W io.Writer
}

// Play writes BEL and ignores write errors.
func (b BellPlayer) Play() {
	if b.W == nil {
		return
	}
	_, _ = b.W.Write([]byte{'\a'})
}

// Color is an alias for color.RGBA for convenience.
type Color = color.RGBA

var (
	ColorBlack     = color.RGBA{0, 0, 0, 255}
	ColorWhite     = color.RGBA{255, 255, 255, 255}
	ColorRed       = color.RGBA{220, 50, 47, 255}
	ColorGreen     = color.RGBA{80, 200, 80, 255}
	ColorBlue      = color.RGBA{60, 120, 230, 255}
	ColorYellow    = color.RGBA{255, 210, 0, 255}
	ColorGray      = color.RGBA{128, 128, 128, 255}
	ColorGrid      = color.RGBA{60, 64, 72, 255}
	ColorBackdrop  = color.RGBA{24, 26, 32, 255}
	ColorSelection = color.RGBA{255, 170, 0, 255}
)

// RGB creates a color from RGB values.
func RGB(r, g, b uint8) color.RGBA {
	return color.RGBA{r, g, b, 255}
}

// ParseHex parses "#rrggbb" (the leading # is optional). ok is false for
// anything else.
func ParseHex(s string) (c Color, ok bool) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return Color{}, false
	}
	var v [3]uint8
	for i := range 3 {
		hi, ok1 := hexDigit(s[2*i])
		lo, ok2 := hexDigit(s[2*i+1])
		if !ok1 || !ok2 {
			return Color{}, false
		}
		v[i] = hi<<4 | lo
	}
	return RGB(v[0], v[1], v[2]), true
}

func hexDigit(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}
