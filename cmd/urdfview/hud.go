package main

import (
	"fmt"
	"image/color"
	"time"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/taigrr/urdfview/pkg/interact"
	"github.com/taigrr/urdfview/pkg/robot"
	"github.com/taigrr/urdfview/pkg/scene"
)

var (
	hudBg     = color.RGBA{0, 0, 0, 255}
	hudText   = color.RGBA{230, 230, 230, 255}
	hudDim    = color.RGBA{140, 140, 150, 255}
	hudGreen  = color.RGBA{120, 220, 120, 255}
	hudCyan   = color.RGBA{110, 210, 230, 255}
	hudYellow = color.RGBA{240, 210, 90, 255}
)

var toolsHelp = []string{
	"i  frame / iso",
	"c  components",
	"t  tools",
	"r  reset",
	"1-4 iso top front right",
	"x  wireframe",
	"?  hud",
	"drag orbit, wheel zoom",
}

// HUD draws the overlay rows and the toggled panels on top of the model.
type HUD struct {
	title     string
	Show      bool
	fps       float64
	fpsFrames int
	fpsTime   time.Time
}

// NewHUD creates a new HUD
func NewHUD(title string) *HUD {
	return &HUD{title: title, Show: true, fpsTime: time.Now()}
}

// UpdateFPS updates the FPS counter (call once per frame)
func (h *HUD) UpdateFPS() {
	h.fpsFrames++
	elapsed := time.Since(h.fpsTime)
	if elapsed >= time.Second {
		h.fps = float64(h.fpsFrames) / elapsed.Seconds()
		h.fpsFrames = 0
		h.fpsTime = time.Now()
	}
}

// Draw paints the HUD cells over whatever the framebuffer left there.
func (h *HUD) Draw(scr uv.Screen, area uv.Rectangle, m *robot.Model, layer *interact.Layer, wire bool) {
	width, height := area.Dx(), area.Dy()
	if width <= 0 || height <= 0 {
		return
	}

	if layer.Panels.Components && m != nil {
		drawComponents(scr, area, m.Graph, layer.Selection)
	}
	if layer.Panels.Tools && m != nil {
		drawTools(scr, area, m.Graph)
	}

	if !h.Show {
		return
	}

	drawText(scr, area.Min.X, area.Min.Y, fmt.Sprintf(" %.0f FPS ", h.fps), hudGreen)
	drawText(scr, area.Min.X+max((width-len(h.title)-2)/2, 0), area.Min.Y, " "+h.title+" ", hudText)

	if m != nil {
		status := fmt.Sprintf(" %d meshes ", len(m.Graph.MeshNodes()))
		if p := m.Pending(); p > 0 {
			status = fmt.Sprintf(" loading %d ", p)
		}
		drawText(scr, area.Max.X-len(status), area.Min.Y, status, hudCyan)
	}

	bottom := area.Max.Y - 1
	check := "[ ]"
	if wire {
		check = "[x]"
	}
	drawText(scr, area.Min.X, bottom, " "+check+" X-Ray (wireframe) ", hudText)
	if sel := layer.Selection.Selected; sel != nil {
		label := " selected: " + sel.Name + " "
		drawText(scr, area.Max.X-len(label), bottom, label, hudYellow)
	}
}

// drawComponents lists the links down the left edge, marking the one the
// selection sits in.
func drawComponents(scr uv.Screen, area uv.Rectangle, g *scene.Graph, sel interact.Selection) {
	selected := linkOf(sel.Selected)
	hovered := linkOf(sel.Hovered)
	row := area.Min.Y + 1
	g.Walk(func(n *scene.Node) bool {
		if row >= area.Max.Y-1 {
			return false
		}
		if n.Kind != scene.KindLink {
			return true
		}
		fg := hudDim
		mark := "  "
		switch n {
		case selected:
			fg, mark = hudYellow, "> "
		case hovered:
			fg = hudText
		}
		drawText(scr, area.Min.X, row, mark+n.Name+" ", fg)
		row++
		return true
	})
}

// drawTools shows the key help and the movable joint values on the right.
func drawTools(scr uv.Screen, area uv.Rectangle, g *scene.Graph) {
	lines := append([]string(nil), toolsHelp...)
	for _, j := range g.Joints() {
		if j.Movable() {
			lines = append(lines, fmt.Sprintf("%s %.3f", j.Name, j.Value()))
		}
	}
	widest := 0
	for _, l := range lines {
		widest = max(widest, len(l))
	}
	x := max(area.Max.X-widest-2, area.Min.X)
	for i, l := range lines {
		row := area.Min.Y + 1 + i
		if row >= area.Max.Y-1 {
			break
		}
		fg := hudDim
		if i >= len(toolsHelp) {
			fg = hudCyan
		}
		drawText(scr, x, row, " "+l+" ", fg)
	}
}

// linkOf returns the nearest link node at or above n.
func linkOf(n *scene.Node) *scene.Node {
	for ; n != nil; n = n.Parent() {
		if n.Kind == scene.KindLink {
			return n
		}
	}
	return nil
}

// drawText writes s one cell per rune, clipped to the screen bounds.
func drawText(scr uv.Screen, x, y int, s string, fg color.RGBA) {
	b := scr.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	for _, r := range s {
		if x >= b.Max.X {
			return
		}
		if x >= b.Min.X {
			scr.SetCell(x, y, &uv.Cell{
				Content: string(r),
				Width:   1,
				Style:   uv.Style{Fg: fg, Bg: hudBg},
			})
		}
		x++
	}
}
