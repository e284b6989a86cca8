package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taigrr/urdfview/internal/config"
	"github.com/taigrr/urdfview/internal/logger"
	"github.com/taigrr/urdfview/pkg/interact"
	"github.com/taigrr/urdfview/pkg/math3d"
	"github.com/taigrr/urdfview/pkg/render"
	"github.com/taigrr/urdfview/pkg/robot"
	"github.com/taigrr/urdfview/pkg/viewer"
)

const (
	orbitPerCell = 0.05
	wheelZoom    = 0.2
	keyZoom      = 0.25
	keyPan       = 0.05
)

// presetKeys maps the number row to the named views.
var presetKeys = map[string]string{"1": "iso", "2": "top", "3": "front", "4": "right"}

// session is the terminal state one view run owns. Everything here is
// touched only by the render loop goroutine.
type session struct {
	term   *uv.Terminal
	fb     *render.Framebuffer
	rast   *render.Rasterizer
	cam    *render.Camera
	viewer *viewer.Viewer
	layer  *interact.Layer
	model  *robot.Model
	hud    *HUD

	width, height int

	mouseDown    bool
	dragged      bool
	lastX, lastY int
	// interacted stops late mesh attachments from refitting the camera.
	interacted bool
}

func runView(cmd *cobra.Command, urdfPath string) error {
	cfg, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	bg, ok := render.ParseHex(cfg.Viewer.Background)
	if !ok {
		logger.Warn("bad background color, using default", zap.String("background", cfg.Viewer.Background))
		bg = render.ColorBackdrop
	}

	// Context for clean shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Load before taking over the terminal so errors print normally.
	m, err := loadRobot(ctx, cfg, urdfPath)
	if err != nil {
		return err
	}

	term := uv.DefaultTerminal()
	width, height, err := term.GetSize()
	if err != nil {
		m.Close()
		return fmt.Errorf("get terminal size: %w", err)
	}
	if err := term.Start(); err != nil {
		m.Close()
		return fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	// Enable mouse mode
	fmt.Fprint(os.Stdout, "\x1b[?1003h") // Enable any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // Enable SGR extended mouse mode

	cleanup := func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}

	s, err := newSession(term, cfg, m, width, height, filepath.Base(urdfPath))
	if err != nil {
		cleanup()
		m.Close()
		return err
	}
	defer s.viewer.Destroy()

	err = s.loop(ctx, cfg.Viewer.FPS, bg)
	cleanup()
	return err
}

func newSession(term *uv.Terminal, cfg *config.Config, m *robot.Model, width, height int, title string) (*session, error) {
	cam := render.NewCamera()
	cam.SetFOV(cfg.Viewer.FOV * math.Pi / 180)
	if cfg.Viewer.Orthographic {
		cam.SetProjection(render.Orthographic)
	}

	v, err := viewer.New(cam,
		viewer.WithLogger(logger.Named("viewer")),
		viewer.WithFPS(cfg.Viewer.FPS),
		viewer.WithPadding(cfg.Viewer.Padding),
	)
	if err != nil {
		return nil, err
	}

	opts := []interact.Option{
		interact.WithLogger(logger.Named("interact")),
		interact.WithTweenDuration(cfg.Viewer.TweenDuration),
	}
	if cfg.Viewer.Bell {
		opts = append(opts, interact.WithPlayer(render.BellPlayer{W: os.Stdout}))
	}
	layer, err := interact.New(v, opts...)
	if err != nil {
		return nil, err
	}

	s := &session{
		term:   term,
		cam:    cam,
		viewer: v,
		layer:  layer,
		model:  m,
		hud:    NewHUD(title),
	}
	s.resize(width, height)
	s.rast.Wireframe = cfg.Viewer.Wireframe

	v.SetModel(m)
	v.FitAndCenter(v.Root(), v.Padding)
	return s, nil
}

// resize rebuilds the framebuffer for a terminal of width x height cells.
// Every cell holds two pixel rows.
func (s *session) resize(width, height int) {
	s.width, s.height = width, height
	wire := s.rast != nil && s.rast.Wireframe
	s.fb = render.NewFramebuffer(width, height*2)
	s.rast = render.NewRasterizer(s.cam, s.fb)
	s.rast.Wireframe = wire
	s.cam.SetAspectRatio(float64(width) / float64(height*2))
}

// ndc converts a terminal cell to normalized device coordinates at the
// centre of the cell.
func (s *session) ndc(x, y int) (float64, float64) {
	return render.ScreenToNDC(float64(x)+0.5, float64(y*2)+1, s.fb.Width, s.fb.Height)
}

func (s *session) loop(ctx context.Context, fps int, bg render.Color) error {
	events := make(chan uv.Event, 64)
	go func() {
		for ev := range s.term.Events() {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	targetDuration := time.Second / time.Duration(fps)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		now := time.Now()
		if s.drain(events) {
			return nil
		}

		if n := s.layer.Attach(); n > 0 {
			s.viewer.InvalidateFraming()
			if !s.interacted {
				s.viewer.FitAndCenter(s.viewer.Root(), s.viewer.Padding)
			}
			logger.Debug("meshes attached", zap.Int("results", n), zap.Int("pending", s.model.Pending()))
		}
		s.viewer.Tick(now)
		s.draw(bg)

		if err := s.term.Display(); err != nil {
			return fmt.Errorf("display: %w", err)
		}
		s.hud.UpdateFPS()

		// Frame timing
		elapsed := time.Since(now)
		if elapsed < targetDuration {
			time.Sleep(targetDuration - elapsed)
		}
	}
}

// drain handles every queued event and reports whether to quit.
func (s *session) drain(events <-chan uv.Event) bool {
	for {
		select {
		case ev := <-events:
			if s.handle(ev) {
				return true
			}
		default:
			return false
		}
	}
}

func (s *session) handle(ev uv.Event) (quit bool) {
	switch ev := ev.(type) {
	case uv.WindowSizeEvent:
		s.term.Erase()
		s.term.Resize(ev.Width, ev.Height)
		s.resize(ev.Width, ev.Height)
		s.viewer.InvalidateFraming()

	case uv.KeyPressEvent:
		switch {
		case ev.MatchString("escape", "ctrl+c", "q"):
			return true
		case ev.MatchString("x"):
			s.rast.Wireframe = !s.rast.Wireframe
		case ev.MatchString("?"), ev.MatchString("shift+/"):
			s.hud.Show = !s.hud.Show
		case ev.MatchString("+", "="):
			s.interacted = true
			s.layer.Zoom(keyZoom)
		case ev.MatchString("-", "_"):
			s.interacted = true
			s.layer.Zoom(-keyZoom)
		case ev.MatchString("left"):
			s.viewer.Controls.Pan(-keyPan, 0)
		case ev.MatchString("right"):
			s.viewer.Controls.Pan(keyPan, 0)
		case ev.MatchString("up"):
			s.viewer.Controls.Pan(0, keyPan)
		case ev.MatchString("down"):
			s.viewer.Controls.Pan(0, -keyPan)
		default:
			for _, k := range []string{"i", "c", "t", "r"} {
				if ev.MatchString(k) {
					s.interacted = true
					s.layer.HandleKey(k)
					return false
				}
			}
			for k, name := range presetKeys {
				if ev.MatchString(k) {
					s.interacted = true
					if _, err := s.layer.ViewPreset(name); err != nil {
						logger.Debug("preset ignored", zap.String("preset", name), zap.Error(err))
					}
					return false
				}
			}
		}

	case uv.MouseClickEvent:
		if ev.Button == uv.MouseLeft {
			s.mouseDown, s.dragged = true, false
			s.lastX, s.lastY = ev.X, ev.Y
		}

	case uv.MouseReleaseEvent:
		if s.mouseDown && !s.dragged {
			s.layer.Click(s.ndc(ev.X, ev.Y))
		}
		s.mouseDown = false

	case uv.MouseMotionEvent:
		if !s.mouseDown {
			s.layer.PointerMove(s.ndc(ev.X, ev.Y))
			break
		}
		dx := ev.X - s.lastX
		dy := ev.Y - s.lastY
		if dx == 0 && dy == 0 {
			break
		}
		s.dragged, s.interacted = true, true
		// Rows are twice as tall as columns are wide.
		s.layer.Orbit(-float64(dx)*orbitPerCell, float64(dy)*2*orbitPerCell)
		s.lastX, s.lastY = ev.X, ev.Y

	case uv.MouseWheelEvent:
		s.interacted = true
		switch ev.Button {
		case uv.MouseWheelUp:
			s.layer.Zoom(wheelZoom)
		case uv.MouseWheelDown:
			s.layer.Zoom(-wheelZoom)
		}
	}
	return false
}

// draw renders one frame into the terminal buffer.
func (s *session) draw(bg render.Color) {
	s.rast.Clear(bg)

	if box, ok := s.viewer.BoundingBox(s.viewer.Root()); ok {
		size, step := gridFor(box)
		s.rast.DrawGrid(size, step, render.ColorGrid)
	}

	// Headlight from slightly above the eye.
	light := s.cam.Position.Sub(s.cam.Target).Normalize().Add(math3d.V3(0, 0, 0.5))
	s.rast.DrawGraph(s.model.Graph, light)
	if sel := s.layer.Selection.Selected; sel != nil {
		s.rast.DrawSelection(sel, render.ColorSelection)
	}

	area := uv.Rect(0, 0, s.width, s.height)
	s.fb.Draw(s.term, area)
	s.hud.Draw(s.term, area, s.model, s.layer, s.rast.Wireframe)
}

// gridFor picks a floor grid a little wider than the model with about ten
// cells per side at a round step.
func gridFor(box math3d.AABB) (size, step float64) {
	extent := 2 * math.Max(box.Size().X, box.Size().Y)
	if extent <= 0 {
		extent = 1
	}
	step = math.Pow(10, math.Floor(math.Log10(extent/10)))
	size = math.Ceil(extent/step) * step
	return size, step
}
