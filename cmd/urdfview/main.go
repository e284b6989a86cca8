// urdfview - Terminal URDF Robot Viewer
// View URDF robot descriptions and their meshes in your terminal.
//
// Controls:
//
//	Mouse move  - Highlight the part under the pointer
//	Click       - Select the part under the pointer
//	Mouse drag  - Orbit around the focus
//	Scroll      - Zoom in/out
//	Arrows      - Pan
//	I           - Frame the selection, press again for the iso view
//	C           - Toggle the components panel
//	T           - Toggle the tools panel
//	R           - Reset joints and camera
//	1/2/3/4     - Iso, top, front and right views
//	X           - Toggle wireframe mode
//	?           - Toggle HUD overlay
//	Esc/Q       - Quit
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taigrr/urdfview/internal/config"
	"github.com/taigrr/urdfview/internal/logger"
	"github.com/taigrr/urdfview/pkg/assetdb"
	"github.com/taigrr/urdfview/pkg/robot"
)

var (
	configPath string
	assetsPath string
	logLevel   string
	logFile    string

	targetFPS int
	bgColor   string
	ortho     bool
	wireframe bool
)

func main() {
	cmd := &cobra.Command{
		Use:   "urdfview",
		Short: "Terminal URDF Robot Viewer",
		Long: `urdfview - Terminal URDF Robot Viewer

View URDF robot descriptions in your terminal. Mesh references are
resolved against an asset directory or a YAML manifest of base64 payloads.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to config file (default ./urdfview.yaml)")
	pf.StringVar(&assetsPath, "assets", "", "Asset directory or YAML manifest")
	pf.StringVar(&logLevel, "level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFile, "log-file", "", "Log file path")

	viewCmd := &cobra.Command{
		Use:   "view <robot.urdf>",
		Short: "Open the interactive viewer",
		Long: `Open the interactive viewer.

Controls:
  Mouse move  - Highlight part
  Click       - Select part
  Mouse drag  - Orbit
  Scroll      - Zoom in/out
  Arrows      - Pan
  I           - Frame selection / iso view
  C           - Toggle components panel
  T           - Toggle tools panel
  R           - Reset joints and camera
  1/2/3/4     - Iso, top, front, right
  X           - Toggle wireframe
  ?           - Toggle HUD overlay
  Esc/Q       - Quit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd, args[0])
		},
	}
	vf := viewCmd.Flags()
	vf.IntVar(&targetFPS, "fps", 0, "Target FPS")
	vf.StringVar(&bgColor, "bg", "", "Background color (#rrggbb)")
	vf.BoolVar(&ortho, "ortho", false, "Use an orthographic camera")
	vf.BoolVar(&wireframe, "wireframe", false, "Start in wireframe mode")
	cmd.AddCommand(viewCmd)

	infoCmd := &cobra.Command{
		Use:   "info <robot.urdf>",
		Short: "Display robot information",
		Long:  "Load a robot, wait for every mesh and print its links, joints, bounds and per-asset diagnostics.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd, args[0])
		},
	}
	cmd.AddCommand(infoCmd)

	thumbCmd := &cobra.Command{
		Use:   "thumb <robot.urdf> <mesh-ref> <out.png>",
		Short: "Render a thumbnail of one mesh asset",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThumb(cmd, args[0], args[1], args[2])
		},
	}
	thumbCmd.Flags().Int("size", 256, "Thumbnail width and height in pixels")
	cmd.AddCommand(thumbCmd)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config, applies flag overrides and starts logging.
// Interactive runs never log to the console since it owns the terminal.
func setup(cmd *cobra.Command, interactive bool) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("assets") {
		cfg.Assets.Dir, cfg.Assets.Manifest = "", ""
		if isManifest(assetsPath) {
			cfg.Assets.Manifest = assetsPath
		} else {
			cfg.Assets.Dir = assetsPath
		}
	}
	if flags.Changed("level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-file") {
		cfg.Logging.LogFile = logFile
	}
	if flags.Changed("fps") {
		cfg.Viewer.FPS = targetFPS
	}
	if flags.Changed("bg") {
		cfg.Viewer.Background = bgColor
	}
	if flags.Changed("ortho") {
		cfg.Viewer.Orthographic = ortho
	}
	if flags.Changed("wireframe") {
		cfg.Viewer.Wireframe = wireframe
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if interactive && cfg.Logging.LogFile == "" {
		cfg.Logging.LogFile = filepath.Join(os.TempDir(), "urdfview.log")
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func isManifest(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// openAssets builds the asset database named by the config. With no
// source configured the database is empty and every mesh is reported
// missing.
func openAssets(cfg config.AssetsConfig) (*assetdb.DB, error) {
	switch {
	case cfg.Dir != "":
		return assetdb.FromDir(os.DirFS(cfg.Dir), ".")
	case cfg.Manifest != "":
		f, err := os.Open(cfg.Manifest)
		if err != nil {
			return nil, fmt.Errorf("open manifest: %w", err)
		}
		defer f.Close()
		return assetdb.FromManifest(f)
	default:
		return assetdb.New(nil), nil
	}
}

// loadRobot opens the assets and the URDF document and starts the load.
func loadRobot(ctx context.Context, cfg *config.Config, urdfPath string) (*robot.Model, error) {
	db, err := openAssets(cfg.Assets)
	if err != nil {
		return nil, err
	}
	stats := db.Stats()
	logger.Info("assets ready",
		zap.Int("entries", db.Len()),
		zap.Int("duplicates", stats.Duplicates),
	)

	opts := []robot.Option{robot.WithLogger(logger.Named("robot"))}
	if cfg.Assets.Workers > 0 {
		opts = append(opts, robot.WithWorkers(cfg.Assets.Workers))
	}
	ld, err := robot.New(db, opts...)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(urdfPath)
	if err != nil {
		return nil, fmt.Errorf("open robot: %w", err)
	}
	defer f.Close()

	start := time.Now()
	m, err := ld.Load(ctx, f)
	if err != nil {
		return nil, err
	}
	logger.Debug("robot parsed", zap.String("path", urdfPath), zap.Duration("elapsed", time.Since(start)))
	return m, nil
}
