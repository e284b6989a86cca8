package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taigrr/urdfview/internal/logger"
	"github.com/taigrr/urdfview/pkg/assetdb"
	"github.com/taigrr/urdfview/pkg/render"
	"github.com/taigrr/urdfview/pkg/scene"
)

const loadTimeout = 2 * time.Minute

func runInfo(cmd *cobra.Command, urdfPath string) error {
	cfg, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), loadTimeout)
	defer cancel()

	m, err := loadRobot(ctx, cfg, urdfPath)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Wait(ctx); err != nil {
		return fmt.Errorf("wait for meshes: %w", err)
	}

	meshes := m.Graph.MeshNodes()
	triangles := 0
	for _, n := range meshes {
		triangles += n.Mesh.TriangleCount()
	}

	fmt.Printf("File:       %s\n", filepath.Base(urdfPath))
	fmt.Printf("Robot:      %s\n", m.Robot.Name)
	fmt.Println()
	fmt.Printf("Links:      %d\n", len(m.Robot.Links))
	fmt.Printf("Joints:     %d\n", len(m.Robot.Joints))
	fmt.Printf("Meshes:     %d\n", len(meshes))
	fmt.Printf("Triangles:  %d\n", triangles)

	if box, ok := scene.BoundingBox(m.Graph.Root); ok {
		size := box.Size()
		center := box.Center()
		fmt.Println()
		fmt.Printf("Bounds Min: (%.3f, %.3f, %.3f)\n", box.Min.X, box.Min.Y, box.Min.Z)
		fmt.Printf("Bounds Max: (%.3f, %.3f, %.3f)\n", box.Max.X, box.Max.Y, box.Max.Z)
		fmt.Printf("Dimensions: %.3f x %.3f x %.3f\n", size.X, size.Y, size.Z)
		fmt.Printf("Center:     (%.3f, %.3f, %.3f)\n", center.X, center.Y, center.Z)
	}

	if joints := m.Graph.Joints(); len(joints) > 0 {
		fmt.Println()
		for _, j := range joints {
			if j.Movable() {
				fmt.Printf("  %-24s %-10s [%.3f, %.3f]\n", j.Name, j.Type, j.Lower, j.Upper)
			} else {
				fmt.Printf("  %-24s %s\n", j.Name, j.Type)
			}
		}
	}

	if diags := m.Diagnostics(); len(diags) > 0 {
		fmt.Println()
		fmt.Printf("Diagnostics (%d):\n", len(diags))
		for _, d := range diags {
			fmt.Printf("  %s\n", d)
		}
	}
	return nil
}

func runThumb(cmd *cobra.Command, urdfPath, ref, outPath string) error {
	size, err := cmd.Flags().GetInt("size")
	if err != nil {
		return err
	}
	cfg, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), loadTimeout)
	defer cancel()

	m, err := loadRobot(ctx, cfg, urdfPath)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Wait(ctx); err != nil {
		return fmt.Errorf("wait for meshes: %w", err)
	}

	fb, err := render.Thumbnail(m.Graph, assetdb.Normalize(ref), size, size)
	if err != nil {
		return err
	}
	if err := fb.SavePNG(outPath); err != nil {
		return fmt.Errorf("save thumbnail: %w", err)
	}
	logger.Info("thumbnail written", zap.String("ref", ref), zap.String("path", outPath), zap.Int("size", size))
	return nil
}
