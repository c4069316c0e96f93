package cmd

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/pkg/ui"
	"github.com/kamal-hamza/autostart/pkg/vision"
)

var (
	locateInstance string
	locateNoCopy   bool
	locateSave     bool
)

var locateCmd = &cobra.Command{
	Use:   "locate <template> [screenshot.png]",
	Short: "Find a template in a screenshot and print the tap point",
	Long: `Run the template matcher once and report where it lands.

<template> is a catalog name from the templates directory or a path to any PNG.
The screen comes from a screenshot file, or from a live capture with --instance.
The tap point is copied to the clipboard as "x,y".

With --save the live capture is kept in the cache directory, ready to crop
into a new template and import with 'autostart templates add'.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLocate,
}

func init() {
	locateCmd.Flags().StringVarP(&locateInstance, "instance", "i", "", "Capture the screen of a running instance")
	locateCmd.Flags().BoolVar(&locateNoCopy, "no-copy", false, "Don't copy the tap point to the clipboard")
	locateCmd.Flags().BoolVar(&locateSave, "save", false, "Keep the live capture in the cache directory")
}

func runLocate(cmd *cobra.Command, args []string) error {
	tmpl, err := loadLocateTemplate(args[0])
	if err != nil {
		return err
	}

	var screen *vision.Gray
	switch {
	case len(args) == 2:
		screen, err = vision.Load(args[1])
	case locateInstance != "":
		screen, err = captureInstance(locateInstance)
	default:
		return fmt.Errorf("need a screenshot file or --instance")
	}
	if err != nil {
		return err
	}

	match, ok := detector.Locate(screen, tmpl)
	if !ok {
		return fmt.Errorf("template (%dx%d) does not fit in the screen (%dx%d)",
			tmpl.Width, tmpl.Height, screen.Width, screen.Height)
	}

	appLog.Debug().Str("template", args[0]).Float64("score", match.Score).Int("x", match.X).Int("y", match.Y).Msg("locate")

	center := match.Center()
	threshold := detector.Threshold()
	found := match.Score >= threshold

	fmt.Println(ui.RenderKeyValue("Score", fmt.Sprintf("%.3f (threshold %.2f)", match.Score, threshold)))
	fmt.Println(ui.RenderKeyValue("Region", fmt.Sprintf("x=%d y=%d w=%d h=%d", match.X, match.Y, match.Width, match.Height)))
	fmt.Println(ui.RenderKeyValue("Tap", fmt.Sprintf("%d,%d", center.X, center.Y)))
	fmt.Println()

	if !found {
		fmt.Println(ui.FormatWarning("Below threshold, the launcher would not treat this as a match"))
		return nil
	}
	fmt.Println(ui.FormatSuccess("Match"))

	if !locateNoCopy {
		if err := clipboard.WriteAll(fmt.Sprintf("%d,%d", center.X, center.Y)); err != nil {
			appLog.Debug().Err(err).Msg("clipboard unavailable")
		} else {
			fmt.Println(ui.FormatMuted("Tap point copied to clipboard"))
		}
	}
	return nil
}

// loadLocateTemplate accepts a PNG path or a name from the templates directory
func loadLocateTemplate(arg string) (*vision.Gray, error) {
	if _, err := os.Stat(arg); err == nil {
		return vision.Load(arg)
	}

	name := arg
	if filepath.Ext(name) == "" {
		name += ".png"
	}
	if !templateRepo.Exists(name) {
		return nil, fmt.Errorf("template %q: %w", name, domain.ErrTemplateNotFound)
	}
	return templateRepo.Load(name)
}

func captureInstance(name string) (*vision.Gray, error) {
	if err := requireEmulator(); err != nil {
		return nil, err
	}

	ctx := getContext()
	instances, err := emulator.ListInstances(ctx)
	if err != nil {
		return nil, err
	}
	inst, ok := domain.FindInstance(instances, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, name)
	}
	if !inst.IsRunning() {
		return nil, fmt.Errorf("instance %s is %s, start it first", name, inst.Status)
	}

	img, err := emulator.Screenshot(ctx, inst.Index)
	if err != nil {
		return nil, err
	}

	if locateSave {
		path := appWorkspace.GetCachePath(fmt.Sprintf("%s-%s.png", name, time.Now().Format("20060102-150405")))
		if err := saveCapture(path, img); err != nil {
			return nil, err
		}
		fmt.Println(ui.FormatMuted("Saved capture to " + path))
	}

	return vision.FromImage(img), nil
}

func saveCapture(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to save capture: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode capture: %w", err)
	}
	return nil
}
