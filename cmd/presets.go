package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tubebatch/internal/presets"
	"tubebatch/internal/video"
)

var presetFlags struct {
	speed, brightness, contrast, saturation float64
	zoom, rotation, opacity                 float64
	flip, audio, logo, audioFile            string
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Manage edit presets",
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, stores, err := openStores(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = stores.Close() }()

		fmt.Println(titleStyle.Render("Presets"))
		fmt.Println("  " + dimStyle.Render(presets.NoEffects))
		for _, name := range stores.Presets.List() {
			fmt.Println("  " + name)
		}
		return nil
	},
}

var presetsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print the edits a preset applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, stores, err := openStores(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = stores.Close() }()

		name := args[0]
		if name != presets.NoEffects && !stores.Presets.Has(name) {
			return fmt.Errorf("%w: %q", presets.ErrNotFound, name)
		}
		cfg, err := stores.Presets.Resolve(name)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to render preset: %w", err)
		}
		fmt.Println(titleStyle.Render(name))
		fmt.Print(string(out))
		return nil
	},
}

var presetsSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Create or update a preset",
	Long: `Save a preset. With edit flags only the given fields are stored and the
rest keep their defaults when applied. Without flags an interactive form is
shown, prefilled from the existing preset.`,
	Args: cobra.ExactArgs(1),
	RunE: runPresetsSave,
}

var presetsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, stores, err := openStores(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = stores.Close() }()

		if err := stores.Presets.Delete(args[0]); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Deleted preset " + args[0]))
		return nil
	},
}

func init() {
	f := presetsSaveCmd.Flags()
	f.Float64Var(&presetFlags.speed, "speed", 1, "Playback speed multiplier")
	f.Float64Var(&presetFlags.brightness, "brightness", 1, "Brightness multiplier")
	f.Float64Var(&presetFlags.contrast, "contrast", 1, "Contrast multiplier")
	f.Float64Var(&presetFlags.saturation, "saturation", 1, "Saturation multiplier")
	f.Float64Var(&presetFlags.zoom, "zoom", 1, "Zoom factor")
	f.Float64Var(&presetFlags.rotation, "rotation", 0, "Rotation in degrees")
	f.Float64Var(&presetFlags.opacity, "opacity", 0, "Logo overlay opacity, 0 to 1")
	f.StringVar(&presetFlags.flip, "flip", "none", "none, horizontal or vertical")
	f.StringVar(&presetFlags.audio, "audio", "keep", "keep, remove or replace")
	f.StringVar(&presetFlags.logo, "logo", "", "Logo image to overlay")
	f.StringVar(&presetFlags.audioFile, "audio-file", "", "Replacement audio track")

	presetsCmd.AddCommand(presetsListCmd, presetsShowCmd, presetsSaveCmd, presetsDeleteCmd)
	rootCmd.AddCommand(presetsCmd)
}

func runPresetsSave(cmd *cobra.Command, args []string) error {
	_, stores, err := openStores(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	name := strings.TrimSpace(args[0])

	var p presets.Preset
	if anyPresetFlag(cmd) {
		p = presetFromFlags(cmd)
	} else {
		base, err := stores.Presets.Resolve(name)
		if err != nil {
			return err
		}
		edited, err := presetForm(name, base)
		if err != nil {
			return err
		}
		p = presets.FromEditConfig(edited)
	}

	if err := stores.Presets.Save(name, p); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Saved preset " + name))
	return nil
}

var presetFlagNames = []string{
	"speed", "brightness", "contrast", "saturation", "zoom", "rotation",
	"opacity", "flip", "audio", "logo", "audio-file",
}

func anyPresetFlag(cmd *cobra.Command) bool {
	for _, n := range presetFlagNames {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

func presetFromFlags(cmd *cobra.Command) presets.Preset {
	changed := cmd.Flags().Changed
	var p presets.Preset
	float := func(flag string, v float64) *float64 {
		if !changed(flag) {
			return nil
		}
		return &v
	}
	str := func(flag, v string) *string {
		if !changed(flag) {
			return nil
		}
		return &v
	}
	p.Speed = float("speed", presetFlags.speed)
	p.Brightness = float("brightness", presetFlags.brightness)
	p.Contrast = float("contrast", presetFlags.contrast)
	p.Saturation = float("saturation", presetFlags.saturation)
	p.ZoomFactor = float("zoom", presetFlags.zoom)
	p.RotationAngle = float("rotation", presetFlags.rotation)
	p.OverlayOpacity = float("opacity", presetFlags.opacity)
	p.FlipMode = str("flip", presetFlags.flip)
	p.AudioMode = str("audio", presetFlags.audio)
	p.LogoPath = str("logo", presetFlags.logo)
	p.AudioPath = str("audio-file", presetFlags.audioFile)
	return p
}

func presetForm(name string, base video.EditConfig) (video.EditConfig, error) {
	cfg := base
	fields := []struct {
		title string
		dst   *float64
		text  string
	}{
		{title: "Speed", dst: &cfg.Speed},
		{title: "Brightness", dst: &cfg.Brightness},
		{title: "Contrast", dst: &cfg.Contrast},
		{title: "Saturation", dst: &cfg.Saturation},
		{title: "Zoom", dst: &cfg.Zoom},
		{title: "Rotation (degrees)", dst: &cfg.Rotation},
		{title: "Logo opacity", dst: &cfg.OverlayOpacity},
	}

	var inputs []huh.Field
	for i := range fields {
		fields[i].text = strconv.FormatFloat(*fields[i].dst, 'g', -1, 64)
		inputs = append(inputs, huh.NewInput().
			Title(fields[i].title).
			Value(&fields[i].text).
			Validate(isNumber))
	}

	flip := string(cfg.Flip)
	audio := string(cfg.Audio)
	form := huh.NewForm(
		huh.NewGroup(inputs...).Title("Preset " + name),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Flip").
				Options(huh.NewOptions("none", "horizontal", "vertical")...).
				Value(&flip),
			huh.NewSelect[string]().
				Title("Audio").
				Options(huh.NewOptions("keep", "remove", "replace")...).
				Value(&audio),
			huh.NewInput().
				Title("Logo image").
				Description("Leave empty for no overlay").
				Value(&cfg.LogoPath),
			huh.NewInput().
				Title("Replacement audio").
				Description("Used when audio is replace").
				Value(&cfg.AudioPath),
		),
	)
	if err := form.Run(); err != nil {
		return base, err
	}

	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.text), 64)
		if err != nil {
			return base, fmt.Errorf("%s: %w", f.title, err)
		}
		*f.dst = v
	}
	cfg.Flip = video.FlipMode(flip)
	cfg.Audio = video.AudioMode(audio)
	return cfg, cfg.Validate()
}

func isNumber(s string) error {
	if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
		return errors.New("must be a number")
	}
	return nil
}
