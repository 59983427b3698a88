package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultFFmpegPath = "ffmpeg"
	defaultFFprobe    = "ffprobe"
	defaultVideoCodec = "libx264"
	defaultAudioCodec = "aac"
	defaultPreset     = "medium"

	progressMidpoint = 50.0
	progressDone     = 100.0
	logoMargin       = 10
	maxErrorOutput   = 2000
)

var ErrCanceled = errors.New("transform canceled")

type CancelChecker interface {
	Canceled() bool
}

type TransformRequest struct {
	SourcePath string
	DestPath   string
	Config     EditConfig
	Cancel     CancelChecker
	OnProgress func(percent float64)
}

type Transformer struct {
	ffmpegPath string
	ffprobe    string
	videoCodec string
	audioCodec string
	preset     string
	logger     *slog.Logger
}

type TransformerOptions struct {
	FFmpegPath  string
	FFprobePath string
	VideoCodec  string
	AudioCodec  string
	Preset      string
	Logger      *slog.Logger
}

type probeResult struct {
	Duration float64
	HasVideo bool
	HasAudio bool
}

func NewTransformer(opts TransformerOptions) *Transformer {
	t := &Transformer{
		ffmpegPath: opts.FFmpegPath,
		ffprobe:    opts.FFprobePath,
		videoCodec: opts.VideoCodec,
		audioCodec: opts.AudioCodec,
		preset:     opts.Preset,
		logger:     opts.Logger,
	}
	if t.ffmpegPath == "" {
		t.ffmpegPath = defaultFFmpegPath
	}
	if t.ffprobe == "" {
		t.ffprobe = defaultFFprobe
	}
	if t.videoCodec == "" {
		t.videoCodec = defaultVideoCodec
	}
	if t.audioCodec == "" {
		t.audioCodec = defaultAudioCodec
	}
	if t.preset == "" {
		t.preset = defaultPreset
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// Transform renders req.SourcePath with the configured edits into
// req.DestPath. The source file is never modified. The cancel flag is checked
// on entry and once more after the video edits are planned, before any audio
// replacement is prepared.
func (t *Transformer) Transform(ctx context.Context, req TransformRequest) (string, error) {
	if isCanceled(req.Cancel) {
		return "", ErrCanceled
	}

	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	if _, err := os.Stat(req.SourcePath); err != nil {
		return "", fmt.Errorf("source file: %w", err)
	}

	probe, err := t.probe(ctx, req.SourcePath)
	if err != nil {
		return "", fmt.Errorf("probe source: %w", err)
	}

	filterComplex, audioLabel := buildFilterComplex(cfg, logoInputIndex(cfg), probe.HasAudio)
	report(req.OnProgress, progressMidpoint)

	if isCanceled(req.Cancel) {
		return "", ErrCanceled
	}

	if cfg.Audio == AudioReplace {
		if _, err := os.Stat(cfg.AudioPath); err != nil {
			return "", fmt.Errorf("audio replacement failed: %w", err)
		}
	}
	if cfg.LogoPath != "" {
		if _, err := os.Stat(cfg.LogoPath); err != nil {
			return "", fmt.Errorf("logo overlay failed: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(req.DestPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	args := t.buildArgs(req.SourcePath, req.DestPath, cfg, filterComplex, audioLabel, probe.HasAudio)
	t.logger.Debug("Running ffmpeg", "source", req.SourcePath, "dest", req.DestPath, "filter", filterComplex)

	outputDuration := probe.Duration / cfg.Speed
	if err := t.encode(ctx, args, outputDuration, req.OnProgress); err != nil {
		_ = os.Remove(req.DestPath)
		return "", err
	}

	report(req.OnProgress, progressDone)
	return req.DestPath, nil
}

func (t *Transformer) buildArgs(source, dest string, cfg EditConfig, filterComplex, audioLabel string, hasAudio bool) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-nostats", "-progress", "pipe:1", "-i", source}

	if cfg.LogoPath != "" {
		args = append(args, "-i", cfg.LogoPath)
	}
	if cfg.Audio == AudioReplace {
		args = append(args, "-i", cfg.AudioPath)
	}

	args = append(args, "-filter_complex", filterComplex, "-map", "[v]")

	withAudio := false
	switch {
	case cfg.Audio == AudioRemove:
		args = append(args, "-an")
	case cfg.Audio == AudioReplace:
		args = append(args, "-map", audioLabel, "-shortest")
		withAudio = true
	case audioLabel != "":
		args = append(args, "-map", audioLabel)
		withAudio = true
	case hasAudio:
		args = append(args, "-map", "0:a:0")
		withAudio = true
	}

	args = append(args,
		"-c:v", t.videoCodec,
		"-preset", t.preset,
		"-pix_fmt", "yuv420p",
	)
	if withAudio {
		args = append(args, "-c:a", t.audioCodec)
	}
	args = append(args, "-movflags", "+faststart", dest)

	return args
}

func logoInputIndex(cfg EditConfig) int {
	if cfg.LogoPath == "" {
		return -1
	}
	return 1
}

func replaceAudioInputIndex(cfg EditConfig) int {
	if cfg.LogoPath != "" {
		return 2
	}
	return 1
}

// buildFilterComplex returns the filter graph and, when the audio is retimed
// or replaced, the label of the audio output.
func buildFilterComplex(cfg EditConfig, logoIndex int, hasAudio bool) (string, string) {
	chain := strings.Join(videoFilters(cfg), ",")

	var parts []string
	if logoIndex >= 0 {
		parts = append(parts,
			fmt.Sprintf("[0:v]%s[base]", chain),
			fmt.Sprintf("[%d:v]format=rgba[logo]", logoIndex),
			fmt.Sprintf("[base][logo]overlay=W-w-%d:H-h-%d[v]", logoMargin, logoMargin),
		)
	} else {
		parts = append(parts, fmt.Sprintf("[0:v]%s[v]", chain))
	}

	audioLabel := ""
	switch {
	case cfg.Audio == AudioReplace:
		// Padded with silence so -shortest always ends on the video.
		parts = append(parts, fmt.Sprintf("[%d:a]apad[a]", replaceAudioInputIndex(cfg)))
		audioLabel = "[a]"
	case cfg.Audio == AudioKeep && hasAudio && cfg.Speed != 1.0:
		parts = append(parts, fmt.Sprintf("[0:a]%s[a]", strings.Join(atempoChain(cfg.Speed), ",")))
		audioLabel = "[a]"
	}

	return strings.Join(parts, ";"), audioLabel
}

func videoFilters(cfg EditConfig) []string {
	var filters []string

	switch cfg.Flip {
	case FlipHorizontal:
		filters = append(filters, "hflip")
	case FlipVertical:
		filters = append(filters, "vflip")
	}

	if cfg.Rotation != 0 {
		a := formatFloat(cfg.Rotation) + "*PI/180"
		filters = append(filters, fmt.Sprintf("rotate=%s:ow=rotw(%s):oh=roth(%s)", a, a, a))
	}

	if cfg.Zoom > 1.0 {
		z := formatFloat(cfg.Zoom)
		filters = append(filters,
			fmt.Sprintf("crop=iw/%s:ih/%s", z, z),
			fmt.Sprintf("scale=iw*%s:ih*%s", z, z),
		)
	}

	if cfg.OverlayOpacity > 0 {
		filters = append(filters, fmt.Sprintf("drawbox=x=0:y=0:w=iw:h=ih:color=black@%s:t=fill", formatFloat(cfg.OverlayOpacity)))
	}

	if cfg.Speed != 1.0 {
		filters = append(filters, fmt.Sprintf("setpts=PTS/%s", formatFloat(cfg.Speed)))
	}

	if cfg.Brightness != 1.0 {
		b := formatFloat(cfg.Brightness)
		filters = append(filters, fmt.Sprintf("colorchannelmixer=rr=%s:gg=%s:bb=%s", b, b, b))
	}

	if cfg.Contrast != 1.0 || cfg.Saturation != 1.0 {
		filters = append(filters, fmt.Sprintf("eq=contrast=%s:saturation=%s", formatFloat(cfg.Contrast), formatFloat(cfg.Saturation)))
	}

	// libx264 with yuv420p needs even dimensions after crop/rotate.
	filters = append(filters, "scale=trunc(iw/2)*2:trunc(ih/2)*2")

	return filters
}

// atempoChain splits a speed factor into atempo stages, each within the
// [0.5, 2.0] range the filter accepts.
func atempoChain(speed float64) []string {
	var stages []string
	for speed > 2.0 {
		stages = append(stages, "atempo=2")
		speed /= 2.0
	}
	for speed < 0.5 {
		stages = append(stages, "atempo=0.5")
		speed /= 0.5
	}
	return append(stages, "atempo="+formatFloat(speed))
}

func (t *Transformer) probe(ctx context.Context, path string) (*probeResult, error) {
	cmd := exec.CommandContext(ctx, t.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type",
		"-of", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w, output: %s", err, truncate(stderr.String()))
	}

	return parseProbe(output)
}

func parseProbe(data []byte) (*probeResult, error) {
	var raw struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	result := &probeResult{}
	for _, stream := range raw.Streams {
		switch stream.CodecType {
		case "video":
			result.HasVideo = true
		case "audio":
			result.HasAudio = true
		}
	}
	if !result.HasVideo {
		return nil, errors.New("no video stream found")
	}

	if raw.Format.Duration != "" {
		duration, err := strconv.ParseFloat(raw.Format.Duration, 64)
		if err == nil {
			result.Duration = duration
		}
	}

	return result, nil
}

func (t *Transformer) encode(ctx context.Context, args []string, duration float64, onProgress func(float64)) error {
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach ffmpeg output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if percent, ok := parseProgressLine(scanner.Text(), duration); ok {
			report(onProgress, percent)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w, output: %s", err, truncate(stderr.String()))
	}

	return nil
}

// parseProgressLine maps an ffmpeg -progress line onto the encode half of the
// task progress range. Completion itself is reported by the caller.
func parseProgressLine(line string, duration float64) (float64, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || duration <= 0 {
		return 0, false
	}
	if key != "out_time_us" && key != "out_time_ms" {
		return 0, false
	}

	micros, err := strconv.ParseInt(value, 10, 64)
	if err != nil || micros < 0 {
		return 0, false
	}

	fraction := float64(micros) / 1e6 / duration
	fraction = min(fraction, 0.99)

	return progressMidpoint + fraction*(progressDone-progressMidpoint), true
}

func report(onProgress func(float64), percent float64) {
	if onProgress != nil {
		onProgress(percent)
	}
}

func isCanceled(c CancelChecker) bool {
	return c != nil && c.Canceled()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorOutput {
		return "..." + s[len(s)-maxErrorOutput:]
	}
	return s
}
