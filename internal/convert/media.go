package convert

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

var (
	mediaInputFormats  = []string{"mp4", "avi", "mov", "mkv", "wmv", "flv", "webm", "mp3", "wav", "flac", "aac", "ogg"}
	mediaOutputFormats = []string{"mp4", "avi", "mov", "mkv", "webm", "wmv", "gif", "mp3", "wav", "aac", "flac", "ogg"}
)

// MediaConverter transcodes audio and video by shelling out to ffmpeg.
// With no ffmpeg path configured the family reports an empty capability set
// and the registry never routes to it.
type MediaConverter struct {
	ffmpegPath string
	pairs      []Pair
}

// NewMediaConverter builds the media family around the configured ffmpeg binary
func NewMediaConverter(ffmpegPath string) *MediaConverter {
	c := &MediaConverter{ffmpegPath: ffmpegPath}
	if ffmpegPath != "" {
		c.pairs = product(mediaInputFormats, mediaOutputFormats)
	}
	return c
}

func (c *MediaConverter) Name() string { return "media" }

func (c *MediaConverter) Pairs() []Pair { return c.pairs }

func (c *MediaConverter) Convert(ctx context.Context, inputPath, outputPath string, opts Options) error {
	args := []string{"-i", inputPath, "-y"}

	// Animated GIF needs an explicit frame rate and width to stay small
	if NormalizeFormat(opts.TargetFormat) == "gif" {
		args = append(args, "-vf", "fps=10,scale=480:-1:flags=lanczos")
	}

	args = append(args, outputPath)

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg failed: %v: %s", err, lastLine(string(out)))
	}

	return nil
}

// lastLine trims ffmpeg's banner noise down to its final message
func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
