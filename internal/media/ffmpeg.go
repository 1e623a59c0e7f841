package media

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/minutesai/internal/config"
)

// FFmpeg converts uploads to the canonical audio container and cuts segments out of
// canonical files. Outputs are written next to the input file.
type FFmpeg struct {
	exec      Executor
	bin       string
	bitrate   string
	extension string
}

func NewFFmpeg(exec Executor, cfg config.MediaConfig, canonicalExt string) *FFmpeg {
	bin := cfg.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}
	bitrate := cfg.AudioBitrate
	if bitrate == "" {
		bitrate = "128k"
	}
	if canonicalExt == "" {
		canonicalExt = ".mp3"
	}
	return &FFmpeg{exec: exec, bin: bin, bitrate: bitrate, extension: canonicalExt}
}

// Convert re-encodes the input's audio into the canonical container, dropping any video stream.
func (f *FFmpeg) Convert(ctx context.Context, inputPath string) (string, error) {
	out := siblingPath(inputPath, "normalized", f.extension)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", inputPath,
		"-vn",
		"-acodec", codecFor(f.extension),
		"-b:a", f.bitrate,
		out,
	}
	if _, err := f.exec.Execute(ctx, f.bin, args...); err != nil {
		return "", fmt.Errorf("convert %s: %w", filepath.Base(inputPath), err)
	}
	return out, nil
}

// ExtractSegment copies [start, start+duration) of a canonical file into a new file.
// The stream is copied, not re-encoded.
func (f *FFmpeg) ExtractSegment(ctx context.Context, inputPath string, startSeconds, durationSeconds float64) (string, error) {
	out := siblingPath(inputPath, fmt.Sprintf("seg-%09d", int64(startSeconds*1000)), f.extension)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", formatSeconds(startSeconds),
		"-t", formatSeconds(durationSeconds),
		"-i", inputPath,
		"-vn",
		"-acodec", "copy",
		out,
	}
	if _, err := f.exec.Execute(ctx, f.bin, args...); err != nil {
		return "", fmt.Errorf("extract segment at %ss: %w", formatSeconds(startSeconds), err)
	}
	return out, nil
}

func siblingPath(inputPath, suffix, ext string) string {
	dir := filepath.Dir(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(dir, base+"."+suffix+ext)
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func codecFor(ext string) string {
	switch strings.ToLower(ext) {
	case ".wav":
		return "pcm_s16le"
	case ".m4a", ".aac":
		return "aac"
	case ".ogg", ".opus":
		return "libopus"
	case ".flac":
		return "flac"
	default:
		return "libmp3lame"
	}
}
