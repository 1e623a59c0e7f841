package media

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/minutesai/internal/config"
	"github.com/nikhilbhutani/minutesai/internal/models"
)

// FFprobe reads container duration. A missing or unparseable duration is reported
// as nil, not as an error; only an unreadable file is an error.
type FFprobe struct {
	exec Executor
	bin  string
}

func NewFFprobe(exec Executor, cfg config.MediaConfig) *FFprobe {
	bin := cfg.FFprobePath
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFprobe{exec: exec, bin: bin}
}

func (p *FFprobe) Probe(ctx context.Context, path string) (models.ProbeResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.ProbeResult{}, fmt.Errorf("stat %s: %w", path, err)
	}
	result := models.ProbeResult{SizeBytes: info.Size()}

	out, err := p.exec.Execute(ctx, p.bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		if ctx.Err() != nil {
			return models.ProbeResult{}, ctx.Err()
		}
		slog.Debug("ffprobe failed, duration unknown", "path", path, "error", err)
		return result, nil
	}

	result.DurationSeconds = parseDuration(out)
	return result, nil
}

func parseDuration(out string) *float64 {
	s := strings.TrimSpace(out)
	if s == "" || s == "N/A" {
		return nil
	}
	// some containers print one line per stream
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return nil
	}
	return &d
}
