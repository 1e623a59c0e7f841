package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nikhilbhutani/minutesai/internal/config"
	"github.com/nikhilbhutani/minutesai/internal/models"
	"github.com/nikhilbhutani/minutesai/internal/observability"
)

// Normalizer guarantees downstream stages see the canonical audio container.
type Normalizer struct {
	transcoder   Transcoder
	canonicalExt string
	ambiguous    map[string]bool
	timeout      time.Duration
	metrics      *observability.Metrics
}

func NewNormalizer(t Transcoder, cfg config.PipelineConfig, m *observability.Metrics) *Normalizer {
	ambiguous := make(map[string]bool, len(cfg.AmbiguousMIMETypes))
	for _, mt := range cfg.AmbiguousMIMETypes {
		ambiguous[mimeBase(mt)] = true
	}
	return &Normalizer{
		transcoder:   t,
		canonicalExt: strings.ToLower(cfg.CanonicalExtension),
		ambiguous:    ambiguous,
		timeout:      cfg.CallTimeout,
		metrics:      m,
	}
}

// NeedsConversion is true when the declared extension is not canonical or the declared
// MIME type is one that is known to misreport its codec. Neither signal is trusted alone.
func (n *Normalizer) NeedsConversion(m models.UploadedMedia) bool {
	if strings.ToLower(m.DeclaredExtension) != n.canonicalExt {
		return true
	}
	return n.ambiguous[mimeBase(m.DeclaredMIMEType)]
}

// Normalize returns the upload itself when it is already canonical, otherwise a converted
// copy. The upload is never deleted here.
func (n *Normalizer) Normalize(ctx context.Context, m models.UploadedMedia) (models.NormalizedMedia, error) {
	if !n.NeedsConversion(m) {
		return models.NormalizedMedia{Path: m.Path, SizeBytes: m.SizeBytes}, nil
	}

	logger(ctx).Info("converting upload to canonical format",
		"extension", m.DeclaredExtension,
		"mime_type", m.DeclaredMIMEType,
		"target", n.canonicalExt,
	)

	callCtx, cancel := callContext(ctx, n.timeout)
	defer cancel()

	out, err := n.transcoder.Convert(callCtx, m.Path)
	n.metrics.ObserveCall("transcoder", err)
	if err != nil {
		return models.NormalizedMedia{}, err
	}

	info, err := os.Stat(out)
	if err != nil {
		return models.NormalizedMedia{}, fmt.Errorf("stat converted file: %w", err)
	}

	return models.NormalizedMedia{Path: out, SizeBytes: info.Size(), Converted: true}, nil
}

// mimeBase drops parameters such as "; codecs=opus".
func mimeBase(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}
