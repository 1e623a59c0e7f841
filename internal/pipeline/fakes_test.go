package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nikhilbhutani/minutesai/internal/config"
	"github.com/nikhilbhutani/minutesai/internal/models"
)

const mib = int64(config.MiB)

func testConfig(t interface{ TempDir() string }) (config.PipelineConfig, config.MinutesConfig) {
	pipe, minutes := config.Defaults()
	pipe.WorkDir = t.TempDir()
	pipe.CallTimeout = 5 * time.Second
	return pipe, minutes
}

// fakeTranscoder writes real files so size checks and cleanup can be observed.
type fakeTranscoder struct {
	mu            sync.Mutex
	convertCalls  []string
	segmentStarts map[string]float64
	convertSize   int64
	convertErr    error
	failAtStart   float64
	segmentErr    error
}

func newFakeTranscoder() *fakeTranscoder {
	return &fakeTranscoder{segmentStarts: map[string]float64{}, convertSize: 1024, failAtStart: -1}
}

func (f *fakeTranscoder) Convert(_ context.Context, in string) (string, error) {
	f.mu.Lock()
	f.convertCalls = append(f.convertCalls, in)
	f.mu.Unlock()
	if f.convertErr != nil {
		return "", f.convertErr
	}
	out := strings.TrimSuffix(in, filepath.Ext(in)) + ".normalized.mp3"
	if err := os.WriteFile(out, make([]byte, f.convertSize), 0o600); err != nil {
		return "", err
	}
	return out, nil
}

func (f *fakeTranscoder) ExtractSegment(ctx context.Context, in string, start, dur float64) (string, error) {
	if f.segmentErr != nil && start == f.failAtStart {
		return "", f.segmentErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	out := fmt.Sprintf("%s.seg-%06.0f.mp3", strings.TrimSuffix(in, filepath.Ext(in)), start*1000)
	if err := os.WriteFile(out, []byte("segment"), 0o600); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.segmentStarts[out] = start
	f.mu.Unlock()
	return out, nil
}

func (f *fakeTranscoder) startOf(path string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.segmentStarts[path]
	return s, ok
}

func (f *fakeTranscoder) convertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.convertCalls)
}

type fakeProbe struct {
	duration *float64
	err      error
	calls    int
}

func (p *fakeProbe) Probe(_ context.Context, path string) (models.ProbeResult, error) {
	p.calls++
	if p.err != nil {
		return models.ProbeResult{}, p.err
	}
	info, err := os.Stat(path)
	if err != nil {
		return models.ProbeResult{}, err
	}
	return models.ProbeResult{DurationSeconds: p.duration, SizeBytes: info.Size()}, nil
}

type fakeSTT struct {
	mu       sync.Mutex
	paths    []string
	text     func(path string) (string, error)
	maxDelay time.Duration
}

func (s *fakeSTT) Transcribe(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()

	if s.maxDelay > 0 {
		select {
		case <-time.After(rand.N(s.maxDelay)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text(path)
}

func (s *fakeSTT) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

type completion struct {
	system string
	user   string
}

type fakeGenerator struct {
	mu       sync.Mutex
	calls    []completion
	respond  func(system, user string) (string, error)
	maxDelay time.Duration
}

func (g *fakeGenerator) Complete(ctx context.Context, system, user string) (string, error) {
	if g.maxDelay > 0 {
		select {
		case <-time.After(rand.N(g.maxDelay)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	g.mu.Lock()
	g.calls = append(g.calls, completion{system: system, user: user})
	g.mu.Unlock()
	return g.respond(system, user)
}

func (g *fakeGenerator) recorded() []completion {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]completion(nil), g.calls...)
}

func ptr(f float64) *float64 { return &f }
