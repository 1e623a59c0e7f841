package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/minutesai/internal/models"
)

func TestPlanChunks(t *testing.T) {
	pipe, _ := testConfig(t)
	threshold := pipe.SizeThresholdBytes

	tests := []struct {
		name          string
		size          int64
		duration      *float64
		wantCount     int
		wantChunkSecs float64
		wantTotal     float64
		wantFallback  bool
	}{
		{name: "under threshold", size: 3 * mib, duration: ptr(600), wantCount: 1},
		{name: "exactly threshold is not split", size: threshold, duration: ptr(600), wantCount: 1},
		{name: "scenario B", size: 12 * mib, duration: ptr(120), wantCount: 3, wantChunkSecs: 50, wantTotal: 120},
		{name: "twice threshold", size: 10 * mib, duration: ptr(100), wantCount: 2, wantChunkSecs: 50, wantTotal: 100},
		{name: "floor at minimum chunk", size: 1000 * mib, duration: ptr(60), wantCount: 12, wantChunkSecs: 5, wantTotal: 60},
		{name: "nil duration falls back", size: 10 * mib, duration: nil, wantCount: 2, wantChunkSecs: 30, wantTotal: 60, wantFallback: true},
		{name: "zero duration falls back", size: 10 * mib, duration: ptr(0), wantCount: 2, wantChunkSecs: 30, wantTotal: 60, wantFallback: true},
		{name: "short over-threshold file keeps one chunk", size: 6 * mib, duration: ptr(3), wantCount: 1, wantChunkSecs: 5, wantTotal: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanChunks(tt.size, tt.duration, pipe)
			assert.Equal(t, tt.wantCount, plan.ChunkCount)
			assert.InDelta(t, tt.wantChunkSecs, plan.ChunkDurationSeconds, 1e-9)
			assert.InDelta(t, tt.wantTotal, plan.TotalDurationSeconds, 1e-9)
			assert.Equal(t, tt.wantFallback, plan.DurationFallback)
		})
	}
}

func TestPlanChunks_ThresholdPlusOneSplits(t *testing.T) {
	pipe, _ := testConfig(t)
	plan := PlanChunks(pipe.SizeThresholdBytes+1, nil, pipe)
	assert.GreaterOrEqual(t, plan.ChunkCount, 2)
	assert.False(t, plan.Degenerate())
}

func TestPlanChunks_ChunkDurationNeverBelowMinimum(t *testing.T) {
	pipe, _ := testConfig(t)
	for _, size := range []int64{6 * mib, 50 * mib, 500 * mib, 5000 * mib} {
		for _, d := range []float64{1, 10, 60, 3600} {
			plan := PlanChunks(size, ptr(d), pipe)
			assert.GreaterOrEqual(t, plan.ChunkDurationSeconds, pipe.MinChunkSeconds, "size=%d duration=%v", size, d)
			assert.GreaterOrEqual(t, float64(plan.ChunkCount)*plan.ChunkDurationSeconds, d-1e-6)
		}
	}
}

func writeMedia(t *testing.T, dir string, size int64) models.NormalizedMedia {
	t.Helper()
	path := filepath.Join(dir, "upload.mp3")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
	return models.NormalizedMedia{Path: path, SizeBytes: size}
}

func TestSplitter_DegenerateDoesNotTranscodeOrProbe(t *testing.T) {
	pipe, _ := testConfig(t)
	tc := newFakeTranscoder()
	probe := &fakeProbe{duration: ptr(120)}
	media := writeMedia(t, t.TempDir(), 3*mib)

	plan, chunks, err := NewSplitter(tc, probe, pipe, nil).Split(context.Background(), media)
	require.NoError(t, err)

	assert.True(t, plan.Degenerate())
	require.Len(t, chunks, 1)
	assert.Equal(t, media.Path, chunks[0].Path)
	assert.False(t, chunks[0].Extracted)
	assert.Zero(t, probe.calls)
	assert.Empty(t, tc.segmentStarts)
}

func TestSplitter_ExtractsOrderedChunks(t *testing.T) {
	pipe, _ := testConfig(t)
	tc := newFakeTranscoder()
	media := writeMedia(t, t.TempDir(), 12*mib)

	plan, chunks, err := NewSplitter(tc, &fakeProbe{duration: ptr(120)}, pipe, nil).Split(context.Background(), media)
	require.NoError(t, err)

	assert.Equal(t, 3, plan.ChunkCount)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Ordinal)
		assert.InDelta(t, float64(i)*50, c.StartSeconds, 1e-9)
		assert.InDelta(t, 50, c.DurationSeconds, 1e-9)
		assert.True(t, c.Extracted)
		assert.FileExists(t, c.Path)
	}
}

func TestSplitter_ExtractionFailureFailsWholeSplit(t *testing.T) {
	pipe, _ := testConfig(t)
	tc := newFakeTranscoder()
	tc.failAtStart = 50
	tc.segmentErr = errors.New("ffmpeg exploded")
	media := writeMedia(t, t.TempDir(), 12*mib)

	_, chunks, err := NewSplitter(tc, &fakeProbe{duration: ptr(120)}, pipe, nil).Split(context.Background(), media)
	require.Error(t, err)
	assert.Nil(t, chunks)
	assert.Contains(t, err.Error(), "ffmpeg exploded")
}

func TestSplitter_ProbeError(t *testing.T) {
	pipe, _ := testConfig(t)
	media := writeMedia(t, t.TempDir(), 12*mib)

	tc := newFakeTranscoder()
	_, _, err := NewSplitter(tc, &fakeProbe{err: errors.New("stat failed")}, pipe, nil).Split(context.Background(), media)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe media")
	assert.Empty(t, tc.segmentStarts, "no fallback plan is extracted after a probe error")
}
