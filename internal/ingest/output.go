package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Outputs are the files written next to each other for one processed recording.
type Outputs struct {
	TranscriptPath string
	MinutesPath    string
}

// OutputPaths names the result files for input inside outDir.
func OutputPaths(outDir, input string) Outputs {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return Outputs{
		TranscriptPath: filepath.Join(outDir, stem+".transcript.txt"),
		MinutesPath:    filepath.Join(outDir, stem+".minutes.md"),
	}
}

// WriteOutputs writes the transcript and minutes for input. Each file is written to a
// temporary name and renamed, so readers never see a partial document.
func WriteOutputs(outDir, input, transcript, minutes string) (Outputs, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Outputs{}, fmt.Errorf("create output dir: %w", err)
	}
	out := OutputPaths(outDir, input)
	if err := writeFileAtomic(out.TranscriptPath, transcript+"\n"); err != nil {
		return Outputs{}, err
	}
	if err := writeFileAtomic(out.MinutesPath, minutes+"\n"); err != nil {
		return Outputs{}, err
	}
	return out, nil
}

func writeFileAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
