package processor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// JPEGProcessor re-encodes a single JPEG file at a target quality.
type JPEGProcessor struct {
	inputPath string
}

// InputPath returns the bound input path.
func (p *JPEGProcessor) InputPath() string {
	return p.inputPath
}

// Shrink decodes the bound input and writes a re-encoded copy to
// outputPath. The encode goes to an in-memory buffer first and the
// output file is created with a write-then-rename, so a failure at any
// step leaves either the previous file or no file at outputPath, never
// a truncated one.
func (p *JPEGProcessor) Shrink(outputPath string, quality Quality) error {
	f, err := os.Open(p.inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return &DecodeError{Path: p.inputPath, Cause: err.Error()}
	}
	if format != "jpeg" {
		return &DecodeError{Path: p.inputPath, Cause: fmt.Sprintf("expected JPEG data, found %s", format)}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality.Int())); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), "."+filepath.Base(outputPath)+".tmp-")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
