package processor

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultFactory dispatches on the file extension of a source path.
// It holds no mutable state and a single instance can be shared by any
// number of goroutines without synchronization.
type DefaultFactory struct {
	table map[string]func(inputPath string) Processor
}

// NewDefaultFactory returns a factory with the built-in JPEG codec
// registered. New codecs are added by extending the dispatch table.
func NewDefaultFactory() *DefaultFactory {
	table := map[string]func(string) Processor{}
	jpeg := func(inputPath string) Processor {
		return &JPEGProcessor{inputPath: inputPath}
	}
	table["jpg"] = jpeg
	table["jpeg"] = jpeg
	return &DefaultFactory{table: table}
}

// Create returns a processor for sourcePath or ErrUnsupportedFormat.
// The extension match is case-sensitive: "photo.JPG" is not a
// supported source.
func (f *DefaultFactory) Create(sourcePath string) (Processor, error) {
	ext := strings.TrimPrefix(filepath.Ext(sourcePath), ".")
	if ext == "" {
		return nil, fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, sourcePath)
	}
	build, ok := f.table[ext]
	if !ok {
		return nil, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
	}
	return build(sourcePath), nil
}

// Supported returns the registered extensions in sorted order.
func (f *DefaultFactory) Supported() []string {
	exts := make([]string, 0, len(f.table))
	for ext := range f.table {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
