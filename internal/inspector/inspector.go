package inspector

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

// Info describes a single image file: pixel dimensions from the
// decoder header plus whatever EXIF metadata could be read.
type Info struct {
	Path        string
	SizeBytes   int64
	Width       int
	Height      int
	Format      string
	CapturedAt  *time.Time
	Software    string
	CameraModel string
}

// Inspector reads image headers and EXIF metadata for diagnostics,
// backing the inspect command.
type Inspector struct {
	log *logrus.Logger
}

// New returns an Inspector.
func New(log *logrus.Logger) *Inspector {
	return &Inspector{log: log}
}

// Inspect reads the file at path. Dimensions come from the image
// header; EXIF fields are best-effort and stay empty when the file
// carries none or the exiftool binary is unavailable.
func (i *Inspector) Inspect(path string) (*Info, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}

	info := &Info{
		Path:      path,
		SizeBytes: stat.Size(),
		Width:     cfg.Width,
		Height:    cfg.Height,
		Format:    format,
	}
	info.CapturedAt = i.extractCaptureTime(path)
	i.fillTagFields(info)
	return info, nil
}

// extractCaptureTime reads the EXIF capture timestamp, trying the
// standard tags in order. A file without EXIF yields nil.
func (i *Inspector) extractCaptureTime(path string) *time.Time {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil
	}

	if tm, err := x.DateTime(); err == nil {
		return &tm
	}
	for _, tag := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized} {
		field, err := x.Get(tag)
		if err != nil {
			continue
		}
		raw, err := field.StringVal()
		if err != nil {
			continue
		}
		if t := parseEXIFDateTime(raw); t != nil {
			return t
		}
	}
	return nil
}

// fillTagFields pulls Software and camera model through exiftool.
// Missing binary or unreadable tags are logged at debug and ignored.
func (i *Inspector) fillTagFields(info *Info) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		i.log.Debugf("exiftool unavailable, skipping tag fields: %v", err)
		return
	}
	defer et.Close()

	metas := et.ExtractMetadata(info.Path)
	if len(metas) == 0 || metas[0].Err != nil {
		return
	}
	if v, ok := metas[0].Fields["Software"].(string); ok {
		info.Software = v
	}
	if v, ok := metas[0].Fields["Model"].(string); ok {
		info.CameraModel = v
	}
}

// parseEXIFDateTime parses the datetime layouts seen in EXIF data.
func parseEXIFDateTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	layouts := []string{
		"2006:01:02 15:04:05",
		"2006-01-02 15:04:05",
		"2006:01:02",
		"2006-01-02",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
