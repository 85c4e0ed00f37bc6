package processor

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// SoftwareMark is written into the EXIF Software tag of shrunk outputs
// so a later run can recognize and skip them.
const SoftwareMark = "img-compactor"

// CopyMetadata copies the EXIF block from src onto dst and sets the
// Software tag to SoftwareMark. Re-encoding drops all metadata, so
// this runs after a successful shrink when metadata carry-over is
// enabled. Requires the exiftool binary on PATH.
func CopyMetadata(src, dst string) error {
	copyCmd := exec.Command("exiftool", "-TagsFromFile", src, "-overwrite_original", dst)
	if out, err := copyCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("exiftool tag copy failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	markCmd := exec.Command("exiftool", "-overwrite_original", "-Software="+SoftwareMark, dst)
	if out, err := markCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("exiftool software mark failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// HasShrinkMark reports whether the EXIF Software tag of the file at
// path carries SoftwareMark. Any read or decode problem counts as "no
// mark" so the caller falls through to a normal shrink.
func HasShrinkMark(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	x, err := exif.Decode(f)
	if err != nil {
		return false
	}
	tag, err := x.Get(exif.Software)
	if err != nil {
		return false
	}
	val, err := tag.StringVal()
	if err != nil {
		return false
	}
	return strings.Contains(val, SoftwareMark)
}
