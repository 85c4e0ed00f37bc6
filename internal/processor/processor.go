package processor

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned by a Factory when no processor
	// is registered for the file extension of a source.
	ErrUnsupportedFormat = errors.New("processor: unsupported image format")
	// ErrQualityOutOfRange is returned by NewQuality for values
	// outside [0,100].
	ErrQualityOutOfRange = errors.New("processor: quality value out of range")
)

// Quality is a validated JPEG compression quality in [0,100].
// 0 is smallest/most lossy, 100 is largest/least lossy. The zero value
// is a valid quality of 0; NewQuality is the only validation point and
// everything downstream treats a Quality as pre-validated.
type Quality struct {
	value int
}

// NewQuality validates raw and returns it as a Quality.
func NewQuality(raw int) (Quality, error) {
	if raw < 0 || raw > 100 {
		return Quality{}, fmt.Errorf("%w: %d", ErrQualityOutOfRange, raw)
	}
	return Quality{value: raw}, nil
}

// Int returns the validated quality value.
func (q Quality) Int() int {
	return q.value
}

// String implements fmt.Stringer.
func (q Quality) String() string {
	return fmt.Sprintf("%d", q.value)
}

// Processor shrinks the single input it was created for. A processor
// is bound to exactly one input path and may be invoked multiple times
// with different outputs or qualities; identical inputs produce
// identical outputs.
type Processor interface {
	// Shrink decodes the bound input, re-encodes it at the given
	// quality and writes the result to outputPath. Width, height and
	// color layout are preserved. On failure no file is left at
	// outputPath.
	Shrink(outputPath string, quality Quality) error
	// InputPath returns the path this processor reads from.
	InputPath() string
}

// Factory classifies a source path and returns a matching Processor.
// Implementations perform no I/O and must be safe for concurrent use.
type Factory interface {
	Create(sourcePath string) (Processor, error)
}

// DecodeError reports a byte stream that is not a valid image of the
// format its extension declared.
type DecodeError struct {
	Path  string
	Cause string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("processor: decoding %s: %s", e.Path, e.Cause)
}
