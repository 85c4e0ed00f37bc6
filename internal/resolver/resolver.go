package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// tempPrefix is the staging file name prefix. The suffix stays .jpg
// regardless of the remote content type; a non-JPEG body is caught by
// the processor's decode step, which ties the failure to its source.
const (
	tempPrefix = "img_compactor_"
	tempSuffix = ".jpg"
)

// SourceKind tells a local path apart from a remote URL.
type SourceKind int

const (
	SourceLocal SourceKind = iota
	SourceRemote
)

// String returns the kind name for logging.
func (k SourceKind) String() string {
	if k == SourceRemote {
		return "remote"
	}
	return "local"
}

// Classify reports whether raw names a remote URL. Only the literal,
// case-sensitive prefixes http:// and https:// count as remote;
// everything else is treated as a local path.
func Classify(raw string) SourceKind {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return SourceRemote
	}
	return SourceLocal
}

// StagedInput is the local path a processor will read. For remote
// sources Staged is true and Path names a freshly written temp file.
type StagedInput struct {
	Path   string
	Staged bool
}

// FetchError reports a failed remote fetch.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolver: fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("resolver: fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Options configures a Resolver.
type Options struct {
	// Timeout bounds a whole fetch including the body read. Zero
	// means no timeout.
	Timeout time.Duration
	// UserAgent is sent on fetch requests when non-empty.
	UserAgent string
	// RetainTempFiles keeps staged downloads on disk after the item
	// finishes instead of removing them.
	RetainTempFiles bool
	// TempDir overrides the staging directory. Empty means the
	// system default.
	TempDir string
}

// Resolver turns a source string into a locally readable path, staging
// remote bytes to a temp file. Local paths pass through untouched;
// whether they exist is the processor's problem.
type Resolver struct {
	client     *http.Client
	userAgent  string
	retainTemp bool
	tempDir    string
	log        *logrus.Logger
}

// New returns a Resolver using its own HTTP client.
func New(opts Options, log *logrus.Logger) *Resolver {
	return &Resolver{
		client:     &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		retainTemp: opts.RetainTempFiles,
		tempDir:    opts.TempDir,
		log:        log,
	}
}

// Resolve classifies source and returns the path to read from. Remote
// sources are fetched with a single GET, no retries: a transport
// failure or a non-2xx status yields a FetchError.
func (r *Resolver) Resolve(ctx context.Context, source string) (StagedInput, error) {
	if Classify(source) == SourceLocal {
		return StagedInput{Path: source}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return StagedInput{}, &FetchError{URL: source, Err: err}
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return StagedInput{}, &FetchError{URL: source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return StagedInput{}, &FetchError{URL: source, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return StagedInput{}, &FetchError{URL: source, Err: err}
	}

	tmp, err := os.CreateTemp(r.tempDir, tempPrefix+"*"+tempSuffix)
	if err != nil {
		return StagedInput{}, fmt.Errorf("resolver: create staging file: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return StagedInput{}, fmt.Errorf("resolver: write staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return StagedInput{}, fmt.Errorf("resolver: close staging file: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"source": source,
		"staged": tmp.Name(),
		"bytes":  len(body),
		"retain": r.retainTemp,
	}).Debug("Staged remote source")

	return StagedInput{Path: tmp.Name(), Staged: true}, nil
}

// Release disposes of a staged input once its item has finished.
// Local inputs and retained temp files are left alone.
func (r *Resolver) Release(in StagedInput) {
	if !in.Staged || r.retainTemp {
		return
	}
	if err := os.Remove(in.Path); err != nil && !os.IsNotExist(err) {
		r.log.WithField("staged", in.Path).Warnf("Failed to remove staging file: %v", err)
	}
}
