package runner

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"img-compactor-go/internal/processor"
	"img-compactor-go/internal/resolver"
	"img-compactor-go/internal/statistics"

	"github.com/sirupsen/logrus"
)

// Result describes the outcome of one source. Every submitted source
// yields exactly one Result; a failure is carried in Err and never
// affects sibling items.
type Result struct {
	Source       string
	OutputPath   string
	OriginalSize int64
	ShrunkSize   int64
	Skipped      bool
	Err          error
	StartedAt    time.Time
	FinishedAt   time.Time
}

// ItemHook is called after each item completes, from worker
// goroutines. Used by the web interface to stream progress.
type ItemHook func(Result)

// Options tunes a Runner.
type Options struct {
	// Workers bounds the pool; zero means max(NumCPU, 2).
	Workers int
	// SkipAlreadyShrunk skips local JPEGs whose EXIF Software tag
	// carries the img-compactor mark.
	SkipAlreadyShrunk bool
	// KeepMetadata copies EXIF from source to output after a shrink.
	KeepMetadata bool
	// ItemHook, when set, receives every Result as it completes.
	ItemHook ItemHook
}

// Runner drives sources through resolve, dispatch and shrink on a
// bounded worker pool.
type Runner struct {
	factory  processor.Factory
	resolver *resolver.Resolver
	stats    *statistics.Statistics
	log      *logrus.Logger
	opts     Options
}

// New returns a Runner. The factory is shared by all workers; it must
// be safe for concurrent use, which DefaultFactory is.
func New(factory processor.Factory, res *resolver.Resolver, stats *statistics.Statistics, log *logrus.Logger, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
		if opts.Workers < 2 {
			opts.Workers = 2
		}
	}
	return &Runner{
		factory:  factory,
		resolver: res,
		stats:    stats,
		log:      log,
		opts:     opts,
	}
}

// Run processes every source and returns one Result per source, in
// submission order. The batch completes only when every item has
// completed; items still queued when ctx is canceled are returned with
// ctx's error. Two sources sharing a base file name write to the same
// output path and the later completion wins.
func (r *Runner) Run(ctx context.Context, sources []string, outputDir string, quality processor.Quality) []Result {
	if len(sources) == 0 {
		return nil
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		results := make([]Result, len(sources))
		now := time.Now()
		for i, source := range sources {
			r.stats.IncrementSourcesFound()
			results[i] = r.recordFailure(Result{Source: source, StartedAt: now, FinishedAt: now},
				"prepare", fmt.Errorf("create output dir: %w", err))
		}
		return results
	}

	type job struct {
		index  int
		source string
	}
	type indexed struct {
		index int
		res   Result
	}

	jobs := make(chan job, len(sources))
	results := make(chan indexed, len(sources))

	var wg sync.WaitGroup
	wg.Add(r.opts.Workers)
	for w := 0; w < r.opts.Workers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					now := time.Now()
					res := r.recordFailure(Result{Source: j.source, StartedAt: now, FinishedAt: now},
						"canceled", ctx.Err())
					results <- indexed{index: j.index, res: res}
					continue
				default:
				}
				res := r.processOne(ctx, j.source, outputDir, quality)
				results <- indexed{index: j.index, res: res}
			}
		}()
	}

	for i, source := range sources {
		r.stats.IncrementSourcesFound()
		jobs <- job{index: i, source: source}
	}
	close(jobs)

	wg.Wait()
	close(results)

	ordered := make([]Result, len(sources))
	for ir := range results {
		ordered[ir.index] = ir.res
	}
	return ordered
}

// processOne runs the full pipeline for a single source. Every failure
// is captured in the Result so the caller's loop never aborts.
func (r *Runner) processOne(ctx context.Context, source, outputDir string, quality processor.Quality) Result {
	res := Result{Source: source, StartedAt: time.Now()}

	name, err := outputName(source)
	if err != nil {
		return r.recordFailure(res, "classify", err)
	}
	res.OutputPath = filepath.Join(outputDir, name)

	staged, err := r.resolver.Resolve(ctx, source)
	if err != nil {
		return r.recordFailure(res, "resolve", err)
	}
	defer r.resolver.Release(staged)
	if staged.Staged {
		r.stats.IncrementRemoteFetches()
	}

	if r.opts.SkipAlreadyShrunk && processor.HasShrinkMark(staged.Path) {
		res.Skipped = true
		res.FinishedAt = time.Now()
		r.stats.IncrementSourcesProcessed()
		r.stats.IncrementSourcesSkipped()
		r.log.WithField("source", source).Info("Skipping already shrunk image")
		r.notify(res)
		return res
	}

	proc, err := r.factory.Create(staged.Path)
	if err != nil {
		return r.recordFailure(res, "dispatch", err)
	}

	if info, err := os.Stat(staged.Path); err == nil {
		res.OriginalSize = info.Size()
	}

	if err := proc.Shrink(res.OutputPath, quality); err != nil {
		return r.recordFailure(res, "shrink", err)
	}

	if r.opts.KeepMetadata {
		if err := processor.CopyMetadata(staged.Path, res.OutputPath); err != nil {
			r.log.WithField("source", source).Warnf("Metadata not carried over: %v", err)
		}
	}

	if info, err := os.Stat(res.OutputPath); err == nil {
		res.ShrunkSize = info.Size()
	}

	res.FinishedAt = time.Now()
	r.stats.IncrementSourcesProcessed()
	r.stats.IncrementImagesShrunk()
	r.stats.AddBytesIn(res.OriginalSize)
	r.stats.AddBytesOut(res.ShrunkSize)
	r.log.WithFields(logrus.Fields{
		"source": source,
		"output": res.OutputPath,
		"bytes":  res.ShrunkSize,
	}).Info("Image processed")
	r.notify(res)
	return res
}

func (r *Runner) recordFailure(res Result, operation string, err error) Result {
	res.Err = err
	if res.FinishedAt.IsZero() {
		res.FinishedAt = time.Now()
	}
	r.stats.IncrementSourcesProcessed()
	r.stats.IncrementSourcesFailed()
	r.stats.AddError(res.Source, operation, err.Error())
	r.log.WithFields(logrus.Fields{
		"source":    res.Source,
		"operation": operation,
	}).Warnf("Error processing image: %v", err)
	r.notify(res)
	return res
}

func (r *Runner) notify(res Result) {
	if r.opts.ItemHook != nil {
		r.opts.ItemHook(res)
	}
}

// outputName derives the output file name from the source as it was
// submitted. Remote sources keep the name they had in the URL path,
// never the staging temp name.
func outputName(source string) (string, error) {
	var base string
	if resolver.Classify(source) == resolver.SourceRemote {
		u, err := url.Parse(source)
		if err != nil {
			return "", fmt.Errorf("invalid source URL: %w", err)
		}
		base = path.Base(u.Path)
	} else {
		base = filepath.Base(source)
	}
	if base == "" || base == "." || base == "/" {
		return "", fmt.Errorf("cannot derive a file name from source %q", source)
	}
	return base, nil
}
