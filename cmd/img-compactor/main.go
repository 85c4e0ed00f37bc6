package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"img-compactor-go/internal/config"
	"img-compactor-go/internal/inspector"
	"img-compactor-go/internal/logger"
	"img-compactor-go/internal/processor"
	"img-compactor-go/internal/resolver"
	"img-compactor-go/internal/runner"
	"img-compactor-go/internal/statistics"
	"img-compactor-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	fromFile     string
	readStdin    bool
	outputDir    string
	quality      int
	workers      int
	retainTemp   bool
	keepMetadata bool
	skipShrunk   bool
	verbose      bool
	quiet        bool
	port         int
)

// rootCmd shrinks a batch of JPEG sources into the output directory.
var rootCmd = &cobra.Command{
	Use:   "img-compactor [sources...]",
	Short: "Shrink JPEG images by re-encoding them at a lower quality",
	Long: `img-compactor takes a list of JPEG sources - local file paths or
HTTP/HTTPS URLs - and writes re-encoded, quality-reduced copies into an
output directory. Remote sources are fetched and staged to a temporary
file first. All sources are processed concurrently and one bad source
never stops the rest of the batch.

Sources can be given as arguments, read from a file (--from-file) or
from standard input (--stdin).

Supported input formats: ` + strings.Join(processor.NewDefaultFactory().Supported(), ", ") + `.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShrink(cmd, args)
	},
}

// inspectCmd prints what the tool knows about a single image file.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show dimensions and EXIF metadata of an image file",
	Long: `Inspect decodes the image header and EXIF block of a single file and
prints dimensions, format, capture time and the Software tag. Useful
for checking why a source was skipped or failed to decode.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web interface server",
	Long: `Starts a web server exposing the shrink pipeline:
- POST /api/shrink submits a batch of sources
- GET /api/status and /api/statistics report progress
- /ws streams per-item events while a batch runs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().StringVar(&fromFile, "from-file", "", "file with one source per line")
	rootCmd.Flags().BoolVar(&readStdin, "stdin", false, "read newline separated sources from stdin, finish with Ctrl+D")
	rootCmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory for shrunk images")
	rootCmd.Flags().IntVar(&quality, "quality", 0, "quality of the output images (0-100)")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent workers (default: CPU count)")
	rootCmd.Flags().BoolVar(&retainTemp, "retain-temp", false, "keep staged downloads instead of deleting them")
	rootCmd.Flags().BoolVar(&keepMetadata, "keep-metadata", false, "copy EXIF metadata onto shrunk outputs (needs exiftool)")
	rootCmd.Flags().BoolVar(&skipShrunk, "skip-shrunk", false, "skip images already marked as shrunk")

	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run the web server on")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
}

// runShrink executes the main batch logic.
func runShrink(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)

	sources, err := gatherSources(args, log)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources given; pass paths or URLs, or use --from-file / --stdin")
	}

	// A bad quality value is a batch-wide misconfiguration, so it
	// fails the run before any item starts.
	q, err := processor.NewQuality(cfg.Quality)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"output_dir": cfg.OutputDir,
		"quality":    q.Int(),
		"sources":    len(sources),
	}).Info("Starting batch")

	stats := statistics.NewStatistics()
	res := resolver.New(resolver.Options{
		Timeout:         time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		UserAgent:       cfg.Fetch.UserAgent,
		RetainTempFiles: cfg.Processing.RetainTempFiles,
	}, log)

	run := runner.New(processor.NewDefaultFactory(), res, stats, log, runner.Options{
		Workers:           cfg.Performance.WorkerThreads,
		SkipAlreadyShrunk: cfg.Processing.SkipAlreadyShrunk,
		KeepMetadata:      cfg.Processing.KeepMetadata,
	})

	run.Run(context.Background(), sources, cfg.OutputDir, q)
	stats.Finalize()

	if !quiet {
		fmt.Println("\n" + stats.GetSummary())
		if stats.GetSourcesFailed() > 0 {
			fmt.Println("\n" + stats.GetErrorSummary())
		}
	}

	return nil
}

// runInspect prints metadata for a single file.
func runInspect(path string) error {
	log := logrus.New()
	if !verbose {
		log.SetLevel(logrus.WarnLevel)
	}

	info, err := inspector.New(log).Inspect(path)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", path, err)
	}

	fmt.Printf("File: %s\n", info.Path)
	fmt.Printf("Size: %d bytes\n", info.SizeBytes)
	fmt.Printf("Format: %s\n", info.Format)
	fmt.Printf("Dimensions: %dx%d\n", info.Width, info.Height)
	if info.CapturedAt != nil {
		fmt.Printf("Captured: %s\n", info.CapturedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Captured: unknown (no EXIF date)")
	}
	if info.Software != "" {
		fmt.Printf("Software: %s\n", info.Software)
	}
	if info.CameraModel != "" {
		fmt.Printf("Camera: %s\n", info.CameraModel)
	}
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	server := web.NewServer(cfg, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed to start: %w", err)
	case <-sigChan:
	}

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if cmd.Flags().Changed("quality") {
		cfg.Quality = quality
	}
	if cmd.Flags().Changed("workers") {
		cfg.Performance.WorkerThreads = workers
	}
	if retainTemp {
		cfg.Processing.RetainTempFiles = true
	}
	if keepMetadata {
		cfg.Processing.KeepMetadata = true
	}
	if skipShrunk {
		cfg.Processing.SkipAlreadyShrunk = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// gatherSources collects sources from arguments, an optional list file
// and optionally stdin, in that order.
func gatherSources(args []string, log *logrus.Logger) ([]string, error) {
	sources := make([]string, 0, len(args))
	sources = append(sources, args...)

	if fromFile != "" {
		f, err := os.Open(fromFile)
		if err != nil {
			return nil, fmt.Errorf("open source list: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				sources = append(sources, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read source list: %w", err)
		}
	}

	if readStdin {
		log.Warn("Reading list of sources from stdin. Press Ctrl+D to finish input.")
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				sources = append(sources, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}

	return sources, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !quiet,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
