package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/planbiir/gpxtrim/internal/batch"
	"github.com/planbiir/gpxtrim/internal/config"
	"github.com/planbiir/gpxtrim/internal/logger"
	"github.com/planbiir/gpxtrim/internal/metrics"
	"github.com/planbiir/gpxtrim/internal/report"
)

const version = "gpxtrim v1.0.0 - GPX pause trimmer"

func main() {
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code: 1 on failure,
// 2 on usage errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 2
	}

	fs := flag.NewFlagSet("gpxtrim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		inputFile   = fs.String("i", "", "Input GPX file or ZIP archive of GPX files")
		minSpeed    = fs.Float64("min-speed", cfg.MinSpeed, "Speed in m/s below which the track counts as stopped")
		minPause    = fs.Int("min-pause", cfg.MinPauseDuration, "Minimum pause duration in seconds before it is trimmed")
		suffix      = fs.String("suffix", cfg.Suffix, "Suffix added to output file names")
		workers     = fs.Int("workers", cfg.Workers, "Archive entries trimmed concurrently")
		statsJSON   = fs.Bool("stats-json", false, "Output statistics as JSON")
		dryRun      = fs.Bool("dry-run", false, "Show statistics without writing output files")
		textfile    = fs.String("metrics-textfile", cfg.MetricsTextfile, "Write Prometheus metrics to this file")
		showVersion = fs.Bool("version", false, "Show version information")
	)

	fs.Usage = func() {
		fmt.Fprintf(stderr, "gpxtrim - Trim long pauses from GPX tracks\n\n")
		fmt.Fprintf(stderr, "usage: gpxtrim -i /path/to/file.gpx\n\n")
		fmt.Fprintf(stderr, "examples:\n")
		fmt.Fprintf(stderr, "  gpxtrim -i track.gpx\n")
		fmt.Fprintf(stderr, "  gpxtrim -i export.zip -min-pause 300\n")
		fmt.Fprintf(stderr, "  gpxtrim -i \"My Activity.gpx\" -dry-run -stats-json\n\n")
		fmt.Fprintf(stderr, "options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Fprintln(stdout, version)
		fmt.Fprintln(stdout, "https://github.com/planbiir/gpxtrim")
		return 0
	}

	if *inputFile == "" {
		fs.Usage()
		return 2
	}

	cfg.MinSpeed = *minSpeed
	cfg.MinPauseDuration = *minPause
	cfg.Suffix = *suffix
	cfg.Workers = *workers
	cfg.MetricsTextfile = *textfile
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	log := logger.Named("gpxtrim")
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	rec := metrics.New()
	driver := batch.New(batch.Options{
		Trim:    cfg.Trim(),
		Suffix:  cfg.Suffix,
		Workers: cfg.Workers,
		Logger:  logger.Named("batch"),
		Metrics: rec,
	})

	res, err := process(ctx, driver, *inputFile, *dryRun)
	if err != nil {
		fmt.Fprintf(stderr, "Error trimming %s: %v\n", *inputFile, err)
		return 1
	}

	code := printResult(res, stdout, stderr, *statsJSON, *dryRun)

	if cfg.MetricsTextfile != "" {
		if err := rec.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Error(ctx, "metrics textfile not written", logger.String("path", cfg.MetricsTextfile), logger.Error(err))
		}
	}
	return code
}

func process(ctx context.Context, driver *batch.Driver, path string, dryRun bool) (*batch.Result, error) {
	if !dryRun {
		return driver.Run(ctx, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return driver.Process(ctx, filepath.Base(path), data)
}

func printResult(res *batch.Result, stdout, stderr io.Writer, statsJSON, dryRun bool) int {
	// Keep stdout machine-readable when JSON is requested.
	notes := stdout
	if statsJSON {
		notes = stderr
	}

	for _, e := range res.Entries {
		if e.Err != nil {
			fmt.Fprintf(stderr, "Error trimming %s: %v\n", e.Name, e.Err)
			continue
		}
		if statsJSON {
			_ = report.JSON(stdout, report.NewDocument(e.Name, e.Original, e.Trimmed, e.Stats))
		} else {
			_ = report.Text(stdout, e.Name, e.Stats)
		}
	}

	switch {
	case res.Archive && res.Empty():
		fmt.Fprintln(notes, "No .gpx files found in the archive.")
		return 0
	case res.Data == nil:
		fmt.Fprintf(stderr, "No track in %s could be trimmed.\n", res.Input)
		return 1
	case dryRun:
		fmt.Fprintln(notes, "\nDry run completed - no files written")
	case res.Archive:
		fmt.Fprintf(notes, "\nCreated %s with %d trimmed track(s).\n", res.Output, res.Processed())
	default:
		fmt.Fprintf(notes, "\nCreated %s\n", res.Output)
	}
	return 0
}
