package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rskworld/videoset/internal/catalog"
	"github.com/rskworld/videoset/internal/config"
	"github.com/rskworld/videoset/internal/dataset"
	"github.com/rskworld/videoset/internal/fsx"
	"github.com/rskworld/videoset/internal/logging"
	"github.com/rskworld/videoset/internal/metrics"
	"github.com/rskworld/videoset/internal/probe"
	"github.com/rskworld/videoset/internal/storage"
	"github.com/rskworld/videoset/internal/video"
	"github.com/rskworld/videoset/internal/worker"
)

func runOrganize(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("organize", flag.ExitOnError)
	configPath := flags.String("config", "", "path to config file")
	input := flags.String("input", "", "input directory with one folder per category")
	output := flags.String("output", "data", "output directory for the organized dataset")
	trainRatio := flags.Float64("train", -1, "training set ratio (overrides config)")
	testRatio := flags.Float64("test", -1, "test set ratio (overrides config)")
	valRatio := flags.Float64("val", -1, "validation set ratio (overrides config)")
	seed := flags.Int64("seed", -1, "shuffle seed (overrides config)")
	move := flags.Bool("move", false, "move files instead of copying")
	flags.Parse(args)

	if *input == "" {
		return fmt.Errorf("-input is required")
	}

	cfg, log, err := setup(*configPath)
	if err != nil {
		return err
	}
	if *trainRatio >= 0 {
		cfg.Dataset.Splits.Train = *trainRatio
	}
	if *testRatio >= 0 {
		cfg.Dataset.Splits.Test = *testRatio
	}
	if *valRatio >= 0 {
		cfg.Dataset.Splits.Validation = *valRatio
	}
	if *seed >= 0 {
		cfg.Dataset.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	organizer := dataset.NewOrganizer(dataset.OrganizerOptions{
		Ratios:     cfg.Dataset.Splits,
		Seed:       cfg.Dataset.Seed,
		Move:       *move,
		Formats:    cfg.Video.Formats,
		Categories: cfg.Dataset.Categories,
		Strict:     cfg.Dataset.StrictCategories,
	}, log)

	report, err := organizer.Organize(ctx, *input, *output)
	if err != nil && report == nil {
		return err
	}
	if err != nil {
		log.WithError(err).Warn("Organization interrupted; placed files remain valid")
	}

	printWarnings(report.Skipped)
	return printJSON(report)
}

func runProcess(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("process", flag.ExitOnError)
	configPath := flags.String("config", "", "path to config file")
	input := flags.String("input", "", "input dataset tree")
	output := flags.String("output", "", "output directory for normalized videos")
	flags.Parse(args)

	if *input == "" || *output == "" {
		return fmt.Errorf("-input and -output are required")
	}

	cfg, log, err := setup(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	source, closeCatalog, err := metadataSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCatalog()

	normalizer := video.NewNormalizer(cfg.Video.FFmpegPath, source, log)
	spec := video.TargetSpec{
		TargetFormat: cfg.Video.Processing.TargetFormat,
		MinDuration:  cfg.Video.Processing.MinDuration,
		MaxDuration:  cfg.Video.Processing.MaxDuration,
		AssumeFPS:    cfg.Video.Processing.AssumeFPS,
	}
	if cfg.Video.Processing.ResizeWidth > 0 {
		spec.Resize = &video.Resize{
			Width:  cfg.Video.Processing.ResizeWidth,
			Height: cfg.Video.Processing.ResizeHeight,
		}
	}
	outExt := spec.TargetFormat
	if outExt == "" {
		outExt = "mp4"
	}

	entries, err := collectTreeEntries(*input, cfg.Video.Formats)
	if err != nil {
		return err
	}
	log.Infof("Processing %d videos", len(entries))

	pool := worker.NewPool(cfg.Worker.Count, cfg.Worker.FileTimeout, log)
	outcome := pool.Run(ctx, entries, func(ctx context.Context, entry dataset.Entry) error {
		started := time.Now()
		rel, err := filepath.Rel(*input, entry.Path)
		if err != nil {
			return err
		}
		stem := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
		outPath := filepath.Join(*output, filepath.Dir(rel), stem+"."+outExt)

		_, err = normalizer.Normalize(ctx, entry.Path, outPath, spec)
		if err != nil {
			metrics.RecordProcessed("failed", time.Since(started).Seconds())
			return err
		}
		metrics.RecordProcessed("ok", time.Since(started).Seconds())
		return nil
	})

	printWarnings(outcome.Skipped)
	return printJSON(outcome)
}

func runFrames(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("frames", flag.ExitOnError)
	configPath := flags.String("config", "", "path to config file")
	input := flags.String("input", "", "input dataset tree")
	output := flags.String("output", "", "output directory for extracted frames")
	fps := flags.Float64("fps", -1, "target sampling rate (overrides config)")
	flags.Parse(args)

	if *input == "" || *output == "" {
		return fmt.Errorf("-input and -output are required")
	}

	cfg, log, err := setup(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if *fps >= 0 {
		cfg.Frames.FPS = *fps
	}

	source, closeCatalog, err := metadataSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCatalog()

	sampler := video.NewSampler(cfg.Video.FFmpegPath, cfg.Frames.Format, cfg.Frames.Quality, source, log)
	spec := video.IntervalSpec{
		TargetFPS:     cfg.Frames.FPS,
		Stride:        cfg.Frames.Stride,
		DefaultStride: cfg.Frames.DefaultStride,
	}

	entries, err := collectTreeEntries(*input, cfg.Video.Formats)
	if err != nil {
		return err
	}
	log.Infof("Sampling frames from %d videos", len(entries))

	pool := worker.NewPool(cfg.Worker.Count, cfg.Worker.FileTimeout, log)
	outcome := pool.Run(ctx, entries, func(ctx context.Context, entry dataset.Entry) error {
		started := time.Now()
		rel, err := filepath.Rel(*input, entry.Path)
		if err != nil {
			return err
		}
		outDir := filepath.Join(*output, filepath.Dir(rel))

		frames, err := sampler.Sample(ctx, entry.Path, outDir, spec)
		if err != nil {
			return err
		}
		metrics.RecordFrames(frames.Count(), time.Since(started).Seconds())
		// Partial extractions keep their frames but count as
		// incomplete.
		return frames.Err()
	})

	printWarnings(outcome.Skipped)
	return printJSON(outcome)
}

func runStats(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := flags.String("config", "", "path to config file")
	input := flags.String("input", "", "organized dataset tree")
	outFile := flags.String("out", "", "write the summary JSON to this file instead of stdout")
	flags.Parse(args)

	if *input == "" {
		return fmt.Errorf("-input is required")
	}

	cfg, _, err := setup(*configPath)
	if err != nil {
		return err
	}

	stats, err := dataset.CollectStats(*input, cfg.Video.Formats)
	if err != nil {
		return err
	}
	if *outFile != "" {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		return fsx.WriteFileAtomic(filepath.Dir(*outFile), filepath.Base(*outFile), data)
	}
	return printJSON(stats)
}

func runUpload(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("upload", flag.ExitOnError)
	configPath := flags.String("config", "", "path to config file")
	input := flags.String("input", "", "dataset tree to upload")
	prefix := flags.String("prefix", "", "object key prefix")
	flags.Parse(args)

	if *input == "" {
		return fmt.Errorf("-input is required")
	}

	cfg, log, err := setup(*configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.Endpoint == "" {
		return fmt.Errorf("storage.endpoint is not configured")
	}

	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}

	uploaded, err := store.UploadTree(ctx, *input, *prefix)
	if err != nil {
		return err
	}
	log.Infof("Uploaded %d objects", uploaded)
	return nil
}

// metadataSource builds the probe path, catalog-backed when a catalog
// is configured.
func metadataSource(ctx context.Context, cfg *config.Config, log *logging.Logger) (video.MetadataSource, func(), error) {
	prober := probe.NewProber(cfg.Video.FFprobePath)
	if cfg.Catalog.Path == "" {
		return video.ProberSource{Prober: prober}, func() {}, nil
	}

	cat, err := catalog.Open(cfg.Catalog.Path, log)
	if err != nil {
		return nil, nil, err
	}
	return catalog.NewResolver(prober, cat, log), func() { cat.Close() }, nil
}

// collectTreeEntries walks a dataset tree and returns every supported
// video file; the category is the name of the file's parent folder.
func collectTreeEntries(root string, formats []string) ([]dataset.Entry, error) {
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		return nil, &dataset.OrganizeError{Kind: dataset.OrganizeInputNotFound, Path: root, Err: err}
	}

	if len(formats) == 0 {
		formats = dataset.DefaultFormats
	}
	extAllowed := make(map[string]bool, len(formats))
	for _, f := range formats {
		extAllowed[strings.ToLower(strings.TrimPrefix(f, "."))] = true
	}

	var entries []dataset.Entry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(d.Name()), "."))
		if !extAllowed[ext] {
			return nil
		}
		entries = append(entries, dataset.Entry{
			Path:     p,
			Category: filepath.Base(filepath.Dir(p)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func printWarnings(skipped []dataset.SkippedFile) {
	for _, skip := range skipped {
		fmt.Fprintf(os.Stderr, "warning: skipped %s (%s)\n", skip.Path, skip.Reason)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
