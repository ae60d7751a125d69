package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rskworld/videoset/internal/config"
	"github.com/rskworld/videoset/internal/logging"
	"github.com/rskworld/videoset/internal/metrics"
)

const usage = `Usage: videoset <command> [flags]

Commands:
  organize   split raw category folders into a train/test/validation tree
  process    validate and normalize videos in a dataset tree
  frames     extract sampled frames from videos in a dataset tree
  stats      summarize an organized dataset tree
  upload     push a dataset tree to object storage

Run 'videoset <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A batch-level interrupt stops dispatching new files; files
	// already placed stay fully visible.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	var err error
	switch os.Args[1] {
	case "organize":
		err = runOrganize(ctx, os.Args[2:])
	case "process":
		err = runProcess(ctx, os.Args[2:])
	case "frames":
		err = runFrames(ctx, os.Args[2:])
	case "stats":
		err = runStats(ctx, os.Args[2:])
	case "upload":
		err = runUpload(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "videoset %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger; it also starts the
// metrics endpoint when enabled.
func setup(configPath string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	log, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if cfg.Metrics.Enabled {
		server := metrics.NewServer(cfg.Metrics.Port, log)
		go func() {
			if err := server.Start(); err != nil {
				log.ErrorWithErr("Metrics server failed", err)
			}
		}()
	}

	return cfg, log, nil
}
