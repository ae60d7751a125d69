// Package catalog persists probe metadata in a local SQLite database
// so that a video is re-probed only when the file on disk changes.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rskworld/videoset/internal/logging"
	"github.com/rskworld/videoset/internal/metrics"
	"github.com/rskworld/videoset/internal/probe"
)

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	path        TEXT PRIMARY KEY,
	size        INTEGER NOT NULL,
	mtime_unix  INTEGER NOT NULL,
	container   TEXT NOT NULL,
	codec       TEXT NOT NULL,
	width       INTEGER NOT NULL,
	height      INTEGER NOT NULL,
	fps         REAL NOT NULL,
	fps_valid   INTEGER NOT NULL,
	frame_count INTEGER NOT NULL,
	duration    REAL NOT NULL,
	probed_at   TEXT NOT NULL
);
`

// Catalog is a persistent cache of probe results keyed by
// (path, size, mtime).
type Catalog struct {
	conn *sql.DB
	log  *logging.Logger
}

// Open opens or creates the catalog database at dbPath.
func Open(dbPath string, log *logging.Logger) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping catalog: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}

	return &Catalog{conn: conn, log: log}, nil
}

// Close closes the catalog database.
func (c *Catalog) Close() error {
	return c.conn.Close()
}

// Lookup returns the cached metadata for path if the stored size and
// mtime still match the file on disk.
func (c *Catalog) Lookup(ctx context.Context, path string, size int64, mtime time.Time) (*probe.Metadata, bool, error) {
	row := c.conn.QueryRowContext(ctx, `
		SELECT container, codec, width, height, fps, fps_valid, frame_count, duration, size
		FROM videos WHERE path = ? AND size = ? AND mtime_unix = ?`,
		path, size, mtime.Unix())

	meta := &probe.Metadata{Path: path}
	var fpsValid int
	err := row.Scan(&meta.Container, &meta.Codec, &meta.Width, &meta.Height,
		&meta.FPS, &fpsValid, &meta.FrameCount, &meta.Duration, &meta.SizeBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("catalog lookup failed: %w", err)
	}
	meta.FPSValid = fpsValid == 1
	return meta, true, nil
}

// Store upserts the probe result for path.
func (c *Catalog) Store(ctx context.Context, meta *probe.Metadata, mtime time.Time) error {
	fpsValid := 0
	if meta.FPSValid {
		fpsValid = 1
	}
	_, err := c.conn.ExecContext(ctx, `
		INSERT INTO videos (path, size, mtime_unix, container, codec, width, height, fps, fps_valid, frame_count, duration, probed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mtime_unix = excluded.mtime_unix,
			container = excluded.container,
			codec = excluded.codec,
			width = excluded.width,
			height = excluded.height,
			fps = excluded.fps,
			fps_valid = excluded.fps_valid,
			frame_count = excluded.frame_count,
			duration = excluded.duration,
			probed_at = excluded.probed_at`,
		meta.Path, meta.SizeBytes, mtime.Unix(), meta.Container, meta.Codec,
		meta.Width, meta.Height, meta.FPS, fpsValid, meta.FrameCount, meta.Duration,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("catalog store failed: %w", err)
	}
	return nil
}

// Resolver serves probe metadata through the catalog, probing only on
// cache miss. A nil catalog degrades to probing every time.
type Resolver struct {
	prober *probe.Prober
	cat    *Catalog
	log    *logging.Logger
}

// NewResolver creates a new resolver
func NewResolver(prober *probe.Prober, cat *Catalog, log *logging.Logger) *Resolver {
	return &Resolver{prober: prober, cat: cat, log: log}
}

// Metadata returns probe metadata for path, from the catalog when the
// file is unchanged since the last probe.
func (r *Resolver) Metadata(ctx context.Context, path string) (*probe.Metadata, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &probe.Error{Kind: probe.ErrUnreadable, Path: path, Err: err}
	}

	if r.cat != nil {
		meta, ok, err := r.cat.Lookup(ctx, path, fi.Size(), fi.ModTime())
		if err != nil {
			r.log.WithError(err).Warn("Catalog lookup failed, probing directly")
		}
		metrics.RecordCacheAccess(ok)
		if ok {
			return meta, nil
		}
	}

	meta, err := r.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if meta.SizeBytes == 0 {
		meta.SizeBytes = fi.Size()
	}

	if r.cat != nil {
		if err := r.cat.Store(ctx, meta, fi.ModTime()); err != nil {
			r.log.WithError(err).Warn("Failed to store probe result in catalog")
		}
	}
	return meta, nil
}
