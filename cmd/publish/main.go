// Package main publishes the local catalog database to R2 as a compressed
// snapshot. Bot instances poll the snapshot's ETag and import new versions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/garyellow/weamind-linebot-go/internal/config"
	"github.com/garyellow/weamind-linebot-go/internal/logger"
	"github.com/garyellow/weamind-linebot-go/internal/r2client"
	"github.com/garyellow/weamind-linebot-go/internal/snapshot"
	"github.com/garyellow/weamind-linebot-go/internal/storage"
)

// CLI flags
var (
	dbFlag      = flag.String("db", "", "Catalog database to publish (default: the configured data dir)")
	lockTTLFlag = flag.Duration("lock-ttl", 10*time.Minute, "How long the publish lock is held before others may take it over")
	dryRunFlag  = flag.Bool("dry-run", false, "Check the catalog and lock without uploading")
)

// errLockHeld means another publisher is uploading right now.
var errLockHeld = errors.New("publish lock is held by another publisher")

// errEmptyCatalog guards against replacing a good snapshot with an empty database.
var errEmptyCatalog = errors.New("catalog has no locations")

// catalogStats summarizes what is being published.
type catalogStats struct {
	locations int
	forecasts int
}

// catalog is the subset of storage used by the publisher.
type catalog interface {
	snapshot.Exporter
	CountLocations(ctx context.Context) (int, error)
	CountForecasts(ctx context.Context) (int, error)
}

var _ catalog = (*storage.DB)(nil)

func main() {
	flag.Parse()

	cfg, err := config.LoadForMode(config.PublishMode)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel).WithModule("publish")
	log.Info("Starting catalog publisher")

	dbPath := *dbFlag
	if dbPath == "" {
		dbPath = cfg.SQLitePath()
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.SnapshotDownload)
	defer cancel()

	db, err := storage.New(ctx, dbPath)
	if err != nil {
		log.WithError(err).Error("Failed to open catalog database")
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	client, err := r2client.New(ctx, r2client.Config{
		AccountID:   cfg.R2AccountID,
		AccessKeyID: cfg.R2AccessKeyID,
		SecretKey:   cfg.R2SecretAccessKey,
		BucketName:  cfg.R2BucketName,
	})
	if err != nil {
		log.WithError(err).Error("Failed to create R2 client")
		os.Exit(1)
	}

	manager := snapshot.New(client, snapshot.Config{
		SnapshotKey: cfg.R2SnapshotKey,
		TempDir:     cfg.DataDir,
	}, log, nil)
	lock := r2client.NewPublishLock(client, snapshot.Config{SnapshotKey: cfg.R2SnapshotKey}.LockKey(), *lockTTLFlag)

	start := time.Now()
	etag, stats, err := publish(ctx, db, manager, lock, *dryRunFlag)
	duration := time.Since(start).Round(time.Millisecond)

	switch {
	case errors.Is(err, errLockHeld):
		log.Warn("Another publisher holds the lock, skipping")
		fmt.Println("⏭️  Another publisher is running, skipping")
		return
	case err != nil:
		log.WithError(err).Error("Publish failed")
		fmt.Fprintf(os.Stderr, "\n❌ Publish failed: %v\n", err)
		os.Exit(1)
	case *dryRunFlag:
		fmt.Printf("\n✅ Dry run: %d locations, %d forecasts ready to publish\n", stats.locations, stats.forecasts)
	default:
		log.WithField("etag", etag).
			WithField("locations", stats.locations).
			WithField("forecasts", stats.forecasts).
			WithField("duration", duration.String()).
			Info("Catalog published")
		fmt.Printf("\n✅ Published %d locations, %d forecasts (etag %s)\n", stats.locations, stats.forecasts, etag)
		fmt.Printf("Total time: %v\n", duration)
	}
}

// publish uploads db under the publish lock and returns the new snapshot ETag.
func publish(ctx context.Context, db catalog, manager *snapshot.Manager, lock *r2client.PublishLock, dryRun bool) (string, catalogStats, error) {
	var stats catalogStats
	var err error
	if stats.locations, err = db.CountLocations(ctx); err != nil {
		return "", stats, err
	}
	if stats.forecasts, err = db.CountForecasts(ctx); err != nil {
		return "", stats, err
	}
	if stats.locations == 0 {
		return "", stats, errEmptyCatalog
	}

	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return "", stats, err
	}
	if !acquired {
		return "", stats, errLockHeld
	}
	defer func() {
		// Release with a fresh context so a timed-out publish still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}()

	if dryRun {
		return "", stats, nil
	}

	etag, err := manager.Publish(ctx, db)
	if err != nil {
		return "", stats, err
	}
	return etag, stats, nil
}
