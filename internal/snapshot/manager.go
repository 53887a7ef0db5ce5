// Package snapshot keeps the local catalog in sync with the snapshot in R2.
// The publisher compresses and uploads its database; bot instances poll the
// object's ETag and merge a changed snapshot into their own database.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/garyellow/weamind-linebot-go/internal/logger"
	"github.com/garyellow/weamind-linebot-go/internal/metrics"
	"github.com/garyellow/weamind-linebot-go/internal/r2client"
	"github.com/garyellow/weamind-linebot-go/internal/storage"
)

// ErrNotFound indicates no snapshot exists in R2.
var ErrNotFound = errors.New("snapshot: not found")

// Sync outcomes, also used as metric labels.
const (
	StatusImported  = "imported"
	StatusUnchanged = "unchanged"
	StatusMissing   = "missing"
	StatusError     = "error"
)

// Importer merges a downloaded snapshot file into the local database.
type Importer interface {
	ImportCatalogSnapshot(ctx context.Context, snapshotPath string) (storage.ImportStats, error)
}

// Exporter writes a consistent copy of a database to a file.
type Exporter interface {
	CreateSnapshot(ctx context.Context, destPath string) error
}

var (
	_ Importer = (*storage.DB)(nil)
	_ Exporter = (*storage.DB)(nil)
)

// Config holds snapshot manager configuration.
type Config struct {
	SnapshotKey  string        // R2 object key, e.g. "snapshots/catalog.db.zst"
	PollInterval time.Duration // How often to check the ETag
	TempDir      string        // Where downloads are decompressed
}

// LockKey returns the object key of the publish lock for this snapshot.
func (c Config) LockKey() string {
	return c.SnapshotKey + ".lock"
}

// Manager handles catalog snapshot synchronization with R2.
type Manager struct {
	client  *r2client.Client
	config  Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex // serializes Sync
	currentETag string

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a new snapshot manager. m may be nil.
func New(client *r2client.Client, cfg Config, log *logger.Logger, m *metrics.Metrics) *Manager {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Manager{
		client:  client,
		config:  cfg,
		logger:  log.WithModule("snapshot"),
		metrics: m,
	}
}

// CurrentETag returns the ETag of the last imported snapshot.
func (m *Manager) CurrentETag() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentETag
}

// Sync imports the remote snapshot into db when its ETag differs from the
// last one imported. It returns the outcome status.
func (m *Manager) Sync(ctx context.Context, db Importer) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, err := m.sync(ctx, db)
	if m.metrics != nil {
		m.metrics.RecordSnapshotSync(status, time.Now().Unix())
	}
	return status, err
}

func (m *Manager) sync(ctx context.Context, db Importer) (string, error) {
	remoteETag, err := m.client.Stat(ctx, m.config.SnapshotKey)
	if err != nil {
		if errors.Is(err, r2client.ErrNotFound) {
			return StatusMissing, ErrNotFound
		}
		return StatusError, fmt.Errorf("check snapshot: %w", err)
	}
	if remoteETag == m.currentETag {
		return StatusUnchanged, nil
	}

	body, etag, err := m.client.Get(ctx, m.config.SnapshotKey)
	if err != nil {
		if errors.Is(err, r2client.ErrNotFound) {
			return StatusMissing, ErrNotFound
		}
		return StatusError, fmt.Errorf("download snapshot: %w", err)
	}
	defer body.Close()

	path := filepath.Join(m.config.TempDir, fmt.Sprintf("catalog_%d.db", time.Now().UnixNano()))
	defer removeDBFiles(path)

	if err := r2client.DecompressStream(body, path); err != nil {
		return StatusError, fmt.Errorf("decompress snapshot: %w", err)
	}

	stats, err := db.ImportCatalogSnapshot(ctx, path)
	if err != nil {
		return StatusError, fmt.Errorf("import snapshot: %w", err)
	}

	m.logger.WithField("old_etag", m.currentETag).
		WithField("new_etag", etag).
		WithField("locations", stats.Locations).
		WithField("forecasts", stats.Forecasts).
		InfoContext(ctx, "Catalog snapshot imported")
	m.currentETag = etag
	return StatusImported, nil
}

// Start polls for new snapshots until ctx is canceled or Stop is called.
func (m *Manager) Start(ctx context.Context, db Importer) {
	pollCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.config.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				m.logger.Info("Snapshot polling stopped")
				return
			case <-ticker.C:
				if _, err := m.Sync(pollCtx, db); err != nil && !errors.Is(err, ErrNotFound) && pollCtx.Err() == nil {
					m.logger.WithError(err).Warn("Snapshot poll failed")
				}
			}
		}
	}()

	m.logger.WithField("interval", m.config.PollInterval.String()).
		WithField("snapshot_key", m.config.SnapshotKey).
		Info("Snapshot polling started")
}

// Stop stops polling and waits for the loop to exit.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
			<-m.done
		}
	})
}

// Publish uploads a compressed copy of db and returns the new ETag.
func (m *Manager) Publish(ctx context.Context, db Exporter) (string, error) {
	path := filepath.Join(m.config.TempDir, fmt.Sprintf("publish_%d.db", time.Now().UnixNano()))
	if err := db.CreateSnapshot(ctx, path); err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer removeDBFiles(path)

	compressed := path + ".zst"
	if err := r2client.CompressFile(path, compressed); err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}
	defer os.Remove(compressed)

	f, err := os.Open(compressed)
	if err != nil {
		return "", fmt.Errorf("open compressed snapshot: %w", err)
	}
	defer f.Close()

	etag, err := m.client.Put(ctx, m.config.SnapshotKey, f, r2client.ContentType("application/zstd"))
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	m.logger.WithField("etag", etag).InfoContext(ctx, "Catalog snapshot published")
	return etag, nil
}

func removeDBFiles(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		_ = os.Remove(p)
	}
}
