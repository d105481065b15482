package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/repository"
)

const backupVersion = 1

// Snapshot is the on-disk backup format.
type Snapshot struct {
	Metadata      SnapshotMetadata      `json:"metadata"`
	Tasks         []domain.Task         `json:"tasks"`
	Subscriptions []domain.Subscription `json:"gmail_channels"`
}

type SnapshotMetadata struct {
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	Tasks         int       `json:"task_count"`
	Subscriptions int       `json:"channel_count"`
}

// BackupInfo describes one snapshot file for the REST surface.
type BackupInfo struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupStats summarizes the snapshot directory.
type BackupStats struct {
	Count      int        `json:"count"`
	TotalBytes int64      `json:"total_bytes"`
	Newest     *time.Time `json:"newest,omitempty"`
	Oldest     *time.Time `json:"oldest,omitempty"`
}

// BackupConfig controls where snapshots live and how long they are kept.
type BackupConfig struct {
	Directory     string
	RetentionDays int
}

// Backup exports tasks and mail subscriptions to verified gzip snapshots and
// prunes old ones.
type Backup struct {
	tasks  repository.TaskRepository
	subs   repository.SubscriptionRepository
	cfg    BackupConfig
	now    func() time.Time
	logger *zap.Logger
}

func NewBackup(tasks repository.TaskRepository, subs repository.SubscriptionRepository, cfg BackupConfig, logger *zap.Logger) *Backup {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backup{
		tasks:  tasks,
		subs:   subs,
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

// Run writes one snapshot, verifies it, then applies retention. A snapshot
// that fails verification is removed and the run reports failure; the old
// snapshot set stays untouched.
func (b *Backup) Run(ctx context.Context) error {
	name, err := b.writeSnapshot(ctx)
	if err != nil {
		return err
	}

	if _, err := b.readSnapshot(name); err != nil {
		b.logger.Error("snapshot failed verification, removing",
			zap.String("file", name),
			zap.Error(err),
		)
		if rmErr := os.Remove(filepath.Join(b.cfg.Directory, name)); rmErr != nil {
			b.logger.Warn("could not remove bad snapshot", zap.Error(rmErr))
		}
		return fmt.Errorf("snapshot verification: %w", err)
	}

	if err := b.applyRetention(); err != nil {
		b.logger.Warn("backup retention sweep failed", zap.Error(err))
	}

	b.logger.Info("backup completed", zap.String("file", name))
	return nil
}

func (b *Backup) writeSnapshot(ctx context.Context) (string, error) {
	tasks, err := b.tasks.All(ctx)
	if err != nil {
		return "", err
	}
	subs, err := b.subs.All(ctx)
	if err != nil {
		return "", err
	}

	now := b.now().UTC()
	snapshot := Snapshot{
		Metadata: SnapshotMetadata{
			Version:       backupVersion,
			CreatedAt:     now,
			Tasks:         len(tasks),
			Subscriptions: len(subs),
		},
		Tasks:         tasks,
		Subscriptions: subs,
	}

	if err := os.MkdirAll(b.cfg.Directory, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("backup_%s.json.gz", now.Format("20060102_150405"))
	file, err := os.Create(filepath.Join(b.cfg.Directory, name))
	if err != nil {
		return "", err
	}

	gz := gzip.NewWriter(file)
	encodeErr := json.NewEncoder(gz).Encode(snapshot)
	if err := gz.Close(); encodeErr == nil {
		encodeErr = err
	}
	if err := file.Close(); encodeErr == nil {
		encodeErr = err
	}
	if encodeErr != nil {
		os.Remove(filepath.Join(b.cfg.Directory, name))
		return "", encodeErr
	}
	return name, nil
}

func (b *Backup) readSnapshot(name string) (*Snapshot, error) {
	file, err := os.Open(filepath.Join(b.cfg.Directory, name))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(gz).Decode(&snapshot); err != nil {
		return nil, err
	}
	if snapshot.Metadata.Version != backupVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snapshot.Metadata.Version)
	}
	if len(snapshot.Tasks) != snapshot.Metadata.Tasks {
		return nil, fmt.Errorf("snapshot task count mismatch: %d != %d",
			len(snapshot.Tasks), snapshot.Metadata.Tasks)
	}
	return &snapshot, nil
}

func (b *Backup) applyRetention() error {
	cutoff := b.now().Add(-time.Duration(b.cfg.RetentionDays) * 24 * time.Hour)
	infos, err := b.List()
	if err != nil {
		return err
	}
	for _, info := range infos {
		if info.CreatedAt.Before(cutoff) {
			if err := os.Remove(filepath.Join(b.cfg.Directory, info.Name)); err != nil {
				return err
			}
			b.logger.Info("old snapshot removed", zap.String("file", info.Name))
		}
	}
	return nil
}

// List returns the snapshot files, newest first.
func (b *Backup) List() ([]BackupInfo, error) {
	entries, err := os.ReadDir(b.cfg.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var infos []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "backup_") || !strings.HasSuffix(entry.Name(), ".json.gz") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, BackupInfo{
			Name:      entry.Name(),
			SizeBytes: fi.Size(),
			CreatedAt: fi.ModTime(),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.After(infos[j].CreatedAt) })
	return infos, nil
}

// Stats summarizes the snapshot directory for the REST surface.
func (b *Backup) Stats() (*BackupStats, error) {
	infos, err := b.List()
	if err != nil {
		return nil, err
	}

	stats := &BackupStats{Count: len(infos)}
	for i := range infos {
		stats.TotalBytes += infos[i].SizeBytes
	}
	if len(infos) > 0 {
		stats.Newest = &infos[0].CreatedAt
		stats.Oldest = &infos[len(infos)-1].CreatedAt
	}
	return stats, nil
}

// Restore replays a snapshot into the stores: tasks are re-created and
// subscriptions upserted. Existing rows are left alone.
func (b *Backup) Restore(ctx context.Context, name string) (int, error) {
	if strings.Contains(name, "/") || strings.Contains(name, "..") {
		return 0, domain.NewError(domain.ErrCodeInvalid, "invalid snapshot name")
	}

	snapshot, err := b.readSnapshot(name)
	if err != nil {
		return 0, err
	}

	restored := 0
	for i := range snapshot.Tasks {
		task := snapshot.Tasks[i]
		task.ID = 0
		if _, err := b.tasks.Create(ctx, &task); err != nil {
			return restored, err
		}
		restored++
	}
	for i := range snapshot.Subscriptions {
		sub := snapshot.Subscriptions[i]
		sub.ID = 0
		if err := b.subs.Upsert(ctx, &sub); err != nil {
			return restored, err
		}
	}

	b.logger.Info("snapshot restored",
		zap.String("file", name),
		zap.Int("tasks", restored),
		zap.Int("subscriptions", len(snapshot.Subscriptions)),
	)
	return restored, nil
}
