package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"peregovorka/internal/config"

	"github.com/rs/zerolog"
)

const (
	backupPrefix     = "peregovorka_"
	backupSuffix     = ".db"
	backupTimeLayout = "20060102_150405"
	defaultInterval  = 24 * time.Hour
)

// BackupService periodically snapshots the live database with VACUUM INTO.
type BackupService struct {
	db     *DB
	config config.BackupConfig
	now    func() time.Time
	logger *zerolog.Logger
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	l := logger.With().Str("component", "backup").Logger()
	return &BackupService{
		db:     db,
		config: cfg,
		now:    time.Now,
		logger: &l,
	}
}

// Interval returns the configured schedule, 24h when it is empty or unparsable.
func (s *BackupService) Interval() time.Duration {
	if s.config.Schedule == "" {
		return defaultInterval
	}
	d, err := time.ParseDuration(s.config.Schedule)
	if err != nil || d <= 0 {
		s.logger.Warn().Str("schedule", s.config.Schedule).Msg("Invalid backup schedule, using 24h")
		return defaultInterval
	}
	return d
}

// Start blocks until ctx is done.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return
	}
	if s.db.Path() == ":memory:" {
		s.logger.Warn().Msg("In-memory database, backups skipped")
		return
	}

	interval := s.Interval()
	s.logger.Info().Dur("interval", interval).Str("storage", s.config.StoragePath).Msg("Backup service started")

	s.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *BackupService) runOnce(ctx context.Context) {
	if _, err := s.PerformBackup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Backup failed")
	}
	if removed := s.CleanupOldBackups(); removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Old backups removed")
	}
}

// PerformBackup writes a snapshot and returns its path.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := backupPrefix + s.now().Format(backupTimeLayout) + backupSuffix
	target := filepath.Join(s.config.StoragePath, name)

	// VACUUM INTO refuses to overwrite an existing file
	_ = os.Remove(target)

	quoted := strings.ReplaceAll(target, "'", "''")
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		s.logger.Warn().Err(err).Msg("VACUUM INTO failed, falling back to file copy")
		if err := s.copyFile(target); err != nil {
			return "", fmt.Errorf("failed to copy database: %w", err)
		}
	}

	s.logger.Info().Str("path", target).Msg("Backup completed")
	return target, nil
}

// copyFile is not consistent under concurrent writes; it only runs when VACUUM INTO is unavailable.
func (s *BackupService) copyFile(target string) error {
	src, err := os.Open(s.db.Path())
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// CleanupOldBackups deletes snapshots older than the retention window and returns how many it removed.
// Files not produced by PerformBackup are left alone.
func (s *BackupService) CleanupOldBackups() int {
	if s.config.RetentionDays <= 0 {
		return 0
	}

	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory")
		return 0
	}

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) || !strings.HasSuffix(e.Name(), backupSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.StoragePath, e.Name())); err != nil {
			s.logger.Warn().Err(err).Str("file", e.Name()).Msg("Failed to delete old backup")
			continue
		}
		removed++
	}
	return removed
}
