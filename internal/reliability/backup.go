// Package reliability holds the backup machinery: consistent SQLite
// snapshots via VACUUM INTO, local retention, and optional S3 upload.
package reliability

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// minBackupsToKeep is the floor the rotation never prunes below,
// regardless of age
const minBackupsToKeep = 3

// BackupService produces timestamped database backups. VACUUM INTO gives a
// consistent copy without blocking writers, so backups can run while the
// API is serving traffic.
type BackupService struct {
	databases     map[string]*sql.DB
	backupDir     string
	retentionDays int
	s3            *S3Client
	s3Prefix      string
	log           zerolog.Logger
}

// BackupFile describes one backup on disk
type BackupFile struct {
	Database  string    `json:"database"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBackupService creates a backup service over the given named databases.
// s3 may be nil, in which case backups stay local.
func NewBackupService(
	databases map[string]*sql.DB,
	backupDir string,
	retentionDays int,
	s3 *S3Client,
	s3Prefix string,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		databases:     databases,
		backupDir:     backupDir,
		retentionDays: retentionDays,
		s3:            s3,
		s3Prefix:      s3Prefix,
		log:           log.With().Str("service", "backup").Logger(),
	}
}

// Run backs up every database, prunes old local copies, and uploads the
// fresh files when S3 is configured
func (s *BackupService) Run(ctx context.Context) error {
	start := time.Now()

	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02-150405")
	var created []string

	for name, db := range s.databases {
		filename := fmt.Sprintf("%s-%s.db", name, timestamp)
		path := filepath.Join(s.backupDir, filename)

		if err := s.backupDatabase(db, path); err != nil {
			return fmt.Errorf("failed to back up %s: %w", name, err)
		}
		created = append(created, filename)

		s.log.Debug().Str("database", name).Str("file", filename).Msg("Database backed up")
	}

	if err := s.pruneLocal(); err != nil {
		s.log.Error().Err(err).Msg("Backup rotation failed")
	}

	if s.s3 != nil {
		for _, filename := range created {
			if err := s.upload(ctx, filename); err != nil {
				s.log.Error().Err(err).Str("file", filename).Msg("Backup upload failed")
			}
		}
	}

	s.log.Info().
		Int("databases", len(created)).
		Dur("duration_ms", time.Since(start)).
		Msg("Backup completed")
	return nil
}

// List returns the backups currently on disk, newest first
func (s *BackupService) List() ([]BackupFile, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ts, ok := parseBackupFilename(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupFile{
			Database:  name,
			Filename:  entry.Name(),
			SizeBytes: info.Size(),
			Timestamp: ts,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// backupDatabase writes a consistent copy of one database. VACUUM INTO
// refuses to overwrite, so any stale partial file is removed first.
func (s *BackupService) backupDatabase(db *sql.DB, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale backup file: %w", err)
	}

	escaped := strings.ReplaceAll(path, "'", "''")
	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", escaped)); err != nil {
		return fmt.Errorf("vacuum into failed: %w", err)
	}
	return nil
}

// pruneLocal deletes backups past the retention window, keeping at least
// minBackupsToKeep per database. retentionDays 0 disables pruning.
func (s *BackupService) pruneLocal() error {
	if s.retentionDays <= 0 {
		return nil
	}

	backups, err := s.List()
	if err != nil {
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	perDatabase := make(map[string]int)
	deleted := 0

	for _, b := range backups {
		perDatabase[b.Database]++
		if perDatabase[b.Database] <= minBackupsToKeep {
			continue
		}
		if b.Timestamp.After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.backupDir, b.Filename)); err != nil {
			s.log.Error().Err(err).Str("file", b.Filename).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.log.Info().Int("deleted", deleted).Msg("Old backups pruned")
	}
	return nil
}

// upload pushes one backup file to S3
func (s *BackupService) upload(ctx context.Context, filename string) error {
	file, err := os.Open(filepath.Join(s.backupDir, filename))
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer file.Close()

	key := filename
	if s.s3Prefix != "" {
		key = strings.TrimSuffix(s.s3Prefix, "/") + "/" + filename
	}
	return s.s3.Upload(ctx, key, file)
}

// parseBackupFilename splits "<name>-<timestamp>.db" into its parts
func parseBackupFilename(filename string) (string, time.Time, bool) {
	if !strings.HasSuffix(filename, ".db") {
		return "", time.Time{}, false
	}
	base := strings.TrimSuffix(filename, ".db")

	// Timestamp is the trailing "2006-01-02-150405" segment
	if len(base) < 18 {
		return "", time.Time{}, false
	}
	tsStr := base[len(base)-17:]
	name := strings.TrimSuffix(base[:len(base)-17], "-")
	if name == "" {
		return "", time.Time{}, false
	}

	ts, err := time.Parse("2006-01-02-150405", tsStr)
	if err != nil {
		return "", time.Time{}, false
	}
	return name, ts, true
}
