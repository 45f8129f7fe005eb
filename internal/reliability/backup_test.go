package reliability

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/database"
)

var testDBCounter int

func newBackupEnv(t *testing.T, retentionDays int) (*BackupService, string) {
	t.Helper()

	testDBCounter++
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:backuptest%d?mode=memory&cache=shared", testDBCounter),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	dir := t.TempDir()
	svc := NewBackupService(
		map[string]*sql.DB{"portfolio": db.Conn()},
		dir, retentionDays, nil, "", zerolog.Nop(),
	)
	return svc, dir
}

func TestBackupRun(t *testing.T) {
	svc, dir := newBackupEnv(t, 30)

	require.NoError(t, svc.Run(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "portfolio-")
	assert.Contains(t, entries[0].Name(), ".db")

	// The copy is a real database file, not an empty placeholder
	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	t.Run("listed newest first", func(t *testing.T) {
		backups, err := svc.List()
		require.NoError(t, err)
		require.Len(t, backups, 1)
		assert.Equal(t, "portfolio", backups[0].Database)
		assert.Equal(t, info.Size(), backups[0].SizeBytes)
	})
}

func TestBackupPrune(t *testing.T) {
	svc, dir := newBackupEnv(t, 7)

	// Six stale files well past the retention window
	for i := 0; i < 6; i++ {
		ts := time.Now().AddDate(0, 0, -30-i).Format("2006-01-02-150405")
		path := filepath.Join(dir, fmt.Sprintf("portfolio-%s.db", ts))
		require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))
	}

	require.NoError(t, svc.Run(context.Background()))

	backups, err := svc.List()
	require.NoError(t, err)

	// The fresh backup plus the retention floor of old copies survive
	require.Len(t, backups, minBackupsToKeep)
	assert.True(t, backups[0].Timestamp.After(backups[1].Timestamp))
}

func TestBackupPruneDisabled(t *testing.T) {
	svc, dir := newBackupEnv(t, 0)

	ts := time.Now().AddDate(0, 0, -365).Format("2006-01-02-150405")
	path := filepath.Join(dir, fmt.Sprintf("portfolio-%s.db", ts))
	require.NoError(t, os.WriteFile(path, []byte("ancient"), 0644))

	require.NoError(t, svc.Run(context.Background()))

	backups, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, backups, 2)
}

func TestListWithoutBackupDir(t *testing.T) {
	svc := NewBackupService(nil, "/nonexistent/backups", 7, nil, "", zerolog.Nop())

	backups, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestParseBackupFilename(t *testing.T) {
	name, ts, ok := parseBackupFilename("portfolio-2024-06-01-023000.db")
	require.True(t, ok)
	assert.Equal(t, "portfolio", name)
	assert.Equal(t, time.Date(2024, 6, 1, 2, 30, 0, 0, time.UTC), ts)

	for _, bad := range []string{
		"portfolio.db",
		"notes.txt",
		"2024-06-01-023000.db",
		"portfolio-2024-06-01.db",
	} {
		_, _, ok := parseBackupFilename(bad)
		assert.False(t, ok, bad)
	}
}
