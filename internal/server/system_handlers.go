package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/folio/internal/api"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/reliability"
)

// SystemHandlers serves health, system info, database stats, and backup
// operations
type SystemHandlers struct {
	dataDir     string
	portfolioDB *database.DB
	cacheDB     *database.DB
	backup      *reliability.BackupService
	startedAt   time.Time
	log         zerolog.Logger
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	portfolioDB *database.DB,
	cacheDB *database.DB,
	backup *reliability.BackupService,
) *SystemHandlers {
	return &SystemHandlers{
		dataDir:     dataDir,
		portfolioDB: portfolioDB,
		cacheDB:     cacheDB,
		backup:      backup,
		startedAt:   time.Now(),
		log:         log.With().Str("handler", "system").Logger(),
	}
}

// HandleHealth reports liveness plus a quick integrity check of both
// databases. Degraded storage turns the response into a 503 so load
// balancers stop routing here.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "ok"
	databases := map[string]string{}
	for name, db := range map[string]*database.DB{
		"portfolio": h.portfolioDB,
		"cache":     h.cacheDB,
	} {
		if err := db.HealthCheck(ctx); err != nil {
			h.log.Error().Err(err).Str("database", name).Msg("Health check failed")
			databases[name] = "unhealthy"
			status = "degraded"
		} else {
			databases[name] = "ok"
		}
	}

	body := map[string]interface{}{
		"status":         status,
		"databases":      databases,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}

	if status != "ok" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(api.Envelope{Success: false, Data: body, Error: "DEGRADED"})
		return
	}
	api.WriteSuccess(w, http.StatusOK, body)
}

// HandleSystemInfo returns host resource usage and data directory size
func (h *SystemHandlers) HandleSystemInfo(w http.ResponseWriter, r *http.Request) {
	// 100ms sample keeps the endpoint fast enough for dashboard polling
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read memory statistics")
		memStat = &mem.VirtualMemoryStat{}
	}

	var diskUsedPercent, diskFreeGB float64
	if usage, err := disk.Usage(h.dataDir); err == nil {
		diskUsedPercent = usage.UsedPercent
		diskFreeGB = float64(usage.Free) / 1024 / 1024 / 1024
	} else {
		h.log.Warn().Err(err).Msg("Failed to read disk usage")
	}

	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"cpu_percent":       cpuPercent[0],
		"memory_percent":    memStat.UsedPercent,
		"disk_used_percent": diskUsedPercent,
		"disk_free_gb":      diskFreeGB,
		"data_dir_mb":       h.dirSizeMB(h.dataDir),
		"uptime_seconds":    int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleDatabaseStats returns row counts and file sizes for both databases
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{}
	for name, db := range map[string]*database.DB{
		"portfolio": h.portfolioDB,
		"cache":     h.cacheDB,
	} {
		s, err := db.GetStats()
		if err != nil {
			h.log.Error().Err(err).Str("database", name).Msg("Failed to collect database stats")
			api.WriteError(w, err, h.log)
			return
		}
		stats[name] = s
	}
	api.WriteSuccess(w, http.StatusOK, stats)
}

// HandleListBackups returns the backups currently on disk
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backup.List()
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, backups)
}

// HandleTriggerBackup runs a backup immediately
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	h.log.Info().Msg("Manual backup triggered")

	if err := h.backup.Run(r.Context()); err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteMessage(w, http.StatusOK, "backup completed")
}

// dirSizeMB walks a directory and totals file sizes in MB
func (h *SystemHandlers) dirSizeMB(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}
