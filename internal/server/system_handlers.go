package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/papertrader/internal/database"
	"github.com/aristath/papertrader/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers handles system-wide monitoring endpoints.
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	ledgerDB    *database.DB
	book        *portfolio.Book
}

// NewSystemHandlers creates a new system handlers instance.
func NewSystemHandlers(log zerolog.Logger, dataDir string, ledgerDB *database.DB, book *portfolio.Book) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		ledgerDB:    ledgerDB,
		book:        book,
	}
}

// SystemStatusResponse is the payload for GET /api/system/status.
type SystemStatusResponse struct {
	Status        string         `json:"status"`
	UptimeHours   float64        `json:"uptime_hours"`
	CPUPercent    float64        `json:"cpu_percent"`
	RAMPercent    float64        `json:"ram_percent"`
	OpenPositions int            `json:"open_positions"`
	Database      DatabaseStatus `json:"database"`
	DataDirMB     float64        `json:"data_dir_mb"`
	LastChecked   string         `json:"last_checked"`
}

// DatabaseStatus describes the health and size of the ledger database.
type DatabaseStatus struct {
	Healthy   bool    `json:"healthy"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	PageCount int64   `json:"page_count"`
	FreePages int64   `json:"free_pages"`
	Error     string  `json:"error,omitempty"`
}

// HandleSystemStatus returns comprehensive system status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response, err := h.GetSystemStatusSnapshot(r.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("System status collected with warnings")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetSystemStatusSnapshot collects the full status payload. Individual
// collection failures degrade their fields instead of failing the request;
// the first error is returned so callers can log it.
func (h *SystemHandlers) GetSystemStatusSnapshot(ctx context.Context) (SystemStatusResponse, error) {
	if h == nil {
		return SystemStatusResponse{}, fmt.Errorf("system handlers not initialized")
	}

	var firstErr error
	recordErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	cpuPercent, ramPercent := h.getSystemStats()

	status := "healthy"
	dbStatus := DatabaseStatus{Healthy: true}

	// quick_check keeps the endpoint fast; the full integrity check runs
	// at startup via HealthCheck.
	if err := h.ledgerDB.QuickCheck(ctx); err != nil {
		h.log.Error().Err(err).Msg("Ledger database failed quick check")
		recordErr(err)
		status = "degraded"
		dbStatus.Healthy = false
		dbStatus.Error = err.Error()
	}

	if stats, err := h.ledgerDB.GetStats(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to read database stats")
		recordErr(err)
	} else {
		dbStatus.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
		dbStatus.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
		dbStatus.PageCount = stats.PageCount
		dbStatus.FreePages = stats.FreelistCount
	}

	openPositions := 0
	if h.book != nil {
		openPositions = h.book.OpenPositionsCount()
	}

	response := SystemStatusResponse{
		Status:        status,
		UptimeHours:   time.Since(h.startupTime).Hours(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		OpenPositions: openPositions,
		Database:      dbStatus,
		DataDirMB:     h.getDirSize(h.dataDir),
		LastChecked:   time.Now().Format(time.RFC3339),
	}

	return response, firstErr
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
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

// getSystemStats calculates CPU and RAM usage percentages
// Uses a shorter interval (100ms) for faster response while still providing accurate readings
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
