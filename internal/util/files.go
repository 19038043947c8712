package util

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"botrelay/internal/alerts"
	"botrelay/internal/config"
)

var unsafeFilenameRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
var multiSpaceRe = regexp.MustCompile(`\s+`)

// EnsureDirs creates the storage directories on startup.
func EnsureDirs() {
	for _, dir := range []string{config.TempDir, config.DownloadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("[Files] Failed to create %s: %v", dir, err)
		}
	}
}

// SweepOldFiles deletes any persisted file older than the retention
// window, served or not. Disk hygiene only; correlation state is
// untouched.
func SweepOldFiles() {
	now := time.Now()
	entries, err := os.ReadDir(config.DownloadDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())
		if age > config.FileRetention || (strings.HasSuffix(e.Name(), ".part") && age > config.SweepInterval) {
			p := filepath.Join(config.DownloadDir, e.Name())
			if err := os.Remove(p); err == nil {
				log.Printf("[Sweep] Removed expired file: %s", e.Name())
			}
		}
	}

	if ds, err := GetDiskSpace(config.TempDir); err == nil {
		log.Printf("[DiskSpace] %.1fGB free / %.1fGB total", ds.AvailGB, ds.TotalGB)
		if ds.AvailGB < float64(config.DiskSpaceMinGB) {
			log.Printf("[DiskSpace] WARNING: only %.1fGB free, below %dGB threshold", ds.AvailGB, config.DiskSpaceMinGB)
			alerts.LowDiskSpace(ds.AvailGB)
		}
	}
}

// StartSweep runs the retention sweep on a fixed interval.
func StartSweep() {
	ticker := time.NewTicker(config.SweepInterval)
	go func() {
		for range ticker.C {
			SweepOldFiles()
		}
	}()
}

func SanitizeFilename(filename string) string {
	s := unsafeFilenameRe.ReplaceAllString(filename, "_")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
