package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botrelay/internal/config"
)

func sweepDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old := config.DownloadDir
	config.DownloadDir = dir
	t.Cleanup(func() { config.DownloadDir = old })
	return dir
}

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("data"), 0644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(p, mtime, mtime))
	return p
}

func TestSweepRemovesExpiredFiles(t *testing.T) {
	dir := sweepDir(t)
	expired := writeAged(t, dir, "video-20260830-100000.mp4", config.FileRetention+time.Minute)
	fresh := writeAged(t, dir, "video-20260830-140000.mp4", time.Minute)

	SweepOldFiles()

	_, err := os.Stat(expired)
	assert.True(t, os.IsNotExist(err), "expired file must be removed")
	_, err = os.Stat(fresh)
	assert.NoError(t, err, "fresh file must survive")
}

func TestSweepRetainsYoungAcrossCycles(t *testing.T) {
	dir := sweepDir(t)
	fresh := writeAged(t, dir, "audio-20260830-140000.mp3", 10*time.Minute)

	for i := 0; i < 3; i++ {
		SweepOldFiles()
	}

	_, err := os.Stat(fresh)
	assert.NoError(t, err)
}

func TestSweepDropsStalePartFiles(t *testing.T) {
	dir := sweepDir(t)
	stalePart := writeAged(t, dir, "video-20260830-120000.mp4.part", config.SweepInterval+time.Minute)
	freshPart := writeAged(t, dir, "video-20260830-140000.mp4.part", time.Minute)

	SweepOldFiles()

	_, err := os.Stat(stalePart)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshPart)
	assert.NoError(t, err, "an in-flight part file is left alone")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c", SanitizeFilename(`a/b\c`))
	assert.Equal(t, "clip name", SanitizeFilename("  clip   name  "))
	assert.Len(t, SanitizeFilename(strings.Repeat("a", 300)), 200, "long names are truncated")
}

func TestValidateURL(t *testing.T) {
	assert.True(t, ValidateURL("https://example.com/watch?v=abc").Valid)
	assert.True(t, ValidateURL("http://example.com/clip").Valid)

	assert.False(t, ValidateURL("").Valid)
	assert.False(t, ValidateURL("ftp://example.com/file").Valid)
	assert.False(t, ValidateURL("https://localhost/x").Valid)
	assert.False(t, ValidateURL("https://127.0.0.1/x").Valid)
	assert.False(t, ValidateURL("https://192.168.1.10/x").Valid)
	long := "https://example.com/" + string(make([]byte, config.MaxURLLength))
	assert.False(t, ValidateURL(long).Valid)
}
