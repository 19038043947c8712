package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var Version = "dev"

var (
	Port    string
	EnvMode string

	DiscordToken string
	BotChannelID string

	// BotHandles is the allow-list of bot identities whose messages the
	// classifier will look at. Compared case-sensitively after stripping
	// a leading @.
	BotHandles []string

	DiscordWebhookURL string
	DiscordPingUserID string
	DiscordAlerts     bool
)

const (
	MenuTimeout       = 30 * time.Second
	PayloadTimeout    = 120 * time.Second
	ProgressRetention = 60 * time.Second

	FileRetention  = time.Hour
	SweepInterval  = 5 * time.Minute
	DiskSpaceMinGB = 5

	ReconnectDelay      = 5 * time.Second
	ProbeInterval       = 30 * time.Second
	HeartbeatStaleAfter = 2 * time.Minute

	RateLimitWindow = 60 * time.Second
	RateLimitMax    = 60
	MaxURLLength    = 2048

	TransferWorkers   = 4
	TransferChunkSize = 8 * 1024 * 1024
)

// QualityLabels is the fixed vocabulary the format-menu parser matches
// against, highest first. AudioLabel is the audio-only entry.
var QualityLabels = []string{"2160p", "1440p", "1080p", "720p", "480p", "360p"}

const AudioLabel = "MP3"

var VideoExts = map[string]string{
	"video/mp4":        "mp4",
	"video/webm":       "webm",
	"video/x-matroska": "mkv",
	"video/quicktime":  "mov",
}

var AudioExts = map[string]string{
	"audio/mpeg": "mp3",
	"audio/mp4":  "m4a",
	"audio/ogg":  "ogg",
	"audio/opus": "opus",
	"audio/wav":  "wav",
	"audio/flac": "flac",
}

var ImageExts = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

const TempDir = "/var/tmp/botrelay"

var DownloadDir = filepath.Join(TempDir, "downloads")

func Load() {
	Port = envOrDefault("PORT", "3001")
	EnvMode = envOrDefault("NODE_ENV", "development")

	DiscordToken = os.Getenv("DISCORD_TOKEN")
	if DiscordToken == "" {
		log.Fatal("DISCORD_TOKEN is required")
	}
	BotChannelID = os.Getenv("BOT_CHANNEL_ID")
	if BotChannelID == "" {
		log.Fatal("BOT_CHANNEL_ID is required")
	}

	BotHandles = splitCSV(envOrDefault("BOT_HANDLES", "MediaFetchBot"))

	DiscordWebhookURL = os.Getenv("DISCORD_WEBHOOK_URL")
	DiscordPingUserID = os.Getenv("DISCORD_PING_USER_ID")
	DiscordAlerts = DiscordWebhookURL != ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
