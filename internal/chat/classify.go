package chat

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"botrelay/internal/config"
)

// Classification is pure text/attribute sniffing against the bot's exact
// wording. It is fragile by nature, so all of it lives behind Classify and
// the small parse helpers below, where it can be unit-tested in isolation.

var (
	menuMarkerRe     = regexp.MustCompile(`🎬|\bVideo\b`)
	progressMarkerRe = regexp.MustCompile(`⏳|\bDownloading\b`)
	trailingPctRe    = regexp.MustCompile(`(\d{1,3})%$`)

	formatRes = map[string]*regexp.Regexp{}
)

func init() {
	labels := append(append([]string{}, config.QualityLabels...), config.AudioLabel)
	for _, label := range labels {
		formatRes[label] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(label) + `\s*:\s*(\d+(?:\.\d+)?)\s*MB`)
	}
}

// AllowedSender reports whether a username is on the bot allow-list.
// Exact match, case-sensitive, with a leading @ stripped first.
func AllowedSender(username string) bool {
	name := strings.TrimPrefix(username, "@")
	for _, h := range config.BotHandles {
		if name == h {
			return true
		}
	}
	return false
}

// Classify decides what an inbound message is. Returns nil for anything
// that is not from an allow-listed bot or matches no known shape.
func Classify(m *discordgo.Message) *Classified {
	if m == nil || m.Author == nil || !AllowedSender(m.Author.Username) {
		return nil
	}
	if media := classifyMedia(m); media != nil {
		return &Classified{Media: media}
	}
	if menu := ParseMenu(m.Content); menu != nil {
		menu.ChannelID = m.ChannelID
		menu.MessageID = m.ID
		return &Classified{Menu: menu}
	}
	if pct, ok := ParseProgress(m.Content); ok {
		return &Classified{Progress: &ProgressUpdate{Percent: pct}}
	}
	return nil
}

// ParseMenu extracts every `label: sizeMB` pair from a menu text. A text
// counts as a menu only if it carries the media marker and at least one
// vocabulary label matched. Unmatched labels are simply absent.
func ParseMenu(text string) *Menu {
	if !menuMarkerRe.MatchString(text) {
		return nil
	}
	var formats []Format
	labels := append(append([]string{}, config.QualityLabels...), config.AudioLabel)
	for _, label := range labels {
		if m := formatRes[label].FindStringSubmatch(text); m != nil {
			formats = append(formats, Format{Quality: label, Size: m[1] + "MB"})
		}
	}
	if len(formats) == 0 {
		return nil
	}
	return &Menu{Formats: formats}
}

// ParseProgress recognizes a download-in-progress message and pulls the
// trailing NN% out of it.
func ParseProgress(text string) (int, bool) {
	if !progressMarkerRe.MatchString(text) {
		return 0, false
	}
	m := trailingPctRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, false
	}
	pct, err := strconv.Atoi(m[1])
	if err != nil || pct > 100 {
		return 0, false
	}
	return pct, true
}

// classifyMedia picks the preferred attachment from a message. Video wins
// over audio: many platforms ship a muted video plus a separate audio
// track for one clip, and the caller wants the video.
func classifyMedia(m *discordgo.Message) *MediaPayload {
	var video, audio, image *MediaPayload
	for _, att := range m.Attachments {
		if att == nil || att.URL == "" {
			continue
		}
		kind := SniffKind(att.ContentType, att.Filename)
		p := &MediaPayload{
			Kind:      kind,
			URL:       att.URL,
			MIME:      att.ContentType,
			Filename:  att.Filename,
			Size:      att.Size,
			ChannelID: m.ChannelID,
			MessageID: m.ID,
		}
		switch kind {
		case KindVideo:
			if video == nil {
				video = p
			}
		case KindAudio:
			if audio == nil {
				audio = p
			}
		case KindImage:
			if image == nil {
				image = p
			}
		}
	}
	switch {
	case video != nil:
		return video
	case image != nil:
		return image
	case audio != nil:
		return audio
	}
	return nil
}

var (
	videoHints = []string{"mp4", "matroska", "webm", "quicktime"}
	audioHints = []string{"mpeg", "ogg", "opus", "wav", "flac", "aac"}

	videoFileExts = []string{"mp4", "webm", "mkv", "mov"}
	audioFileExts = []string{"mp3", "m4a", "ogg", "opus", "wav", "flac"}
	imageFileExts = []string{"jpg", "jpeg", "png", "gif", "webp"}
)

// SniffKind buckets a declared MIME type, falling back to substring and
// filename-extension heuristics before giving up.
func SniffKind(mimeType, filename string) PayloadKind {
	mt := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	case strings.HasPrefix(mt, "audio/"):
		return KindAudio
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	}

	for _, hint := range videoHints {
		if strings.Contains(mt, hint) {
			return KindVideo
		}
	}
	for _, hint := range audioHints {
		if strings.Contains(mt, hint) {
			return KindAudio
		}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if contains(videoFileExts, ext) {
		return KindVideo
	}
	if contains(audioFileExts, ext) {
		return KindAudio
	}
	if contains(imageFileExts, ext) {
		return KindImage
	}
	return KindNone
}

func contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
