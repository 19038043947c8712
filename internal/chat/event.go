package chat

// PayloadKind buckets a media attachment into one of three mutually
// exclusive categories.
type PayloadKind int

const (
	KindNone PayloadKind = iota
	KindVideo
	KindAudio
	KindImage
)

func (k PayloadKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindImage:
		return "image"
	default:
		return "none"
	}
}

// Format is one entry of a quality menu, e.g. {Quality: "720p", Size: "50MB"}.
type Format struct {
	Quality string `json:"quality"`
	Size    string `json:"size"`
}

// Menu is a parsed format-menu message. ChannelID/MessageID point back at
// the message so a format selection can reference it later.
type Menu struct {
	ChannelID string
	MessageID string
	Formats   []Format
}

// HasLabel reports whether the menu offers the given quality label.
func (m *Menu) HasLabel(label string) bool {
	for _, f := range m.Formats {
		if f.Quality == label {
			return true
		}
	}
	return false
}

type ProgressUpdate struct {
	Percent int
}

// MediaPayload describes the attachment selected from a media-bearing
// message. URL points at the platform CDN copy; the transfer relay
// persists it locally before anything is exposed over HTTP.
type MediaPayload struct {
	Kind      PayloadKind
	URL       string
	MIME      string
	Filename  string
	Size      int
	ChannelID string
	MessageID string
}

// Classified is the result of classifying one inbound message. Exactly
// one field is set; a nil Classified means the message is irrelevant.
type Classified struct {
	Menu     *Menu
	Progress *ProgressUpdate
	Media    *MediaPayload
}
