package relay

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botrelay/internal/chat"
	"botrelay/internal/config"
)

// fakeClient is an in-process stand-in for the session manager.
type fakeClient struct {
	mu        sync.Mutex
	connected bool
	sent      []string
	replies   []string
	sendErr   error
}

func (f *fakeClient) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) SendText(channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, content)
	return nil
}

func (f *fakeClient) SendReply(channelID, content, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.replies = append(f.replies, content+"@"+messageID)
	return nil
}

func testRelay(t *testing.T) (*Relay, *fakeClient) {
	t.Helper()
	old := config.BotHandles
	config.BotHandles = []string{"MediaFetchBot"}
	t.Cleanup(func() { config.BotHandles = old })

	fc := &fakeClient{connected: true}
	rl := New(fc, "bot-channel")
	rl.transfer = &Transfer{
		client:    &http.Client{Timeout: 10 * time.Second},
		dir:       t.TempDir(),
		workers:   2,
		chunkSize: 1 << 20,
	}
	return rl, fc
}

func botText(content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "menu-1",
		ChannelID: "bot-channel",
		Content:   content,
		Author:    &discordgo.User{Username: "MediaFetchBot"},
	}
}

func TestFormatsRoundTrip(t *testing.T) {
	rl, fc := testRelay(t)

	done := make(chan struct{})
	var formats []chat.Format
	var err error
	go func() {
		formats, err = rl.Formats("https://example.com/watch?v=abc")
		close(done)
	}()

	// Wait for the waiter to register before replying.
	require.Eventually(t, func() bool {
		return rl.correlator.PendingCount() == 1
	}, time.Second, 5*time.Millisecond)

	rl.HandleMessage(botText("🎬 Video found!\n720p: 50MB\nMP3: 8MB"))
	<-done

	require.NoError(t, err)
	require.Len(t, formats, 2)
	assert.Equal(t, "720p", formats[0].Quality)
	assert.Equal(t, []string{"https://example.com/watch?v=abc"}, fc.sent)
}

func TestDownloadRoundTrip(t *testing.T) {
	payload := []byte("fake video bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	rl, _ := testRelay(t)

	done := make(chan struct{})
	var saved *SavedFile
	var err error
	go func() {
		saved, err = rl.Download("https://example.com/clip")
		close(done)
	}()

	require.Eventually(t, func() bool {
		return rl.correlator.PendingCount() == 1
	}, time.Second, 5*time.Millisecond)

	m := botText("")
	m.Attachments = []*discordgo.MessageAttachment{
		{URL: srv.URL, ContentType: "video/mp4", Filename: "clip.mp4"},
	}
	rl.HandleMessage(m)
	<-done

	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, int64(len(payload)), saved.Size)
	assert.Equal(t, chat.KindVideo, saved.Kind)
}

func TestDownloadNotConnected(t *testing.T) {
	rl, fc := testRelay(t)
	fc.connected = false

	_, err := rl.Download("https://example.com/clip")
	assert.ErrorIs(t, err, chat.ErrNotConnected)
	assert.Equal(t, 0, rl.correlator.PendingCount())
}

func TestDownloadSendFailureCleansUp(t *testing.T) {
	rl, fc := testRelay(t)
	fc.sendErr = errors.New("channel gone")

	_, err := rl.Download("https://example.com/clip")
	assert.Error(t, err)
	assert.Equal(t, 0, rl.correlator.PendingCount())
}

func TestDownloadFormatRequiresMenu(t *testing.T) {
	rl, _ := testRelay(t)

	_, err := rl.DownloadFormat("https://example.com/clip", "720p")
	assert.ErrorIs(t, err, ErrNoMenu)
}

func TestDownloadFormatRejectsUnknownLabel(t *testing.T) {
	rl, _ := testRelay(t)
	rl.HandleMessage(botText("🎬 Video\n720p: 50MB"))

	_, err := rl.DownloadFormat("https://example.com/clip", "1080p")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDownloadFormatBackground(t *testing.T) {
	payload := []byte("selected quality bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	rl, fc := testRelay(t)
	rl.HandleMessage(botText("🎬 Video\n720p: 50MB\nMP3: 8MB"))

	requestID, err := rl.DownloadFormat("https://example.com/clip", "720p")
	require.NoError(t, err)
	require.NotEmpty(t, requestID)
	assert.Equal(t, []string{"720p@menu-1"}, fc.replies, "selection replies to the stored menu message")

	snap := rl.Progress(requestID)
	require.NotNil(t, snap)
	assert.False(t, snap.Complete)

	// Progress edit from the bot, then the terminal payload.
	rl.HandleMessage(botText("⏳ Downloading... 45%"))
	snap = rl.Progress(requestID)
	assert.Equal(t, 45, snap.Progress)

	m := botText("")
	m.Attachments = []*discordgo.MessageAttachment{
		{URL: srv.URL, ContentType: "video/mp4", Filename: "clip.mp4"},
	}
	rl.HandleMessage(m)

	require.Eventually(t, func() bool {
		s := rl.Progress(requestID)
		return s != nil && s.Complete
	}, 2*time.Second, 10*time.Millisecond)

	snap = rl.Progress(requestID)
	assert.True(t, snap.Success)
	assert.Equal(t, 100, snap.Progress)
	assert.NotEmpty(t, snap.FileName)
	assert.Equal(t, "/downloads/"+snap.FileName, snap.VideoURL)
}

func TestStaleMenuReferenceSurfacesError(t *testing.T) {
	rl, fc := testRelay(t)
	rl.HandleMessage(botText("🎬 Video\n720p: 50MB"))

	fc.sendErr = errors.New("unknown message")
	_, err := rl.DownloadFormat("https://example.com/clip", "720p")
	require.Error(t, err)
	assert.Nil(t, rl.correlator.LastMenu(), "stale menu reference is dropped")
}

func TestUnmatchedPayloadDiscarded(t *testing.T) {
	rl, _ := testRelay(t)

	m := botText("")
	m.Attachments = []*discordgo.MessageAttachment{
		{URL: "https://cdn.example/v.mp4", ContentType: "video/mp4", Filename: "v.mp4"},
	}
	assert.NotPanics(t, func() { rl.HandleMessage(m) })
	assert.Equal(t, 0, rl.correlator.PendingCount())
}
