package relay

import (
	"context"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"botrelay/internal/alerts"
	"botrelay/internal/chat"
	"botrelay/internal/config"
)

// ChatClient is the slice of the session manager the relay needs.
type ChatClient interface {
	Connected() bool
	SendText(channelID, content string) error
	SendReply(channelID, content, messageID string) error
}

// Relay bridges synchronous HTTP requests to the bot's asynchronous
// reply stream: it forwards URLs to the bot, feeds classified replies to
// the correlator, and hands persisted files back to the routes.
type Relay struct {
	client     ChatClient
	channelID  string
	correlator *Correlator
	transfer   *Transfer
}

func New(client ChatClient, channelID string) *Relay {
	return &Relay{
		client:     client,
		channelID:  channelID,
		correlator: NewCorrelator(),
		transfer:   NewTransfer(config.DownloadDir),
	}
}

func (r *Relay) Connected() bool {
	return r.client.Connected()
}

// Correlator exposes the pending/progress primitives to the HTTP layer.
func (r *Relay) Correlator() *Correlator {
	return r.correlator
}

// HandleMessage is installed as the session manager's inbound handler.
// Events are classified first; anything that matches nothing is dropped
// without side effect.
func (r *Relay) HandleMessage(m *discordgo.Message) {
	cl := chat.Classify(m)
	if cl == nil {
		return
	}

	switch {
	case cl.Media != nil:
		id, ok := r.correlator.ClaimPayload(cl.Media.Kind)
		if !ok {
			log.Printf("[Relay] Discarding unmatched %s payload", cl.Media.Kind)
			return
		}
		go r.fetchAndResolve(id, cl.Media)

	case cl.Menu != nil:
		r.correlator.SetLastMenu(cl.Menu)
		if id, ok := r.correlator.NextWaiter(WaitMenu); ok {
			r.correlator.Resolve(id, Outcome{Menu: cl.Menu})
		}

	case cl.Progress != nil:
		r.correlator.ApplyProgress(cl.Progress.Percent, "downloading")
	}
}

// fetchAndResolve persists the payload, then resolves the claimed
// request. Resolution never exposes a network-only reference: the HTTP
// layer serves the file from disk immediately after.
func (r *Relay) fetchAndResolve(id string, media *chat.MediaPayload) {
	saved, err := r.transfer.Fetch(context.Background(), media)
	if err != nil {
		log.Printf("[Relay] Transfer failed for %s payload: %v", media.Kind, err)
		alerts.TransferFailed(id, media.Filename, err)
		r.correlator.Resolve(id, Outcome{Err: err})
		return
	}
	if !r.correlator.Resolve(id, Outcome{File: saved}) {
		log.Printf("[Relay] Request %s already resolved, keeping %s for the sweep", shortID(id), saved.Name)
	}
}

// Download forwards a URL to the bot and blocks until a terminal payload
// is persisted or the payload deadline passes.
func (r *Relay) Download(url string) (*SavedFile, error) {
	if !r.client.Connected() {
		return nil, chat.ErrNotConnected
	}

	id, ch := r.correlator.Register(WaitPayload, config.PayloadTimeout)
	if err := r.client.SendText(r.channelID, url); err != nil {
		r.correlator.Resolve(id, Outcome{Err: err})
		<-ch
		return nil, err
	}

	out := <-ch
	if out.Err != nil {
		return nil, out.Err
	}
	return out.File, nil
}

// Formats forwards a URL and waits for the bot's quality menu.
func (r *Relay) Formats(url string) ([]chat.Format, error) {
	if !r.client.Connected() {
		return nil, chat.ErrNotConnected
	}

	id, ch := r.correlator.Register(WaitMenu, config.MenuTimeout)
	if err := r.client.SendText(r.channelID, url); err != nil {
		r.correlator.Resolve(id, Outcome{Err: err})
		<-ch
		return nil, err
	}

	out := <-ch
	if out.Err != nil {
		return nil, out.Err
	}
	return out.Menu.Formats, nil
}

// DownloadFormat triggers a specific quality from the most recent menu
// and returns a request id immediately; the transfer continues in the
// background and is observable via the progress endpoint.
func (r *Relay) DownloadFormat(url, format string) (string, error) {
	if !r.client.Connected() {
		return "", chat.ErrNotConnected
	}

	menu := r.correlator.LastMenu()
	if menu == nil {
		return "", ErrNoMenu
	}
	if !menu.HasLabel(format) {
		return "", ErrUnknownFormat
	}

	requestID := uuid.New().String()
	r.correlator.NewProgress(requestID)

	id, ch := r.correlator.Register(WaitPayload, config.PayloadTimeout)
	if err := r.client.SendReply(menu.ChannelID, format, menu.MessageID); err != nil {
		// The menu message may have been deleted under us.
		r.correlator.ClearLastMenu()
		r.correlator.Resolve(id, Outcome{Err: err})
		<-ch
		r.correlator.CompleteProgress(requestID, false, nil, err.Error())
		return "", err
	}

	go func() {
		out := <-ch
		switch {
		case out.Err != nil:
			r.correlator.CompleteProgress(requestID, false, nil, out.Err.Error())
		default:
			r.correlator.CompleteProgress(requestID, true, out.File, "")
		}
	}()

	return requestID, nil
}

// Progress returns the pollable state of a download-format request, or
// nil once the record has been purged.
func (r *Relay) Progress(id string) *ProgressSnapshot {
	return r.correlator.Progress(id)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
