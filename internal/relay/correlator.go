package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"botrelay/internal/chat"
	"botrelay/internal/config"
)

var (
	ErrTimeout       = errors.New("timed out waiting for a reply from the bot")
	ErrNoMenu        = errors.New("no format menu available, fetch formats first")
	ErrUnknownFormat = errors.New("requested format is not offered by the current menu")
)

// WaitClass says which category of classified event a pending request is
// waiting on.
type WaitClass int

const (
	WaitMenu WaitClass = iota
	WaitPayload
)

// Outcome is what a pending request resolves with. Exactly one of Menu,
// File, or Err is set.
type Outcome struct {
	Menu *chat.Menu
	File *SavedFile
	Err  error
}

// SavedFile describes a payload already persisted to local storage. The
// HTTP layer serves it straight from Path, so an Outcome must never carry
// a SavedFile before the write completed.
type SavedFile struct {
	Path string
	Name string
	Size int64
	Kind chat.PayloadKind
	MIME string
}

type pendingRequest struct {
	id    string
	class WaitClass
	ch    chan Outcome
}

// Correlator matches classified bot events to the HTTP request that
// triggered them. The bot protocol carries no conversation token, so the
// design assumes a single outstanding interaction: waiters are resolved
// first-registered-first-resolved, and two concurrent callers issuing
// different URLs at nearly the same time can have their results swapped.
// Fixing that would require one session or sub-conversation per caller,
// which the upstream bot does not support.
type Correlator struct {
	mu       sync.Mutex
	pending  []*pendingRequest // insertion order
	byID     map[string]*pendingRequest
	received map[string]chat.PayloadKind // payload kind claimed per pending id

	muProgress  sync.Mutex
	progress    map[string]*ProgressRecord
	progressTTL time.Duration

	muMenu   sync.Mutex
	lastMenu *chat.Menu
}

func NewCorrelator() *Correlator {
	return &Correlator{
		byID:        make(map[string]*pendingRequest),
		received:    make(map[string]chat.PayloadKind),
		progress:    make(map[string]*ProgressRecord),
		progressTTL: config.ProgressRetention,
	}
}

// Register creates a pending request and arms its timeout. The timer and
// the event path race; whichever resolves first wins and the loser is a
// no-op.
func (c *Correlator) Register(class WaitClass, timeout time.Duration) (string, <-chan Outcome) {
	p := &pendingRequest{
		id:    uuid.New().String(),
		class: class,
		ch:    make(chan Outcome, 1),
	}
	c.mu.Lock()
	c.pending = append(c.pending, p)
	c.byID[p.id] = p
	c.mu.Unlock()

	time.AfterFunc(timeout, func() {
		c.Resolve(p.id, Outcome{Err: ErrTimeout})
	})
	return p.id, p.ch
}

// Resolve completes a pending request exactly once. The entry is removed
// from the map before the outcome is delivered, so a second resolution
// attempt for the same id finds nothing and returns false.
func (c *Correlator) Resolve(id string, out Outcome) bool {
	c.mu.Lock()
	p, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.byID, id)
	delete(c.received, id)
	for i, q := range c.pending {
		if q == p {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	p.ch <- out
	return true
}

// NextWaiter returns the first registered, still-pending request of the
// given class.
func (c *Correlator) NextWaiter(class WaitClass) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pending {
		if p.class == class {
			return p.id, true
		}
	}
	return "", false
}

// ClaimPayload binds an arriving payload kind to a waiting request before
// the (slow) transfer starts; the pending entry itself stays in the map
// until Resolve. The claim enforces the priority policy: a video or image
// may take over a waiter an audio payload claimed first, but audio never
// touches a waiter already claimed by video or image. Audio that arrives
// strictly first and finishes its transfer before any video lands is
// accepted as-is.
func (c *Correlator) ClaimPayload(kind chat.PayloadKind) (string, bool) {
	if kind == chat.KindNone {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pending {
		if p.class != WaitPayload {
			continue
		}
		prev := c.received[p.id]
		switch {
		case prev == chat.KindNone:
		case prev == chat.KindAudio && kind != chat.KindAudio:
			// video/image upgrade over an unresolved audio claim
		default:
			continue
		}
		c.received[p.id] = kind
		return p.id, true
	}
	return "", false
}

// Pending reports whether an id is still waiting. Used by tests and the
// cleanup paths.
func (c *Correlator) Pending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byID[id]
	return ok
}

func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// SetLastMenu overwrites the single menu slot. Each new menu from the bot
// replaces the previous one; the slot is a back-reference, not ownership.
func (c *Correlator) SetLastMenu(m *chat.Menu) {
	c.muMenu.Lock()
	c.lastMenu = m
	c.muMenu.Unlock()
}

func (c *Correlator) LastMenu() *chat.Menu {
	c.muMenu.Lock()
	defer c.muMenu.Unlock()
	return c.lastMenu
}

// ClearLastMenu drops a reference that turned out to be stale.
func (c *Correlator) ClearLastMenu() {
	c.muMenu.Lock()
	c.lastMenu = nil
	c.muMenu.Unlock()
}
