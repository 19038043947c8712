package chat

import (
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"

	"botrelay/internal/alerts"
	"botrelay/internal/config"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnectScheduled
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnectScheduled:
		return "reconnect-scheduled"
	case StateHalted:
		return "halted"
	default:
		return "disconnected"
	}
}

var ErrNotConnected = errors.New("chat session is not connected")
var ErrHalted = errors.New("chat session halted, operator intervention required")

// Handler receives every inbound message. Called from the gateway event
// path; panics are recovered so one bad message cannot kill the listener.
type Handler func(*discordgo.Message)

// Manager owns the single session to the chat network and recovers it
// from drops. A duplicate-session/auth-conflict error is terminal: two
// processes sharing one identity will fight over the gateway forever, so
// the manager halts instead of reconnecting and pages the operator.
type Manager struct {
	mu           sync.Mutex
	session      *discordgo.Session
	state        State
	reconnecting bool
	handler      Handler
	stopProbe    chan struct{}
	probeStopped bool
}

func NewManager(token string) (*Manager, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		session:   s,
		state:     StateDisconnected,
		stopProbe: make(chan struct{}),
	}

	// The manager owns the reconnect path; discordgo must not race it.
	s.ShouldReconnectOnError = false
	// Events are handled one at a time in arrival order, which is what
	// keeps the first-waiting-request correlation rule safe in-process.
	s.SyncEvents = true
	s.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	s.AddHandler(m.onReady)
	s.AddHandler(m.onDisconnect)
	s.AddHandler(m.onMessageCreate)
	s.AddHandler(m.onMessageUpdate)

	return m, nil
}

// OnMessage installs the inbound message handler. Must be called before
// Connect.
func (m *Manager) OnMessage(h Handler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.state == StateHalted {
		m.mu.Unlock()
		return ErrHalted
	}
	m.state = StateConnecting
	m.mu.Unlock()

	if err := m.session.Open(); err != nil {
		if isFatalAuth(err) {
			m.halt(err)
			return err
		}
		m.scheduleReconnect(err)
		return err
	}

	m.setState(StateConnected)
	log.Printf("[Chat] Connected as %s", m.username())
	return nil
}

func (m *Manager) Close() {
	m.mu.Lock()
	if !m.probeStopped {
		m.probeStopped = true
		close(m.stopProbe)
	}
	m.mu.Unlock()
	m.session.Close()
	m.setState(StateDisconnected)
}

func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// StartProbe runs the periodic liveness check. A stale heartbeat ack is
// treated exactly like an explicit disconnect.
func (m *Manager) StartProbe() {
	go func() {
		ticker := time.NewTicker(config.ProbeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !m.Connected() {
					continue
				}
				if time.Since(m.session.LastHeartbeatAck) > config.HeartbeatStaleAfter {
					log.Printf("[Chat] Liveness probe failed: no heartbeat ack for %s",
						time.Since(m.session.LastHeartbeatAck).Round(time.Second))
					m.setState(StateDisconnected)
					m.scheduleReconnect(nil)
				}
			case <-m.stopProbe:
				return
			}
		}
	}()
}

// SendText sends a plain message to the given channel.
func (m *Manager) SendText(channelID, content string) error {
	if !m.Connected() {
		return ErrNotConnected
	}
	_, err := m.session.ChannelMessageSend(channelID, content)
	return err
}

// SendReply sends content as a reply referencing an earlier message.
func (m *Manager) SendReply(channelID, content, messageID string) error {
	if !m.Connected() {
		return ErrNotConnected
	}
	_, err := m.session.ChannelMessageSendReply(channelID, content, &discordgo.MessageReference{
		ChannelID: channelID,
		MessageID: messageID,
	})
	return err
}

// FetchMessage pulls the full message by ID. Edit events can arrive as a
// bare reference without content or attachments.
func (m *Manager) FetchMessage(channelID, messageID string) (*discordgo.Message, error) {
	return m.session.ChannelMessage(channelID, messageID)
}

func (m *Manager) onReady(_ *discordgo.Session, _ *discordgo.Ready) {
	m.setState(StateConnected)
}

func (m *Manager) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	m.mu.Lock()
	if m.state == StateHalted {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	m.mu.Unlock()

	log.Println("[Chat] Gateway disconnected")
	m.scheduleReconnect(nil)
}

func (m *Manager) onMessageCreate(_ *discordgo.Session, ev *discordgo.MessageCreate) {
	m.dispatch(ev.Message)
}

func (m *Manager) onMessageUpdate(_ *discordgo.Session, ev *discordgo.MessageUpdate) {
	msg := ev.Message
	if msg == nil {
		return
	}
	if msg.Author == nil || (msg.Content == "" && len(msg.Attachments) == 0) {
		full, err := m.FetchMessage(ev.ChannelID, ev.ID)
		if err != nil {
			log.Printf("[Chat] Failed to fetch edited message %s: %v", ev.ID, err)
			return
		}
		msg = full
	}
	m.dispatch(msg)
}

func (m *Manager) dispatch(msg *discordgo.Message) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h == nil || msg == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Chat] Recovered from panic handling message: %v", r)
		}
	}()
	h(msg)
}

// scheduleReconnect arms a single reconnect timer. The boolean guard
// serializes reconnect sequences so overlapping failures never spawn two.
func (m *Manager) scheduleReconnect(cause error) {
	m.mu.Lock()
	if m.state == StateHalted || m.reconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnecting = true
	m.state = StateReconnectScheduled
	m.mu.Unlock()

	if cause != nil {
		log.Printf("[Chat] Connection error: %v", cause)
	}
	log.Printf("[Chat] Reconnecting in %s", config.ReconnectDelay)

	time.AfterFunc(config.ReconnectDelay, func() {
		m.mu.Lock()
		m.reconnecting = false
		if m.state == StateHalted {
			m.mu.Unlock()
			return
		}
		m.state = StateConnecting
		m.mu.Unlock()

		m.session.Close()
		if err := m.session.Open(); err != nil {
			if isFatalAuth(err) {
				m.halt(err)
				return
			}
			m.scheduleReconnect(err)
			return
		}
		m.setState(StateConnected)
		log.Println("[Chat] Reconnected")
	})
}

func (m *Manager) halt(err error) {
	m.mu.Lock()
	m.state = StateHalted
	m.mu.Unlock()

	log.Printf("[Chat] FATAL: %v", err)
	log.Println("[Chat] Halting: another process appears to be using this identity. Not reconnecting.")
	alerts.SessionHalted(err.Error())
	m.session.Close()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) username() string {
	if m.session.State != nil && m.session.State.User != nil {
		return m.session.State.User.Username
	}
	return "unknown"
}

// isFatalAuth classifies the duplicate-session/auth-conflict error class
// that must never be retried.
func isFatalAuth(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, discordgo.ErrWSAlreadyOpen) {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code == 4004
	}
	msg := err.Error()
	return strings.Contains(msg, "authentication failed") || strings.Contains(msg, "4004")
}
